package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/baminashop/backend/internal/auth"
	apperrors "github.com/baminashop/backend/internal/errors"
	"github.com/baminashop/backend/internal/logger"
	"github.com/baminashop/backend/internal/respond"
)

// maxPhotoSize caps profile photo uploads at 5 MiB.
const maxPhotoSize = 5 << 20

var photoExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ObjectStore is the object-storage surface the profile handlers use.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	DeleteObject(ctx context.Context, key string) error
	ObjectURL(key string) string
}

// ProfileHandlers serves profile photo uploads backed by object storage.
type ProfileHandlers struct {
	store ObjectStore
	users auth.UserStore
}

func NewProfileHandlers(store ObjectStore, users auth.UserStore) *ProfileHandlers {
	return &ProfileHandlers{store: store, users: users}
}

// UploadPhoto replaces the authenticated user's profile photo. The photo
// is read from the "photo" multipart form field. Objects are keyed by user
// id plus extension, so a replacement with the same format overwrites in
// place and a format change leaves a stale object behind, deleted
// best-effort after the new photo is persisted.
func (h *ProfileHandlers) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	if user == nil {
		respond.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		respond.FieldError(w, http.StatusBadRequest, "Validation failed", "photo", "Photo must be smaller than 5 MB.")
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		respond.FieldError(w, http.StatusBadRequest, "Validation failed", "photo", "This field is required.")
		return
	}
	defer file.Close()

	// Sniff the real content type instead of trusting the header.
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && n == 0 {
		respond.FieldError(w, http.StatusBadRequest, "Validation failed", "photo", "Uploaded file is empty.")
		return
	}
	contentType := http.DetectContentType(buf[:n])
	contentType = strings.Split(contentType, ";")[0]

	ext, ok := photoExtensions[contentType]
	if !ok {
		respond.FieldError(w, http.StatusBadRequest, "Validation failed", "photo", "Upload a valid image. Supported formats are JPEG, PNG and WebP.")
		return
	}

	if _, err := file.Seek(0, 0); err != nil {
		h.writeStorageError(w, r, "failed to rewind photo upload", err)
		return
	}

	record, err := h.users.GetByID(r.Context(), user.UserID)
	if err != nil {
		h.writeStorageError(w, r, "failed to load user for photo upload", err)
		return
	}

	key := fmt.Sprintf("%s%s", user.UserID, ext)
	if err := h.store.PutObject(r.Context(), key, file, header.Size, contentType); err != nil {
		h.writeStorageError(w, r, "failed to store profile photo", err)
		return
	}

	photoURL := h.store.ObjectURL(key)
	if err := h.users.UpdateProfilePhoto(r.Context(), user.UserID, photoURL); err != nil {
		h.writeStorageError(w, r, "failed to save profile photo url", err)
		return
	}

	// A format change moves the photo to a new key; drop the old object so
	// it doesn't sit orphaned in the bucket.
	if oldKey := path.Base(record.ProfilePhoto); record.ProfilePhoto != "" && oldKey != key {
		if err := h.store.DeleteObject(r.Context(), oldKey); err != nil {
			logger.Warn(r.Context(), "failed to delete previous profile photo", map[string]interface{}{
				"key":   oldKey,
				"error": err.Error(),
			})
		}
	}

	respond.Success(w, http.StatusOK, "Profile photo updated successfully.", map[string]string{
		"profile_photo": photoURL,
	})
}

func (h *ProfileHandlers) writeStorageError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger.Error(r.Context(), msg, err)
	requestID := apperrors.GetRequestID(r.Context())
	apperrors.WriteError(w, requestID, apperrors.StorageError("Failed to upload photo").WithCause(err))
}
