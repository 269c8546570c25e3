package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/baminashop/backend/internal/db"
	"github.com/baminashop/backend/internal/metrics"
	"github.com/baminashop/backend/internal/respond"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	refreshCookieName = "refresh_token"

	// Reset endpoints are rate limited per client to soften the
	// account-enumeration trade-off documented for /password-reset/.
	resetRequestPerEmailLimit = 3
	resetRequestPerIPLimit    = 10
	resetConfirmPerIPLimit    = 10
	resetLimitWindow          = 15 * time.Minute
)

type RegisterRequest struct {
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	StayLoggedIn bool   `json:"stay_logged_in"`
}

type LoginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	StayLoggedIn bool   `json:"stay_logged_in"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

type VerifyRequest struct {
	Token string `json:"token"`
}

type PasswordResetRequest struct {
	Email string `json:"email"`
}

type PasswordResetConfirmRequest struct {
	UIDB64      string `json:"uidb64"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// UserProjection is the serialized shape of a user's own record.
type UserProjection struct {
	ID           string `json:"id"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	ProfilePhoto string `json:"profile_photo"`
}

// RateLimiter is the abuse-protection surface the handlers use. A limiter
// that cannot decide should allow the request.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) bool
}

type Handlers struct {
	authService *Service
	limiter     RateLimiter
}

func NewHandlers(authService *Service, limiter RateLimiter) *Handlers {
	return &Handlers{authService: authService, limiter: limiter}
}

// Register handles POST /register/.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Validation failed", nil)
		return
	}

	req.Email = NormalizeEmail(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	fieldErrs := respond.FieldErrors{}
	if req.FullName == "" {
		fieldErrs["full_name"] = append(fieldErrs["full_name"], "This field is required.")
	}
	if req.Email == "" {
		fieldErrs["email"] = append(fieldErrs["email"], "This field is required.")
	} else if !emailRegex.MatchString(req.Email) {
		fieldErrs["email"] = append(fieldErrs["email"], "Enter a valid email address.")
	}
	if req.Password == "" {
		fieldErrs["password"] = append(fieldErrs["password"], "This field is required.")
	} else if violations := ValidatePassword(req.Password, req.Email, req.FullName); len(violations) > 0 {
		fieldErrs["password"] = append(fieldErrs["password"], violations...)
	}

	// Pre-insert duplicate check; the unique constraint still covers the
	// race window between this check and the insert.
	if req.Email != "" {
		if _, err := h.authService.users.GetByEmail(r.Context(), req.Email); err == nil {
			fieldErrs["email"] = append(fieldErrs["email"], "A user with this email already exists.")
		}
	}

	if len(fieldErrs) > 0 {
		respond.Error(w, http.StatusBadRequest, "Validation failed", fieldErrs)
		return
	}

	pair, _, err := h.authService.Register(r.Context(), req.FullName, req.Email, req.Password, req.StayLoggedIn)
	if err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			respond.FieldError(w, http.StatusBadRequest, "Validation failed",
				"email", "A user with this email already exists.")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to create user", nil)
		return
	}

	metrics.Default().IncCounter("registrations_total")
	setRefreshCookie(w, pair)
	respond.Success(w, http.StatusCreated, "User registered successfully.", map[string]string{
		"access": pair.Access,
	})
}

// CurrentUser handles GET /user/. The auth middleware has already put the
// caller in the context.
func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	userCtx := GetUserFromContext(r.Context())
	if userCtx == nil {
		respond.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.", nil)
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), userCtx.UserID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			respond.Error(w, http.StatusUnauthorized, "User not found", nil)
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to fetch user", nil)
		return
	}

	respond.Success(w, http.StatusOK, "User fetched successfully", ProjectUser(user))
}

// Token handles POST /token/ (credential login).
func (h *Handlers) Token(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Validation failed", nil)
		return
	}

	req.Email = NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "Validation failed", respond.FieldErrors{
			"detail": {"Email and password are required."},
		})
		return
	}

	pair, _, err := h.authService.Login(r.Context(), req.Email, req.Password, req.StayLoggedIn)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrInactiveUser) {
			respond.Error(w, http.StatusBadRequest, "Invalid email or password", nil)
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Login failed", nil)
		return
	}

	metrics.Default().IncCounter("logins_total")
	setRefreshCookie(w, pair)
	respond.Success(w, http.StatusOK, "Login successful.", map[string]string{
		"access": pair.Access,
	})
}

// TokenRefresh handles POST /token/refresh/. The refresh token is read from
// the HttpOnly cookie, with a body field as fallback for non-browser clients.
func (h *Handlers) TokenRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		refreshToken = cookie.Value
	}
	if refreshToken == "" {
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			refreshToken = req.Refresh
		}
	}

	if refreshToken == "" {
		respond.FieldError(w, http.StatusBadRequest, "Validation failed",
			"refresh", "This field is required.")
		return
	}

	access, err := h.authService.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			respond.Error(w, http.StatusBadRequest, "Token is invalid or expired", nil)
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Token refresh failed", nil)
		return
	}

	respond.Success(w, http.StatusOK, "Token refreshed successfully.", map[string]string{
		"access": access,
	})
}

// TokenVerify handles POST /token/verify/.
func (h *Handlers) TokenVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		respond.FieldError(w, http.StatusBadRequest, "Validation failed",
			"token", "This field is required.")
		return
	}

	if err := h.authService.VerifyToken(req.Token); err != nil {
		respond.Error(w, http.StatusBadRequest, "Token is invalid or expired", nil)
		return
	}

	respond.Success(w, http.StatusOK, "Token is valid", nil)
}

// PasswordResetRequestHandler handles POST /password-reset/.
func (h *Handlers) PasswordResetRequestHandler(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Failed to send email", nil)
		return
	}

	req.Email = NormalizeEmail(req.Email)
	if req.Email == "" {
		respond.FieldError(w, http.StatusBadRequest, "Failed to send email",
			"email", "This field is required.")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		respond.FieldError(w, http.StatusBadRequest, "Failed to send email",
			"email", "Enter a valid email address.")
		return
	}

	if !h.limiter.Allow(r.Context(), "pwreset:ip:"+clientIP(r), resetRequestPerIPLimit, resetLimitWindow) ||
		!h.limiter.Allow(r.Context(), "pwreset:email:"+req.Email, resetRequestPerEmailLimit, resetLimitWindow) {
		respond.Error(w, http.StatusTooManyRequests, "Too many requests, please try again later", nil)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			respond.FieldError(w, http.StatusBadRequest, "Failed to send email",
				"email", "No user is associated with this email.")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "Failed to send email", nil)
		return
	}

	metrics.Default().IncCounter("password_reset_requests_total")
	respond.Success(w, http.StatusOK, "Password reset link sent.", nil)
}

// PasswordResetConfirmHandler handles POST /password-reset/confirm/.
func (h *Handlers) PasswordResetConfirmHandler(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Failed to confirm password", nil)
		return
	}

	fieldErrs := respond.FieldErrors{}
	if req.UIDB64 == "" {
		fieldErrs["uidb64"] = append(fieldErrs["uidb64"], "This field is required.")
	}
	if req.Token == "" {
		fieldErrs["token"] = append(fieldErrs["token"], "This field is required.")
	}
	if req.NewPassword == "" {
		fieldErrs["new_password"] = append(fieldErrs["new_password"], "This field is required.")
	} else if violations := ValidatePassword(req.NewPassword, "", ""); len(violations) > 0 {
		fieldErrs["new_password"] = append(fieldErrs["new_password"], violations...)
	}
	if len(fieldErrs) > 0 {
		respond.Error(w, http.StatusBadRequest, "Failed to confirm password", fieldErrs)
		return
	}

	if !h.limiter.Allow(r.Context(), "pwconfirm:ip:"+clientIP(r), resetConfirmPerIPLimit, resetLimitWindow) {
		respond.Error(w, http.StatusTooManyRequests, "Too many requests, please try again later", nil)
		return
	}

	err := h.authService.ConfirmPasswordReset(r.Context(), req.UIDB64, req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidResetUser):
			respond.FieldError(w, http.StatusBadRequest, "Failed to confirm password",
				"non_field_errors", "Invalid token or user ID.")
		case errors.Is(err, ErrInvalidResetToken):
			respond.FieldError(w, http.StatusBadRequest, "Failed to confirm password",
				"non_field_errors", "Invalid or expired token.")
		default:
			respond.Error(w, http.StatusInternalServerError, "Failed to confirm password", nil)
		}
		return
	}

	metrics.Default().IncCounter("password_resets_total")
	respond.Success(w, http.StatusOK, "Password has been reset successfully.", nil)
}

// NormalizeEmail lowercases and trims an email address. Uniqueness is
// enforced on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProjectUser maps a user record to its API projection.
func ProjectUser(user *db.User) *UserProjection {
	return &UserProjection{
		ID:           user.ID.String(),
		FullName:     user.FullName,
		Email:        user.Email,
		ProfilePhoto: user.ProfilePhoto,
	}
}

// setRefreshCookie delivers the refresh token out of reach of script access.
// SameSite=None because the storefront runs on a different origin.
func setRefreshCookie(w http.ResponseWriter, pair *TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.Refresh,
		Path:     "/",
		MaxAge:   pair.RefreshMaxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
