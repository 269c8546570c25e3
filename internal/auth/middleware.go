package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/baminashop/backend/internal/respond"
	"github.com/google/uuid"
)

type contextKey string

const UserContextKey contextKey = "user"

type UserContext struct {
	UserID uuid.UUID
	Email  string
}

// Middleware enforces a valid bearer access token and puts the caller into
// the request context.
func Middleware(authService *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respond.Error(w, http.StatusUnauthorized, "Authentication credentials were not provided.", nil)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				respond.Error(w, http.StatusUnauthorized, "Invalid authorization header format", nil)
				return
			}

			claims, err := authService.ValidateAccessToken(parts[1])
			if err != nil {
				if err == ErrTokenExpired {
					respond.Error(w, http.StatusUnauthorized, "Access token has expired", nil)
					return
				}
				respond.Error(w, http.StatusUnauthorized, "Invalid access token", nil)
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				respond.Error(w, http.StatusUnauthorized, "Invalid access token", nil)
				return
			}

			userCtx := &UserContext{
				UserID: userID,
				Email:  claims.Email,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, userCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserFromContext(ctx context.Context) *UserContext {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	if !ok {
		return nil
	}
	return user
}
