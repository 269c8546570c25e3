package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/baminashop/backend/internal/db"
	"github.com/baminashop/backend/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessTokenExpiry = 15 * time.Minute
	// Refresh lifetime depends on the "stay logged in" switch sent by the client.
	RefreshTokenExpiry         = 24 * time.Hour
	RefreshTokenExpiryExtended = 7 * 24 * time.Hour
	BcryptCost                 = 12

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	tokenIssuer = "bamina-accounts"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrInactiveUser       = errors.New("user account is disabled")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
	ErrInvalidResetUser   = errors.New("invalid token or user id")
)

// Claims is the JWT claims schema shared by access and refresh tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is a freshly issued access/refresh pair. RefreshMaxAge is the
// cookie lifetime in seconds, matching the refresh token expiry.
type TokenPair struct {
	Access        string
	Refresh       string
	RefreshMaxAge int
}

// UserStore is the persistence surface the service depends on.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateProfilePhoto(ctx context.Context, id uuid.UUID, photoURL string) error
}

// Mailer dispatches the password-reset email.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, userName, resetLink string) error
}

// Config carries the construction-time settings for the service.
type Config struct {
	JWTSecret       string
	FrontendBaseURL string
	ResetTokenTTL   time.Duration
}

type Service struct {
	users           UserStore
	mailer          Mailer
	resetTokens     *ResetTokenGenerator
	jwtSecret       []byte
	frontendBaseURL string
	log             *logger.Logger
}

func NewService(users UserStore, mailer Mailer, cfg Config) *Service {
	return &Service{
		users:           users,
		mailer:          mailer,
		resetTokens:     NewResetTokenGenerator([]byte(cfg.JWTSecret), cfg.ResetTokenTTL),
		jwtSecret:       []byte(cfg.JWTSecret),
		frontendBaseURL: cfg.FrontendBaseURL,
		log:             logger.Default().WithComponent("auth"),
	}
}

// Register creates the user and issues a token pair. The email must already be
// normalized; duplicate emails surface as db.ErrEmailExists whether they are
// caught by the pre-insert check in the handler or by the unique constraint.
func (s *Service) Register(ctx context.Context, fullName, email, password string, stayLoggedIn bool) (*TokenPair, *db.User, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	user := &db.User{
		ID:           uuid.New(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: string(passwordHash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	pair, err := s.generateTokenPair(user, stayLoggedIn)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Login checks credentials and issues a token pair. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string, stayLoggedIn bool) (*TokenPair, *db.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Not fatal for the login itself.
		s.log.Error(ctx, "failed to update last_login", err, map[string]interface{}{
			"user_id": user.ID.String(),
		})
	}

	pair, err := s.generateTokenPair(user, stayLoggedIn)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is not rotated; it stays valid until its own expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return "", err
	}

	if claims.TokenType != TokenTypeRefresh {
		return "", ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}

	if !user.IsActive {
		return "", ErrInvalidToken
	}

	return s.generateAccessToken(user)
}

// VerifyToken checks signature and expiry of any token issued by this service.
func (s *Service) VerifyToken(tokenString string) error {
	_, err := s.parseToken(tokenString)
	return err
}

// ValidateAccessToken parses an access token for the auth middleware.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// CurrentUser loads the caller's own record.
func (s *Service) CurrentUser(ctx context.Context, id uuid.UUID) (*db.User, error) {
	return s.users.GetByID(ctx, id)
}

// RequestPasswordReset builds a reset link for the account and dispatches the
// email. Dispatch is best-effort: a send failure is logged but the request
// still succeeds, so an unauthenticated caller learns nothing about the mail
// transport. The caller handles db.ErrUserNotFound.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token := s.resetTokens.Make(user)
	uidb64 := EncodeUserID(user.ID)

	query := url.Values{}
	query.Set("uidb64", uidb64)
	query.Set("token", token)
	resetLink := fmt.Sprintf("%s/reset-password?%s", s.frontendBaseURL, query.Encode())

	userName := user.FullName
	if userName == "" {
		userName = user.Email
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email, userName, resetLink); err != nil {
		s.log.Error(ctx, "failed to send password reset email", err, map[string]interface{}{
			"user_id": user.ID.String(),
		})
	}

	return nil
}

// ConfirmPasswordReset validates the uidb64/token pair against the user's
// current state and sets the new password. A decode failure and an unknown
// user id produce the same error, and persisting the new hash implicitly
// invalidates every previously issued reset token for the user.
func (s *Service) ConfirmPasswordReset(ctx context.Context, uidb64, token, newPassword string) error {
	userID, err := DecodeUserID(uidb64)
	if err != nil {
		return ErrInvalidResetUser
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return ErrInvalidResetUser
		}
		return err
	}

	if !s.resetTokens.Check(user, token) {
		return ErrInvalidResetToken
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return err
	}

	return s.users.UpdatePassword(ctx, user.ID, string(passwordHash))
}

func (s *Service) generateTokenPair(user *db.User, stayLoggedIn bool) (*TokenPair, error) {
	access, err := s.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshExpiry := RefreshTokenExpiry
	if stayLoggedIn {
		refreshExpiry = RefreshTokenExpiryExtended
	}

	refresh, err := s.signToken(&Claims{
		UserID:    user.ID.String(),
		TokenType: TokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(refreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
		},
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Access:        access,
		Refresh:       refresh,
		RefreshMaxAge: int(refreshExpiry.Seconds()),
	}, nil
}

func (s *Service) generateAccessToken(user *db.User) (string, error) {
	return s.signToken(&Claims{
		UserID:    user.ID.String(),
		Email:     user.Email,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(AccessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
		},
	})
}

func (s *Service) signToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *Service) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
