package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/baminashop/backend/internal/db"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserStore is an in-memory UserStore for handler and service tests.
type fakeUserStore struct {
	users map[uuid.UUID]*db.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[uuid.UUID]*db.User)}
}

func (s *fakeUserStore) Create(ctx context.Context, user *db.User) error {
	for _, u := range s.users {
		if u.Email == user.Email {
			return db.ErrEmailExists
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *fakeUserStore) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, db.ErrUserNotFound
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*db.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *fakeUserStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	u, ok := s.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *fakeUserStore) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	u, ok := s.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.LastLogin.Time = at
	u.LastLogin.Valid = true
	return nil
}

func (s *fakeUserStore) UpdateProfilePhoto(ctx context.Context, id uuid.UUID, photoURL string) error {
	u, ok := s.users[id]
	if !ok {
		return db.ErrUserNotFound
	}
	u.ProfilePhoto = photoURL
	return nil
}

// fakeMailer records the last password-reset email instead of sending it.
type fakeMailer struct {
	toEmail   string
	userName  string
	resetLink string
	sendCount int
	err       error
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, toEmail, userName, resetLink string) error {
	m.toEmail = toEmail
	m.userName = userName
	m.resetLink = resetLink
	m.sendCount++
	return m.err
}

func newTestService(store *fakeUserStore, mailer *fakeMailer) *Service {
	return NewService(store, mailer, Config{
		JWTSecret:       "test-secret-key-for-auth-tests",
		FrontendBaseURL: "https://shop.example.com",
		ResetTokenTTL:   24 * time.Hour,
	})
}

func mustRegister(t *testing.T, svc *Service, email, password string) (*TokenPair, *db.User) {
	t.Helper()
	pair, user, err := svc.Register(context.Background(), "Test User", email, password, false)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return pair, user
}

func TestService_Register(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestService(store, &fakeMailer{})

	pair, user := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	if pair.Access == "" || pair.Refresh == "" {
		t.Error("expected non-empty token pair")
	}
	if pair.RefreshMaxAge != int(RefreshTokenExpiry.Seconds()) {
		t.Errorf("expected refresh max-age %d, got %d", int(RefreshTokenExpiry.Seconds()), pair.RefreshMaxAge)
	}
	if user.PasswordHash == "sturdy-hoist-42" {
		t.Error("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("sturdy-hoist-42")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
	if !user.IsActive {
		t.Error("expected new user to be active")
	}
}

func TestService_Register_StayLoggedIn(t *testing.T) {
	svc := newTestService(newFakeUserStore(), &fakeMailer{})

	pair, _, err := svc.Register(context.Background(), "Bob", "bob@example.com", "sturdy-hoist-42", true)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if pair.RefreshMaxAge != int(RefreshTokenExpiryExtended.Seconds()) {
		t.Errorf("expected refresh max-age %d, got %d", int(RefreshTokenExpiryExtended.Seconds()), pair.RefreshMaxAge)
	}
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	svc := newTestService(newFakeUserStore(), &fakeMailer{})
	mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	_, _, err := svc.Register(context.Background(), "Alice Again", "alice@example.com", "sturdy-hoist-42", false)
	if !errors.Is(err, db.ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestService_Login(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestService(store, &fakeMailer{})
	_, user := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	pair, got, err := svc.Login(context.Background(), "alice@example.com", "sturdy-hoist-42", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user %s, got %s", user.ID, got.ID)
	}
	if pair.Access == "" || pair.Refresh == "" {
		t.Error("expected non-empty token pair")
	}

	stored, _ := store.GetByID(context.Background(), user.ID)
	if !stored.LastLogin.Valid {
		t.Error("expected last_login to be set after login")
	}
}

func TestService_Login_Failures(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestService(store, &fakeMailer{})
	_, user := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	tests := []struct {
		name     string
		email    string
		password string
		setup    func()
		wantErr  error
	}{
		{
			name:     "wrong password",
			email:    "alice@example.com",
			password: "not-the-password",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			email:    "nobody@example.com",
			password: "sturdy-hoist-42",
			wantErr:  ErrInvalidCredentials,
		},
		{
			name:     "inactive user",
			email:    "alice@example.com",
			password: "sturdy-hoist-42",
			setup: func() {
				store.users[user.ID].IsActive = false
			},
			wantErr: ErrInactiveUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup()
			}
			_, _, err := svc.Login(context.Background(), tt.email, tt.password, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestService_Refresh(t *testing.T) {
	svc := newTestService(newFakeUserStore(), &fakeMailer{})
	pair, _ := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	access, err := svc.Refresh(context.Background(), pair.Refresh)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	claims, err := svc.ValidateAccessToken(access)
	if err != nil {
		t.Fatalf("refreshed access token is invalid: %v", err)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("expected token type access, got %s", claims.TokenType)
	}
}

func TestService_Refresh_RejectsAccessToken(t *testing.T) {
	svc := newTestService(newFakeUserStore(), &fakeMailer{})
	pair, _ := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	_, err := svc.Refresh(context.Background(), pair.Access)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for access token, got %v", err)
	}
}

func TestService_Refresh_DeletedUser(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestService(store, &fakeMailer{})
	pair, user := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	delete(store.users, user.ID)

	_, err := svc.Refresh(context.Background(), pair.Refresh)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for deleted user, got %v", err)
	}
}

func TestService_Refresh_InactiveUser(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestService(store, &fakeMailer{})
	pair, user := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	store.users[user.ID].IsActive = false

	_, err := svc.Refresh(context.Background(), pair.Refresh)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for inactive user, got %v", err)
	}
}

func TestService_ValidateAccessToken_RejectsRefreshToken(t *testing.T) {
	svc := newTestService(newFakeUserStore(), &fakeMailer{})
	pair, _ := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	_, err := svc.ValidateAccessToken(pair.Refresh)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for refresh token, got %v", err)
	}
}

func TestService_VerifyToken_Tampered(t *testing.T) {
	svc := newTestService(newFakeUserStore(), &fakeMailer{})
	pair, _ := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	tampered := pair.Access[:len(pair.Access)-2] + "xx"
	if err := svc.VerifyToken(tampered); err == nil {
		t.Error("expected error for tampered token")
	}

	if err := svc.VerifyToken(pair.Access); err != nil {
		t.Errorf("expected valid token to verify, got %v", err)
	}
}

func TestService_VerifyToken_WrongSecret(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestService(store, &fakeMailer{})
	pair, _ := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	other := NewService(store, &fakeMailer{}, Config{
		JWTSecret:       "a-completely-different-secret",
		FrontendBaseURL: "https://shop.example.com",
		ResetTokenTTL:   24 * time.Hour,
	})

	if err := other.VerifyToken(pair.Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestService_RequestPasswordReset(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	_, user := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	if err := svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}

	if mailer.toEmail != "alice@example.com" {
		t.Errorf("expected mail to alice@example.com, got %s", mailer.toEmail)
	}
	if mailer.userName != "Test User" {
		t.Errorf("expected user name in mail, got %s", mailer.userName)
	}

	link, err := url.Parse(mailer.resetLink)
	if err != nil {
		t.Fatalf("reset link is not a valid URL: %v", err)
	}
	if link.Path != "/reset-password" {
		t.Errorf("expected /reset-password path, got %s", link.Path)
	}

	uidb64 := link.Query().Get("uidb64")
	token := link.Query().Get("token")
	if uidb64 == "" || token == "" {
		t.Fatal("expected uidb64 and token query parameters in reset link")
	}

	decoded, err := DecodeUserID(uidb64)
	if err != nil {
		t.Fatalf("failed to decode uidb64: %v", err)
	}
	if decoded != user.ID {
		t.Errorf("expected uidb64 to decode to %s, got %s", user.ID, decoded)
	}
}

func TestService_RequestPasswordReset_UnknownEmail(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestService(newFakeUserStore(), mailer)

	err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	if !errors.Is(err, db.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if mailer.sendCount != 0 {
		t.Error("expected no mail for unknown email")
	}
}

func TestService_RequestPasswordReset_MailFailureStillSucceeds(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("sendgrid unavailable")}
	svc := newTestService(newFakeUserStore(), mailer)
	mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	if err := svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Errorf("expected success despite mail failure, got %v", err)
	}
	if mailer.sendCount != 1 {
		t.Error("expected a send attempt")
	}
}

func TestService_ConfirmPasswordReset(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	if err := svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	link, _ := url.Parse(mailer.resetLink)
	uidb64 := link.Query().Get("uidb64")
	token := link.Query().Get("token")

	if err := svc.ConfirmPasswordReset(context.Background(), uidb64, token, "brand-new-passw0rd"); err != nil {
		t.Fatalf("ConfirmPasswordReset failed: %v", err)
	}

	// Old password no longer works, new one does.
	if _, _, err := svc.Login(context.Background(), "alice@example.com", "sturdy-hoist-42", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected old password to be rejected, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "alice@example.com", "brand-new-passw0rd", false); err != nil {
		t.Errorf("expected new password to work, got %v", err)
	}

	// Resetting consumed the token: the hash changed, so the same
	// uidb64/token pair is no longer valid.
	if err := svc.ConfirmPasswordReset(context.Background(), uidb64, token, "another-passw0rd"); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected reused token to be rejected, got %v", err)
	}
}

func TestService_ConfirmPasswordReset_BadInputs(t *testing.T) {
	store := newFakeUserStore()
	mailer := &fakeMailer{}
	svc := newTestService(store, mailer)
	_, user := mustRegister(t, svc, "alice@example.com", "sturdy-hoist-42")

	if err := svc.RequestPasswordReset(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	link, _ := url.Parse(mailer.resetLink)
	goodUIDB64 := link.Query().Get("uidb64")
	goodToken := link.Query().Get("token")

	tests := []struct {
		name    string
		uidb64  string
		token   string
		wantErr error
	}{
		{"malformed uidb64", "!!!not-base64!!!", goodToken, ErrInvalidResetUser},
		{"unknown user", EncodeUserID(uuid.New()), goodToken, ErrInvalidResetUser},
		{"tampered token", goodUIDB64, goodToken + "ff", ErrInvalidResetToken},
		{"garbage token", goodUIDB64, "nodashatall", ErrInvalidResetToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ConfirmPasswordReset(context.Background(), tt.uidb64, tt.token, "brand-new-passw0rd")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// The failures above must not have touched the password.
	stored, _ := store.GetByID(context.Background(), user.ID)
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("sturdy-hoist-42")); err != nil {
		t.Error("password changed despite failed confirmations")
	}
}
