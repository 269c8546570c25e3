package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/baminashop/backend/internal/db"
	"github.com/google/uuid"
)

// ResetTokenGenerator mints and checks single-use password-reset tokens.
//
// A token is "<base36 unix timestamp>-<hex HMAC-SHA256 signature>", where the
// signature covers the user id, the current password hash and the last-login
// time. Validity is recomputed against the user's current state at check time,
// so there is no revocation store: changing the password (or logging in)
// changes the signature input and silently invalidates every outstanding
// token.
type ResetTokenGenerator struct {
	secret []byte
	ttl    time.Duration
}

func NewResetTokenGenerator(secret []byte, ttl time.Duration) *ResetTokenGenerator {
	return &ResetTokenGenerator{secret: secret, ttl: ttl}
}

// Make issues a reset token bound to the user's current state.
func (g *ResetTokenGenerator) Make(user *db.User) string {
	return g.makeAt(user, time.Now().Unix())
}

func (g *ResetTokenGenerator) makeAt(user *db.User, ts int64) string {
	return strconv.FormatInt(ts, 36) + "-" + g.sign(user, ts)
}

// Check reports whether token is a valid, unexpired reset token for the
// user's current state.
func (g *ResetTokenGenerator) Check(user *db.User, token string) bool {
	tsPart, sig, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil {
		return false
	}

	now := time.Now().Unix()
	if ts > now || now-ts > int64(g.ttl.Seconds()) {
		return false
	}

	return hmac.Equal([]byte(sig), []byte(g.sign(user, ts)))
}

func (g *ResetTokenGenerator) sign(user *db.User, ts int64) string {
	var lastLogin int64
	if user.LastLogin.Valid {
		lastLogin = user.LastLogin.Time.Unix()
	}

	payload := fmt.Sprintf("%s|%s|%d|%d", user.ID, user.PasswordHash, lastLogin, ts)

	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// EncodeUserID renders a user id as the url-safe base64 value carried in
// reset links.
func EncodeUserID(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

// DecodeUserID reverses EncodeUserID.
func DecodeUserID(uidb64 string) (uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uidb64)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(string(raw))
}
