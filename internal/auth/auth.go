// Package auth guards the admin surface: one shared password, SQLite-backed
// session tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// CookieName carries the session token for browser clients.
const CookieName = "sphere_session"

var (
	// ErrUnauthorized is returned for a bad password or unknown token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrDisabled is returned when no admin password is configured.
	ErrDisabled = errors.New("admin login disabled")
)

// GenerateToken returns 32 random bytes, URL-safe base64 encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Admin checks the admin password and manages sessions.
type Admin struct {
	password string
	ttl      time.Duration
	store    *SessionStore
}

// NewAdmin returns an Admin. An empty password disables login.
func NewAdmin(password string, ttl time.Duration, store *SessionStore) *Admin {
	return &Admin{password: password, ttl: ttl, store: store}
}

// Enabled reports whether a password is configured.
func (a *Admin) Enabled() bool {
	return a.password != ""
}

// Login verifies password and opens a session.
func (a *Admin) Login(password string) (*Session, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	if !passwordEqual(password, a.password) {
		return nil, ErrUnauthorized
	}
	if _, err := a.store.Prune(); err != nil {
		return nil, err
	}
	return a.store.Create(a.ttl)
}

// Logout drops the session for token.
func (a *Admin) Logout(token string) {
	a.store.Delete(token)
}

// Check validates token.
func (a *Admin) Check(token string) (*Session, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	return a.store.Validate(token)
}

// passwordEqual compares fixed-size digests so timing does not leak length.
func passwordEqual(got, want string) bool {
	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}

// TokenFromRequest reads "Authorization: Bearer <token>" or the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
