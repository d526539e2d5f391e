package auth

import (
	"database/sql"
	"fmt"
	"time"
)

// Session is a signed-in admin browser.
type Session struct {
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore handles session persistence in SQLite.
type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionStore creates a store backed by the given SQL database.
// The admin_session table must already exist.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Create issues a fresh token valid for ttl.
func (s *SessionStore) Create(ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &Session{Token: token, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	_, err = s.db.Exec(`
		INSERT INTO admin_session (token, created_at, expires_at)
		VALUES (?, ?, ?)`,
		sess.Token, sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Get returns the session for token, or nil if none.
func (s *SessionStore) Get(token string) *Session {
	if token == "" {
		return nil
	}
	var sess Session
	var createdUnix, expiresUnix int64
	err := s.db.QueryRow(`
		SELECT token, created_at, expires_at
		FROM admin_session
		WHERE token = ?`, token).
		Scan(&sess.Token, &createdUnix, &expiresUnix)
	if err != nil {
		return nil
	}
	sess.CreatedAt = time.Unix(createdUnix, 0)
	sess.ExpiresAt = time.Unix(expiresUnix, 0)
	return &sess
}

// Validate returns the live session for token. Expired sessions are removed.
func (s *SessionStore) Validate(token string) (*Session, error) {
	sess := s.Get(token)
	if sess == nil {
		return nil, ErrUnauthorized
	}
	if sess.Expired(s.now()) {
		s.Delete(token)
		return nil, ErrUnauthorized
	}
	return sess, nil
}

// Delete removes one session. Unknown tokens are ignored.
func (s *SessionStore) Delete(token string) {
	s.db.Exec("DELETE FROM admin_session WHERE token = ?", token)
}

// Prune removes expired sessions and returns how many were dropped.
func (s *SessionStore) Prune() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM admin_session WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
