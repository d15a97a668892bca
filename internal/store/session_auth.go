package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/pavelanni/exammgr/internal/model"
)

// DefaultSessionTTL is how long a login stays valid unless SetSessionTTL changes it.
const DefaultSessionTTL = 24 * time.Hour

// SetSessionTTL sets the lifetime of sessions created afterwards. Non-positive values
// restore DefaultSessionTTL.
func (s *Store) SetSessionTTL(d time.Duration) {
	if d <= 0 {
		d = DefaultSessionTTL
	}
	s.sessionTTL = d
}

func (s *Store) ttl() time.Duration {
	if s.sessionTTL <= 0 {
		return DefaultSessionTTL
	}
	return s.sessionTTL
}

// CreateAuthSession issues a login token for a user.
func (s *Store) CreateAuthSession(userID int64) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	now := time.Now()
	if _, err := s.exec(s.db,
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, now, now.Add(s.ttl()),
	); err != nil {
		return "", err
	}
	return token, nil
}

// GetAuthSession returns the session behind token. Unknown and expired tokens yield
// nil; an expired row is removed on the way.
func (s *Store) GetAuthSession(token string) (*model.AuthSession, error) {
	var sess model.AuthSession
	err := s.queryRow(s.db,
		`SELECT id, user_id, created_at, expires_at FROM auth_sessions WHERE id = ?`, token,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, err
	case !time.Now().Before(sess.ExpiresAt):
		_ = s.DeleteAuthSession(token)
		return nil, nil
	}
	return &sess, nil
}

// DeleteAuthSession ends one login.
func (s *Store) DeleteAuthSession(token string) error {
	_, err := s.exec(s.db, `DELETE FROM auth_sessions WHERE id = ?`, token)
	return err
}

// DeleteUserSessions ends every login of a user and reports how many were removed.
func (s *Store) DeleteUserSessions(userID int64) (int64, error) {
	res, err := s.exec(s.db, `DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupExpiredSessions purges expired logins and reports how many were removed.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.exec(s.db, `DELETE FROM auth_sessions WHERE expires_at <= ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
