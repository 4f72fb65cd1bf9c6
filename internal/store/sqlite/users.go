package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/skm5786/linkvault/internal/auth"
)

var _ auth.UserStore = (*Store)(nil)

// CreateUser persists a new account row. Unique-constraint violations on
// username or email surface as auth.ErrUserExists.
func (s *Store) CreateUser(ctx context.Context, u *auth.User) (int64, error) {
	const q = `INSERT INTO users (username, email, password_hash, created_at) VALUES (?,?,?,?)`
	res, err := s.db.ExecContext(ctx, q, u.Username, u.Email, u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return 0, auth.ErrUserExists
		}
		return 0, err
	}
	return res.LastInsertId()
}

// GetByUsername returns the account row or auth.ErrCredentials when absent,
// so callers cannot probe for usernames.
func (s *Store) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	const q = `SELECT id, username, email, password_hash, created_at, last_login FROM users WHERE username=?`
	var (
		u         auth.User
		createdAt int64
		lastLogin sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, q, username).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrCredentials
		}
		return nil, err
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	if lastLogin.Valid {
		t := time.UnixMilli(lastLogin.Int64).UTC()
		u.LastLogin = &t
	}
	return &u, nil
}

// TouchLastLogin records a successful login instant.
func (s *Store) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	const q = `UPDATE users SET last_login=? WHERE id=?`
	_, err := s.db.ExecContext(ctx, q, at.UnixMilli(), id)
	return err
}
