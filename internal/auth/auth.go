// Package auth implements the credential collaborator: user registration,
// login, and opaque principal tokens. The access-control engine only ever
// sees the principal id this package produces; everything else about
// identity stays behind this boundary.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	// ErrCredentials covers unknown users and wrong passwords alike.
	ErrCredentials = errors.New("invalid credentials")
	// ErrUserExists indicates the username or email is already taken.
	ErrUserExists = errors.New("username or email already taken")
	// ErrTokenInvalid indicates a missing, malformed, or expired token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidInput indicates a registration field outside its bounds.
	ErrInvalidInput = errors.New("invalid registration input")
)

// Registration bounds, matching the service's account policy.
const (
	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 8
)

// User is an account row.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// UserStore is the persistence port for accounts.
type UserStore interface {
	// CreateUser persists a new account and returns its id. A duplicate
	// username or email returns ErrUserExists.
	CreateUser(ctx context.Context, u *User) (int64, error)
	// GetByUsername returns the account or ErrCredentials when absent.
	GetByUsername(ctx context.Context, username string) (*User, error)
	// TouchLastLogin records a successful login instant.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// Clock abstracts time for deterministic token tests.
type Clock interface{ Now() time.Time }

// Service issues and verifies principal tokens (HS256 JWTs) and manages
// account credentials with bcrypt.
type Service struct {
	Users    UserStore
	Secret   []byte
	TokenTTL time.Duration
	Clock    Clock
}

// Register validates the fields, hashes the password, and creates the account.
func (s *Service) Register(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, ErrInvalidInput
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}
	if len(password) < minPasswordLen {
		return nil, ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.Clock.Now(),
	}
	id, err := s.Users.CreateUser(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id
	return u, nil
}

// Login verifies the credentials and returns a signed principal token. An
// unknown username and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	u, err := s.Users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrCredentials
	}
	now := s.Clock.Now()
	if err := s.Users.TouchLastLogin(ctx, u.ID, now); err != nil {
		// Bookkeeping only; the login still succeeds.
		slog.Warn("touch last login", "user_id", u.ID, "err", err)
	}
	token, err := s.issue(u.ID, now)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) issue(userID int64, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TokenTTL)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.Secret)
}

// Verify parses a token and returns the principal id it carries.
func (s *Service) Verify(tokenString string) (int64, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.Secret, nil
	}, jwt.WithTimeFunc(s.Clock.Now))
	if err != nil || !tok.Valid {
		return 0, ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, ErrTokenInvalid
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return id, nil
}
