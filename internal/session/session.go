// Package session persists the logged-in staff identity between requests
// and process restarts.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hermandad.org/internal/domain"
)

// DefaultKey is the key the CLI stores its single session under.
const DefaultKey = "user"

var (
	ErrNotFound   = errors.New("session: not found")
	ErrInvalidKey = errors.New("session: invalid key")
)

// Session is the persisted identity of a logged-in staff user.
type Session struct {
	UserID    string      `json:"uid"`
	Name      string      `json:"nombre"`
	LastName  string      `json:"apellido,omitempty"`
	Email     string      `json:"email"`
	Username  string      `json:"username,omitempty"`
	Role      domain.Role `json:"role"`
	Token     string      `json:"token"`
	CreatedAt time.Time   `json:"createdAt"`
}

// FromUser builds a session from a login response.
func FromUser(u domain.User, now time.Time) Session {
	return Session{
		UserID:    u.Key(),
		Name:      u.Name,
		LastName:  u.LastName,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		Token:     u.Token,
		CreatedAt: now.UTC(),
	}
}

func (s Session) FullName() string {
	return strings.TrimSpace(s.Name + " " + s.LastName)
}

// ExpiresAt reads the exp claim of the token. The signature is not
// verified; the API remains the authority on validity.
func (s Session) ExpiresAt() (time.Time, bool) {
	if s.Token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the session can no longer be used at now.
// A missing or malformed token counts as expired; a well-formed token
// without exp does not.
func (s Session) Expired(now time.Time) bool {
	if s.Token == "" {
		return true
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

// Store persists sessions by key.
type Store interface {
	Load(ctx context.Context, key string) (Session, error)
	Save(ctx context.Context, key string, s Session) error
	Clear(ctx context.Context, key string) error
}

func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// ttl is the time left on the token, or fallback when the token has no exp.
func ttl(s Session, now time.Time, fallback time.Duration) time.Duration {
	if exp, ok := s.ExpiresAt(); ok {
		if d := exp.Sub(now); d > 0 {
			return d
		}
		return time.Second
	}
	return fallback
}
