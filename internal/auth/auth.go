package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hermandad.org/internal/obs"
	"hermandad.org/internal/session"
)

// Authenticate loads the session stored under key and resolves its principal.
// An expired session is cleared from the store before ErrSessionExpired is
// returned.
func Authenticate(ctx context.Context, store session.Store, key string, now time.Time) (Principal, error) {
	s, err := store.Load(ctx, key)
	if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrInvalidKey) {
		return Principal{}, ErrUnauthenticated
	}
	if err != nil {
		return Principal{}, fmt.Errorf("load session: %w", err)
	}
	if s.Expired(now) {
		if cerr := store.Clear(ctx, key); cerr != nil {
			obs.Warn("clear expired session failed", map[string]any{"error": cerr.Error()})
		}
		return Principal{}, ErrSessionExpired
	}
	return NewPrincipal(s), nil
}

// Require returns ErrForbidden unless the principal in ctx holds capability.
func Require(ctx context.Context, capability string) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	if !p.HasPermission(capability) {
		return p, ErrForbidden
	}
	return p, nil
}
