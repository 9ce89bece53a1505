package auth

import (
	"hermandad.org/internal/domain"
	"hermandad.org/internal/session"
)

// Principal is the logged-in staff user with resolved capabilities.
type Principal struct {
	Session      session.Session
	Capabilities map[string]struct{}
}

// NewPrincipal resolves the capabilities of the session's role.
func NewPrincipal(s session.Session) Principal {
	caps := CapabilitiesFor(s.Role)
	set := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return Principal{Session: s, Capabilities: set}
}

// HasPermission reports whether the principal holds the capability key.
func (p Principal) HasPermission(key string) bool {
	_, ok := p.Capabilities[key]
	return ok
}

func (p Principal) Role() domain.Role { return p.Session.Role }

func (p Principal) UserID() string { return p.Session.UserID }
