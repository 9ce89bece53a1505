package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("auth: no session")
	ErrSessionExpired  = errors.New("auth: session expired")
	ErrForbidden       = errors.New("auth: forbidden")
)
