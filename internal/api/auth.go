package api

import (
	"context"
	"net/http"

	"hermandad.org/internal/domain"
)

// Credentials of a staff login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"contraseña"`
}

// Registration creates a staff account.
type Registration struct {
	Name     string      `json:"nombre"`
	LastName string      `json:"apellido"`
	DPI      string      `json:"DPI,omitempty"`
	Address  string      `json:"direccion,omitempty"`
	Phone    string      `json:"telefono,omitempty"`
	Email    string      `json:"email"`
	Username string      `json:"username,omitempty"`
	Password string      `json:"contraseña"`
	Role     domain.Role `json:"role,omitempty"`
}

// Login exchanges credentials for the user profile and token.
func (c *Client) Login(ctx context.Context, creds Credentials) (domain.User, error) {
	cl := newCall(http.MethodPost, "auth/login")
	cl.body = creds
	var out struct {
		UserDetails domain.User `json:"userDetails"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return domain.User{}, err
	}
	if out.UserDetails.Token == "" {
		return domain.User{}, &Error{Kind: KindDecode, Method: cl.method, Endpoint: cl.endpoint, Message: "login response carried no token"}
	}
	return out.UserDetails, nil
}

func (c *Client) Register(ctx context.Context, reg Registration) (domain.User, error) {
	cl := newCall(http.MethodPost, "auth/register")
	cl.body = reg
	var out struct {
		User        *domain.User `json:"user"`
		UserDetails *domain.User `json:"userDetails"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return domain.User{}, err
	}
	switch {
	case out.User != nil:
		return *out.User, nil
	case out.UserDetails != nil:
		return *out.UserDetails, nil
	}
	return domain.User{}, nil
}
