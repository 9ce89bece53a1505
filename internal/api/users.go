package api

import (
	"context"
	"net/http"

	"hermandad.org/internal/domain"
)

// PasswordChange is the body of user/updatePassword.
type PasswordChange struct {
	Current string `json:"currentPassword"`
	New     string `json:"newPassword"`
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var out struct {
		Users []domain.User `json:"users"`
	}
	if err := c.do(ctx, newCall(http.MethodGet, "user/getUsers"), &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	err := c.do(ctx, newCall(http.MethodGet, "user/getUser/:id", id), &out)
	return out.User, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, u domain.User) error {
	cl := newCall(http.MethodPut, "user/getUpdateUser/:id", id)
	cl.body = u
	return c.do(ctx, cl, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, newCall(http.MethodDelete, "user/getDeleteUser/:id", id), nil)
}

// MyUser returns the profile of the token holder.
func (c *Client) MyUser(ctx context.Context) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	err := c.do(ctx, newCall(http.MethodGet, "user/getMyUser"), &out)
	return out.User, err
}

func (c *Client) UpdateMyUser(ctx context.Context, id string, u domain.User) (domain.User, error) {
	cl := newCall(http.MethodPut, "user/updateMyUser/:id", id)
	cl.body = u
	var out struct {
		User *domain.User `json:"user"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return domain.User{}, err
	}
	if out.User == nil {
		return u, nil
	}
	return *out.User, nil
}

func (c *Client) UpdatePassword(ctx context.Context, change PasswordChange) error {
	cl := newCall(http.MethodPut, "user/updatePassword")
	cl.body = change
	return c.do(ctx, cl, nil)
}
