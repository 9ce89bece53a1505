package hooks

import (
	"context"

	"hermandad.org/internal/api"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/notify"
)

type UserAPI interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	UpdateUser(ctx context.Context, id string, u domain.User) error
	DeleteUser(ctx context.Context, id string) error
	MyUser(ctx context.Context) (domain.User, error)
	UpdateMyUser(ctx context.Context, id string, u domain.User) (domain.User, error)
	UpdatePassword(ctx context.Context, change api.PasswordChange) error
	Register(ctx context.Context, reg api.Registration) (domain.User, error)
}

// Users caches staff accounts and the profile of the logged-in user.
type Users struct {
	base
	api UserAPI

	list    Slot[[]domain.User]
	current Slot[domain.User]
	me      Slot[domain.User]
}

func NewUsers(c UserAPI, n notify.Notifier) *Users {
	return &Users{base: base{notifier: n}, api: c}
}

func (h *Users) List(ctx context.Context) ([]domain.User, error) {
	return fetch(&h.base, &h.list, "Error al cargar los usuarios", func() ([]domain.User, error) {
		return h.api.ListUsers(ctx)
	})
}

func (h *Users) Cached() []domain.User { return h.list.Value() }

func (h *Users) Get(ctx context.Context, id string) (domain.User, error) {
	return fetch(&h.base, &h.current, "Error al obtener el usuario", func() (domain.User, error) {
		return h.api.GetUser(ctx, id)
	})
}

// Register creates a staff account.
func (h *Users) Register(ctx context.Context, reg api.Registration) (domain.User, error) {
	var u domain.User
	err := h.run("Error al registrar el usuario", func() (err error) {
		u, err = h.api.Register(ctx, reg)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	h.success("Usuario registrado correctamente")
	if _, loaded := h.list.Get(); loaded {
		_, _ = h.List(ctx)
	}
	return u, nil
}

func (h *Users) Update(ctx context.Context, id string, u domain.User) error {
	err := h.run("Error al actualizar el usuario", func() error {
		return h.api.UpdateUser(ctx, id, u)
	})
	if err != nil {
		return err
	}
	h.success("Usuario actualizado correctamente")
	_, _ = h.List(ctx)
	return nil
}

func (h *Users) Delete(ctx context.Context, id string) error {
	err := h.run("Error al eliminar el usuario", func() error {
		return h.api.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}
	h.success("Usuario eliminado correctamente")
	_, _ = h.List(ctx)
	return nil
}

// Me fetches the profile of the token holder.
func (h *Users) Me(ctx context.Context) (domain.User, error) {
	return fetch(&h.base, &h.me, "Error al cargar el perfil", func() (domain.User, error) {
		return h.api.MyUser(ctx)
	})
}

func (h *Users) UpdateMe(ctx context.Context, id string, u domain.User) (domain.User, error) {
	err := h.run("Error al actualizar el perfil", func() error {
		_, err := h.api.UpdateMyUser(ctx, id, u)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	h.success("Perfil actualizado correctamente")
	return h.Me(ctx)
}

func (h *Users) ChangePassword(ctx context.Context, change api.PasswordChange) error {
	err := h.run("Error al cambiar la contraseña", func() error {
		return h.api.UpdatePassword(ctx, change)
	})
	if err != nil {
		return err
	}
	h.success("Contraseña actualizada correctamente")
	return nil
}
