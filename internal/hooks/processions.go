package hooks

import (
	"context"

	"hermandad.org/internal/api"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/notify"
)

type ProcessionAPI interface {
	ListProcessions(ctx context.Context) ([]domain.Procession, error)
	GetProcession(ctx context.Context, id string) (domain.Procession, error)
	CreateProcession(ctx context.Context, p domain.Procession) (domain.Procession, error)
	UpdateProcession(ctx context.Context, id string, patch api.ProcessionPatch) error
	DeleteProcession(ctx context.Context, id string) error
}

type Processions struct {
	base
	api ProcessionAPI

	list    Slot[[]domain.Procession]
	current Slot[domain.Procession]
}

func NewProcessions(c ProcessionAPI, n notify.Notifier) *Processions {
	return &Processions{base: base{notifier: n}, api: c}
}

func (h *Processions) List(ctx context.Context) ([]domain.Procession, error) {
	return fetch(&h.base, &h.list, "Error al cargar las procesiones", func() ([]domain.Procession, error) {
		return h.api.ListProcessions(ctx)
	})
}

func (h *Processions) Cached() []domain.Procession { return h.list.Value() }

// Ensure returns the cached list, fetching it on first use.
func (h *Processions) Ensure(ctx context.Context) ([]domain.Procession, error) {
	if v, ok := h.list.Get(); ok {
		return v, nil
	}
	return h.List(ctx)
}

func (h *Processions) Get(ctx context.Context, id string) (domain.Procession, error) {
	return fetch(&h.base, &h.current, "Error al obtener la procesión", func() (domain.Procession, error) {
		return h.api.GetProcession(ctx, id)
	})
}

func (h *Processions) Current() (domain.Procession, bool) { return h.current.Get() }

func (h *Processions) Create(ctx context.Context, p domain.Procession) (domain.Procession, error) {
	var out domain.Procession
	err := h.run("Error al crear la procesión", func() (err error) {
		out, err = h.api.CreateProcession(ctx, p)
		return err
	})
	if err != nil {
		return domain.Procession{}, err
	}
	h.success("Procesión creada correctamente")
	_, _ = h.List(ctx)
	return out, nil
}

func (h *Processions) Update(ctx context.Context, id string, patch api.ProcessionPatch) error {
	err := h.run("Error al actualizar la procesión", func() error {
		return h.api.UpdateProcession(ctx, id, patch)
	})
	if err != nil {
		return err
	}
	h.success("Procesión actualizada correctamente")
	_, _ = h.List(ctx)
	if cur, ok := h.current.Get(); ok && cur.Key() == id {
		_, _ = h.Get(ctx, id)
	}
	return nil
}

func (h *Processions) Delete(ctx context.Context, id string) error {
	err := h.run("Error al eliminar la procesión", func() error {
		return h.api.DeleteProcession(ctx, id)
	})
	if err != nil {
		return err
	}
	h.success("Procesión eliminada correctamente")
	if cur, ok := h.current.Get(); ok && cur.Key() == id {
		h.current.Reset()
	}
	_, _ = h.List(ctx)
	return nil
}
