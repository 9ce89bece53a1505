package hooks

import (
	"context"

	"hermandad.org/internal/api"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/notify"
)

// DevoteeAPI is the part of the API client the devotee hook uses.
type DevoteeAPI interface {
	ListDevotees(ctx context.Context) ([]domain.Devotee, error)
	GetDevotee(ctx context.Context, id string) (domain.Devotee, error)
	DevoteesByTurn(ctx context.Context, turnID string) ([]domain.Devotee, error)
	DevoteesPage(ctx context.Context, page, limit int) (api.DevoteePage, error)
	SearchDevoteesPage(ctx context.Context, q string, page, limit int) (api.DevoteePage, error)
	CreateDevotee(ctx context.Context, in api.DevoteeInput) (domain.Devotee, error)
	UpdateDevotee(ctx context.Context, id string, in api.DevoteeInput) error
	DeleteDevotee(ctx context.Context, id string) error
}

// Devotees caches the devotee list, the selected devotee, per-turn listings
// and the last page fetched.
type Devotees struct {
	base
	api DevoteeAPI

	list    Slot[[]domain.Devotee]
	current Slot[domain.Devotee]
	page    Slot[api.DevoteePage]
	byTurn  keyed[[]domain.Devotee]
}

func NewDevotees(c DevoteeAPI, n notify.Notifier) *Devotees {
	return &Devotees{base: base{notifier: n}, api: c}
}

func (h *Devotees) List(ctx context.Context) ([]domain.Devotee, error) {
	return fetch(&h.base, &h.list, "Error al cargar los devotos", func() ([]domain.Devotee, error) {
		return h.api.ListDevotees(ctx)
	})
}

// Cached returns the last fetched list.
func (h *Devotees) Cached() []domain.Devotee { return h.list.Value() }

// Get fetches one devotee into the selection slot.
func (h *Devotees) Get(ctx context.Context, id string) (domain.Devotee, error) {
	return fetch(&h.base, &h.current, "Error al obtener el devoto", func() (domain.Devotee, error) {
		return h.api.GetDevotee(ctx, id)
	})
}

// Current returns the selected devotee, if any was fetched.
func (h *Devotees) Current() (domain.Devotee, bool) { return h.current.Get() }

// ClearCurrent drops the selection and any fetch still in flight for it.
func (h *Devotees) ClearCurrent() { h.current.Reset() }

func (h *Devotees) ByTurn(ctx context.Context, turnID string) ([]domain.Devotee, error) {
	return fetch(&h.base, h.byTurn.slot(turnID), "Error al cargar los devotos del turno", func() ([]domain.Devotee, error) {
		return h.api.DevoteesByTurn(ctx, turnID)
	})
}

func (h *Devotees) CachedByTurn(turnID string) []domain.Devotee {
	v, _ := h.byTurn.get(turnID)
	return v
}

// Page fetches one page, searching server-side when q is not blank.
func (h *Devotees) Page(ctx context.Context, q string, page, limit int) (api.DevoteePage, error) {
	return fetch(&h.base, &h.page, "Error al cargar los devotos", func() (api.DevoteePage, error) {
		if q == "" {
			return h.api.DevoteesPage(ctx, page, limit)
		}
		return h.api.SearchDevoteesPage(ctx, q, page, limit)
	})
}

func (h *Devotees) Create(ctx context.Context, in api.DevoteeInput) (domain.Devotee, error) {
	var d domain.Devotee
	err := h.run("Error al registrar el devoto", func() (err error) {
		d, err = h.api.CreateDevotee(ctx, in)
		return err
	})
	if err != nil {
		return domain.Devotee{}, err
	}
	h.success("Devoto registrado correctamente")
	h.refresh(ctx)
	return d, nil
}

func (h *Devotees) Update(ctx context.Context, id string, in api.DevoteeInput) error {
	err := h.run("Error al actualizar el devoto", func() error {
		return h.api.UpdateDevotee(ctx, id, in)
	})
	if err != nil {
		return err
	}
	h.success("Devoto actualizado correctamente")
	h.refresh(ctx)
	if cur, ok := h.current.Get(); ok && cur.Key() == id {
		_, _ = h.Get(ctx, id)
	}
	return nil
}

func (h *Devotees) Delete(ctx context.Context, id string) error {
	err := h.run("Error al eliminar el devoto", func() error {
		return h.api.DeleteDevotee(ctx, id)
	})
	if err != nil {
		return err
	}
	h.success("Devoto eliminado correctamente")
	if cur, ok := h.current.Get(); ok && cur.Key() == id {
		h.current.Reset()
	}
	h.refresh(ctx)
	return nil
}

// Refresh refetches the devotee list and the selected devotee. Failures
// are already reported by the fetches themselves.
func (h *Devotees) Refresh(ctx context.Context) {
	h.refresh(ctx)
	if cur, ok := h.current.Get(); ok && cur.Key() != "" {
		_, _ = h.Get(ctx, cur.Key())
	}
}

func (h *Devotees) refresh(ctx context.Context) {
	_, _ = h.List(ctx)
}
