package hooks

import (
	"context"

	"hermandad.org/internal/api"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/notify"
)

type TurnAPI interface {
	ListTurns(ctx context.Context) ([]domain.Turn, error)
	GetTurn(ctx context.Context, id string) (domain.Turn, error)
	TurnsByProcession(ctx context.Context, processionID string) ([]domain.Turn, error)
	CreateTurn(ctx context.Context, t domain.Turn) error
	UpdateTurn(ctx context.Context, id string, t domain.Turn) error
	DeleteTurn(ctx context.Context, id string) error
	InventoryPDF(ctx context.Context, processionID string) (api.Document, error)
}

// Turns caches all turns, the selected turn and the turns of each procession.
type Turns struct {
	base
	api TurnAPI

	list         Slot[[]domain.Turn]
	current      Slot[domain.Turn]
	byProcession keyed[[]domain.Turn]
}

func NewTurns(c TurnAPI, n notify.Notifier) *Turns {
	return &Turns{base: base{notifier: n}, api: c}
}

func (h *Turns) List(ctx context.Context) ([]domain.Turn, error) {
	return fetch(&h.base, &h.list, "Error al cargar los turnos", func() ([]domain.Turn, error) {
		return h.api.ListTurns(ctx)
	})
}

func (h *Turns) Cached() []domain.Turn { return h.list.Value() }

func (h *Turns) Get(ctx context.Context, id string) (domain.Turn, error) {
	return fetch(&h.base, &h.current, "Error al obtener el turno", func() (domain.Turn, error) {
		return h.api.GetTurn(ctx, id)
	})
}

func (h *Turns) ByProcession(ctx context.Context, processionID string) ([]domain.Turn, error) {
	return fetch(&h.base, h.byProcession.slot(processionID), "Error al cargar los turnos de la procesión", func() ([]domain.Turn, error) {
		return h.api.TurnsByProcession(ctx, processionID)
	})
}

func (h *Turns) CachedByProcession(processionID string) []domain.Turn {
	v, _ := h.byProcession.get(processionID)
	return v
}

// Find looks a turn up in the cached listing of a procession.
func (h *Turns) Find(processionID, turnID string) (domain.Turn, bool) {
	for _, t := range h.CachedByProcession(processionID) {
		if t.Key() == turnID {
			return t, true
		}
	}
	return domain.Turn{}, false
}

func (h *Turns) Create(ctx context.Context, t domain.Turn) error {
	err := h.run("Error al crear el turno", func() error {
		return h.api.CreateTurn(ctx, t)
	})
	if err != nil {
		return err
	}
	h.success("Turno creado correctamente")
	h.refresh(ctx, t.Procession.ID)
	return nil
}

func (h *Turns) Update(ctx context.Context, id string, t domain.Turn) error {
	err := h.run("Error al actualizar el turno", func() error {
		return h.api.UpdateTurn(ctx, id, t)
	})
	if err != nil {
		return err
	}
	h.success("Turno actualizado correctamente")
	h.refresh(ctx, t.Procession.ID)
	return nil
}

// Delete removes a turn; processionID selects the listing to refetch.
func (h *Turns) Delete(ctx context.Context, id, processionID string) error {
	err := h.run("Error al eliminar el turno", func() error {
		return h.api.DeleteTurn(ctx, id)
	})
	if err != nil {
		return err
	}
	h.success("Turno eliminado correctamente")
	h.refresh(ctx, processionID)
	return nil
}

func (h *Turns) Inventory(ctx context.Context, processionID string) (api.Document, error) {
	var doc api.Document
	err := h.run("Error al descargar el inventario", func() (err error) {
		doc, err = h.api.InventoryPDF(ctx, processionID)
		return err
	})
	return doc, err
}

func (h *Turns) refresh(ctx context.Context, processionID string) {
	if _, loaded := h.list.Get(); loaded {
		_, _ = h.List(ctx)
	}
	if processionID != "" {
		_, _ = h.ByProcession(ctx, processionID)
	}
}
