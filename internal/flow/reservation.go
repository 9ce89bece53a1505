package flow

import (
	"context"
	"sync"

	"hermandad.org/internal/api"
	"hermandad.org/internal/audit"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
)

type ReservationState struct {
	PickerState
	Kind api.PaymentKind `json:"kind"`
	Busy bool            `json:"busy"`
}

// Reservation books an ordinary turn paid in full or by half.
type Reservation struct {
	gate
	picker
	reservations *hooks.Reservations
	viewer       InvoiceViewer

	kindMu sync.Mutex
	kind   api.PaymentKind
}

func NewReservation(s *hooks.Set, v InvoiceViewer, n notify.Notifier, lowStock int) *Reservation {
	return &Reservation{
		picker:       picker{devotees: s.Devotees, turns: s.Turns, notifier: n, lowStock: lowStock, keep: derive.OrdinaryTurns},
		reservations: s.Reservations,
		viewer:       v,
		kind:         api.PaymentFull,
	}
}

// SetKind chooses COMPLETO or MEDIO.
func (f *Reservation) SetKind(k api.PaymentKind) error {
	if k != api.PaymentFull && k != api.PaymentPartial {
		return ErrNotEligible
	}
	f.kindMu.Lock()
	f.kind = k
	f.kindMu.Unlock()
	return nil
}

func (f *Reservation) currentKind() api.PaymentKind {
	f.kindMu.Lock()
	defer f.kindMu.Unlock()
	return f.kind
}

func (f *Reservation) State() ReservationState {
	return ReservationState{PickerState: f.state(), Kind: f.currentKind(), Busy: f.Busy()}
}

func (f *Reservation) Submit(ctx context.Context) (api.Receipt, error) {
	if err := f.enter(); err != nil {
		return api.Receipt{}, err
	}
	defer f.leave()

	d, t, err := f.selection()
	if err != nil {
		return api.Receipt{}, rejected(f.notifier, "Seleccione devoto, procesión y turno", err)
	}
	if derive.CheckAvailability(t, f.lowStock).SoldOut {
		return api.Receipt{}, rejected(f.notifier, "No hay turnos disponibles", derive.ErrSoldOut)
	}
	kind := f.currentKind()
	rec, err := f.reservations.Reserve(ctx, api.Reservation{DevoteeID: d.Key(), TurnID: t.Key(), Kind: kind})
	if err != nil {
		return api.Receipt{}, err
	}
	f.reset(ctx)
	return rec, finish(ctx, f.notifier, f.viewer, audit.EventReservation, rec.InvoiceNumber(), map[string]any{
		"devotee_id": d.Key(),
		"turn_id":    t.Key(),
		"kind":       string(kind),
	})
}
