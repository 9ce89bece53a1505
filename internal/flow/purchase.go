package flow

import (
	"context"
	"strconv"

	"hermandad.org/internal/api"
	"hermandad.org/internal/audit"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
)

type PurchaseState struct {
	PickerState
	Busy bool `json:"busy"`
}

// Purchase registers the full-price sale of a turn to a devotee.
type Purchase struct {
	gate
	picker
	purchases *hooks.Purchases
	viewer    InvoiceViewer
}

// NewPurchase builds the flow; lowStock is the remaining count that triggers
// the low availability warning, DefaultLowStock when non-positive.
func NewPurchase(s *hooks.Set, v InvoiceViewer, n notify.Notifier, lowStock int) *Purchase {
	return &Purchase{
		picker:    picker{devotees: s.Devotees, turns: s.Turns, notifier: n, lowStock: lowStock},
		purchases: s.Purchases,
		viewer:    v,
	}
}

func (f *Purchase) State() PurchaseState {
	return PurchaseState{PickerState: f.state(), Busy: f.Busy()}
}

// Submit sends the purchase. The server may still refuse it when the
// place was sold meanwhile; that rejection is reported as any other.
func (f *Purchase) Submit(ctx context.Context) (api.Receipt, error) {
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
	rec, err := f.purchases.Register(ctx, api.Purchase{DevoteeID: d.Key(), TurnID: t.Key(), Payment: api.PaymentFull})
	if err != nil {
		return api.Receipt{}, err
	}
	f.reset(ctx)
	return rec, finish(ctx, f.notifier, f.viewer, audit.EventPurchase, rec.InvoiceNumber(), map[string]any{
		"devotee_id": d.Key(),
		"turn_id":    t.Key(),
		"price":      t.Price.String(),
	})
}

func itoa(n int) string { return strconv.Itoa(n) }
