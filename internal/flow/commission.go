package flow

import (
	"context"
	"errors"
	"sync"

	"hermandad.org/internal/api"
	"hermandad.org/internal/audit"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
)

// CommissionState is what the commission payment screen renders.
type CommissionState struct {
	Devotee     *domain.Devotee  `json:"devotee,omitempty"`
	Assignments []AssignmentView `json:"assignments"`
	Selected    *AssignmentView  `json:"selected,omitempty"`
	Amount      domain.Money     `json:"amount"`
	Busy        bool             `json:"busy"`
}

// Commission records partial and final payments towards commission turns.
type Commission struct {
	gate
	devotees *hooks.Devotees
	payments *hooks.CommissionPayments
	viewer   InvoiceViewer
	notifier notify.Notifier

	mu        sync.Mutex
	devoteeID string
	devotee   *domain.Devotee
	turnID    string
	amount    domain.Money
}

func NewCommission(d *hooks.Devotees, p *hooks.CommissionPayments, v InvoiceViewer, n notify.Notifier) *Commission {
	return &Commission{devotees: d, payments: p, viewer: v, notifier: n}
}

// SelectDevotee fetches the devotee and resets the turn and amount.
func (f *Commission) SelectDevotee(ctx context.Context, id string) (domain.Devotee, error) {
	f.mu.Lock()
	f.devoteeID, f.devotee, f.turnID, f.amount = id, nil, "", 0
	f.mu.Unlock()
	if id == "" {
		return domain.Devotee{}, nil
	}
	d, err := f.devotees.Get(ctx, id)
	if err != nil {
		return domain.Devotee{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devoteeID != id {
		return domain.Devotee{}, hooks.ErrSuperseded
	}
	f.devotee = &d
	return d, nil
}

// SelectTurn picks one of the devotee's commission assignments.
func (f *Commission) SelectTurn(turnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devotee == nil {
		return ErrIncomplete
	}
	for _, a := range derive.CommissionAssignments(*f.devotee) {
		if a.TurnKey() == turnID {
			f.turnID = turnID
			return nil
		}
	}
	return ErrNotEligible
}

func (f *Commission) SetAmount(m domain.Money) {
	f.mu.Lock()
	f.amount = m
	f.mu.Unlock()
}

func (f *Commission) State() CommissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := CommissionState{Amount: f.amount, Busy: f.Busy(), Assignments: []AssignmentView{}}
	if f.devotee == nil {
		return st
	}
	d := *f.devotee
	st.Devotee = &d
	for _, a := range derive.CommissionAssignments(d) {
		v := viewAssignment(a)
		st.Assignments = append(st.Assignments, v)
		if a.TurnKey() == f.turnID {
			sel := v
			st.Selected = &sel
		}
	}
	return st
}

// Reset clears every selection.
func (f *Commission) Reset() {
	f.mu.Lock()
	f.devoteeID, f.devotee, f.turnID, f.amount = "", nil, "", 0
	f.mu.Unlock()
}

func (f *Commission) selection() (domain.Devotee, domain.Assignment, domain.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devotee == nil || f.turnID == "" {
		return domain.Devotee{}, domain.Assignment{}, 0, ErrIncomplete
	}
	a, ok := derive.FindAssignment(*f.devotee, f.turnID)
	if !ok {
		return domain.Devotee{}, domain.Assignment{}, 0, ErrNotEligible
	}
	return *f.devotee, a, f.amount, nil
}

// Submit pays the entered amount towards the selected turn. On success the
// devotee is refetched, the turn and amount are cleared and the invoice opens.
func (f *Commission) Submit(ctx context.Context) (api.Receipt, error) {
	if err := f.enter(); err != nil {
		return api.Receipt{}, err
	}
	defer f.leave()

	d, a, amount, err := f.selection()
	if err != nil {
		return api.Receipt{}, rejected(f.notifier, "Seleccione un devoto y un turno", err)
	}
	if err := derive.ValidatePayment(amount, derive.Balance(a)); err != nil {
		msg := "El monto debe ser mayor a cero"
		if errors.Is(err, derive.ErrAmountExceedsBalance) {
			msg = "El monto excede el saldo pendiente"
		}
		return api.Receipt{}, rejected(f.notifier, msg, err)
	}
	rec, err := f.payments.Pay(ctx, api.CommissionPayment{DevoteeID: d.Key(), TurnID: a.TurnKey(), Amount: amount})
	if err != nil {
		return api.Receipt{}, err
	}
	f.afterPayment(ctx, d.Key())
	return rec, finish(ctx, f.notifier, f.viewer, audit.EventCommissionPayment, rec.InvoiceNumber(), map[string]any{
		"devotee_id": d.Key(),
		"turn_id":    a.TurnKey(),
		"amount":     amount.String(),
	})
}

// CompletePayment settles the whole remaining balance of the selected turn.
func (f *Commission) CompletePayment(ctx context.Context) (api.Receipt, error) {
	if err := f.enter(); err != nil {
		return api.Receipt{}, err
	}
	defer f.leave()

	d, a, _, err := f.selection()
	if err != nil {
		return api.Receipt{}, rejected(f.notifier, "Seleccione un devoto y un turno", err)
	}
	remaining := derive.Balance(a)
	if remaining <= 0 {
		return api.Receipt{}, rejected(f.notifier, "El turno ya está pagado", derive.ErrNonPositiveAmount)
	}
	rec, err := f.payments.Complete(ctx, api.CommissionPayment{DevoteeID: d.Key(), TurnID: a.TurnKey(), Amount: remaining})
	if err != nil {
		return api.Receipt{}, err
	}
	f.afterPayment(ctx, d.Key())
	return rec, finish(ctx, f.notifier, f.viewer, audit.EventPaymentCompleted, rec.InvoiceNumber(), map[string]any{
		"devotee_id": d.Key(),
		"turn_id":    a.TurnKey(),
		"amount":     remaining.String(),
	})
}

// afterPayment refetches the devotee, which also clears turn and amount.
func (f *Commission) afterPayment(ctx context.Context, devoteeID string) {
	_, _ = f.SelectDevotee(ctx, devoteeID)
}
