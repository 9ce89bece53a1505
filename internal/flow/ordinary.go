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

// OrdinaryState is what the ordinary payment screen renders.
type OrdinaryState struct {
	Devotee    *domain.Devotee    `json:"devotee,omitempty"`
	Passwords  []string           `json:"passwords"`
	Password   string             `json:"password,omitempty"`
	Procession *domain.Procession `json:"procession,omitempty"`
	Turns      []domain.Turn      `json:"turns"`
	TurnID     string             `json:"turnId,omitempty"`
	Busy       bool               `json:"busy"`
}

// Ordinary pays an ordinary turn identified by one of the devotee's
// ORxx passwords. The password's initials pick the procession.
type Ordinary struct {
	gate
	devotees    *hooks.Devotees
	processions *hooks.Processions
	turns       *hooks.Turns
	payments    *hooks.OrdinaryPayments
	viewer      InvoiceViewer
	notifier    notify.Notifier

	mu         sync.Mutex
	devoteeID  string
	devotee    *domain.Devotee
	passwords  []string
	password   string
	procession *domain.Procession
	options    []domain.Turn
	turnID     string
}

func NewOrdinary(s *hooks.Set, v InvoiceViewer, n notify.Notifier) *Ordinary {
	return &Ordinary{
		devotees:    s.Devotees,
		processions: s.Processions,
		turns:       s.Turns,
		payments:    s.OrdinaryPayments,
		viewer:      v,
		notifier:    n,
	}
}

// SelectDevotee fetches the devotee and lists its eligible passwords. A
// devotee without any returns ErrNoEligibleTurns after notifying.
func (f *Ordinary) SelectDevotee(ctx context.Context, id string) (domain.Devotee, error) {
	f.mu.Lock()
	f.clearLocked()
	f.devoteeID = id
	f.mu.Unlock()
	if id == "" {
		return domain.Devotee{}, nil
	}
	d, err := f.devotees.Get(ctx, id)
	if err != nil {
		return domain.Devotee{}, err
	}
	f.mu.Lock()
	if f.devoteeID != id {
		f.mu.Unlock()
		return domain.Devotee{}, hooks.ErrSuperseded
	}
	f.devotee = &d
	f.passwords = derive.OrdinaryPasswords(d)
	none := len(f.passwords) == 0
	f.mu.Unlock()
	if none {
		notify.Warning(f.notifier, "El devoto no tiene turnos ordinarios para pagar")
		return d, ErrNoEligibleTurns
	}
	return d, nil
}

// SelectPassword resolves the procession encoded in password and fetches
// its ordinary turns.
func (f *Ordinary) SelectPassword(ctx context.Context, password string) ([]domain.Turn, error) {
	f.mu.Lock()
	eligible := false
	for _, p := range f.passwords {
		if p == password {
			eligible = true
			break
		}
	}
	if !eligible {
		f.mu.Unlock()
		return nil, ErrNotEligible
	}
	f.password, f.procession, f.options, f.turnID = password, nil, nil, ""
	f.mu.Unlock()

	processions, err := f.processions.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	p, err := derive.ResolveProcession(processions, password)
	if err != nil {
		msg := "No se encontró la procesión de la contraseña"
		if errors.Is(err, derive.ErrAmbiguousProcession) {
			msg = "La contraseña coincide con varias procesiones"
		}
		return nil, rejected(f.notifier, msg, err)
	}
	turns, err := f.turns.ByProcession(ctx, p.Key())
	if err != nil {
		return nil, err
	}
	options := derive.OrdinaryTurns(turns)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.password != password {
		return nil, hooks.ErrSuperseded
	}
	f.procession = &p
	f.options = options
	return options, nil
}

func (f *Ordinary) SelectTurn(turnID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.options {
		if t.Key() == turnID {
			f.turnID = turnID
			return nil
		}
	}
	return ErrNotEligible
}

func (f *Ordinary) State() OrdinaryState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := OrdinaryState{
		Passwords: append([]string{}, f.passwords...),
		Password:  f.password,
		Turns:     append([]domain.Turn{}, f.options...),
		TurnID:    f.turnID,
		Busy:      f.Busy(),
	}
	if f.devotee != nil {
		d := *f.devotee
		st.Devotee = &d
	}
	if f.procession != nil {
		p := *f.procession
		st.Procession = &p
	}
	return st
}

func (f *Ordinary) Reset() {
	f.mu.Lock()
	f.clearLocked()
	f.mu.Unlock()
}

func (f *Ordinary) clearLocked() {
	f.devoteeID, f.devotee, f.passwords = "", nil, nil
	f.password, f.procession, f.options, f.turnID = "", nil, nil, ""
}

// Submit pays the selected turn with the selected password. Success clears
// every selection and opens the invoice.
func (f *Ordinary) Submit(ctx context.Context) (api.Receipt, error) {
	if err := f.enter(); err != nil {
		return api.Receipt{}, err
	}
	defer f.leave()

	f.mu.Lock()
	var (
		devoteeID = f.devoteeID
		password  = f.password
		turn      domain.Turn
		found     bool
	)
	for _, t := range f.options {
		if t.Key() == f.turnID {
			turn, found = t, true
		}
	}
	ready := f.devotee != nil && password != "" && found
	f.mu.Unlock()

	if !ready {
		return api.Receipt{}, rejected(f.notifier, "Seleccione devoto, contraseña y turno", ErrIncomplete)
	}
	if derive.CheckAvailability(turn, 0).SoldOut {
		return api.Receipt{}, rejected(f.notifier, "No hay turnos disponibles", derive.ErrSoldOut)
	}
	rec, err := f.payments.Pay(ctx, api.OrdinaryPayment{DevoteeID: devoteeID, TurnID: turn.Key(), Password: password})
	if err != nil {
		return api.Receipt{}, err
	}
	f.Reset()
	return rec, finish(ctx, f.notifier, f.viewer, audit.EventOrdinaryPayment, rec.InvoiceNumber(), map[string]any{
		"devotee_id": devoteeID,
		"turn_id":    turn.Key(),
	})
}
