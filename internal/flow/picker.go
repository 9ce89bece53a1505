package flow

import (
	"context"
	"sync"

	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
)

// picker holds the devotee, procession and turn chosen on a sale screen.
type picker struct {
	devotees *hooks.Devotees
	turns    *hooks.Turns
	notifier notify.Notifier
	lowStock int
	// keep filters the turns offered for a procession; nil keeps all.
	keep func([]domain.Turn) []domain.Turn

	mu           sync.Mutex
	devoteeID    string
	devotee      *domain.Devotee
	processionID string
	options      []domain.Turn
	turnID       string
}

// TurnOption is one selectable turn with its availability.
type TurnOption struct {
	domain.Turn
	Label        string              `json:"label"`
	Availability derive.Availability `json:"availability"`
}

// PickerState is the shared part of the sale screens.
type PickerState struct {
	Devotee      *domain.Devotee `json:"devotee,omitempty"`
	ProcessionID string          `json:"processionId,omitempty"`
	Turns        []TurnOption    `json:"turns"`
	TurnID       string          `json:"turnId,omitempty"`
}

func (p *picker) SelectDevotee(ctx context.Context, id string) (domain.Devotee, error) {
	p.mu.Lock()
	p.devoteeID, p.devotee = id, nil
	p.mu.Unlock()
	if id == "" {
		return domain.Devotee{}, nil
	}
	d, err := p.devotees.Get(ctx, id)
	if err != nil {
		return domain.Devotee{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.devoteeID != id {
		return domain.Devotee{}, hooks.ErrSuperseded
	}
	p.devotee = &d
	return d, nil
}

// SelectProcession fetches the procession's turns and clears the turn.
func (p *picker) SelectProcession(ctx context.Context, id string) ([]domain.Turn, error) {
	p.mu.Lock()
	p.processionID, p.options, p.turnID = id, nil, ""
	p.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	turns, err := p.turns.ByProcession(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.keep != nil {
		turns = p.keep(turns)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.processionID != id {
		return nil, hooks.ErrSuperseded
	}
	p.options = turns
	return turns, nil
}

// SelectTurn refuses sold-out turns and warns when few places remain.
func (p *picker) SelectTurn(turnID string) (derive.Availability, error) {
	p.mu.Lock()
	var (
		turn  domain.Turn
		found bool
	)
	for _, t := range p.options {
		if t.Key() == turnID {
			turn, found = t, true
			break
		}
	}
	if !found {
		p.mu.Unlock()
		return derive.Availability{}, ErrNotEligible
	}
	av := derive.CheckAvailability(turn, p.lowStock)
	if !av.SoldOut {
		p.turnID = turnID
	}
	p.mu.Unlock()

	switch {
	case av.SoldOut:
		return av, rejected(p.notifier, "No hay turnos disponibles", derive.ErrSoldOut)
	case av.Low:
		notify.Warning(p.notifier, "Quedan pocos turnos disponibles: "+itoa(av.Remaining))
	}
	return av, nil
}

func (p *picker) state() PickerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PickerState{ProcessionID: p.processionID, TurnID: p.turnID, Turns: []TurnOption{}}
	if p.devotee != nil {
		d := *p.devotee
		st.Devotee = &d
	}
	for _, t := range p.options {
		st.Turns = append(st.Turns, TurnOption{Turn: t, Label: derive.TurnLabel(t), Availability: derive.CheckAvailability(t, p.lowStock)})
	}
	return st
}

// selection returns the complete selection, or ErrIncomplete.
func (p *picker) selection() (domain.Devotee, domain.Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.devotee == nil || p.turnID == "" {
		return domain.Devotee{}, domain.Turn{}, ErrIncomplete
	}
	for _, t := range p.options {
		if t.Key() == p.turnID {
			return *p.devotee, t, nil
		}
	}
	return domain.Devotee{}, domain.Turn{}, ErrIncomplete
}

// Reset clears the devotee and turn, keeping the procession listing.
func (p *picker) Reset(ctx context.Context) { p.reset(ctx) }

// reset clears the form; the procession's listing is refetched so the
// counts reflect the sale.
func (p *picker) reset(ctx context.Context) {
	p.mu.Lock()
	processionID := p.processionID
	p.devoteeID, p.devotee, p.turnID = "", nil, ""
	p.mu.Unlock()
	if processionID != "" {
		_, _ = p.SelectProcession(ctx, processionID)
	}
}
