// Package flow drives the payment, purchase and reservation screens: it
// holds the operator's selections, validates them before any network call
// and hands the resulting invoice to an InvoiceViewer.
package flow

import (
	"context"
	"errors"
	"sync"

	"hermandad.org/internal/audit"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/notify"
	"hermandad.org/internal/obs"
)

var (
	ErrBusy            = errors.New("flow: a submission is already in progress")
	ErrIncomplete      = errors.New("flow: required selection missing")
	ErrNotEligible     = errors.New("flow: selection is not eligible for this operation")
	ErrNoEligibleTurns = errors.New("flow: devotee has no eligible turns")
	ErrNoInvoice       = errors.New("flow: response carried no invoice number")
)

// InvoiceViewer opens the printable invoice produced by a submission.
type InvoiceViewer interface {
	OpenInvoice(ctx context.Context, number string)
}

// InvoiceViewerFunc adapts a function to InvoiceViewer.
type InvoiceViewerFunc func(ctx context.Context, number string)

func (f InvoiceViewerFunc) OpenInvoice(ctx context.Context, number string) { f(ctx, number) }

// gate admits one submission at a time.
type gate struct {
	mu   sync.Mutex
	busy bool
}

func (g *gate) enter() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return ErrBusy
	}
	g.busy = true
	return nil
}

func (g *gate) leave() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Busy reports whether a submission is in flight.
func (g *gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// AssignmentView is one assignment with its derived payment figures.
type AssignmentView struct {
	TurnID     string               `json:"turnId"`
	Label      string               `json:"label"`
	Password   string               `json:"password,omitempty"`
	Price      domain.Money         `json:"price"`
	Paid       domain.Money         `json:"paid"`
	Balance    domain.Money         `json:"balance"`
	Status     domain.PaymentStatus `json:"status"`
	Reconciled domain.PaymentStatus `json:"reconciledStatus"`
	Divergent  bool                 `json:"divergent,omitempty"`
}

func viewAssignment(a domain.Assignment) AssignmentView {
	v := AssignmentView{
		TurnID:     a.TurnKey(),
		Password:   a.Code(),
		Paid:       a.AmountPaid,
		Balance:    derive.DisplayBalance(a),
		Status:     derive.Status(a),
		Reconciled: derive.ReconciledStatus(a),
		Divergent:  derive.Divergent(a),
	}
	if a.Turn != nil {
		v.Label = derive.TurnLabel(*a.Turn)
		v.Price = a.Turn.Price
	}
	return v
}

// finish runs the common tail of a successful submission.
func finish(ctx context.Context, n notify.Notifier, viewer InvoiceViewer, event, number string, fields map[string]any) error {
	fields["invoice"] = number
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Warn("audit event failed", map[string]any{"event": event, "err": err.Error()})
	}
	if number == "" {
		notify.Error(n, "No se recibió el número de factura")
		return ErrNoInvoice
	}
	if viewer != nil {
		viewer.OpenInvoice(ctx, number)
	}
	return nil
}

// rejected reports a failed pre-validation and returns err.
func rejected(n notify.Notifier, msg string, err error) error {
	notify.Error(n, msg)
	return err
}
