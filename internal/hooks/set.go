package hooks

import (
	"hermandad.org/internal/api"
	"hermandad.org/internal/notify"
)

// Set is the full collection of hooks one console session works with.
type Set struct {
	Devotees           *Devotees
	Processions        *Processions
	Turns              *Turns
	Invoices           *Invoices
	Purchases          *Purchases
	OrdinaryPayments   *OrdinaryPayments
	CommissionPayments *CommissionPayments
	Reservations       *Reservations
	Sales              *SalesHistory
	Users              *Users
}

// NewSet wires every hook to c, reporting through n.
func NewSet(c *api.Client, n notify.Notifier) *Set {
	return &Set{
		Devotees:           NewDevotees(c, n),
		Processions:        NewProcessions(c, n),
		Turns:              NewTurns(c, n),
		Invoices:           NewInvoices(c, n),
		Purchases:          NewPurchases(c, n),
		OrdinaryPayments:   NewOrdinaryPayments(c, n),
		CommissionPayments: NewCommissionPayments(c, n),
		Reservations:       NewReservations(c, n),
		Sales:              NewSalesHistory(c, n),
		Users:              NewUsers(c, n),
	}
}

// Loading reports whether any hook of the set has a call in flight.
func (s *Set) Loading() bool {
	for _, l := range []interface{ Loading() bool }{
		s.Devotees, s.Processions, s.Turns, s.Invoices, s.Purchases,
		s.OrdinaryPayments, s.CommissionPayments, s.Reservations, s.Sales, s.Users,
	} {
		if l.Loading() {
			return true
		}
	}
	return false
}
