package hooks

import (
	"context"

	"hermandad.org/internal/api"
	"hermandad.org/internal/notify"
)

type PurchaseAPI interface {
	RegisterPurchase(ctx context.Context, p api.Purchase) (api.Receipt, error)
}

type OrdinaryPaymentAPI interface {
	PayOrdinary(ctx context.Context, p api.OrdinaryPayment) (api.Receipt, error)
}

type CommissionPaymentAPI interface {
	PayCommission(ctx context.Context, p api.CommissionPayment) (api.Receipt, error)
	CompletePayment(ctx context.Context, p api.CommissionPayment) (api.Receipt, error)
}

type ReservationAPI interface {
	ReserveTurn(ctx context.Context, r api.Reservation) (api.Receipt, error)
}

// Purchases registers direct turn purchases and remembers the last receipt.
type Purchases struct {
	base
	api  PurchaseAPI
	last Slot[api.Receipt]
}

func NewPurchases(c PurchaseAPI, n notify.Notifier) *Purchases {
	return &Purchases{base: base{notifier: n}, api: c}
}

func (h *Purchases) Register(ctx context.Context, p api.Purchase) (api.Receipt, error) {
	return submit(&h.base, &h.last, "Error al registrar la compra", "Compra registrada correctamente", func() (api.Receipt, error) {
		return h.api.RegisterPurchase(ctx, p)
	})
}

func (h *Purchases) LastReceipt() (api.Receipt, bool) { return h.last.Get() }

type OrdinaryPayments struct {
	base
	api  OrdinaryPaymentAPI
	last Slot[api.Receipt]
}

func NewOrdinaryPayments(c OrdinaryPaymentAPI, n notify.Notifier) *OrdinaryPayments {
	return &OrdinaryPayments{base: base{notifier: n}, api: c}
}

func (h *OrdinaryPayments) Pay(ctx context.Context, p api.OrdinaryPayment) (api.Receipt, error) {
	return submit(&h.base, &h.last, "Ocurrió un error al registrar el pago", "Pago registrado exitosamente", func() (api.Receipt, error) {
		return h.api.PayOrdinary(ctx, p)
	})
}

func (h *OrdinaryPayments) LastReceipt() (api.Receipt, bool) { return h.last.Get() }

type CommissionPayments struct {
	base
	api  CommissionPaymentAPI
	last Slot[api.Receipt]
}

func NewCommissionPayments(c CommissionPaymentAPI, n notify.Notifier) *CommissionPayments {
	return &CommissionPayments{base: base{notifier: n}, api: c}
}

// Pay records a partial payment towards a commission turn.
func (h *CommissionPayments) Pay(ctx context.Context, p api.CommissionPayment) (api.Receipt, error) {
	return submit(&h.base, &h.last, "Error al registrar el pago", "Pago registrado correctamente", func() (api.Receipt, error) {
		return h.api.PayCommission(ctx, p)
	})
}

// Complete settles the remaining balance of a commission turn.
func (h *CommissionPayments) Complete(ctx context.Context, p api.CommissionPayment) (api.Receipt, error) {
	return submit(&h.base, &h.last, "Error al finalizar el pago", "Pago finalizado correctamente", func() (api.Receipt, error) {
		return h.api.CompletePayment(ctx, p)
	})
}

func (h *CommissionPayments) LastReceipt() (api.Receipt, bool) { return h.last.Get() }

type Reservations struct {
	base
	api  ReservationAPI
	last Slot[api.Receipt]
}

func NewReservations(c ReservationAPI, n notify.Notifier) *Reservations {
	return &Reservations{base: base{notifier: n}, api: c}
}

func (h *Reservations) Reserve(ctx context.Context, r api.Reservation) (api.Receipt, error) {
	return submit(&h.base, &h.last, "Error al reservar el turno", "Turno reservado correctamente", func() (api.Receipt, error) {
		return h.api.ReserveTurn(ctx, r)
	})
}

func (h *Reservations) LastReceipt() (api.Receipt, bool) { return h.last.Get() }

func submit(b *base, last *Slot[api.Receipt], fallback, ok string, call func() (api.Receipt, error)) (api.Receipt, error) {
	var rec api.Receipt
	err := b.run(fallback, func() (err error) {
		rec, err = call()
		return err
	})
	if err != nil {
		return api.Receipt{}, err
	}
	last.Patch(func(api.Receipt) api.Receipt { return rec })
	b.success(ok)
	return rec, nil
}
