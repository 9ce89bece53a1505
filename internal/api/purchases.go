package api

import (
	"context"
	"net/http"

	"hermandad.org/internal/domain"
)

// PaymentKind selects full or partial purchase/reservation.
type PaymentKind string

const (
	PaymentFull    PaymentKind = "COMPLETO"
	PaymentPartial PaymentKind = "MEDIO"
)

// Purchase is the body of compra/registrarCompra.
type Purchase struct {
	DevoteeID string      `json:"devoto"`
	TurnID    string      `json:"turno"`
	Payment   PaymentKind `json:"pago"`
}

// CommissionPayment is the body of compra/pagarComision and compra/registrarPago.
type CommissionPayment struct {
	DevoteeID string       `json:"devotoId"`
	TurnID    string       `json:"turnoId"`
	Amount    domain.Money `json:"montoPagado"`
}

// OrdinaryPayment is the body of compra/pagoOrdinario.
type OrdinaryPayment struct {
	DevoteeID string `json:"devotoId"`
	TurnID    string `json:"turnoId"`
	Password  string `json:"contraseña"`
}

// Reservation is the body of compra/reservarTurno.
type Reservation struct {
	DevoteeID string      `json:"devotoId"`
	TurnID    string      `json:"turnoId"`
	Kind      PaymentKind `json:"tipoReserva"`
}

// Receipt is the acknowledgement of a purchase or payment. The invoice
// number arrives either at the top level or nested under "compra".
type Receipt struct {
	Message  string               `json:"message,omitempty"`
	Number   domain.InvoiceNumber `json:"noFactura,omitempty"`
	Purchase *struct {
		Number domain.InvoiceNumber `json:"noFactura"`
	} `json:"compra,omitempty"`
}

// InvoiceNumber returns the invoice number wherever the server put it.
func (r Receipt) InvoiceNumber() string {
	if r.Number != "" {
		return string(r.Number)
	}
	if r.Purchase != nil {
		return string(r.Purchase.Number)
	}
	return ""
}

func (c *Client) RegisterPurchase(ctx context.Context, p Purchase) (Receipt, error) {
	if p.Payment == "" {
		p.Payment = PaymentFull
	}
	return c.receipt(ctx, http.MethodPost, "compra/registrarCompra", p)
}

// PayCommission records a partial payment towards a commission turn.
func (c *Client) PayCommission(ctx context.Context, p CommissionPayment) (Receipt, error) {
	return c.receipt(ctx, http.MethodPut, "compra/pagarComision", p)
}

// CompletePayment settles the remaining balance of a commission turn.
func (c *Client) CompletePayment(ctx context.Context, p CommissionPayment) (Receipt, error) {
	return c.receipt(ctx, http.MethodPut, "compra/registrarPago", p)
}

func (c *Client) PayOrdinary(ctx context.Context, p OrdinaryPayment) (Receipt, error) {
	return c.receipt(ctx, http.MethodPost, "compra/pagoOrdinario", p)
}

func (c *Client) ReserveTurn(ctx context.Context, r Reservation) (Receipt, error) {
	return c.receipt(ctx, http.MethodPost, "compra/reservarTurno", r)
}

func (c *Client) receipt(ctx context.Context, method, endpoint string, body any) (Receipt, error) {
	cl := newCall(method, endpoint)
	cl.body = body
	var out Receipt
	err := c.do(ctx, cl, &out)
	return out, err
}
