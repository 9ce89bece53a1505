package api

import (
	"context"
	"net/http"
	"time"

	"hermandad.org/internal/domain"
)

// InvoicePatch carries the editable invoice fields.
type InvoicePatch struct {
	Number *string    `json:"noFactura,omitempty"`
	Date   *time.Time `json:"fechaFactura,omitempty"`
	Active *bool      `json:"state,omitempty"`
}

func (c *Client) ListInvoices(ctx context.Context) ([]domain.Invoice, error) {
	var out struct {
		Invoices []domain.Invoice `json:"facturas"`
	}
	if err := c.do(ctx, newCall(http.MethodGet, "compra/listFacturas"), &out); err != nil {
		return nil, err
	}
	return out.Invoices, nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	var out struct {
		Invoice domain.Invoice `json:"factura"`
	}
	err := c.do(ctx, newCall(http.MethodGet, "compra/facturaById/:id", id), &out)
	return out.Invoice, err
}

// UpdateInvoice returns the invoice as stored after the edit.
func (c *Client) UpdateInvoice(ctx context.Context, id string, patch InvoicePatch) (domain.Invoice, error) {
	cl := newCall(http.MethodPut, "compra/updateFactura/:id", id)
	cl.body = patch
	var out struct {
		Invoice *domain.Invoice `json:"factura"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return domain.Invoice{}, err
	}
	if out.Invoice == nil {
		return domain.Invoice{}, &Error{Kind: KindDecode, Method: cl.method, Endpoint: cl.endpoint, Message: "update response carried no invoice"}
	}
	return *out.Invoice, nil
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	return c.do(ctx, newCall(http.MethodDelete, "compra/deleteFactura/:id", id), nil)
}

// SalesHistory lists the sales recorded by a staff user.
func (c *Client) SalesHistory(ctx context.Context, userID string) ([]domain.SaleRecord, error) {
	cl := newCall(http.MethodGet, "compra/historialVenta/:userId", userID)
	var out struct {
		History *[]domain.SaleRecord `json:"historial"`
		Message string               `json:"message"`
	}
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		return nil, &Error{Kind: KindDecode, Method: cl.method, Endpoint: cl.endpoint, Message: out.Message}
	}
	return *out.History, nil
}
