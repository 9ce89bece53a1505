package hooks

import (
	"context"

	"hermandad.org/internal/api"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/notify"
)

type InvoiceAPI interface {
	ListInvoices(ctx context.Context) ([]domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (domain.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, patch api.InvoicePatch) (domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	InvoicePDF(ctx context.Context, number string) (api.Document, error)
}

// Invoices caches the invoice list. Edits and deletions patch the list from
// the server's answer instead of refetching; invoices carry no aggregates.
type Invoices struct {
	base
	api InvoiceAPI

	list     Slot[[]domain.Invoice]
	selected Slot[domain.Invoice]
}

func NewInvoices(c InvoiceAPI, n notify.Notifier) *Invoices {
	return &Invoices{base: base{notifier: n}, api: c}
}

func (h *Invoices) List(ctx context.Context) ([]domain.Invoice, error) {
	return fetch(&h.base, &h.list, "Error al cargar las facturas", func() ([]domain.Invoice, error) {
		return h.api.ListInvoices(ctx)
	})
}

func (h *Invoices) Cached() []domain.Invoice { return h.list.Value() }

func (h *Invoices) Get(ctx context.Context, id string) (domain.Invoice, error) {
	return fetch(&h.base, &h.selected, "Error al obtener la factura", func() (domain.Invoice, error) {
		return h.api.GetInvoice(ctx, id)
	})
}

func (h *Invoices) Selected() (domain.Invoice, bool) { return h.selected.Get() }

func (h *Invoices) Update(ctx context.Context, id string, patch api.InvoicePatch) (domain.Invoice, error) {
	var inv domain.Invoice
	err := h.run("Error al actualizar la factura", func() (err error) {
		inv, err = h.api.UpdateInvoice(ctx, id, patch)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	h.success("Factura actualizada correctamente")
	h.list.Patch(func(list []domain.Invoice) []domain.Invoice {
		out := make([]domain.Invoice, len(list))
		for i, cur := range list {
			if cur.Key() == id {
				out[i] = inv
			} else {
				out[i] = cur
			}
		}
		return out
	})
	h.selected.Patch(func(domain.Invoice) domain.Invoice { return inv })
	return inv, nil
}

func (h *Invoices) Delete(ctx context.Context, id string) error {
	err := h.run("Error al eliminar la factura", func() error {
		return h.api.DeleteInvoice(ctx, id)
	})
	if err != nil {
		return err
	}
	h.success("Factura eliminada correctamente")
	h.list.Patch(func(list []domain.Invoice) []domain.Invoice {
		out := make([]domain.Invoice, 0, len(list))
		for _, cur := range list {
			if cur.Key() != id {
				out = append(out, cur)
			}
		}
		return out
	})
	if sel, ok := h.selected.Get(); ok && sel.Key() == id {
		h.selected.Reset()
	}
	return nil
}

// PDF downloads the printable invoice for number.
func (h *Invoices) PDF(ctx context.Context, number string) (api.Document, error) {
	var doc api.Document
	err := h.run("No se pudo generar la factura", func() (err error) {
		doc, err = h.api.InvoicePDF(ctx, number)
		return err
	})
	return doc, err
}
