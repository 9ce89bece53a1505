package hooks

import (
	"context"

	"hermandad.org/internal/domain"
	"hermandad.org/internal/notify"
)

type SalesAPI interface {
	SalesHistory(ctx context.Context, userID string) ([]domain.SaleRecord, error)
}

// SalesHistory caches the sales of one staff user at a time. Switching
// users supersedes any fetch still running for the previous one.
type SalesHistory struct {
	base
	api SalesAPI

	history Slot[[]domain.SaleRecord]
	user    Slot[string]
}

func NewSalesHistory(c SalesAPI, n notify.Notifier) *SalesHistory {
	return &SalesHistory{base: base{notifier: n}, api: c}
}

func (h *SalesHistory) Fetch(ctx context.Context, userID string) ([]domain.SaleRecord, error) {
	if userID == "" {
		return nil, nil
	}
	records, err := fetch(&h.base, &h.history, "Error al cargar el historial de ventas", func() ([]domain.SaleRecord, error) {
		return h.api.SalesHistory(ctx, userID)
	})
	if err == nil {
		h.user.Patch(func(string) string { return userID })
	}
	return records, err
}

// Cached returns the last history fetched and whose it is.
func (h *SalesHistory) Cached() (userID string, records []domain.SaleRecord) {
	return h.user.Value(), h.history.Value()
}
