package derive

import (
	"time"

	"hermandad.org/internal/domain"
)

// DefaultLowStock is the remaining count at or below which a purchase warns.
const DefaultLowStock = 3

// Balance is price minus paid, unclamped. It is what payments validate against.
func Balance(a domain.Assignment) domain.Money {
	var price domain.Money
	if a.Turn != nil {
		price = a.Turn.Price
	}
	return price - a.AmountPaid
}

// DisplayBalance is Balance clamped at zero.
func DisplayBalance(a domain.Assignment) domain.Money {
	if b := Balance(a); b > 0 {
		return b
	}
	return 0
}

// Status is the stored payment tag, PENDIENTE when the server left it empty.
func Status(a domain.Assignment) domain.PaymentStatus {
	if a.Status == "" {
		return domain.StatusPending
	}
	return a.Status
}

// ReconciledStatus derives the payment tag from the balance alone.
func ReconciledStatus(a domain.Assignment) domain.PaymentStatus {
	switch {
	case Balance(a) <= 0:
		return domain.StatusPaid
	case a.AmountPaid > 0:
		return domain.StatusPartial
	default:
		return domain.StatusPending
	}
}

// Divergent reports whether the stored tag disagrees with the balance.
func Divergent(a domain.Assignment) bool {
	return Status(a) != ReconciledStatus(a)
}

// ValidatePayment checks amount against the raw outstanding balance.
func ValidatePayment(amount, balance domain.Money) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if amount > balance {
		return ErrAmountExceedsBalance
	}
	return nil
}

// Availability is the purchase guard computed from the last fetched counts.
type Availability struct {
	Remaining int
	Low       bool
	SoldOut   bool
}

// CheckAvailability flags a turn as low at or below lowThreshold remaining
// places and sold out at zero. A non-positive threshold selects DefaultLowStock.
func CheckAvailability(t domain.Turn, lowThreshold int) Availability {
	if lowThreshold <= 0 {
		lowThreshold = DefaultLowStock
	}
	remaining := t.Unsold
	if remaining < 0 {
		remaining = 0
	}
	return Availability{
		Remaining: remaining,
		Low:       remaining > 0 && remaining <= lowThreshold,
		SoldOut:   remaining == 0,
	}
}

// SalesOn keeps the records dated on day (compared as YYYY-MM-DD in UTC).
// A zero day keeps everything.
func SalesOn(history []domain.SaleRecord, day time.Time) []domain.SaleRecord {
	if day.IsZero() {
		return history
	}
	want := day.Format(time.DateOnly)
	var out []domain.SaleRecord
	for _, r := range history {
		if r.Date != nil && r.Date.UTC().Format(time.DateOnly) == want {
			out = append(out, r)
		}
	}
	return out
}

// SalesTotal sums the sale prices.
func SalesTotal(history []domain.SaleRecord) domain.Money {
	var total domain.Money
	for _, r := range history {
		total += r.Price
	}
	return total
}
