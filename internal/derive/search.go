// Package derive holds the pure selectors the console screens are built on.
// Nothing here performs I/O or keeps state between calls.
package derive

import (
	"strings"
	"time"

	"hermandad.org/internal/domain"
)

// SearchDevotees returns the devotees whose first name, last name, full name
// or DPI contains query, case-insensitively. A blank query matches nothing.
// Results keep input order and carry each id once.
func SearchDevotees(devotees []domain.Devotee, query string) []domain.Devotee {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return nil
	}
	seen := make(map[string]struct{}, len(devotees))
	var out []domain.Devotee
	for _, d := range devotees {
		if !devoteeMatches(d, term) {
			continue
		}
		if key := d.Key(); key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, d)
	}
	return out
}

func devoteeMatches(d domain.Devotee, term string) bool {
	first := strings.ToLower(d.FirstName)
	last := strings.ToLower(d.LastName)
	return strings.Contains(first, term) ||
		strings.Contains(last, term) ||
		strings.Contains(first+" "+last, term) ||
		strings.Contains(strings.ToLower(d.DPI), term)
}

// FilterTurns matches query against "noTurno - marcha". A blank query keeps all turns.
func FilterTurns(turns []domain.Turn, query string) []domain.Turn {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return turns
	}
	var out []domain.Turn
	for _, t := range turns {
		if strings.Contains(strings.ToLower(TurnLabel(t)), term) {
			out = append(out, t)
		}
	}
	return out
}

// TurnLabel is the short display name of a turn, e.g. "3 - Mater Dolorosa".
func TurnLabel(t domain.Turn) string {
	if t.March == "" {
		return itoa(t.Number)
	}
	return itoa(t.Number) + " - " + t.March
}

// OrdinaryTurns keeps the turns of type ORDINARIO.
func OrdinaryTurns(turns []domain.Turn) []domain.Turn {
	var out []domain.Turn
	for _, t := range turns {
		if strings.EqualFold(string(t.Type), string(domain.TurnOrdinary)) {
			out = append(out, t)
		}
	}
	return out
}

// SearchInvoices matches query against the invoice number, its date
// (YYYY-MM-DD) and the devotee's full name. A blank query keeps all invoices.
func SearchInvoices(invoices []domain.Invoice, query string) []domain.Invoice {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return invoices
	}
	var out []domain.Invoice
	for _, inv := range invoices {
		if invoiceMatches(inv, term) {
			out = append(out, inv)
		}
	}
	return out
}

func invoiceMatches(inv domain.Invoice, term string) bool {
	if strings.Contains(strings.ToLower(string(inv.Number)), term) {
		return true
	}
	if inv.Date != nil && strings.Contains(inv.Date.UTC().Format(time.DateOnly), term) {
		return true
	}
	if inv.Devotee != nil && strings.Contains(strings.ToLower(inv.Devotee.FullName()), term) {
		return true
	}
	return false
}
