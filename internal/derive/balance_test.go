package derive

import (
	"errors"
	"testing"
	"time"

	"hermandad.org/internal/domain"
)

func assignment(price, paid domain.Money, status domain.PaymentStatus) domain.Assignment {
	return domain.Assignment{
		Turn:       &domain.Turn{ID: "t", Type: domain.TurnCommission, Price: price},
		AmountPaid: paid,
		Status:     status,
	}
}

func TestBalanceAfterPartialPayment(t *testing.T) {
	a := assignment(domain.Quetzales(100), domain.Quetzales(40), domain.StatusPartial)
	if got := Balance(a); got != domain.Quetzales(60) {
		t.Fatalf("Balance = %s, want Q60.00", got)
	}
	if err := ValidatePayment(domain.Quetzales(60), Balance(a)); err != nil {
		t.Fatalf("paying the full balance should pass: %v", err)
	}
	if Divergent(a) {
		t.Fatalf("partial payment tagged MEDIO should not diverge")
	}
}

func TestBalanceClamp(t *testing.T) {
	a := assignment(domain.Quetzales(100), domain.Quetzales(120), domain.StatusPaid)
	if got := Balance(a); got != domain.Quetzales(-20) {
		t.Fatalf("raw balance = %s, want -Q20.00", got)
	}
	if got := DisplayBalance(a); got != 0 {
		t.Fatalf("display balance = %s, want 0", got)
	}
	if got := Balance(domain.Assignment{AmountPaid: 5}); got != -5 {
		t.Fatalf("missing turn should price at zero, got %s", got)
	}
}

func TestStatus(t *testing.T) {
	cases := []struct {
		name       string
		a          domain.Assignment
		stored     domain.PaymentStatus
		reconciled domain.PaymentStatus
		divergent  bool
	}{
		{"default pending", assignment(1000, 0, ""), domain.StatusPending, domain.StatusPending, false},
		{"paid", assignment(1000, 1000, domain.StatusPaid), domain.StatusPaid, domain.StatusPaid, false},
		{"stale tag", assignment(1000, 1000, domain.StatusPending), domain.StatusPending, domain.StatusPaid, true},
		{"partial", assignment(1000, 400, domain.StatusPending), domain.StatusPending, domain.StatusPartial, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Status(tc.a); got != tc.stored {
				t.Fatalf("Status = %s, want %s", got, tc.stored)
			}
			if got := ReconciledStatus(tc.a); got != tc.reconciled {
				t.Fatalf("ReconciledStatus = %s, want %s", got, tc.reconciled)
			}
			if got := Divergent(tc.a); got != tc.divergent {
				t.Fatalf("Divergent = %v, want %v", got, tc.divergent)
			}
		})
	}
}

func TestValidatePayment(t *testing.T) {
	cases := []struct {
		amount, balance domain.Money
		want            error
	}{
		{0, 1000, ErrNonPositiveAmount},
		{-1, 1000, ErrNonPositiveAmount},
		{1001, 1000, ErrAmountExceedsBalance},
		{100, -50, ErrAmountExceedsBalance},
		{1000, 1000, nil},
		{1, 1000, nil},
	}
	for _, tc := range cases {
		if err := ValidatePayment(tc.amount, tc.balance); !errors.Is(err, tc.want) {
			t.Fatalf("ValidatePayment(%s, %s) = %v, want %v", tc.amount, tc.balance, err, tc.want)
		}
	}
}

func TestCheckAvailability(t *testing.T) {
	cases := []struct {
		unsold  int
		low     bool
		soldOut bool
	}{
		{0, false, true},
		{1, true, false},
		{3, true, false},
		{4, false, false},
		{-2, false, true},
	}
	for _, tc := range cases {
		got := CheckAvailability(domain.Turn{Unsold: tc.unsold}, 0)
		if got.Low != tc.low || got.SoldOut != tc.soldOut {
			t.Fatalf("CheckAvailability(unsold=%d) = %+v", tc.unsold, got)
		}
	}
	if !CheckAvailability(domain.Turn{Unsold: 5}, 5).Low {
		t.Fatalf("custom threshold ignored")
	}
}

func TestSales(t *testing.T) {
	d1 := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, 4, 11, 23, 30, 0, 0, time.UTC)
	history := []domain.SaleRecord{
		{InvoiceNumber: "1", Date: &d1, Price: domain.Quetzales(60)},
		{InvoiceNumber: "2", Date: &d1, Price: 2550},
		{InvoiceNumber: "3", Date: &d2, Price: domain.Quetzales(100)},
		{InvoiceNumber: "4", Price: domain.Quetzales(5)},
	}
	day := SalesOn(history, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC))
	if len(day) != 2 {
		t.Fatalf("expected 2 sales on 2025-04-10, got %d", len(day))
	}
	if got := SalesTotal(day); got != 8550 {
		t.Fatalf("SalesTotal = %s, want Q85.50", got)
	}
	if got := SalesOn(history, time.Time{}); len(got) != 4 {
		t.Fatalf("zero day should keep all sales")
	}
}
