package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermandad.org/internal/api"
	"hermandad.org/internal/apitest"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
)

type opened struct {
	mu      sync.Mutex
	numbers []string
}

func (o *opened) OpenInvoice(_ context.Context, number string) {
	o.mu.Lock()
	o.numbers = append(o.numbers, number)
	o.mu.Unlock()
}

func (o *opened) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string{}, o.numbers...)
}

type fixture struct {
	srv    *apitest.Server
	set    *hooks.Set
	rec    *notify.Recorder
	viewer *opened
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.AddUser(domain.User{ID: "u1", Name: "Marta", Email: "marta@hermandad.org", Role: domain.RoleMember}, "secreto")
	tok := srv.IssueToken("marta@hermandad.org")
	c, err := api.New(srv.BaseURL(), api.WithTokenSource(func(context.Context) string { return tok }))
	require.NoError(t, err)
	rec := notify.NewRecorder(50)
	return &fixture{srv: srv, set: hooks.NewSet(c, rec), rec: rec, viewer: &opened{}}
}

func levels(ns []notify.Notification) []notify.Level {
	out := make([]notify.Level, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Level)
	}
	return out
}

func TestCommissionPayment(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	p := fx.srv.AddProcession(domain.Procession{Name: "Santa Marta"})
	turn := fx.srv.AddTurn(domain.Turn{Number: 7, Capacity: 20, Price: domain.Quetzales(100), Type: domain.TurnCommission, Procession: domain.ProcessionRef{ID: p.ID}})
	d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Ana", LastName: "López", DPI: "123"})
	fx.srv.Assign(d.Key(), turn.ID, "CM-7", domain.Quetzales(30), domain.StatusPartial)

	f := NewCommission(fx.set.Devotees, fx.set.CommissionPayments, fx.viewer, fx.rec)
	_, err := f.SelectDevotee(ctx, d.Key())
	require.NoError(t, err)
	require.NoError(t, f.SelectTurn(turn.ID))

	st := f.State()
	require.NotNil(t, st.Selected)
	assert.Equal(t, domain.Quetzales(70), st.Selected.Balance)
	assert.Equal(t, domain.StatusPartial, st.Selected.Status)

	t.Run("rejected locally", func(t *testing.T) {
		for _, amount := range []domain.Money{0, -5, domain.Quetzales(71)} {
			f.SetAmount(amount)
			_, err := f.Submit(ctx)
			require.Error(t, err)
		}
		assert.Equal(t, 0, fx.srv.Calls("compra/pagarComision"))
		got := fx.rec.Drain()
		assert.Equal(t, []notify.Level{notify.LevelError, notify.LevelError, notify.LevelError}, levels(got))
		assert.Equal(t, "El monto excede el saldo pendiente", got[2].Message)
	})

	t.Run("server failure keeps state", func(t *testing.T) {
		fx.srv.Fail("compra/pagarComision", 500, "")
		defer fx.srv.Recover("compra/pagarComision")
		f.SetAmount(domain.Quetzales(20))
		_, err := f.Submit(ctx)
		assert.True(t, errors.Is(err, api.ErrServer))
		assert.Empty(t, fx.viewer.list())
		st := f.State()
		require.NotNil(t, st.Selected)
		assert.Equal(t, domain.Quetzales(70), st.Selected.Balance)
		got := fx.rec.Drain()
		require.Len(t, got, 1)
		assert.Equal(t, "Error al registrar el pago", got[0].Message)
	})

	t.Run("success", func(t *testing.T) {
		f.SetAmount(domain.Quetzales(20))
		rec, err := f.Submit(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{rec.InvoiceNumber()}, fx.viewer.list())

		st := f.State()
		assert.Nil(t, st.Selected)
		assert.Zero(t, st.Amount)
		require.Len(t, st.Assignments, 1)
		assert.Equal(t, domain.Quetzales(50), st.Assignments[0].Paid)
		assert.Equal(t, domain.Quetzales(50), st.Assignments[0].Balance)
	})

	t.Run("complete", func(t *testing.T) {
		require.NoError(t, f.SelectTurn(turn.ID))
		_, err := f.CompletePayment(ctx)
		require.NoError(t, err)
		stored, _ := fx.srv.Devotee(d.Key())
		assert.Equal(t, domain.StatusPaid, stored.Turns[0].Status)
		assert.Len(t, fx.viewer.list(), 2)
	})
}

func TestCommissionBusy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	turn := fx.srv.AddTurn(domain.Turn{Number: 1, Capacity: 5, Price: domain.Quetzales(100), Type: domain.TurnCommission})
	d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Luis", DPI: "9"})
	fx.srv.Assign(d.Key(), turn.ID, "CM-1", 0, domain.StatusPending)

	f := NewCommission(fx.set.Devotees, fx.set.CommissionPayments, fx.viewer, fx.rec)
	_, err := f.SelectDevotee(ctx, d.Key())
	require.NoError(t, err)
	require.NoError(t, f.SelectTurn(turn.ID))
	f.SetAmount(domain.Quetzales(10))

	release := fx.srv.Hold("compra/pagarComision")
	done := make(chan error, 1)
	go func() {
		_, err := f.Submit(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return fx.srv.Calls("compra/pagarComision") == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.State().Busy)

	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, ErrBusy)

	release()
	require.NoError(t, <-done)
	assert.False(t, f.Busy())
	assert.Equal(t, 1, fx.srv.Calls("compra/pagarComision"))
}

func TestFinishWithoutInvoiceNumber(t *testing.T) {
	rec := notify.NewRecorder(5)
	viewer := &opened{}
	err := finish(context.Background(), rec, viewer, "payment.commission", "", map[string]any{})
	assert.ErrorIs(t, err, ErrNoInvoice)
	assert.Empty(t, viewer.list())
	got := rec.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, notify.LevelError, got[0].Level)
}

func TestOrdinaryPayment(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	sm := fx.srv.AddProcession(domain.Procession{Name: "Santa Marta"})
	fx.srv.AddProcession(domain.Procession{Name: "San Juan"})
	ordinary := fx.srv.AddTurn(domain.Turn{Number: 5, Capacity: 10, Price: domain.Quetzales(60), Type: domain.TurnOrdinary, Procession: domain.ProcessionRef{ID: sm.ID}})
	fx.srv.AddTurn(domain.Turn{Number: 6, Capacity: 10, Price: domain.Quetzales(90), Type: domain.TurnCommission, Procession: domain.ProcessionRef{ID: sm.ID}})

	plain := fx.srv.AddDevotee(domain.Devotee{FirstName: "Sin", DPI: "1"})
	d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Ana", DPI: "2"})
	fx.srv.Assign(d.Key(), ordinary.ID, "ORSM5", 0, domain.StatusPending)

	f := NewOrdinary(fx.set, fx.viewer, fx.rec)

	_, err := f.SelectDevotee(ctx, plain.Key())
	assert.ErrorIs(t, err, ErrNoEligibleTurns)
	assert.Equal(t, []notify.Level{notify.LevelWarning}, levels(fx.rec.Drain()))

	_, err = f.SelectDevotee(ctx, d.Key())
	require.NoError(t, err)
	assert.Equal(t, []string{"ORSM5"}, f.State().Passwords)

	assert.ErrorIs(t, f.SelectTurn(ordinary.ID), ErrNotEligible)
	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, ErrIncomplete)
	fx.rec.Drain()

	turns, err := f.SelectPassword(ctx, "ORSM5")
	require.NoError(t, err)
	require.Len(t, turns, 1, "commission turns are not offered")
	assert.Equal(t, "Santa Marta", f.State().Procession.Name)
	require.NoError(t, f.SelectTurn(ordinary.ID))

	rec, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{rec.InvoiceNumber()}, fx.viewer.list())
	st := f.State()
	assert.Nil(t, st.Devotee)
	assert.Empty(t, st.Passwords)
	assert.Empty(t, st.TurnID)

	stored, _ := fx.srv.Devotee(d.Key())
	assert.Equal(t, domain.StatusPaid, stored.Turns[0].Status)
}

// A rejected payment must leave the devotee's assignments on the server as
// they were, so a refetch shows the same turns.
func TestFailedPaymentRefetchesSameAssignments(t *testing.T) {
	t.Run("commission", func(t *testing.T) {
		fx := newFixture(t)
		ctx := context.Background()
		turn := fx.srv.AddTurn(domain.Turn{Number: 7, Capacity: 20, Price: domain.Quetzales(100), Type: domain.TurnCommission})
		d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Ana", DPI: "123"})
		fx.srv.Assign(d.Key(), turn.ID, "CM-7", domain.Quetzales(30), domain.StatusPartial)

		f := NewCommission(fx.set.Devotees, fx.set.CommissionPayments, fx.viewer, fx.rec)
		_, err := f.SelectDevotee(ctx, d.Key())
		require.NoError(t, err)
		require.NoError(t, f.SelectTurn(turn.ID))
		before, ok := fx.set.Devotees.Current()
		require.True(t, ok)

		fx.srv.Fail("compra/pagarComision", 500, "")
		f.SetAmount(domain.Quetzales(20))
		_, err = f.Submit(ctx)
		require.ErrorIs(t, err, api.ErrServer)
		fx.srv.Recover("compra/pagarComision")

		fx.set.Devotees.Refresh(ctx)
		after, ok := fx.set.Devotees.Current()
		require.True(t, ok)
		assert.Equal(t, before.Turns, after.Turns)
		assert.Equal(t, domain.Quetzales(30), after.Turns[0].AmountPaid)
	})

	t.Run("ordinary", func(t *testing.T) {
		fx := newFixture(t)
		ctx := context.Background()
		sm := fx.srv.AddProcession(domain.Procession{Name: "Santa Marta"})
		turn := fx.srv.AddTurn(domain.Turn{Number: 5, Capacity: 10, Price: domain.Quetzales(60), Type: domain.TurnOrdinary, Procession: domain.ProcessionRef{ID: sm.ID}})
		d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Ana", DPI: "2"})
		fx.srv.Assign(d.Key(), turn.ID, "ORSM5", 0, domain.StatusPending)

		f := NewOrdinary(fx.set, fx.viewer, fx.rec)
		_, err := f.SelectDevotee(ctx, d.Key())
		require.NoError(t, err)
		_, err = f.SelectPassword(ctx, "ORSM5")
		require.NoError(t, err)
		require.NoError(t, f.SelectTurn(turn.ID))
		before, ok := fx.set.Devotees.Current()
		require.True(t, ok)

		fx.srv.Fail("compra/pagoOrdinario", 500, "")
		_, err = f.Submit(ctx)
		require.ErrorIs(t, err, api.ErrServer)
		fx.srv.Recover("compra/pagoOrdinario")
		assert.Empty(t, fx.viewer.list())

		fx.set.Devotees.Refresh(ctx)
		after, ok := fx.set.Devotees.Current()
		require.True(t, ok)
		assert.Equal(t, before.Turns, after.Turns)
		assert.Equal(t, domain.StatusPending, after.Turns[0].Status)
	})
}

func TestOrdinaryUnknownProcession(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.srv.AddProcession(domain.Procession{Name: "San Juan"})
	turn := fx.srv.AddTurn(domain.Turn{Number: 1, Capacity: 1, Type: domain.TurnOrdinary})
	d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Ana", DPI: "2"})
	fx.srv.Assign(d.Key(), turn.ID, "ORXY1", 0, domain.StatusPending)

	f := NewOrdinary(fx.set, fx.viewer, fx.rec)
	_, err := f.SelectDevotee(ctx, d.Key())
	require.NoError(t, err)
	_, err = f.SelectPassword(ctx, "ORXY1")
	assert.ErrorIs(t, err, derive.ErrNoMatchingProcession)
	assert.Equal(t, 0, fx.srv.Calls("turno/getTurnosByProcesion/:id"))
	assert.Equal(t, []notify.Level{notify.LevelError}, levels(fx.rec.Drain()))
}

func TestPurchase(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	p := fx.srv.AddProcession(domain.Procession{Name: "Santa Marta"})
	soldOut := fx.srv.AddTurn(domain.Turn{Number: 1, Capacity: 4, Sold: 4, Price: domain.Quetzales(50), Type: domain.TurnOrdinary, Procession: domain.ProcessionRef{ID: p.ID}})
	low := fx.srv.AddTurn(domain.Turn{Number: 2, Capacity: 10, Sold: 8, Price: domain.Quetzales(50), Type: domain.TurnOrdinary, Procession: domain.ProcessionRef{ID: p.ID}})
	d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Ana", DPI: "2"})

	f := NewPurchase(fx.set, fx.viewer, fx.rec, 0)
	_, err := f.SelectDevotee(ctx, d.Key())
	require.NoError(t, err)
	_, err = f.SelectProcession(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.SelectTurn(soldOut.ID)
	assert.ErrorIs(t, err, derive.ErrSoldOut)
	assert.Empty(t, f.State().TurnID)

	av, err := f.SelectTurn(low.ID)
	require.NoError(t, err)
	assert.True(t, av.Low)
	assert.Equal(t, []notify.Level{notify.LevelError, notify.LevelWarning}, levels(fx.rec.Drain()))

	fx.srv.Fail("compra/registrarCompra", 400, "No hay turnos disponibles")
	_, err = f.Submit(ctx)
	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Equal(t, "No hay turnos disponibles", fx.rec.Drain()[0].Message)
	assert.Equal(t, low.ID, f.State().TurnID, "a rejected purchase keeps the form")
	fx.srv.Recover("compra/registrarCompra")

	rec, err := f.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{rec.InvoiceNumber()}, fx.viewer.list())

	st := f.State()
	assert.Nil(t, st.Devotee)
	assert.Empty(t, st.TurnID)
	for _, opt := range st.Turns {
		if opt.Key() == low.ID {
			assert.Equal(t, 1, opt.Unsold, "listing is refetched after the sale")
		}
	}
}

func TestReservationHalf(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	p := fx.srv.AddProcession(domain.Procession{Name: "San Juan"})
	fx.srv.AddTurn(domain.Turn{Number: 3, Capacity: 10, Price: domain.Quetzales(80), Type: domain.TurnCommission, Procession: domain.ProcessionRef{ID: p.ID}})
	turn := fx.srv.AddTurn(domain.Turn{Number: 4, Capacity: 10, Price: domain.Quetzales(80), Type: domain.TurnOrdinary, Procession: domain.ProcessionRef{ID: p.ID}})
	d := fx.srv.AddDevotee(domain.Devotee{FirstName: "Ana", DPI: "2"})

	f := NewReservation(fx.set, fx.viewer, fx.rec, 0)
	assert.ErrorIs(t, f.SetKind("OTRO"), ErrNotEligible)
	require.NoError(t, f.SetKind(api.PaymentPartial))
	_, err := f.SelectDevotee(ctx, d.Key())
	require.NoError(t, err)
	turns, err := f.SelectProcession(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	_, err = f.SelectTurn(turn.ID)
	require.NoError(t, err)

	_, err = f.Submit(ctx)
	require.NoError(t, err)
	stored, _ := fx.srv.Devotee(d.Key())
	require.Len(t, stored.Turns, 1)
	assert.Equal(t, domain.Quetzales(40), stored.Turns[0].AmountPaid)
	assert.Equal(t, domain.StatusPartial, stored.Turns[0].Status)
	assert.Equal(t, "ORSJ4", stored.Turns[0].Code())
}
