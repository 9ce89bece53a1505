package apitest_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermandad.org/internal/api"
	"hermandad.org/internal/apitest"
	"hermandad.org/internal/domain"
)

func TestLoginAndBearer(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.AddUser(domain.User{Name: "Marta", Email: "marta@hermandad.org", Role: domain.RoleDirector}, "secreto")

	var token string
	c, err := api.New(srv.BaseURL(), api.WithTokenSource(func(context.Context) string { return token }))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Login(ctx, api.Credentials{Email: "marta@hermandad.org", Password: "mala"})
	assert.True(t, errors.Is(err, api.ErrValidation))
	assert.Equal(t, "Contraseña incorrecta", api.MessageOf(err, ""))

	u, err := c.Login(ctx, api.Credentials{Email: "MARTA@hermandad.org", Password: "secreto"})
	require.NoError(t, err)
	require.NotEmpty(t, u.Token)

	_, err = c.ListProcessions(ctx)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))

	token = u.Token
	me, err := c.MyUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Marta", me.Name)

	srv.RevokeTokens()
	_, err = c.MyUser(ctx)
	assert.True(t, errors.Is(err, api.ErrUnauthorized))
}

func seeded(t *testing.T) (*apitest.Server, *api.Client) {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)
	srv.AddUser(domain.User{ID: "u1", Name: "Marta", Email: "marta@hermandad.org", Role: domain.RoleDirector}, "secreto")
	tok := srv.IssueToken("marta@hermandad.org")
	c, err := api.New(srv.BaseURL(), api.WithTokenSource(func(context.Context) string { return tok }))
	require.NoError(t, err)
	return srv, c
}

func TestCommissionPaymentLifecycle(t *testing.T) {
	srv, c := seeded(t)
	ctx := context.Background()
	p := srv.AddProcession(domain.Procession{Name: "Santa Marta"})
	turn := srv.AddTurn(domain.Turn{Number: 5, Capacity: 10, Price: domain.Quetzales(100), Type: domain.TurnCommission, Procession: domain.ProcessionRef{ID: p.ID}})
	d := srv.AddDevotee(domain.Devotee{FirstName: "Ana", LastName: "López", DPI: "123"})
	srv.Assign(d.Key(), turn.ID, "CM-5", domain.Quetzales(40), domain.StatusPartial)

	_, err := c.PayCommission(ctx, api.CommissionPayment{DevoteeID: d.Key(), TurnID: turn.ID, Amount: domain.Quetzales(70)})
	require.Error(t, err)
	assert.Equal(t, "El monto excede el saldo pendiente", api.MessageOf(err, ""))

	rec, err := c.PayCommission(ctx, api.CommissionPayment{DevoteeID: d.Key(), TurnID: turn.ID, Amount: domain.Quetzales(20)})
	require.NoError(t, err)
	assert.Equal(t, "1001", string(rec.InvoiceNumber()))

	got, _ := srv.Devotee(d.Key())
	assert.Equal(t, domain.Quetzales(60), got.Turns[0].AmountPaid)
	assert.Equal(t, domain.StatusPartial, got.Turns[0].Status)

	rec, err = c.CompletePayment(ctx, api.CommissionPayment{DevoteeID: d.Key(), TurnID: turn.ID})
	require.NoError(t, err)
	assert.Equal(t, "1002", string(rec.InvoiceNumber()))
	got, _ = srv.Devotee(d.Key())
	assert.Equal(t, domain.StatusPaid, got.Turns[0].Status)

	history, err := c.SalesHistory(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.Quetzales(40), history[1].Price)
}

func TestPurchaseSoldOut(t *testing.T) {
	srv, c := seeded(t)
	ctx := context.Background()
	p := srv.AddProcession(domain.Procession{Name: "San Juan"})
	turn := srv.AddTurn(domain.Turn{Number: 2, Capacity: 1, Price: domain.Quetzales(60), Type: domain.TurnOrdinary, Procession: domain.ProcessionRef{ID: p.ID}})
	d := srv.AddDevotee(domain.Devotee{FirstName: "Luis", DPI: "456"})

	_, err := c.RegisterPurchase(ctx, api.Purchase{DevoteeID: d.Key(), TurnID: turn.ID})
	require.NoError(t, err)
	got, _ := srv.Devotee(d.Key())
	require.Len(t, got.Turns, 1)
	assert.Equal(t, "ORSJ2", got.Turns[0].Code())

	left, _ := srv.Turn(turn.ID)
	assert.Equal(t, 0, left.Unsold)
	assert.Equal(t, 1, left.Sold)

	_, err = c.RegisterPurchase(ctx, api.Purchase{DevoteeID: d.Key(), TurnID: turn.ID})
	assert.True(t, errors.Is(err, api.ErrValidation))
	assert.Len(t, srv.Invoices(), 1)
}

func TestFailureInjection(t *testing.T) {
	srv, c := seeded(t)
	srv.Fail("devoto/getDevotos", 500, "caído")
	_, err := c.ListDevotees(context.Background())
	assert.True(t, errors.Is(err, api.ErrServer))
	assert.Equal(t, 1, srv.Calls("devoto/getDevotos"))

	srv.Recover("devoto/getDevotos")
	list, err := c.ListDevotees(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
