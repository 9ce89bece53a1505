package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermandad.org/internal/api"
	"hermandad.org/internal/apitest"
	"hermandad.org/internal/auth"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/session"
)

func newCLI(t *testing.T) (*cli, *apitest.Server, *bytes.Buffer) {
	t.Helper()
	fake := apitest.New()
	t.Cleanup(fake.Close)
	fake.AddUser(domain.User{ID: "u1", Name: "Marta", Email: "marta@hermandad.org", Role: domain.RoleMember}, "secreto")
	client, err := api.New(fake.BaseURL(), api.WithTokenSource(auth.BearerToken))
	require.NoError(t, err)
	store, err := session.NewFile(t.TempDir())
	require.NoError(t, err)
	out := &bytes.Buffer{}
	return &cli{client: client, store: store, out: out, now: time.Now}, fake, out
}

func TestLoginWhoamiLogout(t *testing.T) {
	c, _, out := newCLI(t)
	ctx := context.Background()

	err := c.run(ctx, []string{"whoami"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hay sesión activa")

	require.NoError(t, c.run(ctx, []string{"login", "marta@hermandad.org", "secreto"}))
	assert.Contains(t, out.String(), "Bienvenido, Marta")

	out.Reset()
	require.NoError(t, c.run(ctx, []string{"whoami"}))
	assert.Contains(t, out.String(), "rol: ROL_GENERAL")
	assert.Contains(t, out.String(), auth.CapRegisterPayment)
	assert.NotContains(t, out.String(), auth.CapManageInvoices)

	require.NoError(t, c.run(ctx, []string{"logout"}))
	_, err = c.store.Load(ctx, session.DefaultKey)
	assert.True(t, errors.Is(err, session.ErrNotFound))
}

func TestUsageErrors(t *testing.T) {
	c, _, _ := newCLI(t)
	ctx := context.Background()
	for _, args := range [][]string{nil, {"login", "solo"}, {"comision", "a", "b"}, {"bailar"}} {
		err := c.run(ctx, args)
		assert.True(t, errors.Is(err, errUsage), "args %v: %v", args, err)
	}
}

func TestUnknownCommandKeepsMessage(t *testing.T) {
	c, _, _ := newCLI(t)
	err := c.run(context.Background(), []string{"bailar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "bailar"`)

	var buf bytes.Buffer
	usage(&buf)
	assert.Contains(t, buf.String(), "comision <devotoId> <turnoId> <monto>")
	assert.Contains(t, buf.String(), "factura <noFactura> [directorio]")
}

func TestCommissionAndInvoice(t *testing.T) {
	c, fake, out := newCLI(t)
	ctx := context.Background()
	p := fake.AddProcession(domain.Procession{Name: "Santa Marta"})
	turn := fake.AddTurn(domain.Turn{Number: 3, Capacity: 4, Price: domain.Quetzales(100), Type: domain.TurnCommission, Procession: domain.ProcessionRef{ID: p.ID}})
	d := fake.AddDevotee(domain.Devotee{FirstName: "Ana", LastName: "López", DPI: "123"})
	fake.Assign(d.Key(), turn.ID, "CM-3", domain.Quetzales(40), domain.StatusPartial)

	require.NoError(t, c.run(ctx, []string{"login", "marta@hermandad.org", "secreto"}))

	out.Reset()
	require.NoError(t, c.run(ctx, []string{"buscar", "ana"}))
	assert.Contains(t, out.String(), "Ana López")
	assert.Contains(t, out.String(), "saldo Q60.00")

	err := c.run(ctx, []string{"comision", d.Key(), turn.ID, "70"})
	require.Error(t, err)
	assert.Equal(t, 0, fake.Calls("compra/pagarComision"))

	out.Reset()
	require.NoError(t, c.run(ctx, []string{"comision", d.Key(), turn.ID, "20.50"}))
	assert.Contains(t, out.String(), "Saldo pendiente: Q39.50")
	assert.Contains(t, out.String(), "Factura 1001")

	dir := t.TempDir()
	require.NoError(t, c.run(ctx, []string{"factura", "1001", dir}))
	body, err := os.ReadFile(filepath.Join(dir, "factura-1001.pdf"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestRevokedTokenClearsSession(t *testing.T) {
	c, fake, _ := newCLI(t)
	ctx := context.Background()
	require.NoError(t, c.run(ctx, []string{"login", "marta@hermandad.org", "secreto"}))

	fake.RevokeTokens()
	err := c.run(ctx, []string{"buscar", "ana"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "la sesión expiró")
	_, err = c.store.Load(ctx, session.DefaultKey)
	assert.True(t, errors.Is(err, session.ErrNotFound))
}
