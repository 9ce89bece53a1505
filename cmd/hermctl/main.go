// Command hermctl is the terminal console: login, devotee search, commission
// payments and invoice downloads over the brotherhood API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hermandad.org/internal/api"
	"hermandad.org/internal/audit"
	"hermandad.org/internal/auth"
	"hermandad.org/internal/config"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/flow"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
	"hermandad.org/internal/session"
)

var errUsage = errors.New("usage")

func main() {
	_ = config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	dir := cfg.Session.Dir
	if dir == "" {
		if dir, err = session.DefaultDir(); err != nil {
			fmt.Fprintf(os.Stderr, "session dir: %v\n", err)
			os.Exit(1)
		}
	}
	store, err := session.NewFile(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "session store: %v\n", err)
		os.Exit(1)
	}
	client, err := api.New(cfg.APIBaseURL, api.WithTokenSource(auth.BearerToken), api.WithTimeout(cfg.APITimeout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "api client: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c := &cli{client: client, store: store, out: os.Stdout, now: time.Now}
	if err := c.run(ctx, os.Args[1:]); err != nil {
		if err != errUsage {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `usage: %s <command>
  login <email> <contraseña>
  logout
  whoami
  buscar <texto>
  comision <devotoId> <turnoId> <monto>
  factura <noFactura> [directorio]
`, filepath.Base(os.Args[0]))
}

type cli struct {
	client *api.Client
	store  session.Store
	out    io.Writer
	now    func() time.Time
}

// printer shows notifications as terminal lines.
type printer struct{ w io.Writer }

func (p printer) Notify(n notify.Notification) {
	fmt.Fprintf(p.w, "[%s] %s\n", n.Level, n.Message)
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "login":
		if len(args) != 2 {
			return errUsage
		}
		return c.login(ctx, args[0], args[1])
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami(ctx)
	case "buscar":
		if len(args) == 0 {
			return errUsage
		}
		return c.search(ctx, strings.Join(args, " "))
	case "comision":
		if len(args) != 3 {
			return errUsage
		}
		return c.commission(ctx, args[0], args[1], args[2])
	case "factura":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		dir := "."
		if len(args) == 2 {
			dir = args[1]
		}
		return c.invoice(ctx, args[0], dir)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// authed resolves the stored session into ctx, so API calls carry its token.
func (c *cli) authed(ctx context.Context) (context.Context, auth.Principal, error) {
	p, err := auth.Authenticate(ctx, c.store, session.DefaultKey, c.now())
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return nil, auth.Principal{}, errors.New("no hay sesión activa, use: login <email> <contraseña>")
	case errors.Is(err, auth.ErrSessionExpired):
		return nil, auth.Principal{}, errors.New("la sesión expiró, inicie sesión nuevamente")
	case err != nil:
		return nil, auth.Principal{}, err
	}
	return auth.ContextWithPrincipal(ctx, p), p, nil
}

// check maps an API rejection of the token to a cleared session.
func (c *cli) check(ctx context.Context, err error) error {
	if api.KindOf(err) == api.KindUnauthorized {
		_ = c.store.Clear(ctx, session.DefaultKey)
		return errors.New("la sesión expiró, inicie sesión nuevamente")
	}
	return err
}

func (c *cli) login(ctx context.Context, email, password string) error {
	u, err := c.client.Login(ctx, api.Credentials{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		return errors.New(api.MessageOf(err, "No se pudo iniciar sesión"))
	}
	sess := session.FromUser(u, c.now())
	if err := c.store.Save(ctx, session.DefaultKey, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	_ = audit.LogEvent(auth.ContextWithPrincipal(ctx, auth.NewPrincipal(sess)), audit.EventLogin, map[string]any{"email": sess.Email, "client": "hermctl"})
	fmt.Fprintf(c.out, "Bienvenido, %s (%s)\n", sess.FullName(), sess.Role)
	return nil
}

func (c *cli) logout(ctx context.Context) error {
	if actx, _, err := c.authed(ctx); err == nil {
		_ = audit.LogEvent(actx, audit.EventLogout, map[string]any{"client": "hermctl"})
	}
	if err := c.store.Clear(ctx, session.DefaultKey); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Sesión cerrada")
	return nil
}

func (c *cli) whoami(ctx context.Context) error {
	_, p, err := c.authed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s <%s>\nrol: %s\n", p.Session.FullName(), p.Session.Email, p.Role())
	for _, capability := range auth.CapabilitiesFor(p.Role()) {
		fmt.Fprintf(c.out, "  %s\n", capability)
	}
	return nil
}

func (c *cli) search(ctx context.Context, query string) error {
	ctx, _, err := c.authed(ctx)
	if err != nil {
		return err
	}
	all, err := c.client.ListDevotees(ctx)
	if err != nil {
		return c.check(ctx, err)
	}
	found := derive.SearchDevotees(all, query)
	if len(found) == 0 {
		fmt.Fprintln(c.out, "Sin resultados")
		return nil
	}
	for _, d := range found {
		fmt.Fprintf(c.out, "%s  %s  DPI %s\n", d.Key(), d.FullName(), d.DPI)
		for _, a := range d.Turns {
			printAssignment(c.out, a)
		}
	}
	return nil
}

func printAssignment(w io.Writer, a domain.Assignment) {
	label := a.TurnKey()
	if a.Turn != nil {
		label = derive.TurnLabel(*a.Turn)
	}
	line := fmt.Sprintf("    %s  pagado %s  saldo %s  %s", label, a.AmountPaid, derive.DisplayBalance(a), derive.Status(a))
	if derive.Divergent(a) {
		line += " (según saldo: " + string(derive.ReconciledStatus(a)) + ")"
	}
	if code := a.Code(); code != "" {
		line += "  " + code
	}
	fmt.Fprintln(w, line)
}

// commission runs the commission payment flow non-interactively.
func (c *cli) commission(ctx context.Context, devoteeID, turnID, amount string) error {
	ctx, _, err := c.authed(ctx)
	if err != nil {
		return err
	}
	m, err := domain.ParseMoney(amount)
	if err != nil {
		return err
	}
	n := printer{w: c.out}
	set := hooks.NewSet(c.client, n)
	var invoice string
	f := flow.NewCommission(set.Devotees, set.CommissionPayments, flow.InvoiceViewerFunc(func(_ context.Context, number string) {
		invoice = number
	}), n)

	if _, err := f.SelectDevotee(ctx, devoteeID); err != nil {
		return c.check(ctx, err)
	}
	if err := f.SelectTurn(turnID); err != nil {
		return err
	}
	f.SetAmount(m)
	if _, err := f.Submit(ctx); err != nil {
		return c.check(ctx, err)
	}
	if d, ok := set.Devotees.Current(); ok {
		if a, ok := derive.FindAssignment(d, turnID); ok {
			fmt.Fprintf(c.out, "Saldo pendiente: %s\n", derive.DisplayBalance(a))
		}
	}
	if invoice != "" {
		fmt.Fprintf(c.out, "Factura %s: hermctl factura %s\n", invoice, invoice)
	}
	return nil
}

func (c *cli) invoice(ctx context.Context, number, dir string) error {
	ctx, _, err := c.authed(ctx)
	if err != nil {
		return err
	}
	doc, err := c.client.InvoicePDF(ctx, number)
	if err != nil {
		return c.check(ctx, err)
	}
	path := filepath.Join(dir, doc.Name)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Factura guardada en %s\n", path)
	return nil
}
