package console

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"hermandad.org/internal/api"
	"hermandad.org/internal/flow"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
)

// CookieName carries the browser session id.
const CookieName = "hermandad_session"

// Workspace is the state of one browser session: its hook caches, flows
// and pending toasts.
type Workspace struct {
	ID          string
	Hooks       *hooks.Set
	Toasts      *notify.Recorder
	Commission  *flow.Commission
	Ordinary    *flow.Ordinary
	Purchase    *flow.Purchase
	Reservation *flow.Reservation

	notifier notify.Notifier

	mu       sync.Mutex
	invoice  string
	lastSeen time.Time
}

func newWorkspace(id string, client *api.Client, lowStock int) *Workspace {
	ws := &Workspace{ID: id, Toasts: notify.NewRecorder(20), lastSeen: time.Now()}
	ws.notifier = notify.Tee{ws.Toasts, notify.Log{Fields: map[string]any{"workspace": id}}}
	ws.Hooks = hooks.NewSet(client, ws.notifier)
	ws.Commission = flow.NewCommission(ws.Hooks.Devotees, ws.Hooks.CommissionPayments, ws, ws.notifier)
	ws.Ordinary = flow.NewOrdinary(ws.Hooks, ws, ws.notifier)
	ws.Purchase = flow.NewPurchase(ws.Hooks, ws, ws.notifier, lowStock)
	ws.Reservation = flow.NewReservation(ws.Hooks, ws, ws.notifier, lowStock)
	return ws
}

// OpenInvoice remembers the invoice to hand to the browser on the next render.
func (ws *Workspace) OpenInvoice(_ context.Context, number string) {
	ws.mu.Lock()
	ws.invoice = number
	ws.mu.Unlock()
}

func (ws *Workspace) takeInvoice() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	n := ws.invoice
	ws.invoice = ""
	return n
}

func (ws *Workspace) touch(now time.Time) {
	ws.mu.Lock()
	ws.lastSeen = now
	ws.mu.Unlock()
}

func (ws *Workspace) idleSince(now time.Time) time.Duration {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return now.Sub(ws.lastSeen)
}

// workspaces keeps one Workspace per cookie id and forgets idle ones.
type workspaces struct {
	client   *api.Client
	lowStock int
	idle     time.Duration

	mu    sync.Mutex
	items map[string]*Workspace
	swept time.Time
}

func newWorkspaces(client *api.Client, lowStock int, idle time.Duration) *workspaces {
	return &workspaces{client: client, lowStock: lowStock, idle: idle, items: map[string]*Workspace{}, swept: time.Now()}
}

func (w *workspaces) get(id string, now time.Time) *Workspace {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.Sub(w.swept) > time.Minute {
		for k, ws := range w.items {
			if ws.idleSince(now) > w.idle {
				delete(w.items, k)
			}
		}
		w.swept = now
	}
	ws, ok := w.items[id]
	if !ok {
		ws = newWorkspace(id, w.client, w.lowStock)
		w.items[id] = ws
	}
	ws.touch(now)
	return ws
}

func (w *workspaces) drop(id string) {
	w.mu.Lock()
	delete(w.items, id)
	w.mu.Unlock()
}

func (w *workspaces) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

type workspaceKey struct{}

func workspaceFrom(ctx context.Context) *Workspace {
	ws, _ := ctx.Value(workspaceKey{}).(*Workspace)
	return ws
}

// withWorkspace resolves the cookie to a workspace, issuing a fresh uuid
// cookie when it is missing or malformed.
func (s *Server) withWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(CookieName); err == nil {
			if u, err := uuid.Parse(c.Value); err == nil {
				id = u.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.opts.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ws := s.workspaces.get(id, s.now())
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), workspaceKey{}, ws)))
	})
}
