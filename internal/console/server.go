// Package console serves the brotherhood staff console. Every screen answers
// with a JSON view model carrying the derived figures and the toasts queued
// for the browser session.
package console

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"hermandad.org/internal/api"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/flow"
	"hermandad.org/internal/hooks"
	"hermandad.org/internal/notify"
	"hermandad.org/internal/obs"
	"hermandad.org/internal/session"
)

type Options struct {
	Version            string
	LowStock           int
	SecureCookies      bool
	WorkspaceIdle      time.Duration
	RateLimitBurst     int
	RateLimitPerSecond int
	MaxBodyBytes       int64
	// Now overrides the clock used for session expiry; tests only.
	Now func() time.Time
}

// Server is the console HTTP layer.
type Server struct {
	mux        *http.ServeMux
	client     *api.Client
	store      session.Store
	workspaces *workspaces
	opts       Options
	ready      func() error
}

// New wires the console over client, keeping logins in store.
func New(client *api.Client, store session.Store, opts Options) *Server {
	if opts.WorkspaceIdle <= 0 {
		opts.WorkspaceIdle = 12 * time.Hour
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}
	if opts.RateLimitPerSecond <= 0 {
		opts.RateLimitPerSecond = 20
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		mux:        http.NewServeMux(),
		client:     client,
		store:      store,
		workspaces: newWorkspaces(client, opts.LowStock, opts.WorkspaceIdle),
		opts:       opts,
	}
	s.routes()
	return s
}

// SetReadiness installs the check behind /readyz, e.g. a session store ping.
func (s *Server) SetReadiness(check func() error) { s.ready = check }

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = s.guard(h)
	h = s.withWorkspace(h)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, s.opts.MaxBodyBytes)
	h = RateLimit(h, s.opts.RateLimitBurst, s.opts.RateLimitPerSecond)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (s *Server) now() time.Time { return s.opts.Now() }

// page is the view model every screen renders.
type page struct {
	Screen    string                `json:"screen"`
	User      *userView             `json:"user,omitempty"`
	View      *View                 `json:"view,omitempty"`
	Data      any                   `json:"data,omitempty"`
	Invoice   *invoiceLink          `json:"invoice,omitempty"`
	Error     string                `json:"error,omitempty"`
	RequestID string                `json:"request_id,omitempty"`
	Toasts    []notify.Notification `json:"toasts"`
}

type userView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role"`
}

type invoiceLink struct {
	Number string `json:"number"`
	PDF    string `json:"pdf"`
}

func invoicePath(number string) string { return "/facturas/" + number + "/pdf" }

// render writes screen with data, the pending toasts and any invoice a
// flow asked to open.
func (s *Server) render(w http.ResponseWriter, r *http.Request, code int, screen string, data any) {
	writeJSON(w, code, s.page(r, code, screen, data))
}

func (s *Server) page(r *http.Request, code int, screen string, data any) page {
	p := page{Screen: screen, Data: data, Toasts: []notify.Notification{}}
	if principal, ok := principalFrom(r); ok {
		v := ViewFor(principal.Role())
		p.View = &v
		p.User = &userView{
			ID:       principal.UserID(),
			Name:     principal.Session.FullName(),
			Email:    principal.Session.Email,
			Username: principal.Session.Username,
			Role:     string(principal.Role()),
		}
	}
	if ws := workspaceFrom(r.Context()); ws != nil {
		if n := ws.takeInvoice(); n != "" {
			p.Invoice = &invoiceLink{Number: n, PDF: invoicePath(n)}
		}
		if t := ws.Toasts.Drain(); t != nil {
			p.Toasts = t
		}
	}
	if code >= 400 {
		p.RequestID = obs.RequestIDFromContext(r.Context())
	}
	return p
}

// fail renders err on screen along with data. An unauthorized API answer
// ends the session.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, screen string, data any, err error) {
	if api.KindOf(err) == api.KindUnauthorized {
		s.expire(w, r)
		return
	}
	code := statusFor(err)
	if code >= 500 {
		obs.Warn("screen failed", map[string]any{
			"screen":     screen,
			"request_id": obs.RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
	}
	msg := api.MessageOf(err, "No se pudo completar la operación")
	var ue *userError
	if errors.As(err, &ue) {
		msg = ue.msg
	}
	if ws := workspaceFrom(r.Context()); ws != nil && len(ws.Toasts.Pending()) == 0 {
		notify.Error(ws.notifier, msg)
	}
	p := s.page(r, code, screen, data)
	p.Error = msg
	writeJSON(w, code, p)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrBusy), errors.Is(err, hooks.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	case errors.Is(err, flow.ErrIncomplete), errors.Is(err, flow.ErrNotEligible),
		errors.Is(err, flow.ErrNoEligibleTurns), errors.Is(err, flow.ErrNoInvoice),
		errors.Is(err, derive.ErrNonPositiveAmount), errors.Is(err, derive.ErrAmountExceedsBalance),
		errors.Is(err, derive.ErrSoldOut), errors.Is(err, derive.ErrNoMatchingProcession),
		errors.Is(err, derive.ErrAmbiguousProcession):
		return http.StatusUnprocessableEntity
	}
	switch api.KindOf(err) {
	case api.KindValidation:
		return http.StatusUnprocessableEntity
	case api.KindTransport:
		return http.StatusGatewayTimeout
	case api.KindServer, api.KindDecode:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest = errors.New("console: malformed request body")
	errForbidden  = errors.New("console: capability missing")
)

// userError is a rejected request with the message the screen shows.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.err.Error() + ": " + e.msg }
func (e *userError) Unwrap() error { return e.err }

func badRequest(msg string) error { return &userError{msg: msg, err: errBadRequest} }

var (
	errMissingCredentials = badRequest("Ingrese correo y contraseña")
	errUnknownAction      = badRequest("Acción desconocida")
	errTurnsNeedDirector  = &userError{msg: "Solo la directiva puede asignar turnos al registrar un devoto", err: errForbidden}
	errTurnsNeedProcesion = badRequest("Seleccione la procesión de los turnos")
)

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errBadRequest
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the plain error body used outside screens.
func respondError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":      msg,
		"request_id": obs.RequestIDFromContext(r.Context()),
	})
}

func writeDocument(w http.ResponseWriter, doc api.Document) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}
