package console

import (
	"context"
	"net/http"
	"strings"

	"hermandad.org/internal/api"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/flow"
)

// actionRequest is the body every flow screen accepts on POST. Action names
// the step; the other fields are read by the steps that need them.
type actionRequest struct {
	Action   string       `json:"action"`
	ID       string       `json:"id,omitempty"`
	Amount   domain.Money `json:"amount,omitempty"`
	Password string       `json:"password,omitempty"`
	Kind     string       `json:"kind,omitempty"`
}

// Flow steps.
const (
	actDevotee    = "devoto"
	actProcession = "procesion"
	actTurn       = "turno"
	actAmount     = "monto"
	actPassword   = "contrasena"
	actKind       = "tipo"
	actSubmit     = "pagar"
	actComplete   = "completar"
	actReset      = "reiniciar"
)

// devoteeMatches filters the devotee list by q, fetching it on first use.
func devoteeMatches(ctx context.Context, ws *Workspace, q string) ([]domain.Devotee, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	list := ws.Hooks.Devotees.Cached()
	if list == nil {
		var err error
		if list, err = ws.Hooks.Devotees.List(ctx); err != nil {
			return nil, err
		}
	}
	return derive.SearchDevotees(list, q), nil
}

type flowScreen struct {
	State       any                 `json:"state"`
	Matches     []domain.Devotee    `json:"matches,omitempty"`
	Processions []domain.Procession `json:"processions,omitempty"`
}

// showFlow renders a flow's state with the devotee search of ?q=. Sale
// screens also list the processions to pick from.
func (s *Server) showFlow(w http.ResponseWriter, r *http.Request, screen string, state func() any, withProcessions bool) {
	ws := workspaceFrom(r.Context())
	data := flowScreen{State: state()}
	matches, err := devoteeMatches(r.Context(), ws, r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, screen, data, err)
		return
	}
	data.Matches = matches
	if withProcessions {
		if data.Processions, err = ws.Hooks.Processions.Ensure(r.Context()); err != nil {
			s.fail(w, r, screen, data, err)
			return
		}
	}
	s.render(w, r, http.StatusOK, screen, data)
}

// runAction decodes the step, applies it and renders the resulting state.
func (s *Server) runAction(w http.ResponseWriter, r *http.Request, screen string, state func() any, apply func(context.Context, actionRequest) error) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, screen, flowScreen{State: state()}, err)
		return
	}
	if err := apply(r.Context(), req); err != nil {
		s.fail(w, r, screen, flowScreen{State: state()}, err)
		return
	}
	s.render(w, r, http.StatusOK, screen, flowScreen{State: state()})
}

func (s *Server) handlePaymentMenu(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, screenPaymentMenu, map[string]any{
		"options": []NavItem{
			{Title: "Pago de Comisión", Route: "/pago-comision"},
			{Title: "Pago Ordinario", Route: "/pago-ordinario"},
		},
	})
}

// --- commission payments ---

func (s *Server) handleCommission(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Commission
	s.showFlow(w, r, screenCommission, func() any { return f.State() }, false)
}

func (s *Server) handleCommissionAction(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Commission
	s.runAction(w, r, screenCommission, func() any { return f.State() }, func(ctx context.Context, req actionRequest) error {
		switch req.Action {
		case actDevotee:
			_, err := f.SelectDevotee(ctx, req.ID)
			return err
		case actTurn:
			return f.SelectTurn(req.ID)
		case actAmount:
			f.SetAmount(req.Amount)
			return nil
		case actSubmit:
			if req.Amount != 0 {
				f.SetAmount(req.Amount)
			}
			_, err := f.Submit(ctx)
			return err
		case actComplete:
			_, err := f.CompletePayment(ctx)
			return err
		case actReset:
			f.Reset()
			return nil
		}
		return errUnknownAction
	})
}

// --- ordinary payments ---

func (s *Server) handleOrdinary(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Ordinary
	s.showFlow(w, r, screenOrdinary, func() any { return f.State() }, false)
}

func (s *Server) handleOrdinaryAction(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Ordinary
	s.runAction(w, r, screenOrdinary, func() any { return f.State() }, func(ctx context.Context, req actionRequest) error {
		switch req.Action {
		case actDevotee:
			_, err := f.SelectDevotee(ctx, req.ID)
			return err
		case actPassword:
			_, err := f.SelectPassword(ctx, req.Password)
			return err
		case actTurn:
			return f.SelectTurn(req.ID)
		case actSubmit:
			_, err := f.Submit(ctx)
			return err
		case actReset:
			f.Reset()
			return nil
		}
		return errUnknownAction
	})
}

// --- purchases and reservations ---

// turnPicker is the part of the sale flows the screens drive.
type turnPicker interface {
	SelectDevotee(ctx context.Context, id string) (domain.Devotee, error)
	SelectProcession(ctx context.Context, id string) ([]domain.Turn, error)
	SelectTurn(turnID string) (derive.Availability, error)
	Submit(ctx context.Context) (api.Receipt, error)
	Reset(ctx context.Context)
}

func pickStep(ctx context.Context, f turnPicker, req actionRequest) (bool, error) {
	var err error
	switch req.Action {
	case actDevotee:
		_, err = f.SelectDevotee(ctx, req.ID)
	case actProcession:
		_, err = f.SelectProcession(ctx, req.ID)
	case actTurn:
		_, err = f.SelectTurn(req.ID)
	case actSubmit:
		_, err = f.Submit(ctx)
	case actReset:
		f.Reset(ctx)
	default:
		return false, nil
	}
	return true, err
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Purchase
	s.showFlow(w, r, screenPurchase, func() any { return f.State() }, true)
}

func (s *Server) handlePurchaseAction(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Purchase
	s.runAction(w, r, screenPurchase, func() any { return f.State() }, func(ctx context.Context, req actionRequest) error {
		if ok, err := pickStep(ctx, f, req); ok {
			return err
		}
		return errUnknownAction
	})
}

func (s *Server) handleReservation(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Reservation
	s.showFlow(w, r, screenReservation, func() any { return f.State() }, true)
}

func (s *Server) handleReservationAction(w http.ResponseWriter, r *http.Request) {
	f := workspaceFrom(r.Context()).Reservation
	s.runAction(w, r, screenReservation, func() any { return f.State() }, func(ctx context.Context, req actionRequest) error {
		if req.Action == actKind {
			return f.SetKind(api.PaymentKind(strings.ToUpper(strings.TrimSpace(req.Kind))))
		}
		if ok, err := pickStep(ctx, f, req); ok {
			return err
		}
		return errUnknownAction
	})
}

var (
	_ turnPicker = (*flow.Purchase)(nil)
	_ turnPicker = (*flow.Reservation)(nil)
)
