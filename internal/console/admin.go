package console

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"hermandad.org/internal/api"
	"hermandad.org/internal/audit"
	"hermandad.org/internal/auth"
	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/flow"
	"hermandad.org/internal/hooks"
)

func hooksFrom(r *http.Request) *hooks.Set { return workspaceFrom(r.Context()).Hooks }

func turnOptions(turns []domain.Turn, lowStock int) []flow.TurnOption {
	out := make([]flow.TurnOption, 0, len(turns))
	for _, t := range turns {
		out = append(out, flow.TurnOption{
			Turn:         t,
			Label:        derive.TurnLabel(t),
			Availability: derive.CheckAvailability(t, lowStock),
		})
	}
	return out
}

// --- staff accounts ---

func (s *Server) handleRegisterUserForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, screenRegisterUser, map[string]any{
		"roles": []domain.Role{domain.RoleDirector, domain.RoleMember},
	})
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var reg api.Registration
	if err := decodeJSON(r, &reg); err != nil {
		s.fail(w, r, screenRegisterUser, nil, err)
		return
	}
	if strings.TrimSpace(reg.Name) == "" || strings.TrimSpace(reg.Email) == "" || reg.Password == "" {
		s.fail(w, r, screenRegisterUser, nil, badRequest("Nombre, correo y contraseña son obligatorios"))
		return
	}
	if reg.Role == "" {
		reg.Role = domain.RoleMember
	}
	u, err := hooksFrom(r).Users.Register(r.Context(), reg)
	if err != nil {
		s.fail(w, r, screenRegisterUser, nil, err)
		return
	}
	u.Token = ""
	s.render(w, r, http.StatusCreated, screenRegisterUser, map[string]any{"user": u})
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	users, err := hooksFrom(r).Users.List(r.Context())
	if err != nil {
		s.fail(w, r, screenMembers, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, screenMembers, map[string]any{"members": users})
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	h := hooksFrom(r).Users
	var u domain.User
	if err := decodeJSON(r, &u); err != nil {
		s.fail(w, r, screenMembers, nil, err)
		return
	}
	if err := h.Update(r.Context(), r.PathValue("id"), u); err != nil {
		s.fail(w, r, screenMembers, map[string]any{"members": h.Cached()}, err)
		return
	}
	s.render(w, r, http.StatusOK, screenMembers, map[string]any{"members": h.Cached()})
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	h := hooksFrom(r).Users
	if err := h.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, screenMembers, map[string]any{"members": h.Cached()}, err)
		return
	}
	s.render(w, r, http.StatusOK, screenMembers, map[string]any{"members": h.Cached()})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	u, err := hooksFrom(r).Users.Me(r.Context())
	if err != nil {
		s.fail(w, r, screenProfile, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, screenProfile, map[string]any{"profile": u})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r)
	var u domain.User
	if err := decodeJSON(r, &u); err != nil {
		s.fail(w, r, screenProfile, nil, err)
		return
	}
	me, err := hooksFrom(r).Users.UpdateMe(r.Context(), p.UserID(), u)
	if err != nil {
		s.fail(w, r, screenProfile, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, screenProfile, map[string]any{"profile": me})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var change api.PasswordChange
	if err := decodeJSON(r, &change); err != nil {
		s.fail(w, r, screenProfile, nil, err)
		return
	}
	if change.Current == "" || change.New == "" {
		s.fail(w, r, screenProfile, nil, badRequest("Ingrese la contraseña actual y la nueva"))
		return
	}
	if err := hooksFrom(r).Users.ChangePassword(r.Context(), change); err != nil {
		s.fail(w, r, screenProfile, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, screenProfile, map[string]any{"passwordChanged": true})
}

// --- processions and turns ---

func (s *Server) handleProcessions(w http.ResponseWriter, r *http.Request) {
	list, err := hooksFrom(r).Processions.List(r.Context())
	if err != nil {
		s.fail(w, r, screenProcessions, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, screenProcessions, map[string]any{"processions": list})
}

func (s *Server) handleCreateProcession(w http.ResponseWriter, r *http.Request) {
	h := hooksFrom(r).Processions
	var p domain.Procession
	if err := decodeJSON(r, &p); err != nil {
		s.fail(w, r, screenProcessions, nil, err)
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		s.fail(w, r, screenProcessions, nil, badRequest("El nombre de la procesión es obligatorio"))
		return
	}
	created, err := h.Create(r.Context(), p)
	if err != nil {
		s.fail(w, r, screenProcessions, map[string]any{"processions": h.Cached()}, err)
		return
	}
	s.render(w, r, http.StatusCreated, screenProcessions, map[string]any{
		"procession":  created,
		"processions": h.Cached(),
	})
}

func (s *Server) handleProcession(w http.ResponseWriter, r *http.Request) {
	s.renderProcession(w, r, http.StatusOK, r.PathValue("id"))
}

// renderProcession shows one procession with its turns, filtered by ?q=.
func (s *Server) renderProcession(w http.ResponseWriter, r *http.Request, code int, id string) {
	set := hooksFrom(r)
	p, err := set.Processions.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	turns, err := set.Turns.ByProcession(r.Context(), id)
	if err != nil {
		s.fail(w, r, screenProcession, map[string]any{"procession": p}, err)
		return
	}
	q := r.URL.Query().Get("q")
	s.render(w, r, code, screenProcession, map[string]any{
		"procession": p,
		"query":      q,
		"turns":      turnOptions(derive.FilterTurns(turns, q), s.opts.LowStock),
	})
}

func (s *Server) handleUpdateProcession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch api.ProcessionPatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	if err := hooksFrom(r).Processions.Update(r.Context(), id, patch); err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	s.renderProcession(w, r, http.StatusOK, id)
}

func (s *Server) handleDeleteProcession(w http.ResponseWriter, r *http.Request) {
	h := hooksFrom(r).Processions
	if err := h.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, screenProcessions, map[string]any{"processions": h.Cached()}, err)
		return
	}
	s.render(w, r, http.StatusOK, screenProcessions, map[string]any{"processions": h.Cached()})
}

func (s *Server) decodeTurn(r *http.Request, processionID string) (domain.Turn, error) {
	var t domain.Turn
	if err := decodeJSON(r, &t); err != nil {
		return domain.Turn{}, err
	}
	if t.Procession.ID == "" {
		t.Procession = domain.ProcessionRef{ID: processionID}
	}
	if t.Procession.ID != processionID {
		return domain.Turn{}, badRequest("El turno pertenece a otra procesión")
	}
	if t.Number <= 0 || t.Capacity < 0 || t.Price < 0 {
		return domain.Turn{}, badRequest("Número, cantidad y precio del turno no son válidos")
	}
	return t, nil
}

func (s *Server) handleCreateTurn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.decodeTurn(r, id)
	if err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	if err := hooksFrom(r).Turns.Create(r.Context(), t); err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	s.renderProcession(w, r, http.StatusCreated, id)
}

func (s *Server) handleUpdateTurn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := s.decodeTurn(r, id)
	if err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	if err := hooksFrom(r).Turns.Update(r.Context(), r.PathValue("turno"), t); err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	s.renderProcession(w, r, http.StatusOK, id)
}

func (s *Server) handleDeleteTurn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := hooksFrom(r).Turns.Delete(r.Context(), r.PathValue("turno"), id); err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	s.renderProcession(w, r, http.StatusOK, id)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	doc, err := hooksFrom(r).Turns.Inventory(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, screenProcession, nil, err)
		return
	}
	writeDocument(w, doc)
}

// handleTurnData drills down procession, turn and the devotees holding it.
func (s *Server) handleTurnData(w http.ResponseWriter, r *http.Request) {
	set := hooksFrom(r)
	q := r.URL.Query()
	data := map[string]any{}
	processions, err := set.Processions.Ensure(r.Context())
	if err != nil {
		s.fail(w, r, screenTurnData, nil, err)
		return
	}
	data["processions"] = processions
	if pid := q.Get("procesion"); pid != "" {
		turns, err := set.Turns.ByProcession(r.Context(), pid)
		if err != nil {
			s.fail(w, r, screenTurnData, data, err)
			return
		}
		data["processionId"] = pid
		data["turns"] = turnOptions(turns, s.opts.LowStock)
	}
	if tid := q.Get("turno"); tid != "" {
		devotees, err := set.Devotees.ByTurn(r.Context(), tid)
		if err != nil {
			s.fail(w, r, screenTurnData, data, err)
			return
		}
		data["turnId"] = tid
		data["devotees"] = devotees
	}
	s.render(w, r, http.StatusOK, screenTurnData, data)
}

// --- devotees ---

func (s *Server) handleRegisterDevoteeForm(w http.ResponseWriter, r *http.Request) {
	set := hooksFrom(r)
	processions, err := set.Processions.Ensure(r.Context())
	if err != nil {
		s.fail(w, r, screenRegisterDev, nil, err)
		return
	}
	data := map[string]any{"processions": processions}
	if pid := r.URL.Query().Get("procesion"); pid != "" {
		turns, err := set.Turns.ByProcession(r.Context(), pid)
		if err != nil {
			s.fail(w, r, screenRegisterDev, data, err)
			return
		}
		data["processionId"] = pid
		data["turns"] = turnOptions(turns, s.opts.LowStock)
	}
	s.render(w, r, http.StatusOK, screenRegisterDev, data)
}

func validDevotee(in api.DevoteeInput) error {
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" || strings.TrimSpace(in.DPI) == "" {
		return badRequest("Nombre, apellido y DPI son obligatorios")
	}
	return nil
}

// checkRegistrationTurns allows commission turns at registration only to
// members who manage the brotherhood, and only with their procession.
func checkRegistrationTurns(r *http.Request, in api.DevoteeInput) error {
	if len(in.Turns) == 0 && in.Procession == "" {
		return nil
	}
	if p, ok := principalFrom(r); !ok || !p.HasPermission(auth.CapManageMembers) {
		return errTurnsNeedDirector
	}
	if len(in.Turns) > 0 && in.Procession == "" {
		return errTurnsNeedProcesion
	}
	return nil
}

func (s *Server) handleRegisterDevotee(w http.ResponseWriter, r *http.Request) {
	var in api.DevoteeInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, screenRegisterDev, nil, err)
		return
	}
	if err := validDevotee(in); err != nil {
		s.fail(w, r, screenRegisterDev, nil, err)
		return
	}
	if err := checkRegistrationTurns(r, in); err != nil {
		s.fail(w, r, screenRegisterDev, nil, err)
		return
	}
	d, err := hooksFrom(r).Devotees.Create(r.Context(), in)
	if err != nil {
		s.fail(w, r, screenRegisterDev, nil, err)
		return
	}
	s.render(w, r, http.StatusCreated, screenRegisterDev, map[string]any{"devotee": d})
}

func (s *Server) handleDevotees(w http.ResponseWriter, r *http.Request) {
	s.renderDevotees(w, r, http.StatusOK)
}

// renderDevotees shows the page selected by ?q=, ?page= and ?limit=.
func (s *Server) renderDevotees(w http.ResponseWriter, r *http.Request, code int) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	page := queryInt(q.Get("page"), 1)
	limit := queryInt(q.Get("limit"), 10)
	pg, err := hooksFrom(r).Devotees.Page(r.Context(), query, page, limit)
	if err != nil {
		s.fail(w, r, screenDevotees, nil, err)
		return
	}
	s.render(w, r, code, screenDevotees, map[string]any{"query": query, "page": pg})
}

func queryInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (s *Server) handleUpdateDevotee(w http.ResponseWriter, r *http.Request) {
	var in api.DevoteeInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, screenDevotees, nil, err)
		return
	}
	if err := validDevotee(in); err != nil {
		s.fail(w, r, screenDevotees, nil, err)
		return
	}
	if err := hooksFrom(r).Devotees.Update(r.Context(), r.PathValue("id"), in); err != nil {
		s.fail(w, r, screenDevotees, nil, err)
		return
	}
	s.renderDevotees(w, r, http.StatusOK)
}

func (s *Server) handleDeleteDevotee(w http.ResponseWriter, r *http.Request) {
	if err := hooksFrom(r).Devotees.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, screenDevotees, nil, err)
		return
	}
	s.renderDevotees(w, r, http.StatusOK)
}

// --- invoices and sales ---

func (s *Server) handleInvoices(w http.ResponseWriter, r *http.Request) {
	list, err := hooksFrom(r).Invoices.List(r.Context())
	if err != nil {
		s.fail(w, r, screenInvoices, nil, err)
		return
	}
	q := r.URL.Query().Get("q")
	s.render(w, r, http.StatusOK, screenInvoices, map[string]any{
		"query":    q,
		"invoices": derive.SearchInvoices(list, q),
	})
}

func invoiceData(inv domain.Invoice) map[string]any {
	return map[string]any{"invoice": inv, "pdf": invoicePath(string(inv.Number))}
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := hooksFrom(r).Invoices.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, screenInvoice, nil, err)
		return
	}
	s.render(w, r, http.StatusOK, screenInvoice, invoiceData(inv))
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch api.InvoicePatch
	if err := decodeJSON(r, &patch); err != nil {
		s.fail(w, r, screenInvoice, nil, err)
		return
	}
	if patch.Number != nil && strings.TrimSpace(*patch.Number) == "" {
		s.fail(w, r, screenInvoice, nil, badRequest("El número de factura no puede quedar vacío"))
		return
	}
	inv, err := hooksFrom(r).Invoices.Update(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, screenInvoice, nil, err)
		return
	}
	fields := map[string]any{"invoice_id": id, "number": string(inv.Number)}
	if patch.Active != nil {
		fields["active"] = *patch.Active
	}
	_ = audit.LogEvent(r.Context(), audit.EventInvoiceUpdated, fields)
	s.render(w, r, http.StatusOK, screenInvoice, invoiceData(inv))
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h := hooksFrom(r).Invoices
	if err := h.Delete(r.Context(), id); err != nil {
		s.fail(w, r, screenInvoices, map[string]any{"invoices": h.Cached()}, err)
		return
	}
	_ = audit.LogEvent(r.Context(), audit.EventInvoiceDeleted, map[string]any{"invoice_id": id})
	s.render(w, r, http.StatusOK, screenInvoices, map[string]any{"invoices": h.Cached()})
}

func (s *Server) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	doc, err := hooksFrom(r).Invoices.PDF(r.Context(), r.PathValue("no"))
	if err != nil {
		s.fail(w, r, screenInvoice, nil, err)
		return
	}
	writeDocument(w, doc)
}

// handleSales lists the sales of ?usuario= (the caller by default), narrowed
// to the day in ?fecha= when given.
func (s *Server) handleSales(w http.ResponseWriter, r *http.Request) {
	set := hooksFrom(r)
	q := r.URL.Query()
	p, _ := principalFrom(r)
	userID := q.Get("usuario")
	if userID == "" {
		userID = p.UserID()
	}
	var day time.Time
	if v := q.Get("fecha"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			s.fail(w, r, screenSales, nil, badRequest("Fecha inválida, use AAAA-MM-DD"))
			return
		}
		day = d
	}
	users, err := set.Users.List(r.Context())
	if err != nil {
		s.fail(w, r, screenSales, nil, err)
		return
	}
	history, err := set.Sales.Fetch(r.Context(), userID)
	if err != nil {
		s.fail(w, r, screenSales, map[string]any{"users": users}, err)
		return
	}
	records := derive.SalesOn(history, day)
	total := derive.SalesTotal(records)
	data := map[string]any{
		"users":      users,
		"userId":     userID,
		"records":    records,
		"total":      total,
		"totalLabel": total.String(),
	}
	if !day.IsZero() {
		data["date"] = day.Format(time.DateOnly)
	}
	s.render(w, r, http.StatusOK, screenSales, data)
}
