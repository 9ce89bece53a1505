package console

import (
	"net/http"
	"strings"

	"hermandad.org/internal/api"
	"hermandad.org/internal/audit"
	"hermandad.org/internal/auth"
	"hermandad.org/internal/obs"
	"hermandad.org/internal/session"
)

// Screen names carried in every view model.
const (
	screenLanding      = "landing"
	screenLogin        = "login"
	screenHome         = "home"
	screenUnauthorized = "unauthorized"
	screenNotFound     = "not_found"
	screenRegisterUser = "registro-miembro"
	screenMembers      = "lista-miembros"
	screenProfile      = "miperfil"
	screenProcessions  = "marcheros"
	screenProcession   = "marchero"
	screenRegisterDev  = "register-devoto"
	screenDevotees     = "devotos"
	screenTurnData     = "datos-devoto"
	screenInvoices     = "facturas"
	screenInvoice      = "factura"
	screenSales        = "historial-venta"
	screenPurchase     = "registrar-compra"
	screenCommission   = "pago-comision"
	screenOrdinary     = "pago-ordinario"
	screenPaymentMenu  = "pago-turno"
	screenReservation  = "reservar-turno"
)

func (s *Server) routes() {
	// health, readiness and metrics
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", obs.Handler())

	// session
	s.mux.HandleFunc("GET /{$}", s.handleLanding)
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("GET /unauthorized", s.handleUnauthorized)

	// dashboards
	s.mux.HandleFunc("GET /inicio", s.require(auth.CapManageMembers, s.handleHome))
	s.mux.HandleFunc("GET /inicioMiembro", s.handleHome)

	// staff accounts
	s.mux.HandleFunc("GET /directiva/registro-miembro", s.require(auth.CapManageMembers, s.handleRegisterUserForm))
	s.mux.HandleFunc("POST /directiva/registro-miembro", s.require(auth.CapManageMembers, s.handleRegisterUser))
	s.mux.HandleFunc("GET /directiva/lista-miembros", s.require(auth.CapManageMembers, s.handleMembers))
	s.mux.HandleFunc("PUT /directiva/lista-miembros/{id}", s.require(auth.CapManageMembers, s.handleUpdateMember))
	s.mux.HandleFunc("DELETE /directiva/lista-miembros/{id}", s.require(auth.CapManageMembers, s.handleDeleteMember))
	s.mux.HandleFunc("GET /configuracion/miperfil", s.handleProfile)
	s.mux.HandleFunc("PUT /configuracion/miperfil", s.handleUpdateProfile)
	s.mux.HandleFunc("POST /configuracion/miperfil/password", s.handleChangePassword)

	// processions and turns
	s.mux.HandleFunc("GET /directiva/marcheros", s.require(auth.CapManageProcessions, s.handleProcessions))
	s.mux.HandleFunc("POST /directiva/marcheros", s.require(auth.CapManageProcessions, s.handleCreateProcession))
	s.mux.HandleFunc("GET /directiva/marcheros/{id}", s.require(auth.CapManageProcessions, s.handleProcession))
	s.mux.HandleFunc("PUT /directiva/marcheros/{id}", s.require(auth.CapManageProcessions, s.handleUpdateProcession))
	s.mux.HandleFunc("DELETE /directiva/marcheros/{id}", s.require(auth.CapManageProcessions, s.handleDeleteProcession))
	s.mux.HandleFunc("POST /directiva/marcheros/{id}/turnos", s.require(auth.CapManageProcessions, s.handleCreateTurn))
	s.mux.HandleFunc("PUT /directiva/marcheros/{id}/turnos/{turno}", s.require(auth.CapManageProcessions, s.handleUpdateTurn))
	s.mux.HandleFunc("DELETE /directiva/marcheros/{id}/turnos/{turno}", s.require(auth.CapManageProcessions, s.handleDeleteTurn))
	s.mux.HandleFunc("GET /directiva/marcheros/{id}/inventario", s.require(auth.CapManageProcessions, s.handleInventory))
	s.mux.HandleFunc("GET /directiva/datos-devoto", s.require(auth.CapManageProcessions, s.handleTurnData))

	// devotees
	s.mux.HandleFunc("GET /register-devoto", s.require(auth.CapRegisterDevotee, s.handleRegisterDevoteeForm))
	s.mux.HandleFunc("POST /register-devoto", s.require(auth.CapRegisterDevotee, s.handleRegisterDevotee))
	s.mux.HandleFunc("GET /directiva/devotos", s.require(auth.CapManageMembers, s.handleDevotees))
	s.mux.HandleFunc("PUT /directiva/devotos/{id}", s.require(auth.CapManageMembers, s.handleUpdateDevotee))
	s.mux.HandleFunc("DELETE /directiva/devotos/{id}", s.require(auth.CapManageMembers, s.handleDeleteDevotee))

	// invoices and sales
	s.mux.HandleFunc("GET /directiva/facturas", s.require(auth.CapManageInvoices, s.handleInvoices))
	s.mux.HandleFunc("GET /directiva/facturas/{id}", s.require(auth.CapManageInvoices, s.handleInvoice))
	s.mux.HandleFunc("PUT /directiva/facturas/{id}", s.require(auth.CapManageInvoices, s.handleUpdateInvoice))
	s.mux.HandleFunc("DELETE /directiva/facturas/{id}", s.require(auth.CapManageInvoices, s.handleDeleteInvoice))
	s.mux.HandleFunc("GET /facturas/{no}/pdf", s.require(auth.CapRegisterPayment, s.handleInvoicePDF))
	s.mux.HandleFunc("GET /directiva/historial-venta", s.require(auth.CapViewSales, s.handleSales))

	// sale and payment flows
	s.mux.HandleFunc("GET /registrar-compra", s.require(auth.CapRegisterPurchase, s.handlePurchase))
	s.mux.HandleFunc("POST /registrar-compra", s.require(auth.CapRegisterPurchase, s.handlePurchaseAction))
	s.mux.HandleFunc("GET /pago-turno", s.require(auth.CapRegisterPayment, s.handlePaymentMenu))
	s.mux.HandleFunc("GET /pago-comision", s.require(auth.CapRegisterPayment, s.handleCommission))
	s.mux.HandleFunc("POST /pago-comision", s.require(auth.CapRegisterPayment, s.handleCommissionAction))
	s.mux.HandleFunc("GET /pago-ordinario", s.require(auth.CapRegisterPayment, s.handleOrdinary))
	s.mux.HandleFunc("POST /pago-ordinario", s.require(auth.CapRegisterPayment, s.handleOrdinaryAction))
	s.mux.HandleFunc("GET /reservar-turno", s.require(auth.CapRegisterReservation, s.handleReservation))
	s.mux.HandleFunc("POST /reservar-turno", s.require(auth.CapRegisterReservation, s.handleReservationAction))

	s.mux.HandleFunc("/", s.handleNotFound)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "hermandad-console",
		"version": s.opts.Version,
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, screenLanding, nil)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if p, ok := principalFrom(r); ok {
		http.Redirect(w, r, ViewFor(p.Role()).Home, http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, screenLogin, nil)
}

// handleLogin exchanges credentials for a token and stores the session
// under the workspace id.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var creds api.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		s.fail(w, r, screenLogin, nil, err)
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)
	if creds.Email == "" || creds.Password == "" {
		s.fail(w, r, screenLogin, nil, errMissingCredentials)
		return
	}
	u, err := s.client.Login(r.Context(), creds)
	if err != nil {
		code := statusFor(err)
		msg := api.MessageOf(err, "No se pudo iniciar sesión")
		if api.KindOf(err) == api.KindUnauthorized {
			code = http.StatusUnauthorized
			msg = api.MessageOf(err, "Credenciales incorrectas")
		}
		obs.Warn("login failed", map[string]any{
			"request_id": obs.RequestIDFromContext(r.Context()),
			"kind":       string(api.KindOf(err)),
		})
		p := s.page(r, code, screenLogin, nil)
		p.Error = msg
		writeJSON(w, code, p)
		return
	}
	sess := session.FromUser(u, s.now())
	if err := s.store.Save(r.Context(), ws.ID, sess); err != nil {
		obs.Error("session save failed", map[string]any{
			"request_id": obs.RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
		respondError(w, r, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	s.restart(ws.ID, "")
	ctx := auth.ContextWithPrincipal(r.Context(), auth.NewPrincipal(sess))
	_ = audit.LogEvent(ctx, audit.EventLogin, map[string]any{"email": sess.Email})
	http.Redirect(w, r, ViewFor(sess.Role).Home, http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if _, ok := principalFrom(r); ok {
		_ = audit.LogEvent(r.Context(), audit.EventLogout, nil)
	}
	if err := s.store.Clear(r.Context(), ws.ID); err != nil {
		obs.Warn("clear session failed", map[string]any{"error": err.Error()})
	}
	s.restart(ws.ID, "")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleUnauthorized(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, http.StatusForbidden, screenUnauthorized, nil)
	p.Error = "No tiene permisos para acceder a esta página"
	writeJSON(w, http.StatusForbidden, p)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	p := s.page(r, http.StatusNotFound, screenNotFound, nil)
	p.Error = "Página no encontrada"
	writeJSON(w, http.StatusNotFound, p)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r)
	s.render(w, r, http.StatusOK, screenHome, map[string]any{
		"greeting": "Bienvenido, " + p.Session.FullName(),
	})
}
