package apitest

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"hermandad.org/internal/domain"
	"hermandad.org/internal/ids"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, http.MethodPost, "auth/login", true, s.login)
	s.handle(mux, http.MethodPost, "auth/register", false, s.register)

	s.handle(mux, http.MethodGet, "user/getUsers", false, s.listUsers)
	s.handle(mux, http.MethodGet, "user/getMyUser", false, func(w http.ResponseWriter, r *http.Request, u domain.User) {
		writeJSON(w, http.StatusOK, map[string]any{"user": u})
	})
	s.handle(mux, http.MethodPut, "user/updatePassword", false, s.updatePassword)
	s.handle(mux, http.MethodGet, "user/getUser/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		if acc := s.accountLocked(r.PathValue("id")); acc != nil {
			writeJSON(w, http.StatusOK, map[string]any{"user": acc.user})
			return
		}
		notFound(w, "Usuario no encontrado")
	})
	s.handle(mux, http.MethodPut, "user/getUpdateUser/:id", false, s.updateUser)
	s.handle(mux, http.MethodPut, "user/updateMyUser/:id", false, func(w http.ResponseWriter, r *http.Request, u domain.User) {
		if r.PathValue("id") != u.Key() {
			writeJSON(w, http.StatusForbidden, map[string]any{"msg": "Solo puede editar su propio perfil"})
			return
		}
		s.updateUser(w, r, u)
	})
	s.handle(mux, http.MethodDelete, "user/getDeleteUser/:id", false, func(w http.ResponseWriter, r *http.Request, u domain.User) {
		acc := s.accountLocked(r.PathValue("id"))
		if acc == nil {
			notFound(w, "Usuario no encontrado")
			return
		}
		delete(s.accounts, strings.ToLower(acc.user.Email))
		writeJSON(w, http.StatusOK, map[string]any{"message": "Usuario eliminado"})
	})

	s.handle(mux, http.MethodGet, "procesion/getProcesiones", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		out := make([]domain.Procession, 0, len(s.processions))
		for _, p := range s.processions {
			out = append(out, *p)
		}
		writeJSON(w, http.StatusOK, map[string]any{"procesiones": out})
	})
	s.handle(mux, http.MethodGet, "procesion/getProcesionesById/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		p := s.findProcessionLocked(r.PathValue("id"))
		if p == nil {
			notFound(w, "Procesión no encontrada")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"procesion": p})
	})
	s.handle(mux, http.MethodPost, "procesion/addProcesiones", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		var p domain.Procession
		if err := decode(r, &p); err != nil || strings.TrimSpace(p.Name) == "" {
			badRequest(w, "El nombre es obligatorio")
			return
		}
		p.ID = ids.New()
		cp := p
		s.processions = append(s.processions, &cp)
		writeJSON(w, http.StatusCreated, map[string]any{"procesion": p})
	})
	s.handle(mux, http.MethodPut, "procesion/updateProcesion/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		p := s.findProcessionLocked(r.PathValue("id"))
		if p == nil {
			notFound(w, "Procesión no encontrada")
			return
		}
		var patch struct {
			Name        *string    `json:"nombre"`
			Description *string    `json:"descripcion"`
			TotalTurns  *int       `json:"totalTurnos"`
			Date        *time.Time `json:"fecha"`
		}
		if err := decode(r, &patch); err != nil {
			badRequest(w, "Datos inválidos")
			return
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.Description != nil {
			p.Description = *patch.Description
		}
		if patch.TotalTurns != nil {
			p.TotalTurns = *patch.TotalTurns
		}
		if patch.Date != nil {
			p.Date = patch.Date
		}
		writeJSON(w, http.StatusOK, map[string]any{"procesion": p})
	})
	s.handle(mux, http.MethodDelete, "procesion/deleteProcesion/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		id := r.PathValue("id")
		for i, p := range s.processions {
			if p.Key() == id {
				s.processions = append(s.processions[:i], s.processions[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"message": "Procesión eliminada"})
				return
			}
		}
		notFound(w, "Procesión no encontrada")
	})

	s.handle(mux, http.MethodGet, "turno/getTurnos", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		writeJSON(w, http.StatusOK, map[string]any{"turnos": s.turnsLocked("")})
	})
	s.handle(mux, http.MethodGet, "turno/getTurnosByProcesion/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		writeJSON(w, http.StatusOK, map[string]any{"turnos": s.turnsLocked(r.PathValue("id"))})
	})
	s.handle(mux, http.MethodGet, "turno/getTurnoById/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		t, ok := s.turns[r.PathValue("id")]
		if !ok {
			notFound(w, "Turno no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"turno": t})
	})
	s.handle(mux, http.MethodPost, "turno/addTurno", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		var t domain.Turn
		if err := decode(r, &t); err != nil || t.Procession.ID == "" {
			badRequest(w, "La procesión es obligatoria")
			return
		}
		t.ID = ids.New()
		t.Unsold = t.Capacity - t.Sold
		cp := t
		s.turns[t.ID] = &cp
		s.turnOrder = append(s.turnOrder, t.ID)
		writeJSON(w, http.StatusCreated, map[string]any{"turno": t})
	})
	s.handle(mux, http.MethodPut, "turno/updateTurno/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		t, ok := s.turns[r.PathValue("id")]
		if !ok {
			notFound(w, "Turno no encontrado")
			return
		}
		var in domain.Turn
		if err := decode(r, &in); err != nil {
			badRequest(w, "Datos inválidos")
			return
		}
		t.Number, t.Address, t.March, t.Price, t.Type = in.Number, in.Address, in.March, in.Price, in.Type
		if in.Capacity >= t.Sold {
			t.Capacity = in.Capacity
			t.Unsold = t.Capacity - t.Sold
		}
		writeJSON(w, http.StatusOK, map[string]any{"turno": t})
	})
	s.handle(mux, http.MethodDelete, "turno/deleteTurno/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		id := r.PathValue("id")
		if _, ok := s.turns[id]; !ok {
			notFound(w, "Turno no encontrado")
			return
		}
		delete(s.turns, id)
		for i, tid := range s.turnOrder {
			if tid == id {
				s.turnOrder = append(s.turnOrder[:i], s.turnOrder[i+1:]...)
				break
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Turno eliminado"})
	})
	s.handle(mux, http.MethodGet, "turno/descargarInventario/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		if s.findProcessionLocked(r.PathValue("id")) == nil {
			notFound(w, "Procesión no encontrada")
			return
		}
		writePDF(w, "inventario "+r.PathValue("id"))
	})

	s.handle(mux, http.MethodGet, "devoto/getDevotos", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		writeJSON(w, http.StatusOK, map[string]any{"devotos": s.devoteesLocked(nil)})
	})
	s.handle(mux, http.MethodGet, "devoto/getDevotoById/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		d, ok := s.devotees[r.PathValue("id")]
		if !ok {
			notFound(w, "Devoto no encontrado")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devoto": d})
	})
	s.handle(mux, http.MethodGet, "devoto/devotosByTurno/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		turnID := r.PathValue("id")
		writeJSON(w, http.StatusOK, map[string]any{"devotos": s.devoteesLocked(func(d *domain.Devotee) bool {
			return assignmentFor(d, turnID) >= 0
		})})
	})
	s.handle(mux, http.MethodGet, "devoto/search", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		writeJSON(w, http.StatusOK, map[string]any{"devotos": s.devoteesLocked(func(d *domain.Devotee) bool {
			return q != "" && (strings.Contains(strings.ToLower(d.FullName()), q) || strings.Contains(d.DPI, q))
		})})
	})
	s.handle(mux, http.MethodGet, "devoto/getDevotosPaginacion", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		writeJSON(w, http.StatusOK, paginate(s.devoteesLocked(nil), r))
	})
	s.handle(mux, http.MethodGet, "devoto/search/devotos/", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
		writeJSON(w, http.StatusOK, paginate(s.devoteesLocked(func(d *domain.Devotee) bool {
			return strings.Contains(strings.ToLower(d.FullName()), q) || strings.Contains(d.DPI, q)
		}), r))
	})
	s.handle(mux, http.MethodPost, "devoto/addDevoto", false, s.addDevotee)
	s.handle(mux, http.MethodPut, "devoto/updateDevoto/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		d, ok := s.devotees[r.PathValue("id")]
		if !ok {
			notFound(w, "Devoto no encontrado")
			return
		}
		var in devoteeInput
		if err := decode(r, &in); err != nil {
			badRequest(w, "Datos inválidos")
			return
		}
		d.FirstName, d.LastName, d.DPI, d.Email, d.Phone, d.Address = in.FirstName, in.LastName, in.DPI, in.Email, in.Phone, in.Address
		writeJSON(w, http.StatusOK, map[string]any{"devoto": d})
	})
	s.handle(mux, http.MethodDelete, "devoto/deleteDevoto/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		id := r.PathValue("id")
		if _, ok := s.devotees[id]; !ok {
			notFound(w, "Devoto no encontrado")
			return
		}
		delete(s.devotees, id)
		for i, did := range s.devOrder {
			if did == id {
				s.devOrder = append(s.devOrder[:i], s.devOrder[i+1:]...)
				break
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Devoto eliminado"})
	})

	s.handle(mux, http.MethodPost, "compra/registrarCompra", false, s.registerPurchase)
	s.handle(mux, http.MethodPut, "compra/pagarComision", false, s.payCommission)
	s.handle(mux, http.MethodPut, "compra/registrarPago", false, s.completePayment)
	s.handle(mux, http.MethodPost, "compra/pagoOrdinario", false, s.payOrdinary)
	s.handle(mux, http.MethodPost, "compra/reservarTurno", false, s.reserve)
	s.handle(mux, http.MethodGet, "compra/generarFacturaPDF/:noFactura", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		no := r.PathValue("noFactura")
		for _, inv := range s.invoices {
			if string(inv.Number) == no {
				writePDF(w, "factura "+no)
				return
			}
		}
		notFound(w, "Factura no encontrada")
	})
	s.handle(mux, http.MethodGet, "compra/listFacturas", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		out := make([]domain.Invoice, 0, len(s.invoices))
		for _, inv := range s.invoices {
			out = append(out, *inv)
		}
		writeJSON(w, http.StatusOK, map[string]any{"facturas": out})
	})
	s.handle(mux, http.MethodGet, "compra/facturaById/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		if inv := s.invoiceLocked(r.PathValue("id")); inv != nil {
			writeJSON(w, http.StatusOK, map[string]any{"factura": inv})
			return
		}
		notFound(w, "Factura no encontrada")
	})
	s.handle(mux, http.MethodPut, "compra/updateFactura/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		inv := s.invoiceLocked(r.PathValue("id"))
		if inv == nil {
			notFound(w, "Factura no encontrada")
			return
		}
		var patch struct {
			Number *domain.InvoiceNumber `json:"noFactura"`
			Date   *time.Time            `json:"fechaFactura"`
			Active *bool                 `json:"state"`
		}
		if err := decode(r, &patch); err != nil {
			badRequest(w, "Datos inválidos")
			return
		}
		if patch.Number != nil {
			inv.Number = *patch.Number
		}
		if patch.Date != nil {
			inv.Date = patch.Date
		}
		if patch.Active != nil {
			v := *patch.Active
			inv.Active = &v
		}
		writeJSON(w, http.StatusOK, map[string]any{"factura": inv})
	})
	s.handle(mux, http.MethodDelete, "compra/deleteFactura/:id", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		id := r.PathValue("id")
		for i, inv := range s.invoices {
			if inv.Key() == id {
				s.invoices = append(s.invoices[:i], s.invoices[i+1:]...)
				writeJSON(w, http.StatusOK, map[string]any{"message": "Factura eliminada"})
				return
			}
		}
		notFound(w, "Factura no encontrada")
	})
	s.handle(mux, http.MethodGet, "compra/historialVenta/:userId", false, func(w http.ResponseWriter, r *http.Request, _ domain.User) {
		records, ok := s.sales[r.PathValue("userId")]
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"message": "El usuario no tiene ventas registradas"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"historial": records, "message": "Historial obtenido"})
	})
	return mux
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"contraseña"`
	}
	if err := decode(r, &creds); err != nil {
		badRequest(w, "Datos inválidos")
		return
	}
	acc, ok := s.accounts[strings.ToLower(creds.Email)]
	if !ok {
		badRequest(w, "No existe un usuario con ese correo")
		return
	}
	if acc.password != creds.Password {
		badRequest(w, "Contraseña incorrecta")
		return
	}
	u := acc.user
	u.Token = s.issueLocked(u)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login exitoso", "userDetails": u})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var in struct {
		domain.User
		Password string `json:"contraseña"`
	}
	if err := decode(r, &in); err != nil || in.Email == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"msg": "El correo y la contraseña son obligatorios"}}})
		return
	}
	if _, exists := s.accounts[strings.ToLower(in.Email)]; exists {
		badRequest(w, "El correo ya está registrado")
		return
	}
	u := in.User
	u.ID = ids.New()
	u.Token = ""
	if u.Role == "" {
		u.Role = domain.RoleMember
	}
	s.accounts[strings.ToLower(u.Email)] = &account{user: u, password: in.Password}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Usuario registrado", "user": u})
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	out := make([]domain.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc.user)
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, _ domain.User) {
	acc := s.accountLocked(r.PathValue("id"))
	if acc == nil {
		notFound(w, "Usuario no encontrado")
		return
	}
	var in domain.User
	if err := decode(r, &in); err != nil {
		badRequest(w, "Datos inválidos")
		return
	}
	u := acc.user
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if in.Phone != "" {
		u.Phone = in.Phone
	}
	if in.Address != "" {
		u.Address = in.Address
	}
	if in.Username != "" {
		u.Username = in.Username
	}
	if in.Role != "" {
		u.Role = in.Role
	}
	acc.user = u
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) accountLocked(id string) *account {
	for _, acc := range s.accounts {
		if acc.user.Key() == id {
			return acc
		}
	}
	return nil
}

func (s *Server) updatePassword(w http.ResponseWriter, r *http.Request, u domain.User) {
	var in struct {
		Current string `json:"currentPassword"`
		New     string `json:"newPassword"`
	}
	if err := decode(r, &in); err != nil || in.New == "" {
		badRequest(w, "La nueva contraseña es obligatoria")
		return
	}
	acc := s.accounts[strings.ToLower(u.Email)]
	if acc == nil || acc.password != in.Current {
		badRequest(w, "La contraseña actual no es correcta")
		return
	}
	acc.password = in.New
	writeJSON(w, http.StatusOK, map[string]any{"message": "Contraseña actualizada"})
}

func (s *Server) addDevotee(w http.ResponseWriter, r *http.Request, _ domain.User) {
	var in devoteeInput
	if err := decode(r, &in); err != nil || in.FirstName == "" || in.DPI == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"msg": "Nombre y DPI son obligatorios"}}})
		return
	}
	for _, d := range s.devotees {
		if d.DPI == in.DPI {
			badRequest(w, "Ya existe un devoto con ese DPI")
			return
		}
	}
	d := &domain.Devotee{
		LegacyID:  ids.New(),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		DPI:       in.DPI,
		Email:     in.Email,
		Phone:     in.Phone,
		Address:   in.Address,
	}
	for _, tid := range in.Turns {
		t, ok := s.turns[tid]
		if !ok {
			badRequest(w, "Turno no encontrado")
			return
		}
		if in.Procession != "" && t.Procession.ID != in.Procession {
			badRequest(w, "El turno no pertenece a la procesión")
			return
		}
		d.Turns = append(d.Turns, domain.Assignment{Turn: t, Password: "CM-" + strconv.Itoa(t.Number), Status: domain.StatusPending})
	}
	s.devotees[d.Key()] = d
	s.devOrder = append(s.devOrder, d.Key())
	writeJSON(w, http.StatusCreated, map[string]any{"message": "Devoto registrado", "devoto": d})
}

type devoteeInput struct {
	FirstName  string   `json:"nombre"`
	LastName   string   `json:"apellido"`
	DPI        string   `json:"DPI"`
	Email      string   `json:"email"`
	Phone      string   `json:"telefono"`
	Address    string   `json:"direccion"`
	Procession string   `json:"procesion"`
	Turns      []string `json:"turnos"`
}

func (s *Server) turnsLocked(processionID string) []domain.Turn {
	out := make([]domain.Turn, 0, len(s.turnOrder))
	for _, id := range s.turnOrder {
		t := s.turns[id]
		if processionID == "" || t.Procession.ID == processionID {
			out = append(out, *t)
		}
	}
	return out
}

func (s *Server) devoteesLocked(keep func(*domain.Devotee) bool) []domain.Devotee {
	out := make([]domain.Devotee, 0, len(s.devOrder))
	for _, id := range s.devOrder {
		d := s.devotees[id]
		if keep == nil || keep(d) {
			out = append(out, snapshotDevotee(d))
		}
	}
	return out
}

func (s *Server) invoiceLocked(id string) *domain.Invoice {
	for _, inv := range s.invoices {
		if inv.Key() == id {
			return inv
		}
	}
	return nil
}

func paginate(all []domain.Devotee, r *http.Request) map[string]any {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := min(start+limit, len(all))
	return map[string]any{
		"devotos":    all[start:end],
		"total":      len(all),
		"page":       page,
		"totalPages": (len(all) + limit - 1) / limit,
	}
}

func writePDF(w http.ResponseWriter, label string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("%PDF-1.4\n% " + label + "\n%%EOF\n"))
}
