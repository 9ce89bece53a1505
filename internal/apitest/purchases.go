package apitest

import (
	"net/http"

	"hermandad.org/internal/domain"
)

func (s *Server) payCommission(w http.ResponseWriter, r *http.Request, u domain.User) {
	var in struct {
		DevoteeID string       `json:"devotoId"`
		TurnID    string       `json:"turnoId"`
		Amount    domain.Money `json:"montoPagado"`
	}
	if err := decode(r, &in); err != nil {
		badRequest(w, "Datos inválidos")
		return
	}
	d, a, ok := s.assignmentLocked(w, in.DevoteeID, in.TurnID)
	if !ok {
		return
	}
	t := a.Turn
	if in.Amount <= 0 {
		badRequest(w, "El monto debe ser mayor a cero")
		return
	}
	if a.AmountPaid+in.Amount > t.Price {
		badRequest(w, "El monto excede el saldo pendiente")
		return
	}
	a.AmountPaid += in.Amount
	if a.AmountPaid >= t.Price {
		a.Status = domain.StatusPaid
	} else {
		a.Status = domain.StatusPartial
	}
	no := s.issueInvoiceLocked(d, t, u, in.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Pago registrado", "noFactura": no})
}

func (s *Server) completePayment(w http.ResponseWriter, r *http.Request, u domain.User) {
	var in struct {
		DevoteeID string `json:"devotoId"`
		TurnID    string `json:"turnoId"`
	}
	if err := decode(r, &in); err != nil {
		badRequest(w, "Datos inválidos")
		return
	}
	d, a, ok := s.assignmentLocked(w, in.DevoteeID, in.TurnID)
	if !ok {
		return
	}
	remaining := a.Turn.Price - a.AmountPaid
	if remaining <= 0 {
		badRequest(w, "El turno ya está pagado")
		return
	}
	a.AmountPaid = a.Turn.Price
	a.Status = domain.StatusPaid
	no := s.issueInvoiceLocked(d, a.Turn, u, remaining)
	writeJSON(w, http.StatusOK, map[string]any{"compra": map[string]any{"noFactura": no}})
}

func (s *Server) payOrdinary(w http.ResponseWriter, r *http.Request, u domain.User) {
	var in struct {
		DevoteeID string `json:"devotoId"`
		TurnID    string `json:"turnoId"`
		Password  string `json:"contraseña"`
	}
	if err := decode(r, &in); err != nil {
		badRequest(w, "Datos inválidos")
		return
	}
	d, ok := s.devotees[in.DevoteeID]
	if !ok {
		notFound(w, "Devoto no encontrado")
		return
	}
	t, ok := s.turns[in.TurnID]
	if !ok {
		notFound(w, "Turno no encontrado")
		return
	}
	idx := -1
	for i, a := range d.Turns {
		if a.Code() == in.Password {
			idx = i
			break
		}
	}
	if idx < 0 {
		badRequest(w, "La contraseña no pertenece al devoto")
		return
	}
	if !s.sellLocked(t) {
		badRequest(w, "No hay turnos disponibles")
		return
	}
	a := &d.Turns[idx]
	a.Turn = t
	a.AmountPaid = t.Price
	a.Status = domain.StatusPaid
	no := s.issueInvoiceLocked(d, t, u, t.Price)
	writeJSON(w, http.StatusOK, map[string]any{"compra": map[string]any{"noFactura": no}})
}

func (s *Server) registerPurchase(w http.ResponseWriter, r *http.Request, u domain.User) {
	var in struct {
		DevoteeID string `json:"devoto"`
		TurnID    string `json:"turno"`
		Payment   string `json:"pago"`
	}
	if err := decode(r, &in); err != nil {
		badRequest(w, "Datos inválidos")
		return
	}
	d, ok := s.devotees[in.DevoteeID]
	if !ok {
		notFound(w, "Devoto no encontrado")
		return
	}
	t, ok := s.turns[in.TurnID]
	if !ok {
		notFound(w, "Turno no encontrado")
		return
	}
	if !s.sellLocked(t) {
		badRequest(w, "No hay turnos disponibles")
		return
	}
	d.Turns = append(d.Turns, domain.Assignment{
		Turn:       t,
		Password:   ordinaryPassword(s.findProcessionLocked(t.Procession.ID), t),
		AmountPaid: t.Price,
		Status:     domain.StatusPaid,
	})
	no := s.issueInvoiceLocked(d, t, u, t.Price)
	writeJSON(w, http.StatusOK, map[string]any{"compra": map[string]any{"noFactura": no}})
}

func (s *Server) reserve(w http.ResponseWriter, r *http.Request, u domain.User) {
	var in struct {
		DevoteeID string `json:"devotoId"`
		TurnID    string `json:"turnoId"`
		Kind      string `json:"tipoReserva"`
	}
	if err := decode(r, &in); err != nil {
		badRequest(w, "Datos inválidos")
		return
	}
	if in.Kind != "COMPLETO" && in.Kind != "MEDIO" {
		badRequest(w, "Tipo de reserva inválido")
		return
	}
	d, ok := s.devotees[in.DevoteeID]
	if !ok {
		notFound(w, "Devoto no encontrado")
		return
	}
	t, ok := s.turns[in.TurnID]
	if !ok {
		notFound(w, "Turno no encontrado")
		return
	}
	if !s.sellLocked(t) {
		badRequest(w, "No hay turnos disponibles")
		return
	}
	paid, status := t.Price, domain.StatusPaid
	if in.Kind == "MEDIO" {
		paid, status = t.Price/2, domain.StatusPartial
	}
	d.Turns = append(d.Turns, domain.Assignment{
		Turn:       t,
		Password:   ordinaryPassword(s.findProcessionLocked(t.Procession.ID), t),
		AmountPaid: paid,
		Status:     status,
	})
	no := s.issueInvoiceLocked(d, t, u, paid)
	writeJSON(w, http.StatusOK, map[string]any{"compra": map[string]any{"noFactura": no}})
}

// assignmentLocked resolves the devotee and its assignment on turnID,
// writing the error response itself when either is missing.
func (s *Server) assignmentLocked(w http.ResponseWriter, devoteeID, turnID string) (*domain.Devotee, *domain.Assignment, bool) {
	d, ok := s.devotees[devoteeID]
	if !ok {
		notFound(w, "Devoto no encontrado")
		return nil, nil, false
	}
	idx := assignmentFor(d, turnID)
	if idx < 0 {
		notFound(w, "El devoto no tiene asignado ese turno")
		return nil, nil, false
	}
	return d, &d.Turns[idx], true
}
