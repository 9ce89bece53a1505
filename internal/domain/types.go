package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// TurnType tags a turn as directly purchasable or commission-allocated.
type TurnType string

const (
	TurnOrdinary   TurnType = "ORDINARIO"
	TurnCommission TurnType = "COMISION"
)

// PaymentStatus is the server-stored payment tag of an assignment.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "PAGADO"
	StatusPending PaymentStatus = "PENDIENTE"
	StatusPartial PaymentStatus = "MEDIO"
)

// Role of a staff account.
type Role string

const (
	RoleDirector Role = "ROL_DIRECTIVO"
	RoleMember   Role = "ROL_GENERAL"
)

// Devotee holds one or more turns across processions.
type Devotee struct {
	ID        string       `json:"uid,omitempty"`
	LegacyID  string       `json:"_id,omitempty"`
	FirstName string       `json:"nombre"`
	LastName  string       `json:"apellido"`
	DPI       string       `json:"DPI"`
	Email     string       `json:"email,omitempty"`
	Phone     string       `json:"telefono,omitempty"`
	Address   string       `json:"direccion,omitempty"`
	Turns     []Assignment `json:"turnos,omitempty"`
}

// Key returns whichever id the server populated.
func (d Devotee) Key() string { return firstNonEmpty(d.ID, d.LegacyID) }

// FullName is "nombre apellido" without surrounding blanks.
func (d Devotee) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Assignment links a devotee to a turn with its password and payment state.
type Assignment struct {
	Turn           *Turn         `json:"turno,omitempty"`
	Password       string        `json:"contraseñas,omitempty"`
	LegacyPassword string        `json:"contraseña,omitempty"`
	AmountPaid     Money         `json:"montoPagado"`
	Status         PaymentStatus `json:"estadoPago,omitempty"`
}

// Code returns the trimmed access password regardless of which field carried it.
func (a Assignment) Code() string {
	return strings.TrimSpace(firstNonEmpty(a.Password, a.LegacyPassword))
}

// TurnKey returns the id of the referenced turn, or "" when it was not populated.
func (a Assignment) TurnKey() string {
	if a.Turn == nil {
		return ""
	}
	return a.Turn.Key()
}

// Procession owns a set of turns.
type Procession struct {
	ID          string     `json:"uid,omitempty"`
	LegacyID    string     `json:"_id,omitempty"`
	Name        string     `json:"nombre"`
	Description string     `json:"descripcion,omitempty"`
	TotalTurns  int        `json:"totalTurnos,omitempty"`
	Date        *time.Time `json:"fecha,omitempty"`
}

func (p Procession) Key() string { return firstNonEmpty(p.ID, p.LegacyID) }

// Turn is a purchasable slot of a procession.
type Turn struct {
	ID         string        `json:"uid,omitempty"`
	LegacyID   string        `json:"_id,omitempty"`
	Number     int           `json:"noTurno"`
	Address    string        `json:"direccion,omitempty"`
	March      string        `json:"marcha,omitempty"`
	Capacity   int           `json:"cantidad"`
	Unsold     int           `json:"cantidadSinVender"`
	Sold       int           `json:"cantidadVendida"`
	Price      Money         `json:"precio"`
	Type       TurnType      `json:"tipoTurno"`
	Procession ProcessionRef `json:"procesion,omitempty"`
}

func (t Turn) Key() string { return firstNonEmpty(t.ID, t.LegacyID) }

// ProcessionRef is either a bare procession id or an embedded procession document.
type ProcessionRef struct {
	ID   string
	Name string
}

func (r ProcessionRef) IsZero() bool { return r.ID == "" && r.Name == "" }

// MarshalJSON always sends the id, which is what write endpoints expect.
func (r ProcessionRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ID)
}

func (r *ProcessionRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = ProcessionRef{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = ProcessionRef{ID: id}
		return nil
	}
	var p Procession
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ProcessionRef{ID: p.Key(), Name: p.Name}
	return nil
}

// Invoice is the record produced by a purchase, reservation or payment.
type Invoice struct {
	ID       string        `json:"uid,omitempty"`
	LegacyID string        `json:"_id,omitempty"`
	Number   InvoiceNumber `json:"noFactura"`
	Date     *time.Time    `json:"fechaFactura,omitempty"`
	Devotee  *Devotee      `json:"devoto,omitempty"`
	Turn     *Turn         `json:"turno,omitempty"`
	User     *User         `json:"usuario,omitempty"`
	Active   *bool         `json:"estado,omitempty"`
	Price    Money         `json:"precio,omitempty"`
}

func (i Invoice) Key() string { return firstNonEmpty(i.ID, i.LegacyID) }

// InvoiceNumber tolerates numeric and string invoice numbers on the wire.
type InvoiceNumber string

func (n *InvoiceNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = InvoiceNumber(s)
		return nil
	}
	*n = InvoiceNumber(string(data))
	return nil
}

// SaleRecord is one entry of a staff member's sales history.
type SaleRecord struct {
	InvoiceNumber InvoiceNumber `json:"noFactura"`
	Date          *time.Time    `json:"fechaFactura,omitempty"`
	Devotee       *Devotee      `json:"devoto,omitempty"`
	Turn          *Turn         `json:"turno,omitempty"`
	Price         Money         `json:"precio"`
}

// User is a staff account. Token is only present in login responses.
type User struct {
	ID       string `json:"uid,omitempty"`
	LegacyID string `json:"_id,omitempty"`
	Name     string `json:"nombre"`
	LastName string `json:"apellido,omitempty"`
	DPI      string `json:"DPI,omitempty"`
	Address  string `json:"direccion,omitempty"`
	Phone    string `json:"telefono,omitempty"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role"`
	Token    string `json:"token,omitempty"`
}

func (u User) Key() string { return firstNonEmpty(u.ID, u.LegacyID) }

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
