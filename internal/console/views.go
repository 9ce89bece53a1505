package console

import (
	"hermandad.org/internal/auth"
	"hermandad.org/internal/domain"
)

// NavItem is one entry of a dashboard.
type NavItem struct {
	Title      string `json:"title"`
	Route      string `json:"route"`
	Capability string `json:"-"`
}

// navigation lists every dashboard entry in display order.
var navigation = []NavItem{
	{Title: "Registrar Miembro", Route: "/directiva/registro-miembro", Capability: auth.CapManageMembers},
	{Title: "Ver Miembros", Route: "/directiva/lista-miembros", Capability: auth.CapManageMembers},
	{Title: "Marcheros", Route: "/directiva/marcheros", Capability: auth.CapManageProcessions},
	{Title: "Información de Devotos", Route: "/directiva/devotos", Capability: auth.CapManageMembers},
	{Title: "Reservar Turno", Route: "/reservar-turno", Capability: auth.CapRegisterReservation},
	{Title: "Historial de Ventas", Route: "/directiva/historial-venta", Capability: auth.CapViewSales},
	{Title: "Descargar Datos de Turno", Route: "/directiva/datos-devoto", Capability: auth.CapManageProcessions},
	{Title: "Historial de Facturas", Route: "/directiva/facturas", Capability: auth.CapManageInvoices},
	{Title: "Registrar Devoto", Route: "/register-devoto", Capability: auth.CapRegisterDevotee},
	{Title: "Pago de Turnos", Route: "/pago-turno", Capability: auth.CapRegisterPayment},
	{Title: "Registro y Pago de Turno", Route: "/registrar-compra", Capability: auth.CapRegisterPurchase},
}

// View is the role-specific dashboard: its home route and navigation.
type View struct {
	Role domain.Role `json:"role"`
	Home string      `json:"home"`
	Nav  []NavItem   `json:"nav"`
}

const (
	homeDirector = "/inicio"
	homeMember   = "/inicioMiembro"
)

// ViewFor picks the dashboard of role. Navigation only lists screens the
// role's capabilities open.
func ViewFor(role domain.Role) View {
	v := View{Role: role, Home: homeMember, Nav: []NavItem{}}
	if role == domain.RoleDirector {
		v.Home = homeDirector
	}
	caps := map[string]bool{}
	for _, c := range auth.CapabilitiesFor(role) {
		caps[c] = true
	}
	for _, item := range navigation {
		if caps[item.Capability] {
			v.Nav = append(v.Nav, item)
		}
	}
	return v
}
