package auth

import "hermandad.org/internal/domain"

// Capabilities gate console screens and actions.
const (
	CapManageMembers       = "manage.members"
	CapManageProcessions   = "manage.processions"
	CapManageInvoices      = "manage.invoices"
	CapViewSales           = "view.sales"
	CapRegisterPurchase    = "register.purchase"
	CapRegisterPayment     = "register.payment"
	CapRegisterDevotee     = "register.devotee"
	CapRegisterReservation = "register.reservation"
)

// Capability describes one grantable capability.
type Capability struct {
	Key         string
	Description string
}

var BuiltinCapabilities = []Capability{
	{Key: CapManageMembers, Description: "Register and edit staff members"},
	{Key: CapManageProcessions, Description: "Create processions and their turns"},
	{Key: CapManageInvoices, Description: "Edit and void invoices"},
	{Key: CapViewSales, Description: "Read the sales history of any member"},
	{Key: CapRegisterPurchase, Description: "Sell ordinary turns"},
	{Key: CapRegisterPayment, Description: "Record commission and ordinary payments"},
	{Key: CapRegisterDevotee, Description: "Register devotees"},
	{Key: CapRegisterReservation, Description: "Reserve turns"},
}

var roleCapabilities = map[domain.Role][]string{
	domain.RoleDirector: {
		CapManageMembers, CapManageProcessions, CapManageInvoices, CapViewSales,
		CapRegisterPurchase, CapRegisterPayment, CapRegisterDevotee, CapRegisterReservation,
	},
	domain.RoleMember: {
		CapRegisterPurchase, CapRegisterPayment, CapRegisterDevotee, CapRegisterReservation,
	},
}

// CapabilitiesFor returns the capabilities granted to role. Unknown roles get none.
func CapabilitiesFor(role domain.Role) []string {
	caps := roleCapabilities[role]
	out := make([]string, len(caps))
	copy(out, caps)
	return out
}
