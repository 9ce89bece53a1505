package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"hermandad.org/internal/auth"
	"hermandad.org/internal/obs"
)

// Events recorded by the console.
const (
	EventLogin             = "session.login"
	EventLogout            = "session.logout"
	EventCommissionPayment = "payment.commission"
	EventPaymentCompleted  = "payment.completed"
	EventOrdinaryPayment   = "payment.ordinary"
	EventPurchase          = "purchase.registered"
	EventReservation       = "reservation.created"
	EventInvoiceUpdated    = "invoice.updated"
	EventInvoiceDeleted    = "invoice.deleted"
)

// LogEvent writes an audit log entry enriched with request and staff context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := obs.RequestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		if p.UserID() != "" {
			entry["user_id"] = p.UserID()
		}
		if p.Role() != "" {
			entry["role"] = string(p.Role())
		}
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	entry["fields"] = copyFields

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
