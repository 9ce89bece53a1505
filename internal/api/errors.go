package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failed API call.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindServer       Kind = "server"
	KindDecode       Kind = "decode"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrTransport    = errors.New("api: transport failure")
	ErrValidation   = errors.New("api: request rejected")
	ErrUnauthorized = errors.New("api: unauthorized")
	ErrServer       = errors.New("api: server error")
	ErrDecode       = errors.New("api: unexpected response")
)

var kindSentinels = map[Kind]error{
	KindTransport:    ErrTransport,
	KindValidation:   ErrValidation,
	KindUnauthorized: ErrUnauthorized,
	KindServer:       ErrServer,
	KindDecode:       ErrDecode,
}

// Error is the single failure shape returned by every Client method.
type Error struct {
	Kind     Kind
	Method   string
	Endpoint string
	Status   int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Endpoint, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// UserMessage is the server's message when present, otherwise fallback.
func (e *Error) UserMessage(fallback string) string {
	if e != nil && e.Message != "" {
		return e.Message
	}
	return fallback
}

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// MessageOf extracts a user-facing message from err.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage(fallback)
	}
	return fallback
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindUnauthorized
	case code >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// serverMessage pulls the human message out of a JSON error body. Other
// bodies, such as proxy HTML pages, yield "" so callers show their fallback.
func serverMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"error", "message", "msg"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	if raw, ok := payload["errors"]; ok {
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return list[0].Msg
		}
	}
	return ""
}
