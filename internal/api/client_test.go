package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermandad.org/internal/domain"
	"hermandad.org/internal/obs"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/santaMarta/api/v1", opts...)
	require.NoError(t, err)
	return c
}

func TestNewDefaults(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.http.Timeout)

	_, err = New("ftp://example.org")
	assert.Error(t, err)
}

func TestBearerTokenAndRequestID(t *testing.T) {
	var gotAuth, gotReqID, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"devoto":{"uid":"d1","nombre":"Ana","apellido":"López","DPI":"123"}}`)
	}, WithTokenSource(func(context.Context) string { return "tok-1" }))

	d, err := c.GetDevotee(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, "Ana López", d.FullName())
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.True(t, strings.HasPrefix(gotReqID, "req_"))
	assert.Equal(t, "/santaMarta/api/v1/devoto/getDevotoById/d1", gotPath)
}

func TestNoTokenNoAuthorization(t *testing.T) {
	var gotAuth []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Values("Authorization")
		_, _ = io.WriteString(w, `{"procesiones":[]}`)
	}, WithTokenSource(func(context.Context) string { return "" }))

	_, err := c.ListProcessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestInboundRequestIDPropagates(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		_, _ = io.WriteString(w, `{"turnos":[]}`)
	})
	ctx := obs.WithRequestID(context.Background(), "req_inbound")
	_, err := c.ListTurns(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req_inbound", got)
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		target  error
		message string
	}{
		{"validation", http.StatusBadRequest, `{"error":"Monto inválido"}`, KindValidation, ErrValidation, "Monto inválido"},
		{"not found", http.StatusNotFound, `{"message":"Devoto no encontrado"}`, KindValidation, ErrValidation, "Devoto no encontrado"},
		{"express validator", http.StatusBadRequest, `{"errors":[{"msg":"DPI requerido"}]}`, KindValidation, ErrValidation, "DPI requerido"},
		{"unauthorized", http.StatusUnauthorized, `{"msg":"Token expirado"}`, KindUnauthorized, ErrUnauthorized, "Token expirado"},
		{"forbidden", http.StatusForbidden, `{}`, KindUnauthorized, ErrUnauthorized, ""},
		{"server", http.StatusInternalServerError, `{"error":"boom"}`, KindServer, ErrServer, "boom"},
		{"html body", http.StatusBadRequest, `<html><body><h1>502 Bad Gateway</h1>` + strings.Repeat("x", 2000) + `</body></html>`, KindValidation, ErrValidation, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.PayCommission(context.Background(), CommissionPayment{DevoteeID: "d", TurnID: "t", Amount: domain.Quetzales(10)})
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			assert.True(t, errors.Is(err, tc.target))
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.Equal(t, "compra/pagarComision", apiErr.Endpoint)
		})
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	c, err := New(srv.URL, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.ListDevotees(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, "fallback", MessageOf(err, "fallback"))
}

func TestDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"devotos": [`)
	})
	_, err := c.ListDevotees(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestCommissionPaymentBody(t *testing.T) {
	var body map[string]any
	var method string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"message":"ok","noFactura":1042}`)
	})
	rec, err := c.PayCommission(context.Background(), CommissionPayment{DevoteeID: "d1", TurnID: "t1", Amount: 6050})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "1042", rec.InvoiceNumber())
	assert.Equal(t, map[string]any{"devotoId": "d1", "turnoId": "t1", "montoPagado": 60.5}, body)
}

func TestNestedReceipt(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"compra":{"noFactura":"F-7"}}`)
	})
	rec, err := c.RegisterPurchase(context.Background(), Purchase{DevoteeID: "d1", TurnID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "F-7", rec.InvoiceNumber())
	assert.Equal(t, "COMPLETO", body["pago"])
}

func TestLoginRequiresToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"userDetails":{"nombre":"Luis","email":"l@h.org","role":"ROL_DIRECTIVO"}}`)
	})
	_, err := c.Login(context.Background(), Credentials{Email: "l@h.org", Password: "x"})
	assert.Equal(t, KindDecode, KindOf(err))
}

func TestSearchQueryEscaped(t *testing.T) {
	var rawQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `{"devotos":[],"total":0,"page":2,"totalPages":0}`)
	})
	page, err := c.SearchDevoteesPage(context.Background(), "ana lópez&x", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Contains(t, rawQuery, "q=ana+l%C3%B3pez%26x")
	assert.Contains(t, rawQuery, "limit=10")
}

func TestSalesHistoryMissingList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"Usuario sin ventas"}`)
	})
	_, err := c.SalesHistory(context.Background(), "u1")
	require.Error(t, err)
	assert.Equal(t, "Usuario sin ventas", MessageOf(err, ""))
}

func TestInvoicePDF(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-1.4")
	})
	doc, err := c.InvoicePDF(context.Background(), "1042")
	require.NoError(t, err)
	assert.Equal(t, "factura-1042.pdf", doc.Name)
	assert.Equal(t, []byte("%PDF-1.4"), doc.Body)
}

func TestDocumentOverLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(make([]byte, maxDocumentBytes+1000))
	})
	doc, err := c.InvoicePDF(context.Background(), "1042")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.Empty(t, doc.Body)
	assert.Contains(t, err.Error(), "document exceeds limit")
}

func TestDocumentAtLimit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(make([]byte, maxDocumentBytes))
	})
	doc, err := c.InventoryPDF(context.Background(), "p1")
	require.NoError(t, err)
	assert.Len(t, doc.Body, maxDocumentBytes)
}

func TestHTMLErrorBodyUsesFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `<html><body><h1>502 Bad Gateway</h1></body></html>`)
	})
	_, err := c.ListDevotees(context.Background())
	require.Error(t, err)
	assert.Equal(t, "No se pudo cargar", MessageOf(err, "No se pudo cargar"))
}

func TestInvoicePDFWrongContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.InventoryPDF(context.Background(), "p1")
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestExpand(t *testing.T) {
	assert.Equal(t, "turno/getTurnoById/a%2Fb", expand("turno/getTurnoById/:id", "a/b"))
	assert.Equal(t, "user/getUsers", expand("user/getUsers"))
}
