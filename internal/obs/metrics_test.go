package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/directiva/marcheros/abc":            "/directiva/marcheros/:id",
		"/directiva/marcheros/abc/inventario": "/directiva/marcheros/:id/inventario",
		"/directiva/marcheros/abc/extra":      "/directiva/marcheros/abc/extra",
		"/directiva/facturas/f1":              "/directiva/facturas/:id",
		"/facturas/1042/pdf":                  "/facturas/:no/pdf",
		"/pago-comision?devoto=1":             "/pago-comision",
		"/directiva/devotos":                  "/directiva/devotos",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
