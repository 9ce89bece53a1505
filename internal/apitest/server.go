// Package apitest runs an in-memory brotherhood API for tests. It keeps
// enough server-side behavior (inventory counts, payment state, invoice
// numbering, bearer tokens) for clients to observe realistic responses.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hermandad.org/internal/derive"
	"hermandad.org/internal/domain"
	"hermandad.org/internal/ids"
)

// Prefix is the path under which the fake mounts the API.
const Prefix = "/santaMarta/api/v1/"

var signingKey = []byte("apitest-signing-key")

type account struct {
	user     domain.User
	password string
}

type failure struct {
	status  int
	message string
}

// Server is a fake brotherhood API.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	accounts    map[string]*account
	tokens      map[string]string
	processions []*domain.Procession
	turns       map[string]*domain.Turn
	turnOrder   []string
	devotees    map[string]*domain.Devotee
	devOrder    []string
	invoices    []*domain.Invoice
	sales       map[string][]domain.SaleRecord
	nextInvoice int
	failures    map[string]failure
	calls       map[string]int
	holds       map[string]chan struct{}
	tokenTTL    time.Duration
}

// New starts a fake API. Close it with t.Cleanup(srv.Close).
func New() *Server {
	s := &Server{
		accounts:    map[string]*account{},
		tokens:      map[string]string{},
		turns:       map[string]*domain.Turn{},
		devotees:    map[string]*domain.Devotee{},
		sales:       map[string][]domain.SaleRecord{},
		nextInvoice: 1000,
		failures:    map[string]failure{},
		calls:       map[string]int{},
		holds:       map[string]chan struct{}{},
		tokenTTL:    time.Hour,
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string { return s.URL + Prefix }

// SetTokenTTL changes the lifetime of tokens issued by later logins.
func (s *Server) SetTokenTTL(d time.Duration) {
	s.mu.Lock()
	s.tokenTTL = d
	s.mu.Unlock()
}

// Fail makes endpoint (e.g. "compra/pagarComision") answer with status and
// message until Recover is called.
func (s *Server) Fail(endpoint string, status int, message string) {
	s.mu.Lock()
	s.failures[endpoint] = failure{status: status, message: message}
	s.mu.Unlock()
}

func (s *Server) Recover(endpoint string) {
	s.mu.Lock()
	delete(s.failures, endpoint)
	s.mu.Unlock()
}

// Hold blocks requests to endpoint until the returned release func is called.
func (s *Server) Hold(endpoint string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[endpoint] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, endpoint)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls counts requests received for endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = map[string]string{}
	s.mu.Unlock()
}

// AddUser registers a staff account that can log in with password.
func (s *Server) AddUser(u domain.User, password string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	s.accounts[strings.ToLower(u.Email)] = &account{user: u, password: password}
	return u
}

// IssueToken returns a valid token for the account with email.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return ""
	}
	return s.issueLocked(acc.user)
}

func (s *Server) issueLocked(u domain.User) string {
	now := time.Now()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid": u.Key(),
		"exp": now.Add(s.tokenTTL).Unix(),
		"iat": now.Unix(),
		"jti": ids.New(),
	}).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	s.tokens[tok] = u.Key()
	return tok
}

func (s *Server) AddProcession(p domain.Procession) domain.Procession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	cp := p
	s.processions = append(s.processions, &cp)
	return p
}

// AddTurn stores t; Unsold defaults to Capacity minus Sold.
func (s *Server) AddTurn(t domain.Turn) domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Unsold == 0 && t.Sold < t.Capacity {
		t.Unsold = t.Capacity - t.Sold
	}
	cp := t
	s.turns[t.ID] = &cp
	s.turnOrder = append(s.turnOrder, t.ID)
	return t
}

func (s *Server) AddDevotee(d domain.Devotee) domain.Devotee {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" && d.LegacyID == "" {
		d.LegacyID = ids.New()
	}
	d.Turns = nil
	cp := d
	s.devotees[d.Key()] = &cp
	s.devOrder = append(s.devOrder, d.Key())
	return d
}

// Assign gives devoteeID an assignment on turnID.
func (s *Server) Assign(devoteeID, turnID, password string, paid domain.Money, status domain.PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.devotees[devoteeID]
	t := s.turns[turnID]
	if d == nil || t == nil {
		panic(fmt.Sprintf("apitest: unknown devotee %q or turn %q", devoteeID, turnID))
	}
	d.Turns = append(d.Turns, domain.Assignment{Turn: t, Password: password, AmountPaid: paid, Status: status})
}

// Devotee returns a deep snapshot of the stored devotee.
func (s *Server) Devotee(id string) (domain.Devotee, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devotees[id]
	if !ok {
		return domain.Devotee{}, false
	}
	return snapshotDevotee(d), true
}

// DevoteeByDPI finds a devotee registered through the API.
func (s *Server) DevoteeByDPI(dpi string) (domain.Devotee, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.devOrder {
		if d := s.devotees[id]; d.DPI == dpi {
			return snapshotDevotee(d), true
		}
	}
	return domain.Devotee{}, false
}

func (s *Server) Turn(id string) (domain.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.turns[id]
	if !ok {
		return domain.Turn{}, false
	}
	return *t, true
}

// Invoices returns the issued invoices in order.
func (s *Server) Invoices() []domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, *inv)
	}
	return out
}

func snapshotDevotee(d *domain.Devotee) domain.Devotee {
	out := *d
	out.Turns = make([]domain.Assignment, len(d.Turns))
	for i, a := range d.Turns {
		if a.Turn != nil {
			t := *a.Turn
			a.Turn = &t
		}
		out.Turns[i] = a
	}
	return out
}

// handle registers endpoint (a template such as "devoto/getDevotoById/:id")
// under method, with call counting, failure injection, holds and bearer checks.
func (s *Server) handle(mux *http.ServeMux, method, endpoint string, public bool, h func(w http.ResponseWriter, r *http.Request, user domain.User)) {
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if strings.HasPrefix(p, ":") {
			parts[i] = "{" + p[1:] + "}"
		}
	}
	pattern := method + " " + Prefix + strings.Join(parts, "/")
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[endpoint]++
		hold := s.holds[endpoint]
		fail, failing := s.failures[endpoint]
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeJSON(w, fail.status, map[string]any{"error": fail.message})
			return
		}
		var user domain.User
		if !public {
			u, ok := s.authenticate(r)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "Token no válido"})
				return
			}
			user = u
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		h(w, r, user)
	})
}

func (s *Server) authenticate(r *http.Request) (domain.User, bool) {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || tok == "" {
		return domain.User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.tokens[tok]
	if !ok {
		return domain.User{}, false
	}
	for _, acc := range s.accounts {
		if acc.user.Key() == uid {
			return acc.user, true
		}
	}
	return domain.User{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]any{"message": msg})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) issueInvoiceLocked(d *domain.Devotee, t *domain.Turn, user domain.User, price domain.Money) string {
	s.nextInvoice++
	number := strconv.Itoa(s.nextInvoice)
	now := time.Now().UTC()
	active := true
	dev := snapshotDevotee(d)
	dev.Turns = nil
	turn := *t
	u := user
	u.Token = ""
	s.invoices = append(s.invoices, &domain.Invoice{
		ID:      ids.New(),
		Number:  domain.InvoiceNumber(number),
		Date:    &now,
		Devotee: &dev,
		Turn:    &turn,
		User:    &u,
		Active:  &active,
		Price:   price,
	})
	s.sales[user.Key()] = append(s.sales[user.Key()], domain.SaleRecord{
		InvoiceNumber: domain.InvoiceNumber(number),
		Date:          &now,
		Devotee:       &dev,
		Turn:          &turn,
		Price:         price,
	})
	return number
}

func (s *Server) findProcessionLocked(id string) *domain.Procession {
	for _, p := range s.processions {
		if p.Key() == id {
			return p
		}
	}
	return nil
}

func (s *Server) sellLocked(t *domain.Turn) bool {
	if t.Unsold <= 0 {
		return false
	}
	t.Unsold--
	t.Sold++
	return true
}

func assignmentFor(d *domain.Devotee, turnID string) int {
	for i, a := range d.Turns {
		if a.TurnKey() == turnID {
			return i
		}
	}
	return -1
}

func ordinaryPassword(p *domain.Procession, t *domain.Turn) string {
	name := ""
	if p != nil {
		name = p.Name
	}
	return "OR" + derive.Initials(name) + strconv.Itoa(t.Number)
}
