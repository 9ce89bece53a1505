package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hermandad.org/internal/domain"
)

func signedToken(t *testing.T, exp *time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"uid": "u1"}
	if exp != nil {
		claims["exp"] = exp.Unix()
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 4, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	cases := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty", "", true},
		{"malformed", "not-a-jwt", true},
		{"past exp", signedToken(t, &past), true},
		{"future exp", signedToken(t, &future), false},
		{"no exp", signedToken(t, nil), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Session{Token: tc.token}
			if got := s.Expired(now); got != tc.want {
				t.Fatalf("Expired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFromUser(t *testing.T) {
	now := time.Now()
	s := FromUser(domain.User{LegacyID: "u9", Name: "Marta", LastName: "Pérez", Email: "m@h.org", Role: domain.RoleDirector, Token: "t"}, now)
	if s.UserID != "u9" || s.Role != domain.RoleDirector || s.Token != "t" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.FullName() != "Marta Pérez" {
		t.Fatalf("FullName = %q", s.FullName())
	}
}

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := st.Load(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	want := Session{UserID: "u1", Name: "Ana", Email: "a@h.org", Role: domain.RoleMember, Token: "tok"}
	if err := st.Save(ctx, "k1", want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := st.Load(ctx, "k1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.UserID != want.UserID || got.Token != want.Token || got.Role != want.Role {
		t.Fatalf("loaded %+v, want %+v", got, want)
	}
	if err := st.Clear(ctx, "k1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := st.Load(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
	if err := st.Clear(ctx, "k1"); err != nil {
		t.Fatalf("Clear twice: %v", err)
	}
	if err := st.Save(ctx, "  ", want); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	st, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	exerciseStore(t, st)
}

func TestFileStoreSanitizesKey(t *testing.T) {
	st, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	if got := st.path("../../etc/passwd"); got != st.dir+"/.._.._etc_passwd.json" {
		t.Fatalf("unexpected path %q", got)
	}
}
