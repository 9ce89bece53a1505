package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"hermandad.org/internal/domain"
)

func TestPostgresLoad(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := NewPostgres(db)

	payload, _ := json.Marshal(Session{UserID: "u1", Role: domain.RoleDirector, Token: "tok"})
	mock.ExpectQuery("select payload from console_sessions").
		WithArgs("browser-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))
	mock.ExpectQuery("select payload from console_sessions").
		WithArgs("browser-2", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	s, err := st.Load(context.Background(), "browser-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Role != domain.RoleDirector || s.Token != "tok" {
		t.Fatalf("unexpected session %+v", s)
	}
	if _, err := st.Load(context.Background(), "browser-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresSaveAndClear(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := NewPostgres(db)

	exp := time.Now().Add(time.Hour)
	mock.ExpectExec("insert into console_sessions").
		WithArgs("browser-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("delete from console_sessions where key").
		WithArgs("browser-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.Save(context.Background(), "browser-1", Session{Token: signedToken(t, &exp)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Clear(context.Background(), "browser-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresPurge(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := NewPostgres(db)

	mock.ExpectExec("delete from console_sessions where expires_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := st.Purge(context.Background())
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 3 {
		t.Fatalf("purged %d rows, want 3", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	if _, err := Migrations.ReadFile("migrations/0001_console_sessions.up.sql"); err != nil {
		t.Fatalf("missing up migration: %v", err)
	}
}
