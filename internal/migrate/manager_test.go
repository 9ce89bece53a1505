package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/0001_sessions.up.sql":   {Data: []byte("create table a (x text);\ncreate index a_x on a (x);")},
		"migrations/0001_sessions.down.sql": {Data: []byte("drop table a;")},
		"migrations/0002_more.up.sql":       {Data: []byte("insert into a values ('semi;colon');")},
		"migrations/README":                 {Data: []byte("ignored")},
	}
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists console_schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from console_schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_sessions.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("insert into a values").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into console_schema_migrations").
		WithArgs("0002_more.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ran, err := NewManager(db, testFS(), "migrations").Up(context.Background())
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if len(ran) != 1 || ran[0] != "0002_more.up.sql" {
		t.Fatalf("unexpected applied list %v", ran)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLast(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("create table if not exists sessions_schema").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("select name from sessions_schema").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_sessions.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from sessions_schema where name").
		WithArgs("0001_sessions.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	last, err := NewManager(db, testFS(), "migrations", WithTable("sessions_schema")).Down(context.Background())
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if last != "0001_sessions.up.sql" {
		t.Fatalf("rolled back %q", last)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("a;\nb 'x;y';\n  ")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "\nb 'x;y';" {
		t.Fatalf("unexpected second statement %q", got[1])
	}
}
