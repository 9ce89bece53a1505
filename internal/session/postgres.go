package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Migrations holds the schema of the console_sessions table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Postgres stores sessions in the console_sessions table.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// OpenPostgres opens a pgx-backed pool for dsn.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(15 * time.Minute)
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Load(ctx context.Context, key string) (Session, error) {
	if err := validKey(key); err != nil {
		return Session{}, err
	}
	var raw []byte
	err := p.db.QueryRowContext(ctx, `
		select payload from console_sessions
		where key = $1 and (expires_at is null or expires_at > $2)
	`, key, p.now().UTC()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("session: decode %s: %w", key, err)
	}
	return s, nil
}

func (p *Postgres) Save(ctx context.Context, key string, s Session) error {
	if err := validKey(key); err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var expires sql.NullTime
	if exp, ok := s.ExpiresAt(); ok {
		expires = sql.NullTime{Time: exp.UTC(), Valid: true}
	}
	_, err = p.db.ExecContext(ctx, `
		insert into console_sessions(key, payload, expires_at, updated_at)
		values ($1, $2, $3, now())
		on conflict (key) do update
		set payload = excluded.payload, expires_at = excluded.expires_at, updated_at = now()
	`, key, raw, expires)
	return err
}

func (p *Postgres) Clear(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `delete from console_sessions where key = $1`, key)
	return err
}

// Purge deletes expired rows and reports how many were removed.
func (p *Postgres) Purge(ctx context.Context) (int64, error) {
	res, err := p.db.ExecContext(ctx, `delete from console_sessions where expires_at <= $1`, p.now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
