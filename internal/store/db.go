package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres keeps the key-value documents in a single table, using pgx.
type Postgres struct {
	db *sql.DB
}

var _ KV = (*Postgres)(nil)

// NewPostgres opens a connection with sane defaults and creates the table.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return NewPostgresFromDB(ctx, db)
}

// NewPostgresFromDB wraps an open handle and migrates the table.
func NewPostgresFromDB(ctx context.Context, db *sql.DB) (*Postgres, error) {
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		return nil, errors.Wrap(err, "migrating kv_entries")
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the underlying connection.
func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
