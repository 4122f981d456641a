// Package store persists tenants, order statuses and the external payment
// ledger in Postgres, with in-memory variants for single-node development.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB is the subset of *pgxpool.Pool the stores use.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

// Connect opens and pings a pool for dsn.
func Connect(ctx context.Context, dsn string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 20
	cfg.MinConns = 2

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info().Str("host", cfg.ConnConfig.Host).Msg("database connected")
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS restaurants (
	restaurant_id   TEXT PRIMARY KEY,
	name            TEXT NOT NULL DEFAULT '',
	pos_type        TEXT NOT NULL DEFAULT 'square',
	access_token    TEXT NOT NULL DEFAULT '',
	location_id     TEXT NOT NULL DEFAULT '',
	merchant_id     TEXT NOT NULL DEFAULT '',
	organization_id TEXT NOT NULL DEFAULT '',
	secret_key      TEXT NOT NULL DEFAULT '',
	environment     TEXT NOT NULL DEFAULT '',
	currency        TEXT NOT NULL DEFAULT '',
	disabled        BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS table_tokens (
	token         TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL REFERENCES restaurants(restaurant_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS order_statuses (
	vendor        TEXT NOT NULL,
	order_id      TEXT NOT NULL,
	restaurant_id TEXT NOT NULL DEFAULT '',
	table_id      INT NOT NULL DEFAULT 0,
	status        TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (vendor, order_id)
);

CREATE TABLE IF NOT EXISTS payment_ledger (
	id            TEXT PRIMARY KEY,
	restaurant_id TEXT NOT NULL,
	order_id      TEXT NOT NULL,
	payment_ref   TEXT NOT NULL,
	base_amount   BIGINT NOT NULL,
	tip_amount    BIGINT NOT NULL DEFAULT 0,
	currency      TEXT NOT NULL,
	source        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (source, payment_ref)
);

CREATE INDEX IF NOT EXISTS payment_ledger_order_idx ON payment_ledger (restaurant_id, order_id);
`

// Migrate creates the tables when missing.
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
