package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAmountTaken is raised by the unique index on active deposit amounts.
	// Callers treat it as an allocator-retry signal, not a failure.
	ErrAmountTaken = errors.New("db: amount already held by an active deposit")

	ErrNoActiveRequisite = errors.New("db: no active requisite configured")
	ErrNotFound          = errors.New("db: not found")
	ErrBadTransition     = errors.New("db: request is not in a processable status")
)

type DB struct {
	Pool *pgxpool.Pool
}

func Connect(ctx context.Context, url string) (*DB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

// Migrate applies the schema. The partial unique index on active deposit
// amounts is the load-bearing piece: amount equality is the only signal that
// reconciles an anonymous bank transfer to a request.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payment_requests (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			request_type TEXT NOT NULL,
			amount NUMERIC(18,2),
			bank TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			status_detail JSONB NOT NULL DEFAULT '{}'::jsonb,
			photo_url TEXT,
			withdrawal_code TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			processed_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_active_deposit_amount
			ON payment_requests (amount)
			WHERE request_type = 'deposit'
			  AND status IN ('pending','processing','deferred')`,
		`CREATE TABLE IF NOT EXISTS incoming_payments (
			id BIGSERIAL PRIMARY KEY,
			amount NUMERIC(18,2) NOT NULL,
			payment_date TIMESTAMPTZ NOT NULL DEFAULT now(),
			is_processed BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incoming_unprocessed_amount
			ON incoming_payments (amount, payment_date DESC)
			WHERE NOT is_processed`,
		`CREATE TABLE IF NOT EXISTS requisites (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			bank TEXT NOT NULL,
			email TEXT,
			password TEXT,
			is_active BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS bot_users (
			chat_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
