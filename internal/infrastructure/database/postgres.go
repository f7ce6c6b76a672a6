package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect creates a pgx connection pool for the given DSN and verifies it
// with a ping before returning.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxConns == 0 {
		cfg.MaxConns = 8
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.MaxConnLifetime == 0 {
		cfg.MaxConnLifetime = time.Hour
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the chat schema and its tables when they do not exist.
// Thread identity relies on the unique (participant_low, participant_high)
// constraint; concurrent first-contact creates race on it and the loser
// re-reads the winner's row.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS chat`,
		`CREATE TABLE IF NOT EXISTS chat.thread (
			id               text PRIMARY KEY,
			participant_low  text NOT NULL,
			participant_high text NOT NULL,
			participants     text[] NOT NULL,
			created_at       timestamptz NOT NULL,
			UNIQUE (participant_low, participant_high)
		)`,
		`CREATE TABLE IF NOT EXISTS chat.message (
			id           uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			thread_id    text NOT NULL,
			from_user_id text NOT NULL,
			to_user_id   text NOT NULL,
			content      text NOT NULL,
			created_at   timestamptz NOT NULL,
			delivered    boolean NOT NULL DEFAULT false,
			read         boolean NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS message_thread_created_idx
			ON chat.message (thread_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS message_to_delivered_created_idx
			ON chat.message (to_user_id, delivered, created_at)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}
