// Package migrations holds the idempotent schema applied at startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Statements is the ordered schema. Every statement must be safe to re-run.
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		auth_uid TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS kones_balances (
		user_auth_uid TEXT PRIMARY KEY REFERENCES users(auth_uid) ON DELETE CASCADE,
		balance BIGINT NOT NULL DEFAULT 0,
		last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS kones_ledger (
		id BIGSERIAL PRIMARY KEY,
		user_auth_uid TEXT NOT NULL REFERENCES users(auth_uid) ON DELETE CASCADE,
		entry_type VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL,
		description VARCHAR(256) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS kones_ledger_user_created_idx ON kones_ledger (user_auth_uid, created_at DESC, id DESC);`,
	`CREATE TABLE IF NOT EXISTS chronolog (
		id BIGSERIAL PRIMARY KEY,
		user_auth_uid TEXT NOT NULL REFERENCES users(auth_uid) ON DELETE CASCADE,
		event_type VARCHAR(128) NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS chronolog_user_created_idx ON chronolog (user_auth_uid, created_at, id);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		name TEXT PRIMARY KEY,
		user_auth_uid TEXT NOT NULL REFERENCES users(auth_uid) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		expires_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS reward_rules (
		id BIGSERIAL PRIMARY KEY,
		rule_name TEXT UNIQUE NOT NULL,
		kone_amount BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
}

// Apply runs Statements in order and stops at the first failure.
func Apply(ctx context.Context, db Execer) error {
	for i, stmt := range Statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
