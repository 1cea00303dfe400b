package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
	"github.com/hongminglow/kaisurf-be/internal/storage/migrations"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNumericOutOfRange   = "22003"
)

// Store provides Postgres-backed persistence.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// NewStore connects to databaseURL and applies migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, db: stdlib.OpenDBFromPool(pool)}
	if err := migrations.Apply(ctx, s.db); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateIdentity inserts the identity unless it exists already.
func (s *Store) CreateIdentity(ctx context.Context, authUID string) (models.Identity, bool, error) {
	const insert = `
		INSERT INTO users (auth_uid) VALUES ($1)
		ON CONFLICT (auth_uid) DO NOTHING
		RETURNING auth_uid, created_at;`
	identity, err := scanIdentity(s.pool.QueryRow(ctx, insert, authUID))
	if err == nil {
		return identity, true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.Identity{}, false, err
	}
	identity, err = s.GetIdentity(ctx, authUID)
	return identity, false, err
}

// GetIdentity fetches an identity by its auth provider id.
func (s *Store) GetIdentity(ctx context.Context, authUID string) (models.Identity, error) {
	const query = `SELECT auth_uid, created_at FROM users WHERE auth_uid = $1;`
	return scanIdentity(s.pool.QueryRow(ctx, query, authUID))
}

// ApplyCredit upserts the balance row and appends the ledger entry in one
// transaction. The upsert is a single statement so concurrent first credits
// for the same identity cannot both insert.
func (s *Store) ApplyCredit(ctx context.Context, entry models.LedgerEntry) (models.Balance, models.LedgerEntry, error) {
	const upsertBalance = `
		INSERT INTO kones_balances (user_auth_uid, balance, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_auth_uid) DO UPDATE
		SET balance = kones_balances.balance + EXCLUDED.balance,
			last_updated = EXCLUDED.last_updated
		RETURNING user_auth_uid, balance, last_updated;`
	const insertEntry = `
		INSERT INTO kones_ledger (user_auth_uid, entry_type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;`

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return models.Balance{}, models.LedgerEntry{}, fmt.Errorf("begin credit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var balance models.Balance
	err = tx.QueryRow(ctx, upsertBalance, entry.AuthUID, entry.Amount, entry.CreatedAt).
		Scan(&balance.AuthUID, &balance.Balance, &balance.LastUpdated)
	if err != nil {
		return models.Balance{}, models.LedgerEntry{}, mapWriteError(err)
	}

	if err := tx.QueryRow(ctx, insertEntry, entry.AuthUID, entry.Type, entry.Amount, entry.Description, entry.CreatedAt).Scan(&entry.ID); err != nil {
		return models.Balance{}, models.LedgerEntry{}, mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Balance{}, models.LedgerEntry{}, fmt.Errorf("commit credit: %w", err)
	}
	return balance, entry, nil
}

// GetBalance returns storage.ErrNotFound when the identity never had a balance.
func (s *Store) GetBalance(ctx context.Context, authUID string) (models.Balance, error) {
	const query = `SELECT user_auth_uid, balance, last_updated FROM kones_balances WHERE user_auth_uid = $1;`
	var b models.Balance
	if err := s.pool.QueryRow(ctx, query, authUID).Scan(&b.AuthUID, &b.Balance, &b.LastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Balance{}, storage.ErrNotFound
		}
		return models.Balance{}, err
	}
	return b, nil
}

// ListLedger returns the identity's ledger, newest first.
func (s *Store) ListLedger(ctx context.Context, authUID string) ([]models.LedgerEntry, error) {
	const query = `
		SELECT id, user_auth_uid, entry_type, amount, description, created_at
		FROM kones_ledger
		WHERE user_auth_uid = $1
		ORDER BY created_at DESC, id DESC;`
	rows, err := s.pool.Query(ctx, query, authUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AuthUID, &e.Type, &e.Amount, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendAudit inserts an activity log row.
func (s *Store) AppendAudit(ctx context.Context, entry models.AuditLogEntry) (models.AuditLogEntry, error) {
	const insert = `
		INSERT INTO chronolog (user_auth_uid, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id;`
	payload := entry.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	if err := s.pool.QueryRow(ctx, insert, entry.AuthUID, entry.EventType, []byte(payload), entry.CreatedAt).Scan(&entry.ID); err != nil {
		return models.AuditLogEntry{}, mapWriteError(err)
	}
	entry.Payload = payload
	return entry, nil
}

// ListAudit returns the identity's activity log, oldest first.
func (s *Store) ListAudit(ctx context.Context, authUID string) ([]models.AuditLogEntry, error) {
	const query = `
		SELECT id, user_auth_uid, event_type, payload, created_at
		FROM chronolog
		WHERE user_auth_uid = $1
		ORDER BY created_at ASC, id ASC;`
	rows, err := s.pool.Query(ctx, query, authUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.AuditLogEntry, 0)
	for rows.Next() {
		var (
			e       models.AuditLogEntry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.AuthUID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CreateSession stores a newly issued session.
func (s *Store) CreateSession(ctx context.Context, session models.Session) (models.Session, error) {
	const insert = `
		INSERT INTO sessions (name, user_auth_uid, created_at, expires_at)
		VALUES ($1, $2, $3, $4);`
	if _, err := s.pool.Exec(ctx, insert, session.Name, session.AuthUID, session.CreatedAt, session.ExpiresAt); err != nil {
		return models.Session{}, mapWriteError(err)
	}
	return session, nil
}

// GetSession fetches a session by name regardless of expiry.
func (s *Store) GetSession(ctx context.Context, name string) (models.Session, error) {
	const query = `SELECT name, user_auth_uid, created_at, expires_at FROM sessions WHERE name = $1;`
	var sess models.Session
	if err := s.pool.QueryRow(ctx, query, name).Scan(&sess.Name, &sess.AuthUID, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, storage.ErrNotFound
		}
		return models.Session{}, err
	}
	return sess, nil
}

// UpsertRewardRule creates or replaces the rule with the same name.
func (s *Store) UpsertRewardRule(ctx context.Context, rule models.RewardRule) (models.RewardRule, error) {
	const upsert = `
		INSERT INTO reward_rules (rule_name, kone_amount, description, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rule_name) DO UPDATE
		SET kone_amount = EXCLUDED.kone_amount,
			description = EXCLUDED.description,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, rule_name, kone_amount, description, is_active, updated_at;`
	row := s.pool.QueryRow(ctx, upsert, rule.Name, rule.KoneAmount, rule.Description, rule.Active, rule.UpdatedAt)
	return scanRewardRule(row)
}

// InsertRewardRuleIfAbsent seeds a rule without overwriting operator changes.
func (s *Store) InsertRewardRuleIfAbsent(ctx context.Context, rule models.RewardRule) error {
	const insert = `
		INSERT INTO reward_rules (rule_name, kone_amount, description, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rule_name) DO NOTHING;`
	_, err := s.pool.Exec(ctx, insert, rule.Name, rule.KoneAmount, rule.Description, rule.Active, rule.UpdatedAt)
	return err
}

// ListRewardRules returns all rules ordered by name.
func (s *Store) ListRewardRules(ctx context.Context) ([]models.RewardRule, error) {
	const query = `
		SELECT id, rule_name, kone_amount, description, is_active, updated_at
		FROM reward_rules
		ORDER BY rule_name;`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.RewardRule, 0)
	for rows.Next() {
		rule, err := scanRewardRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanIdentity(row pgx.Row) (models.Identity, error) {
	var identity models.Identity
	if err := row.Scan(&identity.AuthUID, &identity.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Identity{}, storage.ErrNotFound
		}
		return models.Identity{}, err
	}
	return identity, nil
}

func scanRewardRule(row pgx.Row) (models.RewardRule, error) {
	var rule models.RewardRule
	if err := row.Scan(&rule.ID, &rule.Name, &rule.KoneAmount, &rule.Description, &rule.Active, &rule.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RewardRule{}, storage.ErrNotFound
		}
		return models.RewardRule{}, err
	}
	return rule, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return storage.ErrAlreadyExists
		case codeForeignKeyViolation:
			return storage.ErrNotFound
		case codeNumericOutOfRange:
			return storage.ErrOutOfRange
		}
	}
	return err
}
