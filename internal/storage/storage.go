package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/kaisurf-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrOutOfRange indicates a write would overflow a stored quantity.
var ErrOutOfRange = errors.New("value out of range")

// IdentityStore persists identities.
type IdentityStore interface {
	// CreateIdentity inserts authUID if it is not present yet. created reports
	// whether this call inserted the row.
	CreateIdentity(ctx context.Context, authUID string) (identity models.Identity, created bool, err error)
	GetIdentity(ctx context.Context, authUID string) (models.Identity, error)
}

// LedgerStore persists balances and their ledger.
type LedgerStore interface {
	// ApplyCredit adds entry.Amount to the identity's balance, creating the
	// balance row if needed, and appends entry, all in one atomic unit.
	// It returns ErrNotFound without writing anything when the identity is unknown,
	// and ErrOutOfRange when the new balance would not fit in an int64.
	ApplyCredit(ctx context.Context, entry models.LedgerEntry) (models.Balance, models.LedgerEntry, error)
	GetBalance(ctx context.Context, authUID string) (models.Balance, error)
	// ListLedger returns every entry of authUID, newest first.
	ListLedger(ctx context.Context, authUID string) ([]models.LedgerEntry, error)
}

// AuditStore persists the activity log.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry models.AuditLogEntry) (models.AuditLogEntry, error)
	// ListAudit returns every entry of authUID, oldest first.
	ListAudit(ctx context.Context, authUID string) ([]models.AuditLogEntry, error)
}

// SessionStore persists issued sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session models.Session) (models.Session, error)
	GetSession(ctx context.Context, name string) (models.Session, error)
}

// RewardRuleStore persists reward rules keyed by name.
type RewardRuleStore interface {
	UpsertRewardRule(ctx context.Context, rule models.RewardRule) (models.RewardRule, error)
	// InsertRewardRuleIfAbsent leaves an existing rule with the same name untouched.
	InsertRewardRuleIfAbsent(ctx context.Context, rule models.RewardRule) error
	ListRewardRules(ctx context.Context) ([]models.RewardRule, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	IdentityStore
	LedgerStore
	AuditStore
	SessionStore
	RewardRuleStore
	Close()
}
