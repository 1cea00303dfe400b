// Package memory is an in-process storage.Store used by tests and by
// STORAGE_DRIVER=memory.
package memory

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every table in maps behind one mutex, so a credit's balance
// update and ledger append are observed together or not at all.
type Store struct {
	mu sync.Mutex

	identities map[string]models.Identity
	balances   map[string]models.Balance
	ledger     map[string][]models.LedgerEntry
	audit      map[string][]models.AuditLogEntry
	sessions   map[string]models.Session
	rules      map[string]models.RewardRule

	nextLedgerID int64
	nextAuditID  int64
	nextRuleID   int64

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		identities: make(map[string]models.Identity),
		balances:   make(map[string]models.Balance),
		ledger:     make(map[string][]models.LedgerEntry),
		audit:      make(map[string][]models.AuditLogEntry),
		sessions:   make(map[string]models.Session),
		rules:      make(map[string]models.RewardRule),
		now:        time.Now,
	}
}

func (s *Store) Close() {}

func (s *Store) CreateIdentity(ctx context.Context, authUID string) (models.Identity, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Identity{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.identities[authUID]; ok {
		return existing, false, nil
	}
	identity := models.Identity{AuthUID: authUID, CreatedAt: s.now().UTC()}
	s.identities[authUID] = identity
	return identity, true, nil
}

func (s *Store) GetIdentity(ctx context.Context, authUID string) (models.Identity, error) {
	if err := ctx.Err(); err != nil {
		return models.Identity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[authUID]
	if !ok {
		return models.Identity{}, storage.ErrNotFound
	}
	return identity, nil
}

func (s *Store) ApplyCredit(ctx context.Context, entry models.LedgerEntry) (models.Balance, models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.Balance{}, models.LedgerEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[entry.AuthUID]; !ok {
		return models.Balance{}, models.LedgerEntry{}, storage.ErrNotFound
	}

	balance, ok := s.balances[entry.AuthUID]
	if !ok {
		balance = models.Balance{AuthUID: entry.AuthUID}
	}
	if overflows(balance.Balance, entry.Amount) {
		return models.Balance{}, models.LedgerEntry{}, storage.ErrOutOfRange
	}
	balance.Balance += entry.Amount
	balance.LastUpdated = entry.CreatedAt
	s.balances[entry.AuthUID] = balance

	s.nextLedgerID++
	entry.ID = s.nextLedgerID
	s.ledger[entry.AuthUID] = append(s.ledger[entry.AuthUID], entry)
	return balance, entry, nil
}

func (s *Store) GetBalance(ctx context.Context, authUID string) (models.Balance, error) {
	if err := ctx.Err(); err != nil {
		return models.Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[authUID]
	if !ok {
		return models.Balance{}, storage.ErrNotFound
	}
	return balance, nil
}

func (s *Store) ListLedger(ctx context.Context, authUID string) ([]models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	entries := make([]models.LedgerEntry, len(s.ledger[authUID]))
	copy(entries, s.ledger[authUID])
	s.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry models.AuditLogEntry) (models.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return models.AuditLogEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[entry.AuthUID]; !ok {
		return models.AuditLogEntry{}, storage.ErrNotFound
	}
	if len(entry.Payload) == 0 {
		entry.Payload = json.RawMessage(`{}`)
	}
	entry.Payload = append(json.RawMessage(nil), entry.Payload...)
	s.nextAuditID++
	entry.ID = s.nextAuditID
	s.audit[entry.AuthUID] = append(s.audit[entry.AuthUID], entry)
	return entry, nil
}

func (s *Store) ListAudit(ctx context.Context, authUID string) ([]models.AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	entries := make([]models.AuditLogEntry, len(s.audit[authUID]))
	copy(entries, s.audit[authUID])
	s.mu.Unlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

func (s *Store) CreateSession(ctx context.Context, session models.Session) (models.Session, error) {
	if err := ctx.Err(); err != nil {
		return models.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[session.AuthUID]; !ok {
		return models.Session{}, storage.ErrNotFound
	}
	if _, ok := s.sessions[session.Name]; ok {
		return models.Session{}, storage.ErrAlreadyExists
	}
	s.sessions[session.Name] = session
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, name string) (models.Session, error) {
	if err := ctx.Err(); err != nil {
		return models.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[name]
	if !ok {
		return models.Session{}, storage.ErrNotFound
	}
	return session, nil
}

func (s *Store) UpsertRewardRule(ctx context.Context, rule models.RewardRule) (models.RewardRule, error) {
	if err := ctx.Err(); err != nil {
		return models.RewardRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rules[rule.Name]; ok {
		rule.ID = existing.ID
	} else {
		s.nextRuleID++
		rule.ID = s.nextRuleID
	}
	s.rules[rule.Name] = rule
	return rule, nil
}

func (s *Store) InsertRewardRuleIfAbsent(ctx context.Context, rule models.RewardRule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.Name]; ok {
		return nil
	}
	s.nextRuleID++
	rule.ID = s.nextRuleID
	s.rules[rule.Name] = rule
	return nil
}

func (s *Store) ListRewardRules(ctx context.Context) ([]models.RewardRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	rules := make([]models.RewardRule, 0, len(s.rules))
	for _, rule := range s.rules {
		rules = append(rules, rule)
	}
	s.mu.Unlock()

	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	return rules, nil
}

// Counts reports row totals; tests use it to assert nothing was written.
func (s *Store) Counts() (balances, ledgerEntries, auditEntries int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entries := range s.ledger {
		ledgerEntries += len(entries)
	}
	for _, entries := range s.audit {
		auditEntries += len(entries)
	}
	return len(s.balances), ledgerEntries, auditEntries
}

func overflows(balance, amount int64) bool {
	if amount > 0 {
		return balance > math.MaxInt64-amount
	}
	return balance < math.MinInt64-amount
}
