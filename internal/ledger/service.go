// Package ledger credits Kones and reads balances and their history.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/events"
	"github.com/hongminglow/kaisurf-be/internal/logging"
	"github.com/hongminglow/kaisurf-be/internal/metrics"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/storage"
)

// MaxDescriptionLength bounds ledger descriptions, in characters.
const MaxDescriptionLength = 256

var (
	ErrMissingFields       = apperr.New(apperr.KindValidation, "Missing required fields: amount and description.")
	ErrAmountNotInteger    = apperr.New(apperr.KindValidation, "Amount must be an integer.")
	ErrAmountNotPositive   = apperr.New(apperr.KindValidation, "Amount must be positive.")
	ErrDescriptionTooLong  = apperr.New(apperr.KindValidation, "Description must be at most 256 characters.")
	ErrBalanceOverflow     = apperr.New(apperr.KindValidation, "Amount would exceed the maximum Kones balance.")
	ErrDisabled            = apperr.New(apperr.KindDisabled, "Kones rewards are disabled.")
	ErrIdentityUnavailable = apperr.New(apperr.KindNotFound, "User not found in database.")
)

// Store is the persistence the service needs.
type Store interface {
	ApplyCredit(ctx context.Context, entry models.LedgerEntry) (models.Balance, models.LedgerEntry, error)
	GetBalance(ctx context.Context, authUID string) (models.Balance, error)
	ListLedger(ctx context.Context, authUID string) ([]models.LedgerEntry, error)
}

// Service applies credits atomically and serves balance reads.
type Service struct {
	store     Store
	enabled   func() bool
	publisher events.Publisher
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time

	publishTimeout time.Duration
}

// Option customises a Service.
type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithPublishTimeout bounds each post-commit publish. Non-positive values keep
// the default.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// NewService returns a ledger service. enabled is consulted on every call.
func NewService(store Store, enabled func() bool, opts ...Option) *Service {
	s := &Service{
		store:     store,
		enabled:   enabled,
		publisher: events.Nop{},
		log:       logrus.StandardLogger(),
		now:       time.Now,

		publishTimeout: events.DefaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports the current state of the rewards flag.
func (s *Service) Enabled() bool {
	return s.enabled()
}

// CreditResult is the outcome of a successful credit.
type CreditResult struct {
	Balance models.Balance
	Entry   models.LedgerEntry
}

// Credit adds amount to identity's balance and records it in the ledger as a
// single atomic unit. On any error nothing has been written.
func (s *Service) Credit(ctx context.Context, identity models.Identity, amount int64, description string) (CreditResult, error) {
	if !s.enabled() {
		return CreditResult{}, ErrDisabled
	}
	description = strings.TrimSpace(description)
	if err := validateCredit(amount, description); err != nil {
		s.metrics.CreditRejected("validation")
		return CreditResult{}, err
	}

	entry := models.LedgerEntry{
		AuthUID:     identity.AuthUID,
		Type:        models.EntryTypeFor(amount),
		Amount:      amount,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	balance, stored, err := s.store.ApplyCredit(ctx, entry)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.CreditRejected("unknown_identity")
			return CreditResult{}, ErrIdentityUnavailable
		}
		if errors.Is(err, storage.ErrOutOfRange) {
			s.metrics.CreditRejected("overflow")
			return CreditResult{}, ErrBalanceOverflow
		}
		s.metrics.CreditRejected("storage")
		return CreditResult{}, apperr.Wrap(apperr.KindUnavailable, "Failed to update Kones balance.", err)
	}
	s.metrics.CreditApplied(amount)

	s.publish(ctx, events.Event{
		Type:    events.TypeKonesCredited,
		AuthUID: identity.AuthUID,
		Payload: events.MustPayload(map[string]any{
			"entry_id":    stored.ID,
			"amount":      stored.Amount,
			"description": stored.Description,
			"new_balance": balance.Balance,
		}),
		OccurredAt: stored.CreatedAt,
	})
	return CreditResult{Balance: balance, Entry: stored}, nil
}

// Balance returns the identity's balance. An identity that never earned has a
// zero balance; no row is created for it.
func (s *Service) Balance(ctx context.Context, identity models.Identity) (models.Balance, error) {
	if !s.enabled() {
		return models.Balance{}, ErrDisabled
	}
	balance, err := s.store.GetBalance(ctx, identity.AuthUID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Balance{AuthUID: identity.AuthUID}, nil
		}
		return models.Balance{}, apperr.Wrap(apperr.KindUnavailable, "Failed to load Kones balance.", err)
	}
	return balance, nil
}

// History returns every ledger entry of identity, newest first.
func (s *Service) History(ctx context.Context, identity models.Identity) ([]models.LedgerEntry, error) {
	if !s.enabled() {
		return nil, ErrDisabled
	}
	entries, err := s.store.ListLedger(ctx, identity.AuthUID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "Failed to load Kones ledger.", err)
	}
	return entries, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	pubCtx, cancel := events.Detach(ctx, s.publishTimeout)
	defer cancel()
	err := s.publisher.Publish(pubCtx, event)
	s.metrics.EventPublished(err)
	if err != nil {
		logging.FromContext(ctx, s.log).WithError(err).WithFields(logrus.Fields{
			"event_type": event.Type,
			"user_id":    event.AuthUID,
		}).Warn("publish ledger event failed")
	}
}

func validateCredit(amount int64, description string) error {
	if description == "" {
		return ErrMissingFields
	}
	if amount <= 0 {
		return ErrAmountNotPositive
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
