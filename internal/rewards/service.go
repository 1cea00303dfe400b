// Package rewards manages the named Kones amounts granted for activities.
package rewards

import (
	"context"
	"strings"
	"time"

	"github.com/hongminglow/kaisurf-be/internal/apperr"
	"github.com/hongminglow/kaisurf-be/internal/models"
)

var (
	ErrRuleNameRequired = apperr.New(apperr.KindValidation, "rule_name is required.")
	ErrRuleAmount       = apperr.New(apperr.KindValidation, "kone_amount must be a positive integer.")
	ErrDisabled         = apperr.New(apperr.KindDisabled, "Kones rewards are disabled.")
)

// Defaults are seeded at startup when rewards are enabled.
var Defaults = []models.RewardRule{
	{Name: "CREATE_KONTENT", KoneAmount: 10, Description: "Kones granted for publishing new content.", Active: true},
}

// Store is the persistence the service needs.
type Store interface {
	UpsertRewardRule(ctx context.Context, rule models.RewardRule) (models.RewardRule, error)
	InsertRewardRuleIfAbsent(ctx context.Context, rule models.RewardRule) error
	ListRewardRules(ctx context.Context) ([]models.RewardRule, error)
}

// Service validates and stores reward rules.
type Service struct {
	store   Store
	enabled func() bool
	now     func() time.Time
}

func NewService(store Store, enabled func() bool) *Service {
	return &Service{store: store, enabled: enabled, now: time.Now}
}

// Set creates or replaces the rule with rule.Name. Names are stored upper case.
func (s *Service) Set(ctx context.Context, rule models.RewardRule) (models.RewardRule, error) {
	if !s.enabled() {
		return models.RewardRule{}, ErrDisabled
	}
	rule.Name = strings.ToUpper(strings.TrimSpace(rule.Name))
	rule.Description = strings.TrimSpace(rule.Description)
	if rule.Name == "" {
		return models.RewardRule{}, ErrRuleNameRequired
	}
	if rule.KoneAmount <= 0 {
		return models.RewardRule{}, ErrRuleAmount
	}
	rule.UpdatedAt = s.now().UTC()

	saved, err := s.store.UpsertRewardRule(ctx, rule)
	if err != nil {
		return models.RewardRule{}, apperr.Wrap(apperr.KindUnavailable, "Failed to save reward rule.", err)
	}
	return saved, nil
}

// List returns every rule ordered by name.
func (s *Service) List(ctx context.Context) ([]models.RewardRule, error) {
	if !s.enabled() {
		return nil, ErrDisabled
	}
	rules, err := s.store.ListRewardRules(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnavailable, "Failed to load reward rules.", err)
	}
	return rules, nil
}

// SeedDefaults inserts Defaults that are not present yet. It is a no-op while
// rewards are disabled.
func (s *Service) SeedDefaults(ctx context.Context) error {
	if !s.enabled() {
		return nil
	}
	for _, rule := range Defaults {
		rule.UpdatedAt = s.now().UTC()
		if err := s.store.InsertRewardRuleIfAbsent(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}
