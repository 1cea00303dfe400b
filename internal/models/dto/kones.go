package dto

import (
	"encoding/json"
	"time"

	"github.com/hongminglow/kaisurf-be/internal/models"
)

type EarnResponse struct {
	Message    string `json:"message"`
	NewBalance int64  `json:"new_balance"`
}

type BalanceResponse struct {
	UserID      string `json:"user_id"`
	KoneBalance int64  `json:"kone_balance"`
}

type LedgerItem struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
}

type RewardRuleRequest struct {
	RuleName    string `json:"rule_name"`
	KoneAmount  int64  `json:"kone_amount"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

type WebhookResponse struct {
	Message   string `json:"message"`
	EventType string `json:"event_type"`
}

type ChronologItem struct {
	Timestamp time.Time       `json:"timestamp"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type RewardRuleSaved struct {
	Message string            `json:"message"`
	Rule    models.RewardRule `json:"rule"`
}
