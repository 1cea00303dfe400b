package models

import "time"

// Ledger entry types.
const (
	EntryTypeEarn  = "EARN"
	EntryTypeSpend = "SPEND"
)

// Balance is the running Kones total of one identity.
type Balance struct {
	AuthUID     string    `json:"user_id"`
	Balance     int64     `json:"kone_balance"`
	LastUpdated time.Time `json:"last_updated"`
}

// LedgerEntry is an append-only record of a single balance change.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	AuthUID     string    `json:"user_id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"timestamp"`
}

// EntryTypeFor derives the entry type from the sign of amount.
func EntryTypeFor(amount int64) string {
	if amount < 0 {
		return EntryTypeSpend
	}
	return EntryTypeEarn
}

// RewardRule names a fixed Kones amount granted for an activity.
type RewardRule struct {
	ID          int64     `json:"id"`
	Name        string    `json:"rule_name"`
	KoneAmount  int64     `json:"kone_amount"`
	Description string    `json:"description"`
	Active      bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}
