package models

import (
	"encoding/json"
	"time"
)

// AuditLogEntry is one row of a user's activity log.
type AuditLogEntry struct {
	ID        int64           `json:"id"`
	AuthUID   string          `json:"user_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"timestamp"`
}
