package models

import "time"

// Session binds a short-lived username handed to the client to an identity.
type Session struct {
	Name      string    `json:"session_username"`
	AuthUID   string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
