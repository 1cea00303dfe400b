package models

import "time"

// Identity is an end user known to the backend, keyed by the subject the
// external auth provider puts in its tokens.
type Identity struct {
	AuthUID   string    `json:"auth_uid"`
	CreatedAt time.Time `json:"created_at"`
}
