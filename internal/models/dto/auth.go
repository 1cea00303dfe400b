package dto

import "time"

type RegisterRequest struct {
	AuthUID string `json:"auth_uid"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
	Created bool   `json:"created"`
}

type LoginResponse struct {
	Message         string    `json:"message"`
	SessionUsername string    `json:"session_username"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type ProfileResponse struct {
	UserID          string    `json:"user_id"`
	RegisteredSince time.Time `json:"registered_since"`
}
