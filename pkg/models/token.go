package models

import "time"

// TokenSession is a bearer token record. Only the SHA-256 hash of the token
// is persisted; the raw value is returned to the caller exactly once at
// creation and cannot be recovered afterwards.
type TokenSession struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
	EndUserID string    `json:"end_user_id,omitempty" db:"end_user_id"`
	Label     string    `json:"label,omitempty" db:"label"`
	TokenHash string    `json:"-" db:"token_hash"`
	Scopes    string    `json:"scopes" db:"scopes"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuthResult is the outcome of validating a bearer token: the principal
// binding plus the parsed scope set.
type AuthResult struct {
	SessionID string   `json:"session_id"`
	UserID    string   `json:"user_id,omitempty"`
	EndUserID string   `json:"end_user_id,omitempty"`
	TokenHash string   `json:"-"`
	Scopes    ScopeSet `json:"scopes"`
}
