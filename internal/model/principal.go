// Package model defines domain entities for the application.
package model

import "time"

// Principal is an identity already authenticated by the identity provider.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// IsZero reports whether the principal carries no identifier.
func (p Principal) IsZero() bool {
	return p.ID == ""
}

// Session is a live session issued by the identity provider.
// Sessions are treated as immutable snapshots; a change produces a new value.
type Session struct {
	ID        string    `json:"session_id"`
	Principal Principal `json:"principal"`
	Token     string    `json:"-"` // Never serialize
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionResponse is returned by the session endpoint.
type SessionResponse struct {
	Principal Principal `json:"principal"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Admin     bool      `json:"admin"`
}
