// Package auth carries the authenticated session through request contexts.
package auth

import (
	"context"

	"github.com/keydesk/keydesk/internal/model"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// sessionContextKey is the context key for storing the verified session.
	sessionContextKey contextKey = "session"
)

// ContextWithSession adds the verified session to the context.
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// SessionFromContext retrieves the session from the context.
// Returns nil if not present.
func SessionFromContext(ctx context.Context) *model.Session {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok {
		return nil
	}
	return session
}

// MustSessionFromContext retrieves the session from the context.
// Panics if not present (use only when session middleware has run).
func MustSessionFromContext(ctx context.Context) *model.Session {
	session := SessionFromContext(ctx)
	if session == nil {
		panic("session not found - ensure session middleware is applied")
	}
	return session
}

// PrincipalFromContext returns the session principal, or the zero principal.
func PrincipalFromContext(ctx context.Context) model.Principal {
	session := SessionFromContext(ctx)
	if session == nil {
		return model.Principal{}
	}
	return session.Principal
}

// UserIDFromContext is a convenience function to get the principal ID from context.
// Returns empty string if not authenticated.
func UserIDFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).ID
}
