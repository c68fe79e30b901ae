package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/keydesk/keydesk/internal/auth"
	"github.com/keydesk/keydesk/internal/identity"
	"github.com/keydesk/keydesk/internal/model"
)

// TokenVerifier turns a bearer token into a session.
type TokenVerifier interface {
	Verify(token string) (*model.Session, error)
}

// RevocationStore tracks signed-out sessions by token fingerprint.
type RevocationStore interface {
	IsSessionRevoked(ctx context.Context, fingerprint string) (bool, error)
	RevokeSession(ctx context.Context, fingerprint string, expiresAt time.Time) error
}

// SessionConfig holds configuration for the session middleware.
type SessionConfig struct {
	Logger      *slog.Logger
	Verifier    TokenVerifier
	Revocations RevocationStore
}

// Session authenticates the bearer session token and stores the session in
// the request context. Revoked sessions are rejected; when the revocation
// list cannot be read the request is refused rather than let through.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeUnauthorized(w)
				return
			}

			session, err := cfg.Verifier.Verify(token)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, identity.ErrTokenExpired) {
					reason = "expired_token"
				}
				logAuthFailure(cfg.Logger, r, reason)
				writeUnauthorized(w)
				return
			}

			revoked, err := cfg.Revocations.IsSessionRevoked(r.Context(), auth.Fingerprint(token))
			if err != nil {
				cfg.Logger.Error("session revocation check failed",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE",
					"Session state is temporarily unavailable, try again")
				return
			}
			if revoked {
				logAuthFailure(cfg.Logger, r, "revoked_session")
				writeUnauthorized(w)
				return
			}

			annotateUser(r, session.Principal.ID)

			ctx := auth.ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", getClientIP(r)),
		slog.String("endpoint", endpoint(r)),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeUnauthorized uses one message for every failure to prevent enumeration.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="keydesk"`)
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing session")
}
