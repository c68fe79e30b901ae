package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/keydesk/keydesk/internal/admin"
	"github.com/keydesk/keydesk/internal/auth"
	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/model"
)

// Authorizer decides whether a principal is an administrator.
type Authorizer interface {
	Authorize(ctx context.Context, p model.Principal) admin.Decision
}

// AdminConfig holds configuration for the admin gate middleware.
type AdminConfig struct {
	Logger      *slog.Logger
	Gate        Authorizer
	Revocations RevocationStore
	Recorder    metrics.Recorder
}

// RequireAdmin runs the admin gate on every request. A denied principal has
// its session revoked and receives 403. Must be applied after Session.
func RequireAdmin(cfg AdminConfig) func(http.Handler) http.Handler {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := auth.SessionFromContext(r.Context())
			if session == nil {
				writeUnauthorized(w)
				return
			}

			decision := cfg.Gate.Authorize(r.Context(), session.Principal)
			if decision.Authorized {
				next.ServeHTTP(w, r)
				return
			}

			if decision.SignOut && session.Token != "" {
				fp := auth.Fingerprint(session.Token)
				if err := cfg.Revocations.RevokeSession(r.Context(), fp, session.ExpiresAt); err != nil {
					cfg.Logger.Error("failed to revoke denied session",
						slog.String("user_id", session.Principal.ID),
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				} else {
					recorder.IncSessionRevoked()
				}
			}

			cfg.Logger.Warn("admin access denied",
				slog.String("user_id", session.Principal.ID),
				slog.String("reason", decision.Reason),
				slog.String("endpoint", endpoint(r)),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			writeError(w, http.StatusForbidden, "ACCESS_DENIED",
				"Administrator access required; the session has been signed out")
		})
	}
}
