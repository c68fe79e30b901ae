package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/keydesk/keydesk/internal/auth"
	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/model"
)

// SessionRevoker marks a session token as signed out until it expires.
type SessionRevoker interface {
	RevokeSession(ctx context.Context, fingerprint string, expiresAt time.Time) error
}

// SessionHandler exposes the caller's session.
type SessionHandler struct {
	revoker  SessionRevoker
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewSessionHandler creates a new SessionHandler. A nil recorder disables metrics.
func NewSessionHandler(revoker SessionRevoker, recorder metrics.Recorder, logger *slog.Logger) *SessionHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &SessionHandler{revoker: revoker, recorder: recorder, logger: logger}
}

// Get handles GET /api/v1/session. The route sits behind the admin gate, so
// reaching it means the gate has just authorized the principal.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	writeJSON(w, http.StatusOK, model.SessionResponse{
		Principal: session.Principal,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
		Admin:     true,
	})
}

// SignOut handles POST /api/v1/session/signout.
func (h *SessionHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	if err := h.revoker.RevokeSession(r.Context(), auth.Fingerprint(session.Token), session.ExpiresAt); err != nil {
		h.logger.Error("failed to revoke session",
			slog.String("user_id", session.Principal.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "SESSION_STORE_UNAVAILABLE",
			"Session state is temporarily unavailable, try again")
		return
	}

	h.recorder.IncSessionRevoked()
	h.logger.Info("session signed out", slog.String("user_id", session.Principal.ID))
	w.WriteHeader(http.StatusNoContent)
}
