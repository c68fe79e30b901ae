// Package admin decides whether an authenticated principal may administer licenses.
//
// The gate fails closed: a missing record, a lookup error and an empty
// principal all yield a Denied decision. Verdicts are never cached.
package admin

import (
	"context"
	"errors"
	"log/slog"

	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/model"
	"github.com/keydesk/keydesk/internal/repository"
)

// Reasons attached to a Decision.
const (
	ReasonAdmin        = "admin"
	ReasonNotAdmin     = "not_admin"
	ReasonLookupFailed = "lookup_failed"
	ReasonNoPrincipal  = "no_principal"
)

// Lookup finds the admin record for a user.
// Implementations return repository.ErrAdminNotFound when no record exists.
type Lookup interface {
	FindAdmin(ctx context.Context, userID string) (*model.AdminRecord, error)
}

// Decision is the outcome of one authorization check.
type Decision struct {
	PrincipalID string
	Authorized  bool
	Reason      string
	// SignOut tells the caller to terminate the principal's session.
	SignOut bool
}

// Denied reports whether the decision refuses access.
func (d Decision) Denied() bool {
	return !d.Authorized
}

// Gate authorizes principals against the admin store.
type Gate struct {
	lookup   Lookup
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewGate creates a Gate backed by lookup.
func NewGate(lookup Lookup, logger *slog.Logger, recorder metrics.Recorder) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Gate{lookup: lookup, logger: logger, recorder: recorder}
}

// Authorize performs exactly one lookup for p and returns the verdict.
func (g *Gate) Authorize(ctx context.Context, p model.Principal) Decision {
	if p.IsZero() {
		return g.deny(p, ReasonNoPrincipal, nil)
	}

	rec, err := g.lookup.FindAdmin(ctx, p.ID)
	switch {
	case errors.Is(err, repository.ErrAdminNotFound):
		return g.deny(p, ReasonNotAdmin, nil)
	case err != nil:
		return g.deny(p, ReasonLookupFailed, err)
	case rec == nil || rec.UserID != p.ID:
		return g.deny(p, ReasonNotAdmin, nil)
	}

	g.recorder.IncAuthorization(metrics.VerdictAuthorized)
	return Decision{PrincipalID: p.ID, Authorized: true, Reason: ReasonAdmin}
}

func (g *Gate) deny(p model.Principal, reason string, err error) Decision {
	attrs := []any{
		slog.String("reason", reason),
		slog.String("user_id", p.ID),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.logger.Warn("admin authorization denied", attrs...)
	g.recorder.IncAuthorization(metrics.VerdictDenied)

	return Decision{PrincipalID: p.ID, Reason: reason, SignOut: true}
}
