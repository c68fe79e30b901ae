// Package console composes the identity provider, the admin gate and the
// license issuer into the operator-facing workflow.
//
// The console keeps one immutable Snapshot of the current principal and its
// verdict. Every session change where the principal id differs replaces the
// snapshot; Issue refuses unless the snapshot authorizes the live principal.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/keydesk/keydesk/internal/admin"
	"github.com/keydesk/keydesk/internal/identity"
	"github.com/keydesk/keydesk/internal/model"
)

// ErrAccessDenied is returned when the current principal may not issue keys.
var ErrAccessDenied = errors.New("access denied")

// Authorizer decides whether a principal is an administrator.
type Authorizer interface {
	Authorize(ctx context.Context, p model.Principal) admin.Decision
}

// Issuer generates and stores license keys.
type Issuer interface {
	Issue(ctx context.Context, count int) ([]string, error)
}

// Snapshot is the verdict for one principal. It is never mutated after
// being published.
type Snapshot struct {
	Principal model.Principal
	Decision  admin.Decision
}

// Authorized reports whether the snapshot grants access to principalID.
func (s *Snapshot) Authorized(principalID string) bool {
	return s != nil &&
		principalID != "" &&
		s.Principal.ID == principalID &&
		s.Decision.PrincipalID == principalID &&
		s.Decision.Authorized
}

// Console is safe for concurrent use.
type Console struct {
	ctx      context.Context
	provider identity.Provider
	gate     Authorizer
	issuer   Issuer
	logger   *slog.Logger

	// evalMu serializes gate evaluations; snapshot reads never take it.
	evalMu      sync.Mutex
	snapshot    atomic.Pointer[Snapshot]
	unsubscribe func()
}

// New creates a Console, subscribes it to session changes and evaluates the
// current session. ctx bounds evaluations triggered by session events.
func New(ctx context.Context, provider identity.Provider, gate Authorizer, issuer Issuer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Console{
		ctx:      ctx,
		provider: provider,
		gate:     gate,
		issuer:   issuer,
		logger:   logger,
	}
	c.snapshot.Store(&Snapshot{Decision: admin.Decision{Reason: admin.ReasonNoPrincipal}})

	c.unsubscribe = provider.OnSessionChange(func(s *model.Session) {
		c.onSessionChange(s)
	})

	if s, ok := provider.CurrentSession(); ok {
		c.onSessionChange(s)
	}

	return c
}

// Close stops listening for session changes.
func (c *Console) Close() {
	c.unsubscribe()
}

// Snapshot returns the current verdict snapshot.
func (c *Console) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Authorize re-runs the gate for the live principal, publishes the verdict
// and signs the session out when it is denied.
func (c *Console) Authorize(ctx context.Context) admin.Decision {
	session, ok := c.provider.CurrentSession()
	if !ok {
		snap := c.publishNoPrincipal()
		return snap.Decision
	}

	snap := c.evaluate(ctx, session.Principal)
	c.enforce(ctx, snap)
	return snap.Decision
}

// Issue generates count keys if the live principal is authorized.
func (c *Console) Issue(ctx context.Context, count int) ([]string, error) {
	session, ok := c.provider.CurrentSession()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, admin.ReasonNoPrincipal)
	}

	snap := c.snapshot.Load()
	if snap.Principal.ID != session.Principal.ID {
		// The change event for this principal has not been processed yet.
		snap = c.evaluate(ctx, session.Principal)
		c.enforce(ctx, snap)
	}

	if !snap.Authorized(session.Principal.ID) {
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, snap.Decision.Reason)
	}

	return c.issuer.Issue(ctx, count)
}

func (c *Console) onSessionChange(s *model.Session) {
	if s == nil || s.Principal.IsZero() {
		c.publishNoPrincipal()
		return
	}

	if c.snapshot.Load().Principal.ID == s.Principal.ID {
		return
	}

	snap := c.evaluate(c.ctx, s.Principal)
	c.enforce(c.ctx, snap)
}

// evaluate runs the gate for p and publishes the result unless the live
// principal changed while the lookup was in flight.
func (c *Console) evaluate(ctx context.Context, p model.Principal) *Snapshot {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	snap := &Snapshot{Principal: p, Decision: c.gate.Authorize(ctx, p)}

	if current, ok := c.provider.CurrentSession(); !ok || current.Principal.ID != p.ID {
		c.logger.Debug("discarding verdict for superseded principal",
			slog.String("user_id", p.ID),
		)
		return snap
	}

	c.snapshot.Store(snap)
	return snap
}

// enforce terminates the session of a denied principal. It must run without
// evalMu held: SignOut emits a session change synchronously.
func (c *Console) enforce(ctx context.Context, snap *Snapshot) {
	if !snap.Decision.SignOut {
		return
	}

	current, ok := c.provider.CurrentSession()
	if !ok || current.Principal.ID != snap.Principal.ID {
		return
	}

	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Error("sign out after denied authorization failed",
			slog.String("user_id", snap.Principal.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Console) publishNoPrincipal() *Snapshot {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	snap := &Snapshot{Decision: admin.Decision{Reason: admin.ReasonNoPrincipal}}
	c.snapshot.Store(snap)
	return snap
}
