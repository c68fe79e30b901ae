// Package identity adapts the external identity provider: it verifies session
// tokens and tracks the current session for a process.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/keydesk/keydesk/internal/auth"
	"github.com/keydesk/keydesk/internal/model"
)

// Provider exposes the current session and session lifecycle events.
type Provider interface {
	// CurrentSession returns the live session, if any.
	CurrentSession() (*model.Session, bool)
	// SignOut terminates the current session.
	SignOut(ctx context.Context) error
	// OnSessionChange registers fn to run after every session change.
	// fn receives nil when the session ends.
	OnSessionChange(fn func(*model.Session)) (unsubscribe func())
}

// Revoker records signed-out sessions so their tokens stop working elsewhere.
type Revoker interface {
	RevokeSession(ctx context.Context, fingerprint string, expiresAt time.Time) error
}

// Broker is an in-process Provider holding at most one session.
// Listeners run synchronously, in registration order, outside the lock.
type Broker struct {
	mu        sync.Mutex
	session   *model.Session
	listeners map[int]func(*model.Session)
	nextID    int

	verifier *Verifier
	revoker  Revoker
	logger   *slog.Logger
}

// NewBroker creates a Broker. verifier and revoker may be nil.
func NewBroker(verifier *Verifier, revoker Revoker, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		listeners: make(map[int]func(*model.Session)),
		verifier:  verifier,
		revoker:   revoker,
		logger:    logger,
	}
}

// SignInWithToken verifies token and makes it the current session.
func (b *Broker) SignInWithToken(token string) (*model.Session, error) {
	if b.verifier == nil {
		return nil, fmt.Errorf("%w: no verifier configured", ErrInvalidToken)
	}
	session, err := b.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	b.SetSession(session)
	return session, nil
}

// SetSession replaces the current session and notifies listeners.
// A nil session ends the current one without revoking it.
func (b *Broker) SetSession(session *model.Session) {
	b.mu.Lock()
	b.session = session
	listeners := b.snapshotListeners()
	b.mu.Unlock()

	notify(listeners, session)
}

// CurrentSession returns the live session, if any.
func (b *Broker) CurrentSession() (*model.Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil || b.session.Expired(time.Now()) {
		return nil, false
	}
	return b.session, true
}

// SignOut clears the session, revokes its token and notifies listeners.
// The local session is cleared even when revocation fails.
func (b *Broker) SignOut(ctx context.Context) error {
	b.mu.Lock()
	session := b.session
	b.session = nil
	listeners := b.snapshotListeners()
	b.mu.Unlock()

	if session == nil {
		return nil
	}

	var revokeErr error
	if b.revoker != nil && session.Token != "" {
		if err := b.revoker.RevokeSession(ctx, auth.Fingerprint(session.Token), session.ExpiresAt); err != nil {
			revokeErr = fmt.Errorf("failed to revoke session: %w", err)
			b.logger.Error("session revocation failed",
				slog.String("session_id", session.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	b.logger.Info("session signed out",
		slog.String("session_id", session.ID),
		slog.String("user_id", session.Principal.ID),
	)

	notify(listeners, nil)
	return revokeErr
}

// OnSessionChange registers fn for session change events.
func (b *Broker) OnSessionChange(fn func(*model.Session)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// snapshotListeners must be called with b.mu held.
func (b *Broker) snapshotListeners() []func(*model.Session) {
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(*model.Session), len(ids))
	for i, id := range ids {
		out[i] = b.listeners[id]
	}
	return out
}

func notify(listeners []func(*model.Session), session *model.Session) {
	for _, fn := range listeners {
		fn(session)
	}
}
