package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/model"
	"github.com/keydesk/keydesk/internal/repository"
)

type fakeLookup struct {
	mu      sync.Mutex
	records map[string]*model.AdminRecord
	err     error
	calls   []string
}

func (f *fakeLookup) FindAdmin(_ context.Context, userID string) (*model.AdminRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[userID]
	if !ok {
		return nil, repository.ErrAdminNotFound
	}
	return rec, nil
}

func (f *fakeLookup) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestGate(lookup Lookup) (*Gate, *metrics.InMemoryRecorder) {
	rec := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(lookup, logger, rec), rec
}

func adminLookup(userIDs ...string) *fakeLookup {
	f := &fakeLookup{records: map[string]*model.AdminRecord{}}
	for _, id := range userIDs {
		f.records[id] = &model.AdminRecord{ID: "adm-" + id, UserID: id, CreatedAt: time.Now()}
	}
	return f
}

func TestGate_Authorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		lookup     *fakeLookup
		principal  model.Principal
		authorized bool
		reason     string
		lookups    int
	}{
		{
			name:       "admin record present",
			lookup:     adminLookup("u1"),
			principal:  model.Principal{ID: "u1"},
			authorized: true,
			reason:     ReasonAdmin,
			lookups:    1,
		},
		{
			name:      "no admin record",
			lookup:    adminLookup("u1"),
			principal: model.Principal{ID: "u2"},
			reason:    ReasonNotAdmin,
			lookups:   1,
		},
		{
			name:      "lookup error fails closed",
			lookup:    &fakeLookup{err: errors.New("connection refused")},
			principal: model.Principal{ID: "u1"},
			reason:    ReasonLookupFailed,
			lookups:   1,
		},
		{
			name:      "empty principal skips lookup",
			lookup:    adminLookup("u1"),
			principal: model.Principal{},
			reason:    ReasonNoPrincipal,
			lookups:   0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gate, _ := newTestGate(tt.lookup)
			d := gate.Authorize(context.Background(), tt.principal)

			assert.Equal(t, tt.authorized, d.Authorized)
			assert.Equal(t, !tt.authorized, d.Denied())
			assert.Equal(t, !tt.authorized, d.SignOut, "denied decisions must request sign-out")
			assert.Equal(t, tt.reason, d.Reason)
			assert.Equal(t, tt.principal.ID, d.PrincipalID)
			assert.Equal(t, tt.lookups, tt.lookup.callCount())
		})
	}
}

func TestGate_NoCaching(t *testing.T) {
	t.Parallel()

	lookup := adminLookup("u1")
	gate, _ := newTestGate(lookup)
	ctx := context.Background()

	require.True(t, gate.Authorize(ctx, model.Principal{ID: "u1"}).Authorized)

	// Revoking out-of-band takes effect on the next call.
	lookup.mu.Lock()
	delete(lookup.records, "u1")
	lookup.mu.Unlock()

	d := gate.Authorize(ctx, model.Principal{ID: "u1"})
	assert.False(t, d.Authorized)
	assert.Equal(t, 2, lookup.callCount())
}

func TestGate_RecordsVerdicts(t *testing.T) {
	t.Parallel()

	gate, rec := newTestGate(adminLookup("u1"))
	ctx := context.Background()

	gate.Authorize(ctx, model.Principal{ID: "u1"})
	gate.Authorize(ctx, model.Principal{ID: "u2"})
	gate.Authorize(ctx, model.Principal{})

	snap := rec.Snapshot()
	assert.Equal(t, uint64(1), snap.Authorized)
	assert.Equal(t, uint64(2), snap.Denied)
}

func TestNewGate_Defaults(t *testing.T) {
	t.Parallel()

	gate := NewGate(adminLookup("u1"), nil, nil)
	assert.True(t, gate.Authorize(context.Background(), model.Principal{ID: "u1"}).Authorized)
}
