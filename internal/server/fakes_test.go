package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/keydesk/keydesk/internal/admin"
	"github.com/keydesk/keydesk/internal/cache"
	"github.com/keydesk/keydesk/internal/config"
	"github.com/keydesk/keydesk/internal/identity"
	"github.com/keydesk/keydesk/internal/license"
	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/model"
	"github.com/keydesk/keydesk/internal/repository"
	"github.com/keydesk/keydesk/internal/testutil"
)

const testJWTSecret = "test-secret-that-is-at-least-32-bytes"

// memLicenses is an in-memory license store with the same all-or-nothing
// insert semantics as the Postgres repository.
type memLicenses struct {
	mu   sync.Mutex
	rows []model.License
}

func (m *memLicenses) InsertLicenses(ctx context.Context, rows []model.License) ([]model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(m.rows)+len(rows))
	for _, r := range m.rows {
		seen[r.Key] = struct{}{}
	}

	out := make([]model.License, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.Key]; dup {
			return nil, repository.ErrDuplicateKey
		}
		seen[r.Key] = struct{}{}
		r.ID = testutil.UniqueID("lic")
		r.CreatedAt = time.Now().UTC()
		out = append(out, r)
	}

	m.rows = append(m.rows, out...)
	return out, nil
}

func (m *memLicenses) GetLicenseByKey(ctx context.Context, key string) (*model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rows {
		if r.Key == key {
			lic := r
			return &lic, nil
		}
	}
	return nil, repository.ErrLicenseNotFound
}

func (m *memLicenses) ListLicenses(ctx context.Context, filter model.LicenseFilter) ([]model.License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.License{}
	for i := len(m.rows) - 1; i >= 0; i-- {
		if filter.UnusedOnly && m.rows[i].IsUsed {
			continue
		}
		out = append(out, m.rows[i])
	}

	if filter.Offset >= len(out) {
		return []model.License{}, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memLicenses) CountLicenses(ctx context.Context, unusedOnly bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.rows {
		if unusedOnly && r.IsUsed {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memLicenses) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.Key)
	}
	sort.Strings(out)
	return out
}

type memAdmins struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (m *memAdmins) FindAdmin(ctx context.Context, userID string) (*model.AdminRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ids[userID] {
		return nil, repository.ErrAdminNotFound
	}
	return &model.AdminRecord{ID: "adm-" + userID, UserID: userID}, nil
}

func (m *memAdmins) grant(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids == nil {
		m.ids = make(map[string]bool)
	}
	m.ids[userID] = true
}

func (m *memAdmins) revoke(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, userID)
}

// memSessions stands in for the Redis revocation list and issue limiter.
type memSessions struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	allowed bool
}

func (m *memSessions) IsSessionRevoked(ctx context.Context, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[fingerprint]
	return ok, nil
}

func (m *memSessions) RevokeSession(ctx context.Context, fingerprint string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = make(map[string]time.Time)
	}
	m.revoked[fingerprint] = expiresAt
	return nil
}

func (m *memSessions) CheckIssueRateLimit(ctx context.Context, principalID string, ratePerMinute, burst int) (*cache.RateLimitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allowed {
		return &cache.RateLimitResult{Allowed: true, Remaining: int64(burst - 1), ResetAt: time.Now().Add(time.Minute)}, nil
	}
	return &cache.RateLimitResult{Allowed: false, RetryAfter: 2 * time.Second, ResetAt: time.Now().Add(2 * time.Second)}, nil
}

type testEnv struct {
	handler  http.Handler
	verifier *identity.Verifier
	admins   *memAdmins
	licenses *memLicenses
	sessions *memSessions
	recorder *metrics.InMemoryRecorder
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := &config.Config{
		AppEnv:                  "development",
		JWTSecret:               testJWTSecret,
		LicenseMaxBatch:         100,
		RateLimitIssuePerMinute: 30,
		RateLimitIssueBurst:     5,
		MaxRequestBodySize:      1 << 16,
	}
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		verifier: identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		admins:   &memAdmins{},
		licenses: &memLicenses{},
		sessions: &memSessions{allowed: true},
		recorder: metrics.NewInMemory(),
	}

	env.handler = NewRouter(Deps{
		Config:      cfg,
		Logger:      logger,
		Verifier:    env.verifier,
		Revocations: env.sessions,
		Limiter:     env.sessions,
		Gate:        admin.NewGate(env.admins, logger, env.recorder),
		Issuer: license.NewIssuer(env.licenses,
			license.WithMaxBatch(cfg.LicenseMaxBatch),
			license.WithLogger(logger),
			license.WithRecorder(env.recorder),
		),
		Licenses: env.licenses,
		Recorder: env.recorder,
		Metrics:  metrics.NewPrometheus().Handler(),
	})

	return env
}

// token signs a fresh session token for userID.
func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()

	p := model.Principal{ID: userID, Email: userID + "@example.com"}
	token, err := e.verifier.Sign(p, testutil.UniqueID("sess"), time.Hour)
	require.NoError(t, err, "sign token")
	return token
}

func (e *testEnv) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := newRequest(method, target, token, body)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func newRequest(method, target, token, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}
