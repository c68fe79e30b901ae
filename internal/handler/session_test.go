package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keydesk/keydesk/internal/auth"
	"github.com/keydesk/keydesk/internal/metrics"
	"github.com/keydesk/keydesk/internal/model"
)

type stubRevoker struct {
	revoked map[string]time.Time
	err     error
}

func (s *stubRevoker) RevokeSession(ctx context.Context, fingerprint string, expiresAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	if s.revoked == nil {
		s.revoked = make(map[string]time.Time)
	}
	s.revoked[fingerprint] = expiresAt
	return nil
}

func testSession() *model.Session {
	return &model.Session{
		ID:        "sess-1",
		Principal: model.Principal{ID: "user-1", Email: "ops@example.com"},
		Token:     "token-value",
		ExpiresAt: time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
}

func TestSessionHandler_Get(t *testing.T) {
	h := NewSessionHandler(&stubRevoker{}, nil, discardLogger())
	session := testSession()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), session))
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp model.SessionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Principal.ID != "user-1" || resp.SessionID != "sess-1" || !resp.Admin {
		t.Errorf("unexpected response: %+v", resp)
	}
	if !resp.ExpiresAt.Equal(session.ExpiresAt) {
		t.Errorf("expected expiry %v, got %v", session.ExpiresAt, resp.ExpiresAt)
	}
}

func TestSessionHandler_NoSession(t *testing.T) {
	h := NewSessionHandler(&stubRevoker{}, nil, discardLogger())

	for _, fn := range []http.HandlerFunc{h.Get, h.SignOut} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		rec := httptest.NewRecorder()

		fn(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", rec.Code)
		}
	}
}

func TestSessionHandler_SignOut(t *testing.T) {
	revoker := &stubRevoker{}
	recorder := metrics.NewInMemory()
	h := NewSessionHandler(revoker, recorder, discardLogger())
	session := testSession()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/signout", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), session))
	rec := httptest.NewRecorder()

	h.SignOut(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}

	expiresAt, ok := revoker.revoked[auth.Fingerprint(session.Token)]
	if !ok {
		t.Fatal("expected session fingerprint to be revoked")
	}
	if !expiresAt.Equal(session.ExpiresAt) {
		t.Errorf("expected revocation until %v, got %v", session.ExpiresAt, expiresAt)
	}
	if got := recorder.Snapshot().SessionsRevoked; got != 1 {
		t.Errorf("expected 1 revoked session recorded, got %d", got)
	}
}

func TestSessionHandler_SignOut_StoreError(t *testing.T) {
	h := NewSessionHandler(&stubRevoker{err: errors.New("redis down")}, nil, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/signout", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), testSession()))
	rec := httptest.NewRecorder()

	h.SignOut(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != "SESSION_STORE_UNAVAILABLE" {
		t.Errorf("unexpected code: %s", code)
	}
}
