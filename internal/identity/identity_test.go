package identity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keydesk/keydesk/internal/auth"
	"github.com/keydesk/keydesk/internal/model"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerifier_SignAndVerify(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, "keydesk-idp", "keydesk")
	p := model.Principal{ID: "user-1", Email: "ops@example.com"}

	token, err := v.Sign(p, "sess-1", time.Hour)
	require.NoError(t, err)

	session, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, p, session.Principal)
	assert.Equal(t, "sess-1", session.ID)
	assert.Equal(t, token, session.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)
}

func TestVerifier_SessionIDFallsBackToFingerprint(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, "", "")
	token, err := v.Sign(model.Principal{ID: "user-1"}, "", time.Hour)
	require.NoError(t, err)

	session, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, auth.Fingerprint(token), session.ID)
}

func TestVerifier_Rejects(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, "keydesk-idp", "keydesk")
	p := model.Principal{ID: "user-1"}

	expired, err := v.Sign(p, "s", -time.Minute)
	require.NoError(t, err)

	wrongSecret, err := NewVerifier("another-secret-that-is-long-enough", "keydesk-idp", "keydesk").Sign(p, "s", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewVerifier(testSecret, "someone-else", "keydesk").Sign(p, "s", time.Hour)
	require.NoError(t, err)

	noSubject, err := v.Sign(model.Principal{}, "s", time.Hour)
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"iss": "keydesk-idp",
		"aud": "keydesk",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrTokenExpired},
		{"wrong secret", wrongSecret, ErrInvalidToken},
		{"wrong issuer", wrongIssuer, ErrInvalidToken},
		{"missing subject", noSubject, ErrInvalidToken},
		{"missing expiry", noExpiry, ErrInvalidToken},
		{"alg none", noneAlg, ErrInvalidToken},
		{"garbage", "not-a-jwt", ErrInvalidToken},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			session, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, session)
		})
	}
}

type recordingRevoker struct {
	mu           sync.Mutex
	fingerprints []string
	err          error
}

func (r *recordingRevoker) RevokeSession(_ context.Context, fingerprint string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprints = append(r.fingerprints, fingerprint)
	return r.err
}

func TestBroker_SessionLifecycle(t *testing.T) {
	t.Parallel()

	revoker := &recordingRevoker{}
	b := NewBroker(nil, revoker, discardLogger())

	var events []*model.Session
	unsubscribe := b.OnSessionChange(func(s *model.Session) {
		events = append(events, s)
	})

	_, ok := b.CurrentSession()
	assert.False(t, ok)

	s1 := &model.Session{ID: "s1", Principal: model.Principal{ID: "u1"}, Token: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}
	b.SetSession(s1)

	got, ok := b.CurrentSession()
	require.True(t, ok)
	assert.Same(t, s1, got)

	require.NoError(t, b.SignOut(context.Background()))
	_, ok = b.CurrentSession()
	assert.False(t, ok)
	assert.Equal(t, []string{auth.Fingerprint("tok-1")}, revoker.fingerprints)

	require.Len(t, events, 2)
	assert.Same(t, s1, events[0])
	assert.Nil(t, events[1])

	unsubscribe()
	unsubscribe()
	b.SetSession(s1)
	assert.Len(t, events, 2, "unsubscribed listener must not be called")
}

func TestBroker_SignOutWithoutSessionIsNoop(t *testing.T) {
	t.Parallel()

	revoker := &recordingRevoker{}
	b := NewBroker(nil, revoker, discardLogger())

	calls := 0
	b.OnSessionChange(func(*model.Session) { calls++ })

	require.NoError(t, b.SignOut(context.Background()))
	assert.Zero(t, calls)
	assert.Empty(t, revoker.fingerprints)
}

func TestBroker_SignOutClearsEvenIfRevocationFails(t *testing.T) {
	t.Parallel()

	revoker := &recordingRevoker{err: errors.New("redis down")}
	b := NewBroker(nil, revoker, discardLogger())
	b.SetSession(&model.Session{ID: "s1", Principal: model.Principal{ID: "u1"}, Token: "tok"})

	err := b.SignOut(context.Background())
	assert.Error(t, err)

	_, ok := b.CurrentSession()
	assert.False(t, ok)
}

func TestBroker_ExpiredSessionIsNotCurrent(t *testing.T) {
	t.Parallel()

	b := NewBroker(nil, nil, discardLogger())
	b.SetSession(&model.Session{ID: "s1", Principal: model.Principal{ID: "u1"}, ExpiresAt: time.Now().Add(-time.Second)})

	_, ok := b.CurrentSession()
	assert.False(t, ok)
}

func TestBroker_SignInWithToken(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret, "", "")
	b := NewBroker(v, nil, discardLogger())

	token, err := v.Sign(model.Principal{ID: "u1"}, "s1", time.Hour)
	require.NoError(t, err)

	session, err := b.SignInWithToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.Principal.ID)

	current, ok := b.CurrentSession()
	require.True(t, ok)
	assert.Equal(t, "s1", current.ID)

	_, err = b.SignInWithToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewBroker(nil, nil, discardLogger()).SignInWithToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
