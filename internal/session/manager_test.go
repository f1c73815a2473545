package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jetstack/securelink/api"
	"github.com/jetstack/securelink/internal/session"
)

// fakeIssuer returns canned responses or errors.
type fakeIssuer struct {
	resp api.SessionResponse
	err  error

	calls int
}

func (f *fakeIssuer) FetchSession(ctx context.Context) (api.SessionResponse, error) {
	f.calls++
	return f.resp, f.err
}

func TestAcquireSession_OK(t *testing.T) {
	expiry := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	issuer := &fakeIssuer{resp: api.SessionResponse{
		SessionID:  "sess-1",
		PublicKey:  "bWF0ZXJpYWw=",
		ExpiryTime: api.Time{Time: expiry},
	}}

	manager := session.NewManager(issuer, session.NewKeyStore(0))
	info, err := manager.AcquireSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sess-1", info.ID)
	require.Equal(t, "bWF0ZXJpYWw=", info.PublicKeyMaterial)
	require.True(t, info.ExpiresAt.Equal(expiry))
	require.False(t, info.Expired(time.Now()))
	require.True(t, info.Expired(expiry.Add(time.Second)))
}

func TestAcquireSession_NeverReuses(t *testing.T) {
	issuer := &fakeIssuer{resp: api.SessionResponse{SessionID: "sess-1", PublicKey: "a2V5"}}
	manager := session.NewManager(issuer, session.NewKeyStore(0))

	for i := 0; i < 3; i++ {
		_, err := manager.AcquireSession(context.Background())
		require.NoError(t, err)
	}
	// one issuer call per acquisition, no caching
	require.Equal(t, 3, issuer.calls)
}

func TestAcquireSession_Failures(t *testing.T) {
	tests := []struct {
		name   string
		issuer *fakeIssuer
	}{
		{"network error", &fakeIssuer{err: errors.New("connection refused")}},
		{"missing session id", &fakeIssuer{resp: api.SessionResponse{PublicKey: "a2V5"}}},
		{"missing public key", &fakeIssuer{resp: api.SessionResponse{SessionID: "sess-1"}}},
		{"empty response", &fakeIssuer{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := session.NewManager(tt.issuer, session.NewKeyStore(0))
			_, err := manager.AcquireSession(context.Background())
			require.ErrorIs(t, err, session.ErrSessionEstablishment)
		})
	}
}

func TestInfo_ZeroExpiryNeverExpires(t *testing.T) {
	info := session.Info{ID: "sess-1", PublicKeyMaterial: "a2V5"}
	require.False(t, info.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestManager_KeyLifecycle(t *testing.T) {
	manager := session.NewManager(&fakeIssuer{}, session.NewKeyStore(0))

	require.NoError(t, manager.RegisterKey("sess-1", []byte("k")))

	got, err := manager.TakeKey("sess-1")
	require.NoError(t, err)
	require.Equal(t, []byte("k"), got)

	_, err = manager.TakeKey("sess-1")
	require.ErrorIs(t, err, session.ErrUnknownSession)

	require.NoError(t, manager.RegisterKey("sess-2", []byte("k2")))
	manager.RemoveKey("sess-2")
	_, err = manager.TakeKey("sess-2")
	require.ErrorIs(t, err, session.ErrUnknownSession)
}
