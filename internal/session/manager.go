package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/jetstack/securelink/api"
)

// ErrSessionEstablishment indicates a usable session could not be obtained
// from the issuer: the call failed, or the response was missing its session
// id or public key. Retrying the whole request is the expected recovery.
var ErrSessionEstablishment = errors.New("failed to establish session")

// Issuer is the remote collaborator that mints key-exchange sessions.
type Issuer interface {
	// FetchSession requests a fresh session from the issuance endpoint.
	FetchSession(ctx context.Context) (api.SessionResponse, error)
}

// Info describes one issued session. It is immutable once created and never
// persisted; once ExpiresAt passes the session is stale and must not be used
// for a new request. Expiry here is advisory, the server stays authoritative.
type Info struct {
	ID                string
	PublicKeyMaterial string
	ExpiresAt         time.Time
}

// Expired reports whether the session is known to be stale at the given time.
// A zero expiry means the issuer did not communicate one; such sessions are
// never considered expired locally.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// Manager acquires sessions and owns the key table for in-flight requests.
type Manager struct {
	issuer Issuer
	store  *KeyStore
}

// NewManager returns a Manager backed by the given issuer and key store.
func NewManager(issuer Issuer, store *KeyStore) *Manager {
	return &Manager{issuer: issuer, store: store}
}

// AcquireSession requests a fresh session from the issuer. Every call goes to
// the issuer; sessions are deliberately not cached or shared across requests.
func (m *Manager) AcquireSession(ctx context.Context) (Info, error) {
	resp, err := m.issuer.FetchSession(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrSessionEstablishment, err)
	}
	if resp.SessionID == "" {
		return Info{}, fmt.Errorf("%w: response is missing a session id", ErrSessionEstablishment)
	}
	if resp.PublicKey == "" {
		return Info{}, fmt.Errorf("%w: response is missing public key material", ErrSessionEstablishment)
	}

	klog.FromContext(ctx).WithName("session").V(2).Info("acquired session", "sessionID", resp.SessionID, "expiry", resp.ExpiryTime.Time)

	return Info{
		ID:                resp.SessionID,
		PublicKeyMaterial: resp.PublicKey,
		ExpiresAt:         resp.ExpiryTime.Time,
	}, nil
}

// RegisterKey records the symmetric key for a session's in-flight request.
func (m *Manager) RegisterKey(sessionID string, key []byte) error {
	return m.store.Register(sessionID, key)
}

// TakeKey consumes the symmetric key for a session id. It can succeed at most
// once per id.
func (m *Manager) TakeKey(sessionID string) ([]byte, error) {
	return m.store.Take(sessionID)
}

// RemoveKey discards the key for a session whose request was abandoned.
func (m *Manager) RemoveKey(sessionID string) {
	m.store.Remove(sessionID)
}
