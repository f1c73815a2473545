package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownSession indicates no key is on file for a session id: the key was
// already consumed, never registered, or evicted after its request was
// abandoned. The issuer does not let us distinguish these cases, so neither
// do we.
var ErrUnknownSession = errors.New("no key on file for session")

type keyEntry struct {
	key        []byte
	registered time.Time
}

// KeyStore is the mutex-guarded table of symmetric keys for in-flight
// requests, keyed by session id. Registration refuses to overwrite a live
// entry and Take removes the entry atomically, so a key can be consumed at
// most once.
type KeyStore struct {
	// ttl bounds how long an abandoned entry survives. Zero disables
	// eviction; correctness does not depend on it since entries are removed
	// on consumption.
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]keyEntry
}

// NewKeyStore returns a KeyStore. If ttl is non-zero, entries older than ttl
// are evicted opportunistically during later operations; a Take after
// eviction fails with ErrUnknownSession exactly as for a never-registered id.
func NewKeyStore(ttl time.Duration) *KeyStore {
	return &KeyStore{
		ttl:     ttl,
		entries: make(map[string]keyEntry),
	}
}

// Register stores the key for a session id. It fails if a live entry already
// exists for the id: a collision means the issuer handed out a duplicate
// session id, which is a protocol bug worth surfacing rather than masking.
func (s *KeyStore) Register(sessionID string, key []byte) error {
	if sessionID == "" {
		return fmt.Errorf("session id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(time.Now())

	if _, exists := s.entries[sessionID]; exists {
		return fmt.Errorf("session id %q already has a live key entry", sessionID)
	}

	stored := make([]byte, len(key))
	copy(stored, key)
	s.entries[sessionID] = keyEntry{key: stored, registered: time.Now()}
	return nil
}

// Take removes and returns the key for a session id. The removal happens
// under the same lock as the lookup, so concurrent Takes for one id yield the
// key to exactly one caller; all others fail with ErrUnknownSession.
func (s *KeyStore) Take(sessionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(time.Now())

	entry, ok := s.entries[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, sessionID)
	}
	delete(s.entries, sessionID)
	return entry.key, nil
}

// Remove discards the entry for a session id, if any. Used by failure
// handlers to clean up after a request that will never see a response.
func (s *KeyStore) Remove(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// Len reports the number of live entries.
func (s *KeyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts entries registered before now minus the configured TTL and
// reports how many were removed.
func (s *KeyStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked(now)
}

func (s *KeyStore) evictExpiredLocked(now time.Time) int {
	if s.ttl == 0 {
		return 0
	}
	evicted := 0
	for id, entry := range s.entries {
		if now.Sub(entry.registered) > s.ttl {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}
