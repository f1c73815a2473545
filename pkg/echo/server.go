package echo

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/jetstack/securelink/api"
	"github.com/jetstack/securelink/internal/envelope/aesgcm"
)

const defaultSessionTTL = 5 * time.Minute

// Server is the in-process remote party. It is safe for concurrent use.
type Server struct {
	key *rsa.PrivateKey
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]time.Time
}

// NewServer generates a fresh 2048-bit RSA keypair and returns a server whose
// sessions expire after ttl (a default is applied when ttl is zero).
func NewServer(ttl time.Duration) (*Server, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA keypair: %w", err)
	}
	if ttl == 0 {
		ttl = defaultSessionTTL
	}
	return &Server{
		key:      key,
		ttl:      ttl,
		sessions: make(map[string]time.Time),
	}, nil
}

// Handler returns the HTTP handler exposing the issuance and exchange
// endpoints at /api/session and /api/exchange.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/exchange", s.handleExchange)
	return mux
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, fmt.Sprintf("invalid method. Expected GET, received %s", r.Method), http.StatusBadRequest)
		return
	}

	der, err := x509.MarshalPKIXPublicKey(&s.key.PublicKey)
	if err != nil {
		writeError(w, fmt.Sprintf("marshaling public key: %+v", err), http.StatusInternalServerError)
		return
	}

	sessionID := uuid.NewString()
	expiry := time.Now().Add(s.ttl)

	s.mu.Lock()
	s.sessions[sessionID] = expiry
	s.mu.Unlock()

	color.Green("-- %s %s -> issued session %s", r.Method, r.URL.Path, sessionID)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.SessionResponse{
		SessionID:  sessionID,
		PublicKey:  base64.StdEncoding.EncodeToString(der),
		ExpiryTime: api.Time{Time: expiry},
	})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, fmt.Sprintf("invalid method. Expected POST, received %s", r.Method), http.StatusBadRequest)
		return
	}

	var req api.EncryptedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Sprintf("decoding body: %+v", err), http.StatusBadRequest)
		return
	}

	if !s.consumeSession(req.SessionID) {
		writeError(w, fmt.Sprintf("unknown or expired session %q", req.SessionID), http.StatusBadRequest)
		return
	}

	payload, key, err := s.open(req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	color.Green("-- %s %s -> session %s", r.Method, r.URL.Path, req.SessionID)
	color.Yellow("Payload (%s):\n%s", req.PayloadType, string(payload))

	// Echo the payload back, encrypted under the same symmetric key the
	// request arrived with.
	sealed, err := aesgcm.Encrypt(json.RawMessage(payload), key)
	if err != nil {
		writeError(w, fmt.Sprintf("encrypting response: %+v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.EncryptedResponse{
		SessionID:     req.SessionID,
		EncryptedData: base64.StdEncoding.EncodeToString(sealed),
		EncryptedKey:  req.EncryptedKey,
	})
}

// consumeSession removes the session, enforcing single use, and reports
// whether it existed and had not expired.
func (s *Server) consumeSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	delete(s.sessions, sessionID)
	return time.Now().Before(expiry)
}

// open unwraps the request's symmetric key with the server's private key and
// decrypts the payload.
func (s *Server) open(req api.EncryptedRequest) (payload json.RawMessage, key []byte, err error) {
	wrapped, err := base64.StdEncoding.DecodeString(req.EncryptedKey)
	if err != nil {
		return nil, nil, fmt.Errorf("encryptedKey is not valid base64: %w", err)
	}

	key, err = rsa.DecryptOAEP(sha256.New(), rand.Reader, s.key, wrapped, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("unwrapping symmetric key: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(req.EncryptedData)
	if err != nil {
		return nil, nil, fmt.Errorf("encryptedData is not valid base64: %w", err)
	}

	payload, err = aesgcm.Decrypt(sealed, key)
	if err != nil {
		return nil, nil, fmt.Errorf("decrypting payload: %w", err)
	}
	return payload, key, nil
}
