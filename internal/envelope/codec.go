package envelope

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/jetstack/securelink/api"
	"github.com/jetstack/securelink/internal/envelope/aesgcm"
	"github.com/jetstack/securelink/internal/envelope/rsakey"
	"github.com/jetstack/securelink/internal/session"
)

// Codec assembles outbound encrypted requests and opens inbound encrypted
// responses. It is the boundary higher layers call; all failures from the
// underlying components propagate to the caller unchanged and nothing is
// retried here.
type Codec struct {
	sessions *session.Manager
	importer *rsakey.Importer
}

// Option configures a Codec.
type Option func(*options)

type options struct {
	keyTTL   time.Duration
	allowPEM bool
}

// WithKeyTTL bounds the lifetime of key-store entries whose requests were
// abandoned. Entries older than ttl are evicted; decrypting such a response
// later fails exactly as if the session were never registered.
func WithKeyTTL(ttl time.Duration) Option {
	return func(o *options) { o.keyTTL = ttl }
}

// WithPEMKeys accepts PEM-wrapped public key material from the issuer in
// addition to raw base64 DER.
func WithPEMKeys(allow bool) Option {
	return func(o *options) { o.allowPEM = allow }
}

// NewCodec returns a Codec that acquires sessions from the given issuer.
func NewCodec(issuer session.Issuer, opts ...Option) *Codec {
	o := options{allowPEM: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Codec{
		sessions: session.NewManager(issuer, session.NewKeyStore(o.keyTTL)),
		importer: rsakey.NewImporter(o.allowPEM),
	}
}

// EncryptRequest encrypts payload for one round trip: it acquires a fresh
// session, generates and registers a single-use AES key, encrypts the
// payload, wraps the key with the session's RSA public key and assembles the
// outbound envelope. On any failure after key registration the registered
// entry is removed again, so no orphaned key outlives a request that was
// never sent.
func (c *Codec) EncryptRequest(ctx context.Context, payload any, payloadType string) (api.EncryptedRequest, error) {
	logger := klog.FromContext(ctx).WithName("envelope")

	sess, err := c.sessions.AcquireSession(ctx)
	if err != nil {
		return api.EncryptedRequest{}, err
	}
	if sess.Expired(time.Now()) {
		return api.EncryptedRequest{}, fmt.Errorf("%w: issued session %q is already expired", session.ErrSessionEstablishment, sess.ID)
	}

	key, err := aesgcm.GenerateKey()
	if err != nil {
		return api.EncryptedRequest{}, err
	}
	if err := c.sessions.RegisterKey(sess.ID, key); err != nil {
		return api.EncryptedRequest{}, err
	}

	sealed, err := aesgcm.Encrypt(payload, key)
	if err != nil {
		c.sessions.RemoveKey(sess.ID)
		return api.EncryptedRequest{}, err
	}

	publicKey, err := c.importer.Import(sess.PublicKeyMaterial)
	if err != nil {
		c.sessions.RemoveKey(sess.ID)
		return api.EncryptedRequest{}, err
	}

	wrappedKey, err := rsakey.WrapKey(key, publicKey)
	if err != nil {
		c.sessions.RemoveKey(sess.ID)
		return api.EncryptedRequest{}, err
	}

	logger.V(2).Info("encrypted request", "sessionID", sess.ID, "payloadType", payloadType)

	return api.EncryptedRequest{
		SessionID:     sess.ID,
		EncryptedData: base64.StdEncoding.EncodeToString(sealed),
		EncryptedKey:  wrappedKey,
		PayloadType:   payloadType,
	}, nil
}

// DecryptResponse opens an inbound envelope with the key that encrypted the
// paired request, looked up and consumed by session id. The key is consumed
// on lookup, not on success: even when decryption fails the key is gone,
// which deliberately bounds its lifetime, and a second call for the same
// session id fails with session.ErrUnknownSession.
func (c *Codec) DecryptResponse(ctx context.Context, envelope api.EncryptedResponse) (json.RawMessage, error) {
	key, err := c.sessions.TakeKey(envelope.SessionID)
	if err != nil {
		return nil, err
	}

	sealed, err := base64.StdEncoding.DecodeString(envelope.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("%w: encryptedData is not valid base64: %v", aesgcm.ErrAuthenticationFailed, err)
	}

	payload, err := aesgcm.Decrypt(sealed, key)
	if err != nil {
		return nil, err
	}

	klog.FromContext(ctx).WithName("envelope").V(2).Info("decrypted response", "sessionID", envelope.SessionID)
	return payload, nil
}

// DecryptResponseInto decrypts an inbound envelope and unmarshals the payload
// into out.
func (c *Codec) DecryptResponseInto(ctx context.Context, envelope api.EncryptedResponse, out any) error {
	payload, err := c.DecryptResponse(ctx, envelope)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%w: %v", aesgcm.ErrDeserialization, err)
	}
	return nil
}

// Abandon discards the key registered for a session whose request will never
// see a response, for example after a transport failure. Without this the
// entry survives until the optional TTL eviction.
func (c *Codec) Abandon(sessionID string) {
	c.sessions.RemoveKey(sessionID)
}
