package envelope_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"
	"github.com/stretchr/testify/require"

	"github.com/jetstack/securelink/api"
	"github.com/jetstack/securelink/internal/envelope"
	"github.com/jetstack/securelink/internal/envelope/aesgcm"
	"github.com/jetstack/securelink/internal/session"
)

// fakeIssuer plays the remote issuance endpoint: it holds a private key and
// mints a fresh session id per call.
type fakeIssuer struct {
	key    *rsa.PrivateKey
	expiry time.Duration

	// overrides for failure injection
	publicKeyMaterial string
	err               error

	next int
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &fakeIssuer{key: key, expiry: 5 * time.Minute}
}

func (f *fakeIssuer) FetchSession(ctx context.Context) (api.SessionResponse, error) {
	if f.err != nil {
		return api.SessionResponse{}, f.err
	}

	material := f.publicKeyMaterial
	if material == "" {
		der, err := x509.MarshalPKIXPublicKey(&f.key.PublicKey)
		if err != nil {
			return api.SessionResponse{}, err
		}
		material = base64.StdEncoding.EncodeToString(der)
	}

	f.next++
	return api.SessionResponse{
		SessionID:  fmt.Sprintf("sess-%d", f.next),
		PublicKey:  material,
		ExpiryTime: api.Time{Time: time.Now().Add(f.expiry)},
	}, nil
}

// respond plays the backend's half of the exchange: unwrap the key, decrypt
// the request, and return the response payload encrypted under the same key.
func respond(t *testing.T, issuer *fakeIssuer, req api.EncryptedRequest, responsePayload any) api.EncryptedResponse {
	t.Helper()

	wrapped, err := base64.StdEncoding.DecodeString(req.EncryptedKey)
	require.NoError(t, err)
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, issuer.key, wrapped, nil)
	require.NoError(t, err)
	require.Len(t, key, 32)

	sealed, err := aesgcm.Encrypt(responsePayload, key)
	require.NoError(t, err)

	return api.EncryptedResponse{
		SessionID:     req.SessionID,
		EncryptedData: base64.StdEncoding.EncodeToString(sealed),
		EncryptedKey:  req.EncryptedKey,
	}
}

func TestEncryptRequest_EnvelopeShape(t *testing.T) {
	issuer := newFakeIssuer(t)
	codec := envelope.NewCodec(issuer)

	payload := map[string]any{"cardNumber": "4532015112830366", "creditLimit": 50000}
	req, err := codec.EncryptRequest(context.Background(), payload, "card-application")
	require.NoError(t, err)

	require.Equal(t, "sess-1", req.SessionID)
	require.Equal(t, "card-application", req.PayloadType)

	plaintext, err := json.Marshal(payload)
	require.NoError(t, err)
	// encryptedData is base64 of IV || ciphertext || tag
	require.Len(t, req.EncryptedData, base64.StdEncoding.EncodedLen(12+len(plaintext)+16))
	// encryptedKey is fixed at 256 bytes by the 2048-bit modulus
	require.Len(t, req.EncryptedKey, 344)
}

func TestEncryptRequest_OmitsEmptyPayloadType(t *testing.T) {
	issuer := newFakeIssuer(t)
	codec := envelope.NewCodec(issuer)

	req, err := codec.EncryptRequest(context.Background(), map[string]string{"a": "b"}, "")
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.NotContains(t, string(data), "payloadType")
}

func TestRoundTrip(t *testing.T) {
	issuer := newFakeIssuer(t)
	codec := envelope.NewCodec(issuer)
	ctx := context.Background()

	payload := map[string]any{"cardNumber": "4532015112830366", "creditLimit": float64(50000)}
	req, err := codec.EncryptRequest(ctx, payload, "card-application")
	require.NoError(t, err)

	resp := respond(t, issuer, req, payload)

	var got map[string]any
	require.NoError(t, codec.DecryptResponseInto(ctx, resp, &got))
	td.Cmp(t, got, payload)
}

func TestDecryptResponse_SingleUse(t *testing.T) {
	issuer := newFakeIssuer(t)
	codec := envelope.NewCodec(issuer)
	ctx := context.Background()

	req, err := codec.EncryptRequest(ctx, map[string]string{"a": "b"}, "")
	require.NoError(t, err)
	resp := respond(t, issuer, req, map[string]string{"ok": "yes"})

	_, err = codec.DecryptResponse(ctx, resp)
	require.NoError(t, err)

	// the key was consumed; a replayed response must not decrypt
	_, err = codec.DecryptResponse(ctx, resp)
	require.ErrorIs(t, err, session.ErrUnknownSession)
}

func TestDecryptResponse_KeyConsumedEvenOnFailure(t *testing.T) {
	issuer := newFakeIssuer(t)
	codec := envelope.NewCodec(issuer)
	ctx := context.Background()

	req, err := codec.EncryptRequest(ctx, map[string]string{"a": "b"}, "")
	require.NoError(t, err)
	resp := respond(t, issuer, req, map[string]string{"ok": "yes"})

	// tamper with the envelope
	sealed, err := base64.StdEncoding.DecodeString(resp.EncryptedData)
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01
	resp.EncryptedData = base64.StdEncoding.EncodeToString(sealed)

	_, err = codec.DecryptResponse(ctx, resp)
	require.ErrorIs(t, err, aesgcm.ErrAuthenticationFailed)

	// the key is gone regardless of the decryption outcome
	_, err = codec.DecryptResponse(ctx, resp)
	require.ErrorIs(t, err, session.ErrUnknownSession)
}

func TestDecryptResponse_UnknownSession(t *testing.T) {
	codec := envelope.NewCodec(newFakeIssuer(t))

	_, err := codec.DecryptResponse(context.Background(), api.EncryptedResponse{
		SessionID:     "never-seen",
		EncryptedData: base64.StdEncoding.EncodeToString([]byte("irrelevant")),
	})
	require.ErrorIs(t, err, session.ErrUnknownSession)
}

func TestEncryptRequest_IssuerFailure(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.err = fmt.Errorf("boom")
	codec := envelope.NewCodec(issuer)

	_, err := codec.EncryptRequest(context.Background(), map[string]string{"a": "b"}, "")
	require.ErrorIs(t, err, session.ErrSessionEstablishment)
}

func TestEncryptRequest_ExpiredSessionRefused(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.expiry = -time.Minute
	codec := envelope.NewCodec(issuer)

	_, err := codec.EncryptRequest(context.Background(), map[string]string{"a": "b"}, "")
	require.ErrorIs(t, err, session.ErrSessionEstablishment)
}

func TestEncryptRequest_BadPublicKeyLeavesNoOrphan(t *testing.T) {
	issuer := newFakeIssuer(t)
	issuer.publicKeyMaterial = "not a key"
	codec := envelope.NewCodec(issuer)
	ctx := context.Background()

	_, err := codec.EncryptRequest(ctx, map[string]string{"a": "b"}, "")
	require.Error(t, err)

	// the registered key was cleaned up on failure: nothing to take
	_, err = codec.DecryptResponse(ctx, api.EncryptedResponse{SessionID: "sess-1"})
	require.ErrorIs(t, err, session.ErrUnknownSession)
}

func TestConcurrentRoundTrips(t *testing.T) {
	issuer := newFakeIssuer(t)
	codec := envelope.NewCodec(issuer)
	ctx := context.Background()

	// many overlapping requests, decrypted out of order
	const inflight = 16
	requests := make([]api.EncryptedRequest, inflight)
	payloads := make([]map[string]any, inflight)
	for i := 0; i < inflight; i++ {
		payloads[i] = map[string]any{"seq": float64(i)}
		req, err := codec.EncryptRequest(ctx, payloads[i], "")
		require.NoError(t, err)
		requests[i] = req
	}

	for i := inflight - 1; i >= 0; i-- {
		resp := respond(t, issuer, requests[i], payloads[i])
		var got map[string]any
		require.NoError(t, codec.DecryptResponseInto(ctx, resp, &got))
		td.Cmp(t, got, payloads[i])
	}
}

func TestAbandon(t *testing.T) {
	issuer := newFakeIssuer(t)
	codec := envelope.NewCodec(issuer)
	ctx := context.Background()

	req, err := codec.EncryptRequest(ctx, map[string]string{"a": "b"}, "")
	require.NoError(t, err)

	codec.Abandon(req.SessionID)

	resp := respond(t, issuer, req, map[string]string{"ok": "yes"})
	_, err = codec.DecryptResponse(ctx, resp)
	require.ErrorIs(t, err, session.ErrUnknownSession)
}
