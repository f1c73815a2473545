// Package exchange runs full encrypted round trips against the secure
// backend: encrypt the request, post it, and decrypt the response when the
// backend answered with an envelope.
package exchange

import (
	"context"
	"encoding/json"
	"time"

	"k8s.io/klog/v2"

	"github.com/jetstack/securelink/api"
	"github.com/jetstack/securelink/internal/envelope"
	"github.com/jetstack/securelink/pkg/client"
)

// Service ties the envelope codec to the HTTP client.
type Service struct {
	codec  *envelope.Codec
	client *client.Client

	// RetryFor enables backoff retries of the envelope post when non-zero.
	RetryFor time.Duration
}

// New returns a Service using the given client for both session issuance and
// envelope exchange.
func New(c *client.Client, opts ...envelope.Option) *Service {
	return &Service{
		codec:  envelope.NewCodec(c, opts...),
		client: c,
	}
}

// Do encrypts payload, posts it, and returns the response payload. An
// encrypted response is detected structurally and decrypted with the
// request's key; anything else is returned as-is, a plaintext answer from the
// backend. If the post fails the request's key is discarded, since no
// response will ever arrive for it.
func (s *Service) Do(ctx context.Context, payload any, payloadType string) (json.RawMessage, error) {
	logger := klog.FromContext(ctx).WithName("exchange")

	req, err := s.codec.EncryptRequest(ctx, payload, payloadType)
	if err != nil {
		return nil, err
	}

	var body []byte
	if s.RetryFor > 0 {
		body, err = s.client.PostEnvelopeWithRetry(ctx, req, s.RetryFor)
	} else {
		body, err = s.client.PostEnvelope(ctx, req)
	}
	if err != nil {
		s.codec.Abandon(req.SessionID)
		return nil, err
	}

	if !api.IsEncryptedEnvelope(body) {
		logger.V(2).Info("response is not an encrypted envelope, passing through", "sessionID", req.SessionID)
		s.codec.Abandon(req.SessionID)
		return json.RawMessage(body), nil
	}

	var resp api.EncryptedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.codec.Abandon(req.SessionID)
		return nil, err
	}

	return s.codec.DecryptResponse(ctx, resp)
}

// DoInto runs Do and unmarshals the response payload into out.
func (s *Service) DoInto(ctx context.Context, payload any, payloadType string, out any) error {
	raw, err := s.Do(ctx, payload, payloadType)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
