package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"k8s.io/klog/v2"

	"github.com/jetstack/securelink/api"
)

// PostEnvelopeWithRetry posts an encrypted request envelope, retrying with
// exponential backoff for up to maxElapsed. The envelope is immutable and
// carries its own single-use key, so re-posting the identical bytes is safe;
// what must never be retried automatically is building a new envelope, which
// is why retries live here in the transport and not in the codec.
func (c *Client) PostEnvelopeWithRetry(ctx context.Context, envelope api.EncryptedRequest, maxElapsed time.Duration) ([]byte, error) {
	logger := klog.FromContext(ctx).WithName("client")

	backOff := backoff.NewExponentialBackOff()
	backOff.InitialInterval = 1 * time.Second
	backOff.MaxInterval = 30 * time.Second
	backOff.MaxElapsedTime = maxElapsed

	var body []byte
	post := func() error {
		var err error
		body, err = c.PostEnvelope(ctx, envelope)
		return err
	}
	err := backoff.RetryNotify(post, backoff.WithContext(backOff, ctx), func(err error, t time.Duration) {
		logger.Info("retrying envelope post", "after", t, "reason", err.Error())
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
