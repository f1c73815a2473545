package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jetstack/securelink/api"
)

// FetchSession performs a GET against the key-issuance endpoint and decodes
// the session response. Field-level validation (non-empty session id and key
// material) is the session manager's job; this method only vouches for the
// transport and the JSON shape.
func (c *Client) FetchSession(ctx context.Context) (api.SessionResponse, error) {
	url := c.fullURL(c.sessionPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return api.SessionResponse{}, errors.Wrap(err, "creating session request")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return api.SessionResponse{}, errors.Wrapf(err, "fetching session from %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return api.SessionResponse{}, fmt.Errorf("unexpected status code %d from %s: %s", resp.StatusCode, url, string(body))
	}

	var out api.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return api.SessionResponse{}, errors.Wrap(err, "decoding session response")
	}
	return out, nil
}

// PostEnvelope sends an encrypted request envelope to the exchange endpoint
// and returns the raw response body. The body may be an encrypted envelope or
// plaintext JSON; the caller decides with api.IsEncryptedEnvelope.
func (c *Client) PostEnvelope(ctx context.Context, envelope api.EncryptedRequest) ([]byte, error) {
	url := c.fullURL(c.exchangePath)

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, errors.Wrap(err, "encoding envelope")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "creating exchange request")
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "posting envelope to %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading exchange response")
	}

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("unexpected status code %d from %s: %s", resp.StatusCode, url, string(body))
	}
	return body, nil
}
