// Package client talks to the secure backend over HTTP: it fetches
// key-exchange sessions from the issuance endpoint and posts encrypted
// envelopes to the exchange endpoint.
//
// The client carries no retry or crypto logic of its own; retries are opt-in
// via PostEnvelopeWithRetry and all envelope handling lives in the envelope
// codec.
package client

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/jetstack/securelink/internal/session"
	"github.com/jetstack/securelink/pkg/version"
)

// Config wraps the options for constructing a Client.
type Config struct {
	// Server is the base URL of the backend, e.g. https://api.example.com.
	Server string `yaml:"server"`
	// SessionPath is the path of the key-issuance endpoint.
	SessionPath string `yaml:"session-path"`
	// ExchangePath is the path of the encrypted-exchange endpoint.
	ExchangePath string `yaml:"exchange-path"`
	// Token is an optional bearer token sent with every request.
	Token string `yaml:"token"`
	// Timeout bounds each HTTP request. Zero means the default.
	Timeout time.Duration `yaml:"timeout"`
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.Server == "" {
		result = multierror.Append(result, fmt.Errorf("server is required"))
	}
	if c.SessionPath == "" {
		result = multierror.Append(result, fmt.Errorf("session-path is required"))
	}
	if c.ExchangePath == "" {
		result = multierror.Append(result, fmt.Errorf("exchange-path is required"))
	}

	return result.ErrorOrNil()
}

const defaultTimeout = 30 * time.Second

// Client can be used to talk to the secure backend.
type Client struct {
	baseURL      string
	sessionPath  string
	exchangePath string
	token        string

	httpClient *http.Client
}

// Compile-time check that Client can issue sessions for the codec.
var _ session.Issuer = (*Client)(nil)

// New creates a new client from cfg. If httpClient is nil a default client
// with the configured timeout is used.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("cannot create client: %w", err)
	}

	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:      strings.TrimSuffix(cfg.Server, "/"),
		sessionPath:  cfg.SessionPath,
		exchangePath: cfg.ExchangePath,
		token:        cfg.Token,
		httpClient:   httpClient,
	}, nil
}

func (c *Client) fullURL(path string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimPrefix(path, "/"))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
}
