// Package http builds the outbound HTTP clients used to talk to the OAuth2 provider.
package http

import (
	"net/http"
	"time"

	"credential-manager/internal/common/logging"
)

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	Transport           http.RoundTripper
	Logger              logging.Logger
}

// DefaultClientConfig returns default HTTP client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             30 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
}

// ClientOption is a function that modifies ClientConfig
type ClientOption func(*ClientConfig)

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithTransport replaces the default transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// WithLogger logs every round trip at debug level
func WithLogger(logger logging.Logger) ClientOption {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// NewHTTPClient creates a new HTTP client with the given options
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()

	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.MaxIdleConns = cfg.MaxIdleConns
		base.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		base.IdleConnTimeout = cfg.IdleConnTimeout
		transport = base
	}

	if cfg.Logger != nil {
		transport = &loggingTransport{next: transport, logger: cfg.Logger}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// loggingTransport records method, host, path, status and latency. Bodies and
// query strings are never logged since they carry codes and secrets.
type loggingTransport struct {
	next   http.RoundTripper
	logger logging.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	fields := []logging.Field{
		logging.String("method", req.Method),
		logging.String("host", req.URL.Host),
		logging.String("path", req.URL.Path),
		logging.Duration("duration", time.Since(start)),
	}
	if err != nil {
		t.logger.Debug("Provider request failed", append(fields, logging.Err(err))...)
		return nil, err
	}

	t.logger.Debug("Provider request completed", append(fields, logging.Int("status", resp.StatusCode))...)
	return resp, nil
}
