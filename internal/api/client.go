package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultSnapshotLimit is the number of levels requested per side.
const DefaultSnapshotLimit = 1000

// Client provides access to the exchange REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	maxRetries    int
	retryBackoff  time.Duration
	snapshotLimit int

	// Last X-MBX-USED-WEIGHT-1M value seen, -1 before the first response.
	usedWeight atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. apiKey may be empty; the depth
// endpoint is public.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:        slog.Default(),
		maxRetries:    3,
		retryBackoff:  time.Second,
		snapshotLimit: DefaultSnapshotLimit,
	}

	c.usedWeight.Store(-1)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSnapshotLimit sets the depth requested by FetchSnapshot.
func WithSnapshotLimit(limit int) ClientOption {
	return func(c *Client) {
		c.snapshotLimit = limit
	}
}
