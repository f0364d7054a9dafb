package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	agenterrors "ups-metric-sender/internal/errors"
	"ups-metric-sender/internal/logger"
	"ups-metric-sender/internal/payload"
	"ups-metric-sender/internal/recovery"
)

// DefaultTimeout bounds a single POST
const DefaultTimeout = 10 * time.Second

// Result describes one delivery attempt. Err is set only when the collector
// never answered; any HTTP status counts as delivered.
type Result struct {
	Endpoint   string
	StatusCode int
	Duration   time.Duration
	Err        *agenterrors.DeliveryError
}

// Delivered reports whether the collector answered
func (r Result) Delivered() bool {
	return r.Err == nil
}

// Client POSTs payloads to the collector
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *recovery.CircuitBreaker
	logger     logger.ILogger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCircuitBreaker skips delivery while the breaker is open
func WithCircuitBreaker(cb *recovery.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithLogger replaces the default StandardLogger
func WithLogger(l logger.ILogger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a delivery client for endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger.NewStandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the collector URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send makes one POST attempt. Failures are logged as warnings and returned
// in Result.Err; Send never retries.
func (c *Client) Send(ctx context.Context, p payload.Payload) Result {
	start := time.Now()
	result := Result{Endpoint: c.endpoint}

	body, err := p.JSON()
	if err != nil {
		result.Err = agenterrors.NewDeliveryError("encode", err, c.endpoint)
		c.logger.LogWarn("Error posting to %s: %v", c.endpoint, err)
		return result
	}

	post := func() error {
		code, postErr := c.post(ctx, body)
		result.StatusCode = code
		return postErr
	}

	if c.breaker != nil {
		err = c.breaker.Call(post)
	} else {
		err = post()
	}
	result.Duration = time.Since(start)

	if errors.Is(err, recovery.ErrCircuitOpen) {
		// no request was made this cycle
		result.Err = agenterrors.NewDeliveryError("skip", err, c.endpoint)
		c.logger.LogWarn("Skipped POST to %s: %v", c.endpoint, err)
		return result
	}
	if err != nil {
		result.Err = agenterrors.NewDeliveryError("post", err, c.endpoint)
		c.logger.LogWarn("Error posting to %s: %v", c.endpoint, err)
		return result
	}

	c.logger.LogInfo("📤 Posted to %s, response code: %d", c.endpoint, result.StatusCode)
	return result
}

func (c *Client) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
