// Package analysis is the HTTP client for the external thought analysis
// service.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/cortex/internal/config"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultRateLimit   = 2.0
	defaultBurst       = 4
	defaultMaxRetries  = 3
	defaultBaseBackoff = 500 * time.Millisecond

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 4 << 20

	requestFailed = "Request failed"
)

var (
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("analysis service unavailable")
	// ErrInviteDenied is returned when the service rejects an invite code.
	ErrInviteDenied = errors.New("invite denied")
)

// APIError is a non-2xx answer from the analysis service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis API error (%d): %s", e.StatusCode, e.Message)
}

// retryable reports whether a repeat of the same request may succeed.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	return errors.As(err, &ae) && ae.retryable()
}

// Analyzer is the contract the journal depends on.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Payload, error)
	RedeemInvite(ctx context.Context, code string) error
}

// Client talks to the analysis service.
//
// Requests pass a token-bucket limiter, then a circuit breaker, and are
// retried with exponential backoff on transport errors, 429 and 5xx.
type Client struct {
	baseURL    string
	apiKey     config.Secret
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff sets the base retry delay.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// NewClient builds a Client from the analysis config section.
func NewClient(cfg config.AnalysisConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid analysis base_url %q", cfg.BaseURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = defaultMaxRetries
	}

	c := &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries: retries,
		backoff:    defaultBaseBackoff,
		logger:     logger,
	}
	c.breaker = newBreaker(cfg, logger)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newBreaker(cfg config.AnalysisConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	failures := uint32(5)
	if cfg.BreakerFailures > 0 {
		failures = uint32(cfg.BreakerFailures)
	}
	timeout := cfg.BreakerTimeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "analysis",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// Client errors say nothing about the service's health.
			var ae *APIError
			if errors.As(err, &ae) {
				return !ae.retryable()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			breakerState.Set(float64(to))
		},
	})
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Analyze sends text to POST /v1/analyze-thought and returns the payload.
// Malformed payload sections decode as absent; only a body that is not a
// JSON envelope at all is an error.
func (c *Client) Analyze(ctx context.Context, text string) (*Payload, error) {
	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := c.call(ctx, "analyze", http.MethodPost, "/v1/analyze-thought", body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "malformed response: " + err.Error()}
	}

	var p Payload
	_ = json.Unmarshal(env.Data, &p)
	return &p, nil
}

// RedeemInvite posts code to /v1/invite/{code}. Any non-2xx answer is
// ErrInviteDenied, including ones that exhausted their retries; transport,
// breaker and context failures are returned as is.
func (c *Client) RedeemInvite(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("%w: empty code", ErrInviteDenied)
	}

	_, err := c.call(ctx, "invite", http.MethodPost, "/v1/invite/"+url.PathEscape(code), nil)
	var ae *APIError
	if errors.As(err, &ae) {
		return fmt.Errorf("%w: %s", ErrInviteDenied, ae.Message)
	}
	return err
}

// call runs one logical request through limiter, breaker and retries.
func (c *Client) call(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c.logger.Debug("retrying analysis request",
				zap.String("op", op), zap.Int("attempt", attempt), zap.Error(lastErr))
		}

		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.do(ctx, method, path, body)
		})
		if err == nil {
			observeRequest(op, "ok", start)
			return out.([]byte), nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observeRequest(op, "unavailable", start)
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		lastErr = err
		if !isRetryable(err) {
			observeRequest(op, "error", start)
			return nil, err
		}
	}

	observeRequest(op, "error", start)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey.Value())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err: fmt.Errorf("analysis request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// errorMessage extracts {"error": "..."} from a failed response.
func errorMessage(body []byte) string {
	var env envelope
	if json.Unmarshal(body, &env) == nil && env.Error != "" {
		return env.Error
	}
	return requestFailed
}
