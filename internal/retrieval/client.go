// Package retrieval implements the fault-tolerant request executor used by
// the property resolver and the comparables pipeline. Every call returns an
// Outcome value; no failure mode surfaces as a panic or a bare error from
// deep inside the stack.
package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Outcome is the terminal, immutable result of one retrieval call.
type Outcome[T any] struct {
	OK         bool
	Data       *T
	StatusCode int
	Kind       ErrorKind
	Err        error
	Attempts   int
	Duration   time.Duration
}

// Config tunes the retry and timeout policy.
type Config struct {
	MaxAttempts       int
	PerAttemptTimeout time.Duration
	BackoffUnit       time.Duration
	RatePerSecond     float64
	Burst             int
}

// DefaultConfig returns the policy from the product defaults: three
// attempts, 15s per attempt, linear backoff of attempt x 2s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		PerAttemptTimeout: 15 * time.Second,
		BackoffUnit:       2 * time.Second,
		RatePerSecond:     10,
		Burst:             10,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.PerAttemptTimeout <= 0 {
		c.PerAttemptTimeout = 15 * time.Second
	}
	if c.BackoffUnit < 0 {
		c.BackoffUnit = 0
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 10
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	return c
}

// Client executes HTTP requests under the retry policy. Safe for
// concurrent use.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a retrieval client with the given policy.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON performs a GET against rawURL with the given query parameters and
// decodes a 2xx JSON body into T. All failures are encoded in the Outcome.
func GetJSON[T any](ctx context.Context, c *Client, rawURL string, params url.Values, headers http.Header) Outcome[T] {
	start := time.Now()
	out := Outcome[T]{}

	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt

		if err := ctx.Err(); err != nil {
			return cancelled(out, err, start)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return cancelled(out, err, start)
		}

		data, status, err := c.attempt(ctx, target, headers)
		if err == nil {
			var payload T
			if uerr := json.Unmarshal(data, &payload); uerr != nil {
				// Terminal: the upstream said 2xx but sent an undecodable
				// body, so another attempt would fetch the same bytes.
				out.StatusCode = status
				out.Kind = KindBadPayload
				out.Err = eris.Wrap(uerr, "retrieval: decode response")
				out.Duration = time.Since(start)
				return out
			}
			out.OK = true
			out.Data = &payload
			out.StatusCode = status
			out.Duration = time.Since(start)
			return out
		}

		kind, code := classifyErr(err)
		out.StatusCode = code
		out.Kind = kind
		out.Err = err

		// Cancellation aborts immediately without consuming a retry.
		if kind == KindCancelled || ctx.Err() != nil {
			return cancelled(out, err, start)
		}

		if !IsRetryable(kind) {
			out.Duration = time.Since(start)
			return out
		}

		if attempt < c.cfg.MaxAttempts {
			delay := time.Duration(attempt) * c.cfg.BackoffUnit
			zap.L().Warn("retrieval: attempt failed, backing off",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.String("kind", kind.String()),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return cancelled(out, ctx.Err(), start)
			case <-timer.C:
			}
		}
	}

	out.Duration = time.Since(start)
	return out
}

// attempt runs one HTTP round trip under the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, target string, headers http.Header) ([]byte, int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.PerAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "retrieval: build request")
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, &statusError{code: resp.StatusCode, kind: Classify(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// classifyErr maps a transport or status error to an error kind.
func classifyErr(err error) (ErrorKind, int) {
	var se *statusError
	if errors.As(err, &se) {
		return se.kind, se.code
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled, 0
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, 0
	}
	return KindNetwork, 0
}

func cancelled[T any](out Outcome[T], err error, start time.Time) Outcome[T] {
	out.OK = false
	out.Kind = KindCancelled
	out.Err = err
	out.Duration = time.Since(start)
	return out
}
