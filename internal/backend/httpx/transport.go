// Package httpx is the shared HTTP execution helper used by both backend
// variants: fixed-backoff retry, an optional outbound rate limiter, and a
// transport that never consults environment proxy variables.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RetryConfig controls the shared retry wrapper: a *fixed* back-off,
// unlike the store gateway's exponential policy
// (internal/storegw/postgres/retry.go).
type RetryConfig struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultRetryConfig returns the default policy: up to 3 attempts, fixed
// 1000ms back-off between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, Interval: 1000 * time.Millisecond}
}

// Transport executes HTTP requests with fixed-backoff retry and an optional
// rate limiter. Its http.Transport sets Proxy: nil so no environment proxy
// variable is ever consulted.
type Transport struct {
	HTTPClient *http.Client
	Retry      RetryConfig
	Limiter    *rate.Limiter
	Logger     *slog.Logger
}

// New builds a Transport. requestsPerSecond <= 0 disables rate limiting.
func New(timeout time.Duration, retry RetryConfig, requestsPerSecond float64, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &Transport{
		HTTPClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: nil,
			},
		},
		Retry:   retry,
		Limiter: limiter,
		Logger:  logger,
	}
}

// EncodeJSON marshals v preserving non-ASCII characters (no HTML escaping).
func EncodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Do executes an HTTP request with fixed-backoff retry. build constructs a
// fresh *http.Request on every attempt so a consumed body can be resent.
// acceptStatus, when non-nil, lets a caller treat a particular status (e.g.
// 404 on a close-by-alias call) as success before the retry/error decision.
func (t *Transport) Do(ctx context.Context, build func() (*http.Request, error), acceptStatus func(code int) bool) ([]byte, int, time.Duration, error) {
	start := time.Now()
	var lastErr error
	var lastCode int

	for attempt := 1; attempt <= t.Retry.MaxAttempts; attempt++ {
		if t.Limiter != nil {
			if err := t.Limiter.Wait(ctx); err != nil {
				return nil, 0, time.Since(start), err
			}
		}

		req, err := build()
		if err != nil {
			return nil, 0, time.Since(start), fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		resp, err := t.HTTPClient.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if !isRetryableErr(err) || attempt == t.Retry.MaxAttempts {
				break
			}
			t.logAndWait(ctx, attempt, err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastCode = resp.StatusCode

		if acceptStatus != nil && acceptStatus(resp.StatusCode) {
			return body, resp.StatusCode, time.Since(start), nil
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, resp.StatusCode, time.Since(start), readErr
		}

		lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode < 500 {
			// Permanent request error: never retried.
			return body, resp.StatusCode, time.Since(start), lastErr
		}
		if attempt == t.Retry.MaxAttempts {
			break
		}
		t.logAndWait(ctx, attempt, lastErr)
	}

	return nil, lastCode, time.Since(start), lastErr
}

func (t *Transport) logAndWait(ctx context.Context, attempt int, err error) {
	t.Logger.Warn("backend request failed, retrying",
		"attempt", attempt,
		"max_attempts", t.Retry.MaxAttempts,
		"interval", t.Retry.Interval,
		"error", err)

	select {
	case <-time.After(t.Retry.Interval):
	case <-ctx.Done():
	}
}

// isRetryableErr reports whether a transport error from HTTPClient.Do is
// worth another attempt: timeouts and connection failures (refused, reset)
// are; a cancelled context is not.
func isRetryableErr(err error) bool {
	return !errors.Is(err, context.Canceled)
}
