package wolfram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wolframgate/internal/metrics"

	"go.uber.org/zap"
)

// doWithRetry wraps an outbound GET with retry logic.
// It will attempt the request up to MaxRetries+1 times (initial + retries).
// - Retries only on 429 and 5xx statuses; everything else is final.
// - Network errors are not retried: without a status there is no evidence
//   the failure is transient, so the cause propagates immediately.
// - Respects Retry-After headers from rate limiting responses.
// - Backoff starts at BaseBackoff and doubles after each failed attempt.
// - do runs each attempt under its own timeout; the ctx passed here is the
//   caller's, so backoff waits are bounded only by caller cancellation.
// On exhausting the budget the last error is returned unchanged.
func (c *client) doWithRetry(
	ctx context.Context,
	op Operation,
	do func(ctx context.Context) (*http.Response, error),
) (*http.Response, error) {
	var lastErr error
	maxAttempts := c.cfg.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	backoff := c.cfg.BaseBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := do(ctx)
		duration := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		c.logger.Debug("upstream request",
			zap.String("op", string(op)),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.Error(err),
		)

		if err != nil {
			// Context errors and transport failures are both final; a
			// timed-out attempt gives no evidence the next would fare better.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Debug("request cancelled or timed out", zap.Error(err))
				return nil, err
			}
			c.logger.Debug("transport error, not retrying", zap.Error(err))
			return nil, &UpstreamError{Op: op, Err: err}
		}

		if !shouldRetryStatus(status) {
			// Success or non-retriable HTTP status (e.g., 4xx)
			return resp, nil
		}

		// Retryable HTTP status (429, 5xx)
		lastErr = &UpstreamError{Op: op, Status: status, Err: errors.New(http.StatusText(status))}
		c.logger.Debug("retryable status code", zap.Int("status", status))

		// Check for Retry-After header before closing body
		retryAfter := parseRetryAfter(resp)

		// Important: close body before retrying so connection can be reused
		if resp.Body != nil {
			resp.Body.Close()
		}

		// No more attempts left
		if attempt == maxAttempts-1 {
			c.logger.Debug("no more retry attempts remaining")
			break
		}

		metrics.UpstreamRetriesTotal.WithLabelValues(string(op)).Inc()

		wait := backoff
		if retryAfter > 0 {
			c.logger.Info("honoring Retry-After header",
				zap.Duration("wait", retryAfter),
				zap.Int("status", status),
			)
			wait = retryAfter
		}
		backoff *= 2

		c.logger.Debug("backing off before retry",
			zap.Duration("backoff", wait),
			zap.Int("next_attempt", attempt+2),
		)

		// Wait for backoff period, respecting context cancellation
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
			// Continue to next attempt
		}
	}

	// All retries exhausted
	c.logger.Warn("upstream request exhausted all retries",
		zap.String("op", string(op)),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)

	if lastErr == nil {
		lastErr = &UpstreamError{Op: op, Err: errors.New("unknown upstream error")}
	}
	return nil, lastErr
}

// shouldRetryStatus returns true if the HTTP status code indicates
// the request should be retried.
func shouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusTooManyRequests: // 429
		// Rate limited - should retry with backoff
		return true
	case status >= 500 && status <= 599:
		// Server errors - usually transient
		return true
	default:
		// 2xx success, 3xx redirects, 4xx client errors - don't retry
		return false
	}
}

// parseRetryAfter extracts the retry delay from a Retry-After header.
// Returns 0 if header is missing or invalid.
//
// Retry-After can be:
// - Number of seconds: "120"
// - HTTP date: "Wed, 21 Oct 2015 07:28:00 GMT"
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	// Cap at a reasonable maximum; the per-attempt timeout ceiling is 30s
	// so a multi-minute Retry-After would stall the caller pointlessly.
	const maxRetryAfter = 60 * time.Second

	// Try parsing as seconds (integer)
	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil {
		if seconds > 0 {
			d := time.Duration(seconds) * time.Second
			if d > maxRetryAfter {
				d = maxRetryAfter
			}
			return d
		}
		return 0
	}

	// Try parsing as HTTP date
	if t, err := http.ParseTime(retryAfter); err == nil {
		duration := time.Until(t)
		if duration > 0 {
			if duration > maxRetryAfter {
				duration = maxRetryAfter
			}
			return duration
		}
	}

	return 0
}
