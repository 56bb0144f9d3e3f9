package wolfram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestRetryTransientThenSuccess(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("third time lucky"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	got, err := client.ShortAnswer(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("expected success within the retry budget, got %v", err)
	}
	if got != "third time lucky" {
		t.Fatalf("unexpected answer: %q", got)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts (1 initial + 2 retries), got %d", calls)
	}
}

func TestRetryRateLimited(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok now"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	if _, err := client.ShortAnswer(context.Background(), "ping", nil); err != nil {
		t.Fatalf("expected recovery after 429, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestRetryWaitDoesNotConsumeAttemptTimeout(t *testing.T) {
	t.Parallel()

	// Retry-After equals the full request timeout. If the timeout were
	// shared across the whole retry sequence, the wait would exhaust it
	// and the second attempt would die before leaving the client.
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		AppID:       "x",
		APIBase:     srv.URL,
		Timeout:     time.Second,
		BaseBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	got, err := client.ShortAnswer(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("expected success after honoring Retry-After, got %v", err)
	}
	if got != "recovered" {
		t.Fatalf("unexpected answer: %q", got)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.ShortAnswer(context.Background(), "ping", nil)
	if err == nil {
		t.Fatalf("expected error for 404")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstream.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", upstream.Status)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("404 must never be retried, got %d attempts", calls)
	}
}

func TestRetryExhaustionPropagatesLastError(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.ShortAnswer(context.Background(), "ping", nil)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstream.Status != http.StatusInternalServerError {
		t.Fatalf("last error must carry the final status, got %d", upstream.Status)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts before giving up, got %d", calls)
	}
}

func TestNoRetryOnTransportError(t *testing.T) {
	t.Parallel()

	// A server that is immediately closed guarantees a connection error.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client, err := NewClient(Config{
		AppID:       "x",
		APIBase:     baseURL,
		BaseBackoff: time.Millisecond,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	start := time.Now()
	_, err = client.ShortAnswer(context.Background(), "ping", nil)
	if err == nil {
		t.Fatalf("expected transport error")
	}

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstream.Status != 0 {
		t.Fatalf("transport errors carry no status, got %d", upstream.Status)
	}
	// Without retries the failure is near-instant.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("transport error appears to have been retried (%v elapsed)", elapsed)
	}
}
