package wolfram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wolframgate/internal/metrics"

	"go.uber.org/zap"
)

// maxResponseSize guards against a misbehaving upstream streaming an
// unbounded body into memory (the simple sub-API returns raw image bytes).
const maxResponseSize = 8 * 1024 * 1024 // 8MB

// Sub-API paths on the configured base hosts.
const (
	pathQuery    = "/v2/query"
	pathSimple   = "/v1/simple"
	pathShort    = "/v1/result"
	pathSpoken   = "/v1/spoken"
	pathConverse = "/v1/conversation.jsp"
)

// buildParams merges the client defaults under per-call overrides.
// Override wins; empty override fields fall back to the defaults.
func (c *client) buildParams(input string, opts *QueryOptions) url.Values {
	params := url.Values{}
	params.Set("appid", c.cfg.AppID)
	params.Set("input", input)

	units := c.cfg.Units
	location := c.cfg.Location
	scanners := c.cfg.Scanners
	maxChars := c.cfg.MaxChars
	podState := ""

	if opts != nil {
		if opts.Units != "" {
			units = opts.Units
		}
		if opts.Location != "" {
			location = opts.Location
		}
		if len(opts.Scanners) > 0 {
			scanners = opts.Scanners
		}
		if opts.MaxChars > 0 {
			maxChars = opts.MaxChars
		}
		podState = opts.PodState
	}

	if units != "" {
		params.Set("units", units)
	}
	if location != "" {
		params.Set("location", location)
	}
	if len(scanners) > 0 {
		params.Set("scanner", strings.Join(scanners, ","))
	}
	if maxChars > 0 {
		params.Set("maxchars", strconv.Itoa(maxChars))
	}
	if podState != "" {
		params.Set("podstate", podState)
	}

	return params
}

// get issues exactly one retried GET against url+params and returns the
// response body. A 501 from the plaintext sub-APIs means the input could not
// be interpreted; that is a semantic miss, not a transport failure.
func (c *client) get(ctx context.Context, op Operation, rawURL string, params url.Values) ([]byte, error) {
	start := time.Now()

	fullURL := rawURL + "?" + params.Encode()

	// Each attempt gets its own timeout derived from the caller's context,
	// so a backoff wait never eats into the next attempt's budget. The
	// attempt context stays alive until the body is closed.
	doOnce := func(ctx context.Context) (*http.Response, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, fullURL, nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("build HTTP request: %w", err)
		}
		httpReq.Header.Set("Accept", "*/*")
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}

	resp, err := c.doWithRetry(ctx, op, doOnce)
	if err != nil {
		metrics.UpstreamLatencySeconds.WithLabelValues(string(op), "error").
			Observe(time.Since(start).Seconds())
		c.logger.Error("upstream request failed",
			zap.String("op", string(op)),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	metrics.UpstreamLatencySeconds.WithLabelValues(string(op), strconv.Itoa(resp.StatusCode)).
		Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &UpstreamError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode == http.StatusNotImplemented {
		// The plaintext sub-APIs answer 501 for uninterpretable input.
		return nil, ErrNoResult
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("upstream error",
			zap.String("op", string(op)),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 200)),
		)
		return nil, &UpstreamError{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", truncate(string(body), 200)),
		}
	}

	c.logger.Info("upstream request completed",
		zap.String("op", string(op)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return body, nil
}

// Query issues a full multi-section query and decodes the pod payload.
func (c *client) Query(ctx context.Context, input string, opts *QueryOptions) (*QueryResult, error) {
	params := c.buildParams(input, opts)
	params.Set("output", "json")
	params.Set("format", "plaintext")

	body, err := c.get(ctx, OpQuery, c.cfg.APIBase+pathQuery, params)
	if err != nil {
		return nil, err
	}

	var envelope providerQueryEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &UpstreamError{Op: OpQuery, Err: fmt.Errorf("decode response: %w", err)}
	}

	pr := envelope.QueryResult
	failed, msg := errorFlag(pr.Error)
	if failed {
		c.logger.Warn("query reported remote error",
			zap.String("input", truncate(input, 80)),
			zap.String("message", msg),
		)
		return nil, ErrNoResult
	}
	if !pr.Success || len(pr.Pods) == 0 {
		return nil, ErrNoResult
	}

	// Map provider -> internal result
	out := &QueryResult{
		Success:     pr.Success,
		NumPods:     pr.NumPods,
		DataTypes:   pr.DataTypes,
		Timing:      pr.Timing,
		Pods:        make([]Pod, 0, len(pr.Pods)),
		Assumptions: decodeAssumptions(pr.Assumptions),
		Warnings:    decodeWarnings(pr.Warnings),
	}
	for _, p := range pr.Pods {
		pod := Pod{
			Title:   p.Title,
			Scanner: p.Scanner,
			ID:      p.ID,
			Primary: p.Primary,
			SubPods: make([]SubPod, 0, len(p.SubPods)),
		}
		for _, sp := range p.SubPods {
			pod.SubPods = append(pod.SubPods, SubPod{Title: sp.Title, PlainText: sp.PlainText})
		}
		out.Pods = append(out.Pods, pod)
	}

	return out, nil
}

// Simple returns the rendered single-image answer as raw bytes.
func (c *client) Simple(ctx context.Context, input string, opts *QueryOptions) ([]byte, error) {
	params := c.buildParams(input, opts)

	body, err := c.get(ctx, OpSimple, c.cfg.APIBase+pathSimple, params)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrNoResult
	}
	return body, nil
}

// ShortAnswer returns the single-line plaintext answer.
func (c *client) ShortAnswer(ctx context.Context, input string, opts *QueryOptions) (string, error) {
	params := c.buildParams(input, opts)

	body, err := c.get(ctx, OpShort, c.cfg.APIBase+pathShort, params)
	if err != nil {
		return "", err
	}
	return c.plaintextAnswer(OpShort, body)
}

// Spoken returns the speech-ready plaintext answer.
func (c *client) Spoken(ctx context.Context, input string, opts *QueryOptions) (string, error) {
	params := c.buildParams(input, opts)

	body, err := c.get(ctx, OpSpoken, c.cfg.APIBase+pathSpoken, params)
	if err != nil {
		return "", err
	}
	return c.plaintextAnswer(OpSpoken, body)
}

// plaintextAnswer normalizes the short/spoken payloads. The remote sometimes
// answers 200 with an apology sentence instead of 501; both count as no result.
func (c *client) plaintextAnswer(op Operation, body []byte) (string, error) {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", ErrNoResult
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "no short answer available") ||
		strings.HasPrefix(lower, "no spoken result available") ||
		strings.HasPrefix(lower, "wolfram alpha did not understand") {
		c.logger.Debug("plaintext sub-API returned apology", zap.String("op", string(op)))
		return "", ErrNoResult
	}
	return text, nil
}

// Converse issues one conversational turn. An empty conversationID starts a
// new thread; a non-empty one continues the prior thread on the remote side.
func (c *client) Converse(ctx context.Context, input, conversationID string) (*ConverseResult, error) {
	params := url.Values{}
	params.Set("appid", c.cfg.AppID)
	params.Set("input", input)
	if c.cfg.Units != "" {
		params.Set("units", c.cfg.Units)
	}
	if c.cfg.Location != "" {
		params.Set("location", c.cfg.Location)
	}
	if conversationID != "" {
		params.Set("conversationID", conversationID)
	}

	body, err := c.get(ctx, OpConverse, c.cfg.ConverseBase+pathConverse, params)
	if err != nil {
		return nil, err
	}

	var pResp providerConverseResponse
	if err := json.Unmarshal(body, &pResp); err != nil {
		return nil, &UpstreamError{Op: OpConverse, Err: fmt.Errorf("decode response: %w", err)}
	}

	if pResp.Error != "" {
		if strings.Contains(strings.ToLower(pResp.Error), "expired") {
			c.logger.Info("conversation expired upstream",
				zap.String("conversation_id", conversationID),
			)
			return nil, ErrConversationExpired
		}
		c.logger.Warn("converse reported remote error", zap.String("message", pResp.Error))
		return nil, ErrNoResult
	}
	if strings.TrimSpace(pResp.Result) == "" {
		return nil, ErrNoResult
	}

	return &ConverseResult{
		Result:         pResp.Result,
		ConversationID: pResp.ConversationID,
		Host:           pResp.Host,
	}, nil
}

// cancelOnClose releases an attempt's context when its body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
