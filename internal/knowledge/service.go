// Package knowledge is the service core: it binds the outbound client, the
// result caches, the conversation tracker, and the formatter into the narrow
// operation surface the action handlers call.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wolframgate/internal/cache"
	"wolframgate/internal/convo"
	"wolframgate/internal/format"
	"wolframgate/internal/wolfram"
	"wolframgate/pkg/logging/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyInput rejects blank queries before any outbound call is made. The
// query text usually comes from a language-model extraction the gateway
// cannot verify, so garbage has to fail here rather than be forwarded.
var ErrEmptyInput = errors.New("knowledge: empty input")

// Snapshot of the effective configuration exposed via diagnostics.
type ConfigSnapshot struct {
	Units      string `json:"units"`
	Location   string `json:"location"`
	MaxResults int    `json:"max_results"`
}

// Diagnostics is the observability view over the service's mutable state.
type Diagnostics struct {
	InstanceID          string         `json:"instance_id"`
	CacheSize           int            `json:"cache_size"`
	ActiveConversations int            `json:"active_conversations"`
	Config              ConfigSnapshot `json:"config"`
}

// Options tune the service; zero values fall back to defaults.
type Options struct {
	CacheTTL   time.Duration
	Units      string
	Location   string
	MaxResults int
}

// Service owns the per-operation typed caches (one shared store, one shared
// TTL/eviction policy) and the conversation tracker. Construct it once and
// pass it by reference; there is no global registry.
type Service struct {
	client  wolfram.Client
	store   cache.Store
	tracker *convo.Tracker

	answers *cache.Typed[string]
	queries *cache.Typed[*wolfram.QueryResult]
	steps   *cache.Typed[[]string]
	facts   *cache.Typed[[]format.Fact]
	stats   *cache.Typed[map[string][]string]

	units      string
	location   string
	maxResults int

	instanceID string
	logger     *zap.Logger
}

func New(client wolfram.Client, store cache.Store, tracker *convo.Tracker, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = convo.NewTracker()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	return &Service{
		client:     client,
		store:      store,
		tracker:    tracker,
		answers:    cache.NewTyped[string](store, ttl),
		queries:    cache.NewTyped[*wolfram.QueryResult](store, ttl),
		steps:      cache.NewTyped[[]string](store, ttl),
		facts:      cache.NewTyped[[]format.Fact](store, ttl),
		stats:      cache.NewTyped[map[string][]string](store, ttl),
		units:      opts.Units,
		location:   opts.Location,
		maxResults: maxResults,
		instanceID: uuid.NewString(),
		logger:     logger.Named("knowledge"),
	}
}

// validate rejects empty or whitespace-only input.
func validate(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	return trimmed, nil
}

// fullQuery is the shared cached full-query path. The raw QueryResult is
// memoized per (op, input, opts) so each extractor works from one fetch.
// Semantic no-result responses are returned as (nil, nil) and never cached.
func (s *Service) fullQuery(ctx context.Context, op, input string, opts *wolfram.QueryOptions) (*wolfram.QueryResult, error) {
	key, err := cache.BuildKey(op, input, opts)
	if err != nil {
		return nil, fmt.Errorf("knowledge: build cache key: %w", err)
	}

	if cached, ok, err := s.queries.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		// Cache is best-effort; log and treat as miss.
		logging.L(ctx).Warn("cache_get_error", zap.Error(err))
	}

	qr, err := s.client.Query(ctx, input, opts)
	if errors.Is(err, wolfram.ErrNoResult) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.queries.Set(ctx, key, qr); err != nil {
		logging.L(ctx).Warn("cache_set_error", zap.Error(err))
	}
	return qr, nil
}

// Ask answers a free-form query with the formatted multi-section text.
func (s *Service) Ask(ctx context.Context, query string) (string, error) {
	query, err := validate(query)
	if err != nil {
		return "", err
	}

	qr, err := s.fullQuery(ctx, "ask", query, nil)
	if err != nil {
		return "", err
	}
	if qr == nil {
		return format.NoResult, nil
	}
	return format.RenderText(qr), nil
}

// Solve answers an equation with the extracted solution text.
// "x + 3 = 7" and "solve x + 3 = 7" are the same equation.
func (s *Service) Solve(ctx context.Context, equation string) (string, error) {
	equation, err := validate(equation)
	if err != nil {
		return "", err
	}
	equation = strings.TrimSpace(strings.TrimPrefix(equation, "solve "))

	key, err := cache.BuildKey("solve", equation, nil)
	if err != nil {
		return "", fmt.Errorf("knowledge: build cache key: %w", err)
	}

	if cached, ok, err := s.answers.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		logging.L(ctx).Warn("cache_get_error", zap.Error(err))
	}

	qr, err := s.client.Query(ctx, "solve "+equation, nil)
	if errors.Is(err, wolfram.ErrNoResult) {
		return format.NoSolution, nil
	}
	if err != nil {
		return "", err
	}

	solution := format.Solution(qr)
	if solution == format.NoSolution {
		// A payload with pods but no solution pod is still a semantic miss.
		return solution, nil
	}

	if err := s.answers.Set(ctx, key, solution); err != nil {
		logging.L(ctx).Warn("cache_set_error", zap.Error(err))
	}
	return solution, nil
}

// Steps answers a problem with its step-by-step working.
func (s *Service) Steps(ctx context.Context, problem string) ([]string, error) {
	problem, err := validate(problem)
	if err != nil {
		return nil, err
	}

	opts := &wolfram.QueryOptions{PodState: "Step-by-step solution"}
	key, err := cache.BuildKey("steps", problem, opts)
	if err != nil {
		return nil, fmt.Errorf("knowledge: build cache key: %w", err)
	}

	if cached, ok, err := s.steps.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		logging.L(ctx).Warn("cache_get_error", zap.Error(err))
	}

	qr, err := s.client.Query(ctx, problem, opts)
	if errors.Is(err, wolfram.ErrNoResult) {
		return []string{format.NoResult}, nil
	}
	if err != nil {
		return nil, err
	}

	steps := format.Steps(qr)
	if len(steps) == 1 && steps[0] == format.NoResult {
		return steps, nil
	}

	if err := s.steps.Set(ctx, key, steps); err != nil {
		logging.L(ctx).Warn("cache_set_error", zap.Error(err))
	}
	return steps, nil
}

// Facts surfaces free-text facts about a topic, capped at the configured
// result count.
func (s *Service) Facts(ctx context.Context, topic string) ([]format.Fact, error) {
	topic, err := validate(topic)
	if err != nil {
		return nil, err
	}

	key, err := cache.BuildKey("facts", topic, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: build cache key: %w", err)
	}

	if cached, ok, err := s.facts.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		logging.L(ctx).Warn("cache_get_error", zap.Error(err))
	}

	qr, err := s.fullQuery(ctx, "facts-query", topic, nil)
	if err != nil {
		return nil, err
	}
	facts := format.Facts(qr)
	if len(facts) == 0 {
		return nil, nil
	}
	if len(facts) > s.maxResults {
		facts = facts[:s.maxResults]
	}

	if err := s.facts.Set(ctx, key, facts); err != nil {
		logging.L(ctx).Warn("cache_set_error", zap.Error(err))
	}
	return facts, nil
}

// Statistics maps each section of a dataset analysis to its text fragments.
func (s *Service) Statistics(ctx context.Context, dataset string) (map[string][]string, error) {
	dataset, err := validate(dataset)
	if err != nil {
		return nil, err
	}

	key, err := cache.BuildKey("stats", dataset, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: build cache key: %w", err)
	}

	if cached, ok, err := s.stats.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		logging.L(ctx).Warn("cache_get_error", zap.Error(err))
	}

	scanners := []string{"Statistics", "Data"}
	qr, err := s.client.Query(ctx, dataset, &wolfram.QueryOptions{Scanners: scanners})
	if errors.Is(err, wolfram.ErrNoResult) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	analysis := format.Statistics(qr)
	if len(analysis) == 0 {
		return analysis, nil
	}

	if err := s.stats.Set(ctx, key, analysis); err != nil {
		logging.L(ctx).Warn("cache_set_error", zap.Error(err))
	}
	return analysis, nil
}

// ShortAnswer returns the one-line plaintext answer.
func (s *Service) ShortAnswer(ctx context.Context, query string) (string, error) {
	return s.plainAnswer(ctx, "short", query, s.client.ShortAnswer)
}

// Spoken returns the speech-ready answer.
func (s *Service) Spoken(ctx context.Context, query string) (string, error) {
	return s.plainAnswer(ctx, "spoken", query, s.client.Spoken)
}

func (s *Service) plainAnswer(
	ctx context.Context,
	op, query string,
	call func(ctx context.Context, input string, opts *wolfram.QueryOptions) (string, error),
) (string, error) {
	query, err := validate(query)
	if err != nil {
		return "", err
	}

	key, err := cache.BuildKey(op, query, nil)
	if err != nil {
		return "", fmt.Errorf("knowledge: build cache key: %w", err)
	}

	if cached, ok, err := s.answers.Get(ctx, key); err == nil && ok {
		return cached, nil
	} else if err != nil {
		logging.L(ctx).Warn("cache_get_error", zap.Error(err))
	}

	answer, err := call(ctx, query, nil)
	if errors.Is(err, wolfram.ErrNoResult) {
		return format.NoResult, nil
	}
	if err != nil {
		return "", err
	}

	if err := s.answers.Set(ctx, key, answer); err != nil {
		logging.L(ctx).Warn("cache_set_error", zap.Error(err))
	}
	return answer, nil
}

// SimpleImage returns the rendered single-image answer. The bytes go through
// the store directly; a JSON round-trip would only inflate them.
func (s *Service) SimpleImage(ctx context.Context, query string) ([]byte, error) {
	query, err := validate(query)
	if err != nil {
		return nil, err
	}

	key, err := cache.BuildKey("simple", query, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: build cache key: %w", err)
	}

	if cached, ok, err := s.store.Get(ctx, key.String()); err == nil && ok {
		return cached, nil
	} else if err != nil {
		logging.L(ctx).Warn("cache_get_error", zap.Error(err))
	}

	img, err := s.client.Simple(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	if err := s.store.Set(ctx, key.String(), img, cache.DefaultTTL); err != nil {
		logging.L(ctx).Warn("cache_set_error", zap.Error(err))
	}
	return img, nil
}

// Converse runs one conversational turn for userID, continuing the user's
// remote thread when a handle exists. When the remote reports the thread
// expired, the handle is cleared and the call reissued exactly once without
// one. Conversational turns are stateful and never cached.
func (s *Service) Converse(ctx context.Context, userID, text string) (string, error) {
	text, err := validate(text)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("knowledge: user id is required")
	}

	handle, _ := s.tracker.Get(userID)

	res, err := s.client.Converse(ctx, text, handle)
	if errors.Is(err, wolfram.ErrConversationExpired) && handle != "" {
		s.logger.Info("conversation expired, restarting thread",
			zap.String("user_id", userID),
		)
		s.tracker.Clear(userID)
		res, err = s.client.Converse(ctx, text, "")
	}
	if errors.Is(err, wolfram.ErrNoResult) {
		return format.NoResult, nil
	}
	if err != nil {
		return "", err
	}

	if res.ConversationID != "" {
		s.tracker.Set(userID, res.ConversationID)
	}
	return res.Result, nil
}

// ClearConversation drops the stored handle for userID.
func (s *Service) ClearConversation(userID string) {
	s.tracker.Clear(userID)
}

// ClearAllConversations drops every stored handle.
func (s *Service) ClearAllConversations() {
	s.tracker.ClearAll()
}

// ClearCache empties the shared result cache.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Diagnostics reports cache size, conversation count, and the effective
// configuration snapshot.
func (s *Service) Diagnostics(ctx context.Context) Diagnostics {
	size, err := s.store.Len(ctx)
	if err != nil {
		s.logger.Warn("cache size unavailable", zap.Error(err))
		size = -1
	}
	return Diagnostics{
		InstanceID:          s.instanceID,
		CacheSize:           size,
		ActiveConversations: s.tracker.Len(),
		Config: ConfigSnapshot{
			Units:      s.units,
			Location:   s.location,
			MaxResults: s.maxResults,
		},
	}
}
