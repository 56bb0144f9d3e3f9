package wolfram

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Per-request timeout bounds. Values outside the window are clamped, not
// rejected, so a sloppy env value cannot hang or starve a request.
const (
	minTimeout = 1 * time.Second
	maxTimeout = 30 * time.Second
)

type Config struct {
	//required fields
	AppID string

	APIBase      string // standard sub-APIs (default: https://api.wolframalpha.com)
	ConverseBase string // conversational sub-API (default: same host)

	Timeout     time.Duration // per-request timeout, clamped to [1s, 30s]
	MaxRetries  int           // extra attempts after the first (default: 2)
	BaseBackoff time.Duration // initial backoff, doubled per attempt (default: 100ms)

	// Defaults merged under per-call overrides.
	Units    string
	Location string
	Scanners []string
	MaxChars int

	// Optional connection pool settings
	MaxIdleConns        int // default: 100
	MaxIdleConnsPerHost int // default: 100

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// Validate checks required fields only.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return errors.New("AppID is required")
	}
	if c.APIBase == "" {
		return errors.New("APIBase is required")
	}
	return nil
}

// WithDefaults returns a copy of Config with sane defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	// Normalize base URLs: trim trailing slashes so we can safely append paths.
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.ConverseBase = strings.TrimRight(cfg.ConverseBase, "/")

	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.wolframalpha.com"
	}
	if cfg.ConverseBase == "" {
		cfg.ConverseBase = cfg.APIBase
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Timeout < minTimeout {
		cfg.Timeout = minTimeout
	}
	if cfg.Timeout > maxTimeout {
		cfg.Timeout = maxTimeout
	}

	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 100 * time.Millisecond
	}
	if cfg.Units == "" {
		cfg.Units = "metric"
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 100
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 100
	}

	return cfg
}

type client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Wolfram|Alpha client with the given configuration.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	// Apply defaults + normalize base URLs
	cfg = cfg.WithDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Use provided logger or no-op
	if logger == nil {
		logger = zap.NewNop()
	}

	// Use custom HTTP client if provided, otherwise create default
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("wolfram"),
	}, nil
}

// defaultTransport creates a production-ready HTTP transport
// with connection pooling and reasonable timeouts.
func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Close releases resources held by the client.
func (c *client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
