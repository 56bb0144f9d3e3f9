// Package config resolves the gateway configuration from the environment
// once at startup. The resolved value is immutable for the process lifetime.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	// Server
	Port         string
	Version      string
	CacheBackend string // "memory" or "redis"
	RedisAddr    string
	CacheTTL     time.Duration
	CacheCap     int

	// Remote service
	AppID          string
	APIBase        string
	ConverseBase   string
	Output         string
	TimeoutSeconds int
	Units          string
	Location       string
	Scanners       []string
	MaxResults     int
}

// Load reads every setting from the environment and validates it.
// A missing credential or an invalid enum is a hard startup failure.
func Load() (Config, error) {
	cfg := Config{
		Port:         getenv("PORT", "8080"),
		Version:      getenv("GATEWAY_VERSION", "v1"),
		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),

		AppID:        credential(),
		APIBase:      getenv("WOLFRAM_API_URL", "https://api.wolframalpha.com"),
		ConverseBase: getenv("WOLFRAM_CONVERSE_API_URL", ""),
		Output:       getenv("WOLFRAM_OUTPUT", "json"),
		Units:        getenv("WOLFRAM_UNITS", "metric"),
		Location:     os.Getenv("WOLFRAM_LOCATION"),
	}

	cfg.Scanners = splitList(os.Getenv("WOLFRAM_SCANNERS"))

	var err error
	if cfg.TimeoutSeconds, err = getint("WOLFRAM_TIMEOUT_SECONDS", 10); err != nil {
		return Config{}, err
	}
	if cfg.MaxResults, err = getint("WOLFRAM_MAX_RESULTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.CacheCap, err = getint("CACHE_CAPACITY", 200); err != nil {
		return Config{}, err
	}

	ttlSeconds, err := getint("CACHE_TTL_SECONDS", 3600)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL = time.Duration(ttlSeconds) * time.Second

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces required fields and enum ranges. The request timeout is
// clamped elsewhere, not rejected here.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return errors.New("config: WOLFRAM_APP_ID (or WOLFRAM_API_KEY) is required")
	}
	switch c.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	switch c.Output {
	case "json":
	default:
		return fmt.Errorf("config: unsupported WOLFRAM_OUTPUT %q", c.Output)
	}
	switch c.Units {
	case "metric", "imperial":
	default:
		return fmt.Errorf("config: unknown WOLFRAM_UNITS %q", c.Units)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("config: WOLFRAM_MAX_RESULTS must be positive, got %d", c.MaxResults)
	}
	if c.CacheCap <= 0 {
		return fmt.Errorf("config: CACHE_CAPACITY must be positive, got %d", c.CacheCap)
	}
	if c.CacheTTL <= 0 {
		return errors.New("config: CACHE_TTL_SECONDS must be positive")
	}
	return nil
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// credential resolves the required app credential. Two env names are
// accepted; WOLFRAM_APP_ID wins when both are set.
func credential() string {
	if v := os.Getenv("WOLFRAM_APP_ID"); v != "" {
		return v
	}
	return os.Getenv("WOLFRAM_API_KEY")
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q", key, v)
	}
	return n, nil
}

// splitList parses a comma-separated list, dropping empty elements.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
