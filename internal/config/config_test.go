package config

import (
	"strings"
	"testing"
	"time"
)

func setCredential(t *testing.T) {
	t.Helper()
	t.Setenv("WOLFRAM_APP_ID", "test-appid")
}

func TestLoadDefaults(t *testing.T) {
	setCredential(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AppID != "test-appid" {
		t.Fatalf("unexpected credential: %q", cfg.AppID)
	}
	if cfg.Port != "8080" || cfg.CacheBackend != "memory" {
		t.Fatalf("unexpected server defaults: %#v", cfg)
	}
	if cfg.Units != "metric" || cfg.Output != "json" {
		t.Fatalf("unexpected remote defaults: %#v", cfg)
	}
	if cfg.MaxResults != 3 || cfg.CacheCap != 200 {
		t.Fatalf("unexpected caps: %#v", cfg)
	}
	if cfg.CacheTTL != time.Hour {
		t.Fatalf("expected default TTL of one hour, got %v", cfg.CacheTTL)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Fatalf("expected default timeout 10s, got %v", cfg.Timeout())
	}
}

func TestLoadCredentialAlias(t *testing.T) {
	t.Setenv("WOLFRAM_APP_ID", "")
	t.Setenv("WOLFRAM_API_KEY", "alias-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppID != "alias-key" {
		t.Fatalf("alias env var must be accepted, got %q", cfg.AppID)
	}
}

func TestLoadMissingCredential(t *testing.T) {
	t.Setenv("WOLFRAM_APP_ID", "")
	t.Setenv("WOLFRAM_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected hard failure without credential")
	}
}

func TestLoadRejectsBadEnums(t *testing.T) {
	setCredential(t)

	cases := map[string]string{
		"WOLFRAM_UNITS":  "furlongs",
		"WOLFRAM_OUTPUT": "xml",
		"CACHE_BACKEND":  "disk",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := Load()
			if err == nil {
				t.Fatalf("expected validation error for %s=%s", key, val)
			}
			if !strings.Contains(err.Error(), val) {
				t.Fatalf("error should name the bad value, got %v", err)
			}
		})
	}
}

func TestLoadScannersList(t *testing.T) {
	setCredential(t)
	t.Setenv("WOLFRAM_SCANNERS", "Solve, Statistics , ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Scanners) != 2 || cfg.Scanners[0] != "Solve" || cfg.Scanners[1] != "Statistics" {
		t.Fatalf("unexpected scanner list: %#v", cfg.Scanners)
	}
}

func TestLoadRejectsNonNumeric(t *testing.T) {
	setCredential(t)
	t.Setenv("WOLFRAM_MAX_RESULTS", "lots")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric setting")
	}
}
