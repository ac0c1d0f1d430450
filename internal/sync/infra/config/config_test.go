package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
)

// setRequired sets the env vars without defaults so Load can pass.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BLOCKSYNC_API_TOKEN", "test-token")
	t.Setenv("BLOCKSYNC_ACCOUNT_ID", "abc123")
	t.Setenv("BLOCKSYNC_SOURCE", "/var/lib/blocksync/domains.txt")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.ListPrefix != "blocksync-" {
		t.Errorf("expected ListPrefix=blocksync-, got %q", cfg.ListPrefix)
	}
	if cfg.Capacity != 1000 {
		t.Errorf("expected Capacity=1000, got %d", cfg.Capacity)
	}
	if cfg.MaxSlots != 15 {
		t.Errorf("expected MaxSlots=15, got %d", cfg.MaxSlots)
	}
	if cfg.Policy != "stable-slots" {
		t.Errorf("expected Policy=stable-slots, got %q", cfg.Policy)
	}
	if cfg.Env != "prod" || cfg.LogLevel != "info" {
		t.Errorf("unexpected env/log defaults: %q/%q", cfg.Env, cfg.LogLevel)
	}
	if cfg.RequestTimeout() != 10*time.Second {
		t.Errorf("expected 10s request timeout, got %v", cfg.RequestTimeout())
	}
	if cfg.SettleDelay() != 60*time.Second {
		t.Errorf("expected 60s settle delay, got %v", cfg.SettleDelay())
	}
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("BLOCKSYNC_API_TOKEN", "")
	t.Setenv("BLOCKSYNC_ACCOUNT_ID", "")
	t.Setenv("BLOCKSYNC_SOURCE", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when credentials are missing, got nil")
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BLOCKSYNC_POLICY", "exact-resize")
	t.Setenv("BLOCKSYNC_MAX_SLOTS", "30")
	t.Setenv("BLOCKSYNC_CONCURRENCY", "8")
	t.Setenv("BLOCKSYNC_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Policy != "exact-resize" {
		t.Errorf("expected Policy=exact-resize, got %q", cfg.Policy)
	}
	if cfg.MaxSlots != 30 {
		t.Errorf("expected MaxSlots=30, got %d", cfg.MaxSlots)
	}
	if cfg.Concurrency != 8 {
		t.Errorf("expected Concurrency=8, got %d", cfg.Concurrency)
	}
	if cfg.RateLimitRPS != 2.5 {
		t.Errorf("expected RateLimitRPS=2.5, got %v", cfg.RateLimitRPS)
	}
}

func TestLoad_WhenKoanfLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error {
		return errors.New("mocked error")
	}
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatal("expected error when loading env, got nil")
	}
}

func TestLoad_InvalidPolicy(t *testing.T) {
	setRequired(t)
	t.Setenv("BLOCKSYNC_POLICY", "yolo")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid BLOCKSYNC_POLICY, got nil")
	}
}

func TestLoad_CapacityOverPlatformLimit(t *testing.T) {
	setRequired(t)
	t.Setenv("BLOCKSYNC_CAPACITY", "1500")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for capacity above the platform limit, got nil")
	}
}

func TestLoad_InvalidResolver(t *testing.T) {
	setRequired(t)
	t.Setenv("BLOCKSYNC_RESOLVER", "not-an-endpoint")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid BLOCKSYNC_RESOLVER, got nil")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	setRequired(t)
	t.Setenv("BLOCKSYNC_LOG_LEVEL", "trace")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL, got nil")
	}
}
