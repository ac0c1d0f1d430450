package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// APIToken is the bearer credential for the gateway API.
	APIToken string `koanf:"api_token" validate:"required"`

	// AccountID scopes every API call to one account.
	AccountID string `koanf:"account_id" validate:"required"`

	// Source is the path of the local blocklist file, one hostname per
	// line, '#' comments ignored.
	Source string `koanf:"source" validate:"required"`

	// ListPrefix is the fixed prefix of managed list names; the
	// zero-padded slot number is appended to it.
	ListPrefix string `koanf:"list_prefix" validate:"required"`

	// RuleName is the exact name of the single managed block rule.
	RuleName string `koanf:"rule_name" validate:"required"`

	// RuleDescription is set on the managed rule.
	RuleDescription string `koanf:"rule_description"`

	// RulePrecedence orders the managed rule among the account's rules.
	RulePrecedence int `koanf:"rule_precedence" validate:"required,gte=1"`

	// Capacity is the maximum number of members per list; the platform
	// caps lists at 1000 entries.
	Capacity int `koanf:"capacity" validate:"required,gte=1,lte=1000"`

	// MaxSlots is the fixed slot budget under the stable-slots policy.
	MaxSlots int `koanf:"max_slots" validate:"required,gte=1,lte=100"`

	// Policy picks the partitioning strategy: "stable-slots" keeps a
	// fixed set of list resources alive, "exact-resize" tracks the
	// domain count and deletes surplus lists.
	Policy string `koanf:"policy" validate:"required,oneof=stable-slots exact-resize"`

	// Concurrency bounds parallel per-slot API operations.
	Concurrency int `koanf:"concurrency" validate:"required,gte=1,lte=16"`

	// RequestTimeoutSeconds bounds each API call including retries.
	RequestTimeoutSeconds int `koanf:"request_timeout_seconds" validate:"required,gte=1"`

	// Retries is the per-call retry budget for transient failures.
	Retries int `koanf:"retries" validate:"gte=0,lte=10"`

	// RateLimitRPS paces API calls; the platform rate-limits accounts.
	RateLimitRPS float64 `koanf:"rate_limit_rps" validate:"required,gt=0"`

	// SettleSeconds is the grace period between teardown and re-apply
	// during a reset, tolerating the platform's eventual consistency.
	SettleSeconds int `koanf:"settle_seconds" validate:"gte=0"`

	// SnapshotPath is the local bbolt file recording pushed membership
	// hashes. Empty disables the snapshot fast path.
	SnapshotPath string `koanf:"snapshot_path"`

	// Resolver is the gateway DNS endpoint (ip:port) probed by the
	// verify command.
	Resolver string `koanf:"resolver" validate:"omitempty,hostname_port"`

	// VerifySamples is how many blocked domains the verify command probes.
	VerifySamples int `koanf:"verify_samples" validate:"gte=1,lte=1000"`

	// DebounceSeconds is how long the watch command waits for the
	// source file to settle before re-applying.
	DebounceSeconds int `koanf:"debounce_seconds" validate:"gte=1"`

	// BaseURL overrides the API endpoint; useful for testing.
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`

	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
}

// DEFAULT_APP_CONFIG defines the default settings: capacity and slot
// budget match the platform's list limits, pacing stays under the
// documented account rate limit, and the managed names are safe to use
// as-is.
var DEFAULT_APP_CONFIG = AppConfig{
	ListPrefix:            "blocksync-",
	RuleName:              "Blocksync Blocklist",
	RuleDescription:       "Managed by blocksync. Changes are overwritten on the next pass.",
	RulePrecedence:        1000,
	Capacity:              1000,
	MaxSlots:              15,
	Policy:                "stable-slots",
	Concurrency:           3,
	RequestTimeoutSeconds: 10,
	Retries:               3,
	RateLimitRPS:          4,
	SettleSeconds:         60,
	VerifySamples:         10,
	DebounceSeconds:       2,
	Env:                   "prod",
	LogLevel:              "info",
}

// envLoader loads environment variables with the prefix "BLOCKSYNC_",
// lower-casing keys and removing the prefix. Swappable in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "BLOCKSYNC_",
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, "BLOCKSYNC_")), value
		},
	}), nil)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// RequestTimeout returns the per-call timeout as a duration.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// SettleDelay returns the reset grace period as a duration.
func (c *AppConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleSeconds) * time.Second
}

// Debounce returns the watch settle window as a duration.
func (c *AppConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceSeconds) * time.Second
}
