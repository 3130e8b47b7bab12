// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat koanf keys so every scalar can be overridden from the environment.
// - Provide New(ctx) to build a Config with defaults.
// - Loading errors wrap ErrLoadConfig, validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabaseDriver is one of memory, sqlite or postgres.
	DatabaseDriver string `koanf:"database_driver"`

	// DatabaseDSN is passed to the gorm driver. Ignored for memory.
	DatabaseDSN string `koanf:"database_dsn"`

	// HeartbeatIntervalMS is the period of the resend heartbeat. Zero disables it.
	HeartbeatIntervalMS int `koanf:"heartbeat_interval_ms"`

	// ResendEveryTicks runs the resend sweep on every Nth heartbeat tick.
	ResendEveryTicks int `koanf:"resend_every_ticks"`

	// ResendBatchSize caps the comments re-dispatched per sweep.
	ResendBatchSize int `koanf:"resend_batch_size"`

	// ResendStaleAfterSec is how long a comment may wait for scores before it is resent.
	ResendStaleAfterSec int `koanf:"resend_stale_after_sec"`

	// QueueSize bounds each in-memory task queue.
	QueueSize int `koanf:"queue_size"`

	// DedupeSize sets the size of the webhook deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxAttempts is how many times a failed task is tried.
	MaxAttempts int `koanf:"max_attempts"`

	// RetryDelayMS is the pause before a failed task is re-enqueued.
	RetryDelayMS int `koanf:"retry_delay_ms"`

	// CallbackBaseURL is the public base proxies post scores back to.
	CallbackBaseURL string `koanf:"callback_base_url"`

	// ScorerTimeoutMS bounds one outbound scorer call.
	ScorerTimeoutMS int `koanf:"scorer_timeout_ms"`

	// ShimCacheSize caps the number of cached scorer shims.
	ShimCacheSize int `koanf:"shim_cache_size"`

	// Scorers are registered at startup.
	Scorers []ScorerConfig `koanf:"scorers"`

	// Rules are created at startup.
	Rules []RuleConfig `koanf:"rules"`

	// SummaryTags are tag keys included in a comment's summary score.
	SummaryTags []string `koanf:"summary_tags"`
}

// ScorerConfig seeds one scorer.
type ScorerConfig struct {
	Name         string   `koanf:"name"`
	EndpointType string   `koanf:"endpoint_type"`
	Endpoint     string   `koanf:"endpoint"`
	APIKey       string   `koanf:"api_key"`
	Attributes   []string `koanf:"attributes"`
	UserAgent    string   `koanf:"user_agent"`
	Inactive     bool     `koanf:"inactive"`
}

// RuleConfig seeds one moderation rule.
type RuleConfig struct {
	Tag        string  `koanf:"tag"`
	CategoryID string  `koanf:"category_id"`
	Lower      float64 `koanf:"lower"`
	Upper      float64 `koanf:"upper"`
	Action     string  `koanf:"action"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DatabaseDriver:      "memory",
		HeartbeatIntervalMS: 10_000,
		ResendEveryTicks:    6,
		ResendBatchSize:     100,
		ResendStaleAfterSec: 300,
		QueueSize:           10_000,
		DedupeSize:          100_000,
		MaxAttempts:         3,
		RetryDelayMS:        500,
		CallbackBaseURL:     "http://localhost:9080",
		ScorerTimeoutMS:     10_000,
		ShimCacheSize:       64,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DatabaseDriver != "memory" && c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres":
		return fmt.Errorf("%w: unknown database_driver %q", ErrInvalidConfig, c.DatabaseDriver)
	case c.DatabaseDriver != "memory" && c.DatabaseDSN == "":
		return fmt.Errorf("%w: database_dsn required for %s", ErrInvalidConfig, c.DatabaseDriver)
	case c.ResendEveryTicks <= 0:
		return fmt.Errorf("%w: resend_every_ticks must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	case c.HeartbeatIntervalMS < 0:
		return fmt.Errorf("%w: heartbeat_interval_ms must not be negative", ErrInvalidConfig)
	}
	for i, r := range c.Rules {
		if r.Tag == "" || r.Lower > r.Upper {
			return fmt.Errorf("%w: rules[%d] needs a tag and lower <= upper", ErrInvalidConfig, i)
		}
	}
	return nil
}

// HeartbeatInterval returns HeartbeatIntervalMS as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMS) * time.Millisecond
}

// ResendStaleAfter returns ResendStaleAfterSec as a duration.
func (c *Config) ResendStaleAfter() time.Duration {
	return time.Duration(c.ResendStaleAfterSec) * time.Second
}

// RetryDelay returns RetryDelayMS as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// ScorerTimeout returns ScorerTimeoutMS as a duration.
func (c *Config) ScorerTimeout() time.Duration {
	return time.Duration(c.ScorerTimeoutMS) * time.Millisecond
}
