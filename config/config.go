// Package config resolves the ephemeral-state layer's configuration from the
// environment exactly once at process startup. Hot-path code receives the
// resolved Config by injection and never re-reads environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Mode selects which backing implementation the hybrid stores prefer.
type Mode int

const (
	// ModeInProcess keeps all state in process-local memory.
	ModeInProcess Mode = iota
	// ModeShared uses the shared Redis backend with in-process fallback.
	ModeShared
)

func (m Mode) String() string {
	if m == ModeShared {
		return "shared"
	}
	return "in-process"
}

// Config is the full configuration surface of the state layer. Defaults are
// provided via envdecode struct tags.
type Config struct {
	// Env names the deployment environment. ENV: APP_ENV
	Env string `env:"APP_ENV,default=development"`

	// RedisAddr like "localhost:6379". Empty disables the shared backend.
	// ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR"`

	// RedisKeyPrefix namespaces every key written by this layer.
	// ENV: STATE_KEY_PREFIX
	RedisKeyPrefix string `env:"STATE_KEY_PREFIX,default=state:"`

	// DialTimeout and CommandTimeout bound backend I/O. Cancellation is
	// enforced only at the client layer; a timed-out command is treated as a
	// backend failure by the hybrid adapter.
	DialTimeout    time.Duration `env:"REDIS_DIAL_TIMEOUT,default=5s"`
	CommandTimeout time.Duration `env:"REDIS_COMMAND_TIMEOUT,default=2s"`

	// SessionTTL is the default session lifetime. ENV: SESSION_TTL
	SessionTTL time.Duration `env:"SESSION_TTL,default=24h"`

	// RateLimitMax and RateLimitWindow are the default admission parameters
	// applied when a caller does not supply its own.
	RateLimitMax    int           `env:"RATE_LIMIT_MAX,default=100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`

	// MaxPointsPerMetric caps each metric's time series by rank.
	MaxPointsPerMetric int `env:"METRIC_MAX_POINTS,default=1000"`
	// MetricRetention is the sliding retention horizon for metric points.
	MetricRetention time.Duration `env:"METRIC_RETENTION,default=168h"`

	// AlertCap bounds the shared alert log; MemoryAlertCap bounds the
	// in-process fallback's smaller log.
	AlertCap       int           `env:"ALERT_CAP,default=100"`
	MemoryAlertCap int           `env:"MEMORY_ALERT_CAP,default=50"`
	AlertRetention time.Duration `env:"ALERT_RETENTION,default=720h"`

	// ThresholdFile optionally points at a YAML file overriding the built-in
	// alert threshold table. ENV: ALERT_THRESHOLD_FILE
	ThresholdFile string `env:"ALERT_THRESHOLD_FILE"`
}

// Load resolves Config from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode environment: %w", err)
	}
	return &cfg, nil
}

// Mode derives the backend selection from the environment name and the
// presence of a Redis address. Test environments always run in-process so the
// suite never depends on external infrastructure.
func (c *Config) Mode() Mode {
	if c.RedisAddr == "" || c.Env == "test" {
		return ModeInProcess
	}
	return ModeShared
}
