package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
	if cfg.RateLimitMax != 100 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("rate defaults = %d/%v, want 100/1m", cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	if cfg.MaxPointsPerMetric != 1000 || cfg.AlertCap != 100 || cfg.MemoryAlertCap != 50 {
		t.Errorf("caps = %d/%d/%d", cfg.MaxPointsPerMetric, cfg.AlertCap, cfg.MemoryAlertCap)
	}
	if cfg.MetricRetention != 168*time.Hour || cfg.AlertRetention != 720*time.Hour {
		t.Errorf("retention = %v/%v", cfg.MetricRetention, cfg.AlertRetention)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("RATE_LIMIT_MAX", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "production" || cfg.RedisAddr != "redis.internal:6379" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute || cfg.RateLimitMax != 10 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestModeDerivation(t *testing.T) {
	cases := []struct {
		name string
		env  string
		addr string
		want Mode
	}{
		{"no address", "production", "", ModeInProcess},
		{"address in production", "production", "localhost:6379", ModeShared},
		{"address in development", "development", "localhost:6379", ModeShared},
		{"test env never shared", "test", "localhost:6379", ModeInProcess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{Env: tc.env, RedisAddr: tc.addr}
			if got := cfg.Mode(); got != tc.want {
				t.Errorf("Mode() = %v, want %v", got, tc.want)
			}
		})
	}
}
