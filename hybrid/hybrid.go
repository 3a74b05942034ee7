// Package hybrid composes the shared-backend stores with their in-process
// fallbacks. Every operation prefers the shared implementation when one is
// configured and healthy; any backend failure routes to the structurally
// equivalent in-process store and tags the result's Origin so observability
// layers can detect degraded mode without callers branching on errors.
//
// The Layer handle is constructed once at process startup and injected into
// request handlers; there is no package-level singleton.
package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/luminoboard/statelayer/backend"
	"github.com/luminoboard/statelayer/config"
	"github.com/luminoboard/statelayer/limiter"
	"github.com/luminoboard/statelayer/limiter/memlimiter"
	"github.com/luminoboard/statelayer/limiter/redislimiter"
	"github.com/luminoboard/statelayer/metrics"
	"github.com/luminoboard/statelayer/metrics/memmetrics"
	"github.com/luminoboard/statelayer/metrics/redismetrics"
	"github.com/luminoboard/statelayer/sessionstore"
	"github.com/luminoboard/statelayer/sessionstore/memstore"
	"github.com/luminoboard/statelayer/sessionstore/redisstore"
)

// Origin tags where a result came from. It is the explicit outcome marker:
// OriginMemory means the process-local fallback served the call and
// correctness is per-instance rather than global.
type Origin int

const (
	OriginShared Origin = iota
	OriginMemory
)

func (o Origin) String() string {
	if o == OriginShared {
		return "shared"
	}
	return "memory"
}

// Provider yields the shared implementation of a store, connecting lazily.
// A nil Provider puts the wrapper in pure in-process mode.
type Provider[S any] func(ctx context.Context) (S, error)

// source caches the store built for the current backend client, rebuilding
// after a reconnect hands out a new client.
type source[S any] struct {
	mgr   *backend.Manager
	build func(*redis.Client) (S, error)

	mu     sync.Mutex
	client *redis.Client
	store  S
	built  bool
}

func (s *source[S]) get(ctx context.Context) (S, error) {
	var zero S
	client, err := s.mgr.Ensure(ctx)
	if err != nil {
		return zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.built || s.client != client {
		store, err := s.build(client)
		if err != nil {
			return zero, err
		}
		s.client = client
		s.store = store
		s.built = true
	}
	return s.store, nil
}

// Layer is the dependency-injected handle over the whole ephemeral-state
// subsystem.
type Layer struct {
	RateLimiter *RateLimiter
	Sessions    *Sessions
	Metrics     *Metrics

	mode       config.Mode
	backend    *backend.Manager
	thresholds *metrics.Thresholds
	log        *slog.Logger
}

// New wires the full layer from config. In shared mode the Redis connection
// is made lazily on first use; construction never dials.
func New(cfg *config.Config, log *slog.Logger) (*Layer, error) {
	if log == nil {
		log = slog.Default()
	}

	thresholds := metrics.NewThresholds()
	if cfg.ThresholdFile != "" {
		loaded, err := metrics.LoadThresholds(cfg.ThresholdFile)
		if err != nil {
			return nil, fmt.Errorf("hybrid: load thresholds: %w", err)
		}
		if err := loaded.Watch(cfg.ThresholdFile, log); err != nil {
			log.Warn("threshold hot-reload disabled", slog.String("error", err.Error()))
		}
		thresholds = loaded
	}

	memSessions, err := memstore.New()
	if err != nil {
		return nil, fmt.Errorf("hybrid: build session fallback: %w", err)
	}

	l := &Layer{
		mode:       cfg.Mode(),
		thresholds: thresholds,
		log:        log,
	}

	memLimiter := memlimiter.New()
	memMetrics := memmetrics.New(
		memmetrics.WithMaxPoints(cfg.MaxPointsPerMetric),
		memmetrics.WithRetention(cfg.MetricRetention),
		memmetrics.WithAlertCap(cfg.MemoryAlertCap),
		memmetrics.WithAlertRetention(cfg.AlertRetention),
		memmetrics.WithThresholds(thresholds),
	)

	var limiterProvider Provider[limiter.Store]
	var sessionProvider Provider[sessionstore.Store]
	var metricsProvider Provider[metrics.Store]

	if l.mode == config.ModeShared {
		l.backend = backend.New(cfg, log)

		limiterSrc := &source[limiter.Store]{
			mgr: l.backend,
			build: func(client *redis.Client) (limiter.Store, error) {
				return redislimiter.New(redislimiter.Config{
					Client:    client,
					KeyPrefix: cfg.RedisKeyPrefix + "ratelimit:",
				})
			},
		}
		sessionSrc := &source[sessionstore.Store]{
			mgr: l.backend,
			build: func(client *redis.Client) (sessionstore.Store, error) {
				return redisstore.New(redisstore.Config{
					Client:    client,
					KeyPrefix: cfg.RedisKeyPrefix + "sessions:",
					Logger:    log,
				})
			},
		}
		metricsSrc := &source[metrics.Store]{
			mgr: l.backend,
			build: func(client *redis.Client) (metrics.Store, error) {
				return redismetrics.New(redismetrics.Config{
					Client:         client,
					KeyPrefix:      cfg.RedisKeyPrefix + "metrics:",
					MaxPoints:      cfg.MaxPointsPerMetric,
					Retention:      cfg.MetricRetention,
					AlertCap:       cfg.AlertCap,
					AlertRetention: cfg.AlertRetention,
					Thresholds:     thresholds,
					Logger:         log,
				})
			},
		}
		limiterProvider = limiterSrc.get
		sessionProvider = sessionSrc.get
		metricsProvider = metricsSrc.get
	}

	l.RateLimiter = NewRateLimiter(limiterProvider, memLimiter, log)
	l.Sessions = NewSessions(sessionProvider, memSessions, log)
	l.Metrics = NewMetrics(metricsProvider, memMetrics, log)
	return l, nil
}

// Mode reports whether the layer prefers the shared backend.
func (l *Layer) Mode() config.Mode { return l.mode }

// BackendState exposes the connection manager's state for observability.
// In-process mode always reports disconnected.
func (l *Layer) BackendState() backend.State {
	if l.backend == nil {
		return backend.StateDisconnected
	}
	return l.backend.State()
}

// Close shuts down the fallbacks, the threshold watcher, and the backend
// connection.
func (l *Layer) Close() error {
	var firstErr error
	for _, c := range []func() error{
		l.RateLimiter.close,
		l.Sessions.close,
		l.Metrics.close,
		l.thresholds.Close,
	} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if l.backend != nil {
		if err := l.backend.Disconnect(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
