// Package redismetrics implements metrics.Store on the shared Redis backend.
// Each metric is a sorted set scored by sample timestamp and trimmed by rank
// to its cap; alerts share a single capped sorted set. Retention is enforced
// by score-range pruning plus a key TTL safety net.
package redismetrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/luminoboard/statelayer/metrics"
)

// Config for the Redis-backed metrics store.
type Config struct {
	// Client is the shared Redis client.
	Client *redis.Client

	// KeyPrefix namespaces metric keys. Default: "state:metrics:".
	KeyPrefix string

	// MaxPoints caps each metric's collection by rank. Default: 1000.
	MaxPoints int

	// Retention is the sliding horizon for metric points. Default: 7 days.
	Retention time.Duration

	// AlertCap caps the alert log by rank. Default: 100.
	AlertCap int

	// AlertRetention is the sliding horizon for alerts. Default: 30 days.
	AlertRetention time.Duration

	// Thresholds is the alerting table. Defaults to the built-in table.
	Thresholds *metrics.Thresholds

	// Logger receives malformed-record reports. Defaults to slog.Default.
	Logger *slog.Logger
}

// Store implements metrics.Store using sorted sets.
type Store struct {
	client         *redis.Client
	keyPrefix      string
	maxPoints      int
	retention      time.Duration
	alertCap       int
	alertRetention time.Duration
	thresholds     *metrics.Thresholds
	log            *slog.Logger
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redismetrics: redis client is required")
	}
	s := &Store{
		client:         cfg.Client,
		keyPrefix:      cfg.KeyPrefix,
		maxPoints:      cfg.MaxPoints,
		retention:      cfg.Retention,
		alertCap:       cfg.AlertCap,
		alertRetention: cfg.AlertRetention,
		thresholds:     cfg.Thresholds,
		log:            cfg.Logger,
	}
	if s.keyPrefix == "" {
		s.keyPrefix = "state:metrics:"
	}
	if s.maxPoints <= 0 {
		s.maxPoints = 1000
	}
	if s.retention <= 0 {
		s.retention = 7 * 24 * time.Hour
	}
	if s.alertCap <= 0 {
		s.alertCap = 100
	}
	if s.alertRetention <= 0 {
		s.alertRetention = 30 * 24 * time.Hour
	}
	if s.thresholds == nil {
		s.thresholds = metrics.NewThresholds()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

func (s *Store) metricKey(name string) string { return s.keyPrefix + "metric:" + name }
func (s *Store) alertsKey() string            { return s.keyPrefix + "alerts" }

func (s *Store) Track(ctx context.Context, name string, value float64, tags map[string]string) error {
	now := time.Now()
	point := metrics.Point{
		Name:  name,
		Value: value,
		Tags:  tags,
		At:    now,
		Nonce: uuid.NewString(),
	}
	raw, err := json.Marshal(&point)
	if err != nil {
		return fmt.Errorf("redismetrics: marshal point %s: %w", name, err)
	}

	key := s.metricKey(name)
	cutoff := now.Add(-s.retention).UnixMilli()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: raw})
		p.ZRemRangeByRank(ctx, key, 0, int64(-(s.maxPoints + 1)))
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		p.PExpire(ctx, key, s.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redismetrics: track %s: %w", name, err)
	}

	if severity, th, breached := s.thresholds.Evaluate(name, value); breached {
		alert := metrics.Alert{
			ID:       uuid.NewString(),
			Type:     metrics.AlertTypeThreshold,
			Severity: severity,
			Message:  fmt.Sprintf("%s value %g exceeds threshold %g", name, value, th.Max),
			Metadata: map[string]any{
				"metric":    name,
				"value":     value,
				"threshold": th.Max,
			},
			At: now,
		}
		if err := s.storeAlert(ctx, &alert); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) History(ctx context.Context, name string, hours int) ([]metrics.Point, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()
	raws, err := s.client.ZRangeByScore(ctx, s.metricKey(name), &redis.ZRangeBy{
		Min: strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redismetrics: history %s: %w", name, err)
	}

	points := make([]metrics.Point, 0, len(raws))
	for _, raw := range raws {
		var p metrics.Point
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.log.Error("skipping malformed metric point",
				slog.String("metric", name), slog.String("error", err.Error()))
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

func (s *Store) Summaries(ctx context.Context) (map[string]metrics.Summary, error) {
	keys, err := s.scanKeys(ctx, s.keyPrefix+"metric:*")
	if err != nil {
		return nil, err
	}

	out := make(map[string]metrics.Summary, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, s.keyPrefix+"metric:")
		raws, err := s.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("redismetrics: read %s: %w", key, err)
		}
		points := make([]metrics.Point, 0, len(raws))
		for _, raw := range raws {
			var p metrics.Point
			if err := json.Unmarshal([]byte(raw), &p); err != nil {
				s.log.Error("skipping malformed metric point",
					slog.String("metric", name), slog.String("error", err.Error()))
				continue
			}
			points = append(points, p)
		}
		out[name] = metrics.Summarize(points)
	}
	return out, nil
}

func (s *Store) AddAlert(ctx context.Context, typ, message string, metadata map[string]any) (*metrics.Alert, error) {
	alert := metrics.Alert{
		ID:       uuid.NewString(),
		Type:     typ,
		Severity: metrics.SeverityWarning,
		Message:  message,
		Metadata: metadata,
		At:       time.Now(),
	}
	if err := s.storeAlert(ctx, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *Store) ActiveAlerts(ctx context.Context) ([]metrics.Alert, error) {
	alerts, err := s.AllAlerts(ctx)
	if err != nil {
		return nil, err
	}
	active := alerts[:0]
	for _, a := range alerts {
		if !a.Acknowledged {
			active = append(active, a)
		}
	}
	return active, nil
}

func (s *Store) AllAlerts(ctx context.Context) ([]metrics.Alert, error) {
	raws, err := s.client.ZRevRange(ctx, s.alertsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redismetrics: read alerts: %w", err)
	}
	alerts := make([]metrics.Alert, 0, len(raws))
	for _, raw := range raws {
		var a metrics.Alert
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			s.log.Error("skipping malformed alert", slog.String("error", err.Error()))
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// Acknowledge replaces the stored member with an acknowledged copy at the
// same score, the only mutation alerts ever receive.
func (s *Store) Acknowledge(ctx context.Context, id string) (bool, error) {
	zs, err := s.client.ZRangeWithScores(ctx, s.alertsKey(), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("redismetrics: read alerts: %w", err)
	}
	for _, z := range zs {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		var a metrics.Alert
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			s.log.Error("skipping malformed alert", slog.String("error", err.Error()))
			continue
		}
		if a.ID != id {
			continue
		}
		if a.Acknowledged {
			return false, nil
		}
		now := time.Now()
		a.Acknowledged = true
		a.AcknowledgedAt = &now
		updated, err := json.Marshal(&a)
		if err != nil {
			return false, fmt.Errorf("redismetrics: marshal alert %s: %w", id, err)
		}
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.ZRem(ctx, s.alertsKey(), raw)
			p.ZAdd(ctx, s.alertsKey(), redis.Z{Score: z.Score, Member: updated})
			return nil
		})
		if err != nil {
			return false, fmt.Errorf("redismetrics: acknowledge %s: %w", id, err)
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.scanKeys(ctx, s.keyPrefix+"*")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redismetrics: clear: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is owned by the backend manager.
func (s *Store) Close() error { return nil }

func (s *Store) storeAlert(ctx context.Context, alert *metrics.Alert) error {
	raw, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("redismetrics: marshal alert: %w", err)
	}
	key := s.alertsKey()
	cutoff := time.Now().Add(-s.alertRetention).UnixMilli()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(alert.At.UnixMilli()), Member: raw})
		p.ZRemRangeByRank(ctx, key, 0, int64(-(s.alertCap + 1)))
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		p.PExpire(ctx, key, s.alertRetention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redismetrics: store alert: %w", err)
	}
	return nil
}

func (s *Store) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redismetrics: scan %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

var _ metrics.Store = (*Store)(nil)
