// Package memmetrics is the process-local metrics.Store used when the shared
// backend is unavailable or not configured. It mirrors the Redis behavior
// over per-metric slices with a smaller alert cap; retention is enforced
// lazily on write and read, with no background sweep.
package memmetrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luminoboard/statelayer/metrics"
)

// Store implements metrics.Store in memory.
type Store struct {
	mu     sync.Mutex
	series map[string][]metrics.Point
	alerts []metrics.Alert

	maxPoints      int
	retention      time.Duration
	alertCap       int
	alertRetention time.Duration
	thresholds     *metrics.Thresholds
}

// Option configures the Store.
type Option func(*Store)

// WithMaxPoints caps each metric's series by rank.
func WithMaxPoints(n int) Option {
	return func(s *Store) { s.maxPoints = n }
}

// WithRetention sets the sliding horizon for metric points.
func WithRetention(d time.Duration) Option {
	return func(s *Store) { s.retention = d }
}

// WithAlertCap caps the alert log. The in-process default is 50, half the
// shared store's cap.
func WithAlertCap(n int) Option {
	return func(s *Store) { s.alertCap = n }
}

// WithAlertRetention sets the sliding horizon for alerts.
func WithAlertRetention(d time.Duration) Option {
	return func(s *Store) { s.alertRetention = d }
}

// WithThresholds replaces the built-in alerting table.
func WithThresholds(t *metrics.Thresholds) Option {
	return func(s *Store) { s.thresholds = t }
}

func New(opts ...Option) *Store {
	s := &Store{
		series:         make(map[string][]metrics.Point),
		maxPoints:      1000,
		retention:      7 * 24 * time.Hour,
		alertCap:       50,
		alertRetention: 30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.thresholds == nil {
		s.thresholds = metrics.NewThresholds()
	}
	return s
}

func (s *Store) Track(ctx context.Context, name string, value float64, tags map[string]string) error {
	now := time.Now()
	point := metrics.Point{
		Name:  name,
		Value: value,
		Tags:  tags,
		At:    now,
		Nonce: uuid.NewString(),
	}

	s.mu.Lock()
	pts := append(s.series[name], point)
	pts = prunePoints(pts, now.Add(-s.retention))
	if len(pts) > s.maxPoints {
		pts = append(pts[:0:0], pts[len(pts)-s.maxPoints:]...)
	}
	s.series[name] = pts
	s.mu.Unlock()

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
		s.appendAlert(alert)
	}
	return nil
}

func (s *Store) History(ctx context.Context, name string, hours int) ([]metrics.Point, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []metrics.Point
	for _, p := range s.series[name] {
		if !p.At.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) Summaries(ctx context.Context) (map[string]metrics.Summary, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]metrics.Summary, len(s.series))
	for name, pts := range s.series {
		live := prunePoints(pts, now.Add(-s.retention))
		s.series[name] = live
		out[name] = metrics.Summarize(live)
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
	s.appendAlert(alert)
	return &alert, nil
}

func (s *Store) ActiveAlerts(ctx context.Context) ([]metrics.Alert, error) {
	return s.listAlerts(false), nil
}

func (s *Store) AllAlerts(ctx context.Context) ([]metrics.Alert, error) {
	return s.listAlerts(true), nil
}

func (s *Store) Acknowledge(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		if s.alerts[i].Acknowledged {
			return false, nil
		}
		now := time.Now()
		s.alerts[i].Acknowledged = true
		s.alerts[i].AcknowledgedAt = &now
		return true, nil
	}
	return false, nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.series = make(map[string][]metrics.Point)
	s.alerts = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) appendAlert(alert metrics.Alert) {
	cutoff := time.Now().Add(-s.alertRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := append(s.alerts, alert)
	keep := 0
	for keep < len(alerts) && alerts[keep].At.Before(cutoff) {
		keep++
	}
	alerts = alerts[keep:]
	if len(alerts) > s.alertCap {
		alerts = append(alerts[:0:0], alerts[len(alerts)-s.alertCap:]...)
	}
	s.alerts = alerts
}

// listAlerts returns alerts newest first, pruning retention lazily.
func (s *Store) listAlerts(includeAcknowledged bool) []metrics.Alert {
	cutoff := time.Now().Add(-s.alertRetention)

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []metrics.Alert
	for _, a := range s.alerts {
		if a.At.Before(cutoff) {
			continue
		}
		if !includeAcknowledged && a.Acknowledged {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out
}

// prunePoints drops points older than the cutoff. Points are appended in
// time order.
func prunePoints(pts []metrics.Point, cutoff time.Time) []metrics.Point {
	keep := 0
	for keep < len(pts) && pts[keep].At.Before(cutoff) {
		keep++
	}
	if keep == 0 {
		return pts
	}
	return append(pts[:0:0], pts[keep:]...)
}
