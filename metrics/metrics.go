// Package metrics defines bounded time-series metric storage and
// threshold-based alert generation, shared by the Redis and in-memory
// implementations. Each metric keeps its most recent points in an ordered
// collection capped by rank; alerts live in a single capped log and are
// immutable except for the acknowledged flag.
package metrics

import (
	"context"
	"time"
)

// Point is a single metric sample.
type Point struct {
	Name  string            `json:"name"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
	At    time.Time         `json:"at"`

	// Nonce disambiguates points with identical name/value/timestamp when
	// stored as sorted-set members.
	Nonce string `json:"nonce,omitempty"`
}

// Severity of an alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertTypeThreshold marks alerts generated by the static threshold table.
const AlertTypeThreshold = "threshold"

// Alert is a generated or explicitly added alert. Acknowledge is the only
// mutation an alert ever receives.
type Alert struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	At             time.Time      `json:"at"`
	Acknowledged   bool           `json:"acknowledged"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
}

// Summary aggregates one metric's bounded history.
type Summary struct {
	Count   int     `json:"count"`
	Latest  float64 `json:"latest"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	// Recent holds the 10 most recent points, newest first.
	Recent []Point `json:"recent"`
}

// Store is the metrics and alert contract implemented by redismetrics and
// memmetrics.
type Store interface {
	// Track appends a sample, prunes the metric's collection to its cap
	// and retention, and generates a threshold alert when the value
	// breaches the static table. Every offending sample alerts; repeated
	// breaches are not deduplicated.
	Track(ctx context.Context, name string, value float64, tags map[string]string) error

	// History returns points recorded within the trailing number of
	// hours, oldest first.
	History(ctx context.Context, name string, hours int) ([]Point, error)

	// Summaries computes per-metric aggregates over each bounded
	// collection. Malformed stored points are skipped.
	Summaries(ctx context.Context) (map[string]Summary, error)

	// AddAlert records an explicit alert and returns it.
	AddAlert(ctx context.Context, typ, message string, metadata map[string]any) (*Alert, error)

	// ActiveAlerts lists unacknowledged alerts, newest first.
	ActiveAlerts(ctx context.Context) ([]Alert, error)

	// AllAlerts lists every retained alert, acknowledged or not, newest
	// first.
	AllAlerts(ctx context.Context) ([]Alert, error)

	// Acknowledge flips the acknowledged flag. Returns false when the id
	// is unknown or already acknowledged.
	Acknowledge(ctx context.Context, id string) (bool, error)

	// Clear removes all metrics and alerts.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Summarize computes a Summary over points ordered oldest first.
func Summarize(points []Point) Summary {
	s := Summary{Count: len(points)}
	if len(points) == 0 {
		return s
	}
	s.Min = points[0].Value
	s.Max = points[0].Value
	var sum float64
	for _, p := range points {
		sum += p.Value
		if p.Value < s.Min {
			s.Min = p.Value
		}
		if p.Value > s.Max {
			s.Max = p.Value
		}
	}
	s.Latest = points[len(points)-1].Value
	s.Average = sum / float64(len(points))

	n := 10
	if len(points) < n {
		n = len(points)
	}
	recent := make([]Point, 0, n)
	for i := len(points) - 1; i >= len(points)-n; i-- {
		recent = append(recent, points[i])
	}
	s.Recent = recent
	return s
}
