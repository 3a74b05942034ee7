package hybrid

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luminoboard/statelayer/metrics"
)

// Metrics is the degradation-aware metrics and alert store handed to
// application code. Metrics failures are invisible to end users; tracking
// degrades to process-local storage rather than surfacing errors.
type Metrics struct {
	shared   Provider[metrics.Store]
	fallback metrics.Store
	log      *slog.Logger
}

func NewMetrics(shared Provider[metrics.Store], fallback metrics.Store, log *slog.Logger) *Metrics {
	if log == nil {
		log = slog.Default()
	}
	return &Metrics{shared: shared, fallback: fallback, log: log}
}

func (m *Metrics) sharedStore(ctx context.Context, op string) (metrics.Store, bool) {
	if m.shared == nil {
		return nil, false
	}
	st, err := m.shared(ctx)
	if err != nil {
		warnFallback(ctx, m.log, op, err)
		return nil, false
	}
	return st, true
}

func (m *Metrics) Track(ctx context.Context, name string, value float64, tags map[string]string) (Origin, error) {
	if st, ok := m.sharedStore(ctx, "metric track"); ok {
		err := st.Track(ctx, name, value, tags)
		if err == nil {
			return OriginShared, nil
		}
		warnFallback(ctx, m.log, "metric track", err)
	}
	if err := m.fallback.Track(ctx, name, value, tags); err != nil {
		return OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return OriginMemory, nil
}

func (m *Metrics) History(ctx context.Context, name string, hours int) ([]metrics.Point, Origin, error) {
	if st, ok := m.sharedStore(ctx, "metric history"); ok {
		points, err := st.History(ctx, name, hours)
		if err == nil {
			return points, OriginShared, nil
		}
		warnFallback(ctx, m.log, "metric history", err)
	}
	points, err := m.fallback.History(ctx, name, hours)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return points, OriginMemory, nil
}

func (m *Metrics) Summaries(ctx context.Context) (map[string]metrics.Summary, Origin, error) {
	if st, ok := m.sharedStore(ctx, "metric summaries"); ok {
		sums, err := st.Summaries(ctx)
		if err == nil {
			return sums, OriginShared, nil
		}
		warnFallback(ctx, m.log, "metric summaries", err)
	}
	sums, err := m.fallback.Summaries(ctx)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return sums, OriginMemory, nil
}

func (m *Metrics) AddAlert(ctx context.Context, typ, message string, metadata map[string]any) (*metrics.Alert, Origin, error) {
	if st, ok := m.sharedStore(ctx, "alert add"); ok {
		alert, err := st.AddAlert(ctx, typ, message, metadata)
		if err == nil {
			return alert, OriginShared, nil
		}
		warnFallback(ctx, m.log, "alert add", err)
	}
	alert, err := m.fallback.AddAlert(ctx, typ, message, metadata)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return alert, OriginMemory, nil
}

func (m *Metrics) ActiveAlerts(ctx context.Context) ([]metrics.Alert, Origin, error) {
	if st, ok := m.sharedStore(ctx, "alert list"); ok {
		alerts, err := st.ActiveAlerts(ctx)
		if err == nil {
			return alerts, OriginShared, nil
		}
		warnFallback(ctx, m.log, "alert list", err)
	}
	alerts, err := m.fallback.ActiveAlerts(ctx)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return alerts, OriginMemory, nil
}

func (m *Metrics) AllAlerts(ctx context.Context) ([]metrics.Alert, Origin, error) {
	if st, ok := m.sharedStore(ctx, "alert list all"); ok {
		alerts, err := st.AllAlerts(ctx)
		if err == nil {
			return alerts, OriginShared, nil
		}
		warnFallback(ctx, m.log, "alert list all", err)
	}
	alerts, err := m.fallback.AllAlerts(ctx)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return alerts, OriginMemory, nil
}

func (m *Metrics) Acknowledge(ctx context.Context, id string) (bool, Origin, error) {
	if st, ok := m.sharedStore(ctx, "alert acknowledge"); ok {
		acked, err := st.Acknowledge(ctx, id)
		if err == nil {
			return acked, OriginShared, nil
		}
		warnFallback(ctx, m.log, "alert acknowledge", err)
	}
	acked, err := m.fallback.Acknowledge(ctx, id)
	if err != nil {
		return false, OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return acked, OriginMemory, nil
}

func (m *Metrics) Clear(ctx context.Context) (Origin, error) {
	if st, ok := m.sharedStore(ctx, "metric clear"); ok {
		err := st.Clear(ctx)
		if err == nil {
			return OriginShared, nil
		}
		warnFallback(ctx, m.log, "metric clear", err)
	}
	if err := m.fallback.Clear(ctx); err != nil {
		return OriginMemory, fmt.Errorf("hybrid: metrics fallback: %w", err)
	}
	return OriginMemory, nil
}

func (m *Metrics) close() error { return m.fallback.Close() }
