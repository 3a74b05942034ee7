package memmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/luminoboard/statelayer/metrics"
	"github.com/luminoboard/statelayer/metrics/metricstest"
)

func TestMemoryMetrics(t *testing.T) {
	metricstest.RunMetricsTests(t, func(t *testing.T, capHint int) metrics.Store {
		return New(WithMaxPoints(capHint))
	})
}

func TestAlertCapEvictsOldest(t *testing.T) {
	s := New(WithAlertCap(5))
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if _, err := s.AddAlert(ctx, "deploy", "x", map[string]any{"n": i}); err != nil {
			t.Fatalf("AddAlert %d: %v", i, err)
		}
		// Distinct timestamps keep the newest-first ordering observable.
		time.Sleep(2 * time.Millisecond)
	}

	alerts, err := s.AllAlerts(ctx)
	if err != nil {
		t.Fatalf("AllAlerts: %v", err)
	}
	if len(alerts) != 5 {
		t.Fatalf("AllAlerts returned %d alerts, want the cap of 5", len(alerts))
	}
	if alerts[0].Metadata["n"] != 7 {
		t.Errorf("newest alert n = %v, want 7", alerts[0].Metadata["n"])
	}
}

func TestRetentionPrunesOldPoints(t *testing.T) {
	s := New(WithRetention(50 * time.Millisecond))
	defer s.Close()
	ctx := context.Background()

	if err := s.Track(ctx, "cpu", 10, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if err := s.Track(ctx, "cpu", 20, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}

	sums, err := s.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if sums["cpu"].Count != 1 {
		t.Fatalf("count = %d, want 1 after retention pruning", sums["cpu"].Count)
	}
	if sums["cpu"].Latest != 20 {
		t.Fatalf("latest = %g, want 20", sums["cpu"].Latest)
	}
}

func TestCustomThresholds(t *testing.T) {
	th := metrics.NewThresholds()
	s := New(WithThresholds(th))
	defer s.Close()
	ctx := context.Background()

	// Below threshold: no alert.
	if err := s.Track(ctx, "auth_failure", 3, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}
	alerts, err := s.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("below-threshold sample alerted: %+v", alerts)
	}

	// Double the threshold escalates to critical.
	if err := s.Track(ctx, "auth_failure", 12, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}
	alerts, err = s.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("ActiveAlerts returned %d alerts, want 1", len(alerts))
	}
	if alerts[0].Severity != metrics.SeverityCritical {
		t.Errorf("severity = %q, want critical", alerts[0].Severity)
	}
}
