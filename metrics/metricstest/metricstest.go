// Package metricstest provides a conformance suite run against every
// metrics.Store implementation.
package metricstest

import (
	"context"
	"testing"
	"time"

	"github.com/luminoboard/statelayer/metrics"
)

// StoreFactory creates a fresh metrics.Store for a test. Implementations may
// differ in cap sizes; the factory's store must cap each metric at capHint
// points so the eviction test stays fast.
type StoreFactory func(t *testing.T, capHint int) metrics.Store

// RunMetricsTests runs the complete suite against the provided factory.
func RunMetricsTests(t *testing.T, factory StoreFactory) {
	t.Run("TrackAndHistory", func(t *testing.T) { testTrackAndHistory(t, factory) })
	t.Run("CapEvictsOldest", func(t *testing.T) { testCapEvictsOldest(t, factory) })
	t.Run("Summaries", func(t *testing.T) { testSummaries(t, factory) })
	t.Run("ThresholdBreachAlerts", func(t *testing.T) { testThresholdBreachAlerts(t, factory) })
	t.Run("EveryBreachAlerts", func(t *testing.T) { testEveryBreachAlerts(t, factory) })
	t.Run("AddAlert", func(t *testing.T) { testAddAlert(t, factory) })
	t.Run("AcknowledgeAlert", func(t *testing.T) { testAcknowledgeAlert(t, factory) })
	t.Run("AcknowledgeIsIdempotent", func(t *testing.T) { testAcknowledgeIsIdempotent(t, factory) })
	t.Run("Clear", func(t *testing.T) { testClear(t, factory) })
}

func testTrackAndHistory(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Track(ctx, "latency", float64(100+i), map[string]string{"route": "/api"}); err != nil {
			t.Fatalf("Track %d: %v", i, err)
		}
		// Distinct timestamps keep score ordering deterministic.
		time.Sleep(2 * time.Millisecond)
	}

	points, err := s.History(ctx, "latency", 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("History returned %d points, want 5", len(points))
	}
	for i := 1; i < len(points); i++ {
		if points[i].At.Before(points[i-1].At) {
			t.Fatal("History must be ordered oldest first")
		}
	}
	if points[0].Tags["route"] != "/api" {
		t.Errorf("tags not preserved: %v", points[0].Tags)
	}
}

func testCapEvictsOldest(t *testing.T, factory StoreFactory) {
	// A small cap keeps the test fast; the redis and memory stores apply
	// the same rank-based trim at any cap.
	s := factory(t, 20)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if err := s.Track(ctx, "busy", float64(i), nil); err != nil {
			t.Fatalf("Track %d: %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	points, err := s.History(ctx, "busy", 1)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(points) != 20 {
		t.Fatalf("History returned %d points, want exactly the cap of 20", len(points))
	}
	// The oldest five values must be the ones evicted.
	if points[0].Value != 5 {
		t.Errorf("oldest surviving value = %g, want 5", points[0].Value)
	}
	if points[len(points)-1].Value != 24 {
		t.Errorf("newest value = %g, want 24", points[len(points)-1].Value)
	}
}

func testSummaries(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	for _, v := range []float64{10, 20, 30} {
		if err := s.Track(ctx, "cpu", v, nil); err != nil {
			t.Fatalf("Track: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	sums, err := s.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	sum, ok := sums["cpu"]
	if !ok {
		t.Fatalf("Summaries missing cpu: %v", sums)
	}
	if sum.Count != 3 || sum.Latest != 30 || sum.Min != 10 || sum.Max != 30 || sum.Average != 20 {
		t.Fatalf("summary = %+v, want count 3 latest 30 min 10 max 30 avg 20", sum)
	}
	if len(sum.Recent) != 3 {
		t.Fatalf("Recent has %d points, want 3", len(sum.Recent))
	}
	if sum.Recent[0].Value != 30 {
		t.Errorf("Recent must be newest first, got %g", sum.Recent[0].Value)
	}
}

func testThresholdBreachAlerts(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	if err := s.Track(ctx, "api_response_time", 6000, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}

	alerts, err := s.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("ActiveAlerts returned %d alerts, want exactly 1", len(alerts))
	}
	a := alerts[0]
	if a.Type != metrics.AlertTypeThreshold {
		t.Errorf("alert type = %q, want %q", a.Type, metrics.AlertTypeThreshold)
	}
	if a.Acknowledged {
		t.Error("new alert must not be acknowledged")
	}
	if a.Metadata["metric"] != "api_response_time" {
		t.Errorf("alert metadata = %v", a.Metadata)
	}
}

func testEveryBreachAlerts(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	// Repeated breaches of the same condition each alert; there is no
	// episode deduplication.
	for i := 0; i < 3; i++ {
		if err := s.Track(ctx, "memory_usage", 95, nil); err != nil {
			t.Fatalf("Track %d: %v", i, err)
		}
	}
	alerts, err := s.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(alerts) != 3 {
		t.Fatalf("ActiveAlerts returned %d alerts, want 3", len(alerts))
	}
}

func testAddAlert(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	a, err := s.AddAlert(ctx, "deploy", "rollout started", map[string]any{"version": "2.1"})
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	if a.ID == "" {
		t.Fatal("AddAlert must assign an id")
	}

	alerts, err := s.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != a.ID {
		t.Fatalf("ActiveAlerts = %+v, want the added alert", alerts)
	}
}

func testAcknowledgeAlert(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	a, err := s.AddAlert(ctx, "deploy", "rollout started", nil)
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}

	ok, err := s.Acknowledge(ctx, a.ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !ok {
		t.Fatal("Acknowledge of a live alert should report true")
	}

	active, err := s.ActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("acknowledged alert still active: %+v", active)
	}

	all, err := s.AllAlerts(ctx)
	if err != nil {
		t.Fatalf("AllAlerts: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("AllAlerts returned %d alerts, want 1", len(all))
	}
	if !all[0].Acknowledged || all[0].AcknowledgedAt == nil {
		t.Fatalf("alert not marked acknowledged: %+v", all[0])
	}
}

func testAcknowledgeIsIdempotent(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	a, err := s.AddAlert(ctx, "deploy", "rollout started", nil)
	if err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	if ok, err := s.Acknowledge(ctx, a.ID); err != nil || !ok {
		t.Fatalf("first Acknowledge = %v, %v", ok, err)
	}
	ok, err := s.Acknowledge(ctx, a.ID)
	if err != nil {
		t.Fatalf("second Acknowledge: %v", err)
	}
	if ok {
		t.Fatal("second Acknowledge of the same id should report false")
	}

	ok, err = s.Acknowledge(ctx, "no-such-id")
	if err != nil {
		t.Fatalf("Acknowledge unknown: %v", err)
	}
	if ok {
		t.Fatal("Acknowledge of an unknown id should report false")
	}
}

func testClear(t *testing.T, factory StoreFactory) {
	s := factory(t, 1000)
	defer s.Close()
	ctx := context.Background()

	if err := s.Track(ctx, "cpu", 50, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}
	if _, err := s.AddAlert(ctx, "deploy", "x", nil); err != nil {
		t.Fatalf("AddAlert: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	sums, err := s.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(sums) != 0 {
		t.Fatalf("Summaries after Clear = %v, want empty", sums)
	}
	alerts, err := s.AllAlerts(ctx)
	if err != nil {
		t.Fatalf("AllAlerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("AllAlerts after Clear = %v, want empty", alerts)
	}
}
