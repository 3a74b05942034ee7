// Package limitertest provides a conformance suite run against every
// limiter.Store implementation.
package limitertest

import (
	"context"
	"testing"
	"time"

	"github.com/luminoboard/statelayer/limiter"
)

// StoreFactory creates a fresh limiter.Store for a test.
type StoreFactory func(t *testing.T) limiter.Store

// RunLimiterTests runs the complete suite against the provided factory.
func RunLimiterTests(t *testing.T, factory StoreFactory) {
	t.Run("AdmitsUpToMax", func(t *testing.T) { testAdmitsUpToMax(t, factory) })
	t.Run("RejectsOverMax", func(t *testing.T) { testRejectsOverMax(t, factory) })
	t.Run("WindowSlides", func(t *testing.T) { testWindowSlides(t, factory) })
	t.Run("StatusDoesNotConsume", func(t *testing.T) { testStatusDoesNotConsume(t, factory) })
	t.Run("ResetClearsWindow", func(t *testing.T) { testResetClearsWindow(t, factory) })
	t.Run("ActiveClients", func(t *testing.T) { testActiveClients(t, factory) })
	t.Run("ClientsAreIndependent", func(t *testing.T) { testClientsAreIndependent(t, factory) })
}

func testAdmitsUpToMax(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := s.Check(ctx, "c1", 5, time.Second)
		if err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("call %d should be allowed", i+1)
		}
		if res.Count != i+1 {
			t.Errorf("call %d: count = %d, want %d", i+1, res.Count, i+1)
		}
		if res.Remaining != 5-i-1 {
			t.Errorf("call %d: remaining = %d, want %d", i+1, res.Remaining, 5-i-1)
		}
	}
}

func testRejectsOverMax(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Check(ctx, "c1", 5, time.Second); err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
	}

	res, err := s.Check(ctx, "c1", 5, time.Second)
	if err != nil {
		t.Fatalf("sixth Check: %v", err)
	}
	if res.Allowed {
		t.Fatal("sixth call within the window should be rejected")
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", res.Remaining)
	}
	if res.ResetAt.Before(time.Now()) {
		t.Errorf("ResetAt %v should be in the future", res.ResetAt)
	}
}

func testWindowSlides(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	window := 200 * time.Millisecond
	for i := 0; i < 3; i++ {
		if _, err := s.Check(ctx, "c1", 3, window); err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
	}
	res, err := s.Check(ctx, "c1", 3, window)
	if err != nil {
		t.Fatalf("Check over max: %v", err)
	}
	if res.Allowed {
		t.Fatal("fourth call should be rejected")
	}

	time.Sleep(window + 50*time.Millisecond)

	res, err = s.Check(ctx, "c1", 3, window)
	if err != nil {
		t.Fatalf("Check after window: %v", err)
	}
	if !res.Allowed {
		t.Fatal("call after the window elapsed should be admitted again")
	}
}

func testStatusDoesNotConsume(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Check(ctx, "c1", 5, time.Second); err != nil {
		t.Fatalf("Check: %v", err)
	}

	for i := 0; i < 3; i++ {
		res, err := s.Status(ctx, "c1", 5, time.Second)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if res.Count != 1 {
			t.Errorf("Status count = %d, want 1", res.Count)
		}
		if res.Remaining != 4 {
			t.Errorf("Status remaining = %d, want 4", res.Remaining)
		}
		if !res.Allowed {
			t.Error("Status should report the client as admissible")
		}
	}
}

func testResetClearsWindow(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := s.Check(ctx, "c1", 5, time.Minute); err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
	}
	if err := s.Reset(ctx, "c1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	res, err := s.Check(ctx, "c1", 5, time.Minute)
	if err != nil {
		t.Fatalf("Check after reset: %v", err)
	}
	if !res.Allowed || res.Count != 1 {
		t.Fatalf("after reset: allowed=%v count=%d, want allowed=true count=1", res.Allowed, res.Count)
	}
}

func testActiveClients(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"alpha", "beta"} {
		if _, err := s.Check(ctx, id, 5, time.Minute); err != nil {
			t.Fatalf("Check %s: %v", id, err)
		}
	}

	clients, err := s.ActiveClients(ctx)
	if err != nil {
		t.Fatalf("ActiveClients: %v", err)
	}
	seen := map[string]bool{}
	for _, c := range clients {
		seen[c] = true
	}
	if !seen["alpha"] || !seen["beta"] {
		t.Fatalf("ActiveClients = %v, want alpha and beta present", clients)
	}
}

func testClientsAreIndependent(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Check(ctx, "busy", 3, time.Minute); err != nil {
			t.Fatalf("Check busy: %v", err)
		}
	}
	res, err := s.Check(ctx, "quiet", 3, time.Minute)
	if err != nil {
		t.Fatalf("Check quiet: %v", err)
	}
	if !res.Allowed {
		t.Fatal("an unrelated client must not be affected by another client's window")
	}
}
