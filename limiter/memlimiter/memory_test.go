package memlimiter

import (
	"context"
	"testing"
	"time"

	"github.com/luminoboard/statelayer/limiter"
	"github.com/luminoboard/statelayer/limiter/limitertest"
)

func TestMemoryLimiter(t *testing.T) {
	limitertest.RunLimiterTests(t, func(t *testing.T) limiter.Store {
		return New()
	})
}

func TestJanitorDropsIdleClients(t *testing.T) {
	s := New(WithIdleTTL(30*time.Millisecond), WithJanitorInterval(10*time.Millisecond))
	defer s.Close()
	ctx := context.Background()

	if _, err := s.Check(ctx, "idle", 5, time.Hour); err != nil {
		t.Fatalf("Check: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		clients, err := s.ActiveClients(ctx)
		if err != nil {
			t.Fatalf("ActiveClients: %v", err)
		}
		if len(clients) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("idle client was never swept")
}

func TestCloseIsIdempotent(t *testing.T) {
	s := New()
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
