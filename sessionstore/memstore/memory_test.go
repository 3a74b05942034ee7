package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/luminoboard/statelayer/sessionstore"
	"github.com/luminoboard/statelayer/sessionstore/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.RunStoreTests(t, func(t *testing.T) sessionstore.Store {
		s, err := New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})
}

func TestSweepRemovesExpired(t *testing.T) {
	s, err := New(WithSweepInterval(20 * time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "s1", nil, 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// The sweep must evict without the session ever being read.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.RLock()
		n := s.cache.Len()
		s.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expired session was never swept")
}

func TestMaxSessionsEvictsOldest(t *testing.T) {
	s, err := New(WithMaxSessions(2))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, id, nil, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", id, err)
		}
	}
	rec, err := s.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatal("oldest session should have been evicted by the cache bound")
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
