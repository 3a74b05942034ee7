// Package storetest provides a conformance suite run against every
// sessionstore.Store implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/luminoboard/statelayer/sessionstore"
)

// StoreFactory creates a fresh sessionstore.Store for a test.
type StoreFactory func(t *testing.T) sessionstore.Store

// RunStoreTests runs the complete suite against the provided factory.
func RunStoreTests(t *testing.T, factory StoreFactory) {
	t.Run("SetAndGet", func(t *testing.T) { testSetAndGet(t, factory) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory) })
	t.Run("GetUpdatesLastAccessed", func(t *testing.T) { testGetUpdatesLastAccessed(t, factory) })
	t.Run("ExpiryTreatedAsMiss", func(t *testing.T) { testExpiryTreatedAsMiss(t, factory) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, factory) })
	t.Run("Renew", func(t *testing.T) { testRenew(t, factory) })
	t.Run("RenewMissing", func(t *testing.T) { testRenewMissing(t, factory) })
	t.Run("ActiveAndCount", func(t *testing.T) { testActiveAndCount(t, factory) })
	t.Run("Clear", func(t *testing.T) { testClear(t, factory) })
}

func testSetAndGet(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "s1", map[string]any{"userId": "u1"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	rec, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("Get returned nil for a live session")
	}
	if rec.Data["userId"] != "u1" {
		t.Errorf("payload userId = %v, want u1", rec.Data["userId"])
	}
	if rec.CreatedAt.IsZero() || rec.ExpiresAt.IsZero() {
		t.Error("CreatedAt/ExpiresAt must be set on creation")
	}
	if !rec.ExpiresAt.After(time.Now()) {
		t.Error("ExpiresAt should be in the future")
	}
}

func testGetMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()

	rec, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("Get missing = %+v, want nil", rec)
	}
}

func testGetUpdatesLastAccessed(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "s1", map[string]any{"k": "v"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	before := time.Now()
	time.Sleep(10 * time.Millisecond)

	rec, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("Get returned nil")
	}
	if rec.LastAccessed.Before(before) {
		t.Errorf("LastAccessed = %v, want after %v", rec.LastAccessed, before)
	}
}

func testExpiryTreatedAsMiss(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "s1", map[string]any{"k": "v"}, 50*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	rec, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expired session returned %+v, want nil", rec)
	}
}

func testDelete(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "s1", nil, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := s.Delete(ctx, "s1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !ok {
		t.Fatal("Delete of an existing session should report true")
	}
	ok, err = s.Delete(ctx, "s1")
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if ok {
		t.Fatal("Delete of a missing session should report false")
	}
}

func testRenew(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "s1", nil, 100*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ok, err := s.Renew(ctx, "s1", time.Minute)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if !ok {
		t.Fatal("Renew of a live session should report true")
	}

	// The original short ttl would have expired by now.
	time.Sleep(150 * time.Millisecond)
	rec, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec == nil {
		t.Fatal("renewed session should still be live past its original ttl")
	}
}

func testRenewMissing(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()

	ok, err := s.Renew(context.Background(), "nope", time.Minute)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if ok {
		t.Fatal("Renew of a missing session should report false")
	}
}

func testActiveAndCount(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Set(ctx, id, map[string]any{"id": id}, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", id, err)
		}
	}
	active, err := s.Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 3 {
		t.Fatalf("Active returned %d records, want 3", len(active))
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("Count = %d, want 3", n)
	}
}

func testClear(t *testing.T, factory StoreFactory) {
	s := factory(t)
	defer s.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := s.Set(ctx, id, nil, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", id, err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("Count after Clear = %d, want 0", n)
	}
}
