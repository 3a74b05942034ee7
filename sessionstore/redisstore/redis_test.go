package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminoboard/statelayer/sessionstore"
	"github.com/luminoboard/statelayer/sessionstore/storetest"
)

func TestRedisStore(t *testing.T) {
	// Skip when Redis is not available.
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   4,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.FlushDB(ctx)
	defer client.Close()

	storetest.RunStoreTests(t, func(t *testing.T) sessionstore.Store {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})

	t.Run("MalformedRecordIsSkipped", func(t *testing.T) {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Set(ctx, "good", map[string]any{"k": "v"}, time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		// A value that cannot deserialize must not abort the listing.
		if err := client.Set(ctx, "state:sessions:bad", "{not json", time.Minute).Err(); err != nil {
			t.Fatalf("plant malformed record: %v", err)
		}

		active, err := s.Active(ctx)
		if err != nil {
			t.Fatalf("Active: %v", err)
		}
		if len(active) != 1 || active[0].ID != "good" {
			t.Fatalf("Active = %+v, want only the good record", active)
		}
	})

	t.Run("GetKeepsRemainingTTL", func(t *testing.T) {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Set(ctx, "s1", nil, 10*time.Second); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, err := s.Get(ctx, "s1"); err != nil {
			t.Fatalf("Get: %v", err)
		}
		ttl, err := client.TTL(ctx, "state:sessions:s1").Result()
		if err != nil {
			t.Fatalf("TTL: %v", err)
		}
		// A read must not extend the ttl back to the full window.
		if ttl <= 0 || ttl > 10*time.Second {
			t.Fatalf("ttl after read = %v, want within the original window", ttl)
		}
	})
}
