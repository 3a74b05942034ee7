package redislimiter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminoboard/statelayer/limiter"
	"github.com/luminoboard/statelayer/limiter/limitertest"
)

func TestRedisLimiter(t *testing.T) {
	// Skip when Redis is not available.
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   3,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.FlushDB(ctx)
	defer client.Close()

	limitertest.RunLimiterTests(t, func(t *testing.T) limiter.Store {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})

	t.Run("KeyCarriesExpiry", func(t *testing.T) {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := s.Check(ctx, "c1", 5, time.Second); err != nil {
			t.Fatalf("Check: %v", err)
		}
		ttl, err := client.PTTL(ctx, "state:ratelimit:c1").Result()
		if err != nil {
			t.Fatalf("PTTL: %v", err)
		}
		if ttl <= 0 {
			t.Fatalf("limiter key has no expiry, ttl = %v", ttl)
		}
		if ttl > time.Second+expirySlack {
			t.Fatalf("ttl = %v, want at most window plus slack", ttl)
		}
	})
}
