package redismetrics

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminoboard/statelayer/metrics"
	"github.com/luminoboard/statelayer/metrics/metricstest"
)

func TestRedisMetrics(t *testing.T) {
	// Skip when Redis is not available.
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   5,
	})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.FlushDB(ctx)
	defer client.Close()

	metricstest.RunMetricsTests(t, func(t *testing.T, capHint int) metrics.Store {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client, MaxPoints: capHint})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return s
	})

	t.Run("MalformedPointIsSkipped", func(t *testing.T) {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Track(ctx, "cpu", 42, nil); err != nil {
			t.Fatalf("Track: %v", err)
		}
		// Plant a member that cannot deserialize; the summary must
		// continue over the remaining valid points.
		err = client.ZAdd(ctx, "state:metrics:metric:cpu", redis.Z{
			Score:  float64(time.Now().UnixMilli()),
			Member: "{not json",
		}).Err()
		if err != nil {
			t.Fatalf("plant malformed point: %v", err)
		}

		sums, err := s.Summaries(ctx)
		if err != nil {
			t.Fatalf("Summaries: %v", err)
		}
		if sums["cpu"].Count != 1 || sums["cpu"].Latest != 42 {
			t.Fatalf("summary = %+v, want only the valid point", sums["cpu"])
		}
	})

	t.Run("MetricKeyCarriesRetentionTTL", func(t *testing.T) {
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush: %v", err)
		}
		s, err := New(Config{Client: client, Retention: time.Hour})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := s.Track(ctx, "cpu", 1, nil); err != nil {
			t.Fatalf("Track: %v", err)
		}
		ttl, err := client.TTL(ctx, "state:metrics:metric:cpu").Result()
		if err != nil {
			t.Fatalf("TTL: %v", err)
		}
		if ttl <= 0 || ttl > time.Hour {
			t.Fatalf("ttl = %v, want within the retention horizon", ttl)
		}
	})
}
