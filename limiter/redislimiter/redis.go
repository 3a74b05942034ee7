// Package redislimiter implements limiter.Store on the shared Redis backend.
// Each client owns a sorted set scored by request timestamp in unix
// milliseconds; pruning, counting, and admission are issued as a single
// pipelined round trip.
package redislimiter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/luminoboard/statelayer/limiter"
)

// expirySlack pads the key TTL beyond the window so an abandoned client's
// set cannot grow without bound.
const expirySlack = 10 * time.Second

// Config for the Redis-backed limiter.
type Config struct {
	// Client is the shared Redis client.
	Client *redis.Client

	// KeyPrefix namespaces limiter keys. Default: "state:ratelimit:".
	KeyPrefix string
}

// Store implements limiter.Store using per-client sorted sets.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redislimiter: redis client is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "state:ratelimit:"
	}
	return &Store{client: cfg.Client, keyPrefix: prefix}, nil
}

func (s *Store) key(clientID string) string { return s.keyPrefix + clientID }

// Check records the request optimistically inside the pipeline so the
// remove/add/count sequence costs one round trip. When the count comes back
// over max, the just-added member is removed again best-effort. The sequence
// is not atomic under concurrent checks for the same client; slight
// overcounting in that case is accepted.
func (s *Store) Check(ctx context.Context, clientID string, max int, window time.Duration) (limiter.Result, error) {
	now := time.Now()
	nowMS := now.UnixMilli()
	cutoff := nowMS - window.Milliseconds()
	key := s.key(clientID)
	member := strconv.FormatInt(nowMS, 10) + "-" + uuid.NewString()

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		p.ZAdd(ctx, key, redis.Z{Score: float64(nowMS), Member: member})
		card = p.ZCard(ctx, key)
		p.PExpire(ctx, key, window+expirySlack)
		return nil
	})
	if err != nil {
		return limiter.Result{}, fmt.Errorf("redislimiter: check %s: %w", clientID, err)
	}

	count := int(card.Val())
	if count > max {
		// Rejected: withdraw the optimistic entry.
		if remErr := s.client.ZRem(ctx, key, member).Err(); remErr != nil {
			return limiter.Result{}, fmt.Errorf("redislimiter: withdraw entry for %s: %w", clientID, remErr)
		}
		resetAt, err := s.oldestPlusWindow(ctx, key, now, window)
		if err != nil {
			return limiter.Result{}, err
		}
		return limiter.Result{
			Allowed:   false,
			Count:     count - 1,
			Remaining: 0,
			ResetAt:   resetAt,
			Window:    window,
		}, nil
	}

	return limiter.Result{
		Allowed:   true,
		Count:     count,
		Remaining: max - count,
		ResetAt:   now.Add(window),
		Window:    window,
	}, nil
}

// Status prunes and counts without recording a request.
func (s *Store) Status(ctx context.Context, clientID string, max int, window time.Duration) (limiter.Result, error) {
	now := time.Now()
	cutoff := now.UnixMilli() - window.Milliseconds()
	key := s.key(clientID)

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		card = p.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return limiter.Result{}, fmt.Errorf("redislimiter: status %s: %w", clientID, err)
	}

	count := int(card.Val())
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt, err := s.oldestPlusWindow(ctx, key, now, window)
	if err != nil {
		return limiter.Result{}, err
	}
	return limiter.Result{
		Allowed:   count < max,
		Count:     count,
		Remaining: remaining,
		ResetAt:   resetAt,
		Window:    window,
	}, nil
}

// Reset discards the client's window entirely.
func (s *Store) Reset(ctx context.Context, clientID string) error {
	if err := s.client.Del(ctx, s.key(clientID)).Err(); err != nil {
		return fmt.Errorf("redislimiter: reset %s: %w", clientID, err)
	}
	return nil
}

// ActiveClients scans the limiter keyspace and strips the prefix.
func (s *Store) ActiveClients(ctx context.Context) ([]string, error) {
	var clients []string
	var cursor uint64
	pattern := s.keyPrefix + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redislimiter: scan clients: %w", err)
		}
		for _, k := range keys {
			clients = append(clients, strings.TrimPrefix(k, s.keyPrefix))
		}
		if next == 0 {
			return clients, nil
		}
		cursor = next
	}
}

// Close is a no-op; the shared client is owned by the backend manager.
func (s *Store) Close() error { return nil }

// oldestPlusWindow derives ResetAt from the oldest surviving entry. An empty
// window resets immediately at now+window.
func (s *Store) oldestPlusWindow(ctx context.Context, key string, now time.Time, window time.Duration) (time.Time, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return time.Time{}, fmt.Errorf("redislimiter: oldest entry: %w", err)
	}
	if len(zs) == 0 {
		return now.Add(window), nil
	}
	oldest := time.UnixMilli(int64(zs[0].Score))
	return oldest.Add(window), nil
}

var _ limiter.Store = (*Store)(nil)
