// Package redisstore implements sessionstore.Store on the shared Redis
// backend. Records are stored as JSON strings with the backend TTL set to the
// session lifetime; the ExpiresAt field inside the record guards against
// stale reads during TTL granularity windows.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luminoboard/statelayer/sessionstore"
)

// Config for the Redis-backed session store.
type Config struct {
	// Client is the shared Redis client.
	Client *redis.Client

	// KeyPrefix namespaces session keys. Default: "state:sessions:".
	KeyPrefix string

	// Logger receives malformed-record reports. Defaults to slog.Default.
	Logger *slog.Logger
}

// Store implements sessionstore.Store using Redis strings with TTL.
type Store struct {
	client    *redis.Client
	keyPrefix string
	log       *slog.Logger
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "state:sessions:"
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: cfg.Client, keyPrefix: prefix, log: log}, nil
}

func (s *Store) key(id string) string { return s.keyPrefix + id }

func (s *Store) Set(ctx context.Context, id string, data map[string]any, ttl time.Duration) error {
	now := time.Now()
	rec := sessionstore.Record{
		ID:           id,
		Data:         data,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(ttl),
	}
	raw, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("redisstore: marshal session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set session %s: %w", id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*sessionstore.Record, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redisstore: get session %s: %w", id, err)
	}

	var rec sessionstore.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal session %s: %w", id, err)
	}

	now := time.Now()
	if rec.Expired(now) {
		// Backstop: the backend TTL has not fired yet.
		_ = s.client.Del(ctx, s.key(id)).Err()
		return nil, nil
	}

	// Touch LastAccessed without resetting the remaining TTL.
	rec.LastAccessed = now
	updated, err := json.Marshal(&rec)
	if err != nil {
		return nil, fmt.Errorf("redisstore: marshal session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), updated, redis.KeepTTL).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: touch session %s: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: delete session %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *Store) Renew(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redisstore: renew session %s: %w", id, err)
	}

	var rec sessionstore.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return false, fmt.Errorf("redisstore: unmarshal session %s: %w", id, err)
	}

	now := time.Now()
	if rec.Expired(now) {
		_ = s.client.Del(ctx, s.key(id)).Err()
		return false, nil
	}

	rec.LastAccessed = now
	rec.ExpiresAt = now.Add(ttl)
	updated, err := json.Marshal(&rec)
	if err != nil {
		return false, fmt.Errorf("redisstore: marshal session %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), updated, ttl).Err(); err != nil {
		return false, fmt.Errorf("redisstore: renew session %s: %w", id, err)
	}
	return true, nil
}

func (s *Store) Active(ctx context.Context) ([]sessionstore.Record, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var out []sessionstore.Record
	for _, k := range keys {
		raw, err := s.client.Get(ctx, k).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("redisstore: get %s: %w", k, err)
		}
		var rec sessionstore.Record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// Skip the malformed record; the listing continues.
			s.log.Error("skipping malformed session record",
				slog.String("key", k), slog.String("error", err.Error()))
			continue
		}
		if rec.Expired(now) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	active, err := s.Active(ctx)
	if err != nil {
		return 0, err
	}
	return len(active), nil
}

func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redisstore: clear sessions: %w", err)
	}
	return nil
}

// Close is a no-op; the shared client is owned by the backend manager.
func (s *Store) Close() error { return nil }

func (s *Store) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	var cursor uint64
	pattern := s.keyPrefix + "*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redisstore: scan sessions: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

var _ sessionstore.Store = (*Store)(nil)
