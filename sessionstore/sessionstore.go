// Package sessionstore defines TTL-keyed session storage shared by the Redis
// and in-memory implementations. Expiry is double-enforced: the backend TTL
// is the primary eviction mechanism and the record's ExpiresAt field is the
// correctness backstop — a record whose ExpiresAt has passed is treated as
// absent even if physically still present.
package sessionstore

import (
	"context"
	"time"
)

// Record is a stored session. Data is the caller's opaque payload.
type Record struct {
	ID           string         `json:"id"`
	Data         map[string]any `json:"data"`
	CreatedAt    time.Time      `json:"created_at"`
	LastAccessed time.Time      `json:"last_accessed"`
	ExpiresAt    time.Time      `json:"expires_at"`
}

// Expired reports whether the record's backstop expiry has passed.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Store is the session storage contract implemented by redisstore and
// memstore.
type Store interface {
	// Set stores the payload under id with a fresh ttl.
	Set(ctx context.Context, id string, data map[string]any, ttl time.Duration) error

	// Get returns the record or (nil, nil) on a miss. A hit updates
	// LastAccessed but keeps the remaining TTL; renewal is a distinct
	// operation.
	Get(ctx context.Context, id string) (*Record, error)

	// Delete removes the session, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Renew resets both ExpiresAt and the backend TTL to a full ttl
	// window. Returns false when the session is absent or expired.
	Renew(ctx context.Context, id string, ttl time.Duration) (bool, error)

	// Active lists all live sessions. Malformed records are skipped.
	Active(ctx context.Context) ([]Record, error)

	// Count reports the number of live sessions.
	Count(ctx context.Context) (int, error)

	// Clear removes every session.
	Clear(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
