// Package limiter defines the sliding-window rate limiter shared by the Redis
// and in-memory implementations. The window slides continuously with each
// request rather than resetting at fixed boundaries, which avoids admitting a
// double burst across a boundary.
package limiter

import (
	"context"
	"time"
)

// Result describes the outcome of an admission check.
type Result struct {
	// Allowed reports whether the request was admitted.
	Allowed bool
	// Count is the number of requests currently inside the window,
	// including this one when admitted.
	Count int
	// Remaining is how many more requests the window can absorb.
	Remaining int
	// ResetAt is when the oldest in-window request ages out, i.e. the
	// earliest instant at which a rejected client can be admitted again.
	ResetAt time.Time
	// Window echoes the window the check was evaluated against.
	Window time.Duration
}

// Store is the rate limiter contract implemented by redislimiter and
// memlimiter.
type Store interface {
	// Check prunes entries older than the window, counts the remainder,
	// and admits the request if the count is below max. Admission records
	// a new entry at the current time.
	Check(ctx context.Context, clientID string, max int, window time.Duration) (Result, error)

	// Status reports the window state without recording a request. It
	// applies the same pruning semantics as Check.
	Status(ctx context.Context, clientID string, max int, window time.Duration) (Result, error)

	// Reset discards the client's entire window.
	Reset(ctx context.Context, clientID string) error

	// ActiveClients enumerates clients that currently have a window.
	ActiveClients(ctx context.Context) ([]string, error)

	// Close releases resources held by the store.
	Close() error
}
