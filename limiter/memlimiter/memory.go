// Package memlimiter is the process-local limiter.Store used when the shared
// backend is unavailable or not configured. It mirrors the Redis algorithm
// over per-client slices; state is per process, so under a shared-backend
// outage each instance enforces its own local view of the limits.
package memlimiter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luminoboard/statelayer/limiter"
)

type entry struct {
	at    int64 // unix milliseconds
	nonce string
}

type clientWindow struct {
	entries  []entry
	lastSeen time.Time
}

// Store implements limiter.Store in memory.
type Store struct {
	mu      sync.Mutex
	clients map[string]*clientWindow

	idleTTL      time.Duration
	janitorEvery time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
}

// Option configures the Store.
type Option func(*Store)

// WithIdleTTL sets how long an untouched client window survives before the
// janitor drops it.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Store) { s.idleTTL = d }
}

// WithJanitorInterval sets the sweep cadence.
func WithJanitorInterval(d time.Duration) Option {
	return func(s *Store) { s.janitorEvery = d }
}

func New(opts ...Option) *Store {
	s := &Store{
		clients:      make(map[string]*clientWindow),
		idleTTL:      15 * time.Minute,
		janitorEvery: 2 * time.Minute,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.janitor()
	return s
}

func (s *Store) Check(ctx context.Context, clientID string, max int, window time.Duration) (limiter.Result, error) {
	now := time.Now()
	nowMS := now.UnixMilli()
	cutoff := nowMS - window.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	cw := s.clients[clientID]
	if cw == nil {
		cw = &clientWindow{}
		s.clients[clientID] = cw
	}
	cw.lastSeen = now
	cw.prune(cutoff)

	count := len(cw.entries)
	if count >= max {
		return limiter.Result{
			Allowed:   false,
			Count:     count,
			Remaining: 0,
			ResetAt:   cw.resetAt(now, window),
			Window:    window,
		}, nil
	}

	cw.entries = append(cw.entries, entry{at: nowMS, nonce: uuid.NewString()})
	return limiter.Result{
		Allowed:   true,
		Count:     count + 1,
		Remaining: max - count - 1,
		ResetAt:   now.Add(window),
		Window:    window,
	}, nil
}

func (s *Store) Status(ctx context.Context, clientID string, max int, window time.Duration) (limiter.Result, error) {
	now := time.Now()
	cutoff := now.UnixMilli() - window.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	cw := s.clients[clientID]
	if cw == nil {
		return limiter.Result{
			Allowed:   max > 0,
			Remaining: max,
			ResetAt:   now.Add(window),
			Window:    window,
		}, nil
	}
	cw.prune(cutoff)

	count := len(cw.entries)
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return limiter.Result{
		Allowed:   count < max,
		Count:     count,
		Remaining: remaining,
		ResetAt:   cw.resetAt(now, window),
		Window:    window,
	}, nil
}

func (s *Store) Reset(ctx context.Context, clientID string) error {
	s.mu.Lock()
	delete(s.clients, clientID)
	s.mu.Unlock()
	return nil
}

func (s *Store) ActiveClients(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clients := make([]string, 0, len(s.clients))
	for id, cw := range s.clients {
		if len(cw.entries) > 0 {
			clients = append(clients, id)
		}
	}
	sort.Strings(clients)
	return clients, nil
}

// Close stops the janitor. Safe to call more than once.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// prune removes entries older than the cutoff. Entries are appended in time
// order, so a single scan for the first surviving index suffices.
func (cw *clientWindow) prune(cutoffMS int64) {
	keep := 0
	for keep < len(cw.entries) && cw.entries[keep].at < cutoffMS {
		keep++
	}
	if keep > 0 {
		cw.entries = append(cw.entries[:0:0], cw.entries[keep:]...)
	}
}

func (cw *clientWindow) resetAt(now time.Time, window time.Duration) time.Time {
	if len(cw.entries) == 0 {
		return now.Add(window)
	}
	return time.UnixMilli(cw.entries[0].at).Add(window)
}

// janitor drops windows for clients that have gone idle so an abandoned
// client id cannot pin memory.
func (s *Store) janitor() {
	t := time.NewTicker(s.janitorEvery)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			cutoff := time.Now().Add(-s.idleTTL)
			s.mu.Lock()
			for id, cw := range s.clients {
				if cw.lastSeen.Before(cutoff) {
					delete(s.clients, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ limiter.Store = (*Store)(nil)
