// Package memstore is the process-local sessionstore.Store used when the
// shared backend is unavailable or not configured. Sessions live in a bounded
// LRU cache; a periodic sweep removes expired entries independent of access
// patterns, and is cancelled deterministically by Close.
package memstore

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/luminoboard/statelayer/sessionstore"
)

const defaultMaxSessions = 10000

// Store implements sessionstore.Store in memory.
type Store struct {
	mu    sync.RWMutex
	cache *lru.Cache[string, *sessionstore.Record]

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// Option configures the Store.
type Option func(*opts)

type opts struct {
	maxSessions int
	sweepEvery  time.Duration
}

// WithMaxSessions bounds the cache; least-recently-used sessions are evicted
// when the bound is exceeded.
func WithMaxSessions(n int) Option {
	return func(o *opts) { o.maxSessions = n }
}

// WithSweepInterval sets the expired-entry sweep cadence.
func WithSweepInterval(d time.Duration) Option {
	return func(o *opts) { o.sweepEvery = d }
}

func New(options ...Option) (*Store, error) {
	o := &opts{maxSessions: defaultMaxSessions, sweepEvery: 5 * time.Minute}
	for _, opt := range options {
		opt(o)
	}
	cache, err := lru.New[string, *sessionstore.Record](o.maxSessions)
	if err != nil {
		return nil, err
	}
	s := &Store{
		cache:      cache,
		sweepEvery: o.sweepEvery,
		stop:       make(chan struct{}),
	}
	go s.sweep()
	return s, nil
}

func (s *Store) Set(ctx context.Context, id string, data map[string]any, ttl time.Duration) error {
	now := time.Now()
	rec := &sessionstore.Record{
		ID:           id,
		Data:         data,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(ttl),
	}
	s.mu.Lock()
	s.cache.Add(id, rec)
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*sessionstore.Record, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.cache.Get(id)
	if !ok {
		return nil, nil
	}
	if rec.Expired(now) {
		s.cache.Remove(id)
		return nil, nil
	}
	rec.LastAccessed = now

	// Return a copy so callers cannot mutate stored state.
	cp := *rec
	return &cp, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Remove(id), nil
}

func (s *Store) Renew(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.cache.Get(id)
	if !ok {
		return false, nil
	}
	if rec.Expired(now) {
		s.cache.Remove(id)
		return false, nil
	}
	rec.LastAccessed = now
	rec.ExpiresAt = now.Add(ttl)
	return true, nil
}

func (s *Store) Active(ctx context.Context) ([]sessionstore.Record, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []sessionstore.Record
	for _, id := range s.cache.Keys() {
		if rec, ok := s.cache.Peek(id); ok && !rec.Expired(now) {
			out = append(out, *rec)
		}
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
	s.mu.Lock()
	s.cache.Purge()
	s.mu.Unlock()
	return nil
}

// Close stops the sweep goroutine. Safe to call more than once.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// sweep removes expired sessions every interval regardless of access
// patterns. The Redis variant has no equivalent; there the backend TTL does
// this work.
func (s *Store) sweep() {
	t := time.NewTicker(s.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			now := time.Now()
			s.mu.Lock()
			for _, id := range s.cache.Keys() {
				if rec, ok := s.cache.Peek(id); ok && rec.Expired(now) {
					s.cache.Remove(id)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ sessionstore.Store = (*Store)(nil)
