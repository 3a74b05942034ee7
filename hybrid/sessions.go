package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/luminoboard/statelayer/sessionstore"
)

// Sessions is the degradation-aware session store handed to application
// code. Under a shared-backend outage sessions degrade to process-local
// visibility rather than failing logins outright.
type Sessions struct {
	shared   Provider[sessionstore.Store]
	fallback sessionstore.Store
	log      *slog.Logger
}

func NewSessions(shared Provider[sessionstore.Store], fallback sessionstore.Store, log *slog.Logger) *Sessions {
	if log == nil {
		log = slog.Default()
	}
	return &Sessions{shared: shared, fallback: fallback, log: log}
}

func (s *Sessions) sharedStore(ctx context.Context, op string) (sessionstore.Store, bool) {
	if s.shared == nil {
		return nil, false
	}
	st, err := s.shared(ctx)
	if err != nil {
		warnFallback(ctx, s.log, op, err)
		return nil, false
	}
	return st, true
}

func (s *Sessions) Set(ctx context.Context, id string, data map[string]any, ttl time.Duration) (Origin, error) {
	if st, ok := s.sharedStore(ctx, "session set"); ok {
		err := st.Set(ctx, id, data, ttl)
		if err == nil {
			return OriginShared, nil
		}
		warnFallback(ctx, s.log, "session set", err)
	}
	if err := s.fallback.Set(ctx, id, data, ttl); err != nil {
		return OriginMemory, fmt.Errorf("hybrid: session fallback: %w", err)
	}
	return OriginMemory, nil
}

func (s *Sessions) Get(ctx context.Context, id string) (*sessionstore.Record, Origin, error) {
	if st, ok := s.sharedStore(ctx, "session get"); ok {
		rec, err := st.Get(ctx, id)
		if err == nil {
			return rec, OriginShared, nil
		}
		warnFallback(ctx, s.log, "session get", err)
	}
	rec, err := s.fallback.Get(ctx, id)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: session fallback: %w", err)
	}
	return rec, OriginMemory, nil
}

func (s *Sessions) Delete(ctx context.Context, id string) (bool, Origin, error) {
	if st, ok := s.sharedStore(ctx, "session delete"); ok {
		deleted, err := st.Delete(ctx, id)
		if err == nil {
			return deleted, OriginShared, nil
		}
		warnFallback(ctx, s.log, "session delete", err)
	}
	deleted, err := s.fallback.Delete(ctx, id)
	if err != nil {
		return false, OriginMemory, fmt.Errorf("hybrid: session fallback: %w", err)
	}
	return deleted, OriginMemory, nil
}

func (s *Sessions) Renew(ctx context.Context, id string, ttl time.Duration) (bool, Origin, error) {
	if st, ok := s.sharedStore(ctx, "session renew"); ok {
		renewed, err := st.Renew(ctx, id, ttl)
		if err == nil {
			return renewed, OriginShared, nil
		}
		warnFallback(ctx, s.log, "session renew", err)
	}
	renewed, err := s.fallback.Renew(ctx, id, ttl)
	if err != nil {
		return false, OriginMemory, fmt.Errorf("hybrid: session fallback: %w", err)
	}
	return renewed, OriginMemory, nil
}

func (s *Sessions) Active(ctx context.Context) ([]sessionstore.Record, Origin, error) {
	if st, ok := s.sharedStore(ctx, "session list"); ok {
		recs, err := st.Active(ctx)
		if err == nil {
			return recs, OriginShared, nil
		}
		warnFallback(ctx, s.log, "session list", err)
	}
	recs, err := s.fallback.Active(ctx)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: session fallback: %w", err)
	}
	return recs, OriginMemory, nil
}

func (s *Sessions) Count(ctx context.Context) (int, Origin, error) {
	if st, ok := s.sharedStore(ctx, "session count"); ok {
		n, err := st.Count(ctx)
		if err == nil {
			return n, OriginShared, nil
		}
		warnFallback(ctx, s.log, "session count", err)
	}
	n, err := s.fallback.Count(ctx)
	if err != nil {
		return 0, OriginMemory, fmt.Errorf("hybrid: session fallback: %w", err)
	}
	return n, OriginMemory, nil
}

func (s *Sessions) Clear(ctx context.Context) (Origin, error) {
	if st, ok := s.sharedStore(ctx, "session clear"); ok {
		err := st.Clear(ctx)
		if err == nil {
			return OriginShared, nil
		}
		warnFallback(ctx, s.log, "session clear", err)
	}
	if err := s.fallback.Clear(ctx); err != nil {
		return OriginMemory, fmt.Errorf("hybrid: session fallback: %w", err)
	}
	return OriginMemory, nil
}

func (s *Sessions) close() error { return s.fallback.Close() }
