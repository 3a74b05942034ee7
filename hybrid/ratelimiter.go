package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/luminoboard/statelayer/limiter"
)

// RateLimiter is the degradation-aware admission checker handed to
// application code. A rate-limited caller always receives Allowed=false,
// never an error; errors surface only when the in-process fallback itself
// fails.
type RateLimiter struct {
	shared   Provider[limiter.Store]
	fallback limiter.Store
	log      *slog.Logger
}

func NewRateLimiter(shared Provider[limiter.Store], fallback limiter.Store, log *slog.Logger) *RateLimiter {
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{shared: shared, fallback: fallback, log: log}
}

// sharedStore resolves the shared implementation, reporting false when the
// wrapper is in-process only or the backend is unreachable.
func (r *RateLimiter) sharedStore(ctx context.Context, op string) (limiter.Store, bool) {
	if r.shared == nil {
		return nil, false
	}
	s, err := r.shared(ctx)
	if err != nil {
		warnFallback(ctx, r.log, op, err)
		return nil, false
	}
	return s, true
}

func (r *RateLimiter) Check(ctx context.Context, clientID string, max int, window time.Duration) (limiter.Result, Origin, error) {
	if s, ok := r.sharedStore(ctx, "rate limit check"); ok {
		res, err := s.Check(ctx, clientID, max, window)
		if err == nil {
			return res, OriginShared, nil
		}
		warnFallback(ctx, r.log, "rate limit check", err)
	}
	res, err := r.fallback.Check(ctx, clientID, max, window)
	if err != nil {
		return limiter.Result{}, OriginMemory, fmt.Errorf("hybrid: rate limit fallback: %w", err)
	}
	return res, OriginMemory, nil
}

func (r *RateLimiter) Status(ctx context.Context, clientID string, max int, window time.Duration) (limiter.Result, Origin, error) {
	if s, ok := r.sharedStore(ctx, "rate limit status"); ok {
		res, err := s.Status(ctx, clientID, max, window)
		if err == nil {
			return res, OriginShared, nil
		}
		warnFallback(ctx, r.log, "rate limit status", err)
	}
	res, err := r.fallback.Status(ctx, clientID, max, window)
	if err != nil {
		return limiter.Result{}, OriginMemory, fmt.Errorf("hybrid: rate limit fallback: %w", err)
	}
	return res, OriginMemory, nil
}

func (r *RateLimiter) Reset(ctx context.Context, clientID string) (Origin, error) {
	if s, ok := r.sharedStore(ctx, "rate limit reset"); ok {
		err := s.Reset(ctx, clientID)
		if err == nil {
			return OriginShared, nil
		}
		warnFallback(ctx, r.log, "rate limit reset", err)
	}
	if err := r.fallback.Reset(ctx, clientID); err != nil {
		return OriginMemory, fmt.Errorf("hybrid: rate limit fallback: %w", err)
	}
	return OriginMemory, nil
}

func (r *RateLimiter) ActiveClients(ctx context.Context) ([]string, Origin, error) {
	if s, ok := r.sharedStore(ctx, "rate limit active clients"); ok {
		clients, err := s.ActiveClients(ctx)
		if err == nil {
			return clients, OriginShared, nil
		}
		warnFallback(ctx, r.log, "rate limit active clients", err)
	}
	clients, err := r.fallback.ActiveClients(ctx)
	if err != nil {
		return nil, OriginMemory, fmt.Errorf("hybrid: rate limit fallback: %w", err)
	}
	return clients, OriginMemory, nil
}

func (r *RateLimiter) close() error { return r.fallback.Close() }

func warnFallback(ctx context.Context, log *slog.Logger, op string, err error) {
	log.WarnContext(ctx, "shared backend unavailable, using in-process fallback",
		slog.String("op", op), slog.String("error", err.Error()))
}
