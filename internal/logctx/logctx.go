// Package logctx enriches slog records with request context carried through
// the call chain, so degraded-mode warnings emitted deep inside the hybrid
// stores identify the request that hit them.
package logctx

import (
	"context"
	"log/slog"
)

// Handler wraps another slog.Handler and appends request attributes found in
// the record's context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("client_id", rd.ClientID),
			slog.String("path", rd.Path),
		))
	}
	return h.Handler.Handle(ctx, r)
}

type requestDataKey struct{}

// RequestData identifies the request on whose behalf a store operation runs.
type RequestData struct {
	RequestID string
	ClientID  string
	Path      string
}

// WithRequestData attaches request data for Handler to pick up.
func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}
