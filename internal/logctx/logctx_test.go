package logctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerAppendsRequestData(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := WithRequestData(context.Background(), &RequestData{
		RequestID: "r-1",
		ClientID:  "tenant-42",
		Path:      "/api/reports",
	})
	log.WarnContext(ctx, "degraded")

	out := buf.String()
	for _, want := range []string{`"id":"r-1"`, `"client_id":"tenant-42"`, `"path":"/api/reports"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestHandlerWithoutRequestData(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewJSONHandler(&buf, nil)})

	log.Warn("plain")
	if strings.Contains(buf.String(), `"req"`) {
		t.Errorf("unexpected req group in %s", buf.String())
	}
}
