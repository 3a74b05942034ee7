package backend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/luminoboard/statelayer/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureWithoutAddress(t *testing.T) {
	m := New(&config.Config{}, discardLogger())
	_, err := m.Ensure(context.Background())
	if !errors.Is(err, ErrNoBackend) {
		t.Fatalf("err = %v, want ErrNoBackend", err)
	}
	if m.State() != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", m.State())
	}
}

func TestEnsureFailedConnect(t *testing.T) {
	m := New(&config.Config{
		RedisAddr:      "127.0.0.1:1", // nothing listens here
		DialTimeout:    100 * time.Millisecond,
		CommandTimeout: 100 * time.Millisecond,
	}, discardLogger())

	_, err := m.Ensure(context.Background())
	if err == nil {
		t.Fatal("Ensure should fail against a closed port")
	}
	if m.State() != StateDisconnected {
		t.Errorf("State = %v, want disconnected after failed connect", m.State())
	}
}

func TestReconnectThrottled(t *testing.T) {
	m := New(&config.Config{
		RedisAddr:      "127.0.0.1:1",
		DialTimeout:    100 * time.Millisecond,
		CommandTimeout: 100 * time.Millisecond,
	}, discardLogger())
	ctx := context.Background()

	if _, err := m.Ensure(ctx); err == nil {
		t.Fatal("first Ensure should fail")
	}
	// The second attempt arrives inside the reconnect budget.
	_, err := m.Ensure(ctx)
	if !errors.Is(err, ErrReconnectThrottled) {
		t.Fatalf("err = %v, want ErrReconnectThrottled", err)
	}
}

func TestDisconnectWithoutConnect(t *testing.T) {
	m := New(&config.Config{RedisAddr: "localhost:6379"}, discardLogger())
	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("State = %v, want disconnected", m.State())
	}
}

func TestEnsureAgainstLiveBackend(t *testing.T) {
	m := New(&config.Config{
		RedisAddr:      "127.0.0.1:6379",
		DialTimeout:    time.Second,
		CommandTimeout: time.Second,
	}, discardLogger())
	ctx := context.Background()

	client, err := m.Ensure(ctx)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	if m.State() != StateReady {
		t.Fatalf("State = %v, want ready", m.State())
	}

	// Ensure while ready reuses the client without another dial.
	again, err := m.Ensure(ctx)
	if err != nil {
		t.Fatalf("second Ensure: %v", err)
	}
	if again != client {
		t.Fatal("Ensure should reuse the connected client")
	}

	if err := m.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if m.State() != StateDisconnected {
		t.Errorf("State after Disconnect = %v", m.State())
	}
}
