// Package backend owns the process-wide connection to the shared Redis
// backend. The client is created lazily on first use and reused by every
// store; command failures never tear the connection down (the hybrid adapter
// decides fallback per operation), only an explicit Disconnect does.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/luminoboard/statelayer/config"
)

// State tracks the manager's connection lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "uninitialized"
	}
}

var (
	// ErrNoBackend is returned when no Redis address is configured.
	ErrNoBackend = errors.New("backend: no shared backend configured")
	// ErrReconnectThrottled is returned when a connect attempt arrives
	// while the reconnect budget is exhausted.
	ErrReconnectThrottled = errors.New("backend: reconnect attempts throttled")
)

// Manager lazily maintains a single shared Redis client.
type Manager struct {
	addr           string
	log            *slog.Logger
	reconnectRate  *rate.Limiter
	optionsFactory func() *redis.Options

	mu     sync.Mutex
	state  State
	client *redis.Client
}

// New builds a Manager from config. No connection is made until Ensure.
func New(cfg *config.Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		addr: cfg.RedisAddr,
		log:  log,
		// One connect attempt per second keeps an outage from turning
		// every request into a dial.
		reconnectRate: rate.NewLimiter(rate.Limit(1), 1),
		optionsFactory: func() *redis.Options {
			return &redis.Options{
				Addr:         cfg.RedisAddr,
				DialTimeout:  cfg.DialTimeout,
				ReadTimeout:  cfg.CommandTimeout,
				WriteTimeout: cfg.CommandTimeout,
			}
		},
	}
}

// Ensure returns a ready client, connecting lazily if needed. Concurrent
// callers share a single connect attempt under the lock.
func (m *Manager) Ensure(ctx context.Context) (*redis.Client, error) {
	if m.addr == "" {
		return nil, ErrNoBackend
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateReady && m.client != nil {
		return m.client, nil
	}

	if !m.reconnectRate.Allow() {
		return nil, ErrReconnectThrottled
	}

	m.state = StateConnecting
	client := redis.NewClient(m.optionsFactory())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		m.state = StateDisconnected
		return nil, fmt.Errorf("backend: connect %s: %w", m.addr, err)
	}

	m.log.Info("connected to shared backend", slog.String("addr", m.addr))
	m.client = client
	m.state = StateReady
	return client, nil
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Disconnect closes the client for graceful shutdown. Ensure may reconnect
// afterwards.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		m.state = StateDisconnected
		return nil
	}
	err := m.client.Close()
	m.client = nil
	m.state = StateDisconnected
	if err != nil {
		return fmt.Errorf("backend: close: %w", err)
	}
	return nil
}
