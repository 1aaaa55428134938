// Package feed maintains the live pending-transaction subscription and hands
// every notification to the alert pipeline.
package feed

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mempool-sentinel/internal/observability"
)

// Default reconnect policy.
const (
	DefaultMaxAttempts = 10
	DefaultBaseDelay   = 1 * time.Second
)

// Conn is one established feed connection. Implemented by the ethereum
// WebSocket client once subscribed.
type Conn interface {
	// Hashes delivers pending transaction hashes.
	Hashes() <-chan string
	// Err reports the first fatal transport error.
	Err() <-chan error
	// Close tears the connection down.
	Close() error
}

// DialFunc establishes and subscribes one connection.
type DialFunc func(ctx context.Context) (Conn, error)

// Handler processes one pending transaction hash.
type Handler func(ctx context.Context, hash string)

// State of the connection state machine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

// String returns the state name for status reporting.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Options configures a Manager.
type Options struct {
	// Dial establishes a subscribed connection. Nil disables the feed:
	// Run logs once and returns immediately.
	Dial DialFunc

	// Handler receives every hash, invoked fire-and-forget with panic
	// isolation.
	Handler Handler

	// MaxAttempts bounds consecutive failed reconnects; 0 means the default.
	MaxAttempts int
	// BaseDelay scales the linear backoff: attempt N waits N x BaseDelay.
	BaseDelay time.Duration

	// Sleep is swappable for tests; defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error

	Logger *zap.Logger
}

// Manager owns the subscription lifecycle: an explicit
// disconnected/connecting/connected state machine with bounded linear
// retry. A failure in one pipeline invocation never affects the connection.
type Manager struct {
	dial        DialFunc
	handler     Handler
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *zap.Logger

	state atomic.Int32
}

// NewManager creates a feed manager.
func NewManager(opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepWithContext
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Manager{
		dial:        opts.Dial,
		handler:     opts.Handler,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	observability.SetFeedConnected(s == StateConnected)
}

// Run drives the subscription until ctx is cancelled or reconnect attempts
// are exhausted. Exhaustion leaves the feed down without crashing the
// process: Run logs at error level and returns nil.
func (m *Manager) Run(ctx context.Context) error {
	if m.dial == nil {
		m.logger.Info("no feed endpoint configured, pending-transaction feed disabled")
		return nil
	}

	attempt := 0
	for {
		if attempt > 0 {
			// Linear backoff: attempt N waits N x base delay.
			delay := time.Duration(attempt) * m.baseDelay
			m.logger.Info("feed reconnect scheduled",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			observability.RecordFeedReconnect()
			if err := m.sleep(ctx, delay); err != nil {
				m.setState(StateDisconnected)
				return nil
			}
		}

		m.setState(StateConnecting)
		conn, err := m.dial(ctx)
		if err != nil {
			attempt++
			m.logger.Warn("feed connect failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			if attempt > m.maxAttempts {
				m.setState(StateDisconnected)
				m.logger.Error("feed reconnect attempts exhausted, feed stays down",
					zap.Int("max_attempts", m.maxAttempts))
				return nil
			}
			continue
		}

		m.setState(StateConnected)
		m.logger.Info("feed connected")
		attempt = 0 // successful connection resets the retry budget

		if done := m.consume(ctx, conn); done {
			return nil
		}
		// Transport failure: fall through into the retry loop.
		attempt = 1
	}
}

// consume pumps one connection until it fails or ctx ends. Returns true when
// Run should exit.
func (m *Manager) consume(ctx context.Context, conn Conn) bool {
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return true

		case hash, ok := <-conn.Hashes():
			if !ok {
				m.setState(StateDisconnected)
				m.logger.Warn("feed hash channel closed")
				return false
			}
			observability.RecordNotification()
			go m.handle(ctx, hash)

		case err, ok := <-conn.Err():
			m.setState(StateDisconnected)
			if ok && err != nil {
				m.logger.Warn("feed connection lost", zap.Error(err))
			}
			return false
		}
	}
}

// handle runs one pipeline invocation with panic isolation.
func (m *Manager) handle(ctx context.Context, hash string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("pipeline run panicked",
				zap.String("tx_hash", hash),
				zap.Any("panic", r))
		}
	}()
	m.handler(ctx, hash)
}

// sleepWithContext waits for d or until ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
