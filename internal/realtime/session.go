package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zyrolabs/zyro/internal/events"
)

// State is the lifecycle state of a connection session.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Transport is the wire half of a session. Implementations must be safe
// for use from the session's single writer goroutine; they are never
// called concurrently.
type Transport interface {
	// WriteEnvelope sends one envelope to the client.
	WriteEnvelope(env *events.Envelope) error
	// Ping sends a liveness probe. Transports without a ping frame
	// (e.g. SSE) send a comment line instead.
	Ping() error
	// Close tears down the underlying connection.
	Close() error
}

// SessionConfig bounds a session's queue and heartbeat cycle.
type SessionConfig struct {
	// QueueSize is the outbound envelope queue bound. When the queue is
	// full the session is forcibly closed. Default 256.
	QueueSize int

	// HeartbeatInterval is how often a ping is sent while Open.
	// Default 25s.
	HeartbeatInterval time.Duration

	// MissedLimit is how many heartbeat intervals may pass without any
	// inbound traffic before the session is considered dead. Default 3.
	MissedLimit int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.MissedLimit <= 0 {
		c.MissedLimit = 3
	}
	return c
}

// Session wraps one live client connection. Envelopes are queued per
// session and written by a single goroutine; inbound control messages
// are processed one at a time by the transport's read loop, which calls
// Touch for every inbound frame so heartbeat timeouts observe traffic.
type Session struct {
	ID     string
	UserID string

	cfg       SessionConfig
	transport Transport
	queue     chan *events.Envelope

	state       atomic.Int32
	lastInbound atomic.Int64 // unix nanos of last inbound frame

	done      chan struct{}
	closeOnce sync.Once

	// onClose runs exactly once after the session reaches Closed.
	// The server wires it to Registry.UnsubscribeAll.
	onClose func(*Session)
}

// NewSession creates a session in the Connecting state. Call Open once
// the transport handshake has completed.
func NewSession(id, userID string, transport Transport, cfg SessionConfig, onClose func(*Session)) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		ID:        id,
		UserID:    userID,
		cfg:       cfg,
		transport: transport,
		queue:     make(chan *events.Envelope, cfg.QueueSize),
		done:      make(chan struct{}),
		onClose:   onClose,
	}
	s.state.Store(int32(StateConnecting))
	s.lastInbound.Store(time.Now().UnixNano())
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Open transitions Connecting -> Open and starts the writer goroutine,
// which owns the transport and runs the heartbeat cycle.
func (s *Session) Open() {
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return
	}
	go s.writeLoop()
}

// Touch records inbound traffic (a pong or a control message) so the
// heartbeat timeout does not fire on an active connection.
func (s *Session) Touch() {
	s.lastInbound.Store(time.Now().UnixNano())
}

// Enqueue queues an envelope for delivery. It never blocks: a full
// queue means the client is not draining, and the session is forcibly
// closed rather than allowed to grow unbounded.
func (s *Session) Enqueue(env *events.Envelope) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}
	select {
	case s.queue <- env:
		return nil
	default:
		slog.Warn("realtime: session backpressure, closing",
			"connection_id", s.ID, "queue_size", s.cfg.QueueSize)
		s.Close()
		return ErrBackpressure
	}
}

// Close tears the session down. Safe to call from any goroutine and any
// state; the first call wins and the rest are no-ops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))
		close(s.done)
		_ = s.transport.Close()
		s.state.Store(int32(StateClosed))
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// writeLoop is the single writer for the transport: it drains the
// outbound queue and runs the heartbeat cycle until the session closes.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	deadline := time.Duration(s.cfg.MissedLimit) * s.cfg.HeartbeatInterval

	for {
		select {
		case <-s.done:
			return
		case env := <-s.queue:
			if err := s.transport.WriteEnvelope(env); err != nil {
				slog.Debug("realtime: transport write failed",
					"connection_id", s.ID, "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			idle := time.Since(time.Unix(0, s.lastInbound.Load()))
			if idle > deadline {
				slog.Info("realtime: heartbeat timeout",
					"connection_id", s.ID, "idle", idle)
				s.Close()
				return
			}
			if err := s.transport.Ping(); err != nil {
				s.Close()
				return
			}
		}
	}
}
