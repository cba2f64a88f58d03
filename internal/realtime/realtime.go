// Package realtime implements the live event fan-out layer: a registry
// of per-project subscriptions, a broker that turns committed domain
// mutations into Event Envelopes and delivers them to every subscribed
// connection, and a connection session that handles heartbeats,
// backpressure, and teardown independently of any particular transport.
package realtime

import "errors"

var (
	// ErrAuthorizationDenied is returned by Registry.Subscribe when the
	// caller-supplied authorization check fails. It is reported to the
	// requesting client only; the connection stays open.
	ErrAuthorizationDenied = errors.New("realtime: authorization denied")

	// ErrSessionClosed is returned by Session.Enqueue after the session
	// has left the Open state.
	ErrSessionClosed = errors.New("realtime: session closed")

	// ErrBackpressure is returned by Session.Enqueue when the outbound
	// queue is full. The session is forcibly closed: bounded memory wins
	// over delivery to a client that is not draining.
	ErrBackpressure = errors.New("realtime: outbound queue full")
)
