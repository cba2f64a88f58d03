// Package events defines the Event Envelope and the bus interfaces the
// fan-out broker mirrors envelopes onto. Browsers receive envelopes over
// the realtime channel; sidecar consumers (Slack notifier, external
// integrations) receive the same envelopes through a Subscriber.
package events

import "context"

// Publisher is the interface for emitting envelopes to the event bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers raw event payloads on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
