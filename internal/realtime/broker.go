package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/model"
)

// Mutation describes one committed domain change. The REST layer and
// the webhook pipeline both hand mutations to the broker after the
// store write has succeeded.
type Mutation struct {
	EventType  events.EventType
	EntityKind events.EntityKind
	EntityID   string
	ProjectID  string
	Payload    map[string]any
	ActorID    string // empty for system-originated mutations
}

// EventRecorder persists envelopes for later REST catch-up. The broker
// treats recording as best-effort, like the rest of its side channels.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *model.EventRecord) error
}

// projectSeq serializes envelope construction and delivery for one
// project, which is what gives every subscriber the same relative
// order. last carries the monotonic occurred_at clamp.
type projectSeq struct {
	mu   sync.Mutex
	last time.Time
}

// Broker owns envelope construction and delivery sequencing. For each
// mutation it builds one immutable envelope, records it, mirrors it to
// the event bus, and delivers it to every registered session for the
// affected project. Delivery to each session is independent: a slow or
// dead session is dropped and never blocks the others.
type Broker struct {
	registry  *Registry
	recorder  EventRecorder
	publisher events.Publisher

	mu   sync.Mutex
	seqs map[string]*projectSeq
}

// NewBroker wires the broker to the registry it fans out through, the
// store it records envelopes in, and the bus it mirrors them to.
// recorder may be nil when persistence of the event feed is disabled.
func NewBroker(registry *Registry, recorder EventRecorder, publisher events.Publisher) *Broker {
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	return &Broker{
		registry:  registry,
		recorder:  recorder,
		publisher: publisher,
		seqs:      make(map[string]*projectSeq),
	}
}

func (b *Broker) seq(projectID string) *projectSeq {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.seqs[projectID]
	if !ok {
		s = &projectSeq{}
		b.seqs[projectID] = s
	}
	return s
}

// Publish fans one mutation out to the project's subscribers. Call it
// synchronously after the domain mutation has been durably committed.
func (b *Broker) Publish(ctx context.Context, m Mutation) {
	seq := b.seq(m.ProjectID)
	seq.mu.Lock()
	defer seq.mu.Unlock()
	b.emit(ctx, seq, m)
}

// PublishDeleteCascade emits the children's envelopes before the
// parent's, so subscribers never observe a reference to since-deleted
// data. All envelopes share one sequencing critical section, so no
// unrelated envelope for the project can interleave the cascade.
func (b *Broker) PublishDeleteCascade(ctx context.Context, parent Mutation, children []Mutation) {
	seq := b.seq(parent.ProjectID)
	seq.mu.Lock()
	defer seq.mu.Unlock()
	for _, c := range children {
		b.emit(ctx, seq, c)
	}
	b.emit(ctx, seq, parent)
}

// PublishCreateCascade emits the parent's envelope before the
// children's, so subscribers never observe a reference to
// not-yet-created data.
func (b *Broker) PublishCreateCascade(ctx context.Context, parent Mutation, children []Mutation) {
	seq := b.seq(parent.ProjectID)
	seq.mu.Lock()
	defer seq.mu.Unlock()
	b.emit(ctx, seq, parent)
	for _, c := range children {
		b.emit(ctx, seq, c)
	}
}

// emit builds the envelope and delivers it. Caller holds seq.mu; every
// step below is non-blocking (session enqueue never waits), so the lock
// is never held across a suspension point.
func (b *Broker) emit(ctx context.Context, seq *projectSeq, m Mutation) {
	now := time.Now().UTC()
	// occurred_at is monotonically non-decreasing per project even if
	// the wall clock steps backwards.
	if now.Before(seq.last) {
		now = seq.last
	}
	seq.last = now

	env := &events.Envelope{
		EventType:  m.EventType,
		EntityKind: m.EntityKind,
		EntityID:   m.EntityID,
		ProjectID:  m.ProjectID,
		Payload:    m.Payload,
		ActorID:    m.ActorID,
		OccurredAt: now,
	}

	b.record(ctx, env)

	if err := b.publisher.Publish(ctx, env.Topic(), env); err != nil {
		slog.Warn("failed to publish envelope",
			"topic", env.Topic(), "entity_id", env.EntityID, "error", err)
	}

	for _, sess := range b.registry.SubscribersOf(m.ProjectID) {
		if err := sess.Enqueue(env); err != nil {
			// The session is gone (closed transport or backpressure).
			// Treat it as an implicit disconnect and move on; this is
			// never a publish failure.
			b.registry.UnsubscribeAll(sess.ID)
			sess.Close()
		}
	}
}

// record persists the envelope as an event record. Best-effort:
// failures are logged, never surfaced to the caller.
func (b *Broker) record(ctx context.Context, env *events.Envelope) {
	if b.recorder == nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		slog.Warn("failed to marshal envelope", "topic", env.Topic(), "error", err)
		return
	}
	rec := &model.EventRecord{
		Topic:     env.Topic(),
		ProjectID: env.ProjectID,
		EntityID:  env.EntityID,
		Actor:     env.ActorID,
		Payload:   payload,
		CreatedAt: env.OccurredAt,
	}
	if err := b.recorder.RecordEvent(ctx, rec); err != nil {
		slog.Warn("failed to record envelope",
			"topic", env.Topic(), "entity_id", env.EntityID, "error", err)
	}
}
