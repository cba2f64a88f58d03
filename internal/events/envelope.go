package events

import (
	"fmt"
	"time"
)

// EventType describes what happened to an entity.
type EventType string

const (
	EntityCreated EventType = "entity_created"
	EntityUpdated EventType = "entity_updated"
	EntityDeleted EventType = "entity_deleted"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks whether the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EntityCreated, EntityUpdated, EntityDeleted:
		return true
	}
	return false
}

// EntityKind names the domain entity an envelope is about.
type EntityKind string

const (
	KindIssue      EntityKind = "issue"
	KindProject    EntityKind = "project"
	KindSprint     EntityKind = "sprint"
	KindComment    EntityKind = "comment"
	KindAttachment EntityKind = "attachment"
)

// String returns the string representation of the entity kind.
func (k EntityKind) String() string {
	return string(k)
}

// IsValid checks whether the entity kind is a known value.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindIssue, KindProject, KindSprint, KindComment, KindAttachment:
		return true
	}
	return false
}

// Envelope describes one committed domain mutation. Envelopes are
// immutable once constructed: a later change to the same entity is a
// new envelope, never an edit of an old one. Every envelope carries
// exactly one ProjectID, which is the subscription routing key.
type Envelope struct {
	EventType  EventType      `json:"event_type"`
	EntityKind EntityKind     `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ProjectID  string         `json:"project_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Topic returns the NATS subject for the envelope:
// zyro.events.<project_id>.<entity_kind>.<created|updated|deleted>.
// The layout keeps per-project wildcard subscriptions cheap
// ("zyro.events.<id>.>").
func (e *Envelope) Topic() string {
	var action string
	switch e.EventType {
	case EntityCreated:
		action = "created"
	case EntityUpdated:
		action = "updated"
	case EntityDeleted:
		action = "deleted"
	default:
		action = "unknown"
	}
	return fmt.Sprintf("zyro.events.%s.%s.%s", e.ProjectID, e.EntityKind, action)
}

// ProjectTopic returns the wildcard subject matching every envelope for
// one project.
func ProjectTopic(projectID string) string {
	return fmt.Sprintf("zyro.events.%s.>", projectID)
}
