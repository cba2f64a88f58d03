package model

import (
	"encoding/json"
	"time"
)

// EventRecord is a persisted event, mirroring what is fanned out to
// realtime subscribers and published to NATS.
type EventRecord struct {
	ID        int64           `json:"id"`
	Topic     string          `json:"topic"`
	ProjectID string          `json:"project_id"`
	EntityID  string          `json:"entity_id"`
	Actor     string          `json:"actor,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
