// Package server is the HTTP surface of zyrod: REST CRUD for projects,
// issues, sprints, comments and attachments, webhook ingestion
// endpoints, and the realtime fan-out endpoints (WebSocket and SSE).
package server

import (
	"context"
	"encoding/json"

	"github.com/zyrolabs/zyro/internal/auth"
	"github.com/zyrolabs/zyro/internal/dedup"
	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/realtime"
	"github.com/zyrolabs/zyro/internal/store"
	"github.com/zyrolabs/zyro/internal/webhook"
)

// ZyroServer holds the wiring shared by every handler.
type ZyroServer struct {
	store      store.Store
	broker     *realtime.Broker
	registry   *realtime.Registry
	ingestor   *webhook.Ingestor
	identity   *auth.Identity
	sessionCfg realtime.SessionConfig
}

// Options carries the optional collaborators for NewZyroServer.
type Options struct {
	Publisher  events.Publisher
	Identity   *auth.Identity
	Secrets    webhook.Secrets
	Deliveries dedup.Store
	SessionCfg realtime.SessionConfig
}

// NewZyroServer wires the server. The registry and broker are created
// here so the REST handlers and the webhook applier share one fan-out
// path.
func NewZyroServer(s store.Store, opts Options) *ZyroServer {
	registry := realtime.NewRegistry()
	srv := &ZyroServer{
		store:      s,
		registry:   registry,
		broker:     realtime.NewBroker(registry, s, opts.Publisher),
		identity:   opts.Identity,
		sessionCfg: opts.SessionCfg,
	}
	if opts.Deliveries != nil {
		srv.ingestor = webhook.NewIngestor(opts.Deliveries, opts.Secrets, &applier{srv: srv})
	}
	return srv
}

// Broker exposes the fan-out broker for callers that publish mutations
// from outside the HTTP surface.
func (s *ZyroServer) Broker() *realtime.Broker { return s.broker }

// Registry exposes the subscription registry for introspection.
func (s *ZyroServer) Registry() *realtime.Registry { return s.registry }

// inputError indicates invalid user input. Handlers map it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// publish hands one committed mutation to the broker.
func (s *ZyroServer) publish(ctx context.Context, eventType events.EventType, kind events.EntityKind, entityID, projectID, actorID string, entity any) {
	s.broker.Publish(ctx, realtime.Mutation{
		EventType:  eventType,
		EntityKind: kind,
		EntityID:   entityID,
		ProjectID:  projectID,
		ActorID:    actorID,
		Payload:    entityPayload(entity),
	})
}

// deletionMutation builds the broker mutation for one entity delete.
func deletionMutation(kind events.EntityKind, entityID, projectID, actorID string) realtime.Mutation {
	return realtime.Mutation{
		EventType:  events.EntityDeleted,
		EntityKind: kind,
		EntityID:   entityID,
		ProjectID:  projectID,
		ActorID:    actorID,
	}
}

// entityPayload renders an entity as the envelope payload map.
func entityPayload(entity any) map[string]any {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
