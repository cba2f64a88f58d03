// Package webhook is the inbound ingestion pipeline: it authenticates
// provider deliveries, deduplicates retries against the Delivery Record
// store, and normalizes provider payloads into provider-agnostic
// domain-mutation commands. Applying a command (and fanning the result
// out) is delegated to the caller.
package webhook

import (
	"errors"
	"fmt"

	"github.com/zyrolabs/zyro/internal/events"
)

var (
	// ErrInvalidSignature means the body HMAC did not match the
	// signature header. The request is rejected before any parsing.
	ErrInvalidSignature = errors.New("webhook: invalid signature")

	// ErrDuplicateDelivery means the delivery id was already accepted
	// for processing. Callers treat this as a success no-op: providers
	// expect 2xx for retries of applied deliveries.
	ErrDuplicateDelivery = errors.New("webhook: duplicate delivery")

	// ErrMalformedPayload means the body could not be parsed into a
	// normalized command. Terminal; providers must not retry.
	ErrMalformedPayload = errors.New("webhook: malformed payload")
)

// Action is the provider-agnostic mutation a webhook requests.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionClose  Action = "close"

	// ActionNone acknowledges an event that carries no domain mutation
	// (e.g. GitHub push and release events, which are logged only).
	ActionNone Action = "none"
)

// NormalizedCommand is the provider-agnostic description of one
// requested domain mutation, produced from a raw webhook payload.
type NormalizedCommand struct {
	Action     Action
	EntityKind events.EntityKind

	// ExternalRef links the provider object to a local entity:
	// "github#42" for GitHub issues, "pr#17" for pull requests,
	// "slack:<channel>:<ts>" for Slack messages.
	ExternalRef string

	// RepoFullName ("owner/repo") routes GitHub commands to the project
	// whose data field links that repository.
	RepoFullName string

	// ChannelID routes Slack commands to the project linked to that
	// channel.
	ChannelID string

	// Fields carries the mapped entity fields. For issues: name,
	// description, type, status, priority. For comments: content.
	Fields map[string]any

	// ActorLogin and ActorEmail identify the provider-side actor.
	// Assignee resolution is best-effort and never fails the command.
	ActorLogin string
	ActorEmail string
}

// Normalizer translates one provider's raw payloads into normalized
// commands. One variant per provider; selected by the ingestor.
type Normalizer interface {
	// Normalize parses a raw body for the given provider event type.
	// Errors wrap ErrMalformedPayload.
	Normalize(eventType string, body []byte) (*NormalizedCommand, error)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}
