package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zyrolabs/zyro/internal/dedup"
)

// Applier executes a normalized command against the domain model:
// resolving the target project, creating or updating the entity via the
// persistence layer, and handing the committed mutation to the fan-out
// broker. Implemented by the server.
type Applier interface {
	Apply(ctx context.Context, provider dedup.Provider, cmd *NormalizedCommand) error
}

// Secrets holds the per-provider shared webhook secrets, supplied at
// process start. A nil secret disables that provider.
type Secrets struct {
	GitHub []byte
	Slack  []byte
}

// Receipt summarizes the disposition of one delivery.
type Receipt struct {
	Provider   dedup.Provider `json:"provider"`
	DeliveryID string         `json:"delivery_id"`
	Outcome    dedup.Outcome  `json:"outcome"`
	Duplicate  bool           `json:"duplicate,omitempty"`
}

// Ingestor is the inbound pipeline: verify signature, dedup the
// delivery id, normalize the payload, record the outcome, apply.
// Signature verification and the dedup reservation for one delivery are
// strictly sequential; two concurrent deliveries with the same id
// cannot both pass the reservation.
type Ingestor struct {
	deliveries dedup.Store
	secrets    Secrets
	applier    Applier
	github     Normalizer
	slack      Normalizer
	now        func() time.Time
}

// NewIngestor wires the pipeline. deliveries and applier are required.
func NewIngestor(deliveries dedup.Store, secrets Secrets, applier Applier) *Ingestor {
	return &Ingestor{
		deliveries: deliveries,
		secrets:    secrets,
		applier:    applier,
		github:     GitHubNormalizer{},
		slack:      SlackNormalizer{},
		now:        time.Now,
	}
}

// Handle processes one inbound delivery. Error taxonomy:
// ErrInvalidSignature and ErrMalformedPayload are terminal 4xx;
// ErrDuplicateDelivery is a success no-op the HTTP layer maps to 2xx;
// anything else is a 5xx the provider will retry.
func (in *Ingestor) Handle(ctx context.Context, provider dedup.Provider, header http.Header, body []byte) (*Receipt, error) {
	switch provider {
	case dedup.ProviderGitHub:
		return in.handleGitHub(ctx, header, body)
	case dedup.ProviderSlack:
		return in.handleSlack(ctx, header, body)
	default:
		return nil, fmt.Errorf("webhook: unknown provider %q", provider)
	}
}

func (in *Ingestor) handleGitHub(ctx context.Context, header http.Header, body []byte) (*Receipt, error) {
	deliveryID := header.Get("X-GitHub-Delivery")

	// Signature first, before any parsing of the body.
	if !VerifyGitHubSignature(in.secrets.GitHub, body, header.Get("X-Hub-Signature-256")) {
		if deliveryID != "" {
			in.recordRejectedSignature(ctx, dedup.ProviderGitHub, deliveryID)
		}
		return nil, ErrInvalidSignature
	}

	if deliveryID == "" {
		return nil, malformed("missing X-GitHub-Delivery header")
	}

	return in.process(ctx, dedup.ProviderGitHub, deliveryID, in.github, header.Get("X-GitHub-Event"), body)
}

func (in *Ingestor) handleSlack(ctx context.Context, header http.Header, body []byte) (*Receipt, error) {
	ok := VerifySlackSignature(
		in.secrets.Slack,
		body,
		header.Get("X-Slack-Request-Timestamp"),
		header.Get("X-Slack-Signature"),
		in.now(),
	)
	if !ok {
		// Slack carries its delivery id in the body, which is not
		// parsed before the signature check, so there is nothing to
		// record against.
		return nil, ErrInvalidSignature
	}

	// The url_verification handshake is authenticated but is not a
	// delivery: no dedup, no command. The HTTP layer echoes the
	// challenge back.
	if SlackChallenge(body) != "" {
		return &Receipt{Provider: dedup.ProviderSlack, Outcome: dedup.OutcomeReceived}, nil
	}

	deliveryID, err := SlackDeliveryID(body)
	if err != nil {
		return nil, err
	}

	return in.process(ctx, dedup.ProviderSlack, deliveryID, in.slack, "", body)
}

func (in *Ingestor) process(ctx context.Context, provider dedup.Provider, deliveryID string, n Normalizer, eventType string, body []byte) (*Receipt, error) {
	fresh, prior, err := in.deliveries.Reserve(ctx, provider, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("reserving delivery: %w", err)
	}
	if !fresh {
		switch prior {
		case dedup.OutcomeApplied, dedup.OutcomeReceived, dedup.OutcomeIgnoredDuplicate:
			// Already accepted for processing (possibly still in
			// flight). The retry is a success no-op.
			return &Receipt{
				Provider:   provider,
				DeliveryID: deliveryID,
				Outcome:    dedup.OutcomeIgnoredDuplicate,
				Duplicate:  true,
			}, ErrDuplicateDelivery
		default:
			// The earlier attempt was rejected (bad signature or
			// malformed body); a well-formed resend is processed.
		}
	}

	cmd, err := n.Normalize(eventType, body)
	if err != nil {
		in.recordOutcome(ctx, provider, deliveryID, dedup.OutcomeRejectedMalformed)
		return nil, err
	}

	// Record applied before the downstream persistence call: the dedup
	// decision is "did we accept it for processing", not "did it fully
	// complete".
	if err := in.deliveries.SetOutcome(ctx, provider, deliveryID, dedup.OutcomeApplied); err != nil {
		return nil, fmt.Errorf("recording delivery outcome: %w", err)
	}

	if cmd.Action != ActionNone {
		if err := in.applier.Apply(ctx, provider, cmd); err != nil {
			return nil, fmt.Errorf("applying %s command: %w", cmd.Action, err)
		}
	}

	return &Receipt{
		Provider:   provider,
		DeliveryID: deliveryID,
		Outcome:    dedup.OutcomeApplied,
	}, nil
}

func (in *Ingestor) recordOutcome(ctx context.Context, provider dedup.Provider, deliveryID string, outcome dedup.Outcome) {
	if err := in.deliveries.SetOutcome(ctx, provider, deliveryID, outcome); err != nil {
		slog.Warn("failed to record delivery outcome",
			"provider", provider, "delivery_id", deliveryID, "error", err)
	}
}

// recordRejectedSignature records a signature failure without ever
// overwriting an existing record: an unauthenticated request must not
// be able to clobber the record of a legitimate delivery.
func (in *Ingestor) recordRejectedSignature(ctx context.Context, provider dedup.Provider, deliveryID string) {
	if _, found, err := in.deliveries.Outcome(ctx, provider, deliveryID); err != nil || found {
		return
	}
	in.recordOutcome(ctx, provider, deliveryID, dedup.OutcomeRejectedSignature)
}
