// Package dedup is the short-lived Delivery Record store that absorbs
// webhook provider retry storms. Records are kept for a bounded
// retention window (default 24h), long enough to recognize any retry a
// provider will send, then evicted.
package dedup

import (
	"context"
	"time"
)

// Provider identifies a webhook source.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderSlack  Provider = "slack"
)

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// Outcome is the terminal disposition of one webhook delivery.
type Outcome string

const (
	// OutcomeReceived marks a delivery that has been reserved for
	// processing but has no terminal outcome yet. A second identical
	// delivery arriving in this window is treated as a duplicate.
	OutcomeReceived Outcome = "received"

	OutcomeApplied           Outcome = "applied"
	OutcomeIgnoredDuplicate  Outcome = "ignored_duplicate"
	OutcomeRejectedSignature Outcome = "rejected_signature"
	OutcomeRejectedMalformed Outcome = "rejected_malformed"
)

// DefaultRetention is how long delivery records are kept.
const DefaultRetention = 24 * time.Hour

// Store records processed webhook delivery ids. Reserve must be atomic:
// of two concurrent calls for the same (provider, id), exactly one
// observes fresh=true.
type Store interface {
	// Reserve claims a delivery id with OutcomeReceived. When the id was
	// already present it returns fresh=false and the prior outcome.
	Reserve(ctx context.Context, provider Provider, deliveryID string) (fresh bool, prior Outcome, err error)

	// SetOutcome records the terminal outcome for a delivery.
	SetOutcome(ctx context.Context, provider Provider, deliveryID string, outcome Outcome) error

	// Outcome returns the recorded outcome, if any.
	Outcome(ctx context.Context, provider Provider, deliveryID string) (Outcome, bool, error)

	Close() error
}
