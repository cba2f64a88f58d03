package webhook

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zyrolabs/zyro/internal/dedup"
)

var (
	testGitHubSecret = []byte("gh-secret")
	testSlackSecret  = []byte("slack-secret")
)

// fakeApplier records applied commands.
type fakeApplier struct {
	mu   sync.Mutex
	cmds []*NormalizedCommand
	err  error
}

func (a *fakeApplier) Apply(_ context.Context, _ dedup.Provider, cmd *NormalizedCommand) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.cmds = append(a.cmds, cmd)
	return nil
}

func (a *fakeApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cmds)
}

func newTestIngestor() (*Ingestor, *dedup.Memory, *fakeApplier) {
	deliveries := dedup.NewMemory(time.Hour)
	applier := &fakeApplier{}
	in := NewIngestor(deliveries, Secrets{GitHub: testGitHubSecret, Slack: testSlackSecret}, applier)
	return in, deliveries, applier
}

func githubHeaders(deliveryID, eventType string, body []byte) http.Header {
	h := http.Header{}
	h.Set("X-GitHub-Delivery", deliveryID)
	h.Set("X-GitHub-Event", eventType)
	h.Set("X-Hub-Signature-256", githubSignature(testGitHubSecret, body))
	return h
}

func slackHeaders(body []byte, at time.Time) http.Header {
	ts := strconv.FormatInt(at.Unix(), 10)
	h := http.Header{}
	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", slackSignature(testSlackSecret, ts, body))
	return h
}

func TestIngestGitHubApplies(t *testing.T) {
	in, deliveries, applier := newTestIngestor()
	body := githubIssuePayload("opened", 1, "Crash", "open")

	receipt, err := in.Handle(t.Context(), dedup.ProviderGitHub, githubHeaders("d1", "issues", body), body)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if receipt.Outcome != dedup.OutcomeApplied || receipt.DeliveryID != "d1" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if applier.count() != 1 {
		t.Fatalf("expected 1 applied command, got %d", applier.count())
	}

	outcome, found, _ := deliveries.Outcome(t.Context(), dedup.ProviderGitHub, "d1")
	if !found || outcome != dedup.OutcomeApplied {
		t.Fatalf("outcome=%q found=%v", outcome, found)
	}
}

func TestIngestDuplicateDelivery(t *testing.T) {
	in, _, applier := newTestIngestor()
	body := githubIssuePayload("opened", 1, "Crash", "open")
	headers := githubHeaders("d1", "issues", body)

	if _, err := in.Handle(t.Context(), dedup.ProviderGitHub, headers, body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	receipt, err := in.Handle(t.Context(), dedup.ProviderGitHub, headers, body)
	if !errors.Is(err, ErrDuplicateDelivery) {
		t.Fatalf("expected ErrDuplicateDelivery, got %v", err)
	}
	if !receipt.Duplicate || receipt.Outcome != dedup.OutcomeIgnoredDuplicate {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if applier.count() != 1 {
		t.Fatalf("duplicate must not reapply, got %d applies", applier.count())
	}
}

func TestIngestConcurrentSameDelivery(t *testing.T) {
	in, _, applier := newTestIngestor()
	body := githubIssuePayload("opened", 1, "Crash", "open")
	headers := githubHeaders("d1", "issues", body)

	var dups atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := in.Handle(context.Background(), dedup.ProviderGitHub, headers, body)
			if errors.Is(err, ErrDuplicateDelivery) {
				dups.Add(1)
			}
		}()
	}
	wg.Wait()

	if applier.count() != 1 {
		t.Fatalf("expected exactly one apply, got %d", applier.count())
	}
	if dups.Load() != 7 {
		t.Fatalf("expected 7 duplicates, got %d", dups.Load())
	}
}

func TestIngestInvalidSignature(t *testing.T) {
	in, deliveries, applier := newTestIngestor()
	body := githubIssuePayload("opened", 1, "Crash", "open")
	headers := githubHeaders("d1", "issues", body)
	headers.Set("X-Hub-Signature-256", "sha256=0000")

	_, err := in.Handle(t.Context(), dedup.ProviderGitHub, headers, body)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if applier.count() != 0 {
		t.Fatal("rejected delivery must not be applied")
	}
	outcome, found, _ := deliveries.Outcome(t.Context(), dedup.ProviderGitHub, "d1")
	if !found || outcome != dedup.OutcomeRejectedSignature {
		t.Fatalf("outcome=%q found=%v", outcome, found)
	}

	// The rejection does not poison the id: a correctly signed resend
	// is processed.
	if _, err := in.Handle(t.Context(), dedup.ProviderGitHub, githubHeaders("d1", "issues", body), body); err != nil {
		t.Fatalf("legitimate resend: %v", err)
	}
	if applier.count() != 1 {
		t.Fatalf("expected 1 apply after resend, got %d", applier.count())
	}
}

func TestIngestSignatureRejectionCannotClobberAppliedRecord(t *testing.T) {
	in, deliveries, _ := newTestIngestor()
	body := githubIssuePayload("opened", 1, "Crash", "open")

	if _, err := in.Handle(t.Context(), dedup.ProviderGitHub, githubHeaders("d1", "issues", body), body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}

	// A forged request reusing the applied delivery id.
	headers := githubHeaders("d1", "issues", body)
	headers.Set("X-Hub-Signature-256", "sha256=0000")
	if _, err := in.Handle(t.Context(), dedup.ProviderGitHub, headers, body); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	outcome, _, _ := deliveries.Outcome(t.Context(), dedup.ProviderGitHub, "d1")
	if outcome != dedup.OutcomeApplied {
		t.Fatalf("applied record was clobbered: %q", outcome)
	}
}

func TestIngestMissingDeliveryID(t *testing.T) {
	in, _, _ := newTestIngestor()
	body := githubIssuePayload("opened", 1, "Crash", "open")
	headers := githubHeaders("", "issues", body)

	_, err := in.Handle(t.Context(), dedup.ProviderGitHub, headers, body)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestIngestMalformedBodyThenResend(t *testing.T) {
	in, deliveries, applier := newTestIngestor()

	bad := []byte(`{"action":"opened"}`)
	_, err := in.Handle(t.Context(), dedup.ProviderGitHub, githubHeaders("d1", "issues", bad), bad)
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected ErrMalformedPayload, got %v", err)
	}
	outcome, _, _ := deliveries.Outcome(t.Context(), dedup.ProviderGitHub, "d1")
	if outcome != dedup.OutcomeRejectedMalformed {
		t.Fatalf("outcome=%q", outcome)
	}

	good := githubIssuePayload("opened", 1, "Crash", "open")
	if _, err := in.Handle(t.Context(), dedup.ProviderGitHub, githubHeaders("d1", "issues", good), good); err != nil {
		t.Fatalf("well-formed resend: %v", err)
	}
	if applier.count() != 1 {
		t.Fatalf("expected 1 apply, got %d", applier.count())
	}
}

func TestIngestActionNoneSkipsApply(t *testing.T) {
	in, deliveries, applier := newTestIngestor()
	body := []byte(`{"repository":{"full_name":"acme/site"}}`)

	receipt, err := in.Handle(t.Context(), dedup.ProviderGitHub, githubHeaders("d1", "push", body), body)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if receipt.Outcome != dedup.OutcomeApplied {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if applier.count() != 0 {
		t.Fatal("push events must not reach the applier")
	}
	// The delivery is still recorded, so retries dedup.
	if _, found, _ := deliveries.Outcome(t.Context(), dedup.ProviderGitHub, "d1"); !found {
		t.Fatal("expected delivery record")
	}
}

func TestIngestApplierErrorPropagates(t *testing.T) {
	in, _, applier := newTestIngestor()
	applier.err = errors.New("store down")
	body := githubIssuePayload("opened", 1, "Crash", "open")

	_, err := in.Handle(t.Context(), dedup.ProviderGitHub, githubHeaders("d1", "issues", body), body)
	if err == nil || errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestIngestSlackMessage(t *testing.T) {
	in, _, applier := newTestIngestor()
	body := slackMessagePayload("C123", "U42", "shipping it", "1726000000.000100")

	receipt, err := in.Handle(t.Context(), dedup.ProviderSlack, slackHeaders(body, time.Now()), body)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if receipt.DeliveryID != "Ev123" || receipt.Outcome != dedup.OutcomeApplied {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if applier.count() != 1 {
		t.Fatalf("expected 1 apply, got %d", applier.count())
	}
}

func TestIngestSlackChallengeBypassesDedup(t *testing.T) {
	in, deliveries, applier := newTestIngestor()
	body := []byte(`{"type":"url_verification","challenge":"c1","event_id":"EvX"}`)

	receipt, err := in.Handle(t.Context(), dedup.ProviderSlack, slackHeaders(body, time.Now()), body)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if receipt.Outcome != dedup.OutcomeReceived {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if applier.count() != 0 {
		t.Fatal("handshake must not reach the applier")
	}
	if _, found, _ := deliveries.Outcome(t.Context(), dedup.ProviderSlack, "EvX"); found {
		t.Fatal("handshake must not consume a delivery record")
	}
}

func TestIngestSlackBadSignature(t *testing.T) {
	in, _, _ := newTestIngestor()
	body := slackMessagePayload("C123", "U42", "hello", "1.2")
	headers := slackHeaders(body, time.Now())
	headers.Set("X-Slack-Signature", "v0=0000")

	_, err := in.Handle(t.Context(), dedup.ProviderSlack, headers, body)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestIngestSlackStaleTimestamp(t *testing.T) {
	in, _, _ := newTestIngestor()
	body := slackMessagePayload("C123", "U42", "hello", "1.2")
	headers := slackHeaders(body, time.Now().Add(-10*time.Minute))

	_, err := in.Handle(t.Context(), dedup.ProviderSlack, headers, body)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for stale timestamp, got %v", err)
	}
}

func TestIngestUnknownProvider(t *testing.T) {
	in, _, _ := newTestIngestor()
	if _, err := in.Handle(t.Context(), dedup.Provider("gitlab"), http.Header{}, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
