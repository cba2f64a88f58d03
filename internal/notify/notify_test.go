package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zyrolabs/zyro/internal/events"
)

// fakeSubscriber feeds raw payloads through an in-memory channel.
type fakeSubscriber struct {
	ch chan []byte
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan []byte, 16)}
}

func (s *fakeSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	return s.ch, func() {}, nil
}

func (s *fakeSubscriber) Close() error { return nil }

func (s *fakeSubscriber) emit(t *testing.T, env *events.Envelope) {
	t.Helper()
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	s.ch <- raw
}

// slackCapture records every webhook payload posted to it.
type slackCapture struct {
	mu     sync.Mutex
	bodies []message
}

func (c *slackCapture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.bodies = append(c.bodies, msg)
		c.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}
}

func (c *slackCapture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func (c *slackCapture) message(i int) message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodies[i]
}

func waitForPosts(t *testing.T, c *slackCapture, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d posts, got %d", want, c.count())
}

func startNotifier(t *testing.T, sub events.Subscriber, url string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	n := NewNotifier(sub, url)
	go func() {
		defer close(done)
		if err := n.Run(ctx); err != nil {
			t.Errorf("notifier run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func issueEnvelope(eventType events.EventType, payload map[string]any) *events.Envelope {
	return &events.Envelope{
		EventType:  eventType,
		EntityKind: events.KindIssue,
		EntityID:   "zy-i1",
		ProjectID:  "zy-p1",
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

func TestNotifierPostsIssueCreated(t *testing.T) {
	capture := &slackCapture{}
	srv := httptest.NewServer(capture.handler())
	defer srv.Close()

	sub := newFakeSubscriber()
	startNotifier(t, sub, srv.URL)

	sub.emit(t, issueEnvelope(events.EntityCreated, map[string]any{
		"name":     "Fix login crash",
		"status":   "todo",
		"priority": "high",
		"type":     "bug",
	}))
	waitForPosts(t, capture, 1)

	msg := capture.message(0)
	if msg.Username != "Zyro Bot" {
		t.Errorf("username = %q, want %q", msg.Username, "Zyro Bot")
	}
	if len(msg.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(msg.Blocks))
	}
	header := msg.Blocks[0]
	if header.Type != "header" || header.Text == nil {
		t.Fatalf("first block is not a header: %+v", header)
	}
	if !strings.HasSuffix(header.Text.Text, "New Issue Created") {
		t.Errorf("header = %q, want New Issue Created suffix", header.Text.Text)
	}
	section := msg.Blocks[1]
	if section.Type != "section" || len(section.Fields) != 4 {
		t.Fatalf("section fields = %d, want 4", len(section.Fields))
	}
	wantFields := []string{
		"*Issue:*\nFix login crash",
		"*Status:*\nTodo",
		"*Priority:*\nHigh",
		"*Type:*\nBug",
	}
	for i, want := range wantFields {
		if got := section.Fields[i].Text; got != want {
			t.Errorf("field[%d] = %q, want %q", i, got, want)
		}
	}
}

func TestNotifierRendersUpdateWithAssignee(t *testing.T) {
	capture := &slackCapture{}
	srv := httptest.NewServer(capture.handler())
	defer srv.Close()

	sub := newFakeSubscriber()
	startNotifier(t, sub, srv.URL)

	sub.emit(t, issueEnvelope(events.EntityUpdated, map[string]any{
		"name":        "Fix login crash",
		"status":      "in_progress",
		"priority":    "high",
		"type":        "bug",
		"assigned_to": "zy-u1",
	}))
	waitForPosts(t, capture, 1)

	msg := capture.message(0)
	header := msg.Blocks[0]
	if !strings.HasSuffix(header.Text.Text, "Issue Updated") {
		t.Errorf("header = %q, want Issue Updated suffix", header.Text.Text)
	}
	if !strings.HasPrefix(header.Text.Text, statusEmoji["in_progress"]) {
		t.Errorf("header = %q, want %q emoji prefix", header.Text.Text, statusEmoji["in_progress"])
	}
	section := msg.Blocks[1]
	if len(section.Fields) != 5 {
		t.Fatalf("section fields = %d, want 5", len(section.Fields))
	}
	if got, want := section.Fields[1].Text, "*Status:*\nIn Progress"; got != want {
		t.Errorf("status field = %q, want %q", got, want)
	}
	if got, want := section.Fields[4].Text, "*Assigned To:*\nzy-u1"; got != want {
		t.Errorf("assignee field = %q, want %q", got, want)
	}
}

func TestNotifierIgnoresNonIssueEnvelopes(t *testing.T) {
	capture := &slackCapture{}
	srv := httptest.NewServer(capture.handler())
	defer srv.Close()

	sub := newFakeSubscriber()
	startNotifier(t, sub, srv.URL)

	sub.emit(t, &events.Envelope{
		EventType:  events.EntityCreated,
		EntityKind: events.KindComment,
		EntityID:   "zy-c1",
		ProjectID:  "zy-p1",
	})
	sub.emit(t, issueEnvelope(events.EntityDeleted, nil))
	waitForPosts(t, capture, 1)

	if got := capture.count(); got != 1 {
		t.Fatalf("posts = %d, want 1", got)
	}
	header := capture.message(0).Blocks[0]
	if !strings.HasSuffix(header.Text.Text, "Issue Deleted") {
		t.Errorf("header = %q, want Issue Deleted suffix", header.Text.Text)
	}
}

func TestNotifierSurvivesDeliveryFailures(t *testing.T) {
	var calls int
	var mu sync.Mutex
	capture := &slackCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		fail := calls == 1
		mu.Unlock()
		if fail {
			http.Error(w, "channel_not_found", http.StatusNotFound)
			return
		}
		capture.handler()(w, r)
	}))
	defer srv.Close()

	sub := newFakeSubscriber()
	startNotifier(t, sub, srv.URL)

	sub.emit(t, issueEnvelope(events.EntityCreated, map[string]any{"name": "first"}))
	sub.emit(t, issueEnvelope(events.EntityCreated, map[string]any{"name": "second"}))
	waitForPosts(t, capture, 1)

	if got, want := capture.message(0).Blocks[1].Fields[0].Text, "*Issue:*\nsecond"; got != want {
		t.Errorf("surviving post = %q, want %q", got, want)
	}
}

func TestNotifierSkipsUndecodablePayloads(t *testing.T) {
	capture := &slackCapture{}
	srv := httptest.NewServer(capture.handler())
	defer srv.Close()

	sub := newFakeSubscriber()
	startNotifier(t, sub, srv.URL)

	sub.ch <- []byte("{not json")
	sub.emit(t, issueEnvelope(events.EntityCreated, map[string]any{"name": "ok"}))
	waitForPosts(t, capture, 1)

	if got := capture.count(); got != 1 {
		t.Fatalf("posts = %d, want 1", got)
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"todo":        "Todo",
		"in_progress": "In Progress",
		"qa":          "Qa",
		"":            "",
	}
	for in, want := range cases {
		if got := titleCase(in); got != want {
			t.Errorf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
