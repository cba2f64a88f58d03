// Package notify mirrors issue activity from the event bus into a
// Slack channel through an incoming webhook. The notifier is a
// best-effort side channel: delivery failures are logged and never
// propagate back to the request that produced the event.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zyrolabs/zyro/internal/events"
)

// eventsTopic matches every envelope on the bus regardless of project.
const eventsTopic = "zyro.events.>"

const postTimeout = 10 * time.Second

// statusEmoji decorates message headers with the issue's workflow state.
var statusEmoji = map[string]string{
	"todo":        "\U0001F4CB",
	"in_progress": "\U0001F504",
	"in_review":   "\U0001F440",
	"qa":          "\U0001F9EA",
	"completed":   "✅",
	"blocked":     "\U0001F6AB",
}

// Notifier consumes envelopes from a Subscriber and posts Block Kit
// messages to a Slack incoming webhook.
type Notifier struct {
	sub        events.Subscriber
	webhookURL string
	client     *http.Client
	logger     *slog.Logger
}

func NewNotifier(sub events.Subscriber, webhookURL string) *Notifier {
	return &Notifier{
		sub:        sub,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: postTimeout},
		logger:     slog.Default().With("component", "notify"),
	}
}

// Run subscribes to the event bus and posts notifications until ctx is
// cancelled. It returns the subscription error, or nil on cancellation.
func (n *Notifier) Run(ctx context.Context) error {
	ch, cancel, err := n.sub.Subscribe(eventsTopic)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", eventsTopic, err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-ch:
			if !ok {
				return nil
			}
			var env events.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				n.logger.Warn("discarding undecodable envelope", "error", err)
				continue
			}
			msg := messageFor(&env)
			if msg == nil {
				continue
			}
			if err := n.post(ctx, msg); err != nil {
				n.logger.Warn("slack delivery failed",
					"topic", env.Topic(), "error", err)
			}
		}
	}
}

func (n *Notifier) post(ctx context.Context, msg *message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// message is a Slack incoming-webhook payload built from Block Kit
// blocks.
type message struct {
	Username string  `json:"username,omitempty"`
	Blocks   []block `json:"blocks"`
}

type block struct {
	Type   string `json:"type"`
	Text   *text  `json:"text,omitempty"`
	Fields []text `json:"fields,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// messageFor renders an envelope as a Slack message, or nil when the
// envelope is not worth announcing. Only issue activity is mirrored;
// comments, attachments and the other entity kinds stay in-app.
func messageFor(env *events.Envelope) *message {
	if env.EntityKind != events.KindIssue {
		return nil
	}

	switch env.EventType {
	case events.EntityCreated:
		return issueMessage(env, "New Issue Created")
	case events.EntityUpdated:
		return issueMessage(env, "Issue Updated")
	case events.EntityDeleted:
		return &message{
			Username: "Zyro Bot",
			Blocks: []block{
				headerBlock("\U0001F5D1 Issue Deleted"),
				{Type: "section", Text: &text{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Issue:*\n%s", env.EntityID),
				}},
			},
		}
	default:
		return nil
	}
}

func issueMessage(env *events.Envelope, title string) *message {
	status := payloadString(env.Payload, "status", "todo")
	emoji, ok := statusEmoji[status]
	if !ok {
		emoji = statusEmoji["todo"]
	}

	fields := []text{
		field("Issue", payloadString(env.Payload, "name", "Untitled")),
		field("Status", titleCase(status)),
		field("Priority", titleCase(payloadString(env.Payload, "priority", "moderate"))),
		field("Type", titleCase(payloadString(env.Payload, "type", "task"))),
	}
	if assignee := payloadString(env.Payload, "assigned_to", ""); assignee != "" {
		fields = append(fields, field("Assigned To", assignee))
	}

	return &message{
		Username: "Zyro Bot",
		Blocks: []block{
			headerBlock(emoji + " " + title),
			{Type: "section", Fields: fields},
		},
	}
}

func headerBlock(title string) block {
	return block{Type: "header", Text: &text{Type: "plain_text", Text: title}}
}

func field(label, value string) text {
	return text{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", label, value)}
}

func payloadString(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// titleCase renders snake_case enum values for humans: "in_progress"
// becomes "In Progress".
func titleCase(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
