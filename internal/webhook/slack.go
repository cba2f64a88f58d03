package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/zyrolabs/zyro/internal/events"
)

// SlackNormalizer translates Slack Events API payloads into normalized
// commands. A message posted in a project-linked channel becomes a
// comment on the project's feed; everything else is acknowledged and
// ignored.
type SlackNormalizer struct{}

type slackEnvelope struct {
	Type      string          `json:"type"`
	EventID   string          `json:"event_id"`
	Challenge string          `json:"challenge"`
	Event     json.RawMessage `json:"event"`
}

type slackMessageEvent struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	TS      string `json:"ts"`
	BotID   string `json:"bot_id"`
}

// SlackDeliveryID extracts the provider delivery id (event_id) from a
// raw Events API body. Slack carries the id in the body, not a header,
// so dedup reservation for Slack follows the signature check.
func SlackDeliveryID(body []byte) (string, error) {
	var env slackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", malformed("parsing slack envelope: %v", err)
	}
	if env.EventID == "" {
		return "", malformed("slack envelope missing event_id")
	}
	return env.EventID, nil
}

// SlackChallenge returns the url_verification challenge string when the
// body is a verification handshake, or "" otherwise.
func SlackChallenge(body []byte) string {
	var env slackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Type == "url_verification" {
		return env.Challenge
	}
	return ""
}

// Normalize implements Normalizer for Slack Events API callbacks. The
// eventType argument is unused: Slack carries the type in the body.
func (SlackNormalizer) Normalize(_ string, body []byte) (*NormalizedCommand, error) {
	var env slackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, malformed("parsing slack envelope: %v", err)
	}
	if env.Type != "event_callback" || len(env.Event) == 0 {
		return &NormalizedCommand{Action: ActionNone}, nil
	}

	var msg slackMessageEvent
	if err := json.Unmarshal(env.Event, &msg); err != nil {
		return nil, malformed("parsing slack event: %v", err)
	}
	// Only plain user messages become comments; bot echoes and message
	// edits/deletes (subtypes) are ignored.
	if msg.Type != "message" || msg.Subtype != "" || msg.BotID != "" {
		return &NormalizedCommand{Action: ActionNone}, nil
	}
	if msg.Channel == "" || msg.Text == "" || msg.TS == "" {
		return nil, malformed("slack message missing channel, text, or ts")
	}

	return &NormalizedCommand{
		Action:      ActionCreate,
		EntityKind:  events.KindComment,
		ExternalRef: fmt.Sprintf("slack:%s:%s", msg.Channel, msg.TS),
		ChannelID:   msg.Channel,
		Fields: map[string]any{
			"content": msg.Text,
		},
		ActorLogin: msg.User,
	}, nil
}
