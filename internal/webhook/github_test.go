package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/model"
)

func githubIssuePayload(action string, number int, title, state string, labels ...string) []byte {
	labelObjs := make([]map[string]string, 0, len(labels))
	for _, l := range labels {
		labelObjs = append(labelObjs, map[string]string{"name": l})
	}
	body, _ := json.Marshal(map[string]any{
		"action": action,
		"issue": map[string]any{
			"number":   number,
			"title":    title,
			"body":     "Steps to reproduce",
			"state":    state,
			"html_url": fmt.Sprintf("https://github.com/acme/site/issues/%d", number),
			"labels":   labelObjs,
		},
		"repository": map[string]any{"full_name": "acme/site"},
		"sender":     map[string]any{"login": "octocat", "email": "octo@example.com"},
	})
	return body
}

func githubPRPayload(action string, number int, merged bool, state string) []byte {
	body, _ := json.Marshal(map[string]any{
		"action": action,
		"pull_request": map[string]any{
			"number":   number,
			"title":    "Add caching",
			"body":     "Speeds things up",
			"state":    state,
			"merged":   merged,
			"html_url": fmt.Sprintf("https://github.com/acme/site/pull/%d", number),
		},
		"repository": map[string]any{"full_name": "acme/site"},
		"sender":     map[string]any{"login": "octocat"},
	})
	return body
}

func TestGitHubNormalizeIssue(t *testing.T) {
	for _, tc := range []struct {
		name         string
		action       string
		state        string
		labels       []string
		wantAction   Action
		wantType     model.IssueType
		wantStatus   model.IssueStatus
		wantPriority model.Priority
	}{
		{"Opened", "opened", "open", nil, ActionCreate, model.TypeTask, model.StatusTodo, model.PriorityModerate},
		{"OpenedBugLabel", "opened", "open", []string{"bug"}, ActionCreate, model.TypeBug, model.StatusTodo, model.PriorityModerate},
		{"OpenedFeatureLabel", "opened", "open", []string{"feature-request"}, ActionCreate, model.TypeFeature, model.StatusTodo, model.PriorityModerate},
		{"CriticalLabel", "opened", "open", []string{"critical"}, ActionCreate, model.TypeTask, model.StatusTodo, model.PriorityHigh},
		{"HighLabel", "opened", "open", []string{"high-priority"}, ActionCreate, model.TypeTask, model.StatusTodo, model.PriorityHigh},
		{"LowLabel", "opened", "open", []string{"low"}, ActionCreate, model.TypeTask, model.StatusTodo, model.PriorityLow},
		{"Edited", "edited", "open", nil, ActionUpdate, model.TypeTask, model.StatusTodo, model.PriorityModerate},
		{"Closed", "closed", "closed", nil, ActionUpdate, model.TypeTask, model.StatusCompleted, model.PriorityModerate},
		{"Reopened", "reopened", "open", nil, ActionUpdate, model.TypeTask, model.StatusTodo, model.PriorityModerate},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := GitHubNormalizer{}.Normalize("issues", githubIssuePayload(tc.action, 42, "Crash", tc.state, tc.labels...))
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if cmd.Action != tc.wantAction {
				t.Errorf("action = %s, want %s", cmd.Action, tc.wantAction)
			}
			if cmd.EntityKind != events.KindIssue {
				t.Errorf("entity kind = %s, want issue", cmd.EntityKind)
			}
			if cmd.ExternalRef != "github#42" {
				t.Errorf("external ref = %q", cmd.ExternalRef)
			}
			if cmd.RepoFullName != "acme/site" {
				t.Errorf("repo = %q", cmd.RepoFullName)
			}
			if got := cmd.Fields["type"]; got != string(tc.wantType) {
				t.Errorf("type = %v, want %s", got, tc.wantType)
			}
			if got := cmd.Fields["status"]; got != string(tc.wantStatus) {
				t.Errorf("status = %v, want %s", got, tc.wantStatus)
			}
			if got := cmd.Fields["priority"]; got != string(tc.wantPriority) {
				t.Errorf("priority = %v, want %s", got, tc.wantPriority)
			}
			if name, _ := cmd.Fields["name"].(string); !strings.Contains(name, "#42") {
				t.Errorf("name should carry the issue number: %q", name)
			}
			if cmd.ActorLogin != "octocat" || cmd.ActorEmail != "octo@example.com" {
				t.Errorf("unexpected actor: %q %q", cmd.ActorLogin, cmd.ActorEmail)
			}
		})
	}
}

func TestGitHubNormalizePullRequest(t *testing.T) {
	for _, tc := range []struct {
		name       string
		action     string
		merged     bool
		state      string
		wantAction Action
		wantStatus model.IssueStatus
	}{
		{"Opened", "opened", false, "open", ActionCreate, model.StatusInProgress},
		{"Merged", "closed", true, "closed", ActionClose, model.StatusCompleted},
		{"ClosedUnmerged", "closed", false, "closed", ActionClose, model.StatusCancelled},
		{"Synchronize", "synchronize", false, "open", ActionUpdate, model.StatusInProgress},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := GitHubNormalizer{}.Normalize("pull_request", githubPRPayload(tc.action, 17, tc.merged, tc.state))
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if cmd.Action != tc.wantAction {
				t.Errorf("action = %s, want %s", cmd.Action, tc.wantAction)
			}
			if cmd.ExternalRef != "pr#17" {
				t.Errorf("external ref = %q", cmd.ExternalRef)
			}
			if got := cmd.Fields["status"]; got != string(tc.wantStatus) {
				t.Errorf("status = %v, want %s", got, tc.wantStatus)
			}
		})
	}
}

func TestGitHubNormalizeAckEvents(t *testing.T) {
	for _, eventType := range []string{"push", "release"} {
		cmd, err := GitHubNormalizer{}.Normalize(eventType, []byte(`{"repository":{"full_name":"acme/site"}}`))
		if err != nil {
			t.Fatalf("%s: %v", eventType, err)
		}
		if cmd.Action != ActionNone {
			t.Errorf("%s: expected ActionNone, got %s", eventType, cmd.Action)
		}
	}

	// Unknown event types are acknowledged without parsing.
	cmd, err := GitHubNormalizer{}.Normalize("watch", []byte(`not even json`))
	if err != nil || cmd.Action != ActionNone {
		t.Fatalf("unknown event: cmd=%+v err=%v", cmd, err)
	}
}

func TestGitHubNormalizeMalformed(t *testing.T) {
	for _, tc := range []struct {
		name      string
		eventType string
		body      string
	}{
		{"IssuesBadJSON", "issues", `{`},
		{"IssuesMissingIssue", "issues", `{"action":"opened","repository":{"full_name":"a/b"}}`},
		{"IssuesMissingRepo", "issues", `{"action":"opened","issue":{"number":1}}`},
		{"PRBadJSON", "pull_request", `[`},
		{"PRMissingPR", "pull_request", `{"action":"opened","repository":{"full_name":"a/b"}}`},
		{"PushBadJSON", "push", `{`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GitHubNormalizer{}.Normalize(tc.eventType, []byte(tc.body))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}
