package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/model"
)

// GitHubNormalizer translates GitHub webhook payloads (issues,
// pull_request, push, release events) into normalized commands.
type GitHubNormalizer struct{}

type githubUser struct {
	Login string `json:"login"`
	Email string `json:"email"`
}

type githubLabel struct {
	Name string `json:"name"`
}

type githubRepo struct {
	FullName string `json:"full_name"`
}

type githubIssue struct {
	Number int           `json:"number"`
	Title  string        `json:"title"`
	Body   string        `json:"body"`
	State  string        `json:"state"`
	URL    string        `json:"html_url"`
	User   githubUser    `json:"user"`
	Labels []githubLabel `json:"labels"`
}

type githubPullRequest struct {
	Number int        `json:"number"`
	Title  string     `json:"title"`
	Body   string     `json:"body"`
	State  string     `json:"state"`
	Merged bool       `json:"merged"`
	URL    string     `json:"html_url"`
	User   githubUser `json:"user"`
}

type githubIssuesEvent struct {
	Action     string      `json:"action"`
	Issue      *githubIssue `json:"issue"`
	Repository githubRepo  `json:"repository"`
	Sender     githubUser  `json:"sender"`
}

type githubPREvent struct {
	Action      string             `json:"action"`
	PullRequest *githubPullRequest `json:"pull_request"`
	Repository  githubRepo         `json:"repository"`
	Sender      githubUser         `json:"sender"`
}

type githubAckEvent struct {
	Repository githubRepo `json:"repository"`
}

// Normalize implements Normalizer for GitHub event types.
func (GitHubNormalizer) Normalize(eventType string, body []byte) (*NormalizedCommand, error) {
	switch eventType {
	case "issues":
		return normalizeGitHubIssue(body)
	case "pull_request":
		return normalizeGitHubPR(body)
	case "push", "release":
		// Logged and acknowledged; no domain mutation.
		var ev githubAckEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, malformed("parsing %s event: %v", eventType, err)
		}
		return &NormalizedCommand{
			Action:       ActionNone,
			RepoFullName: ev.Repository.FullName,
		}, nil
	default:
		return &NormalizedCommand{Action: ActionNone}, nil
	}
}

func normalizeGitHubIssue(body []byte) (*NormalizedCommand, error) {
	var ev githubIssuesEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, malformed("parsing issues event: %v", err)
	}
	if ev.Issue == nil || ev.Repository.FullName == "" {
		return nil, malformed("issues event missing issue or repository")
	}

	status := model.StatusTodo
	if ev.Issue.State == "closed" {
		status = model.StatusCompleted
	}

	action := ActionUpdate
	if ev.Action == "opened" {
		action = ActionCreate
	}

	labels := make([]string, 0, len(ev.Issue.Labels))
	for _, l := range ev.Issue.Labels {
		labels = append(labels, l.Name)
	}

	text := ev.Issue.Body
	if text == "" {
		text = "No description provided"
	}
	description := fmt.Sprintf("GitHub Issue\n\n%s\n\nIssue URL: %s\nLabels: %s",
		text, ev.Issue.URL, labelList(labels))

	return &NormalizedCommand{
		Action:       action,
		EntityKind:   events.KindIssue,
		ExternalRef:  fmt.Sprintf("github#%d", ev.Issue.Number),
		RepoFullName: ev.Repository.FullName,
		Fields: map[string]any{
			"name":        fmt.Sprintf("GitHub Issue #%d: %s", ev.Issue.Number, ev.Issue.Title),
			"description": description,
			"type":        string(issueTypeFromLabels(labels)),
			"status":      string(status),
			"priority":    string(priorityFromLabels(labels)),
		},
		ActorLogin: ev.Sender.Login,
		ActorEmail: ev.Sender.Email,
	}, nil
}

func normalizeGitHubPR(body []byte) (*NormalizedCommand, error) {
	var ev githubPREvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, malformed("parsing pull_request event: %v", err)
	}
	if ev.PullRequest == nil || ev.Repository.FullName == "" {
		return nil, malformed("pull_request event missing pull_request or repository")
	}
	pr := ev.PullRequest

	cmd := &NormalizedCommand{
		EntityKind:   events.KindIssue,
		ExternalRef:  fmt.Sprintf("pr#%d", pr.Number),
		RepoFullName: ev.Repository.FullName,
		ActorLogin:   ev.Sender.Login,
		ActorEmail:   ev.Sender.Email,
	}

	fields := map[string]any{
		"name": fmt.Sprintf("PR #%d: %s", pr.Number, pr.Title),
		"description": fmt.Sprintf("GitHub Pull Request\n\n%s\n\nPR URL: %s",
			pr.Body, pr.URL),
		"type":     string(model.TypeTask),
		"priority": string(model.PriorityModerate),
	}

	switch {
	case ev.Action == "opened":
		cmd.Action = ActionCreate
		fields["status"] = string(model.StatusInProgress)
	case ev.Action == "closed" && pr.Merged:
		cmd.Action = ActionClose
		fields["status"] = string(model.StatusCompleted)
	case ev.Action == "closed":
		cmd.Action = ActionClose
		fields["status"] = string(model.StatusCancelled)
	default:
		cmd.Action = ActionUpdate
		if pr.State == "closed" {
			fields["status"] = string(model.StatusCompleted)
		} else {
			fields["status"] = string(model.StatusInProgress)
		}
	}
	cmd.Fields = fields
	return cmd, nil
}

// issueTypeFromLabels maps GitHub issue labels to an issue type:
// "bug" -> Bug, "feature" -> Feature, anything else -> Task.
// First matching label wins, like the label scan it mirrors.
func issueTypeFromLabels(labels []string) model.IssueType {
	for _, l := range labels {
		name := strings.ToLower(l)
		if strings.Contains(name, "bug") {
			return model.TypeBug
		}
		if strings.Contains(name, "feature") {
			return model.TypeFeature
		}
	}
	return model.TypeTask
}

// priorityFromLabels maps labels to a priority: "critical" or "high"
// -> High, "low" -> Low, anything else -> Moderate.
func priorityFromLabels(labels []string) model.Priority {
	for _, l := range labels {
		name := strings.ToLower(l)
		if strings.Contains(name, "critical") || strings.Contains(name, "high") {
			return model.PriorityHigh
		}
		if strings.Contains(name, "low") {
			return model.PriorityLow
		}
	}
	return model.PriorityModerate
}

func labelList(labels []string) string {
	if len(labels) == 0 {
		return "None"
	}
	return strings.Join(labels, ", ")
}
