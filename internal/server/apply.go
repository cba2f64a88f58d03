package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zyrolabs/zyro/internal/dedup"
	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/idgen"
	"github.com/zyrolabs/zyro/internal/model"
	"github.com/zyrolabs/zyro/internal/webhook"
)

// applier executes normalized webhook commands against the store and
// hands the committed mutations to the broker.
type applier struct {
	srv *ZyroServer
}

func (a *applier) Apply(ctx context.Context, provider dedup.Provider, cmd *webhook.NormalizedCommand) error {
	project, err := a.resolveProject(ctx, cmd)
	if err != nil {
		return err
	}
	if project == nil {
		// No project links this repo or channel. The delivery is
		// acknowledged so the provider stops retrying.
		slog.Info("webhook delivery for unlinked source",
			"provider", provider, "repo", cmd.RepoFullName, "channel", cmd.ChannelID)
		return nil
	}

	switch cmd.EntityKind {
	case events.KindIssue:
		return a.applyIssue(ctx, project, cmd)
	case events.KindComment:
		return a.applyComment(ctx, project, cmd)
	default:
		slog.Info("webhook command for unhandled entity kind",
			"provider", provider, "entity_kind", cmd.EntityKind)
		return nil
	}
}

func (a *applier) resolveProject(ctx context.Context, cmd *webhook.NormalizedCommand) (*model.Project, error) {
	switch {
	case cmd.RepoFullName != "":
		return a.srv.store.FindProjectByRepo(ctx, cmd.RepoFullName)
	case cmd.ChannelID != "":
		return a.srv.store.FindProjectByChannel(ctx, cmd.ChannelID)
	default:
		return nil, nil
	}
}

// applyIssue upserts the issue linked by the command's external ref.
// Create of an existing ref and update of a missing ref both degrade to
// the operation that makes the projection converge, so provider
// redeliveries and unsynchronized histories stay safe to replay.
func (a *applier) applyIssue(ctx context.Context, project *model.Project, cmd *webhook.NormalizedCommand) error {
	existing, err := a.srv.store.FindIssueByExternalRef(ctx, project.ID, cmd.ExternalRef)
	if err != nil {
		return fmt.Errorf("finding issue by external ref: %w", err)
	}

	now := time.Now().UTC()
	if existing == nil {
		issue := &model.Issue{
			ProjectID:   project.ID,
			Type:        model.TypeTask,
			Status:      model.StatusTodo,
			Priority:    model.PriorityModerate,
			ExternalRef: cmd.ExternalRef,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		issue.ID, err = idgen.Generate()
		if err != nil {
			return fmt.Errorf("generating issue id: %w", err)
		}
		applyIssueFields(issue, cmd.Fields)
		a.resolveAssignee(ctx, issue, cmd)

		if err := a.srv.store.CreateIssue(ctx, issue); err != nil {
			return fmt.Errorf("creating issue: %w", err)
		}
		a.srv.publish(ctx, events.EntityCreated, events.KindIssue, issue.ID, project.ID, "", issue)
		return nil
	}

	applyIssueFields(existing, cmd.Fields)
	a.resolveAssignee(ctx, existing, cmd)
	existing.UpdatedAt = now

	if err := a.srv.store.UpdateIssue(ctx, existing); err != nil {
		return fmt.Errorf("updating issue: %w", err)
	}
	a.srv.publish(ctx, events.EntityUpdated, events.KindIssue, existing.ID, project.ID, "", existing)
	return nil
}

// applyIssueFields copies the normalized field map onto the issue.
func applyIssueFields(issue *model.Issue, fields map[string]any) {
	if v, ok := fields["name"].(string); ok && v != "" {
		issue.Name = v
	}
	if v, ok := fields["description"].(string); ok {
		issue.Description = v
	}
	if v, ok := fields["type"].(string); ok {
		if t := model.IssueType(v); t.IsValid() {
			issue.Type = t
		}
	}
	if v, ok := fields["status"].(string); ok {
		if st := model.IssueStatus(v); st.IsValid() {
			issue.Status = st
		}
	}
	if v, ok := fields["priority"].(string); ok {
		if p := model.Priority(v); p.IsValid() {
			issue.Priority = p
		}
	}
}

// resolveAssignee maps the provider-side actor to a local user by
// partial email match. Best-effort: an unresolvable actor never fails
// the command.
func (a *applier) resolveAssignee(ctx context.Context, issue *model.Issue, cmd *webhook.NormalizedCommand) {
	if issue.AssignedTo != "" {
		return
	}
	for _, needle := range []string{cmd.ActorEmail, cmd.ActorLogin} {
		if needle == "" {
			continue
		}
		user, err := a.srv.store.FindUserByEmail(ctx, needle)
		if err != nil {
			slog.Warn("assignee lookup failed", "needle", needle, "error", err)
			return
		}
		if user != nil {
			issue.AssignedTo = user.ID
			return
		}
	}
}

// applyComment attaches a chat message to the issue it mentions. A
// message that names no known issue is acknowledged without effect.
func (a *applier) applyComment(ctx context.Context, project *model.Project, cmd *webhook.NormalizedCommand) error {
	content, _ := cmd.Fields["content"].(string)
	if content == "" {
		return nil
	}

	issue, err := a.findMentionedIssue(ctx, project.ID, content)
	if err != nil {
		return fmt.Errorf("resolving mentioned issue: %w", err)
	}
	if issue == nil {
		slog.Info("chat message mentions no known issue",
			"project_id", project.ID, "external_ref", cmd.ExternalRef)
		return nil
	}

	id, err := idgen.Generate()
	if err != nil {
		return fmt.Errorf("generating comment id: %w", err)
	}
	now := time.Now().UTC()
	comment := &model.Comment{
		ID:        id,
		IssueID:   issue.ID,
		ProjectID: project.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := a.srv.store.CreateComment(ctx, comment); err != nil {
		return fmt.Errorf("creating comment: %w", err)
	}
	a.srv.publish(ctx, events.EntityCreated, events.KindComment, comment.ID, project.ID, "", comment)
	return nil
}

// findMentionedIssue scans the message for an issue ID token
// (idgen-prefixed) and looks it up within the project.
func (a *applier) findMentionedIssue(ctx context.Context, projectID, content string) (*model.Issue, error) {
	for _, tok := range strings.Fields(content) {
		tok = strings.Trim(tok, ".,:;!?()[]<>")
		if !strings.HasPrefix(tok, idgen.DefaultPrefix) {
			continue
		}
		issue, err := a.srv.store.GetIssue(ctx, tok)
		if err != nil {
			return nil, err
		}
		if issue != nil && issue.ProjectID == projectID {
			return issue, nil
		}
	}
	return nil, nil
}
