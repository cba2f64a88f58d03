package store

import (
	"context"

	"github.com/zyrolabs/zyro/internal/model"
)

// Store defines the persistence interface consumed by the REST layer,
// the webhook pipeline, and the fan-out broker. Lookups return
// (nil, nil) when the record does not exist.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]*model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Integration routing: projects link a GitHub repository and a
	// Slack channel through keys in their data field.
	FindProjectByRepo(ctx context.Context, repoFullName string) (*model.Project, error)
	FindProjectByChannel(ctx context.Context, channelID string) (*model.Project, error)

	// Issues
	CreateIssue(ctx context.Context, issue *model.Issue) error
	GetIssue(ctx context.Context, id string) (*model.Issue, error)
	ListIssues(ctx context.Context, projectID string) ([]*model.Issue, error)
	UpdateIssue(ctx context.Context, issue *model.Issue) error
	DeleteIssue(ctx context.Context, id string) error
	FindIssueByExternalRef(ctx context.Context, projectID, externalRef string) (*model.Issue, error)

	// Sprints
	CreateSprint(ctx context.Context, sprint *model.Sprint) error
	GetSprint(ctx context.Context, id string) (*model.Sprint, error)
	ListSprints(ctx context.Context, projectID string) ([]*model.Sprint, error)
	UpdateSprint(ctx context.Context, sprint *model.Sprint) error
	DeleteSprint(ctx context.Context, id string) error

	// Comments
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, issueID string) ([]*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// Attachments (metadata only; blob storage is external)
	CreateAttachment(ctx context.Context, att *model.Attachment) error
	GetAttachment(ctx context.Context, id string) (*model.Attachment, error)
	ListAttachments(ctx context.Context, issueID string) ([]*model.Attachment, error)
	DeleteAttachment(ctx context.Context, id string) error

	// Users and membership
	GetUser(ctx context.Context, id string) (*model.User, error)
	FindUserByEmail(ctx context.Context, partial string) (*model.User, error)
	AddProjectMember(ctx context.Context, member *model.ProjectMember) error
	IsProjectMember(ctx context.Context, projectID, userID string) (bool, error)

	// Event feed
	RecordEvent(ctx context.Context, event *model.EventRecord) error
	ListEvents(ctx context.Context, projectID string, limit int) ([]*model.EventRecord, error)

	// Lifecycle
	Close() error
}
