package backup

import (
	"context"
	"sort"

	"github.com/zyrolabs/zyro/internal/model"
)

// mockStore is a minimal in-memory store for backup tests.
type mockStore struct {
	projects    map[string]*model.Project
	sprints     map[string]*model.Sprint
	issues      map[string]*model.Issue
	comments    map[string][]*model.Comment
	attachments map[string][]*model.Attachment
}

func newMockStore() *mockStore {
	return &mockStore{
		projects:    make(map[string]*model.Project),
		sprints:     make(map[string]*model.Sprint),
		issues:      make(map[string]*model.Issue),
		comments:    make(map[string][]*model.Comment),
		attachments: make(map[string][]*model.Attachment),
	}
}

func (m *mockStore) CreateProject(_ context.Context, p *model.Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	return m.projects[id], nil
}

func (m *mockStore) ListProjects(_ context.Context) ([]*model.Project, error) {
	var out []*model.Project
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) UpdateProject(_ context.Context, p *model.Project) error {
	m.projects[p.ID] = p
	return nil
}

func (m *mockStore) DeleteProject(_ context.Context, id string) error {
	delete(m.projects, id)
	return nil
}

func (m *mockStore) FindProjectByRepo(_ context.Context, _ string) (*model.Project, error) {
	return nil, nil
}

func (m *mockStore) FindProjectByChannel(_ context.Context, _ string) (*model.Project, error) {
	return nil, nil
}

func (m *mockStore) CreateIssue(_ context.Context, iss *model.Issue) error {
	m.issues[iss.ID] = iss
	return nil
}

func (m *mockStore) GetIssue(_ context.Context, id string) (*model.Issue, error) {
	return m.issues[id], nil
}

func (m *mockStore) ListIssues(_ context.Context, projectID string) ([]*model.Issue, error) {
	var out []*model.Issue
	for _, iss := range m.issues {
		if iss.ProjectID == projectID {
			out = append(out, iss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) UpdateIssue(_ context.Context, iss *model.Issue) error {
	m.issues[iss.ID] = iss
	return nil
}

func (m *mockStore) DeleteIssue(_ context.Context, id string) error {
	delete(m.issues, id)
	return nil
}

func (m *mockStore) FindIssueByExternalRef(_ context.Context, _, _ string) (*model.Issue, error) {
	return nil, nil
}

func (m *mockStore) CreateSprint(_ context.Context, sp *model.Sprint) error {
	m.sprints[sp.ID] = sp
	return nil
}

func (m *mockStore) GetSprint(_ context.Context, id string) (*model.Sprint, error) {
	return m.sprints[id], nil
}

func (m *mockStore) ListSprints(_ context.Context, projectID string) ([]*model.Sprint, error) {
	var out []*model.Sprint
	for _, sp := range m.sprints {
		if sp.ProjectID == projectID {
			out = append(out, sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) UpdateSprint(_ context.Context, sp *model.Sprint) error {
	m.sprints[sp.ID] = sp
	return nil
}

func (m *mockStore) DeleteSprint(_ context.Context, id string) error {
	delete(m.sprints, id)
	return nil
}

func (m *mockStore) CreateComment(_ context.Context, c *model.Comment) error {
	m.comments[c.IssueID] = append(m.comments[c.IssueID], c)
	return nil
}

func (m *mockStore) GetComment(_ context.Context, _ string) (*model.Comment, error) {
	return nil, nil
}

func (m *mockStore) ListComments(_ context.Context, issueID string) ([]*model.Comment, error) {
	return m.comments[issueID], nil
}

func (m *mockStore) DeleteComment(_ context.Context, _ string) error { return nil }

func (m *mockStore) CreateAttachment(_ context.Context, a *model.Attachment) error {
	m.attachments[a.IssueID] = append(m.attachments[a.IssueID], a)
	return nil
}

func (m *mockStore) GetAttachment(_ context.Context, _ string) (*model.Attachment, error) {
	return nil, nil
}

func (m *mockStore) ListAttachments(_ context.Context, issueID string) ([]*model.Attachment, error) {
	return m.attachments[issueID], nil
}

func (m *mockStore) DeleteAttachment(_ context.Context, _ string) error { return nil }

func (m *mockStore) GetUser(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockStore) FindUserByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockStore) AddProjectMember(_ context.Context, _ *model.ProjectMember) error { return nil }

func (m *mockStore) IsProjectMember(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

func (m *mockStore) RecordEvent(_ context.Context, _ *model.EventRecord) error { return nil }

func (m *mockStore) ListEvents(_ context.Context, _ string, _ int) ([]*model.EventRecord, error) {
	return nil, nil
}

func (m *mockStore) Close() error { return nil }
