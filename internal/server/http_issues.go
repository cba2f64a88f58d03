package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/idgen"
	"github.com/zyrolabs/zyro/internal/model"
	"github.com/zyrolabs/zyro/internal/realtime"
)

type createIssueInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Priority    string          `json:"priority"`
	SprintID    string          `json:"sprint_id"`
	StoryPoints int             `json:"story_points"`
	AssignedTo  string          `json:"assigned_to"`
	CreatedBy   string          `json:"created_by"`
	Data        json.RawMessage `json:"data"`
}

// handleCreateIssue handles POST /v1/projects/{id}/issues.
func (s *ZyroServer) handleCreateIssue(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var in createIssueInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	issueType := model.TypeTask
	if in.Type != "" {
		issueType = model.IssueType(in.Type)
		if !issueType.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid type %q", in.Type))
			return
		}
	}
	priority := model.PriorityModerate
	if in.Priority != "" {
		priority = model.Priority(in.Priority)
		if !priority.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid priority %q", in.Priority))
			return
		}
	}

	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	id, err := idgen.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}

	now := time.Now().UTC()
	issue := &model.Issue{
		ID:          id,
		ProjectID:   projectID,
		SprintID:    in.SprintID,
		Name:        in.Name,
		Description: in.Description,
		Type:        issueType,
		Status:      model.StatusTodo,
		Priority:    priority,
		StoryPoints: in.StoryPoints,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
		Data:        in.Data,
	}

	if err := s.store.CreateIssue(r.Context(), issue); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create issue")
		return
	}

	s.publish(r.Context(), events.EntityCreated, events.KindIssue, issue.ID, projectID, in.CreatedBy, issue)

	writeJSON(w, http.StatusCreated, issue)
}

// handleListIssues handles GET /v1/projects/{id}/issues.
func (s *ZyroServer) handleListIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := s.store.ListIssues(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list issues")
		return
	}
	if issues == nil {
		issues = []*model.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

// handleGetIssue handles GET /v1/issues/{id}.
func (s *ZyroServer) handleGetIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get issue")
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

type updateIssueInput struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Type        *string         `json:"type"`
	Status      *string         `json:"status"`
	Priority    *string         `json:"priority"`
	SprintID    *string         `json:"sprint_id"`
	StoryPoints *int            `json:"story_points"`
	AssignedTo  *string         `json:"assigned_to"`
	AssignedBy  *string         `json:"assigned_by"`
	Data        json.RawMessage `json:"data"`
	ActorID     string          `json:"actor_id"`
}

// handleUpdateIssue handles PATCH /v1/issues/{id}.
func (s *ZyroServer) handleUpdateIssue(w http.ResponseWriter, r *http.Request) {
	var in updateIssueInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	issue, err := s.store.GetIssue(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get issue")
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	if in.Name != nil {
		if *in.Name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		issue.Name = *in.Name
	}
	if in.Description != nil {
		issue.Description = *in.Description
	}
	if in.Type != nil {
		t := model.IssueType(*in.Type)
		if !t.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid type %q", *in.Type))
			return
		}
		issue.Type = t
	}
	if in.Status != nil {
		st := model.IssueStatus(*in.Status)
		if !st.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *in.Status))
			return
		}
		issue.Status = st
	}
	if in.Priority != nil {
		p := model.Priority(*in.Priority)
		if !p.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid priority %q", *in.Priority))
			return
		}
		issue.Priority = p
	}
	if in.SprintID != nil {
		issue.SprintID = *in.SprintID
	}
	if in.StoryPoints != nil {
		issue.StoryPoints = *in.StoryPoints
	}
	if in.AssignedTo != nil {
		issue.AssignedTo = *in.AssignedTo
	}
	if in.AssignedBy != nil {
		issue.AssignedBy = *in.AssignedBy
	}
	if in.Data != nil {
		issue.Data = in.Data
	}
	issue.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateIssue(r.Context(), issue); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update issue")
		return
	}

	s.publish(r.Context(), events.EntityUpdated, events.KindIssue, issue.ID, issue.ProjectID, in.ActorID, issue)

	writeJSON(w, http.StatusOK, issue)
}

// handleDeleteIssue handles DELETE /v1/issues/{id}. Comment and
// attachment deletion envelopes go out before the issue's own.
func (s *ZyroServer) handleDeleteIssue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	issue, err := s.store.GetIssue(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get issue")
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	comments, err := s.store.ListComments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	atts, err := s.store.ListAttachments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list attachments")
		return
	}

	if err := s.store.DeleteIssue(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete issue")
		return
	}

	actor := r.URL.Query().Get("actor_id")
	children := make([]realtime.Mutation, 0, len(comments)+len(atts))
	for _, c := range comments {
		children = append(children, deletionMutation(events.KindComment, c.ID, issue.ProjectID, actor))
	}
	for _, a := range atts {
		children = append(children, deletionMutation(events.KindAttachment, a.ID, issue.ProjectID, actor))
	}
	s.broker.PublishDeleteCascade(r.Context(),
		deletionMutation(events.KindIssue, id, issue.ProjectID, actor), children)

	w.WriteHeader(http.StatusNoContent)
}

type createSprintInput struct {
	Name      string     `json:"name"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	ActorID   string     `json:"actor_id"`
}

// handleCreateSprint handles POST /v1/projects/{id}/sprints.
func (s *ZyroServer) handleCreateSprint(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var in createSprintInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := s.store.GetProject(r.Context(), projectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	id, err := idgen.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}

	now := time.Now().UTC()
	sprint := &model.Sprint{
		ID:        id,
		ProjectID: projectID,
		Name:      in.Name,
		Status:    model.SprintPlanned,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateSprint(r.Context(), sprint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create sprint")
		return
	}

	s.publish(r.Context(), events.EntityCreated, events.KindSprint, sprint.ID, projectID, in.ActorID, sprint)

	writeJSON(w, http.StatusCreated, sprint)
}

// handleListSprints handles GET /v1/projects/{id}/sprints.
func (s *ZyroServer) handleListSprints(w http.ResponseWriter, r *http.Request) {
	sprints, err := s.store.ListSprints(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sprints")
		return
	}
	if sprints == nil {
		sprints = []*model.Sprint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sprints": sprints})
}

// handleGetSprint handles GET /v1/sprints/{id}.
func (s *ZyroServer) handleGetSprint(w http.ResponseWriter, r *http.Request) {
	sprint, err := s.store.GetSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get sprint")
		return
	}
	if sprint == nil {
		writeError(w, http.StatusNotFound, "sprint not found")
		return
	}
	writeJSON(w, http.StatusOK, sprint)
}

type updateSprintInput struct {
	Name      *string    `json:"name"`
	Status    *string    `json:"status"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	ActorID   string     `json:"actor_id"`
}

// handleUpdateSprint handles PATCH /v1/sprints/{id}.
func (s *ZyroServer) handleUpdateSprint(w http.ResponseWriter, r *http.Request) {
	var in updateSprintInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sprint, err := s.store.GetSprint(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get sprint")
		return
	}
	if sprint == nil {
		writeError(w, http.StatusNotFound, "sprint not found")
		return
	}

	if in.Name != nil {
		if *in.Name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		sprint.Name = *in.Name
	}
	if in.Status != nil {
		st := model.SprintStatus(*in.Status)
		if !st.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *in.Status))
			return
		}
		sprint.Status = st
	}
	if in.StartDate != nil {
		sprint.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		sprint.EndDate = in.EndDate
	}
	sprint.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateSprint(r.Context(), sprint); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update sprint")
		return
	}

	s.publish(r.Context(), events.EntityUpdated, events.KindSprint, sprint.ID, sprint.ProjectID, in.ActorID, sprint)

	writeJSON(w, http.StatusOK, sprint)
}

// handleDeleteSprint handles DELETE /v1/sprints/{id}.
func (s *ZyroServer) handleDeleteSprint(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sprint, err := s.store.GetSprint(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get sprint")
		return
	}
	if sprint == nil {
		writeError(w, http.StatusNotFound, "sprint not found")
		return
	}

	if err := s.store.DeleteSprint(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete sprint")
		return
	}

	s.publish(r.Context(), events.EntityDeleted, events.KindSprint, id, sprint.ProjectID,
		r.URL.Query().Get("actor_id"), nil)

	w.WriteHeader(http.StatusNoContent)
}

type createCommentInput struct {
	Content string `json:"content"`
	UserID  string `json:"user_id"`
}

// handleCreateComment handles POST /v1/issues/{id}/comments.
func (s *ZyroServer) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	issueID := r.PathValue("id")

	var in createCommentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	issue, err := s.store.GetIssue(r.Context(), issueID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get issue")
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	id, err := idgen.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}

	now := time.Now().UTC()
	comment := &model.Comment{
		ID:        id,
		IssueID:   issueID,
		ProjectID: issue.ProjectID,
		UserID:    in.UserID,
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateComment(r.Context(), comment); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create comment")
		return
	}

	s.publish(r.Context(), events.EntityCreated, events.KindComment, comment.ID, issue.ProjectID, in.UserID, comment)

	writeJSON(w, http.StatusCreated, comment)
}

// handleListComments handles GET /v1/issues/{id}/comments.
func (s *ZyroServer) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.store.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list comments")
		return
	}
	if comments == nil {
		comments = []*model.Comment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

// handleDeleteComment handles DELETE /v1/comments/{id}.
func (s *ZyroServer) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	comment, err := s.store.GetComment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get comment")
		return
	}
	if comment == nil {
		writeError(w, http.StatusNotFound, "comment not found")
		return
	}

	if err := s.store.DeleteComment(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete comment")
		return
	}

	s.publish(r.Context(), events.EntityDeleted, events.KindComment, id, comment.ProjectID,
		r.URL.Query().Get("actor_id"), nil)

	w.WriteHeader(http.StatusNoContent)
}

type createAttachmentInput struct {
	FileName   string `json:"file_name"`
	FileSize   int64  `json:"file_size"`
	FileType   string `json:"file_type"`
	FileURL    string `json:"file_url"`
	UploadedBy string `json:"uploaded_by"`
}

// handleCreateAttachment handles POST /v1/issues/{id}/attachments.
// Only metadata is stored; the blob lives in external storage.
func (s *ZyroServer) handleCreateAttachment(w http.ResponseWriter, r *http.Request) {
	issueID := r.PathValue("id")

	var in createAttachmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.FileName == "" {
		writeError(w, http.StatusBadRequest, "file_name is required")
		return
	}

	issue, err := s.store.GetIssue(r.Context(), issueID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get issue")
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	id, err := idgen.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}

	att := &model.Attachment{
		ID:         id,
		IssueID:    issueID,
		ProjectID:  issue.ProjectID,
		FileName:   in.FileName,
		FileSize:   in.FileSize,
		FileType:   in.FileType,
		FileURL:    in.FileURL,
		UploadedBy: in.UploadedBy,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.CreateAttachment(r.Context(), att); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create attachment")
		return
	}

	s.publish(r.Context(), events.EntityCreated, events.KindAttachment, att.ID, issue.ProjectID, in.UploadedBy, att)

	writeJSON(w, http.StatusCreated, att)
}

// handleListAttachments handles GET /v1/issues/{id}/attachments.
func (s *ZyroServer) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	atts, err := s.store.ListAttachments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list attachments")
		return
	}
	if atts == nil {
		atts = []*model.Attachment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"attachments": atts})
}

// handleDeleteAttachment handles DELETE /v1/attachments/{id}.
func (s *ZyroServer) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	att, err := s.store.GetAttachment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get attachment")
		return
	}
	if att == nil {
		writeError(w, http.StatusNotFound, "attachment not found")
		return
	}

	if err := s.store.DeleteAttachment(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete attachment")
		return
	}

	s.publish(r.Context(), events.EntityDeleted, events.KindAttachment, id, att.ProjectID,
		r.URL.Query().Get("actor_id"), nil)

	w.WriteHeader(http.StatusNoContent)
}
