package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zyrolabs/zyro/internal/events"
	"github.com/zyrolabs/zyro/internal/idgen"
	"github.com/zyrolabs/zyro/internal/model"
	"github.com/zyrolabs/zyro/internal/realtime"
)

type createProjectInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CreatedBy   string          `json:"created_by"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	Data        json.RawMessage `json:"data"`
}

// handleCreateProject handles POST /v1/projects.
func (s *ZyroServer) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in createProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	id, err := idgen.Generate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate id")
		return
	}

	now := time.Now().UTC()
	project := &model.Project{
		ID:          id,
		Name:        in.Name,
		Description: in.Description,
		Status:      model.ProjectActive,
		CreatedBy:   in.CreatedBy,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Data:        in.Data,
	}

	if err := s.store.CreateProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	s.publish(r.Context(), events.EntityCreated, events.KindProject, project.ID, project.ID, in.CreatedBy, project)

	writeJSON(w, http.StatusCreated, project)
}

// handleListProjects handles GET /v1/projects.
func (s *ZyroServer) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

// handleGetProject handles GET /v1/projects/{id}.
func (s *ZyroServer) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

type updateProjectInput struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Status      *string         `json:"status"`
	StartDate   *time.Time      `json:"start_date"`
	EndDate     *time.Time      `json:"end_date"`
	Data        json.RawMessage `json:"data"`
	ActorID     string          `json:"actor_id"`
}

// handleUpdateProject handles PATCH /v1/projects/{id}.
func (s *ZyroServer) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var in updateProjectInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	project, err := s.store.GetProject(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	if in.Name != nil {
		if *in.Name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		project.Name = *in.Name
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.Status != nil {
		status := model.ProjectStatus(*in.Status)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", *in.Status))
			return
		}
		project.Status = status
	}
	if in.StartDate != nil {
		project.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		project.EndDate = in.EndDate
	}
	if in.Data != nil {
		project.Data = in.Data
	}
	project.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update project")
		return
	}

	s.publish(r.Context(), events.EntityUpdated, events.KindProject, project.ID, project.ID, in.ActorID, project)

	writeJSON(w, http.StatusOK, project)
}

// handleDeleteProject handles DELETE /v1/projects/{id}. The store
// cascades the row deletes; the broker emits deletion envelopes for
// every child before the project's own, so subscribers never hold a
// reference to data whose parent is already gone.
func (s *ZyroServer) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	project, err := s.store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project")
		return
	}
	if project == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}

	children, err := s.collectDeleteCascade(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to collect project children")
		return
	}

	if err := s.store.DeleteProject(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	actor := r.URL.Query().Get("actor_id")
	parent := realtime.Mutation{
		EventType:  events.EntityDeleted,
		EntityKind: events.KindProject,
		EntityID:   id,
		ProjectID:  id,
		ActorID:    actor,
	}
	for i := range children {
		children[i].ActorID = actor
	}
	s.broker.PublishDeleteCascade(r.Context(), parent, children)

	w.WriteHeader(http.StatusNoContent)
}

// collectDeleteCascade lists every child entity of a project as a
// deletion mutation, deepest entities first.
func (s *ZyroServer) collectDeleteCascade(ctx context.Context, projectID string) ([]realtime.Mutation, error) {
	issues, err := s.store.ListIssues(ctx, projectID)
	if err != nil {
		return nil, err
	}
	sprints, err := s.store.ListSprints(ctx, projectID)
	if err != nil {
		return nil, err
	}

	var children []realtime.Mutation
	deletion := func(kind events.EntityKind, entityID string) realtime.Mutation {
		return deletionMutation(kind, entityID, projectID, "")
	}

	for _, issue := range issues {
		comments, err := s.store.ListComments(ctx, issue.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range comments {
			children = append(children, deletion(events.KindComment, c.ID))
		}
		atts, err := s.store.ListAttachments(ctx, issue.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range atts {
			children = append(children, deletion(events.KindAttachment, a.ID))
		}
		children = append(children, deletion(events.KindIssue, issue.ID))
	}
	for _, sp := range sprints {
		children = append(children, deletion(events.KindSprint, sp.ID))
	}
	return children, nil
}

type addMemberInput struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// handleAddProjectMember handles POST /v1/projects/{id}/members.
func (s *ZyroServer) handleAddProjectMember(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var in addMemberInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
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

	member := &model.ProjectMember{
		ProjectID: projectID,
		UserID:    in.UserID,
		Role:      in.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddProjectMember(r.Context(), member); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add member")
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

// handleListEvents handles GET /v1/projects/{id}/events, the REST
// catch-up feed for clients resuming after a disconnect.
func (s *ZyroServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	evts, err := s.store.ListEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if evts == nil {
		evts = []*model.EventRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
