package model

import (
	"encoding/json"
	"time"
)

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectArchived  ProjectStatus = "archived"
	ProjectCompleted ProjectStatus = "completed"
)

// String returns the string representation of the project status.
func (s ProjectStatus) String() string {
	return string(s)
}

// IsValid checks whether the project status is a known value.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectActive, ProjectArchived, ProjectCompleted:
		return true
	}
	return false
}

// Project groups issues and sprints and is the routing scope for
// realtime subscriptions.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	CreatedBy   string        `json:"created_by,omitempty"`
	StartDate   *time.Time    `json:"start_date,omitempty"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Data holds free-form project settings (JSONB column). Integrations
	// store their linkage here: "github_repo" (owner/repo) and
	// "slack_channel" are the keys read by the webhook normalizers.
	Data json.RawMessage `json:"data,omitempty"`
}

// DataField returns a string value from the project's Data JSON, or ""
// when the key is absent or the data is not an object.
func (p *Project) DataField(key string) string {
	if len(p.Data) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(p.Data, &m); err != nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// ProjectMember records a user's membership in a project.
type ProjectMember struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
