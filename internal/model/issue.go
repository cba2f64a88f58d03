package model

import (
	"encoding/json"
	"time"
)

// IssueType categorizes the kind of work an issue represents.
type IssueType string

const (
	TypeTask    IssueType = "task"
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
)

// String returns the string representation of the issue type.
func (t IssueType) String() string {
	return string(t)
}

// IsValid checks whether the issue type is a known value.
func (t IssueType) IsValid() bool {
	switch t {
	case TypeTask, TypeBug, TypeFeature:
		return true
	}
	return false
}

// IssueStatus represents the current workflow state of an issue.
type IssueStatus string

const (
	StatusTodo       IssueStatus = "todo"
	StatusInProgress IssueStatus = "in_progress"
	StatusInReview   IssueStatus = "in_review"
	StatusQA         IssueStatus = "qa"
	StatusCompleted  IssueStatus = "completed"
	StatusBlocked    IssueStatus = "blocked"
	StatusCancelled  IssueStatus = "cancelled"
)

// String returns the string representation of the status.
func (s IssueStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s IssueStatus) IsValid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusQA,
		StatusCompleted, StatusBlocked, StatusCancelled:
		return true
	}
	return false
}

// Priority ranks how urgently an issue should be worked.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityModerate Priority = "moderate"
	PriorityHigh     Priority = "high"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid checks whether the priority is a known value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityModerate, PriorityHigh:
		return true
	}
	return false
}

// Issue is the core work-item record.
type Issue struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"project_id"`
	SprintID    string      `json:"sprint_id,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Type        IssueType   `json:"type"`
	Status      IssueStatus `json:"status"`
	Priority    Priority    `json:"priority"`
	StoryPoints int         `json:"story_points"`
	AssignedTo  string      `json:"assigned_to,omitempty"`
	AssignedBy  string      `json:"assigned_by,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// ExternalRef links an issue to a provider-side object, e.g.
	// "github#42" or "pr#17" for issues mirrored from GitHub.
	ExternalRef string `json:"external_ref,omitempty"`

	// Data holds free-form per-issue settings (JSONB column).
	Data json.RawMessage `json:"data,omitempty"`

	// Relational data -- populated by queries, not stored in the issues table.
	Comments    []*Comment    `json:"comments,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
}
