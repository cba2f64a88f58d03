package model

import "time"

// SprintStatus represents the lifecycle state of a sprint.
type SprintStatus string

const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

// String returns the string representation of the sprint status.
func (s SprintStatus) String() string {
	return string(s)
}

// IsValid checks whether the sprint status is a known value.
func (s SprintStatus) IsValid() bool {
	switch s {
	case SprintPlanned, SprintActive, SprintCompleted:
		return true
	}
	return false
}

// Sprint is a time-boxed iteration within a project.
type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	Status    SprintStatus `json:"status"`
	StartDate *time.Time   `json:"start_date,omitempty"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
