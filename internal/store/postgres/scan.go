package postgres

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/zyrolabs/zyro/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanProject scans a single row into a model.Project.
// The row must contain columns in the order defined by projectColumns.
func scanProject(row scannable) (*model.Project, error) {
	var p model.Project
	var (
		description sql.NullString
		createdBy   sql.NullString
		startDate   sql.NullTime
		endDate     sql.NullTime
		data        []byte
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&description,
		&p.Status,
		&createdBy,
		&startDate,
		&endDate,
		&p.CreatedAt,
		&p.UpdatedAt,
		&data,
	)
	if err != nil {
		return nil, err
	}

	p.Description = description.String
	p.CreatedBy = createdBy.String
	if startDate.Valid {
		t := startDate.Time
		p.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		p.EndDate = &t
	}
	if len(data) > 0 {
		p.Data = json.RawMessage(data)
	}

	return &p, nil
}

// scanIssue scans a single row into a model.Issue.
// The row must contain columns in the order defined by issueColumns.
func scanIssue(row scannable) (*model.Issue, error) {
	var i model.Issue
	var (
		sprintID    sql.NullString
		description sql.NullString
		assignedTo  sql.NullString
		assignedBy  sql.NullString
		createdBy   sql.NullString
		externalRef sql.NullString
		data        []byte
	)

	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&sprintID,
		&i.Name,
		&description,
		&i.Type,
		&i.Status,
		&i.Priority,
		&i.StoryPoints,
		&assignedTo,
		&assignedBy,
		&createdBy,
		&externalRef,
		&i.CreatedAt,
		&i.UpdatedAt,
		&data,
	)
	if err != nil {
		return nil, err
	}

	i.SprintID = sprintID.String
	i.Description = description.String
	i.AssignedTo = assignedTo.String
	i.AssignedBy = assignedBy.String
	i.CreatedBy = createdBy.String
	i.ExternalRef = externalRef.String
	if len(data) > 0 {
		i.Data = json.RawMessage(data)
	}

	return &i, nil
}

// scanSprint scans a single row into a model.Sprint.
func scanSprint(row scannable) (*model.Sprint, error) {
	var s model.Sprint
	var (
		startDate sql.NullTime
		endDate   sql.NullTime
	)

	err := row.Scan(
		&s.ID,
		&s.ProjectID,
		&s.Name,
		&s.Status,
		&startDate,
		&endDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startDate.Valid {
		t := startDate.Time
		s.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		s.EndDate = &t
	}

	return &s, nil
}

// scanComment scans a single row into a model.Comment.
func scanComment(row scannable) (*model.Comment, error) {
	var c model.Comment
	var userID sql.NullString

	err := row.Scan(
		&c.ID,
		&c.IssueID,
		&c.ProjectID,
		&userID,
		&c.Content,
		&c.Edited,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.UserID = userID.String
	return &c, nil
}

// scanAttachment scans a single row into a model.Attachment.
func scanAttachment(row scannable) (*model.Attachment, error) {
	var a model.Attachment
	var uploadedBy sql.NullString

	err := row.Scan(
		&a.ID,
		&a.IssueID,
		&a.ProjectID,
		&a.FileName,
		&a.FileSize,
		&a.FileType,
		&a.FileURL,
		&uploadedBy,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.UploadedBy = uploadedBy.String
	return &a, nil
}

// scanEvent scans a single row into a model.EventRecord.
func scanEvent(row scannable) (*model.EventRecord, error) {
	var e model.EventRecord
	var (
		actor   sql.NullString
		payload []byte
	)

	err := row.Scan(
		&e.ID,
		&e.Topic,
		&e.ProjectID,
		&e.EntityID,
		&actor,
		&payload,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}

	return &e, nil
}

// nullString converts an empty string to a NULL-able value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTimePtr converts a *time.Time to a NULL-able value.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// jsonbBytes returns nil for empty JSON so the column stores NULL.
func jsonbBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
