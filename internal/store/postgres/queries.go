package postgres

import (
	"context"
	"database/sql"

	"github.com/zyrolabs/zyro/internal/model"
)

// projectColumns is the column list used for SELECT statements on the projects table.
const projectColumns = `id, name, description, status, created_by,
	start_date, end_date, created_at, updated_at, data`

// issueColumns is the column list used for SELECT statements on the issues table.
const issueColumns = `id, project_id, sprint_id, name, description, type,
	status, priority, story_points, assigned_to, assigned_by, created_by,
	external_ref, created_at, updated_at, data`

// sprintColumns is the column list used for SELECT statements on the sprints table.
const sprintColumns = `id, project_id, name, status, start_date, end_date,
	created_at, updated_at`

// commentColumns is the column list used for SELECT statements on the comments table.
const commentColumns = `id, issue_id, project_id, user_id, content, edited,
	created_at, updated_at`

// attachmentColumns is the column list used for SELECT statements on the attachments table.
const attachmentColumns = `id, issue_id, project_id, file_name, file_size,
	file_type, file_url, uploaded_by, created_at`

// eventColumns is the column list used for SELECT statements on the events table.
const eventColumns = `id, topic, project_id, entity_id, actor, payload, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Projects

func queryCreateProject(ctx context.Context, db executor, p *model.Project) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO projects (
			id, name, description, status, created_by,
			start_date, end_date, created_at, updated_at, data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID,
		p.Name,
		p.Description,
		string(p.Status),
		nullString(p.CreatedBy),
		nullTimePtr(p.StartDate),
		nullTimePtr(p.EndDate),
		p.CreatedAt,
		p.UpdatedAt,
		jsonbBytes(p.Data),
	)
	return err
}

func queryGetProject(ctx context.Context, db executor, id string) (*model.Project, error) {
	row := db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func queryListProjects(ctx context.Context, db executor) ([]*model.Project, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func queryUpdateProject(ctx context.Context, db executor, p *model.Project) error {
	_, err := db.ExecContext(ctx, `
		UPDATE projects SET
			name = $2, description = $3, status = $4,
			start_date = $5, end_date = $6, updated_at = $7, data = $8
		WHERE id = $1`,
		p.ID,
		p.Name,
		p.Description,
		string(p.Status),
		nullTimePtr(p.StartDate),
		nullTimePtr(p.EndDate),
		p.UpdatedAt,
		jsonbBytes(p.Data),
	)
	return err
}

func queryDeleteProject(ctx context.Context, db executor, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return err
}

func queryFindProjectByDataField(ctx context.Context, db executor, field, value string) (*model.Project, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE data->>$1 = $2 LIMIT 1`,
		field, value)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// Issues

func queryCreateIssue(ctx context.Context, db executor, i *model.Issue) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO issues (
			id, project_id, sprint_id, name, description, type,
			status, priority, story_points, assigned_to, assigned_by, created_by,
			external_ref, created_at, updated_at, data
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)`,
		i.ID,
		i.ProjectID,
		nullString(i.SprintID),
		i.Name,
		i.Description,
		string(i.Type),
		string(i.Status),
		string(i.Priority),
		i.StoryPoints,
		nullString(i.AssignedTo),
		nullString(i.AssignedBy),
		nullString(i.CreatedBy),
		nullString(i.ExternalRef),
		i.CreatedAt,
		i.UpdatedAt,
		jsonbBytes(i.Data),
	)
	return err
}

func queryGetIssue(ctx context.Context, db executor, id string) (*model.Issue, error) {
	row := db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, id)
	i, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return i, err
}

func queryListIssues(ctx context.Context, db executor, projectID string) ([]*model.Issue, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE project_id = $1 ORDER BY created_at`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []*model.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

func queryUpdateIssue(ctx context.Context, db executor, i *model.Issue) error {
	_, err := db.ExecContext(ctx, `
		UPDATE issues SET
			sprint_id = $2, name = $3, description = $4, type = $5,
			status = $6, priority = $7, story_points = $8,
			assigned_to = $9, assigned_by = $10, external_ref = $11,
			updated_at = $12, data = $13
		WHERE id = $1`,
		i.ID,
		nullString(i.SprintID),
		i.Name,
		i.Description,
		string(i.Type),
		string(i.Status),
		string(i.Priority),
		i.StoryPoints,
		nullString(i.AssignedTo),
		nullString(i.AssignedBy),
		nullString(i.ExternalRef),
		i.UpdatedAt,
		jsonbBytes(i.Data),
	)
	return err
}

func queryDeleteIssue(ctx context.Context, db executor, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	return err
}

func queryFindIssueByExternalRef(ctx context.Context, db executor, projectID, externalRef string) (*model.Issue, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+issueColumns+` FROM issues WHERE project_id = $1 AND external_ref = $2 LIMIT 1`,
		projectID, externalRef)
	i, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return i, err
}

// Sprints

func queryCreateSprint(ctx context.Context, db executor, s *model.Sprint) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sprints (
			id, project_id, name, status, start_date, end_date,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID,
		s.ProjectID,
		s.Name,
		string(s.Status),
		nullTimePtr(s.StartDate),
		nullTimePtr(s.EndDate),
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func queryGetSprint(ctx context.Context, db executor, id string) (*model.Sprint, error) {
	row := db.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = $1`, id)
	s, err := scanSprint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func queryListSprints(ctx context.Context, db executor, projectID string) ([]*model.Sprint, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+sprintColumns+` FROM sprints WHERE project_id = $1 ORDER BY created_at`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sprints []*model.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, s)
	}
	return sprints, rows.Err()
}

func queryUpdateSprint(ctx context.Context, db executor, s *model.Sprint) error {
	_, err := db.ExecContext(ctx, `
		UPDATE sprints SET
			name = $2, status = $3, start_date = $4, end_date = $5, updated_at = $6
		WHERE id = $1`,
		s.ID,
		s.Name,
		string(s.Status),
		nullTimePtr(s.StartDate),
		nullTimePtr(s.EndDate),
		s.UpdatedAt,
	)
	return err
}

func queryDeleteSprint(ctx context.Context, db executor, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sprints WHERE id = $1`, id)
	return err
}

// Comments

func queryCreateComment(ctx context.Context, db executor, c *model.Comment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO comments (
			id, issue_id, project_id, user_id, content, edited,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID,
		c.IssueID,
		c.ProjectID,
		nullString(c.UserID),
		c.Content,
		c.Edited,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func queryGetComment(ctx context.Context, db executor, id string) (*model.Comment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	c, err := scanComment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func queryListComments(ctx context.Context, db executor, issueID string) ([]*model.Comment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE issue_id = $1 ORDER BY created_at`,
		issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func queryDeleteComment(ctx context.Context, db executor, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return err
}

// Attachments

func queryCreateAttachment(ctx context.Context, db executor, a *model.Attachment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO attachments (
			id, issue_id, project_id, file_name, file_size,
			file_type, file_url, uploaded_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID,
		a.IssueID,
		a.ProjectID,
		a.FileName,
		a.FileSize,
		a.FileType,
		a.FileURL,
		nullString(a.UploadedBy),
		a.CreatedAt,
	)
	return err
}

func queryGetAttachment(ctx context.Context, db executor, id string) (*model.Attachment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = $1`, id)
	a, err := scanAttachment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func queryListAttachments(ctx context.Context, db executor, issueID string) ([]*model.Attachment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE issue_id = $1 ORDER BY created_at`,
		issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var atts []*model.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

func queryDeleteAttachment(ctx context.Context, db executor, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	return err
}

// Users and membership

func queryGetUser(ctx context.Context, db executor, id string) (*model.User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = $1`, id)
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func queryFindUserByEmail(ctx context.Context, db executor, partial string) (*model.User, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE email ILIKE '%' || $1 || '%' LIMIT 1`,
		partial)
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func queryAddProjectMember(ctx context.Context, db executor, m *model.ProjectMember) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id) DO NOTHING`,
		m.ProjectID,
		m.UserID,
		nullString(m.Role),
		m.CreatedAt,
	)
	return err
}

func queryIsProjectMember(ctx context.Context, db executor, projectID, userID string) (bool, error) {
	row := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)`,
		projectID, userID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Events

func queryRecordEvent(ctx context.Context, db executor, e *model.EventRecord) error {
	row := db.QueryRowContext(ctx, `
		INSERT INTO events (topic, project_id, entity_id, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		e.Topic,
		e.ProjectID,
		e.EntityID,
		nullString(e.Actor),
		jsonbBytes(e.Payload),
		e.CreatedAt,
	)
	return row.Scan(&e.ID)
}

func queryListEvents(ctx context.Context, db executor, projectID string, limit int) ([]*model.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE project_id = $1 ORDER BY id DESC LIMIT $2`,
		projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*model.EventRecord
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
