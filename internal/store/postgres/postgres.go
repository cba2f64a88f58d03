// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/zyrolabs/zyro/internal/model"
	"github.com/zyrolabs/zyro/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateProject(ctx context.Context, project *model.Project) error {
	return queryCreateProject(ctx, s.db, project)
}

func (s *PostgresStore) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return queryGetProject(ctx, s.db, id)
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]*model.Project, error) {
	return queryListProjects(ctx, s.db)
}

func (s *PostgresStore) UpdateProject(ctx context.Context, project *model.Project) error {
	return queryUpdateProject(ctx, s.db, project)
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	return queryDeleteProject(ctx, s.db, id)
}

func (s *PostgresStore) FindProjectByRepo(ctx context.Context, repoFullName string) (*model.Project, error) {
	return queryFindProjectByDataField(ctx, s.db, "github_repo", repoFullName)
}

func (s *PostgresStore) FindProjectByChannel(ctx context.Context, channelID string) (*model.Project, error) {
	return queryFindProjectByDataField(ctx, s.db, "slack_channel", channelID)
}

func (s *PostgresStore) CreateIssue(ctx context.Context, issue *model.Issue) error {
	return queryCreateIssue(ctx, s.db, issue)
}

func (s *PostgresStore) GetIssue(ctx context.Context, id string) (*model.Issue, error) {
	return queryGetIssue(ctx, s.db, id)
}

func (s *PostgresStore) ListIssues(ctx context.Context, projectID string) ([]*model.Issue, error) {
	return queryListIssues(ctx, s.db, projectID)
}

func (s *PostgresStore) UpdateIssue(ctx context.Context, issue *model.Issue) error {
	return queryUpdateIssue(ctx, s.db, issue)
}

func (s *PostgresStore) DeleteIssue(ctx context.Context, id string) error {
	return queryDeleteIssue(ctx, s.db, id)
}

func (s *PostgresStore) FindIssueByExternalRef(ctx context.Context, projectID, externalRef string) (*model.Issue, error) {
	return queryFindIssueByExternalRef(ctx, s.db, projectID, externalRef)
}

func (s *PostgresStore) CreateSprint(ctx context.Context, sprint *model.Sprint) error {
	return queryCreateSprint(ctx, s.db, sprint)
}

func (s *PostgresStore) GetSprint(ctx context.Context, id string) (*model.Sprint, error) {
	return queryGetSprint(ctx, s.db, id)
}

func (s *PostgresStore) ListSprints(ctx context.Context, projectID string) ([]*model.Sprint, error) {
	return queryListSprints(ctx, s.db, projectID)
}

func (s *PostgresStore) UpdateSprint(ctx context.Context, sprint *model.Sprint) error {
	return queryUpdateSprint(ctx, s.db, sprint)
}

func (s *PostgresStore) DeleteSprint(ctx context.Context, id string) error {
	return queryDeleteSprint(ctx, s.db, id)
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	return queryCreateComment(ctx, s.db, comment)
}

func (s *PostgresStore) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	return queryGetComment(ctx, s.db, id)
}

func (s *PostgresStore) ListComments(ctx context.Context, issueID string) ([]*model.Comment, error) {
	return queryListComments(ctx, s.db, issueID)
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id string) error {
	return queryDeleteComment(ctx, s.db, id)
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, att *model.Attachment) error {
	return queryCreateAttachment(ctx, s.db, att)
}

func (s *PostgresStore) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	return queryGetAttachment(ctx, s.db, id)
}

func (s *PostgresStore) ListAttachments(ctx context.Context, issueID string) ([]*model.Attachment, error) {
	return queryListAttachments(ctx, s.db, issueID)
}

func (s *PostgresStore) DeleteAttachment(ctx context.Context, id string) error {
	return queryDeleteAttachment(ctx, s.db, id)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return queryGetUser(ctx, s.db, id)
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, partial string) (*model.User, error) {
	return queryFindUserByEmail(ctx, s.db, partial)
}

func (s *PostgresStore) AddProjectMember(ctx context.Context, member *model.ProjectMember) error {
	return queryAddProjectMember(ctx, s.db, member)
}

func (s *PostgresStore) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	return queryIsProjectMember(ctx, s.db, projectID, userID)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.EventRecord) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) ListEvents(ctx context.Context, projectID string, limit int) ([]*model.EventRecord, error) {
	return queryListEvents(ctx, s.db, projectID, limit)
}
