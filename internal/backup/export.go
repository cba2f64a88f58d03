package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/zyrolabs/zyro/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	ProjectCount int       `json:"project_count"`
	IssueCount   int       `json:"issue_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every project, its sprints, and its issues from the
// store as JSONL to w. Issues include embedded comments and attachments
// so a snapshot restores without extra lookups. Projects and issues are
// sorted by ID for stable diffs between snapshots.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].ID < projects[j].ID
	})

	var records []record
	issueCount := 0
	for _, p := range projects {
		records = append(records, record{Type: "project", Data: p})

		sprints, err := s.ListSprints(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list sprints for %s: %w", p.ID, err)
		}
		sort.Slice(sprints, func(i, j int) bool {
			return sprints[i].ID < sprints[j].ID
		})
		for _, sp := range sprints {
			records = append(records, record{Type: "sprint", Data: sp})
		}

		issues, err := s.ListIssues(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("list issues for %s: %w", p.ID, err)
		}
		sort.Slice(issues, func(i, j int) bool {
			return issues[i].ID < issues[j].ID
		})
		for _, iss := range issues {
			comments, err := s.ListComments(ctx, iss.ID)
			if err != nil {
				return fmt.Errorf("list comments for %s: %w", iss.ID, err)
			}
			iss.Comments = comments

			attachments, err := s.ListAttachments(ctx, iss.ID)
			if err != nil {
				return fmt.Errorf("list attachments for %s: %w", iss.ID, err)
			}
			iss.Attachments = attachments

			records = append(records, record{Type: "issue", Data: iss})
			issueCount++
		}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		ProjectCount: len(projects),
		IssueCount:   issueCount,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode %s record: %w", r.Type, err)
		}
	}
	return nil
}
