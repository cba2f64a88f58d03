package model

import "time"

// Comment is a user remark attached to an issue.
type Comment struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id,omitempty"`
	Content   string    `json:"content"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attachment is file metadata attached to an issue. Blob storage is
// handled outside this service; only the metadata lives here.
type Attachment struct {
	ID         string    `json:"id"`
	IssueID    string    `json:"issue_id"`
	ProjectID  string    `json:"project_id"`
	FileName   string    `json:"file_name"`
	FileSize   int64     `json:"file_size"`
	FileType   string    `json:"file_type"`
	FileURL    string    `json:"file_url"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
