package report

import (
	"database/sql"
	"time"
)

// Status is the review verdict on a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Report is a learner's proof-of-work submission for one lesson.
type Report struct {
	ID          string // UUID
	LearnerID   int64
	LessonID    int64
	Status      Status
	Comment     sql.NullString // Reviewer's rejection comment
	FileID      string         // Telegram file id of the submitted artifact
	SubmittedAt time.Time
	ReviewedAt  sql.NullTime
}
