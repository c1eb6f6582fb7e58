package report

import (
	"context"
	"time"
)

// Repository defines create/read/update of submission records. Records are
// never deleted by this subsystem.
type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id string) (*Report, error)
	GetByLearnerAndLesson(ctx context.Context, learnerID, lessonID int64) (*Report, error)
	ListByLearner(ctx context.Context, learnerID int64) ([]*Report, error)
	// Update persists status, comment and review timestamp changes.
	Update(ctx context.Context, r *Report) error
	// ListPendingOlderThan returns submissions still awaiting review that were
	// submitted before the given moment. Used by the review digest job.
	ListPendingOlderThan(ctx context.Context, before time.Time) ([]*Report, error)
}
