package course

import (
	"context"
)

// Repository defines course and lesson lookups together with enrollment checks.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Course, error)
	GetLessonByID(ctx context.Context, id int64) (*Lesson, error)
	// ListLessons returns the course's lessons ordered by OrderNum.
	ListLessons(ctx context.Context, courseID int64) ([]*Lesson, error)
	// ListEnrolled returns the courses a learner is actively enrolled in.
	ListEnrolled(ctx context.Context, learnerID int64) ([]*Course, error)
	IsEnrolled(ctx context.Context, learnerID, courseID int64) (bool, error)
}
