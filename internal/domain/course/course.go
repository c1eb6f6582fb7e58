package course

import "time"

// Course is an ordered set of lessons a learner can be enrolled in.
type Course struct {
	ID        int64
	Title     string
	CreatedAt time.Time
}

// Lesson is a single unit of a course; OrderNum defines the sequence.
type Lesson struct {
	ID        int64
	CourseID  int64
	OrderNum  int
	Title     string
	Content   string
	CreatedAt time.Time
}
