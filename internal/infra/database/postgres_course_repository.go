package database

import (
	"context"
	"database/sql"
	"fmt"

	"student_review_bot/internal/domain/course"
)

var ErrCourseNotFound = fmt.Errorf("course not found")
var ErrLessonNotFound = fmt.Errorf("lesson not found")

type PostgresCourseRepository struct {
	db *sql.DB
}

func NewPostgresCourseRepository(db *sql.DB) *PostgresCourseRepository {
	return &PostgresCourseRepository{db: db}
}

func (r *PostgresCourseRepository) GetByID(ctx context.Context, id int64) (*course.Course, error) {
	query := `SELECT id, title, created_at FROM courses WHERE id = $1`
	c := &course.Course{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Title, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("error getting course by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresCourseRepository) GetLessonByID(ctx context.Context, id int64) (*course.Lesson, error) {
	query := `SELECT id, course_id, order_num, title, content, created_at
               FROM lessons WHERE id = $1`
	l := &course.Lesson{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.CourseID, &l.OrderNum, &l.Title, &l.Content, &l.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("error getting lesson by ID: %w", err)
	}
	return l, nil
}

func (r *PostgresCourseRepository) ListLessons(ctx context.Context, courseID int64) ([]*course.Lesson, error) {
	query := `SELECT id, course_id, order_num, title, content, created_at
               FROM lessons WHERE course_id = $1 ORDER BY order_num`

	rows, err := r.db.QueryContext(ctx, query, courseID)
	if err != nil {
		return nil, fmt.Errorf("error listing lessons: %w", err)
	}
	defer rows.Close()

	lessons := make([]*course.Lesson, 0)
	for rows.Next() {
		l := &course.Lesson{}
		if err := rows.Scan(&l.ID, &l.CourseID, &l.OrderNum, &l.Title, &l.Content, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning lesson: %w", err)
		}
		lessons = append(lessons, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lessons: %w", err)
	}
	return lessons, nil
}

func (r *PostgresCourseRepository) ListEnrolled(ctx context.Context, learnerID int64) ([]*course.Course, error) {
	query := `SELECT c.id, c.title, c.created_at
               FROM courses c
               JOIN student_courses sc ON sc.course_id = c.id
               WHERE sc.student_id = $1 AND sc.is_active = TRUE
               ORDER BY c.id`

	rows, err := r.db.QueryContext(ctx, query, learnerID)
	if err != nil {
		return nil, fmt.Errorf("error listing enrolled courses: %w", err)
	}
	defer rows.Close()

	courses := make([]*course.Course, 0)
	for rows.Next() {
		c := &course.Course{}
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning enrolled course: %w", err)
		}
		courses = append(courses, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating enrolled courses: %w", err)
	}
	return courses, nil
}

func (r *PostgresCourseRepository) IsEnrolled(ctx context.Context, learnerID, courseID int64) (bool, error) {
	query := `SELECT EXISTS(
               SELECT 1 FROM student_courses
               WHERE student_id = $1 AND course_id = $2 AND is_active = TRUE)`

	var enrolled bool
	if err := r.db.QueryRowContext(ctx, query, learnerID, courseID).Scan(&enrolled); err != nil {
		return false, fmt.Errorf("error checking enrollment: %w", err)
	}
	return enrolled, nil
}
