package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"student_review_bot/internal/domain/report"
)

var ErrReportNotFound = fmt.Errorf("report not found")

type PostgresReportRepository struct {
	db *sql.DB
}

func NewPostgresReportRepository(db *sql.DB) *PostgresReportRepository {
	return &PostgresReportRepository{db: db}
}

func (r *PostgresReportRepository) Create(ctx context.Context, rep *report.Report) error {
	query := `INSERT INTO reports (id, student_id, lesson_id, status, telegram_file_id, submitted_at)
               VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, rep.ID, rep.LearnerID, rep.LessonID, rep.Status, rep.FileID, rep.SubmittedAt)
	if err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}
	return nil
}

func (r *PostgresReportRepository) GetByID(ctx context.Context, id string) (*report.Report, error) {
	query := `SELECT id, student_id, lesson_id, status, admin_comment, telegram_file_id, submitted_at, reviewed_at
               FROM reports WHERE id = $1`
	rep := &report.Report{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rep.ID, &rep.LearnerID, &rep.LessonID, &rep.Status, &rep.Comment, &rep.FileID, &rep.SubmittedAt, &rep.ReviewedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("error getting report by ID: %w", err)
	}
	return rep, nil
}

func (r *PostgresReportRepository) GetByLearnerAndLesson(ctx context.Context, learnerID, lessonID int64) (*report.Report, error) {
	query := `SELECT id, student_id, lesson_id, status, admin_comment, telegram_file_id, submitted_at, reviewed_at
               FROM reports WHERE student_id = $1 AND lesson_id = $2`
	rep := &report.Report{}
	err := r.db.QueryRowContext(ctx, query, learnerID, lessonID).Scan(
		&rep.ID, &rep.LearnerID, &rep.LessonID, &rep.Status, &rep.Comment, &rep.FileID, &rep.SubmittedAt, &rep.ReviewedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("error getting report by learner and lesson: %w", err)
	}
	return rep, nil
}

func (r *PostgresReportRepository) ListByLearner(ctx context.Context, learnerID int64) ([]*report.Report, error) {
	query := `SELECT id, student_id, lesson_id, status, admin_comment, telegram_file_id, submitted_at, reviewed_at
               FROM reports WHERE student_id = $1 ORDER BY submitted_at DESC`

	rows, err := r.db.QueryContext(ctx, query, learnerID)
	if err != nil {
		return nil, fmt.Errorf("error listing reports by learner: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

func (r *PostgresReportRepository) Update(ctx context.Context, rep *report.Report) error {
	query := `UPDATE reports
               SET status = $1, admin_comment = $2, telegram_file_id = $3, submitted_at = $4, reviewed_at = $5
               WHERE id = $6`

	res, err := r.db.ExecContext(ctx, query, rep.Status, rep.Comment, rep.FileID, rep.SubmittedAt, rep.ReviewedAt, rep.ID)
	if err != nil {
		return fmt.Errorf("error updating report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking update result: %w", err)
	}
	if affected == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (r *PostgresReportRepository) ListPendingOlderThan(ctx context.Context, before time.Time) ([]*report.Report, error) {
	query := `SELECT id, student_id, lesson_id, status, admin_comment, telegram_file_id, submitted_at, reviewed_at
               FROM reports WHERE status = $1 AND submitted_at < $2 ORDER BY submitted_at`

	rows, err := r.db.QueryContext(ctx, query, report.StatusPending, before)
	if err != nil {
		return nil, fmt.Errorf("error listing pending reports: %w", err)
	}
	defer rows.Close()

	return scanReports(rows)
}

func scanReports(rows *sql.Rows) ([]*report.Report, error) {
	reports := make([]*report.Report, 0)
	for rows.Next() {
		rep := &report.Report{}
		if err := rows.Scan(&rep.ID, &rep.LearnerID, &rep.LessonID, &rep.Status, &rep.Comment, &rep.FileID, &rep.SubmittedAt, &rep.ReviewedAt); err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}
