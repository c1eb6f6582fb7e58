package database

import (
	"context"
	"database/sql"
	"fmt"

	"student_review_bot/internal/domain/learner"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrLearnerNotFound = fmt.Errorf("learner not found")

type PostgresLearnerRepository struct {
	db *sql.DB
}

func NewPostgresLearnerRepository(db *sql.DB) *PostgresLearnerRepository {
	return &PostgresLearnerRepository{db: db}
}

func (r *PostgresLearnerRepository) GetByID(ctx context.Context, id int64) (*learner.Learner, error) {
	query := `SELECT id, telegram_id, name, city, is_active, created_at, updated_at
               FROM students WHERE id = $1`
	l := &learner.Learner{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.TelegramID, &l.Name, &l.City, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLearnerNotFound
		}
		return nil, fmt.Errorf("error getting learner by ID: %w", err)
	}
	return l, nil
}

func (r *PostgresLearnerRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*learner.Learner, error) {
	query := `SELECT id, telegram_id, name, city, is_active, created_at, updated_at
               FROM students WHERE telegram_id = $1`
	l := &learner.Learner{}
	err := r.db.QueryRowContext(ctx, query, telegramID).Scan(&l.ID, &l.TelegramID, &l.Name, &l.City, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLearnerNotFound
		}
		return nil, fmt.Errorf("error getting learner by Telegram ID: %w", err)
	}
	return l, nil
}
