package learner

import (
	"context"
)

// Repository defines read access to learner records. Registration itself is
// owned by the administrative surface, not this bot.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Learner, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Learner, error)
}
