package learner

import (
	"database/sql"
	"time"
)

// Learner represents a registered student progressing through courses.
type Learner struct {
	ID         int64
	TelegramID int64
	Name       string
	City       sql.NullString // Optional, shown on the reviewer's submission card
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
