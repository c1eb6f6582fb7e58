package progress

import (
	"context"
	"errors"
)

// ErrStateNotFound means the learner (or reviewer slot) has no stored blob.
// This is distinct from store unavailability: an uninitialized learner is a
// normal condition, an unreachable store is a retryable infrastructure error.
var ErrStateNotFound = errors.New("state not found")

// PendingActionRejectingReport is the only pending reviewer action today.
const PendingActionRejectingReport = "rejecting_report"

// PendingReview is the ephemeral reviewer-side slot: created by a reject
// button press, consumed by the reviewer's next free-text message. The card
// fields let the consumer annotate the original submission card.
type PendingReview struct {
	Action        string `json:"action"`
	ReportID      string `json:"report_id"`
	CardMessageID int    `json:"card_message_id,omitempty"`
	CardText      string `json:"card_text,omitempty"`
}

// Store is the durable key-value store for learner state blobs and the
// transient reviewer slots. No multi-key transactions; writes are
// last-writer-wins on the whole blob.
type Store interface {
	GetState(ctx context.Context, learnerID int64) (*Data, error)
	PutState(ctx context.Context, learnerID int64, d Data) error
	DeleteState(ctx context.Context, learnerID int64) error

	GetPendingReview(ctx context.Context, chatID int64) (*PendingReview, error)
	PutPendingReview(ctx context.Context, chatID int64, p PendingReview) error
	DeletePendingReview(ctx context.Context, chatID int64) error

	// ListStates returns every stored learner blob, keyed by learner id.
	// Used by background sweeps only, never on the event path.
	ListStates(ctx context.Context) (map[int64]Data, error)
}
