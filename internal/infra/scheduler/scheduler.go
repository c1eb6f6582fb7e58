package scheduler

import (
	"context"
	"time"

	"student_review_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReviewScheduler runs the background jobs: the daily pending-review digest
// for the reviewer and the idle-learner nudge.
type ReviewScheduler struct {
	cronEngine *cron.Cron

	reviews       *app.ReviewService
	conversations *app.ConversationService
	logger        *logrus.Entry

	cronSpecReviewDigest string
	cronSpecIdleNudge    string
	idleNudgeAfter       time.Duration
}

func NewReviewScheduler(
	reviews *app.ReviewService,
	conversations *app.ConversationService,
	logger *logrus.Entry,
	cronSpecReviewDigest string,
	cronSpecIdleNudge string,
	idleNudgeAfter time.Duration,
) *ReviewScheduler {
	return &ReviewScheduler{
		cronEngine:           cron.New(cron.WithLocation(time.Local)),
		reviews:              reviews,
		conversations:        conversations,
		logger:               logger,
		cronSpecReviewDigest: cronSpecReviewDigest,
		cronSpecIdleNudge:    cronSpecIdleNudge,
		idleNudgeAfter:       idleNudgeAfter,
	}
}

// Start registers the cron jobs and starts the engine.
func (s *ReviewScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpecReviewDigest, func() {
		s.logger.Info("Cron job triggered: pending review digest")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.reviews.SendPendingDigest(ctx, 0); err != nil {
			s.logger.WithError(err).Error("Pending review digest failed")
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cronEngine.AddFunc(s.cronSpecIdleNudge, func() {
		s.logger.Info("Cron job triggered: idle learner nudge")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.conversations.NudgeIdleLearners(ctx, s.idleNudgeAfter); err != nil {
			s.logger.WithError(err).Error("Idle learner nudge failed")
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"digest_spec": s.cronSpecReviewDigest,
		"nudge_spec":  s.cronSpecIdleNudge,
	}).Info("Review scheduler started")
	return nil
}

// Stop halts the engine and waits for running jobs to finish.
func (s *ReviewScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Review scheduler stopped")
}
