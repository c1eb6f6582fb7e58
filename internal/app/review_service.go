package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"student_review_bot/internal/domain/course"
	"student_review_bot/internal/domain/learner"
	"student_review_bot/internal/domain/progress"
	"student_review_bot/internal/domain/report"
	domainTelegram "student_review_bot/internal/domain/telegram"
	idb "student_review_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

const defaultRejectionComment = "Без комментария"

// ReviewService coordinates the reviewer's approve/reject actions: it updates
// the submission record, drives the learner's state forward and notifies the
// learner of the outcome.
type ReviewService struct {
	screenRenderer

	learners       learner.Repository
	store          progress.Store
	reviewerChatID int64
}

func NewReviewService(
	lr learner.Repository,
	cr course.Repository,
	rr report.Repository,
	store progress.Store,
	tc domainTelegram.Client,
	reviewerChatID int64,
	logger *logrus.Entry,
) *ReviewService {
	return &ReviewService{
		screenRenderer: screenRenderer{
			courses: cr,
			reports: rr,
			tg:      tc,
			logger:  logger,
		},
		learners:       lr,
		store:          store,
		reviewerChatID: reviewerChatID,
	}
}

// ProcessApprove marks a submission approved and moves the learner on.
// cardText is the original submission card, re-sent with the verdict appended.
func (s *ReviewService) ProcessApprove(ctx context.Context, senderID int64, reportID string, cardMessageID int, cardText string) error {
	if senderID != s.reviewerChatID {
		return ErrReviewerNotAuthorized
	}

	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, idb.ErrReportNotFound) {
			s.sendPlain(s.reviewerChatID, "Отчет не найден. Возможно, это устаревшая кнопка.")
			return nil
		}
		return fmt.Errorf("report lookup: %w", err)
	}
	// Redelivered button press on an already-approved report is a no-op.
	if rep.Status == report.StatusApproved {
		s.sendPlain(s.reviewerChatID, "Отчет уже был одобрен.")
		return nil
	}

	rep.Status = report.StatusApproved
	rep.Comment = sql.NullString{}
	rep.ReviewedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := s.reports.Update(ctx, rep); err != nil {
		return fmt.Errorf("report approve: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"report_id": rep.ID, "learner_id": rep.LearnerID}).Info("Report approved")

	s.driveLearner(ctx, rep, progress.ActionReportApproved)
	s.annotateCard(cardMessageID, cardText, "✅ ОДОБРЕНО")
	return nil
}

// ProcessRejectRequest is step one of the two-step rejection: it records the
// pending action against the reviewer's channel and prompts for a comment.
// The submission record is not touched yet.
func (s *ReviewService) ProcessRejectRequest(ctx context.Context, senderID int64, reportID string, cardMessageID int, cardText string) error {
	if senderID != s.reviewerChatID {
		return ErrReviewerNotAuthorized
	}

	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, idb.ErrReportNotFound) {
			s.sendPlain(s.reviewerChatID, "Отчет не найден. Возможно, это устаревшая кнопка.")
			return nil
		}
		return fmt.Errorf("report lookup: %w", err)
	}
	if rep.Status != report.StatusPending {
		s.sendPlain(s.reviewerChatID, "Отчет уже был проверен.")
		return nil
	}

	// A second reject press before the comment arrives overwrites the slot:
	// the comment always applies to the most recently recorded report.
	pending := progress.PendingReview{
		Action:        progress.PendingActionRejectingReport,
		ReportID:      reportID,
		CardMessageID: cardMessageID,
		CardText:      cardText,
	}
	if err := s.store.PutPendingReview(ctx, s.reviewerChatID, pending); err != nil {
		s.sendPlain(s.reviewerChatID, "❌ Не удалось начать отклонение. Попробуйте еще раз.")
		return fmt.Errorf("pending review store: %w", err)
	}

	s.sendPlain(s.reviewerChatID, fmt.Sprintf("📝 Отклонение отчета %s\n\nНапишите комментарий для студента (или отправьте пустое сообщение).", reportID))
	return nil
}

// ProcessReviewerText is step two: the reviewer's next free-text message,
// whatever its content, consumes the pending action and completes the
// rejection. Returns false when there is nothing pending for this sender.
func (s *ReviewService) ProcessReviewerText(ctx context.Context, senderID int64, text string) (bool, error) {
	if senderID != s.reviewerChatID {
		return false, nil
	}

	pending, err := s.store.GetPendingReview(ctx, s.reviewerChatID)
	if err != nil {
		if errors.Is(err, progress.ErrStateNotFound) {
			return false, nil
		}
		return true, fmt.Errorf("pending review load: %w", err)
	}

	// Read once, then delete: the slot never outlives this round-trip.
	if err := s.store.DeletePendingReview(ctx, s.reviewerChatID); err != nil {
		s.logger.WithError(err).Warn("Could not delete consumed pending review slot")
	}
	if pending.Action != progress.PendingActionRejectingReport {
		s.logger.WithField("action", pending.Action).Warn("Unknown pending reviewer action, dropping")
		return true, nil
	}

	rep, err := s.reports.GetByID(ctx, pending.ReportID)
	if err != nil {
		if errors.Is(err, idb.ErrReportNotFound) {
			s.sendPlain(s.reviewerChatID, "Отчет больше не существует, отклонение отменено.")
			return true, nil
		}
		return true, fmt.Errorf("report lookup: %w", err)
	}
	// A stale slot pointing at an already-reviewed report is rejected.
	if rep.Status != report.StatusPending {
		s.sendPlain(s.reviewerChatID, "Отчет уже был проверен, комментарий не применен.")
		return true, nil
	}

	comment := strings.TrimSpace(text)
	if comment == "" {
		comment = defaultRejectionComment
	}

	rep.Status = report.StatusRejected
	rep.Comment = sql.NullString{String: comment, Valid: true}
	rep.ReviewedAt = sql.NullTime{Time: time.Now(), Valid: true}
	if err := s.reports.Update(ctx, rep); err != nil {
		s.sendPlain(s.reviewerChatID, "❌ Не удалось сохранить отклонение. Попробуйте еще раз.")
		return true, fmt.Errorf("report reject: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"report_id": rep.ID, "learner_id": rep.LearnerID}).Info("Report rejected")

	s.driveLearner(ctx, rep, progress.ActionReportRejected)
	s.annotateCard(pending.CardMessageID, pending.CardText, "❌ ОТКЛОНЕНО")
	s.sendPlain(s.reviewerChatID, "Отчет отклонен, студент уведомлен.")
	return true, nil
}

// driveLearner applies the verdict to the learner's state machine and shows
// the resulting screen. When the reviewed submission is not the one the
// learner is currently tracking, the record update stands and the learner
// gets a plain notification instead of a state change.
func (s *ReviewService) driveLearner(ctx context.Context, rep *report.Report, action progress.Action) {
	lrn, err := s.learners.GetByID(ctx, rep.LearnerID)
	if err != nil {
		s.logger.WithError(err).WithField("learner_id", rep.LearnerID).Error("Verdict delivered but learner lookup failed")
		return
	}

	d, err := s.store.GetState(ctx, lrn.ID)
	tracked := err == nil &&
		d.State == progress.StateReportPending &&
		(d.ReportID == rep.ID || d.LessonID == rep.LessonID)
	if err != nil && !errors.Is(err, progress.ErrStateNotFound) {
		s.logger.WithError(err).WithField("learner_id", lrn.ID).Error("State load failed while delivering verdict")
	}

	if !tracked {
		s.notifyUntracked(ctx, lrn, rep)
		return
	}

	next := d.Apply(action, progress.Refs{})

	// An approval may have completed the course: recompute from the
	// repository and force course_completed when it did.
	if action == progress.ActionReportApproved && next.CourseID != 0 {
		approved, total, err := s.courseCompletion(ctx, lrn.ID, next.CourseID)
		if err != nil {
			s.logger.WithError(err).WithField("course_id", next.CourseID).Error("Completion check failed after approval")
		} else if total > 0 && approved == total {
			next = next.Apply(progress.ActionCourseCompleted, progress.Refs{})
		}
	}

	if err := next.CheckRefs(); err != nil {
		s.logger.WithError(err).WithField("learner_id", lrn.ID).Error("State invariant violated after verdict, transition abandoned")
		s.notifyUntracked(ctx, lrn, rep)
		return
	}

	if err := s.render(ctx, lrn.TelegramID, lrn, &next); err != nil {
		s.logger.WithError(err).WithField("learner_id", lrn.ID).Warn("Could not render verdict screen")
	}
	if err := s.store.PutState(ctx, lrn.ID, next); err != nil {
		s.logger.WithError(err).WithField("learner_id", lrn.ID).Error("State persist failed after verdict")
	}
}

// notifyUntracked sends the verdict as plain text when the state machine
// could not be driven.
func (s *ReviewService) notifyUntracked(ctx context.Context, lrn *learner.Learner, rep *report.Report) {
	lessonTitle := "—"
	if lesson, err := s.courses.GetLessonByID(ctx, rep.LessonID); err == nil {
		lessonTitle = lesson.Title
	}

	var text string
	if rep.Status == report.StatusApproved {
		text = fmt.Sprintf("🎉 Ваш отчет по уроку «%s» принят! Используйте /start для продолжения обучения.", lessonTitle)
	} else {
		text = fmt.Sprintf("❌ Ваш отчет по уроку «%s» отправлен на доработку.", lessonTitle)
		if rep.Comment.Valid {
			text += fmt.Sprintf("\n\n💬 Комментарий: %s", rep.Comment.String)
		}
	}
	s.sendPlain(lrn.TelegramID, text)
}

// annotateCard appends the verdict to the reviewer's submission card.
func (s *ReviewService) annotateCard(messageID int, cardText, verdict string) {
	if messageID == 0 || cardText == "" {
		return
	}
	if err := s.tg.EditMessageText(s.reviewerChatID, messageID, cardText+"\n\n"+verdict); err != nil {
		s.logger.WithError(err).WithField("message_id", messageID).Debug("Could not annotate reviewer card")
	}
}

// SendPendingDigest lists submissions still awaiting review and reminds the
// reviewer. Used by the daily digest job.
func (s *ReviewService) SendPendingDigest(ctx context.Context, olderThan time.Duration) error {
	pending, err := s.reports.ListPendingOlderThan(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return fmt.Errorf("pending digest query: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("⏳ Отчеты, ожидающие проверки: %d\n\n", len(pending)))
	for _, rep := range pending {
		line := fmt.Sprintf("• %s — отправлен %s", rep.ID, rep.SubmittedAt.Format("02.01.2006 15:04"))
		if lrn, err := s.learners.GetByID(ctx, rep.LearnerID); err == nil {
			line = fmt.Sprintf("• %s, %s — отправлен %s", rep.ID, lrn.Name, rep.SubmittedAt.Format("02.01.2006 15:04"))
		}
		text.WriteString(line + "\n")
	}

	s.sendPlain(s.reviewerChatID, text.String())
	return nil
}
