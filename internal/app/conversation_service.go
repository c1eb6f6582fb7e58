package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"student_review_bot/internal/domain/course"
	"student_review_bot/internal/domain/learner"
	"student_review_bot/internal/domain/progress"
	"student_review_bot/internal/domain/report"
	domainTelegram "student_review_bot/internal/domain/telegram"
	idb "student_review_bot/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// ConversationService is the conversation controller: it receives inbound
// learner events, drives the state machine, performs record updates and
// renders the next screen. Per-learner state is read and written as one blob,
// last writer wins.
type ConversationService struct {
	screenRenderer

	learners       learner.Repository
	store          progress.Store
	reviewerChatID int64
}

func NewConversationService(
	lr learner.Repository,
	cr course.Repository,
	rr report.Repository,
	store progress.Store,
	tc domainTelegram.Client,
	reviewerChatID int64,
	logger *logrus.Entry,
) *ConversationService {
	return &ConversationService{
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

// resolveLearner maps a Telegram identity to a learner record. Unknown or
// inactive identities get a user-visible reply and no state is created.
func (s *ConversationService) resolveLearner(ctx context.Context, tgID, chatID int64) (*learner.Learner, error) {
	lrn, err := s.learners.GetByTelegramID(ctx, tgID)
	if err != nil {
		if errors.Is(err, idb.ErrLearnerNotFound) {
			s.sendPlain(chatID, "❌ Вы не зарегистрированы в системе. Обратитесь к администратору для регистрации.")
			return nil, ErrLearnerNotRegistered
		}
		s.sendFailure(chatID)
		return nil, fmt.Errorf("learner lookup: %w", err)
	}
	if !lrn.IsActive {
		s.sendPlain(chatID, "Ваш аккаунт неактивен. Обратитесь к администратору.")
		return nil, ErrLearnerNotRegistered
	}
	return lrn, nil
}

// loadState fetches the learner's blob, initializing WELCOME for a
// newly-seen learner. Store unavailability is never treated as "no state".
func (s *ConversationService) loadState(ctx context.Context, lrn *learner.Learner, chatID int64) (progress.Data, error) {
	d, err := s.store.GetState(ctx, lrn.ID)
	if err != nil {
		if errors.Is(err, progress.ErrStateNotFound) {
			return progress.NewData(lrn.Name), nil
		}
		s.sendFailure(chatID)
		return progress.Data{}, fmt.Errorf("state load: %w", err)
	}
	return *d, nil
}

// finish applies the course-completion rule, renders the screen for the new
// state and persists the blob. Render failures do not roll the transition
// back; persist failures abandon it.
func (s *ConversationService) finish(ctx context.Context, chatID int64, lrn *learner.Learner, d progress.Data) error {
	// Any event landing on the course view re-enters it, so the approved/total
	// tally is recomputed here: a verdict delivered mid-flow (for example while
	// the learner was canceling a resubmission) may have completed the course.
	if d.State == progress.StateCourseView {
		approved, total, err := s.courseCompletion(ctx, lrn.ID, d.CourseID)
		if err != nil {
			s.sendFailure(chatID)
			return err
		}
		if total > 0 && approved == total {
			d = d.Apply(progress.ActionCourseCompleted, progress.Refs{})
		}
	}

	if err := d.CheckRefs(); err != nil {
		s.logger.WithError(err).WithField("learner_id", lrn.ID).Error("State invariant violated, transition abandoned")
		s.sendFailure(chatID)
		return err
	}
	if err := s.render(ctx, chatID, lrn, &d); err != nil {
		s.sendFailure(chatID)
		return err
	}
	if err := s.store.PutState(ctx, lrn.ID, d); err != nil {
		s.sendFailure(chatID)
		return fmt.Errorf("state persist: %w", err)
	}
	return nil
}

// ProcessStart handles the /start command.
func (s *ConversationService) ProcessStart(ctx context.Context, tgID, chatID int64, displayName string) error {
	lrn, err := s.resolveLearner(ctx, tgID, chatID)
	if err != nil {
		return nil
	}

	d, err := s.loadState(ctx, lrn, chatID)
	if err != nil {
		return err
	}
	if displayName != "" {
		d.Context.DisplayName = displayName
	}

	// Re-entry into WELCOME after the learner has already seen it goes
	// straight to the dashboard.
	if d.State == progress.StateWelcome && d.Context.HasSeenWelcome {
		d = d.Apply(progress.ActionAuto, progress.Refs{})
	}

	return s.finish(ctx, chatID, lrn, d)
}

// ProcessWelcomeContinue handles the welcome screen's continue button.
func (s *ConversationService) ProcessWelcomeContinue(ctx context.Context, tgID, chatID int64) error {
	lrn, err := s.resolveLearner(ctx, tgID, chatID)
	if err != nil {
		return nil
	}
	d, err := s.loadState(ctx, lrn, chatID)
	if err != nil {
		return err
	}

	d.Context.HasSeenWelcome = true
	d = d.Apply(progress.ActionViewCourses, progress.Refs{})
	return s.finish(ctx, chatID, lrn, d)
}

// ProcessCourseSelect handles a dashboard course button. An unenrolled
// learner's press is rejected with an error reply and no state change.
func (s *ConversationService) ProcessCourseSelect(ctx context.Context, tgID, chatID, courseID int64) error {
	lrn, err := s.resolveLearner(ctx, tgID, chatID)
	if err != nil {
		return nil
	}

	enrolled, err := s.courses.IsEnrolled(ctx, lrn.ID, courseID)
	if err != nil {
		s.sendFailure(chatID)
		return fmt.Errorf("enrollment check: %w", err)
	}
	if !enrolled {
		s.logger.WithFields(logrus.Fields{"learner_id": lrn.ID, "course_id": courseID}).Warn("Press on a course the learner is not enrolled in")
		s.sendPlain(chatID, "❌ Вы не зачислены на этот курс.")
		return nil
	}

	d, err := s.loadState(ctx, lrn, chatID)
	if err != nil {
		return err
	}

	action := progress.ActionSelectCourse
	if d.State == progress.StateLessonCompleted && d.CourseID == courseID {
		action = progress.ActionNextLesson
	}
	d = d.Apply(action, progress.Refs{CourseID: courseID})
	return s.finish(ctx, chatID, lrn, d)
}

// ProcessSubmitRequest handles the submit-report button for a lesson.
func (s *ConversationService) ProcessSubmitRequest(ctx context.Context, tgID, chatID, lessonID int64) error {
	lrn, err := s.resolveLearner(ctx, tgID, chatID)
	if err != nil {
		return nil
	}
	d, err := s.loadState(ctx, lrn, chatID)
	if err != nil {
		return err
	}

	lesson, err := s.courses.GetLessonByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, idb.ErrLessonNotFound) {
			s.sendPlain(chatID, "❌ Урок не найден.")
			return nil
		}
		s.sendFailure(chatID)
		return fmt.Errorf("lesson lookup: %w", err)
	}
	if d.CourseID != 0 && lesson.CourseID != d.CourseID {
		s.sendPlain(chatID, "❌ Этот урок не относится к текущему курсу.")
		return nil
	}

	if rep, err := s.reports.GetByLearnerAndLesson(ctx, lrn.ID, lessonID); err == nil {
		switch rep.Status {
		case report.StatusPending:
			s.sendPlain(chatID, "⏳ Ваш отчет по этому уроку уже на проверке.")
			return nil
		case report.StatusApproved:
			s.sendPlain(chatID, "✅ Этот урок уже принят.")
			return nil
		}
	} else if !errors.Is(err, idb.ErrReportNotFound) {
		s.sendFailure(chatID)
		return fmt.Errorf("report lookup: %w", err)
	}

	d = d.Apply(progress.ActionSubmitReport, progress.Refs{LessonID: lessonID})
	return s.finish(ctx, chatID, lrn, d)
}

// ProcessCancelSubmission handles the cancel button while awaiting a file.
func (s *ConversationService) ProcessCancelSubmission(ctx context.Context, tgID, chatID int64) error {
	return s.applySimple(ctx, tgID, chatID, progress.ActionCancel)
}

// ProcessResubmit handles the resubmit button after a rejection. The lesson
// reference carried in the blob is kept: the learner resubmits the same lesson.
func (s *ConversationService) ProcessResubmit(ctx context.Context, tgID, chatID int64) error {
	return s.applySimple(ctx, tgID, chatID, progress.ActionResubmit)
}

// ProcessBackToDashboard handles the back buttons.
func (s *ConversationService) ProcessBackToDashboard(ctx context.Context, tgID, chatID int64) error {
	return s.applySimple(ctx, tgID, chatID, progress.ActionBackToDashboard)
}

func (s *ConversationService) applySimple(ctx context.Context, tgID, chatID int64, action progress.Action) error {
	lrn, err := s.resolveLearner(ctx, tgID, chatID)
	if err != nil {
		return nil
	}
	d, err := s.loadState(ctx, lrn, chatID)
	if err != nil {
		return err
	}

	d = d.Apply(action, progress.Refs{})
	return s.finish(ctx, chatID, lrn, d)
}

// ProcessFileUpload handles a document or photo from a learner. Only accepted
// in AWAITING_SUBMISSION; the target lesson is the one carried in the blob,
// never re-derived by scanning the learner's other courses.
func (s *ConversationService) ProcessFileUpload(ctx context.Context, tgID, chatID int64, fileID string, messageID int) error {
	lrn, err := s.resolveLearner(ctx, tgID, chatID)
	if err != nil {
		return nil
	}
	d, err := s.loadState(ctx, lrn, chatID)
	if err != nil {
		return err
	}

	if d.State != progress.StateAwaitingSubmission {
		s.logger.WithFields(logrus.Fields{"learner_id": lrn.ID, "state": d.State}).Warn("File upload outside AWAITING_SUBMISSION")
		s.sendPlain(chatID, "💡 Чтобы сдать отчет, откройте урок и нажмите «Сдать отчет».")
		return nil
	}
	lessonID := d.LessonID

	// Duplicate guard against the repository, not cached state: the check runs
	// immediately before the write to narrow the race window.
	rep, err := s.reports.GetByLearnerAndLesson(ctx, lrn.ID, lessonID)
	switch {
	case err == nil && rep.Status != report.StatusRejected:
		s.logger.WithFields(logrus.Fields{"learner_id": lrn.ID, "lesson_id": lessonID, "report_id": rep.ID}).Warn("Duplicate submission refused")
		s.sendPlain(chatID, "❌ Отчет по этому уроку уже отправлен.")
		return nil
	case err == nil:
		// Previously rejected: reopen the same record.
		rep.Status = report.StatusPending
		rep.FileID = fileID
		rep.SubmittedAt = time.Now()
		rep.Comment = sql.NullString{}
		rep.ReviewedAt = sql.NullTime{}
		if err := s.reports.Update(ctx, rep); err != nil {
			s.sendFailure(chatID)
			return fmt.Errorf("report reopen: %w", err)
		}
	case errors.Is(err, idb.ErrReportNotFound):
		rep = &report.Report{
			ID:          uuid.NewString(),
			LearnerID:   lrn.ID,
			LessonID:    lessonID,
			Status:      report.StatusPending,
			FileID:      fileID,
			SubmittedAt: time.Now(),
		}
		if err := s.reports.Create(ctx, rep); err != nil {
			s.sendFailure(chatID)
			return fmt.Errorf("report create: %w", err)
		}
	default:
		s.sendFailure(chatID)
		return fmt.Errorf("duplicate check: %w", err)
	}

	s.notifyReviewer(ctx, lrn, rep, chatID, messageID)

	d.Context.SubmissionAttempts++
	d = d.Apply(progress.ActionFileUploaded, progress.Refs{ReportID: rep.ID})
	return s.finish(ctx, chatID, lrn, d)
}

// notifyReviewer sends the submission card with approve/reject buttons and
// forwards the file. Both sends are best-effort: a failed notification never
// rolls back the submission.
func (s *ConversationService) notifyReviewer(ctx context.Context, lrn *learner.Learner, rep *report.Report, learnerChatID int64, messageID int) {
	lesson, err := s.courses.GetLessonByID(ctx, rep.LessonID)
	if err != nil {
		s.logger.WithError(err).WithField("lesson_id", rep.LessonID).Warn("Could not load lesson for reviewer card")
		return
	}
	c, err := s.courses.GetByID(ctx, lesson.CourseID)
	if err != nil {
		s.logger.WithError(err).WithField("course_id", lesson.CourseID).Warn("Could not load course for reviewer card")
		return
	}

	city := ""
	if lrn.City.Valid {
		city = fmt.Sprintf("Город: %s\n", lrn.City.String)
	}
	text := fmt.Sprintf(
		"📝 Новый отчет\n\nСтудент: %s\n%sКурс: %s\nУрок %d: %s\n\nЗадание:\n%s\n\nID отчета: %s",
		lrn.Name, city, c.Title, lesson.OrderNum, lesson.Title, lesson.Content, rep.ID,
	)

	scr := Screen{
		Text: text,
		Buttons: [][]Button{{
			{Label: "✅ Принять", Data: PayloadAdminApprovePrefix + rep.ID},
			{Label: "❌ На доработку", Data: PayloadAdminRejectPrefix + rep.ID},
		}},
	}
	if _, err := s.tg.SendMessage(s.reviewerChatID, scr.Text, sendOptions(scr)); err != nil {
		s.logger.WithError(err).Warn("Failed to send submission card to reviewer")
	}
	if err := s.tg.ForwardMessage(s.reviewerChatID, learnerChatID, messageID); err != nil {
		s.logger.WithError(err).Warn("Failed to forward submission file to reviewer")
	}
}

// ProcessText handles free text that is not a command: the screen for the
// learner's current state is re-rendered. The state machine, not the text,
// decides what to show.
func (s *ConversationService) ProcessText(ctx context.Context, tgID, chatID int64) error {
	lrn, err := s.resolveLearner(ctx, tgID, chatID)
	if err != nil {
		return nil
	}
	d, err := s.loadState(ctx, lrn, chatID)
	if err != nil {
		return err
	}
	return s.finish(ctx, chatID, lrn, d)
}

// NudgeIdleLearners reminds learners sitting in AWAITING_SUBMISSION whose
// last activity is older than the threshold. Best-effort, state untouched.
func (s *ConversationService) NudgeIdleLearners(ctx context.Context, olderThan time.Duration) error {
	states, err := s.store.ListStates(ctx)
	if err != nil {
		return fmt.Errorf("state sweep: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	for learnerID, d := range states {
		if d.State != progress.StateAwaitingSubmission || d.LastActivityAt.After(cutoff) {
			continue
		}
		lrn, err := s.learners.GetByID(ctx, learnerID)
		if err != nil {
			s.logger.WithError(err).WithField("learner_id", learnerID).Warn("Idle nudge: learner lookup failed")
			continue
		}
		text := fmt.Sprintf("👋 %s, вы начали сдачу отчета, но файл так и не пришел. Отправьте файл или нажмите «Отменить».", lrn.Name)
		if _, err := s.tg.SendMessage(lrn.TelegramID, text, &telebot.SendOptions{}); err != nil {
			s.logger.WithError(err).WithField("learner_id", learnerID).Warn("Idle nudge send failed")
		}
	}
	return nil
}
