package app

import (
	"context"
	"errors"
	"fmt"

	"student_review_bot/internal/domain/course"
	"student_review_bot/internal/domain/learner"
	"student_review_bot/internal/domain/progress"
	"student_review_bot/internal/domain/report"
	domainTelegram "student_review_bot/internal/domain/telegram"
	idb "student_review_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// screenRenderer turns a learner's state blob into an outbound screen.
// It is shared by the conversation and review services: both drive the state
// machine and both must show the learner the resulting screen.
type screenRenderer struct {
	courses course.Repository
	reports report.Repository
	tg      domainTelegram.Client
	logger  *logrus.Entry
}

// render builds the screen for the current state, clears the previous
// screen's messages best-effort, sends the new one and records its id in the
// blob. A failed send is logged and does not fail the caller: the state
// transition stands, notification is at-least-once.
func (r *screenRenderer) render(ctx context.Context, chatID int64, lrn *learner.Learner, d *progress.Data) error {
	scr, err := r.buildScreen(ctx, lrn, d)
	if err != nil {
		return err
	}

	for _, id := range d.TakeRendered() {
		if err := r.tg.DeleteMessage(chatID, id); err != nil {
			r.logger.WithError(err).WithField("message_id", id).Debug("Could not delete previous screen message")
		}
	}

	msgID, err := r.tg.SendMessage(chatID, scr.Text, sendOptions(scr))
	if err != nil {
		r.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to send screen")
		return nil
	}
	d.RecordRendered(msgID)
	return nil
}

// sendOptions converts a Screen's buttons to a telebot inline keyboard.
func sendOptions(scr Screen) *telebot.SendOptions {
	opts := &telebot.SendOptions{}
	if len(scr.Buttons) == 0 {
		return opts
	}

	markup := &telebot.ReplyMarkup{}
	rows := make([][]telebot.InlineButton, 0, len(scr.Buttons))
	for _, row := range scr.Buttons {
		btns := make([]telebot.InlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, telebot.InlineButton{Text: b.Label, Data: b.Data})
		}
		rows = append(rows, btns)
	}
	markup.InlineKeyboard = rows
	opts.ReplyMarkup = markup
	return opts
}

// buildScreen is a pure function of (state blob, looked-up entities).
func (r *screenRenderer) buildScreen(ctx context.Context, lrn *learner.Learner, d *progress.Data) (Screen, error) {
	name := d.Context.DisplayName
	if name == "" {
		name = lrn.Name
	}

	switch d.State {
	case progress.StateWelcome:
		return welcomeScreen(name), nil

	case progress.StateDashboard:
		items, err := r.courseOverview(ctx, lrn.ID)
		if err != nil {
			return Screen{}, err
		}
		return dashboardScreen(name, items), nil

	case progress.StateCourseView:
		c, err := r.courses.GetByID(ctx, d.CourseID)
		if err != nil {
			return Screen{}, fmt.Errorf("course lookup for screen: %w", err)
		}
		lesson, err := r.currentLesson(ctx, lrn.ID, d.CourseID)
		if err != nil {
			return Screen{}, err
		}
		rep, err := r.reports.GetByLearnerAndLesson(ctx, lrn.ID, lesson.ID)
		if err != nil && !errors.Is(err, idb.ErrReportNotFound) {
			return Screen{}, fmt.Errorf("report lookup for screen: %w", err)
		}
		return courseViewScreen(c, lesson, rep), nil

	case progress.StateAwaitingSubmission:
		lesson, err := r.courses.GetLessonByID(ctx, d.LessonID)
		if err != nil {
			return Screen{}, fmt.Errorf("lesson lookup for screen: %w", err)
		}
		return awaitingSubmissionScreen(lesson), nil

	case progress.StateReportPending:
		lesson, err := r.courses.GetLessonByID(ctx, d.LessonID)
		if err != nil {
			return Screen{}, fmt.Errorf("lesson lookup for screen: %w", err)
		}
		return reportPendingScreen(lesson), nil

	case progress.StateReportRejected:
		c, err := r.courses.GetByID(ctx, d.CourseID)
		if err != nil {
			return Screen{}, fmt.Errorf("course lookup for screen: %w", err)
		}
		lesson, err := r.courses.GetLessonByID(ctx, d.LessonID)
		if err != nil {
			return Screen{}, fmt.Errorf("lesson lookup for screen: %w", err)
		}
		comment := ""
		if d.ReportID != "" {
			if rep, err := r.reports.GetByID(ctx, d.ReportID); err == nil && rep.Comment.Valid {
				comment = rep.Comment.String
			}
		}
		return reportRejectedScreen(c, lesson, comment), nil

	case progress.StateLessonCompleted:
		c, err := r.courses.GetByID(ctx, d.CourseID)
		if err != nil {
			return Screen{}, fmt.Errorf("course lookup for screen: %w", err)
		}
		lesson := &course.Lesson{Title: "—", CourseID: d.CourseID}
		if d.LessonID != 0 {
			if l, err := r.courses.GetLessonByID(ctx, d.LessonID); err == nil {
				lesson = l
			}
		}
		return lessonCompletedScreen(c, lesson), nil

	case progress.StateCourseCompleted:
		c, err := r.courses.GetByID(ctx, d.CourseID)
		if err != nil {
			return Screen{}, fmt.Errorf("course lookup for screen: %w", err)
		}
		return courseCompletedScreen(c), nil

	default:
		return idleScreen(name), nil
	}
}

// courseOverview computes per-course progress for the dashboard.
func (r *screenRenderer) courseOverview(ctx context.Context, learnerID int64) ([]courseProgress, error) {
	enrolled, err := r.courses.ListEnrolled(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("enrolled courses lookup: %w", err)
	}

	items := make([]courseProgress, 0, len(enrolled))
	for _, c := range enrolled {
		approved, total, err := r.courseCompletion(ctx, learnerID, c.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, courseProgress{Course: c, Approved: approved, Total: total})
	}
	return items, nil
}

// courseCompletion recomputes the approved/total lesson tally from the
// repository. This recomputation, not a stored flag, is the source of truth
// for course completion: a lesson added later correctly reopens progress.
func (r *screenRenderer) courseCompletion(ctx context.Context, learnerID, courseID int64) (approved, total int, err error) {
	lessons, err := r.courses.ListLessons(ctx, courseID)
	if err != nil {
		return 0, 0, fmt.Errorf("lessons lookup: %w", err)
	}
	reps, err := r.reports.ListByLearner(ctx, learnerID)
	if err != nil {
		return 0, 0, fmt.Errorf("reports lookup: %w", err)
	}

	approvedByLesson := make(map[int64]bool, len(reps))
	for _, rep := range reps {
		if rep.Status == report.StatusApproved {
			approvedByLesson[rep.LessonID] = true
		}
	}
	for _, l := range lessons {
		if approvedByLesson[l.ID] {
			approved++
		}
	}
	return approved, len(lessons), nil
}

// currentLesson is the first lesson of the given course without an approved
// submission. The scan is scoped to the one course the learner selected;
// lessons of other enrollments are never considered.
func (r *screenRenderer) currentLesson(ctx context.Context, learnerID, courseID int64) (*course.Lesson, error) {
	lessons, err := r.courses.ListLessons(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("lessons lookup: %w", err)
	}
	if len(lessons) == 0 {
		return nil, fmt.Errorf("course %d has no lessons", courseID)
	}
	reps, err := r.reports.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("reports lookup: %w", err)
	}

	approvedByLesson := make(map[int64]bool, len(reps))
	for _, rep := range reps {
		if rep.Status == report.StatusApproved {
			approvedByLesson[rep.LessonID] = true
		}
	}
	for _, l := range lessons {
		if !approvedByLesson[l.ID] {
			return l, nil
		}
	}
	// Everything approved: show the last lesson.
	return lessons[len(lessons)-1], nil
}

// sendPlain sends a standalone text message, logging failures.
func (r *screenRenderer) sendPlain(chatID int64, text string) {
	if _, err := r.tg.SendMessage(chatID, text, &telebot.SendOptions{}); err != nil {
		r.logger.WithError(err).WithField("chat_id", chatID).Warn("Failed to send message")
	}
}

// sendFailure delivers the generic apologetic message for infrastructure errors.
func (r *screenRenderer) sendFailure(chatID int64) {
	r.sendPlain(chatID, "❌ Произошла ошибка. Пожалуйста, попробуйте позже.")
}
