package app

import (
	"context"
	"testing"
	"time"

	"student_review_bot/internal/domain/course"
	"student_review_bot/internal/domain/learner"
	"student_review_bot/internal/domain/progress"
	"student_review_bot/internal/domain/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLearnerID  = int64(1)
	testTelegramID = int64(100)
	testChatID     = int64(100)
	testReviewerID = int64(999)
	testCourseID   = int64(10)
	testLesson1ID  = int64(101)
	testLesson2ID  = int64(102)
)

type fixture struct {
	learners *fakeLearnerRepo
	courses  *fakeCourseRepo
	reports  *fakeReportRepo
	store    *fakeStore
	tg       *fakeTelegramClient

	conv *ConversationService
	rev  *ReviewService
}

func newFixture() *fixture {
	f := &fixture{
		learners: &fakeLearnerRepo{learners: map[int64]*learner.Learner{
			testLearnerID: {ID: testLearnerID, TelegramID: testTelegramID, Name: "Айгерим", IsActive: true},
		}},
		courses: &fakeCourseRepo{
			courses: map[int64]*course.Course{
				testCourseID: {ID: testCourseID, Title: "Go для начинающих"},
			},
			lessons: map[int64]*course.Lesson{
				testLesson1ID: {ID: testLesson1ID, CourseID: testCourseID, OrderNum: 1, Title: "Основы", Content: "Напишите hello world."},
				testLesson2ID: {ID: testLesson2ID, CourseID: testCourseID, OrderNum: 2, Title: "Структуры", Content: "Опишите структуру."},
			},
			enrollments: map[int64]map[int64]bool{
				testLearnerID: {testCourseID: true},
			},
		},
		reports: &fakeReportRepo{reports: map[string]*report.Report{}},
		store: &fakeStore{
			states:  map[int64]progress.Data{},
			pending: map[int64]progress.PendingReview{},
		},
		tg: newFakeTelegramClient(),
	}

	f.conv = NewConversationService(f.learners, f.courses, f.reports, f.store, f.tg, testReviewerID, testLogger())
	f.rev = NewReviewService(f.learners, f.courses, f.reports, f.store, f.tg, testReviewerID, testLogger())
	return f
}

func (f *fixture) state(t *testing.T) progress.Data {
	t.Helper()
	d, ok := f.store.states[testLearnerID]
	require.True(t, ok, "no state stored for learner")
	return d
}

// Scenario: a new learner goes from /start through welcome, course selection
// and submission to a pending report.
func TestConversation_HappyPathToPendingReport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.conv.ProcessStart(ctx, testTelegramID, testChatID, "Айгерим"))
	assert.Equal(t, progress.StateWelcome, f.state(t).State)
	assert.Contains(t, f.tg.lastTo(testChatID), "Добро пожаловать")

	require.NoError(t, f.conv.ProcessWelcomeContinue(ctx, testTelegramID, testChatID))
	d := f.state(t)
	assert.Equal(t, progress.StateDashboard, d.State)
	assert.True(t, d.Context.HasSeenWelcome)
	assert.Contains(t, f.tg.lastTo(testChatID), "0/2")

	require.NoError(t, f.conv.ProcessCourseSelect(ctx, testTelegramID, testChatID, testCourseID))
	d = f.state(t)
	assert.Equal(t, progress.StateCourseView, d.State)
	assert.Equal(t, testCourseID, d.CourseID)
	assert.Contains(t, f.tg.lastTo(testChatID), "Основы")

	require.NoError(t, f.conv.ProcessSubmitRequest(ctx, testTelegramID, testChatID, testLesson1ID))
	d = f.state(t)
	assert.Equal(t, progress.StateAwaitingSubmission, d.State)
	assert.Equal(t, testLesson1ID, d.LessonID)

	require.NoError(t, f.conv.ProcessFileUpload(ctx, testTelegramID, testChatID, "file-abc", 555))
	d = f.state(t)
	assert.Equal(t, progress.StateReportPending, d.State)
	assert.NotEmpty(t, d.ReportID)
	assert.Equal(t, 1, d.Context.SubmissionAttempts)

	rep, err := f.reports.GetByID(ctx, d.ReportID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusPending, rep.Status)
	assert.Equal(t, "file-abc", rep.FileID)

	// Reviewer got the card and the forwarded file.
	assert.Contains(t, f.tg.lastTo(testReviewerID), "Новый отчет")
	assert.Equal(t, []int{555}, f.tg.forwarded)
}

func TestConversation_StartUnregistered(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.conv.ProcessStart(context.Background(), 77777, 77777, "Кто-то"))

	assert.Empty(t, f.store.states, "no state may be created for an unknown identity")
	assert.Contains(t, f.tg.lastTo(77777), "не зарегистрированы")
}

func TestConversation_StartReentrySkipsWelcome(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.conv.ProcessStart(ctx, testTelegramID, testChatID, ""))
	require.NoError(t, f.conv.ProcessWelcomeContinue(ctx, testTelegramID, testChatID))
	require.NoError(t, f.conv.ProcessBackToDashboard(ctx, testTelegramID, testChatID))

	// Simulate a fresh /start: the learner has seen the welcome already.
	d := f.state(t)
	d.State = progress.StateWelcome
	f.store.states[testLearnerID] = d

	require.NoError(t, f.conv.ProcessStart(ctx, testTelegramID, testChatID, ""))
	assert.Equal(t, progress.StateDashboard, f.state(t).State)
}

func TestConversation_CourseSelectNotEnrolled(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	otherCourse := int64(20)
	f.courses.courses[otherCourse] = &course.Course{ID: otherCourse, Title: "Чужой курс"}

	require.NoError(t, f.conv.ProcessStart(ctx, testTelegramID, testChatID, ""))
	require.NoError(t, f.conv.ProcessWelcomeContinue(ctx, testTelegramID, testChatID))

	require.NoError(t, f.conv.ProcessCourseSelect(ctx, testTelegramID, testChatID, otherCourse))

	d := f.state(t)
	assert.Equal(t, progress.StateDashboard, d.State, "state must not change on a rejected press")
	assert.Contains(t, f.tg.lastTo(testChatID), "не зачислены")
}

func TestConversation_SubmitRequestLessonFromAnotherCourse(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	foreignLesson := int64(901)
	f.courses.lessons[foreignLesson] = &course.Lesson{ID: foreignLesson, CourseID: 90, OrderNum: 1, Title: "Чужой урок"}

	f.store.states[testLearnerID] = progress.Data{
		State:    progress.StateCourseView,
		CourseID: testCourseID,
		Context:  progress.Context{HasSeenWelcome: true},
	}

	require.NoError(t, f.conv.ProcessSubmitRequest(ctx, testTelegramID, testChatID, foreignLesson))
	assert.Equal(t, progress.StateCourseView, f.state(t).State)
	assert.Contains(t, f.tg.lastTo(testChatID), "не относится")
}

// Scenario: a second upload races an existing pending report. The repository
// check, not the cached state, refuses the duplicate.
func TestConversation_DuplicateSubmissionRefused(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	existing := &report.Report{
		ID: "r-1", LearnerID: testLearnerID, LessonID: testLesson1ID,
		Status: report.StatusPending, FileID: "old", SubmittedAt: time.Now(),
	}
	require.NoError(t, f.reports.Create(ctx, existing))

	f.store.states[testLearnerID] = progress.Data{
		State:    progress.StateAwaitingSubmission,
		CourseID: testCourseID,
		LessonID: testLesson1ID,
		Context:  progress.Context{HasSeenWelcome: true},
	}

	require.NoError(t, f.conv.ProcessFileUpload(ctx, testTelegramID, testChatID, "file-new", 1))

	assert.Equal(t, progress.StateAwaitingSubmission, f.state(t).State)
	assert.Len(t, f.reports.reports, 1)
	rep, err := f.reports.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "old", rep.FileID, "existing submission must be untouched")
	assert.Contains(t, f.tg.lastTo(testChatID), "уже отправлен")
}

// A previously rejected report is reopened in place instead of creating a
// second record for the same lesson.
func TestConversation_ResubmitReopensRejectedReport(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	rejected := &report.Report{
		ID: "r-1", LearnerID: testLearnerID, LessonID: testLesson1ID,
		Status: report.StatusRejected, FileID: "old", SubmittedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.reports.Create(ctx, rejected))

	f.store.states[testLearnerID] = progress.Data{
		State:    progress.StateReportRejected,
		CourseID: testCourseID,
		LessonID: testLesson1ID,
		ReportID: "r-1",
		Context:  progress.Context{HasSeenWelcome: true, SubmissionAttempts: 1},
	}

	require.NoError(t, f.conv.ProcessResubmit(ctx, testTelegramID, testChatID))
	d := f.state(t)
	assert.Equal(t, progress.StateAwaitingSubmission, d.State)
	assert.Equal(t, testLesson1ID, d.LessonID, "resubmission targets the stored lesson")

	require.NoError(t, f.conv.ProcessFileUpload(ctx, testTelegramID, testChatID, "file-new", 2))

	assert.Len(t, f.reports.reports, 1, "the rejected record is reopened, not duplicated")
	rep, err := f.reports.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, report.StatusPending, rep.Status)
	assert.Equal(t, "file-new", rep.FileID)
	assert.False(t, rep.Comment.Valid, "old rejection comment is cleared")
	assert.Equal(t, 2, f.state(t).Context.SubmissionAttempts)
}

func TestConversation_FileUploadOutsideAwaitingSubmission(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.states[testLearnerID] = progress.Data{
		State:   progress.StateDashboard,
		Context: progress.Context{HasSeenWelcome: true},
	}

	require.NoError(t, f.conv.ProcessFileUpload(ctx, testTelegramID, testChatID, "file", 1))

	assert.Equal(t, progress.StateDashboard, f.state(t).State)
	assert.Empty(t, f.reports.reports)
	assert.Contains(t, f.tg.lastTo(testChatID), "Сдать отчет")
}

func TestConversation_CancelSubmission(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.states[testLearnerID] = progress.Data{
		State:    progress.StateAwaitingSubmission,
		CourseID: testCourseID,
		LessonID: testLesson1ID,
		Context:  progress.Context{HasSeenWelcome: true},
	}

	require.NoError(t, f.conv.ProcessCancelSubmission(ctx, testTelegramID, testChatID))

	d := f.state(t)
	assert.Equal(t, progress.StateCourseView, d.State)
	assert.Equal(t, testCourseID, d.CourseID)
}

// A verdict can complete the course while the learner is mid-resubmission.
// Canceling then re-enters the course view, which must recompute the tally
// and land on the completion screen, not the last lesson.
func TestConversation_CancelAfterCourseFullyApproved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i, lessonID := range []int64{testLesson1ID, testLesson2ID} {
		require.NoError(t, f.reports.Create(ctx, &report.Report{
			ID: "r-" + string(rune('a'+i)), LearnerID: testLearnerID, LessonID: lessonID,
			Status: report.StatusApproved, SubmittedAt: time.Now(),
		}))
	}
	f.store.states[testLearnerID] = progress.Data{
		State:    progress.StateAwaitingSubmission,
		CourseID: testCourseID,
		LessonID: testLesson2ID,
		Context:  progress.Context{HasSeenWelcome: true, SubmissionAttempts: 2},
	}

	require.NoError(t, f.conv.ProcessCancelSubmission(ctx, testTelegramID, testChatID))

	d := f.state(t)
	assert.Equal(t, progress.StateCourseCompleted, d.State)
	assert.Equal(t, testCourseID, d.CourseID)
	assert.Zero(t, d.LessonID)
	assert.Contains(t, f.tg.lastTo(testChatID), "полностью пройден")
}

// Selecting a fully approved course lands on the completion screen: the tally
// is recomputed from the repository on entry.
func TestConversation_CourseSelectFullyApproved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i, lessonID := range []int64{testLesson1ID, testLesson2ID} {
		require.NoError(t, f.reports.Create(ctx, &report.Report{
			ID: "r-" + string(rune('a'+i)), LearnerID: testLearnerID, LessonID: lessonID,
			Status: report.StatusApproved, SubmittedAt: time.Now(),
		}))
	}
	f.store.states[testLearnerID] = progress.Data{
		State:   progress.StateDashboard,
		Context: progress.Context{HasSeenWelcome: true},
	}

	require.NoError(t, f.conv.ProcessCourseSelect(ctx, testTelegramID, testChatID, testCourseID))

	d := f.state(t)
	assert.Equal(t, progress.StateCourseCompleted, d.State)
	assert.Equal(t, testCourseID, d.CourseID)
	assert.Zero(t, d.LessonID)
	assert.Contains(t, f.tg.lastTo(testChatID), "полностью пройден")
}

// Free text re-renders the current screen; it never advances the machine.
func TestConversation_TextRerendersCurrentScreen(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.states[testLearnerID] = progress.Data{
		State:    progress.StateReportPending,
		CourseID: testCourseID,
		LessonID: testLesson1ID,
		Context:  progress.Context{HasSeenWelcome: true},
	}

	require.NoError(t, f.conv.ProcessText(ctx, testTelegramID, testChatID))

	assert.Equal(t, progress.StateReportPending, f.state(t).State)
	assert.Contains(t, f.tg.lastTo(testChatID), "на проверке")
}

// Old screen messages are cleared when a new screen replaces them, and the
// cleanup list never grows without bound.
func TestConversation_PreviousScreenCleanedUp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.conv.ProcessStart(ctx, testTelegramID, testChatID, ""))
	require.NoError(t, f.conv.ProcessWelcomeContinue(ctx, testTelegramID, testChatID))

	assert.Len(t, f.tg.deleted, 1, "the welcome message is deleted when the dashboard renders")
	d := f.state(t)
	assert.Len(t, d.Context.RenderedMessageIDs, 1)
}

func TestConversation_PersistFailureAbandonsTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.conv.ProcessStart(ctx, testTelegramID, testChatID, ""))
	f.store.failPuts = true

	err := f.conv.ProcessWelcomeContinue(ctx, testTelegramID, testChatID)
	require.Error(t, err)

	assert.Equal(t, progress.StateWelcome, f.state(t).State, "stored state keeps its pre-transition value")
	assert.Contains(t, f.tg.lastTo(testChatID), "Произошла ошибка")
}

// A failed outbound send does not roll the transition back: the state is
// persisted and the learner can recover with /start.
func TestConversation_SendFailureKeepsTransition(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.conv.ProcessStart(ctx, testTelegramID, testChatID, ""))
	f.tg.failSends = true

	require.NoError(t, f.conv.ProcessWelcomeContinue(ctx, testTelegramID, testChatID))
	assert.Equal(t, progress.StateDashboard, f.state(t).State)
}

func TestConversation_NudgeIdleLearners(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.store.states[testLearnerID] = progress.Data{
		State:          progress.StateAwaitingSubmission,
		CourseID:       testCourseID,
		LessonID:       testLesson1ID,
		LastActivityAt: time.Now().Add(-72 * time.Hour),
		Context:        progress.Context{HasSeenWelcome: true},
	}

	require.NoError(t, f.conv.NudgeIdleLearners(ctx, 48*time.Hour))
	assert.Contains(t, f.tg.lastTo(testTelegramID), "файл так и не пришел")

	// A fresh learner is left alone.
	f.tg.sent = nil
	f.store.states[testLearnerID] = progress.Data{
		State:          progress.StateAwaitingSubmission,
		CourseID:       testCourseID,
		LessonID:       testLesson1ID,
		LastActivityAt: time.Now(),
		Context:        progress.Context{HasSeenWelcome: true},
	}
	require.NoError(t, f.conv.NudgeIdleLearners(ctx, 48*time.Hour))
	assert.Empty(t, f.tg.sent)
}
