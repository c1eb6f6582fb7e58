package app

import (
	"context"
	"io"
	"sort"
	"time"

	"student_review_bot/internal/domain/course"
	"student_review_bot/internal/domain/learner"
	"student_review_bot/internal/domain/progress"
	"student_review_bot/internal/domain/report"
	idb "student_review_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// In-memory doubles for the repository, store and transport contracts.

type fakeLearnerRepo struct {
	learners map[int64]*learner.Learner
}

func (f *fakeLearnerRepo) GetByID(_ context.Context, id int64) (*learner.Learner, error) {
	if l, ok := f.learners[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, idb.ErrLearnerNotFound
}

func (f *fakeLearnerRepo) GetByTelegramID(_ context.Context, telegramID int64) (*learner.Learner, error) {
	for _, l := range f.learners {
		if l.TelegramID == telegramID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, idb.ErrLearnerNotFound
}

type fakeCourseRepo struct {
	courses     map[int64]*course.Course
	lessons     map[int64]*course.Lesson
	enrollments map[int64]map[int64]bool // learnerID -> courseID
}

func (f *fakeCourseRepo) GetByID(_ context.Context, id int64) (*course.Course, error) {
	if c, ok := f.courses[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, idb.ErrCourseNotFound
}

func (f *fakeCourseRepo) GetLessonByID(_ context.Context, id int64) (*course.Lesson, error) {
	if l, ok := f.lessons[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, idb.ErrLessonNotFound
}

func (f *fakeCourseRepo) ListLessons(_ context.Context, courseID int64) ([]*course.Lesson, error) {
	var out []*course.Lesson
	for _, l := range f.lessons {
		if l.CourseID == courseID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNum < out[j].OrderNum })
	return out, nil
}

func (f *fakeCourseRepo) ListEnrolled(_ context.Context, learnerID int64) ([]*course.Course, error) {
	var out []*course.Course
	for courseID := range f.enrollments[learnerID] {
		if c, ok := f.courses[courseID]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCourseRepo) IsEnrolled(_ context.Context, learnerID, courseID int64) (bool, error) {
	return f.enrollments[learnerID][courseID], nil
}

type fakeReportRepo struct {
	reports map[string]*report.Report
}

func (f *fakeReportRepo) Create(_ context.Context, r *report.Report) error {
	cp := *r
	f.reports[r.ID] = &cp
	return nil
}

func (f *fakeReportRepo) GetByID(_ context.Context, id string) (*report.Report, error) {
	if r, ok := f.reports[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, idb.ErrReportNotFound
}

func (f *fakeReportRepo) GetByLearnerAndLesson(_ context.Context, learnerID, lessonID int64) (*report.Report, error) {
	for _, r := range f.reports {
		if r.LearnerID == learnerID && r.LessonID == lessonID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, idb.ErrReportNotFound
}

func (f *fakeReportRepo) ListByLearner(_ context.Context, learnerID int64) ([]*report.Report, error) {
	var out []*report.Report
	for _, r := range f.reports {
		if r.LearnerID == learnerID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReportRepo) Update(_ context.Context, r *report.Report) error {
	if _, ok := f.reports[r.ID]; !ok {
		return idb.ErrReportNotFound
	}
	cp := *r
	f.reports[r.ID] = &cp
	return nil
}

func (f *fakeReportRepo) ListPendingOlderThan(_ context.Context, before time.Time) ([]*report.Report, error) {
	var out []*report.Report
	for _, r := range f.reports {
		if r.Status == report.StatusPending && r.SubmittedAt.Before(before) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeStore struct {
	states  map[int64]progress.Data
	pending map[int64]progress.PendingReview

	failPuts bool
}

func (f *fakeStore) GetState(_ context.Context, learnerID int64) (*progress.Data, error) {
	if d, ok := f.states[learnerID]; ok {
		return &d, nil
	}
	return nil, progress.ErrStateNotFound
}

func (f *fakeStore) PutState(_ context.Context, learnerID int64, d progress.Data) error {
	if f.failPuts {
		return context.DeadlineExceeded
	}
	d.LastActivityAt = time.Now()
	f.states[learnerID] = d
	return nil
}

func (f *fakeStore) DeleteState(_ context.Context, learnerID int64) error {
	delete(f.states, learnerID)
	return nil
}

func (f *fakeStore) GetPendingReview(_ context.Context, chatID int64) (*progress.PendingReview, error) {
	if p, ok := f.pending[chatID]; ok {
		return &p, nil
	}
	return nil, progress.ErrStateNotFound
}

func (f *fakeStore) PutPendingReview(_ context.Context, chatID int64, p progress.PendingReview) error {
	f.pending[chatID] = p
	return nil
}

func (f *fakeStore) DeletePendingReview(_ context.Context, chatID int64) error {
	delete(f.pending, chatID)
	return nil
}

func (f *fakeStore) ListStates(_ context.Context) (map[int64]progress.Data, error) {
	out := make(map[int64]progress.Data, len(f.states))
	for id, d := range f.states {
		out[id] = d
	}
	return out, nil
}

type sentMessage struct {
	ChatID  int64
	Text    string
	Options *telebot.SendOptions
}

type fakeTelegramClient struct {
	sent      []sentMessage
	forwarded []int
	edited    map[int]string
	deleted   []int
	nextID    int

	failSends bool
}

func newFakeTelegramClient() *fakeTelegramClient {
	return &fakeTelegramClient{edited: make(map[int]string)}
}

func (f *fakeTelegramClient) SendMessage(chatID int64, text string, options *telebot.SendOptions) (int, error) {
	if f.failSends {
		return 0, context.DeadlineExceeded
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Options: options})
	return f.nextID, nil
}

func (f *fakeTelegramClient) ForwardMessage(_, _ int64, messageID int) error {
	f.forwarded = append(f.forwarded, messageID)
	return nil
}

func (f *fakeTelegramClient) EditMessageText(_ int64, messageID int, text string) error {
	f.edited[messageID] = text
	return nil
}

func (f *fakeTelegramClient) DeleteMessage(_ int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

// lastTo returns the most recent message sent to the given chat, or an empty
// string when there is none.
func (f *fakeTelegramClient) lastTo(chatID int64) string {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].ChatID == chatID {
			return f.sent[i].Text
		}
	}
	return ""
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
