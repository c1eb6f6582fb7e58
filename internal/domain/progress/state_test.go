package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStates = []State{
	StateWelcome, StateDashboard, StateCourseView, StateAwaitingSubmission,
	StateReportPending, StateReportRejected, StateLessonCompleted,
	StateCourseCompleted, StateIdle,
}

var allActions = []Action{
	ActionViewCourses, ActionAuto, ActionSelectCourse, ActionSubmitReport,
	ActionBackToDashboard, ActionCourseCompleted, ActionFileUploaded,
	ActionCancel, ActionReportApproved, ActionReportRejected, ActionResubmit,
	ActionNextLesson,
}

func TestNext_Table(t *testing.T) {
	cases := []struct {
		from   State
		action Action
		to     State
	}{
		{StateWelcome, ActionViewCourses, StateDashboard},
		{StateWelcome, ActionAuto, StateDashboard},
		{StateDashboard, ActionSelectCourse, StateCourseView},
		{StateCourseView, ActionSubmitReport, StateAwaitingSubmission},
		{StateCourseView, ActionBackToDashboard, StateDashboard},
		{StateCourseView, ActionCourseCompleted, StateCourseCompleted},
		{StateAwaitingSubmission, ActionFileUploaded, StateReportPending},
		{StateAwaitingSubmission, ActionCancel, StateCourseView},
		{StateReportPending, ActionReportApproved, StateLessonCompleted},
		{StateReportPending, ActionReportRejected, StateReportRejected},
		{StateReportRejected, ActionResubmit, StateAwaitingSubmission},
		{StateLessonCompleted, ActionNextLesson, StateCourseView},
		{StateLessonCompleted, ActionCourseCompleted, StateCourseCompleted},
		{StateCourseCompleted, ActionBackToDashboard, StateDashboard},
	}
	for _, c := range cases {
		assert.Equal(t, c.to, Next(c.from, c.action), "%s + %s", c.from, c.action)
	}
}

func TestNext_UnlistedPairsAreNoOps(t *testing.T) {
	for _, s := range allStates {
		for _, a := range allActions {
			if _, listed := transitions[s][a]; listed {
				continue
			}
			assert.Equal(t, s, Next(s, a), "unlisted %s + %s must not move", s, a)
		}
	}
}

func TestApply_RefInvariantsHoldAfterEveryListedTransition(t *testing.T) {
	refs := Refs{CourseID: 42, LessonID: 7, ReportID: "r-1"}
	for _, s := range allStates {
		for a := range transitions[s] {
			d := Data{State: s, CourseID: 42, LessonID: 7, ReportID: "r-1"}
			got := d.Apply(a, refs)
			assert.NoError(t, got.CheckRefs(), "%s + %s", s, a)
		}
	}
}

func TestApply_MergesRefsAndKeepsContext(t *testing.T) {
	d := NewData("Аня")
	d.Context.HasSeenWelcome = true

	d = d.Apply(ActionViewCourses, Refs{})
	assert.Equal(t, StateDashboard, d.State)
	assert.Equal(t, StateWelcome, d.Context.PreviousState)
	assert.True(t, d.Context.HasSeenWelcome)
	assert.Equal(t, "Аня", d.Context.DisplayName)

	d = d.Apply(ActionSelectCourse, Refs{CourseID: 42})
	assert.Equal(t, StateCourseView, d.State)
	assert.EqualValues(t, 42, d.CourseID)

	// A lesson ref merges without disturbing the course ref.
	d = d.Apply(ActionSubmitReport, Refs{LessonID: 7})
	assert.EqualValues(t, 42, d.CourseID)
	assert.EqualValues(t, 7, d.LessonID)
}

func TestApply_IsIdempotentPerField(t *testing.T) {
	d := Data{State: StateCourseView, CourseID: 42}
	once := d.Apply(ActionSubmitReport, Refs{LessonID: 7})
	twice := once.Apply(ActionSubmitReport, Refs{LessonID: 7})

	// Second application is a no-op transition but the merged fields stay put.
	assert.Equal(t, once.State, twice.State)
	assert.Equal(t, once.CourseID, twice.CourseID)
	assert.Equal(t, once.LessonID, twice.LessonID)
}

func TestApply_ClearsRefsOnDashboard(t *testing.T) {
	d := Data{State: StateCourseView, CourseID: 42, LessonID: 7, ReportID: "r-1"}
	d = d.Apply(ActionBackToDashboard, Refs{})
	assert.Equal(t, StateDashboard, d.State)
	assert.Zero(t, d.CourseID)
	assert.Zero(t, d.LessonID)
	assert.Empty(t, d.ReportID)
}

func TestApply_CourseCompletedKeepsCourseRefOnly(t *testing.T) {
	d := Data{State: StateLessonCompleted, CourseID: 42, LessonID: 7, ReportID: "r-1"}
	d = d.Apply(ActionCourseCompleted, Refs{})
	assert.Equal(t, StateCourseCompleted, d.State)
	assert.EqualValues(t, 42, d.CourseID)
	assert.Zero(t, d.LessonID)
	assert.Empty(t, d.ReportID)
}

func TestRecordRendered_Bounded(t *testing.T) {
	var d Data
	for i := 1; i <= 25; i++ {
		d.RecordRendered(i)
	}
	assert.Len(t, d.Context.RenderedMessageIDs, 10)
	assert.Equal(t, 16, d.Context.RenderedMessageIDs[0])

	ids := d.TakeRendered()
	assert.Len(t, ids, 10)
	assert.Empty(t, d.Context.RenderedMessageIDs)
}

func TestNewData_InitialState(t *testing.T) {
	d := NewData("Борис")
	assert.Equal(t, StateWelcome, d.State)
	assert.False(t, d.Context.HasSeenWelcome)
	assert.False(t, d.LastActivityAt.IsZero())
}
