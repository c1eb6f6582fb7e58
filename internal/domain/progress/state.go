// internal/domain/progress/state.go
package progress

import (
	"fmt"
	"time"
)

// State is a learner's position in the course workflow.
type State string

const (
	StateWelcome            State = "WELCOME"
	StateDashboard          State = "DASHBOARD"
	StateCourseView         State = "COURSE_VIEW"
	StateAwaitingSubmission State = "AWAITING_SUBMISSION"
	StateReportPending      State = "REPORT_PENDING"
	StateReportRejected     State = "REPORT_REJECTED"
	StateLessonCompleted    State = "LESSON_COMPLETED"
	StateCourseCompleted    State = "COURSE_COMPLETED"
	StateIdle               State = "IDLE"
)

// Action is an event that may move a learner between states.
type Action string

const (
	ActionViewCourses     Action = "view_courses"
	ActionAuto            Action = "auto"
	ActionSelectCourse    Action = "select_course"
	ActionSubmitReport    Action = "submit_report"
	ActionBackToDashboard Action = "back_to_dashboard"
	ActionCourseCompleted Action = "course_completed"
	ActionFileUploaded    Action = "file_uploaded"
	ActionCancel          Action = "cancel"
	ActionReportApproved  Action = "report_approved"
	ActionReportRejected  Action = "report_rejected"
	ActionResubmit        Action = "resubmit"
	ActionNextLesson      Action = "next_lesson"
)

// transitions is the full table. Any (state, action) pair absent here is a no-op.
var transitions = map[State]map[Action]State{
	StateWelcome: {
		ActionViewCourses: StateDashboard,
		ActionAuto:        StateDashboard,
	},
	StateDashboard: {
		ActionSelectCourse: StateCourseView,
	},
	StateCourseView: {
		ActionSubmitReport:    StateAwaitingSubmission,
		ActionBackToDashboard: StateDashboard,
		ActionCourseCompleted: StateCourseCompleted,
	},
	StateAwaitingSubmission: {
		ActionFileUploaded: StateReportPending,
		ActionCancel:       StateCourseView,
	},
	StateReportPending: {
		ActionReportApproved: StateLessonCompleted,
		ActionReportRejected: StateReportRejected,
	},
	StateReportRejected: {
		ActionResubmit: StateAwaitingSubmission,
	},
	StateLessonCompleted: {
		ActionNextLesson:      StateCourseView,
		ActionCourseCompleted: StateCourseCompleted,
	},
	StateCourseCompleted: {
		ActionBackToDashboard: StateDashboard,
	},
}

// Next resolves the transition table. Unlisted actions leave the state unchanged.
func Next(s State, a Action) State {
	if next, ok := transitions[s][a]; ok {
		return next
	}
	return s
}

// Context carries auxiliary per-learner fields alongside the state itself.
type Context struct {
	PreviousState      State  `json:"previous_state,omitempty"`
	HasSeenWelcome     bool   `json:"has_seen_welcome"`
	DisplayName        string `json:"display_name,omitempty"`
	RenderedMessageIDs []int  `json:"rendered_message_ids,omitempty"`
	SubmissionAttempts int    `json:"submission_attempts"`
}

// Data is the per-learner state blob persisted in the state store.
type Data struct {
	State          State     `json:"state"`
	CourseID       int64     `json:"course_id,omitempty"`
	LessonID       int64     `json:"lesson_id,omitempty"`
	ReportID       string    `json:"report_id,omitempty"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Context        Context   `json:"context"`
}

// NewData returns the initial blob for a newly-seen learner.
func NewData(displayName string) Data {
	return Data{
		State:          StateWelcome,
		LastActivityAt: time.Now(),
		Context: Context{
			HasSeenWelcome: false,
			DisplayName:    displayName,
		},
	}
}

// Refs are the optional entity references supplied with an action.
// Zero-valued fields are left untouched; transitions merge, never replace.
type Refs struct {
	CourseID int64
	LessonID int64
	ReportID string
}

// Apply computes the transition as a pure function of (state, action, refs).
// It performs no I/O. Repeated application with the same input yields the
// same result, field by field.
func (d Data) Apply(a Action, refs Refs) Data {
	next, listed := transitions[d.State][a]
	if !listed {
		// Unlisted pairs are no-ops: state and references stay untouched.
		return d
	}
	if next != d.State {
		d.Context.PreviousState = d.State
		d.State = next
	}

	if refs.CourseID != 0 {
		d.CourseID = refs.CourseID
	}
	if refs.LessonID != 0 {
		d.LessonID = refs.LessonID
	}
	if refs.ReportID != "" {
		d.ReportID = refs.ReportID
	}

	// References are cleared on leaving a course, and lesson-level references
	// on finishing one. Everywhere else they carry over.
	switch d.State {
	case StateDashboard:
		d.CourseID, d.LessonID, d.ReportID = 0, 0, ""
	case StateCourseCompleted:
		d.LessonID, d.ReportID = 0, ""
	}

	return d
}

// statesRequiringCourse and statesRequiringLesson encode the reference
// invariants: being inside a course implies CourseID, being on a concrete
// submission implies LessonID as well.
var statesRequiringCourse = map[State]bool{
	StateCourseView:         true,
	StateAwaitingSubmission: true,
	StateReportPending:      true,
	StateReportRejected:     true,
	StateLessonCompleted:    true,
}

var statesRequiringLesson = map[State]bool{
	StateAwaitingSubmission: true,
	StateReportPending:      true,
	StateReportRejected:     true,
}

// CheckRefs reports a violated reference invariant, nil if the blob is consistent.
func (d Data) CheckRefs() error {
	if statesRequiringCourse[d.State] && d.CourseID == 0 {
		return fmt.Errorf("state %s requires a course reference", d.State)
	}
	if statesRequiringLesson[d.State] && d.LessonID == 0 {
		return fmt.Errorf("state %s requires a lesson reference", d.State)
	}
	return nil
}

// renderedHistoryLimit bounds the cleanup list so the blob cannot grow without bound.
const renderedHistoryLimit = 10

// RecordRendered appends outbound message ids eligible for later cleanup.
func (d *Data) RecordRendered(ids ...int) {
	d.Context.RenderedMessageIDs = append(d.Context.RenderedMessageIDs, ids...)
	if n := len(d.Context.RenderedMessageIDs); n > renderedHistoryLimit {
		d.Context.RenderedMessageIDs = d.Context.RenderedMessageIDs[n-renderedHistoryLimit:]
	}
}

// TakeRendered returns the recorded message ids and clears the list.
func (d *Data) TakeRendered() []int {
	ids := d.Context.RenderedMessageIDs
	d.Context.RenderedMessageIDs = nil
	return ids
}
