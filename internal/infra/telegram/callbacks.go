package telegram

import (
	"strconv"
	"strings"

	"student_review_bot/internal/app"
)

type callbackKind int

const (
	cbUnknown callbackKind = iota
	cbWelcomeContinue
	cbToDashboard
	cbCourseSelect
	cbSubmit
	cbResubmit
	cbCancelSubmission
	cbAdminApprove
	cbAdminReject
)

// parsedCallback is a button payload resolved into an action kind and its
// reference ids.
type parsedCallback struct {
	kind     callbackKind
	courseID int64
	lessonID int64
	reportID string
}

// parseCallback maps the opaque payload string to (action kind, references).
// telebot prefixes unique-handler payloads with "\f"; raw payloads built from
// InlineButton.Data arrive without it, so both forms are accepted.
func parseCallback(data string) parsedCallback {
	data = strings.TrimPrefix(data, "\f")
	data = strings.TrimSpace(data)

	switch data {
	case app.PayloadWelcomeToDashboard:
		return parsedCallback{kind: cbWelcomeContinue}
	case app.PayloadToDashboard, app.PayloadBackToCourses:
		return parsedCallback{kind: cbToDashboard}
	case app.PayloadResubmitReport:
		return parsedCallback{kind: cbResubmit}
	case app.PayloadCancelSubmission:
		return parsedCallback{kind: cbCancelSubmission}
	}

	// course_completed_<id> must be checked before course_<id>.
	if rest, ok := strings.CutPrefix(data, app.PayloadCourseCompletedPrefix); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return parsedCallback{kind: cbCourseSelect, courseID: id}
		}
		return parsedCallback{}
	}
	if rest, ok := strings.CutPrefix(data, app.PayloadCoursePrefix); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return parsedCallback{kind: cbCourseSelect, courseID: id}
		}
		return parsedCallback{}
	}
	if rest, ok := strings.CutPrefix(data, app.PayloadSubmitPrefix); ok {
		if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return parsedCallback{kind: cbSubmit, lessonID: id}
		}
		return parsedCallback{}
	}
	if rest, ok := strings.CutPrefix(data, app.PayloadAdminApprovePrefix); ok && rest != "" {
		return parsedCallback{kind: cbAdminApprove, reportID: rest}
	}
	if rest, ok := strings.CutPrefix(data, app.PayloadAdminRejectPrefix); ok && rest != "" {
		return parsedCallback{kind: cbAdminReject, reportID: rest}
	}

	return parsedCallback{}
}
