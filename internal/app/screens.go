package app

import (
	"fmt"
	"strconv"
	"strings"

	"student_review_bot/internal/domain/course"
	"student_review_bot/internal/domain/report"
)

// Callback payload vocabulary. Dashboard course buttons encode the course id,
// submit buttons the lesson id, reviewer buttons the report id.
const (
	PayloadWelcomeToDashboard    = "welcome_to_dashboard"
	PayloadToDashboard           = "to_dashboard"
	PayloadBackToCourses         = "back_to_courses" // legacy alias of to_dashboard
	PayloadResubmitReport        = "resubmit_report"
	PayloadCancelSubmission      = "cancel_submission"
	PayloadCoursePrefix          = "course_"
	PayloadCourseCompletedPrefix = "course_completed_"
	PayloadSubmitPrefix          = "submit_"
	PayloadAdminApprovePrefix    = "admin_approve_"
	PayloadAdminRejectPrefix     = "admin_reject_"
)

// Button is one inline action under a rendered screen.
type Button struct {
	Label string
	Data  string
}

// Screen is the rendered view for one state: a primary message plus
// zero or more action buttons. Building one is pure.
type Screen struct {
	Text    string
	Buttons [][]Button
}

// courseProgress pairs a course with the learner's approved-lesson tally.
type courseProgress struct {
	Course   *course.Course
	Approved int
	Total    int
}

func (p courseProgress) percent() int {
	if p.Total == 0 {
		return 0
	}
	return p.Approved * 100 / p.Total
}

func (p courseProgress) completed() bool {
	return p.Total > 0 && p.Approved == p.Total
}

func welcomeScreen(name string) Screen {
	text := fmt.Sprintf("👋 Добро пожаловать, %s!\n\nВы зарегистрированы в системе обучения. Нажмите кнопку ниже, чтобы перейти к вашим курсам.", name)
	return Screen{
		Text: text,
		Buttons: [][]Button{
			{{Label: "📚 Продолжить", Data: PayloadWelcomeToDashboard}},
		},
	}
}

func dashboardScreen(name string, items []courseProgress) Screen {
	if len(items) == 0 {
		return Screen{Text: fmt.Sprintf("👋 %s, у вас пока нет назначенных курсов. Обратитесь к администратору.", name)}
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("👋 %s, ваши курсы:\n\n", name))

	buttons := make([][]Button, 0, len(items))
	for _, it := range items {
		text.WriteString(fmt.Sprintf("• %s — %d/%d (%d%%)\n", it.Course.Title, it.Approved, it.Total, it.percent()))

		label := fmt.Sprintf("📖 %s (%d%%)", it.Course.Title, it.percent())
		data := PayloadCoursePrefix + strconv.FormatInt(it.Course.ID, 10)
		if it.completed() {
			label = fmt.Sprintf("✅ %s", it.Course.Title)
			data = PayloadCourseCompletedPrefix + strconv.FormatInt(it.Course.ID, 10)
		}
		buttons = append(buttons, []Button{{Label: label, Data: data}})
	}

	return Screen{Text: text.String(), Buttons: buttons}
}

func courseViewScreen(c *course.Course, l *course.Lesson, rep *report.Report) Screen {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("📖 %s\n\nУрок %d: %s\n\n%s\n", c.Title, l.OrderNum, l.Title, l.Content))

	if rep != nil {
		switch rep.Status {
		case report.StatusPending:
			text.WriteString("\n⏳ Статус: ваш отчет на проверке\n")
		case report.StatusRejected:
			text.WriteString("\n❌ Статус: отчет отклонен\n")
			if rep.Comment.Valid && rep.Comment.String != "" {
				text.WriteString(fmt.Sprintf("💬 Комментарий: %s\n", rep.Comment.String))
			}
		}
	}

	return Screen{
		Text: text.String(),
		Buttons: [][]Button{{
			{Label: "🔙 К курсам", Data: PayloadToDashboard},
			{Label: "📝 Сдать отчет", Data: PayloadSubmitPrefix + strconv.FormatInt(l.ID, 10)},
		}},
	}
}

func awaitingSubmissionScreen(l *course.Lesson) Screen {
	text := fmt.Sprintf("📝 Отправка отчета по уроку «%s»\n\nОтправьте файл (документ или изображение) с вашим отчетом. После отправки он будет передан на проверку.", l.Title)
	return Screen{
		Text: text,
		Buttons: [][]Button{{
			{Label: "❌ Отменить", Data: PayloadCancelSubmission},
			{Label: "🔙 К курсам", Data: PayloadToDashboard},
		}},
	}
}

func reportPendingScreen(l *course.Lesson) Screen {
	text := fmt.Sprintf("⏳ Отчет по уроку «%s» на проверке.\n\nВы получите уведомление, когда отчет будет проверен.", l.Title)
	return Screen{
		Text:    text,
		Buttons: [][]Button{{{Label: "🔙 К курсам", Data: PayloadToDashboard}}},
	}
}

func reportRejectedScreen(c *course.Course, l *course.Lesson, comment string) Screen {
	var text strings.Builder
	text.WriteString(fmt.Sprintf("❌ Отчет по уроку «%s» отправлен на доработку.\n", l.Title))
	if comment != "" {
		text.WriteString(fmt.Sprintf("\n💬 Комментарий проверяющего:\n%s\n", comment))
	}
	text.WriteString("\nИсправьте замечания и отправьте отчет заново.")

	return Screen{
		Text: text.String(),
		Buttons: [][]Button{{
			{Label: "🔄 Переделать", Data: PayloadResubmitReport},
			{Label: "🔙 К уроку", Data: PayloadCoursePrefix + strconv.FormatInt(c.ID, 10)},
		}},
	}
}

func lessonCompletedScreen(c *course.Course, l *course.Lesson) Screen {
	text := fmt.Sprintf("🎉 Отчет принят!\n\nУрок «%s» курса «%s» завершен. Можете переходить к следующему уроку.", l.Title, c.Title)
	return Screen{
		Text: text,
		Buttons: [][]Button{{
			{Label: "➡️ Следующий урок", Data: PayloadCoursePrefix + strconv.FormatInt(c.ID, 10)},
			{Label: "🔙 К курсам", Data: PayloadToDashboard},
		}},
	}
}

func courseCompletedScreen(c *course.Course) Screen {
	text := fmt.Sprintf("🏆 Поздравляем! Курс «%s» полностью пройден.\n\nВсе отчеты приняты.", c.Title)
	return Screen{
		Text:    text,
		Buttons: [][]Button{{{Label: "🔙 К курсам", Data: PayloadToDashboard}}},
	}
}

func idleScreen(name string) Screen {
	return Screen{Text: fmt.Sprintf("%s, у вас нет активных задач. Используйте /start, чтобы открыть курсы.", name)}
}
