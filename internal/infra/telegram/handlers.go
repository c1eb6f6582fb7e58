package telegram

import (
	"context"
	"strings"
	"time"

	"student_review_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Handlers wires telebot updates to the application services. Every update
// gets its own timeout-bounded context derived from the process context.
type Handlers struct {
	conversations  *app.ConversationService
	reviews        *app.ReviewService
	reviewerChatID int64
	requestTimeout time.Duration
	logger         *logrus.Entry
}

func NewHandlers(
	conversations *app.ConversationService,
	reviews *app.ReviewService,
	reviewerChatID int64,
	requestTimeout time.Duration,
	logger *logrus.Entry,
) *Handlers {
	return &Handlers{
		conversations:  conversations,
		reviews:        reviews,
		reviewerChatID: reviewerChatID,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Register attaches all update handlers to the bot.
func (h *Handlers) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/start", h.onStart(ctx))
	b.Handle(telebot.OnCallback, h.onCallback(ctx))
	b.Handle(telebot.OnDocument, h.onFile(ctx))
	b.Handle(telebot.OnPhoto, h.onFile(ctx))
	b.Handle(telebot.OnText, h.onText(ctx))
}

func (h *Handlers) onStart(base context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(base, h.requestTimeout)
		defer cancel()

		if c.Sender().ID == h.reviewerChatID {
			return c.Send("Привет! Это канал проверки отчетов. Карточки новых отчетов будут приходить сюда.")
		}

		err := h.conversations.ProcessStart(ctx, c.Sender().ID, c.Chat().ID, displayName(c.Sender()))
		if err != nil {
			h.logger.WithError(err).WithField("telegram_id", c.Sender().ID).Error("/start failed")
		}
		return nil
	}
}

func (h *Handlers) onCallback(base context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(base, h.requestTimeout)
		defer cancel()

		cb := c.Callback()
		if cb == nil {
			return nil
		}
		// Acknowledge first so the button stops spinning even on errors.
		defer func() {
			if err := c.Respond(&telebot.CallbackResponse{}); err != nil {
				h.logger.WithError(err).Debug("Callback acknowledge failed")
			}
		}()

		tgID := c.Sender().ID
		chatID := c.Chat().ID
		parsed := parseCallback(cb.Data)

		log := h.logger.WithFields(logrus.Fields{"telegram_id": tgID, "payload": strings.TrimPrefix(cb.Data, "\f")})

		var err error
		switch parsed.kind {
		case cbWelcomeContinue:
			err = h.conversations.ProcessWelcomeContinue(ctx, tgID, chatID)
		case cbToDashboard:
			err = h.conversations.ProcessBackToDashboard(ctx, tgID, chatID)
		case cbCourseSelect:
			err = h.conversations.ProcessCourseSelect(ctx, tgID, chatID, parsed.courseID)
		case cbSubmit:
			err = h.conversations.ProcessSubmitRequest(ctx, tgID, chatID, parsed.lessonID)
		case cbResubmit:
			err = h.conversations.ProcessResubmit(ctx, tgID, chatID)
		case cbCancelSubmission:
			err = h.conversations.ProcessCancelSubmission(ctx, tgID, chatID)
		case cbAdminApprove:
			err = h.reviews.ProcessApprove(ctx, tgID, parsed.reportID, cardMessageID(cb), cardText(cb))
		case cbAdminReject:
			err = h.reviews.ProcessRejectRequest(ctx, tgID, parsed.reportID, cardMessageID(cb), cardText(cb))
		default:
			log.Warn("Unknown callback payload, ignored")
			return nil
		}
		if err != nil {
			log.WithError(err).Error("Callback processing failed")
		}
		return nil
	}
}

func (h *Handlers) onFile(base context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(base, h.requestTimeout)
		defer cancel()

		if c.Sender().ID == h.reviewerChatID {
			return nil
		}

		msg := c.Message()
		var fileID string
		switch {
		case msg.Document != nil:
			fileID = msg.Document.FileID
		case msg.Photo != nil:
			fileID = msg.Photo.FileID
		default:
			return nil
		}

		err := h.conversations.ProcessFileUpload(ctx, c.Sender().ID, c.Chat().ID, fileID, msg.ID)
		if err != nil {
			h.logger.WithError(err).WithField("telegram_id", c.Sender().ID).Error("File upload processing failed")
		}
		return nil
	}
}

func (h *Handlers) onText(base context.Context) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		ctx, cancel := context.WithTimeout(base, h.requestTimeout)
		defer cancel()

		// Reviewer text may complete a pending rejection.
		if c.Sender().ID == h.reviewerChatID {
			handled, err := h.reviews.ProcessReviewerText(ctx, c.Sender().ID, c.Text())
			if err != nil {
				h.logger.WithError(err).Error("Reviewer text processing failed")
			}
			if !handled {
				return c.Send("Нет отчета, ожидающего комментария.")
			}
			return nil
		}

		err := h.conversations.ProcessText(ctx, c.Sender().ID, c.Chat().ID)
		if err != nil {
			h.logger.WithError(err).WithField("telegram_id", c.Sender().ID).Error("Text processing failed")
		}
		return nil
	}
}

func displayName(u *telebot.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func cardMessageID(cb *telebot.Callback) int {
	if cb.Message == nil {
		return 0
	}
	return cb.Message.ID
}

func cardText(cb *telebot.Callback) string {
	if cb.Message == nil {
		return ""
	}
	return cb.Message.Text
}
