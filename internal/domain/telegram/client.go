package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for the outbound side of the chat transport.
// This helps in decoupling the application logic from the specific bot library.
type Client interface {
	// SendMessage sends text (optionally with buttons) and returns the
	// outbound message id so the caller can schedule it for cleanup.
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) (int, error)
	// ForwardMessage relays a learner's message (file submissions) to another chat.
	ForwardMessage(toChatID, fromChatID int64, messageID int) error
	// EditMessageText rewrites a previously sent message (reviewer card verdicts).
	EditMessageText(chatID int64, messageID int, text string) error
	// DeleteMessage removes an earlier bot message; failures are ignorable.
	DeleteMessage(chatID int64, messageID int) error
}
