// internal/infra/telegram/client.go
package telegram

import (
	"strconv"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the domain telegram.Client interface using the
// gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// SendMessage sends a text message and returns the outbound message id.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) (int, error) {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	recipient := &telebot.User{ID: recipientChatID}
	msg, err := tba.bot.Send(recipient, text, options)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// ForwardMessage relays an existing message (file submissions) to another chat.
func (tba *TelebotAdapter) ForwardMessage(toChatID, fromChatID int64, messageID int) error {
	src := &telebot.Message{ID: messageID, Chat: &telebot.Chat{ID: fromChatID}}
	_, err := tba.bot.Forward(&telebot.User{ID: toChatID}, src)
	return err
}

// EditMessageText rewrites a previously sent message.
func (tba *TelebotAdapter) EditMessageText(chatID int64, messageID int, text string) error {
	ref := &telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	_, err := tba.bot.Edit(ref, text)
	return err
}

// DeleteMessage removes an earlier bot message.
func (tba *TelebotAdapter) DeleteMessage(chatID int64, messageID int) error {
	ref := &telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return tba.bot.Delete(ref)
}
