package telegram

import "gopkg.in/telebot.v3"

// Client defines an interface for talking to a learner's chat.
// This helps in decoupling the application logic from the specific bot library.
type Client interface {
	// SendMessage returns the id of the sent message.
	SendMessage(chatID int64, text string, options *telebot.SendOptions) (int, error)
	EditMessage(chatID int64, messageID int, text string, options *telebot.SendOptions) error
	DeleteMessage(chatID int64, messageID int) error
	// SendMedia sends an audio, video or document depending on src.
	SendMedia(chatID int64, src, caption string) error
}
