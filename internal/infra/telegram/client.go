// internal/infra/telegram/client.go
package telegram

import (
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot      *telebot.Bot
	mediaDir string // Base directory for relative media paths
}

func NewTelebotAdapter(b *telebot.Bot, mediaDir string) *TelebotAdapter {
	return &TelebotAdapter{bot: b, mediaDir: mediaDir}
}

// SendMessage sends a text message to the specified chat.
func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) (int, error) {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	recipient := &telebot.User{ID: chatID} // Learners talk to the bot in a private chat
	msg, err := tba.bot.Send(recipient, text, options)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (tba *TelebotAdapter) EditMessage(chatID int64, messageID int, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := tba.bot.Edit(storedMessage(chatID, messageID), text, options)
	return err
}

func (tba *TelebotAdapter) DeleteMessage(chatID int64, messageID int) error {
	return tba.bot.Delete(storedMessage(chatID, messageID))
}

func (tba *TelebotAdapter) SendMedia(chatID int64, src, caption string) error {
	file := tba.file(src)
	name := path.Base(src)
	var what telebot.Sendable
	switch mediaKind(src) {
	case "audio":
		what = &telebot.Audio{File: file, Caption: caption, FileName: name}
	case "video":
		what = &telebot.Video{File: file, Caption: caption, FileName: name}
	default:
		what = &telebot.Document{File: file, Caption: caption, FileName: name}
	}
	_, err := tba.bot.Send(&telebot.User{ID: chatID}, what)
	return err
}

func (tba *TelebotAdapter) file(src string) telebot.File {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return telebot.FromURL(src)
	}
	if filepath.IsAbs(src) {
		return telebot.FromDisk(src)
	}
	return telebot.FromDisk(filepath.Join(tba.mediaDir, filepath.FromSlash(src)))
}

func storedMessage(chatID int64, messageID int) telebot.StoredMessage {
	return telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}

func mediaKind(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	switch strings.ToLower(path.Ext(src)) {
	case ".mp3", ".m4a", ".ogg", ".oga", ".wav", ".aac":
		return "audio"
	case ".mp4", ".webm", ".mov", ".m4v":
		return "video"
	}
	return "document"
}
