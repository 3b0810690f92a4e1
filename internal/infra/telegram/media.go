// internal/infra/telegram/media.go
package telegram

import (
	"fmt"

	"course_runtime/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const modalCloseData = "modal_close"

// ChatMedia delivers media files to the chat. Playback happens on the
// learner's device, so the end of playback is reported back with /done.
type ChatMedia struct {
	client  telegram.Client
	chatID  int64
	log     *logrus.Entry
	source  string
	sent    bool
	playing bool
}

func NewChatMedia(client telegram.Client, chatID int64, log *logrus.Entry) *ChatMedia {
	return &ChatMedia{client: client, chatID: chatID, log: log.WithField("component", "chat_media")}
}

func (m *ChatMedia) SetSource(src string) error {
	if src == "" {
		return fmt.Errorf("empty media source")
	}
	if src != m.source {
		m.source = src
		m.sent = false
	}
	m.playing = false
	return nil
}

// Play sends the current source once. Resuming after a pause sends nothing.
func (m *ChatMedia) Play() error {
	if m.source == "" {
		return fmt.Errorf("no media source set")
	}
	if !m.sent {
		if err := m.client.SendMedia(m.chatID, m.source, "Escucha y pulsa /done al terminar."); err != nil {
			return fmt.Errorf("failed to send media %s: %w", m.source, err)
		}
		m.sent = true
	}
	m.playing = true
	return nil
}

func (m *ChatMedia) Pause() { m.playing = false }

func (m *ChatMedia) Clean() {
	m.source = ""
	m.sent = false
	m.playing = false
}

func (m *ChatMedia) Playing() bool { return m.playing }

// ChatModals shows a modal as a message with a close button.
type ChatModals struct {
	client    telegram.Client
	chatID    int64
	log       *logrus.Entry
	messageID int
	active    string
}

func NewChatModals(client telegram.Client, chatID int64, log *logrus.Entry) *ChatModals {
	return &ChatModals{client: client, chatID: chatID, log: log.WithField("component", "chat_modals")}
}

func (m *ChatModals) Open(modalID string) error {
	if modalID == "" {
		return fmt.Errorf("empty modal id")
	}
	m.CloseActive()
	markup := &telebot.ReplyMarkup{InlineKeyboard: [][]telebot.InlineButton{{{Text: "Cerrar", Data: modalCloseData}}}}
	id, err := m.client.SendMessage(m.chatID, "ℹ️ "+modalID, &telebot.SendOptions{ReplyMarkup: markup})
	if err != nil {
		return fmt.Errorf("failed to open modal %s: %w", modalID, err)
	}
	m.messageID = id
	m.active = modalID
	return nil
}

func (m *ChatModals) CloseActive() {
	if m.active == "" {
		return
	}
	if err := m.client.DeleteMessage(m.chatID, m.messageID); err != nil {
		m.log.WithError(err).WithField("modal", m.active).Warn("Failed to delete modal message")
	}
	m.active = ""
	m.messageID = 0
}
