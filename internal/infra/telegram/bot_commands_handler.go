// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// BotCommands is the command menu published to Telegram.
var BotCommands = []telebot.Command{
	{Text: "start", Description: "Abrir el curso"},
	{Text: "resume", Description: "Continuar donde lo dejaste"},
	{Text: "next", Description: "Siguiente lección"},
	{Text: "prev", Description: "Lección anterior"},
	{Text: "continue", Description: "Siguiente sección"},
	{Text: "done", Description: "He terminado esta sección"},
	{Text: "pause", Description: "Pausar o reanudar el audio"},
	{Text: "toc", Description: "Índice del curso"},
	{Text: "complete", Description: "Marcar la lección como completada"},
	{Text: "help", Description: "Ayuda"},
}

// RegisterBotCommands publishes the command menu and answers /help.
func RegisterBotCommands(b *telebot.Bot, baseLogger *logrus.Entry) {
	helpLogger := baseLogger.WithField("handler_group", "help")

	if err := b.SetCommands(BotCommands); err != nil {
		helpLogger.WithError(err).Warn("Failed to publish bot commands")
	}

	b.Handle("/help", func(c telebot.Context) error {
		helpLogger.WithField("sender_id", c.Sender().ID).Info("Processing /help command")
		return c.Send(helpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func helpText() string {
	var text strings.Builder
	text.WriteString("Comandos disponibles:\n\n")
	for _, cmd := range BotCommands {
		text.WriteString("`/")
		text.WriteString(cmd.Text)
		text.WriteString("` - ")
		text.WriteString(cmd.Description)
		text.WriteString("\n")
	}
	text.WriteString("\nCada lección se desbloquea al completar todas sus secciones.")
	return text.String()
}
