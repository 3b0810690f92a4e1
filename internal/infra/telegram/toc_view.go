// internal/infra/telegram/toc_view.go
package telegram

import (
	"fmt"
	"strconv"
	"strings"

	"course_runtime/internal/app"
	"course_runtime/internal/domain/course"
	"course_runtime/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	tocPagePrefix    = "toc_p_"
	tocSectionPrefix = "toc_s_"
)

// ChatTOCView shows the table of contents as one message with an inline
// keyboard. While visible, every change edits that message in place.
type ChatTOCView struct {
	client    telegram.Client
	chatID    int64
	title     string
	log       *logrus.Entry
	modules   []app.TOCModule
	messageID int
	visible   bool
}

func NewChatTOCView(client telegram.Client, chatID int64, courseTitle string, log *logrus.Entry) *ChatTOCView {
	return &ChatTOCView{
		client: client,
		chatID: chatID,
		title:  courseTitle,
		log:    log.WithField("component", "chat_toc_view"),
	}
}

func (v *ChatTOCView) Render(modules []app.TOCModule) {
	v.modules = modules
	v.refresh()
}

func (v *ChatTOCView) UpdatePageStatus(index int, completed bool) {
	for m := range v.modules {
		for p := range v.modules[m].Pages {
			if v.modules[m].Pages[p].Index == index {
				v.modules[m].Pages[p].Completed = completed
			}
		}
	}
	v.refresh()
}

func (v *ChatTOCView) UpdateSectionStatus(index int, sectionID string, completed bool) {
	for m := range v.modules {
		for p := range v.modules[m].Pages {
			page := &v.modules[m].Pages[p]
			if page.Index != index {
				continue
			}
			for s := range page.Sections {
				if page.Sections[s].ID != sectionID {
					continue
				}
				page.Sections[s].Completed = completed
				// Completing a section opens the one after it.
				if completed {
					page.Sections[s].Unlocked = true
					if s+1 < len(page.Sections) {
						page.Sections[s+1].Unlocked = true
					}
				}
			}
		}
	}
	v.refresh()
}

func (v *ChatTOCView) Show() {
	if v.visible {
		return
	}
	text, markup := v.build()
	id, err := v.client.SendMessage(v.chatID, text, &telebot.SendOptions{ReplyMarkup: markup})
	if err != nil {
		v.log.WithError(err).Error("Failed to send table of contents")
		return
	}
	v.messageID = id
	v.visible = true
}

func (v *ChatTOCView) Hide() {
	if !v.visible {
		return
	}
	v.visible = false
	if err := v.client.DeleteMessage(v.chatID, v.messageID); err != nil {
		v.log.WithError(err).Warn("Failed to delete table of contents")
	}
	v.messageID = 0
}

func (v *ChatTOCView) Visible() bool { return v.visible }

func (v *ChatTOCView) refresh() {
	if !v.visible {
		return
	}
	text, markup := v.build()
	if err := v.client.EditMessage(v.chatID, v.messageID, text, &telebot.SendOptions{ReplyMarkup: markup}); err != nil {
		v.log.WithError(err).Debug("Failed to refresh table of contents")
	}
}

// build renders modules as text and unlocked pages as buttons. Unlocked
// sections are listed only for the current page.
func (v *ChatTOCView) build() (string, *telebot.ReplyMarkup) {
	var text strings.Builder
	text.WriteString("📚 ")
	text.WriteString(v.title)
	markup := &telebot.ReplyMarkup{}

	for _, m := range v.modules {
		fmt.Fprintf(&text, "\n\n%s", m.Title)
		for _, p := range m.Pages {
			fmt.Fprintf(&text, "\n%s %s", pageMarker(p), p.Title)
			if !p.Unlocked {
				continue
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, []telebot.InlineButton{{
				Text: fmt.Sprintf("%s %s", pageMarker(p), p.Title),
				Data: tocPagePrefix + strconv.Itoa(p.Index),
			}})
			if !p.Current {
				continue
			}
			for _, s := range p.Sections {
				if !s.Unlocked && !s.Completed {
					continue
				}
				markup.InlineKeyboard = append(markup.InlineKeyboard, []telebot.InlineButton{{
					Text: fmt.Sprintf("    %s %s", sectionMarker(s.Completed), sectionLabel(s)),
					Data: fmt.Sprintf("%s%d_%s", tocSectionPrefix, p.Index, s.ID),
				}})
			}
		}
	}
	return text.String(), markup
}

func pageMarker(p app.TOCPageNode) string {
	switch {
	case p.Current:
		return "▶️"
	case p.Completed:
		return "✅"
	case p.Unlocked:
		return "▫️"
	}
	return "🔒"
}

func sectionMarker(completed bool) string {
	if completed {
		return "✔"
	}
	return "•"
}

func sectionLabel(s app.TOCSectionNode) string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}

// parseTOCCallback decodes toc_p_<page> and toc_s_<page>_<section>. The
// section form reuses the compound key layout with the page index in front.
func parseTOCCallback(data string) (page int, sectionID string, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(data, tocPagePrefix):
		rest = strings.TrimPrefix(data, tocPagePrefix)
	case strings.HasPrefix(data, tocSectionPrefix):
		key, found := course.ParseSectionKey(strings.TrimPrefix(data, tocSectionPrefix))
		if !found {
			return 0, "", false
		}
		rest, sectionID = key.PageID, key.SectionID
	default:
		return 0, "", false
	}
	page, err := strconv.Atoi(rest)
	if err != nil || page < 0 {
		return 0, "", false
	}
	return page, sectionID, true
}
