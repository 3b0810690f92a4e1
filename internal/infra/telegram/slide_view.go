// internal/infra/telegram/slide_view.go
package telegram

import (
	"fmt"
	"strings"

	"course_runtime/internal/domain/course"
	"course_runtime/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// ViewportFunc receives intersection changes the chat produces: ratio 1
// when a section becomes the latest thing the learner reads, 0 when it
// stops being it.
type ViewportFunc func(sectionID string, ratio float64)

// ChatSlideView renders a page as chat messages. The learner is assumed to
// read the latest section posted, so only the furthest shown section (or
// the one last scrolled to) counts as being in the viewport.
type ChatSlideView struct {
	client   telegram.Client
	chatID   int64
	log      *logrus.Entry
	viewport ViewportFunc

	page      course.Page
	sections  map[string]course.SectionElement
	order     map[string]int
	visible   map[string]bool
	sent      map[string]bool
	completed map[string]bool
	inView    string
}

func NewChatSlideView(client telegram.Client, chatID int64, log *logrus.Entry) *ChatSlideView {
	return &ChatSlideView{
		client: client,
		chatID: chatID,
		log:    log.WithField("component", "chat_slide_view"),
	}
}

// OnViewportChange registers where intersection changes go. It must post
// them to the runtime's loop rather than call into the runtime directly.
func (v *ChatSlideView) OnViewportChange(fn ViewportFunc) {
	v.viewport = fn
}

func (v *ChatSlideView) ShowPage(page course.Page, slide *course.Slide) {
	v.page = page
	v.sections = make(map[string]course.SectionElement)
	v.order = make(map[string]int)
	v.visible = make(map[string]bool)
	v.sent = make(map[string]bool)
	v.completed = make(map[string]bool)
	v.inView = ""

	title := page.Title
	var body string
	if slide != nil {
		if title == "" {
			title = slide.Title
		}
		body = slide.Body
		for _, s := range slide.Sections {
			id := course.NormalizeSectionID(s.ID, page.ID)
			if _, dup := v.order[id]; dup {
				continue
			}
			v.sections[id] = s
			v.order[id] = len(v.order)
		}
	}
	text := fmt.Sprintf("📄 %s", strings.TrimSpace(title))
	if body != "" {
		text += "\n\n" + body
	}
	v.send(text)
}

func (v *ChatSlideView) ShowSection(key course.SectionKey) {
	if key.PageID != v.page.ID {
		return
	}
	v.visible[key.SectionID] = true
	if !v.sent[key.SectionID] {
		v.sendSection(key.SectionID)
	}
	if v.inView == "" || v.order[key.SectionID] > v.order[v.inView] {
		v.moveViewport(key.SectionID)
	}
}

func (v *ChatSlideView) HideSection(key course.SectionKey) {
	if key.PageID != v.page.ID {
		return
	}
	delete(v.visible, key.SectionID)
	if v.inView == key.SectionID {
		v.moveViewport("")
	}
}

func (v *ChatSlideView) MarkSectionCompleted(key course.SectionKey) {
	if key.PageID != v.page.ID || v.completed[key.SectionID] {
		return
	}
	v.completed[key.SectionID] = true
	// Only live completions are announced, not the ones restored on mount.
	if key.SectionID == v.inView && v.sent[key.SectionID] {
		v.send(fmt.Sprintf("✅ %s", v.title(key.SectionID)))
	}
}

func (v *ChatSlideView) ScrollToSection(key course.SectionKey, _ course.ScrollBehavior) {
	if key.PageID != v.page.ID || !v.visible[key.SectionID] {
		return
	}
	if v.inView == key.SectionID {
		return
	}
	v.sendSection(key.SectionID)
	v.moveViewport(key.SectionID)
}

func (v *ChatSlideView) ShowMessage(text string) {
	v.send("⚠️ " + text)
}

func (v *ChatSlideView) moveViewport(sectionID string) {
	previous := v.inView
	v.inView = sectionID
	if v.viewport == nil {
		return
	}
	if previous != "" {
		v.viewport(previous, 0)
	}
	if sectionID != "" {
		v.viewport(sectionID, 1)
	}
}

func (v *ChatSlideView) sendSection(sectionID string) {
	v.sent[sectionID] = true
	sec := v.sections[sectionID]
	text := sec.Text
	if title := v.title(sectionID); title != "" && !strings.HasPrefix(text, title) {
		text = strings.TrimSpace(fmt.Sprintf("▶️ %s\n%s", title, text))
	}
	if text == "" {
		text = "▶️ " + sectionID
	}
	v.send(text)
}

func (v *ChatSlideView) title(sectionID string) string {
	if sec, ok := v.sections[sectionID]; ok && sec.Title != "" {
		return sec.Title
	}
	return sectionID
}

func (v *ChatSlideView) send(text string) {
	if _, err := v.client.SendMessage(v.chatID, text, nil); err != nil {
		v.log.WithError(err).WithField("page", v.page.ID).Error("Failed to send slide message")
	}
}
