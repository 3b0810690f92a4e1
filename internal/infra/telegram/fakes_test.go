package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

type sentMessage struct {
	ID     int
	ChatID int64
	Text   string
	Markup *telebot.ReplyMarkup
}

// fakeClient records what would have been sent to Telegram.
type fakeClient struct {
	mu       sync.Mutex
	nextID   int
	messages []sentMessage
	edits    []sentMessage
	deleted  []int
	media    []string
	failSend bool
}

func (f *fakeClient) SendMessage(chatID int64, text string, options *telebot.SendOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return 0, errors.New("telegram unavailable")
	}
	f.nextID++
	msg := sentMessage{ID: f.nextID, ChatID: chatID, Text: text}
	if options != nil {
		msg.Markup = options.ReplyMarkup
	}
	f.messages = append(f.messages, msg)
	return msg.ID, nil
}

func (f *fakeClient) EditMessage(chatID int64, messageID int, text string, options *telebot.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := sentMessage{ID: messageID, ChatID: chatID, Text: text}
	if options != nil {
		msg.Markup = options.ReplyMarkup
	}
	f.edits = append(f.edits, msg)
	return nil
}

func (f *fakeClient) DeleteMessage(_ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeClient) SendMedia(_ int64, src, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, src)
	return nil
}

func (f *fakeClient) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeClient) sentMedia() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.media...)
}

// containsText reports whether any message contains substr.
func (f *fakeClient) containsText(substr string) bool {
	for _, text := range f.texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

type mapLoader map[string]*course.Slide

func (l mapLoader) LoadSlide(ctx context.Context, url string) (*course.Slide, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slide, ok := l[url]
	if !ok {
		return nil, fmt.Errorf("no slide %s", url)
	}
	copied := *slide
	return &copied, nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func chatCourse() *course.Definition {
	return &course.Definition{
		ID:           "seguridad",
		Title:        "Seguridad",
		ScormVersion: "2004",
		CoverPage:    true,
		Modules:      []course.Module{{ID: "m1", Title: "Fundamentos"}},
		Pages: []course.Page{
			{ID: "cover", URL: "cover.html", Title: "Portada"},
			{ID: "lesson1", Index: 1, URL: "lesson1.html", ModuleID: "m1", Title: "Riesgos", HasSections: true},
			{ID: "end", Index: 2, URL: "end.html", ModuleID: "m1", Title: "Fin"},
		},
	}
}

func chatSlides() mapLoader {
	return mapLoader{
		"cover.html": {URL: "cover.html", Body: "Bienvenido al curso"},
		"lesson1.html": {URL: "lesson1.html", Title: "Riesgos", Sections: []course.SectionElement{
			{ID: "s1", Title: "Introducción", Text: "Los riesgos más comunes", MediaSource: "audio/s1.mp3"},
			{ID: "s2", Title: "Ejemplos", Text: "Tres casos reales"},
		}},
		"end.html": {URL: "end.html", Body: "Gracias"},
	}
}
