package telegram

import (
	"testing"

	"course_runtime/internal/domain/course"

	"github.com/stretchr/testify/assert"
)

type viewportEvent struct {
	section string
	ratio   float64
}

func newTestSlideView(client *fakeClient) (*ChatSlideView, *[]viewportEvent) {
	view := NewChatSlideView(client, 10, testLogger())
	var events []viewportEvent
	view.OnViewportChange(func(sectionID string, ratio float64) {
		events = append(events, viewportEvent{sectionID, ratio})
	})
	return view, &events
}

func lessonPage() (course.Page, *course.Slide) {
	slides := chatSlides()
	return course.Page{ID: "lesson1", Index: 1, Title: "Riesgos"}, slides["lesson1.html"]
}

func TestChatSlideView_FurthestShownSectionIsInView(t *testing.T) {
	client := &fakeClient{}
	view, events := newTestSlideView(client)
	page, slide := lessonPage()

	view.ShowPage(page, slide)
	view.ShowSection(course.SectionKey{PageID: "lesson1", SectionID: "s1"})
	view.ShowSection(course.SectionKey{PageID: "lesson1", SectionID: "s2"})
	view.ShowSection(course.SectionKey{PageID: "lesson1", SectionID: "s1"})

	assert.Equal(t, []viewportEvent{{"s1", 1}, {"s1", 0}, {"s2", 1}}, *events)
	assert.Equal(t, []string{
		"📄 Riesgos",
		"▶️ Introducción\nLos riesgos más comunes",
		"▶️ Ejemplos\nTres casos reales",
	}, client.texts())
}

func TestChatSlideView_ScrollResendsEarlierSection(t *testing.T) {
	client := &fakeClient{}
	view, events := newTestSlideView(client)
	page, slide := lessonPage()
	view.ShowPage(page, slide)
	s1 := course.SectionKey{PageID: "lesson1", SectionID: "s1"}
	s2 := course.SectionKey{PageID: "lesson1", SectionID: "s2"}
	view.ShowSection(s1)
	view.ShowSection(s2)
	*events = nil

	view.ScrollToSection(s1, course.ScrollSmooth)
	view.ScrollToSection(s1, course.ScrollSmooth)

	assert.Equal(t, []viewportEvent{{"s2", 0}, {"s1", 1}}, *events)
	assert.Len(t, client.texts(), 4)
}

func TestChatSlideView_HideAndComplete(t *testing.T) {
	client := &fakeClient{}
	view, events := newTestSlideView(client)
	page, slide := lessonPage()
	view.ShowPage(page, slide)
	s1 := course.SectionKey{PageID: "lesson1", SectionID: "s1"}
	s2 := course.SectionKey{PageID: "lesson1", SectionID: "s2"}

	// Restored completion for a section that was never shown stays quiet.
	view.MarkSectionCompleted(s2)
	view.ShowSection(s1)
	view.MarkSectionCompleted(s1)
	view.MarkSectionCompleted(s1)
	assert.Equal(t, 1, countPrefix(client.texts(), "✅"))

	view.HideSection(s1)
	assert.Equal(t, viewportEvent{"s1", 0}, (*events)[len(*events)-1])

	// Scrolling to a hidden section does nothing.
	view.ScrollToSection(s2, course.ScrollInstant)
	assert.Len(t, *events, 2)

	// Keys from another page are ignored.
	view.ShowSection(course.SectionKey{PageID: "other", SectionID: "s1"})
	assert.Len(t, *events, 2)
}

func TestChatSlideView_ShowMessage(t *testing.T) {
	client := &fakeClient{}
	view, _ := newTestSlideView(client)

	view.ShowMessage("Completa todas las secciones antes de continuar.")
	assert.Equal(t, []string{"⚠️ Completa todas las secciones antes de continuar."}, client.texts())
}

func countPrefix(texts []string, prefix string) int {
	n := 0
	for _, text := range texts {
		if len(text) >= len(prefix) && text[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
