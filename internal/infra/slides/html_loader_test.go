package slides

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSlide = `<!DOCTYPE html>
<html>
<head><title>Lección 1</title><script>var x = 1;</script></head>
<body>
  <p>Antes de empezar, sube el volumen.</p>
  <section class="slide-section" id="lesson1_s1" data-function="intro">
    <h2>Bienvenida</h2>
    <p>Hola   y bienvenido.</p>
    <audio><source src="audio/s1.mp3"></audio>
  </section>
  <div class="card slide-section" data-section-id="s2" data-title="Riesgos"
       data-complete="action"
       data-cues='[{"time": 2.5, "actions": [{"type": "openModal", "target": "glossary"}]}]'
       data-on-end='[{"type": "sectionCompleted"}]'>
    <p>Identifica los riesgos.</p>
  </div>
  <section class="slide-section" id="s3" data-audio="audio/s3.mp3"><p>Fin</p></section>
</body>
</html>`

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func TestParseSlide(t *testing.T) {
	slide, err := ParseSlide([]byte(sampleSlide))
	require.NoError(t, err)

	assert.Equal(t, "Lección 1", slide.Title)
	assert.Equal(t, "Antes de empezar, sube el volumen.", slide.Body)
	require.Len(t, slide.Sections, 3)

	s1 := slide.Sections[0]
	assert.Equal(t, "lesson1_s1", s1.ID)
	assert.Equal(t, "Bienvenida", s1.Title)
	assert.Equal(t, "intro", s1.Function)
	assert.Equal(t, "audio/s1.mp3", s1.MediaSource)
	assert.Equal(t, "Bienvenida Hola y bienvenido.", s1.Text)

	s2 := slide.Sections[1]
	assert.Equal(t, "s2", s2.ID)
	assert.Equal(t, "Riesgos", s2.Title)
	assert.Equal(t, course.CompleteOnAction, s2.CompleteOn)
	require.Len(t, s2.Cues, 1)
	assert.Equal(t, 2.5, s2.Cues[0].At)
	assert.Equal(t, course.ActionOpenModal, s2.Cues[0].Actions[0].Type)
	assert.Equal(t, []course.Action{{Type: course.ActionSectionCompleted}}, s2.OnEnd)

	assert.Equal(t, "audio/s3.mp3", slide.Sections[2].MediaSource)
}

func TestParseSlide_RejectsBadAttributes(t *testing.T) {
	tests := []string{
		`<section class="slide-section" id="s1" data-complete="click"></section>`,
		`<section class="slide-section" id="s1" data-cues="[{"></section>`,
		`<section class="slide-section" id="s1" data-on-end="nope"></section>`,
	}
	for _, raw := range tests {
		_, err := ParseSlide([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestHTMLPageLoader_FromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "slides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "slides", "lesson1.html"), []byte(sampleSlide), 0o644))
	loader := NewHTMLPageLoader(dir, testLogger())

	slide, err := loader.LoadSlide(context.Background(), "slides/lesson1.html")
	require.NoError(t, err)
	assert.Equal(t, "slides/lesson1.html", slide.URL)
	assert.Len(t, slide.Sections, 3)

	_, err = loader.LoadSlide(context.Background(), "slides/missing.html")
	assert.Error(t, err)
}

func TestHTMLPageLoader_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lesson1.html" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(sampleSlide))
	}))
	defer srv.Close()
	loader := NewHTMLPageLoader("", testLogger())

	slide, err := loader.LoadSlide(context.Background(), srv.URL+"/lesson1.html")
	require.NoError(t, err)
	assert.Len(t, slide.Sections, 3)

	_, err = loader.LoadSlide(context.Background(), srv.URL+"/missing.html")
	assert.Error(t, err)
}

func TestHTMLPageLoader_RejectsOversizedSlide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleSlide))
	}))
	defer srv.Close()
	loader := NewHTMLPageLoader("", testLogger())
	loader.maxBytes = int64(len(sampleSlide)) - 1

	_, err := loader.LoadSlide(context.Background(), srv.URL+"/lesson1.html")
	assert.ErrorIs(t, err, ErrSlideTooLarge)

	loader.maxBytes = int64(len(sampleSlide))
	_, err = loader.LoadSlide(context.Background(), srv.URL+"/lesson1.html")
	assert.NoError(t, err)
}

func TestHTMLPageLoader_HonoursContext(t *testing.T) {
	loader := NewHTMLPageLoader(t.TempDir(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.LoadSlide(ctx, "lesson1.html")
	assert.ErrorIs(t, err, context.Canceled)
}
