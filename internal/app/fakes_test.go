package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"course_runtime/internal/domain/course"
	"course_runtime/internal/domain/lms"
	"course_runtime/internal/domain/session"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// manualScheduler is a single-goroutine Scheduler driven by a virtual clock.
type manualScheduler struct {
	now    time.Duration
	seq    int
	queue  []func()
	timers []*manualTimer
}

type manualTimer struct {
	at        time.Duration
	seq       int
	f         func()
	cancelled bool
}

func (s *manualScheduler) Post(f func()) { s.queue = append(s.queue, f) }

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) func() {
	s.seq++
	t := &manualTimer{at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return func() { t.cancelled = true }
}

func (s *manualScheduler) Async(work func(), done func()) {
	work()
	s.Post(done)
}

// Flush runs posted tasks, including ones they post, until none are left.
func (s *manualScheduler) Flush() {
	for len(s.queue) > 0 {
		f := s.queue[0]
		s.queue = s.queue[1:]
		f()
	}
}

// Advance moves the clock forward, firing due timers in order.
func (s *manualScheduler) Advance(d time.Duration) {
	target := s.now + d
	s.Flush()
	for {
		sort.SliceStable(s.timers, func(i, j int) bool {
			if s.timers[i].at == s.timers[j].at {
				return s.timers[i].seq < s.timers[j].seq
			}
			return s.timers[i].at < s.timers[j].at
		})
		if len(s.timers) == 0 || s.timers[0].at > target {
			break
		}
		t := s.timers[0]
		s.timers = s.timers[1:]
		if t.cancelled {
			continue
		}
		s.now = t.at
		t.f()
		s.Flush()
	}
	s.now = target
}

type fakeView struct {
	pages     []string
	visible   map[course.SectionKey]bool
	completed map[course.SectionKey]bool
	scrolls   []course.SectionKey
	messages  []string
}

func newFakeView() *fakeView {
	return &fakeView{
		visible:   make(map[course.SectionKey]bool),
		completed: make(map[course.SectionKey]bool),
	}
}

func (v *fakeView) ShowPage(page course.Page, _ *course.Slide) { v.pages = append(v.pages, page.ID) }
func (v *fakeView) ShowSection(key course.SectionKey)         { v.visible[key] = true }
func (v *fakeView) HideSection(key course.SectionKey)         { v.visible[key] = false }
func (v *fakeView) MarkSectionCompleted(key course.SectionKey) {
	v.completed[key] = true
}
func (v *fakeView) ScrollToSection(key course.SectionKey, _ course.ScrollBehavior) {
	v.scrolls = append(v.scrolls, key)
}
func (v *fakeView) ShowMessage(text string) { v.messages = append(v.messages, text) }

func (v *fakeView) lastScroll() course.SectionKey {
	if len(v.scrolls) == 0 {
		return course.SectionKey{}
	}
	return v.scrolls[len(v.scrolls)-1]
}

type fakeLoader struct {
	slides map[string]*course.Slide
	errs   map[string]error
	calls  []string
}

func (l *fakeLoader) LoadSlide(_ context.Context, url string) (*course.Slide, error) {
	l.calls = append(l.calls, url)
	if err, ok := l.errs[url]; ok {
		return nil, err
	}
	slide, ok := l.slides[url]
	if !ok {
		return nil, fmt.Errorf("no slide at %s", url)
	}
	return slide, nil
}

type fakeTOCView struct {
	renders  int
	tree     []TOCModule
	pages    map[int]bool
	sections map[string]bool
	visible  bool
}

func newFakeTOCView() *fakeTOCView {
	return &fakeTOCView{pages: make(map[int]bool), sections: make(map[string]bool)}
}

func (v *fakeTOCView) Render(modules []TOCModule) {
	v.renders++
	v.tree = modules
}
func (v *fakeTOCView) UpdatePageStatus(index int, completed bool) { v.pages[index] = completed }
func (v *fakeTOCView) UpdateSectionStatus(index int, sectionID string, completed bool) {
	v.sections[fmt.Sprintf("%d/%s", index, sectionID)] = completed
}
func (v *fakeTOCView) Show()         { v.visible = true }
func (v *fakeTOCView) Hide()         { v.visible = false }
func (v *fakeTOCView) Visible() bool { return v.visible }

type fakeMedia struct {
	source  string
	played  []string
	pauses  int
	cleans  int
	playErr error
}

func (m *fakeMedia) SetSource(src string) error {
	m.source = src
	return nil
}
func (m *fakeMedia) Play() error {
	if m.playErr != nil {
		return m.playErr
	}
	m.played = append(m.played, m.source)
	return nil
}
func (m *fakeMedia) Pause() { m.pauses++ }
func (m *fakeMedia) Clean() {
	m.cleans++
	m.source = ""
}

type fakeModals struct {
	opened []string
	closed int
}

func (m *fakeModals) Open(id string) error {
	if id == "" {
		return fmt.Errorf("empty modal id")
	}
	m.opened = append(m.opened, id)
	return nil
}
func (m *fakeModals) CloseActive() { m.closed++ }

// fakeLMS commits may run off the loop, so the commit counters are locked.
type fakeLMS struct {
	values     map[string]string
	refuseInit bool
	terminated bool

	mu          sync.Mutex
	failCommits int
	commits     int
}

func newFakeLMS() *fakeLMS {
	return &fakeLMS{values: make(map[string]string)}
}

func (l *fakeLMS) Initialize() bool             { return !l.refuseInit }
func (l *fakeLMS) GetValue(element string) string { return l.values[element] }
func (l *fakeLMS) SetValue(element, value string) bool {
	l.values[element] = value
	return true
}
func (l *fakeLMS) Commit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commits++
	if l.failCommits > 0 {
		l.failCommits--
		return false
	}
	return true
}
func (l *fakeLMS) failNext(n int) {
	l.mu.Lock()
	l.failCommits = n
	l.mu.Unlock()
}

func (l *fakeLMS) commitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commits
}

func (l *fakeLMS) Terminate() bool {
	l.terminated = true
	return true
}

var _ lms.Client = (*fakeLMS)(nil)

type mapStore map[string]string

func (m mapStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", session.ErrKeyNotFound
	}
	return v, nil
}
func (m mapStore) Set(_ context.Context, key, value string) error {
	m[key] = value
	return nil
}
func (m mapStore) Remove(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

// testCourse: cover, lesson1 (s1 with media, s2, s3), lesson2 (a1, a2), summary.
func testCourse() *course.Definition {
	return &course.Definition{
		ID:           "course-1",
		ScormVersion: "2004",
		CoverPage:    true,
		Modules:      []course.Module{{ID: "m1", Title: "Basics"}, {ID: "m2", Title: "Advanced"}},
		Pages: []course.Page{
			{ID: "cover", URL: "cover.html"},
			{ID: "lesson1", URL: "lesson1.html", ModuleID: "m1", Title: "Lesson 1", HasSections: true},
			{ID: "lesson2", URL: "lesson2.html", ModuleID: "m2", Title: "Lesson 2", HasSections: true},
			{ID: "summary", URL: "summary.html", Title: "Summary"},
		},
	}
}

func testSlides() map[string]*course.Slide {
	return map[string]*course.Slide{
		"cover.html": {URL: "cover.html"},
		"lesson1.html": {URL: "lesson1.html", Sections: []course.SectionElement{
			{ID: "s1", Function: "intro", MediaSource: "s1.mp3"},
			{ID: "s2", Function: "second"},
			{ID: "s3", Function: "third"},
		}},
		"lesson2.html": {URL: "lesson2.html", Sections: []course.SectionElement{
			{ID: "lesson2_a1", Function: "alpha"},
			{ID: "lesson2_a2", Function: "beta"},
		}},
		"summary.html": {URL: "summary.html"},
	}
}

type harness struct {
	c       *CourseController
	sched   *manualScheduler
	view    *fakeView
	loader  *fakeLoader
	toc     *fakeTOCView
	media   *fakeMedia
	modals  *fakeModals
	lms     *fakeLMS
	session mapStore
	calls   map[string]int
}

type harnessOption func(*Dependencies, *harness)

func withLMS(l *fakeLMS) harnessOption {
	return func(d *Dependencies, h *harness) {
		h.lms = l
		d.LMS = l
	}
}

func withSession(s mapStore) harnessOption {
	return func(d *Dependencies, h *harness) {
		h.session = s
		d.Session = s
	}
}

func withCourse(def *course.Definition) harnessOption {
	return func(d *Dependencies, _ *harness) { d.Course = def }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		sched:   &manualScheduler{},
		view:    newFakeView(),
		loader:  &fakeLoader{slides: testSlides(), errs: map[string]error{}},
		toc:     newFakeTOCView(),
		media:   &fakeMedia{},
		modals:  &fakeModals{},
		session: mapStore{},
		calls:   make(map[string]int),
	}
	deps := Dependencies{
		Course:    testCourse(),
		Loader:    h.loader,
		View:      h.view,
		TOCView:   h.toc,
		Media:     h.media,
		Modals:    h.modals,
		Session:   h.session,
		Scheduler: h.sched,
		Logger:    testLogger(),
	}
	for _, opt := range opts {
		opt(&deps, h)
	}
	c, err := NewCourseController(deps)
	require.NoError(t, err)
	h.c = c
	for _, name := range []string{"intro", "second", "third", "alpha", "beta"} {
		name := name
		c.RegisterFunction(name, func(course.SectionElement, string, string) error {
			h.calls[name]++
			return nil
		})
	}
	return h
}

// settle lets every pending timer and task run.
func (h *harness) settle() {
	h.sched.Advance(5 * time.Second)
}

// start opens the cover page and moves to lesson1.
func (h *harness) start(t *testing.T) {
	t.Helper()
	require.True(t, h.c.Init())
	h.settle()
	h.c.MarkCurrentPageAsCompleted(false, 0)
	require.True(t, h.c.NextPage())
	h.settle()
	require.Equal(t, "lesson1", h.c.State().CurrentPage().ID)
}

// completeLesson1 finishes every section of lesson1 and moves to lesson2.
func (h *harness) completeLesson1(t *testing.T) {
	t.Helper()
	for _, id := range []string{"s1", "s2", "s3"} {
		h.c.SectionCompleted(id)
	}
	require.True(t, h.c.NextPage())
	h.settle()
	require.Equal(t, "lesson2", h.c.State().CurrentPage().ID)
}

func key(page, section string) course.SectionKey {
	return course.SectionKey{PageID: page, SectionID: section}
}
