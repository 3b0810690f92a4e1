// internal/app/section_engine.go
package app

import (
	"time"

	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
)

// EnginePhase is the lifecycle of one page visit.
type EnginePhase int

const (
	PhaseIdle EnginePhase = iota
	PhaseObserving
)

// SectionEngine decides which section of the mounted page is active and
// when its side effects may run.
type SectionEngine struct {
	state       *CourseState
	store       *CompletionStore
	persistence *ProgressPersistence
	modes       *NavigationModes
	view        course.SlideView
	media       *MediaArbiter
	functions   *FunctionRegistry
	sched       Scheduler
	timings     Timings
	log         *logrus.Entry

	phase        EnginePhase
	generation   int
	page         course.Page
	sections     []course.SectionElement
	currentIndex int
	review       bool
	active       map[string]string
	revealed     map[string]bool
	playing      string
	timers       []func()
	leases       []*ModeLease
	onMediaStart func(course.SectionElement)
}

func NewSectionEngine(
	state *CourseState,
	store *CompletionStore,
	persistence *ProgressPersistence,
	modes *NavigationModes,
	view course.SlideView,
	mediaArbiter *MediaArbiter,
	functions *FunctionRegistry,
	sched Scheduler,
	timings Timings,
	log *logrus.Entry,
) *SectionEngine {
	return &SectionEngine{
		state:        state,
		store:        store,
		persistence:  persistence,
		modes:        modes,
		view:         view,
		media:        mediaArbiter,
		functions:    functions,
		sched:        sched,
		timings:      timings,
		log:          log.WithField("component", "section_engine"),
		currentIndex: -1,
		active:       make(map[string]string),
		revealed:     make(map[string]bool),
	}
}

// OnSectionMedia registers fn to run whenever a section's media starts.
func (e *SectionEngine) OnSectionMedia(fn func(course.SectionElement)) {
	e.onMediaStart = fn
}

func (e *SectionEngine) Phase() EnginePhase { return e.phase }
func (e *SectionEngine) Mounted() bool      { return e.phase == PhaseObserving }
func (e *SectionEngine) PageID() string     { return e.page.ID }
func (e *SectionEngine) CurrentIndex() int  { return e.currentIndex }
func (e *SectionEngine) Reviewing() bool    { return e.review }

// Sections returns the mounted sections in document order.
func (e *SectionEngine) Sections() []course.SectionElement {
	return append([]course.SectionElement(nil), e.sections...)
}

// ActiveSection returns the active section id of the mounted page.
func (e *SectionEngine) ActiveSection() (string, bool) {
	id, ok := e.active[e.page.ID]
	return id, ok && e.Mounted()
}

func (e *SectionEngine) HasSection(id string) bool {
	return e.indexOf(id) >= 0
}

func (e *SectionEngine) indexOf(id string) int {
	if !e.Mounted() {
		return -1
	}
	id = course.NormalizeSectionID(id, e.page.ID)
	for i, s := range e.sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (e *SectionEngine) key(i int) course.SectionKey {
	return e.sections[i].Key(e.page.ID)
}

func (e *SectionEngine) completed(i int) bool {
	return e.store.IsSectionCompleted(e.key(i))
}

// Mount attaches the engine to a freshly loaded page. When hasPending is
// true the coordinator is about to resolve a section target, so the engine
// only prepares visibility.
func (e *SectionEngine) Mount(page course.Page, sections []course.SectionElement, hasPending bool) {
	e.Unmount()
	e.generation++
	e.phase = PhaseObserving
	e.page = page
	e.sections = normalizeSections(page.ID, sections, e.log)
	e.review = e.state.IsReviewing()

	logCtx := e.log.WithFields(logrus.Fields{"page": page.ID, "sections": len(e.sections), "review": e.review})

	e.persistence.Restore(page.ID)
	if len(e.sections) == 0 {
		e.currentIndex = -1
		logCtx.Debug("Mounted page without sections")
		return
	}

	start := e.StartingIndex()
	e.currentIndex = start
	last := len(e.sections) - 1

	if e.review {
		for i := range e.sections {
			if page.Completed || e.completed(i) {
				e.view.MarkSectionCompleted(e.key(i))
			}
		}
		e.setVisibility(last)
		e.currentIndex = last
		logCtx.Debug("Mounted previously completed page")
		return
	}

	if hasPending || e.modes.Suppressed() {
		e.setVisibility(start)
		logCtx.Debug("Mounted page with pending navigation")
		return
	}

	if e.store.AllCompleted(page.ID, e.sections) {
		for i := range e.sections {
			e.view.MarkSectionCompleted(e.key(i))
		}
		e.setVisibility(last)
		logCtx.Debug("Mounted page with every section completed")
		return
	}

	e.activateStart()
	logCtx.WithField("starting_index", start).Debug("Mounted page")
}

// ActivateStart gives a mounted page its starting section when nothing is
// active, as a plain mount would. A refused section jump falls back here.
func (e *SectionEngine) ActivateStart() bool {
	if !e.Mounted() || e.review || len(e.sections) == 0 {
		return false
	}
	if _, ok := e.ActiveSection(); ok {
		return false
	}
	e.activateStart()
	e.log.WithFields(logrus.Fields{"page": e.page.ID, "section": e.sections[e.StartingIndex()].ID}).Debug("Activated starting section")
	return true
}

func (e *SectionEngine) activateStart() {
	start := e.StartingIndex()
	upTo := start
	if e.currentIndex > upTo {
		upTo = e.currentIndex
	}
	e.currentIndex = upTo
	e.setVisibility(upTo)
	for i := 0; i < start; i++ {
		e.view.MarkSectionCompleted(e.key(i))
	}

	id := e.sections[start].ID
	e.active[e.page.ID] = id
	e.revealed[id] = true
	e.after(e.timings.MediaStartDelay, func() {
		if cur, _ := e.ActiveSection(); cur == id {
			e.activate(start)
		}
	})
}

// normalizeSections keeps the first section for each local id. Raw ids
// that collapse onto an id already taken are dropped with a warning.
func normalizeSections(pageID string, sections []course.SectionElement, log *logrus.Entry) []course.SectionElement {
	out := make([]course.SectionElement, 0, len(sections))
	seen := make(map[string]string, len(sections))
	for _, s := range sections {
		raw := s.ID
		s.ID = course.NormalizeSectionID(raw, pageID)
		if s.ID == "" {
			continue
		}
		if first, dup := seen[s.ID]; dup {
			log.WithFields(logrus.Fields{
				"page":        pageID,
				"section":     s.ID,
				"raw_id":      raw,
				"kept_raw_id": first,
			}).Warn("Duplicate section id dropped")
			continue
		}
		seen[s.ID] = raw
		if s.CompleteOn == "" {
			if s.MediaSource != "" {
				s.CompleteOn = course.CompleteOnMedia
			} else {
				s.CompleteOn = course.CompleteOnAction
			}
		}
		out = append(out, s)
	}
	return out
}

// Unmount detaches the engine from its page. Timers are cancelled and any
// mode the engine still holds is released.
func (e *SectionEngine) Unmount() {
	if e.phase == PhaseIdle {
		return
	}
	e.generation++
	for _, cancel := range e.timers {
		cancel()
	}
	e.timers = nil
	for _, lease := range e.leases {
		lease.Release()
	}
	e.leases = nil
	delete(e.active, e.page.ID)
	e.revealed = make(map[string]bool)
	e.playing = ""
	e.phase = PhaseIdle
	e.review = false
	e.currentIndex = -1
}

// StartingIndex is the first section to show: 0 when nothing is completed,
// the first incomplete section otherwise, the last one when all are done.
// Pages without sections return -1.
func (e *SectionEngine) StartingIndex() int {
	if len(e.sections) == 0 {
		return -1
	}
	anyCompleted := false
	firstIncomplete := -1
	for i := range e.sections {
		if e.completed(i) {
			anyCompleted = true
		} else if firstIncomplete < 0 {
			firstIncomplete = i
		}
	}
	switch {
	case !anyCompleted:
		return 0
	case firstIncomplete >= 0:
		return firstIncomplete
	default:
		return len(e.sections) - 1
	}
}

// CanProceedToSection allows revisiting any reached section and unlocking
// only the next one, once the current one is completed.
func (e *SectionEngine) CanProceedToSection(i int) bool {
	if !e.Mounted() || i < 0 || i >= len(e.sections) {
		return false
	}
	if i <= e.currentIndex {
		return true
	}
	return i == e.currentIndex+1 && e.currentIndex >= 0 && e.completed(e.currentIndex)
}

// CanJumpTo reports whether a table-of-contents jump may land on sectionID:
// in review, on an unlocked section or on one already completed.
func (e *SectionEngine) CanJumpTo(sectionID string) bool {
	idx := e.indexOf(sectionID)
	if idx < 0 {
		return false
	}
	return e.review || e.CanProceedToSection(idx) || e.completed(idx)
}

// AllSectionsCompleted is derived from the completion store every time.
func (e *SectionEngine) AllSectionsCompleted() bool {
	return e.Mounted() && e.store.AllCompleted(e.page.ID, e.sections)
}

// OnIntersection feeds a viewport change. A ratio at or above the threshold
// is an entry, zero is an exit and anything in between is ignored. Nothing
// is handled while a programmatic scroll holds a navigation mode.
func (e *SectionEngine) OnIntersection(sectionID string, ratio float64) {
	if !e.Mounted() {
		return
	}
	if e.modes.Suppressed() {
		e.log.WithFields(logrus.Fields{
			"page":    e.page.ID,
			"section": sectionID,
			"mode":    e.modes.Current().String(),
		}).Debug("Intersection suppressed")
		return
	}
	switch {
	case ratio >= e.timings.VisibilityThreshold:
		e.enter(sectionID)
	case ratio <= 0:
		e.exit(sectionID)
	}
}

func (e *SectionEngine) enter(sectionID string) bool {
	logCtx := e.log.WithFields(logrus.Fields{"page": e.page.ID, "section": sectionID})
	idx := e.indexOf(sectionID)
	if idx < 0 {
		logCtx.Warn("Intersection for unknown section")
		return false
	}
	if !e.CanProceedToSection(idx) {
		logCtx.WithField("current_index", e.currentIndex).Debug("Section still locked")
		return false
	}

	id := e.sections[idx].ID
	e.active[e.page.ID] = id
	if idx > e.currentIndex {
		e.currentIndex = idx
	}
	e.persistence.SaveLocal(e.page.ID)

	if e.revealed[id] {
		return true
	}
	e.revealed[id] = true
	gen := e.generation
	e.sched.Post(func() {
		if gen != e.generation {
			return
		}
		if cur, _ := e.ActiveSection(); cur != id {
			return
		}
		e.activate(idx)
	})
	return true
}

func (e *SectionEngine) exit(sectionID string) {
	idx := e.indexOf(sectionID)
	if idx < 0 {
		return
	}
	id := e.sections[idx].ID
	delete(e.revealed, id)
	if cur, ok := e.ActiveSection(); ok && cur == id {
		delete(e.active, e.page.ID)
	}
}

// activate runs the section's function now and starts its media shortly
// after, if it is still the active section by then.
func (e *SectionEngine) activate(idx int) {
	sec := e.sections[idx]
	e.functions.Run(sec, e.page.ID)
	if sec.MediaSource == "" {
		return
	}
	e.after(e.timings.MediaStartDelay, func() {
		if cur, _ := e.ActiveSection(); cur != sec.ID {
			return
		}
		if e.media.Play(OwnerSection, sec.MediaSource) {
			e.playing = sec.ID
			if e.onMediaStart != nil {
				e.onMediaStart(sec)
			}
		}
	})
}

func (e *SectionEngine) setVisibility(upTo int) {
	for i := range e.sections {
		if i <= upTo {
			e.view.ShowSection(e.key(i))
		} else {
			e.view.HideSection(e.key(i))
		}
	}
}

// NextSection reveals the section after the active one and scrolls to it.
// The pointer moves before the scroll so the resulting intersection is
// recognised as the expected one.
func (e *SectionEngine) NextSection(delay time.Duration) bool {
	if !e.Mounted() {
		return false
	}
	idx := e.currentIndex
	if cur, ok := e.ActiveSection(); ok {
		idx = e.indexOf(cur)
	}
	next := idx + 1
	if next >= len(e.sections) {
		e.log.WithField("page", e.page.ID).Debug("No next section")
		return false
	}
	if !e.CanProceedToSection(next) {
		e.log.WithFields(logrus.Fields{"page": e.page.ID, "section": e.sections[next].ID}).Debug("Next section still locked")
		return false
	}
	key := e.key(next)
	e.active[e.page.ID] = key.SectionID
	e.view.ShowSection(key)
	scroll := func() { e.view.ScrollToSection(key, course.ScrollSmooth) }
	if delay > 0 {
		e.after(delay, scroll)
	} else {
		scroll()
	}
	return true
}

// PreviousSection scrolls back to the section before the active one.
func (e *SectionEngine) PreviousSection() bool {
	cur, ok := e.ActiveSection()
	if !ok {
		return false
	}
	idx := e.indexOf(cur)
	if idx <= 0 {
		return false
	}
	return e.NavigateToSection(e.sections[idx-1].ID)
}

// NavigateToSection points at sectionID and scrolls to it. Sections the
// learner has not unlocked are refused.
func (e *SectionEngine) NavigateToSection(sectionID string) bool {
	idx := e.indexOf(sectionID)
	logCtx := e.log.WithFields(logrus.Fields{"page": e.page.ID, "section": sectionID})
	if idx < 0 {
		logCtx.Warn("Navigation target not on page")
		return false
	}
	if !e.CanJumpTo(sectionID) {
		logCtx.Debug("Navigation target still locked")
		return false
	}
	if idx > e.currentIndex {
		e.currentIndex = idx
	}
	e.setVisibility(e.currentIndex)
	key := e.key(idx)
	e.active[e.page.ID] = key.SectionID
	e.view.ScrollToSection(key, course.ScrollSmooth)
	return true
}

// JumpToSection navigates to sectionID and runs its side effects directly.
// The reveal is claimed first so the intersection caused by the scroll
// does not run them a second time.
func (e *SectionEngine) JumpToSection(sectionID string) bool {
	idx := e.indexOf(sectionID)
	if idx < 0 {
		e.log.WithFields(logrus.Fields{"page": e.page.ID, "section": sectionID}).Warn("Jump target not on page")
		return false
	}
	id := e.sections[idx].ID
	already := e.revealed[id]
	e.revealed[id] = true
	if !e.NavigateToSection(id) {
		e.revealed[id] = already
		return false
	}
	e.persistence.SaveLocal(e.page.ID)
	e.activate(idx)
	return true
}

// RevealTo shows every section up to sectionID and scrolls there without
// touching the pointer. Locked targets are refused. Used while a programmatic jump is settling.
func (e *SectionEngine) RevealTo(sectionID string) bool {
	idx := e.indexOf(sectionID)
	if idx < 0 || !e.CanJumpTo(sectionID) {
		return false
	}
	upTo := idx
	if e.currentIndex > upTo {
		upTo = e.currentIndex
	}
	e.setVisibility(upTo)
	e.view.ScrollToSection(e.key(idx), course.ScrollSmooth)
	return true
}

// SectionCompleted marks a section of the mounted page completed.
func (e *SectionEngine) SectionCompleted(sectionID string) bool {
	idx := e.indexOf(sectionID)
	if idx < 0 {
		e.log.WithFields(logrus.Fields{"page": e.page.ID, "section": sectionID}).Warn("Cannot complete unknown section")
		return false
	}
	key := e.key(idx)
	e.view.MarkSectionCompleted(key)
	return e.store.MarkSectionCompleted(key)
}

// CompleteActiveSection completes whatever section is active.
func (e *SectionEngine) CompleteActiveSection() bool {
	cur, ok := e.ActiveSection()
	if !ok {
		return false
	}
	return e.SectionCompleted(cur)
}

// OnMediaEnded completes the section whose media just finished, when that
// section completes on media.
func (e *SectionEngine) OnMediaEnded() bool {
	if e.playing == "" {
		return false
	}
	idx := e.indexOf(e.playing)
	e.playing = ""
	if idx < 0 || e.sections[idx].CompleteOn != course.CompleteOnMedia {
		return false
	}
	return e.SectionCompleted(e.sections[idx].ID)
}

// PlayingSection returns the section whose media is playing.
func (e *SectionEngine) PlayingSection() (course.SectionElement, bool) {
	idx := e.indexOf(e.playing)
	if idx < 0 {
		return course.SectionElement{}, false
	}
	return e.sections[idx], true
}

// MarkAllCompleted completes every section and shows them all, without
// running any section's side effects.
func (e *SectionEngine) MarkAllCompleted() {
	if !e.Mounted() || len(e.sections) == 0 {
		return
	}
	for i := range e.sections {
		e.SectionCompleted(e.sections[i].ID)
	}
	last := len(e.sections) - 1
	e.setVisibility(last)
	e.currentIndex = last
}

// ForceCompleteAllSections completes the page's sections, scrolls to the
// last one and, after the settle delay, runs its side effects.
func (e *SectionEngine) ForceCompleteAllSections(delay time.Duration) bool {
	if !e.Mounted() || len(e.sections) == 0 {
		return false
	}
	e.MarkAllCompleted()

	last := len(e.sections) - 1
	key := e.key(last)
	lease := e.modes.Acquire(course.ModeForcedScroll)
	e.leases = append(e.leases, lease)
	e.active[e.page.ID] = key.SectionID
	e.revealed[key.SectionID] = true

	run := func() {
		e.view.ScrollToSection(key, course.ScrollSmooth)
		e.after(e.timings.SettleDelay, func() {
			lease.Release()
			e.activate(last)
		})
	}
	if delay > 0 {
		e.after(delay, run)
	} else {
		run()
	}
	e.log.WithField("page", e.page.ID).Info("Forced completion of all sections")
	return true
}

// OnResize re-centres the active section. Intersections caused by the
// correction are ignored until the next loop turn.
func (e *SectionEngine) OnResize() {
	if !e.Mounted() {
		return
	}
	lease := e.modes.Acquire(course.ModeResizing)
	if cur, ok := e.ActiveSection(); ok {
		e.view.ScrollToSection(course.SectionKey{PageID: e.page.ID, SectionID: cur}, course.ScrollInstant)
	}
	e.sched.Post(lease.Release)
}

// after schedules f for this mount only.
func (e *SectionEngine) after(d time.Duration, f func()) {
	gen := e.generation
	cancel := e.sched.AfterFunc(d, func() {
		if gen == e.generation {
			f()
		}
	})
	e.timers = append(e.timers, cancel)
}
