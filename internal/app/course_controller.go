// internal/app/course_controller.go
package app

import (
	"fmt"
	"time"

	"course_runtime/internal/domain/course"
	"course_runtime/internal/domain/lms"
	"course_runtime/internal/domain/media"
	"course_runtime/internal/domain/session"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoCourse          = fmt.Errorf("course definition has no pages")
	ErrMissingDependency = fmt.Errorf("missing runtime dependency")
)

// Dependencies are the collaborators one runtime is built from. LMS,
// Session, Media, Modals and TOCView are optional.
type Dependencies struct {
	Course    *course.Definition
	Loader    course.PageLoader
	View      course.SlideView
	TOCView   TOCView
	Media     media.Controller
	Modals    media.ModalSubsystem
	LMS       lms.Client
	Session   session.Store
	Scheduler Scheduler
	Timings   Timings
	Logger    *logrus.Entry
}

// CourseController is the context object a runtime hands to content. Its
// exported methods are the scripting API and the event inputs.
type CourseController struct {
	state       *CourseState
	store       *CompletionStore
	modes       *NavigationModes
	lms         *LMSSession
	persistence *ProgressPersistence
	media       *MediaArbiter
	functions   *FunctionRegistry
	engine      *SectionEngine
	toc         *TOCSync
	nav         *NavigationCoordinator
	actions     *ActionExecutor
	cues        *CueTrack
	modals      media.ModalSubsystem
	sched       Scheduler
	log         *logrus.Entry

	modalOpen bool
	paused    bool
	subs      []*Subscription
}

func NewCourseController(deps Dependencies) (*CourseController, error) {
	if deps.Course == nil || len(deps.Course.Pages) == 0 {
		return nil, ErrNoCourse
	}
	switch {
	case deps.Loader == nil:
		return nil, fmt.Errorf("%w: page loader", ErrMissingDependency)
	case deps.View == nil:
		return nil, fmt.Errorf("%w: slide view", ErrMissingDependency)
	case deps.Scheduler == nil:
		return nil, fmt.Errorf("%w: scheduler", ErrMissingDependency)
	}
	log := deps.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("course", deps.Course.ID)
	timings := deps.Timings.withDefaults()

	c := &CourseController{
		modals: deps.Modals,
		sched:  deps.Scheduler,
		log:    log.WithField("component", "controller"),
	}
	c.state = NewCourseState(deps.Course, log)
	c.store = NewCompletionStore(log)
	c.modes = NewNavigationModes()
	c.lms = NewLMSSession(deps.LMS, lms.ParseVersion(deps.Course.ScormVersion), c.sched, log)
	c.persistence = NewProgressPersistence(c.store, c.state, deps.Session, c.lms, timings.StorageTimeout, log)
	c.media = NewMediaArbiter(deps.Media, log)
	c.functions = NewFunctionRegistry(log)
	c.engine = NewSectionEngine(c.state, c.store, c.persistence, c.modes, deps.View, c.media, c.functions, c.sched, timings, log)
	c.toc = NewTOCSync(c.state, c.store, c.modes, deps.TOCView, log)
	c.toc.SetSectionGate(func(pageID, sectionID string) bool {
		return c.engine.PageID() == pageID && c.engine.CanJumpTo(sectionID)
	})
	c.nav = NewNavigationCoordinator(c.state, c.store, c.engine, c.persistence, c.lms, deps.Loader, deps.View, c.media, c.toc, c.modes, c.sched, timings, log)
	c.actions = NewActionExecutor(c, c.state, c.sched, log)
	c.cues = NewCueTrack(c.actions)

	c.engine.OnSectionMedia(func(sec course.SectionElement) {
		c.paused = false
		c.cues.Load(sec.Cues, sec.OnEnd)
	})
	c.subs = append(c.subs, c.media.OnEnded(c.handleMediaEnded))
	return c, nil
}

// Init connects to the LMS, if any, and opens the first page.
func (c *CourseController) Init() bool {
	c.lms.Initialize()
	c.toc.Update()
	return c.nav.NavigateToPage(0)
}

func (c *CourseController) State() *CourseState     { return c.state }
func (c *CourseController) Store() *CompletionStore { return c.store }
func (c *CourseController) Engine() *SectionEngine  { return c.engine }
func (c *CourseController) Navigator() *NavigationCoordinator {
	return c.nav
}
func (c *CourseController) LMS() *LMSSession { return c.lms }

// RegisterFunction binds a content function name.
func (c *CourseController) RegisterFunction(name string, fn SectionFunc) {
	c.functions.Register(name, fn)
}

// AddPageChangedListener registers fn for page changes.
func (c *CourseController) AddPageChangedListener(fn func(PageChange) error) *Subscription {
	sub := c.nav.AddPageChangedListener(fn)
	c.subs = append(c.subs, sub)
	return sub
}

// Page navigation.

func (c *CourseController) NextPage() bool     { return c.nav.Next() }
func (c *CourseController) PreviousPage() bool { return c.nav.Previous() }
func (c *CourseController) LoadPage(index int) bool {
	return c.nav.NavigateToPage(index)
}
func (c *CourseController) IsLastSlide() bool { return c.state.IsLastPage() }

// Section navigation.

func (c *CourseController) NextSection(delay time.Duration) bool {
	return c.engine.NextSection(delay)
}
func (c *CourseController) PreviousSection() bool { return c.engine.PreviousSection() }

// NavigateToSection is the table-of-contents jump.
func (c *CourseController) NavigateToSection(pageIndex int, sectionID string) bool {
	return c.nav.NavigateToSection(pageIndex, sectionID)
}

func (c *CourseController) SectionCompleted(sectionID string) bool {
	return c.engine.SectionCompleted(sectionID)
}

func (c *CourseController) CompleteActiveSection() bool {
	return c.engine.CompleteActiveSection()
}

func (c *CourseController) MarkCurrentPageAsCompleted(forced bool, delay time.Duration) {
	c.nav.MarkCurrentPageAsCompleted(forced, delay)
}

func (c *CourseController) ForceCompleteAllSections(delay time.Duration) bool {
	return c.engine.ForceCompleteAllSections(delay)
}

// Viewport and media events.

func (c *CourseController) OnIntersection(sectionID string, ratio float64) {
	c.engine.OnIntersection(sectionID, ratio)
}

func (c *CourseController) OnResize() { c.engine.OnResize() }

// OnMediaEnded is called by the media element when playback finishes.
func (c *CourseController) OnMediaEnded() {
	c.media.Ended()
}

func (c *CourseController) handleMediaEnded(owner MediaOwner) {
	if owner != OwnerSection {
		return
	}
	c.engine.OnMediaEnded()
	c.cues.Ended()
}

// OnMediaTimeUpdate advances the cue track of the playing section.
func (c *CourseController) OnMediaTimeUpdate(seconds float64) {
	if !c.media.HasControl(OwnerSection) {
		return
	}
	c.cues.OnTimeUpdate(seconds)
}

// Media and modals.

// PlayMedia plays src as page-level media.
func (c *CourseController) PlayMedia(src string) bool {
	c.paused = false
	return c.media.Play(OwnerPage, src)
}

func (c *CourseController) TogglePause() bool {
	owner := c.media.Owner()
	if owner == OwnerNone {
		return false
	}
	if c.paused {
		if c.media.Resume(owner) {
			c.paused = false
			return true
		}
		return false
	}
	if c.media.Pause(owner) {
		c.paused = true
		return true
	}
	return false
}

// OpenModal opens modalID and pauses section media while it is shown.
func (c *CourseController) OpenModal(modalID string) bool {
	if c.modals == nil {
		c.log.WithField("modal", modalID).Warn("No modal subsystem configured")
		return false
	}
	if err := c.modals.Open(modalID); err != nil {
		c.log.WithError(err).WithField("modal", modalID).Warn("Could not open modal")
		return false
	}
	c.media.Pause(OwnerSection)
	c.modalOpen = true
	return true
}

// PlayModalMedia gives the media element to the open modal.
func (c *CourseController) PlayModalMedia(src string) bool {
	if !c.modalOpen {
		return false
	}
	return c.media.Play(OwnerModal, src)
}

func (c *CourseController) CloseModal() {
	if !c.modalOpen {
		return
	}
	c.modals.CloseActive()
	c.modalOpen = false
	c.media.Release(OwnerModal)
	if !c.paused {
		c.media.Resume(OwnerSection)
	}
}

// ExecFunction runs a named content function against the active section.
func (c *CourseController) ExecFunction(name string) bool {
	el := course.SectionElement{}
	if id, ok := c.engine.ActiveSection(); ok {
		for _, s := range c.engine.Sections() {
			if s.ID == id {
				el = s
				break
			}
		}
	}
	return c.functions.Call(name, el, c.state.CurrentPage().ID)
}

// RunActions executes declarative actions through the scripting API.
func (c *CourseController) RunActions(actions []course.Action) {
	c.actions.Execute(actions)
}

// Table of contents.

func (c *CourseController) ToggleTOC()          { c.toc.Toggle() }
func (c *CourseController) HideTOC()            { c.toc.Hide() }
func (c *CourseController) TOCTree() []TOCModule { return c.toc.Tree() }

// Progress and LMS reporting.

// lastSavedPage is the LMS bookmark, or the page that last wrote section
// progress when no LMS is connected.
func (c *CourseController) lastSavedPage() int {
	if c.lms.Connected() {
		return c.lms.LastViewedPage()
	}
	if idx := c.state.IndexOf(c.persistence.LastPage()); idx > 0 {
		return idx
	}
	return 0
}

// CanResume reports whether a resume affordance should be offered.
func (c *CourseController) CanResume() bool {
	saved := c.lastSavedPage()
	last := c.state.PageCount() - 1
	switch {
	case saved > 1:
		return true
	case c.state.Definition().HasExam && saved == last && saved > 0:
		return true
	case saved == 1:
		page, _ := c.state.Page(1)
		return len(c.persistence.SavedSections(page.ID)) > 0
	}
	return false
}

// ResumeProgress reopens the saved page. Earlier pages count as completed
// with their known sections; the saved page itself is re-opened unless it
// is the last one of a finished attempt.
func (c *CourseController) ResumeProgress() bool {
	saved := c.lastSavedPage()
	first := c.state.FirstNavigableIndex()
	if saved < first || !c.state.ValidIndex(saved) {
		saved = first
	}
	if saved <= first {
		return c.nav.ResumeAt(first)
	}

	c.state.RestoreSavedProgress(saved)
	for i := first; i < saved; i++ {
		page, _ := c.state.Page(i)
		c.store.RestoreCompletedSections(page.ID, c.toc.KnownSections(i))
	}
	if saved != c.state.PageCount()-1 && c.lms.IsCourseIncompleteOrNotPassed() {
		c.nav.MarkPageIncomplete(saved)
	}
	c.log.WithField("page", saved).Info("Resuming progress")
	return c.nav.ResumeAt(saved)
}

func (c *CourseController) CompleteCourse(score int) {
	c.lms.CompleteCourse(score)
}

func (c *CourseController) SetCoursePassed(passed bool, score int) {
	status := lms.StatusFailed
	if passed {
		status = lms.StatusPassed
	}
	c.lms.SetLessonStatus(status, &score)
}

// ResetScormData wipes every stored trace of the attempt and starts over.
func (c *CourseController) ResetScormData() bool {
	c.lms.ResetData()
	c.persistence.ResetVolatile()
	c.store.Reset()
	c.state.Reset()
	c.toc.Update()
	c.log.Info("Attempt data reset")
	return c.nav.NavigateToPage(0)
}

// FlushLMS retries an LMS commit that failed earlier.
func (c *CourseController) FlushLMS() bool {
	return c.lms.FlushPending()
}

// Terminate releases everything the runtime holds and closes the LMS
// session.
func (c *CourseController) Terminate() {
	c.nav.Close()
	c.engine.Unmount()
	c.media.Teardown()
	for _, s := range c.subs {
		s.Unsubscribe()
	}
	c.subs = nil
	c.toc.Close()
	c.persistence.Close()
	c.lms.Terminate()
	c.log.Info("Runtime terminated")
}
