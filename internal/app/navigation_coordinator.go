// internal/app/navigation_coordinator.go
package app

import (
	"context"
	"time"

	"course_runtime/internal/domain/course"
	"course_runtime/internal/domain/lms"

	"github.com/sirupsen/logrus"
)

// AdvisoryCompleteSections is shown when forward navigation is blocked.
const AdvisoryCompleteSections = "Completa todas las secciones antes de continuar."

// PageChange is published after a page has loaded and its sections are
// initialised.
type PageChange struct {
	Previous int
	Current  int
	Page     course.Page
}

// NavigationCoordinator owns page transitions and the pending section
// navigation protocol.
type NavigationCoordinator struct {
	state       *CourseState
	store       *CompletionStore
	engine      *SectionEngine
	persistence *ProgressPersistence
	lms         *LMSSession
	loader      course.PageLoader
	view        course.SlideView
	media       *MediaArbiter
	toc         *TOCSync
	modes       *NavigationModes
	sched       Scheduler
	timings     Timings
	log         *logrus.Entry

	loadSeq       int
	loaded        bool
	pending       *course.PendingNavigation
	jumpLease     *ModeLease
	cancelAbandon func()
	cancelSettle  func()
	resumePageID  string
	listeners     listenerSet[PageChange]
}

func NewNavigationCoordinator(
	state *CourseState,
	store *CompletionStore,
	engine *SectionEngine,
	persistence *ProgressPersistence,
	lmsSession *LMSSession,
	loader course.PageLoader,
	view course.SlideView,
	mediaArbiter *MediaArbiter,
	toc *TOCSync,
	modes *NavigationModes,
	sched Scheduler,
	timings Timings,
	log *logrus.Entry,
) *NavigationCoordinator {
	return &NavigationCoordinator{
		state:       state,
		store:       store,
		engine:      engine,
		persistence: persistence,
		lms:         lmsSession,
		loader:      loader,
		view:        view,
		media:       mediaArbiter,
		toc:         toc,
		modes:       modes,
		sched:       sched,
		timings:     timings,
		log:         log.WithField("component", "navigation"),
	}
}

// AddPageChangedListener registers fn for page changes. A failing listener
// does not keep the others from running.
func (n *NavigationCoordinator) AddPageChangedListener(fn func(PageChange) error) *Subscription {
	return n.listeners.add(fn)
}

// HasPending reports whether a section target is waiting for its page.
func (n *NavigationCoordinator) HasPending() bool {
	return n.pending != nil
}

// PageReady reports whether the current page has finished loading.
func (n *NavigationCoordinator) PageReady() bool {
	return n.loaded
}

// Pending returns the in-flight section target.
func (n *NavigationCoordinator) Pending() (course.PendingNavigation, bool) {
	if n.pending == nil {
		return course.PendingNavigation{}, false
	}
	return *n.pending, true
}

// NavigateToPage starts loading the page at index. Loading finishes on a
// later loop turn.
func (n *NavigationCoordinator) NavigateToPage(index int) bool {
	logCtx := n.log.WithField("target", index)
	if !n.state.ValidIndex(index) {
		logCtx.WithField("page_count", n.state.PageCount()).Warn("Rejected navigation to invalid page")
		return false
	}
	if n.cancelSettle != nil {
		n.abandonPending("navigation superseded")
	}

	n.media.Teardown()
	n.loaded = false
	previous := n.state.CurrentIndex()
	n.engine.Unmount()
	n.state.SetCurrentPage(index)

	n.loadSeq++
	seq := n.loadSeq
	page, _ := n.state.Page(index)
	var (
		slide *course.Slide
		err   error
	)
	n.sched.Async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timings.LoadTimeout)
		defer cancel()
		slide, err = n.loader.LoadSlide(ctx, page.URL)
	}, func() {
		n.onPageLoaded(seq, previous, index, slide, err)
	})
	logCtx.WithFields(logrus.Fields{"page": page.ID, "furthest": n.state.FurthestIndex()}).Info("Navigating to page")
	return true
}

func (n *NavigationCoordinator) onPageLoaded(seq, previous, index int, slide *course.Slide, err error) {
	if seq != n.loadSeq {
		n.log.WithField("target", index).Debug("Dropping superseded page load")
		return
	}
	page, _ := n.state.Page(index)
	logCtx := n.log.WithField("page", page.ID)
	if err != nil {
		logCtx.WithError(err).Error("Page load failed")
		n.abandonPending("page load failed")
		return
	}
	if slide == nil {
		slide = &course.Slide{URL: page.URL}
	}
	n.loaded = true

	n.view.ShowPage(page, slide)
	if n.resumePageID == page.ID {
		n.persistence.RestoreForResume(page.ID)
		n.resumePageID = ""
	}

	intent, hasIntent := n.pendingFor(index)
	if page.HasSections && len(slide.Sections) > 0 {
		n.toc.SetSections(index, slide.Sections)
		n.engine.Mount(page, slide.Sections, hasIntent)
		if hasIntent {
			n.resolvePending(intent)
		}
	} else if hasIntent {
		n.abandonPending("page has no sections")
	}

	if err := n.listeners.notify(PageChange{Previous: previous, Current: index, Page: page}); err != nil {
		logCtx.WithError(err).Error("Page change listener failed")
	}
	n.toc.Update()
	n.updateProgress()
}

// pendingFor returns the intent that applies to page index. An intent kept
// for a different page is stale once another page has loaded.
func (n *NavigationCoordinator) pendingFor(index int) (course.PendingNavigation, bool) {
	if n.pending == nil {
		stored, ok := n.persistence.LoadPending()
		if !ok {
			return course.PendingNavigation{}, false
		}
		n.pending = &stored
	}
	if !n.pending.AppliesTo(index) {
		n.abandonPending("pending target is for another page")
		return course.PendingNavigation{}, false
	}
	return *n.pending, true
}

// resolvePending runs right after the target page's sections are mounted.
func (n *NavigationCoordinator) resolvePending(intent course.PendingNavigation) {
	logCtx := n.log.WithFields(logrus.Fields{"page": n.engine.PageID(), "section": intent.SectionID})
	if n.cancelAbandon != nil {
		n.cancelAbandon()
		n.cancelAbandon = nil
	}
	if !n.engine.HasSection(intent.SectionID) {
		logCtx.Warn("Pending navigation target not found on page")
		n.abandonPending("target not found")
		n.engine.ActivateStart()
		return
	}
	if !n.engine.CanJumpTo(intent.SectionID) {
		logCtx.Info("Pending navigation target still locked")
		n.abandonPending("target locked")
		n.engine.ActivateStart()
		return
	}
	if !n.jumpLease.Held() {
		n.jumpLease = n.modes.Acquire(course.ModeTOCJump)
	}
	n.engine.RevealTo(intent.SectionID)

	lease := n.jumpLease
	n.cancelSettle = n.sched.AfterFunc(n.timings.SettleDelay, func() {
		n.cancelSettle = nil
		lease.Release()
		n.jumpLease = nil
		n.pending = nil
		n.persistence.ClearPending()
		if n.engine.JumpToSection(intent.SectionID) {
			logCtx.Info("Pending navigation resolved")
		} else {
			n.engine.ActivateStart()
		}
		n.toc.Update()
	})
}

// abandonPending clears the intent and every guard it holds.
func (n *NavigationCoordinator) abandonPending(reason string) {
	if n.pending == nil && n.jumpLease == nil && n.cancelSettle == nil && n.cancelAbandon == nil {
		return
	}
	if n.cancelAbandon != nil {
		n.cancelAbandon()
		n.cancelAbandon = nil
	}
	if n.cancelSettle != nil {
		n.cancelSettle()
		n.cancelSettle = nil
	}
	n.jumpLease.Release()
	n.jumpLease = nil
	if n.pending != nil {
		n.log.WithFields(logrus.Fields{
			"target_page": n.pending.PageIndex,
			"section":     n.pending.SectionID,
			"reason":      reason,
		}).Info("Pending navigation abandoned")
	}
	n.pending = nil
	n.persistence.ClearPending()
}

// NavigateToSection handles a table-of-contents selection.
func (n *NavigationCoordinator) NavigateToSection(pageIndex int, sectionID string) bool {
	page, ok := n.state.Page(pageIndex)
	logCtx := n.log.WithFields(logrus.Fields{"target": pageIndex, "section": sectionID})
	if !ok {
		logCtx.Warn("Rejected section navigation to invalid page")
		return false
	}
	if pageIndex > n.state.FurthestIndex() && !page.Completed {
		logCtx.Info("Rejected section navigation to locked page")
		return false
	}
	id := course.NormalizeSectionID(sectionID, page.ID)
	if id == "" {
		return false
	}
	samePage := pageIndex == n.state.CurrentIndex() && n.engine.Mounted()
	if samePage {
		if !n.engine.HasSection(id) {
			logCtx.Warn("Section not on current page")
			return false
		}
		if !n.engine.CanJumpTo(id) {
			logCtx.Info("Rejected section navigation to locked section")
			return false
		}
	}
	n.toc.Hide()
	n.abandonPending("replaced by new selection")

	if samePage {
		n.jumpLease = n.modes.Acquire(course.ModeTOCJump)
		lease := n.jumpLease
		n.engine.RevealTo(id)
		n.cancelSettle = n.sched.AfterFunc(n.timings.SettleDelay, func() {
			n.cancelSettle = nil
			lease.Release()
			n.jumpLease = nil
			if !n.engine.JumpToSection(id) {
				n.engine.ActivateStart()
			}
			n.toc.Update()
		})
		return true
	}

	intent := course.PendingNavigation{PageIndex: pageIndex, SectionID: id}
	n.pending = &intent
	n.persistence.SavePending(intent)
	n.jumpLease = n.modes.Acquire(course.ModeTOCJump)
	n.cancelAbandon = n.sched.AfterFunc(n.timings.LoadTimeout+n.timings.PendingBudget(), func() {
		n.cancelAbandon = nil
		n.abandonPending("timed out")
	})
	if !n.NavigateToPage(pageIndex) {
		n.abandonPending("navigation rejected")
		return false
	}
	return true
}

// Next advances one page. It is refused until the current page or all of
// its sections are completed.
func (n *NavigationCoordinator) Next() bool {
	cur := n.state.CurrentIndex()
	if cur >= n.state.PageCount()-1 {
		n.log.Debug("Already on the last page")
		return false
	}
	page := n.state.CurrentPage()
	if !page.Completed {
		if n.engine.PageID() != page.ID || !n.engine.AllSectionsCompleted() {
			n.log.WithField("page", page.ID).Info("Forward navigation blocked")
			n.view.ShowMessage(AdvisoryCompleteSections)
			return false
		}
		n.state.MarkPageCompleted(cur)
		n.persistence.Save(page.ID)
	}
	return n.NavigateToPage(cur + 1)
}

// Previous goes back one page. The cover page is never a target.
func (n *NavigationCoordinator) Previous() bool {
	cur := n.state.CurrentIndex()
	if cur <= n.state.FirstNavigableIndex() {
		n.log.Debug("Already on the first page")
		return false
	}
	return n.NavigateToPage(cur - 1)
}

// MarkCurrentPageAsCompleted completes the current page and its sections.
// Forced completion also scrolls to the last section after delay.
func (n *NavigationCoordinator) MarkCurrentPageAsCompleted(forced bool, delay time.Duration) {
	cur := n.state.CurrentIndex()
	page := n.state.CurrentPage()
	if n.engine.Mounted() && n.engine.PageID() == page.ID {
		if forced {
			n.engine.ForceCompleteAllSections(delay)
		} else {
			n.engine.MarkAllCompleted()
		}
	}
	n.state.MarkPageCompleted(cur)
	n.persistence.Save(page.ID)
	if n.state.IsLastPage() && !n.state.Definition().HasExam {
		n.lms.CompleteCourse(100)
	}
	n.toc.Update()
}

// MarkPageIncomplete re-opens page index and drops its section facts so a
// re-opened page cannot be secretly complete.
func (n *NavigationCoordinator) MarkPageIncomplete(index int) {
	page, ok := n.state.Page(index)
	if !ok {
		return
	}
	n.state.MarkPageIncomplete(index)
	if removed := n.store.PurgePage(page.ID); removed > 0 {
		n.log.WithFields(logrus.Fields{"page": page.ID, "sections": removed}).Debug("Purged section facts of re-opened page")
	}
}

// ResumeAt navigates to index and restores its saved section progress
// once it loads.
func (n *NavigationCoordinator) ResumeAt(index int) bool {
	page, ok := n.state.Page(index)
	if !ok {
		return false
	}
	n.resumePageID = page.ID
	return n.NavigateToPage(index)
}

// updateProgress reports the learner's position to the LMS.
func (n *NavigationCoordinator) updateProgress() {
	if !n.lms.Connected() {
		return
	}
	cur := n.state.CurrentIndex()
	if cur >= n.state.FurthestIndex() {
		n.lms.SaveCurrentPage(cur)
	}
	last, _ := n.state.Page(n.state.PageCount() - 1)
	if cur == last.Index && last.Completed && !n.state.Definition().HasExam {
		n.lms.CompleteCourse(100)
		return
	}
	n.lms.SetLessonStatus(lms.StatusIncomplete, nil)
}

// Close stops any pending navigation.
func (n *NavigationCoordinator) Close() {
	n.abandonPending("runtime closed")
	n.loadSeq++
}
