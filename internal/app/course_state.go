// internal/app/course_state.go
package app

import (
	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
)

// PageStatusChange is published when a page's completed flag flips.
type PageStatusChange struct {
	Index     int
	Completed bool
}

// CourseState holds the page list and the current/furthest pointers.
type CourseState struct {
	def      *course.Definition
	pages    []course.Page
	current  int
	furthest int
	status   listenerSet[PageStatusChange]
	log      *logrus.Entry
}

func NewCourseState(def *course.Definition, log *logrus.Entry) *CourseState {
	pages := make([]course.Page, len(def.Pages))
	copy(pages, def.Pages)
	for i := range pages {
		pages[i].Index = i
	}
	return &CourseState{
		def:   def,
		pages: pages,
		log:   log.WithField("component", "course_state"),
	}
}

func (s *CourseState) Definition() *course.Definition { return s.def }
func (s *CourseState) PageCount() int                 { return len(s.pages) }
func (s *CourseState) CurrentIndex() int              { return s.current }
func (s *CourseState) FurthestIndex() int             { return s.furthest }

func (s *CourseState) ValidIndex(i int) bool { return i >= 0 && i < len(s.pages) }

// Page returns a copy of the page at i.
func (s *CourseState) Page(i int) (course.Page, bool) {
	if !s.ValidIndex(i) {
		return course.Page{}, false
	}
	return s.pages[i], true
}

func (s *CourseState) CurrentPage() course.Page {
	p, _ := s.Page(s.current)
	return p
}

// Pages returns a copy of the page list.
func (s *CourseState) Pages() []course.Page {
	out := make([]course.Page, len(s.pages))
	copy(out, s.pages)
	return out
}

// IndexOf returns the index of pageID or -1.
func (s *CourseState) IndexOf(pageID string) int {
	for i, p := range s.pages {
		if p.ID == pageID {
			return i
		}
	}
	return -1
}

// SetCurrentPage moves the current pointer and extends furthest when needed.
func (s *CourseState) SetCurrentPage(i int) bool {
	if !s.ValidIndex(i) {
		return false
	}
	s.current = i
	if i > s.furthest {
		s.furthest = i
	}
	return true
}

// IsReviewing reports whether the learner is behind the furthest page.
func (s *CourseState) IsReviewing() bool {
	return s.furthest > s.current
}

// FirstNavigableIndex skips the cover page when the course has one.
func (s *CourseState) FirstNavigableIndex() int {
	if s.def.CoverPage && len(s.pages) > 1 {
		return 1
	}
	return 0
}

func (s *CourseState) IsLastPage() bool {
	return s.current == len(s.pages)-1
}

func (s *CourseState) MarkPageCompleted(i int) {
	s.setCompleted(i, true)
}

func (s *CourseState) MarkPageIncomplete(i int) {
	s.setCompleted(i, false)
}

func (s *CourseState) setCompleted(i int, completed bool) {
	if !s.ValidIndex(i) || s.pages[i].Completed == completed {
		return
	}
	s.pages[i].Completed = completed
	s.log.WithFields(logrus.Fields{"page": s.pages[i].ID, "completed": completed}).Debug("Page status changed")
	if err := s.status.notify(PageStatusChange{Index: i, Completed: completed}); err != nil {
		s.log.WithError(err).Error("Page status listener failed")
	}
}

// RestoreSavedProgress treats every page before saved as completed and
// places furthest at saved. It is the only operation besides Reset that may
// lower furthest.
func (s *CourseState) RestoreSavedProgress(saved int) {
	if !s.ValidIndex(saved) {
		return
	}
	s.furthest = saved
	for i := s.FirstNavigableIndex(); i < saved; i++ {
		s.setCompleted(i, true)
	}
}

// Reset clears every page flag and both pointers.
func (s *CourseState) Reset() {
	for i := range s.pages {
		s.pages[i].Completed = false
	}
	s.current = 0
	s.furthest = 0
}

func (s *CourseState) OnPageStatus(fn func(PageStatusChange)) *Subscription {
	return s.status.add(func(c PageStatusChange) error {
		fn(c)
		return nil
	})
}
