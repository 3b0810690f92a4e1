// internal/app/completion_store.go
package app

import (
	"sort"

	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
)

// CompletionStore is the ledger of completed sections. It has no I/O;
// persistence and the table of contents follow it through subscriptions.
type CompletionStore struct {
	completed map[course.SectionKey]struct{}
	listeners listenerSet[course.SectionKey]
	log       *logrus.Entry
}

func NewCompletionStore(log *logrus.Entry) *CompletionStore {
	return &CompletionStore{
		completed: make(map[course.SectionKey]struct{}),
		log:       log.WithField("component", "completion_store"),
	}
}

// MarkSectionCompleted records key and notifies subscribers. It returns
// false, without notifying, when key was already completed.
func (s *CompletionStore) MarkSectionCompleted(key course.SectionKey) bool {
	if key.PageID == "" || key.SectionID == "" {
		s.log.WithField("key", key.String()).Warn("Ignoring completion for incomplete section key")
		return false
	}
	if _, ok := s.completed[key]; ok {
		return false
	}
	s.completed[key] = struct{}{}
	s.log.WithField("section", key.String()).Debug("Section completed")

	if err := s.listeners.notify(key); err != nil {
		s.log.WithError(err).WithField("section", key.String()).Error("Completion listener failed")
	}
	return true
}

func (s *CompletionStore) IsSectionCompleted(key course.SectionKey) bool {
	_, ok := s.completed[key]
	return ok
}

func (s *CompletionStore) SetSectionIncomplete(key course.SectionKey) {
	delete(s.completed, key)
}

// SectionsForPage returns the completed local section ids of pageID, sorted.
func (s *CompletionStore) SectionsForPage(pageID string) []string {
	var ids []string
	for key := range s.completed {
		if key.PageID == pageID {
			ids = append(ids, key.SectionID)
		}
	}
	sort.Strings(ids)
	return ids
}

// RestoreCompletedSections adds ids for pageID without notifying anyone.
func (s *CompletionStore) RestoreCompletedSections(pageID string, ids []string) int {
	added := 0
	for _, id := range ids {
		id = course.NormalizeSectionID(id, pageID)
		if id == "" {
			continue
		}
		key := course.SectionKey{PageID: pageID, SectionID: id}
		if _, ok := s.completed[key]; ok {
			continue
		}
		s.completed[key] = struct{}{}
		added++
	}
	return added
}

// AllCompleted reports whether every section in sections is completed on
// pageID. An empty list is never complete.
func (s *CompletionStore) AllCompleted(pageID string, sections []course.SectionElement) bool {
	if len(sections) == 0 {
		return false
	}
	for _, sec := range sections {
		if !s.IsSectionCompleted(sec.Key(pageID)) {
			return false
		}
	}
	return true
}

// PurgePage drops every completion fact of pageID.
func (s *CompletionStore) PurgePage(pageID string) int {
	removed := 0
	for key := range s.completed {
		if key.PageID == pageID {
			delete(s.completed, key)
			removed++
		}
	}
	return removed
}

func (s *CompletionStore) Reset() {
	s.completed = make(map[course.SectionKey]struct{})
}

// Subscribe registers fn for first-time completions.
func (s *CompletionStore) Subscribe(fn func(course.SectionKey)) *Subscription {
	return s.listeners.add(func(key course.SectionKey) error {
		fn(key)
		return nil
	})
}
