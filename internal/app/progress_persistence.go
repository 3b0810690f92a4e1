// internal/app/progress_persistence.go
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"course_runtime/internal/domain/course"
	"course_runtime/internal/domain/session"

	"github.com/sirupsen/logrus"
)

const (
	KeySectionProgress   = "sp"
	KeyPendingNavigation = "psn"

	currentPageField = "currentPage"
)

// sectionProgress is the "sp" blob: one array of completed local section
// ids per page, plus the page that wrote it last.
type sectionProgress struct {
	Pages       map[string][]string
	CurrentPage string
}

func newSectionProgress() sectionProgress {
	return sectionProgress{Pages: make(map[string][]string)}
}

func (p sectionProgress) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Pages)+1)
	for page, ids := range p.Pages {
		out[page] = ids
	}
	if p.CurrentPage != "" {
		out[currentPageField] = p.CurrentPage
	}
	return json.Marshal(out)
}

func (p *sectionProgress) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Pages = make(map[string][]string, len(raw))
	for key, value := range raw {
		if key == currentPageField {
			if err := json.Unmarshal(value, &p.CurrentPage); err != nil {
				return fmt.Errorf("currentPage: %w", err)
			}
			continue
		}
		var ids []string
		if err := json.Unmarshal(value, &ids); err != nil {
			return fmt.Errorf("page %q: %w", key, err)
		}
		p.Pages[key] = ids
	}
	return nil
}

// decodeProgress accepts the blob as an object or as a JSON string holding
// the object, which is how older attempts stored it.
func decodeProgress(raw []byte) (sectionProgress, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return sectionProgress{}, err
		}
		raw = []byte(inner)
	}
	var p sectionProgress
	if err := json.Unmarshal(raw, &p); err != nil {
		return sectionProgress{}, err
	}
	return p, nil
}

// ProgressPersistence mirrors CompletionStore into the volatile session
// channel and the durable LMS channel.
type ProgressPersistence struct {
	store    *CompletionStore
	state    *CourseState
	volatile session.Store
	lms      *LMSSession
	timeout  time.Duration
	sub      *Subscription
	log      *logrus.Entry
}

func NewProgressPersistence(store *CompletionStore, state *CourseState, volatile session.Store, lmsSession *LMSSession, timeout time.Duration, log *logrus.Entry) *ProgressPersistence {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	p := &ProgressPersistence{
		store:    store,
		state:    state,
		volatile: volatile,
		lms:      lmsSession,
		timeout:  timeout,
		log:      log.WithField("component", "progress_persistence"),
	}
	p.sub = store.Subscribe(func(key course.SectionKey) {
		p.Save(key.PageID)
	})
	return p
}

// Close stops following the completion store.
func (p *ProgressPersistence) Close() {
	p.sub.Unsubscribe()
}

// Save writes pageID's completed sections to both channels. It only writes
// while the learner is on the furthest page and pageID is that page.
func (p *ProgressPersistence) Save(pageID string) bool {
	return p.save(pageID, true)
}

// SaveLocal is Save restricted to the volatile channel.
func (p *ProgressPersistence) SaveLocal(pageID string) bool {
	return p.save(pageID, false)
}

func (p *ProgressPersistence) save(pageID string, durable bool) bool {
	logCtx := p.log.WithField("page", pageID)
	if !p.onFurthestPage(pageID) {
		logCtx.WithFields(logrus.Fields{
			"current":  p.state.CurrentIndex(),
			"furthest": p.state.FurthestIndex(),
		}).Debug("Skipping save for superseded page")
		return false
	}

	progress := p.existingProgress()
	ids := p.store.SectionsForPage(pageID)
	if len(ids) == 0 {
		delete(progress.Pages, pageID)
	} else {
		progress.Pages[pageID] = ids
	}
	progress.CurrentPage = pageID

	p.writeVolatileProgress(progress)
	if durable && p.lms.Connected() {
		p.lms.SetCustomData(KeySectionProgress, progress)
	}
	logCtx.WithField("sections", len(ids)).Debug("Section progress saved")
	return true
}

func (p *ProgressPersistence) onFurthestPage(pageID string) bool {
	furthest := p.state.FurthestIndex()
	return p.state.CurrentIndex() == furthest && p.state.IndexOf(pageID) == furthest
}

// Restore rehydrates completion facts for a page the learner already
// completed. First visits always start clean. It returns how many sections
// of pageID were restored.
func (p *ProgressPersistence) Restore(pageID string) int {
	idx := p.state.IndexOf(pageID)
	page, ok := p.state.Page(idx)
	if !ok || !page.Completed {
		return 0
	}
	return p.restore(pageID)
}

// RestoreForResume rehydrates pageID when an attempt resumes onto a page
// that was left half done.
func (p *ProgressPersistence) RestoreForResume(pageID string) int {
	return p.restore(pageID)
}

func (p *ProgressPersistence) restore(pageID string) int {
	progress, ok := p.readForRestore()
	if !ok {
		return 0
	}
	restored := p.store.RestoreCompletedSections(pageID, progress.Pages[pageID])
	for other, ids := range progress.Pages {
		if other != pageID {
			p.store.RestoreCompletedSections(other, ids)
		}
	}
	p.log.WithFields(logrus.Fields{"page": pageID, "restored": restored}).Debug("Section progress restored")
	return restored
}

// Clear removes pageID's entry. Same guard as Save, plus the current page
// must be completed.
func (p *ProgressPersistence) Clear(pageID string) bool {
	if !p.state.CurrentPage().Completed || !p.onFurthestPage(pageID) {
		return false
	}
	progress := p.existingProgress()
	if _, ok := progress.Pages[pageID]; !ok {
		return false
	}
	delete(progress.Pages, pageID)
	p.writeVolatileProgress(progress)
	if p.lms.Connected() {
		p.lms.SetCustomData(KeySectionProgress, progress)
	}
	return true
}

// SavedSections returns the persisted ids for pageID without touching the
// completion store.
func (p *ProgressPersistence) SavedSections(pageID string) []string {
	progress, ok := p.readForRestore()
	if !ok {
		return nil
	}
	return progress.Pages[pageID]
}

// LastPage returns the page that wrote the saved progress last.
func (p *ProgressPersistence) LastPage() string {
	progress, ok := p.readForRestore()
	if !ok {
		return ""
	}
	return progress.CurrentPage
}

// existingProgress is the blob Save starts from: durable first when an LMS
// is connected, then volatile.
func (p *ProgressPersistence) existingProgress() sectionProgress {
	if p.lms.Connected() {
		if raw, ok := p.lms.CustomData(KeySectionProgress); ok {
			if progress, ok := p.parse(raw, "durable"); ok {
				return progress
			}
		}
	}
	if raw, ok := p.readVolatile(KeySectionProgress); ok {
		if progress, ok := p.parse([]byte(raw), "volatile"); ok {
			return progress
		}
	}
	return newSectionProgress()
}

// readForRestore prefers volatile and falls back to durable.
func (p *ProgressPersistence) readForRestore() (sectionProgress, bool) {
	if raw, ok := p.readVolatile(KeySectionProgress); ok {
		if progress, ok := p.parse([]byte(raw), "volatile"); ok {
			return progress, true
		}
	}
	if p.lms.Connected() {
		if raw, ok := p.lms.CustomData(KeySectionProgress); ok {
			return p.parse(raw, "durable")
		}
	}
	return sectionProgress{}, false
}

func (p *ProgressPersistence) parse(raw []byte, channel string) (sectionProgress, bool) {
	progress, err := decodeProgress(raw)
	if err != nil {
		p.log.WithError(err).WithField("channel", channel).Warn("Ignoring malformed section progress")
		return sectionProgress{}, false
	}
	if progress.Pages == nil {
		progress.Pages = make(map[string][]string)
	}
	return progress, true
}

func (p *ProgressPersistence) writeVolatileProgress(progress sectionProgress) {
	blob, err := json.Marshal(progress)
	if err != nil {
		p.log.WithError(err).Error("Could not encode section progress")
		return
	}
	p.writeVolatile(KeySectionProgress, string(blob))
}

// SavePending records a cross-page section target in both channels.
func (p *ProgressPersistence) SavePending(intent course.PendingNavigation) {
	blob, err := json.Marshal(intent)
	if err != nil {
		p.log.WithError(err).Error("Could not encode pending navigation")
		return
	}
	p.writeVolatile(KeyPendingNavigation, string(blob))
	if p.lms.Connected() {
		p.lms.SetCustomData(KeyPendingNavigation, intent)
	}
}

// LoadPending returns the stored intent, volatile first. A bare section id
// is accepted and applies to the next page that loads.
func (p *ProgressPersistence) LoadPending() (course.PendingNavigation, bool) {
	if raw, ok := p.readVolatile(KeyPendingNavigation); ok {
		if intent, ok := p.parsePending([]byte(raw)); ok {
			return intent, true
		}
	}
	if p.lms.Connected() {
		if raw, ok := p.lms.CustomData(KeyPendingNavigation); ok {
			return p.parsePending(raw)
		}
	}
	return course.PendingNavigation{}, false
}

func (p *ProgressPersistence) parsePending(raw []byte) (course.PendingNavigation, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return course.PendingNavigation{}, false
	}
	if raw[0] == '{' {
		var intent course.PendingNavigation
		if err := json.Unmarshal(raw, &intent); err != nil || intent.SectionID == "" {
			p.log.WithError(err).Warn("Ignoring malformed pending navigation")
			return course.PendingNavigation{}, false
		}
		return intent, true
	}
	id := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &id); err != nil {
			p.log.WithError(err).Warn("Ignoring malformed pending navigation")
			return course.PendingNavigation{}, false
		}
	}
	id = course.NormalizeSectionID(id, "")
	if id == "" {
		return course.PendingNavigation{}, false
	}
	return course.PendingNavigation{PageIndex: -1, SectionID: id}, true
}

func (p *ProgressPersistence) ClearPending() {
	p.removeVolatile(KeyPendingNavigation)
	if p.lms.Connected() {
		p.lms.ClearCustomData(KeyPendingNavigation)
	}
}

// ResetVolatile drops everything this component wrote to the session.
func (p *ProgressPersistence) ResetVolatile() {
	p.removeVolatile(KeySectionProgress)
	p.removeVolatile(KeyPendingNavigation)
}

func (p *ProgressPersistence) readVolatile(key string) (string, bool) {
	if p.volatile == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	value, err := p.volatile.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, session.ErrKeyNotFound) {
			p.log.WithError(err).WithField("key", key).Warn("Volatile read failed")
		}
		return "", false
	}
	return value, value != ""
}

func (p *ProgressPersistence) writeVolatile(key, value string) {
	if p.volatile == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.volatile.Set(ctx, key, value); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("Volatile write failed")
	}
}

func (p *ProgressPersistence) removeVolatile(key string) {
	if p.volatile == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.volatile.Remove(ctx, key); err != nil && !errors.Is(err, session.ErrKeyNotFound) {
		p.log.WithError(err).WithField("key", key).Warn("Volatile remove failed")
	}
}
