// internal/app/lms_session.go
package app

import (
	"encoding/json"
	"strconv"

	"course_runtime/internal/domain/lms"

	"github.com/sirupsen/logrus"
)

// LMSSession wraps an lms.Client with the course's data model rules. Every
// method is a no-op when no LMS connection was established at startup.
//
// Writes land in the client's cache at once. With a scheduler, commits run
// off the loop and writes made while one is running share a single
// follow-up commit; without one they run inline.
type LMSSession struct {
	client       lms.Client
	version      lms.Version
	sched        Scheduler
	connected    bool
	hasCompleted bool
	hasPassed    bool
	dirty        bool // written but not yet committed
	committing   bool
	recommit     bool
	log          *logrus.Entry
}

func NewLMSSession(client lms.Client, version lms.Version, sched Scheduler, log *logrus.Entry) *LMSSession {
	return &LMSSession{
		client:  client,
		version: version,
		sched:   sched,
		log:     log.WithFields(logrus.Fields{"component": "lms_session", "scorm_version": string(version)}),
	}
}

// Initialize connects once. A nil client or a refused initialize leaves the
// session offline for its whole lifetime.
func (s *LMSSession) Initialize() bool {
	if s.client == nil {
		s.log.Info("No LMS client configured, running offline")
		return false
	}
	if s.connected {
		return true
	}
	if !s.client.Initialize() {
		s.log.Warn("LMS initialize refused, running offline")
		return false
	}
	s.connected = true

	status := s.LessonStatus()
	s.hasCompleted = status == lms.StatusCompleted || status == lms.StatusPassed
	if s.version == lms.Version2004 {
		s.hasPassed = s.client.GetValue(lms.ElementSuccessStatus2004) == lms.StatusPassed
	} else {
		s.hasPassed = status == lms.StatusPassed
	}

	if !s.hasCompleted && s.version == lms.Version2004 {
		s.client.SetValue(lms.ElementCompletionStatus2004, lms.StatusIncomplete)
		s.client.SetValue(lms.ElementSuccessStatus2004, lms.StatusUnknown)
		s.scheduleCommit()
	}
	s.log.WithField("lesson_status", status).Info("LMS session initialized")
	return true
}

func (s *LMSSession) Connected() bool { return s.connected }

// LessonStatus returns the completion status in the version's namespace.
func (s *LMSSession) LessonStatus() string {
	if !s.connected {
		return ""
	}
	if s.version == lms.Version12 {
		return s.client.GetValue(lms.ElementLessonStatus12)
	}
	return s.client.GetValue(lms.ElementCompletionStatus2004)
}

// IsCourseIncompleteOrNotPassed reports whether the attempt is still open.
func (s *LMSSession) IsCourseIncompleteOrNotPassed() bool {
	if !s.connected {
		return true
	}
	if s.version == lms.Version12 {
		status := s.LessonStatus()
		return status != lms.StatusCompleted && status != lms.StatusPassed
	}
	return s.LessonStatus() != lms.StatusCompleted ||
		s.client.GetValue(lms.ElementSuccessStatus2004) != lms.StatusPassed
}

// LastViewedPage returns the bookmarked page index, 0 when none.
func (s *LMSSession) LastViewedPage() int {
	if !s.connected {
		return 0
	}
	raw := s.client.GetValue(s.version.LocationElement())
	if raw == "" {
		return 0
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 0 {
		s.log.WithField("location", raw).Warn("Ignoring malformed LMS location")
		return 0
	}
	return page
}

// SaveCurrentPage bookmarks index. The cover page is never bookmarked.
func (s *LMSSession) SaveCurrentPage(index int) {
	if !s.connected || index <= 0 {
		return
	}
	s.client.SetValue(s.version.LocationElement(), strconv.Itoa(index))
	s.scheduleCommit()
}

// SetLessonStatus reports status and an optional 0-100 score. A completed
// or passed attempt is never downgraded.
func (s *LMSSession) SetLessonStatus(status string, score *int) {
	if !s.connected {
		return
	}
	if s.hasCompleted && (status == lms.StatusIncomplete || status == lms.StatusNotAttempt) {
		s.log.WithField("status", status).Debug("Not downgrading completed attempt")
		return
	}

	if s.version == lms.Version12 {
		if s.hasPassed && status != lms.StatusPassed {
			return
		}
		s.client.SetValue(lms.ElementLessonStatus12, status)
	} else {
		switch status {
		case lms.StatusPassed, lms.StatusFailed:
			s.client.SetValue(lms.ElementCompletionStatus2004, lms.StatusCompleted)
			if !s.hasPassed || status == lms.StatusPassed {
				s.client.SetValue(lms.ElementSuccessStatus2004, status)
			}
		default:
			s.client.SetValue(lms.ElementCompletionStatus2004, status)
		}
	}
	if score != nil {
		s.setScore(*score)
	}

	if status == lms.StatusCompleted || status == lms.StatusPassed {
		s.hasCompleted = true
	}
	if status == lms.StatusPassed {
		s.hasPassed = true
	}
	s.scheduleCommit()
}

func (s *LMSSession) setScore(score int) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	raw := strconv.Itoa(score)
	if s.version == lms.Version12 {
		s.client.SetValue(lms.ElementScoreRaw12, raw)
		s.client.SetValue(lms.ElementScoreMin12, "0")
		s.client.SetValue(lms.ElementScoreMax12, "100")
		return
	}
	s.client.SetValue(lms.ElementScoreScaled2004, strconv.FormatFloat(float64(score)/100, 'f', 2, 64))
	s.client.SetValue(lms.ElementScoreRaw2004, raw)
	s.client.SetValue(lms.ElementScoreMin2004, "0")
	s.client.SetValue(lms.ElementScoreMax2004, "100")
}

// CompleteCourse marks the attempt completed and passed with score.
func (s *LMSSession) CompleteCourse(score int) {
	s.SetLessonStatus(lms.StatusPassed, &score)
}

func (s *LMSSession) suspendData() map[string]json.RawMessage {
	data := make(map[string]json.RawMessage)
	raw := s.client.GetValue(lms.ElementSuspendData)
	if raw == "" {
		return data
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.log.WithError(err).Warn("Discarding malformed suspend_data")
		return make(map[string]json.RawMessage)
	}
	return data
}

// CustomData returns the raw JSON stored under key in suspend_data.
func (s *LMSSession) CustomData(key string) (json.RawMessage, bool) {
	if !s.connected {
		return nil, false
	}
	v, ok := s.suspendData()[key]
	if !ok || len(v) == 0 || string(v) == "null" || string(v) == `""` {
		return nil, false
	}
	return v, true
}

// SetCustomData stores value under key in suspend_data and schedules a commit.
func (s *LMSSession) SetCustomData(key string, value any) bool {
	if !s.connected {
		return false
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Error("Could not encode custom data")
		return false
	}
	data := s.suspendData()
	data[key] = encoded
	return s.writeSuspendData(data)
}

// ClearCustomData removes key from suspend_data.
func (s *LMSSession) ClearCustomData(key string) bool {
	if !s.connected {
		return false
	}
	data := s.suspendData()
	if _, ok := data[key]; !ok {
		return true
	}
	delete(data, key)
	return s.writeSuspendData(data)
}

func (s *LMSSession) writeSuspendData(data map[string]json.RawMessage) bool {
	blob, err := json.Marshal(data)
	if err != nil {
		s.log.WithError(err).Error("Could not encode suspend_data")
		return false
	}
	if !s.client.SetValue(lms.ElementSuspendData, string(blob)) {
		s.log.Warn("LMS rejected suspend_data")
		return false
	}
	s.scheduleCommit()
	return true
}

// Commit asks the LMS to persist and waits for the answer. A refused
// commit is retried by FlushPending.
func (s *LMSSession) Commit() bool {
	if !s.connected {
		return false
	}
	if !s.client.Commit() {
		s.dirty = true
		s.log.Warn("LMS commit failed, will retry")
		return false
	}
	s.dirty = false
	return true
}

func (s *LMSSession) scheduleCommit() {
	s.dirty = true
	if s.sched == nil {
		s.Commit()
		return
	}
	if s.committing {
		s.recommit = true
		return
	}
	s.committing = true
	client := s.client
	var ok bool
	s.sched.Async(func() { ok = client.Commit() }, func() {
		s.committing = false
		if !s.connected {
			return
		}
		if s.recommit {
			s.recommit = false
			s.scheduleCommit()
			return
		}
		if !ok {
			s.log.Warn("LMS commit failed, will retry")
			return
		}
		s.dirty = false
	})
}

// Pending reports whether written values still wait for a successful commit.
func (s *LMSSession) Pending() bool { return s.connected && s.dirty }

// FlushPending retries a failed commit. It reports whether anything was
// outstanding.
func (s *LMSSession) FlushPending() bool {
	if !s.Pending() {
		return false
	}
	if !s.committing {
		s.scheduleCommit()
	}
	return true
}

// ResetData wipes bookmark, suspend data and status for a fresh attempt.
func (s *LMSSession) ResetData() {
	if !s.connected {
		return
	}
	s.client.SetValue(s.version.LocationElement(), "")
	s.client.SetValue(lms.ElementSuspendData, "")
	if s.version == lms.Version12 {
		s.client.SetValue(lms.ElementLessonStatus12, lms.StatusIncomplete)
	} else {
		s.client.SetValue(lms.ElementCompletionStatus2004, lms.StatusIncomplete)
		s.client.SetValue(lms.ElementSuccessStatus2004, lms.StatusUnknown)
	}
	s.hasCompleted = false
	s.hasPassed = false
	s.scheduleCommit()
}

// Terminate commits the final state inline and closes the session.
func (s *LMSSession) Terminate() {
	if !s.connected {
		return
	}
	s.Commit()
	s.recommit = false
	s.client.Terminate()
	s.connected = false
}
