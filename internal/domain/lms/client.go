// internal/domain/lms/client.go
package lms

// Client is the SCORM runtime API as seen by the course. GetValue and
// SetValue must answer from memory. Commit may run on another goroutine
// while they are being called.
type Client interface {
	Initialize() bool
	GetValue(element string) string
	SetValue(element, value string) bool
	Commit() bool
	Terminate() bool
}

// Version selects the data model namespace.
type Version string

const (
	Version12   Version = "1.2"
	Version2004 Version = "2004"
)

// ParseVersion defaults to SCORM 2004 for anything that is not 1.2.
func ParseVersion(s string) Version {
	if s == string(Version12) {
		return Version12
	}
	return Version2004
}

// Data model elements.
const (
	ElementSuspendData = "cmi.suspend_data"

	ElementLocation2004         = "cmi.location"
	ElementCompletionStatus2004 = "cmi.completion_status"
	ElementSuccessStatus2004    = "cmi.success_status"
	ElementScoreScaled2004      = "cmi.score.scaled"
	ElementScoreRaw2004         = "cmi.score.raw"
	ElementScoreMin2004         = "cmi.score.min"
	ElementScoreMax2004         = "cmi.score.max"

	ElementLocation12     = "cmi.core.lesson_location"
	ElementLessonStatus12 = "cmi.core.lesson_status"
	ElementScoreRaw12     = "cmi.core.score.raw"
	ElementScoreMin12     = "cmi.core.score.min"
	ElementScoreMax12     = "cmi.core.score.max"
)

// Status values shared by both versions.
const (
	StatusCompleted  = "completed"
	StatusIncomplete = "incomplete"
	StatusPassed     = "passed"
	StatusFailed     = "failed"
	StatusUnknown    = "unknown"
	StatusNotAttempt = "not attempted"
)

// LocationElement returns the bookmark element for v.
func (v Version) LocationElement() string {
	if v == Version12 {
		return ElementLocation12
	}
	return ElementLocation2004
}
