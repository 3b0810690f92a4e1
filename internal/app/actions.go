// internal/app/actions.go
package app

import (
	"sort"
	"time"

	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
)

// ScriptingAPI is what content-authored actions may call.
type ScriptingAPI interface {
	SectionCompleted(sectionID string) bool
	CompleteActiveSection() bool
	NextSection(delay time.Duration) bool
	NextPage() bool
	MarkCurrentPageAsCompleted(forced bool, delay time.Duration)
	OpenModal(modalID string) bool
	CloseModal()
	PlayMedia(src string) bool
	TogglePause() bool
	ExecFunction(name string) bool
}

// ActionExecutor runs declarative actions. Delayed actions only run if the
// learner is still on the furthest page when the delay expires.
type ActionExecutor struct {
	api   ScriptingAPI
	state *CourseState
	sched Scheduler
	log   *logrus.Entry
}

func NewActionExecutor(api ScriptingAPI, state *CourseState, sched Scheduler, log *logrus.Entry) *ActionExecutor {
	return &ActionExecutor{api: api, state: state, sched: sched, log: log.WithField("component", "actions")}
}

func (x *ActionExecutor) Execute(actions []course.Action) {
	for _, a := range actions {
		if a.DelayMS <= 0 {
			x.run(a)
			continue
		}
		a := a
		x.sched.AfterFunc(a.Delay(), func() {
			if x.state.CurrentIndex() != x.state.FurthestIndex() {
				x.log.WithField("action", string(a.Type)).Debug("Skipping delayed action while reviewing")
				return
			}
			x.run(a)
		})
	}
}

func (x *ActionExecutor) run(a course.Action) {
	logCtx := x.log.WithFields(logrus.Fields{"action": string(a.Type), "target": a.Target})
	switch a.Type {
	case course.ActionSectionCompleted:
		if a.Target == "" {
			x.api.CompleteActiveSection()
		} else {
			x.api.SectionCompleted(a.Target)
		}
	case course.ActionNextSection:
		x.api.NextSection(0)
	case course.ActionNextPage, course.ActionMoveForward:
		x.api.NextPage()
	case course.ActionMarkPageCompleted:
		x.api.MarkCurrentPageAsCompleted(a.Forced, 0)
	case course.ActionOpenModal:
		x.api.OpenModal(a.Target)
	case course.ActionCloseModal:
		x.api.CloseModal()
	case course.ActionSetAudioSource:
		x.api.PlayMedia(a.Target)
	case course.ActionPlayPause:
		x.api.TogglePause()
	case course.ActionExecFunction:
		x.api.ExecFunction(a.Target)
	default:
		logCtx.Warn("Unknown action type")
		return
	}
	logCtx.Debug("Action executed")
}

// CueTrack fires time-based actions while one media source plays.
type CueTrack struct {
	exec     *ActionExecutor
	cues     []course.Cue
	onEnd    []course.Action
	next     int
	lastTime float64
}

func NewCueTrack(exec *ActionExecutor) *CueTrack {
	return &CueTrack{exec: exec}
}

// Load replaces the track. Cues are sorted by time.
func (c *CueTrack) Load(cues []course.Cue, onEnd []course.Action) {
	c.cues = append([]course.Cue(nil), cues...)
	sort.SliceStable(c.cues, func(i, j int) bool { return c.cues[i].At < c.cues[j].At })
	c.onEnd = append([]course.Action(nil), onEnd...)
	c.next = 0
	c.lastTime = 0
}

// OnTimeUpdate fires every cue passed since the last update. Seeking back
// re-arms the cues after the new position.
func (c *CueTrack) OnTimeUpdate(seconds float64) {
	if seconds < c.lastTime {
		c.next = sort.Search(len(c.cues), func(i int) bool { return c.cues[i].At > seconds })
	}
	c.lastTime = seconds
	for c.next < len(c.cues) && c.cues[c.next].At <= seconds {
		cue := c.cues[c.next]
		c.next++
		c.exec.Execute(cue.Actions)
	}
}

// Ended runs the end actions once and clears the track.
func (c *CueTrack) Ended() {
	onEnd := c.onEnd
	c.Load(nil, nil)
	c.exec.Execute(onEnd)
}
