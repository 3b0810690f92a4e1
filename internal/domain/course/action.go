// internal/domain/course/action.go
package course

import "time"

// ActionType names a declarative step content can ask the runtime to take.
type ActionType string

const (
	ActionSectionCompleted  ActionType = "sectionCompleted"
	ActionNextSection       ActionType = "nextSection"
	ActionNextPage          ActionType = "nextPage"
	ActionMoveForward       ActionType = "moveForward"
	ActionMarkPageCompleted ActionType = "markPageCompleted"
	ActionOpenModal         ActionType = "openModal"
	ActionCloseModal        ActionType = "closeModal"
	ActionSetAudioSource    ActionType = "setAudioSource"
	ActionPlayPause         ActionType = "play_pause"
	ActionExecFunction      ActionType = "execFunction"
)

// Action is one step. Target is the section, modal, media source or
// function name depending on Type.
type Action struct {
	Type    ActionType `json:"type" yaml:"type"`
	Target  string     `json:"target,omitempty" yaml:"target,omitempty"`
	DelayMS int        `json:"delay,omitempty" yaml:"delay,omitempty"`
	Forced  bool       `json:"forced,omitempty" yaml:"forced,omitempty"`
}

func (a Action) Delay() time.Duration {
	return time.Duration(a.DelayMS) * time.Millisecond
}

// Cue runs Actions once when playback passes At seconds.
type Cue struct {
	At      float64  `json:"time" yaml:"time"`
	Actions []Action `json:"actions" yaml:"actions"`
}
