// internal/app/media_arbiter.go
package app

import (
	"course_runtime/internal/domain/media"

	"github.com/sirupsen/logrus"
)

// MediaOwner names the subsystem that currently controls playback.
type MediaOwner string

const (
	OwnerNone    MediaOwner = ""
	OwnerPage    MediaOwner = "page"
	OwnerSection MediaOwner = "section"
	OwnerModal   MediaOwner = "modal"
)

// MediaArbiter gives exactly one subsystem control of the media element
// at a time. Setting a source as a new owner tears the old one down first.
type MediaArbiter struct {
	ctrl   media.Controller
	owner  MediaOwner
	source string
	ended  listenerSet[MediaOwner]
	log    *logrus.Entry
}

func NewMediaArbiter(ctrl media.Controller, log *logrus.Entry) *MediaArbiter {
	return &MediaArbiter{ctrl: ctrl, log: log.WithField("component", "media")}
}

func (m *MediaArbiter) Owner() MediaOwner { return m.owner }
func (m *MediaArbiter) Source() string    { return m.source }

// HasControl reports whether owner may drive playback.
func (m *MediaArbiter) HasControl(owner MediaOwner) bool {
	return owner != OwnerNone && m.owner == owner
}

// Play hands the element to owner, loads src and starts playback.
func (m *MediaArbiter) Play(owner MediaOwner, src string) bool {
	if m.ctrl == nil || src == "" {
		return false
	}
	if m.owner != OwnerNone {
		m.ctrl.Clean()
	}
	m.owner = owner
	m.source = src
	logCtx := m.log.WithFields(logrus.Fields{"owner": string(owner), "source": src})
	if err := m.ctrl.SetSource(src); err != nil {
		logCtx.WithError(err).Warn("Could not set media source")
		m.owner, m.source = OwnerNone, ""
		return false
	}
	if err := m.ctrl.Play(); err != nil {
		logCtx.WithError(err).Warn("Media playback failed to start")
		return false
	}
	logCtx.Debug("Media playing")
	return true
}

// Pause pauses playback for the current owner only.
func (m *MediaArbiter) Pause(owner MediaOwner) bool {
	if m.ctrl == nil || !m.HasControl(owner) {
		return false
	}
	m.ctrl.Pause()
	return true
}

func (m *MediaArbiter) Resume(owner MediaOwner) bool {
	if m.ctrl == nil || !m.HasControl(owner) {
		return false
	}
	if err := m.ctrl.Play(); err != nil {
		m.log.WithError(err).Warn("Media resume failed")
		return false
	}
	return true
}

// Release gives up control if owner holds it.
func (m *MediaArbiter) Release(owner MediaOwner) {
	if !m.HasControl(owner) {
		return
	}
	m.Teardown()
}

// Teardown stops whatever is playing regardless of owner.
func (m *MediaArbiter) Teardown() {
	if m.ctrl != nil && m.owner != OwnerNone {
		m.ctrl.Clean()
	}
	m.owner = OwnerNone
	m.source = ""
}

// Ended is called when playback finishes. Listeners learn which owner's
// media ended; control stays with that owner until released.
func (m *MediaArbiter) Ended() MediaOwner {
	owner := m.owner
	if owner == OwnerNone {
		return owner
	}
	if err := m.ended.notify(owner); err != nil {
		m.log.WithError(err).Error("Media ended listener failed")
	}
	return owner
}

func (m *MediaArbiter) OnEnded(fn func(MediaOwner)) *Subscription {
	return m.ended.add(func(o MediaOwner) error {
		fn(o)
		return nil
	})
}
