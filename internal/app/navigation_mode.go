// internal/app/navigation_mode.go
package app

import "course_runtime/internal/domain/course"

// ModeLease is proof that its holder set a non-organic navigation mode.
// Only the holder can clear it, and only once.
type ModeLease struct {
	mode  course.NavigationMode
	modes *NavigationModes
}

// Release clears the mode if this lease is still the one holding it.
func (l *ModeLease) Release() {
	if l == nil || l.modes == nil {
		return
	}
	if l.modes.active[l.mode] == l {
		delete(l.modes.active, l.mode)
	}
	l.modes = nil
}

// Held reports whether the lease still owns its mode.
func (l *ModeLease) Held() bool {
	return l != nil && l.modes != nil && l.modes.active[l.mode] == l
}

// NavigationModes tracks which programmatic scrolls are in progress.
type NavigationModes struct {
	active map[course.NavigationMode]*ModeLease
}

func NewNavigationModes() *NavigationModes {
	return &NavigationModes{active: make(map[course.NavigationMode]*ModeLease)}
}

// Acquire sets mode. A previous lease on the same mode stops being valid.
func (m *NavigationModes) Acquire(mode course.NavigationMode) *ModeLease {
	if mode == course.ModeOrganic {
		return nil
	}
	lease := &ModeLease{mode: mode, modes: m}
	m.active[mode] = lease
	return lease
}

// Suppressed reports whether organic intersection handling must be skipped.
func (m *NavigationModes) Suppressed() bool {
	return len(m.active) > 0
}

func (m *NavigationModes) IsActive(mode course.NavigationMode) bool {
	_, ok := m.active[mode]
	return ok
}

// Current returns the dominant mode: forced scroll over TOC jump over
// resizing, organic when none is held.
func (m *NavigationModes) Current() course.NavigationMode {
	for _, mode := range []course.NavigationMode{course.ModeForcedScroll, course.ModeTOCJump, course.ModeResizing} {
		if m.IsActive(mode) {
			return mode
		}
	}
	return course.ModeOrganic
}
