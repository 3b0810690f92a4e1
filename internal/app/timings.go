// internal/app/timings.go
package app

import "time"

// Timings holds the runtime's delays and thresholds.
type Timings struct {
	VisibilityThreshold   float64       // Fraction of a section that must be visible to count as entered
	MediaStartDelay       time.Duration // Between running a section function and starting its media
	SettleDelay           time.Duration // Outlasts a smooth scroll before side effects run
	PendingLookupAttempts int
	PendingLookupInterval time.Duration
	LoadTimeout           time.Duration
	StorageTimeout        time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		VisibilityThreshold:   0.3,
		MediaStartDelay:       100 * time.Millisecond,
		SettleDelay:           700 * time.Millisecond,
		PendingLookupAttempts: 30,
		PendingLookupInterval: 80 * time.Millisecond,
		LoadTimeout:           10 * time.Second,
		StorageTimeout:        500 * time.Millisecond,
	}
}

// PendingBudget is how long a section target may wait for its page to
// become ready once loading has finished.
func (t Timings) PendingBudget() time.Duration {
	return time.Duration(t.PendingLookupAttempts) * t.PendingLookupInterval
}

// withDefaults fills zero fields from DefaultTimings.
func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.VisibilityThreshold <= 0 || t.VisibilityThreshold > 1 {
		t.VisibilityThreshold = d.VisibilityThreshold
	}
	if t.MediaStartDelay <= 0 {
		t.MediaStartDelay = d.MediaStartDelay
	}
	if t.SettleDelay <= 0 {
		t.SettleDelay = d.SettleDelay
	}
	if t.PendingLookupAttempts <= 0 {
		t.PendingLookupAttempts = d.PendingLookupAttempts
	}
	if t.PendingLookupInterval <= 0 {
		t.PendingLookupInterval = d.PendingLookupInterval
	}
	if t.LoadTimeout <= 0 {
		t.LoadTimeout = d.LoadTimeout
	}
	if t.StorageTimeout <= 0 {
		t.StorageTimeout = d.StorageTimeout
	}
	return t
}
