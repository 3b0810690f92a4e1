// internal/app/runtime_registry.go
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

var ErrRuntimeNotFound = fmt.Errorf("runtime not found")

// Runtime is one learner's course instance and the loop it runs on.
type Runtime struct {
	LearnerID  int64
	Controller *CourseController
	Loop       *Loop

	cancel   context.CancelFunc
	clock    func() time.Time
	mu       sync.Mutex
	lastSeen time.Time
}

func (r *Runtime) touch(now time.Time) {
	r.mu.Lock()
	r.lastSeen = now
	r.mu.Unlock()
}

func (r *Runtime) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSeen
}

// Do runs f against the controller on the runtime's loop.
func (r *Runtime) Do(ctx context.Context, f func(c *CourseController)) error {
	r.touch(r.clock())
	return r.Loop.Do(ctx, func() { f(r.Controller) })
}

// RuntimeFactory builds the controller for a learner. The loop passed in
// is the scheduler the controller must use.
type RuntimeFactory func(learnerID int64, loop *Loop) (*CourseController, error)

// RuntimeRegistry keeps one runtime per learner.
type RuntimeRegistry struct {
	mu       sync.Mutex
	runtimes map[int64]*Runtime
	factory  RuntimeFactory
	baseCtx  context.Context
	log      *logrus.Entry
	now      func() time.Time
}

func NewRuntimeRegistry(ctx context.Context, factory RuntimeFactory, log *logrus.Entry) *RuntimeRegistry {
	return &RuntimeRegistry{
		runtimes: make(map[int64]*Runtime),
		factory:  factory,
		baseCtx:  ctx,
		log:      log.WithField("component", "runtime_registry"),
		now:      time.Now,
	}
}

// Get returns the learner's runtime, starting a new one when needed. The
// boolean reports whether the runtime was just created.
func (r *RuntimeRegistry) Get(learnerID int64) (*Runtime, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rt, ok := r.runtimes[learnerID]; ok {
		rt.touch(r.now())
		return rt, false, nil
	}

	loop := NewLoop(r.log.WithField("learner_id", learnerID))
	controller, err := r.factory(learnerID, loop)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build runtime for learner %d: %w", learnerID, err)
	}
	ctx, cancel := context.WithCancel(r.baseCtx)
	rt := &Runtime{LearnerID: learnerID, Controller: controller, Loop: loop, cancel: cancel, clock: r.now}
	rt.touch(r.now())
	go loop.Run(ctx)
	r.runtimes[learnerID] = rt
	r.log.WithField("learner_id", learnerID).Info("Runtime started")
	return rt, true, nil
}

// Lookup returns an existing runtime without creating one.
func (r *RuntimeRegistry) Lookup(learnerID int64) (*Runtime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.runtimes[learnerID]
	if !ok {
		return nil, ErrRuntimeNotFound
	}
	return rt, nil
}

func (r *RuntimeRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runtimes)
}

// FlushLMS retries failed LMS commits on every runtime.
func (r *RuntimeRegistry) FlushLMS(ctx context.Context) (int, error) {
	flushed := 0
	var errs error
	for _, rt := range r.snapshot() {
		err := rt.Loop.Do(ctx, func() {
			if rt.Controller.FlushLMS() {
				flushed++
			}
		})
		errs = multierr.Append(errs, err)
	}
	return flushed, errs
}

// Sweep terminates runtimes idle for longer than idle.
func (r *RuntimeRegistry) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := r.now().Add(-idle)
	var stale []*Runtime
	r.mu.Lock()
	for id, rt := range r.runtimes {
		if rt.idleSince().Before(cutoff) {
			stale = append(stale, rt)
			delete(r.runtimes, id)
		}
	}
	r.mu.Unlock()

	var errs error
	for _, rt := range stale {
		errs = multierr.Append(errs, r.stop(ctx, rt))
	}
	return len(stale), errs
}

// Close terminates every runtime.
func (r *RuntimeRegistry) Close(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Runtime, 0, len(r.runtimes))
	for id, rt := range r.runtimes {
		all = append(all, rt)
		delete(r.runtimes, id)
	}
	r.mu.Unlock()

	var errs error
	for _, rt := range all {
		errs = multierr.Append(errs, r.stop(ctx, rt))
	}
	return errs
}

func (r *RuntimeRegistry) stop(ctx context.Context, rt *Runtime) error {
	err := rt.Loop.Do(ctx, rt.Controller.Terminate)
	rt.Loop.Stop()
	rt.cancel()
	r.log.WithField("learner_id", rt.LearnerID).Info("Runtime stopped")
	if err != nil {
		return fmt.Errorf("terminate runtime %d: %w", rt.LearnerID, err)
	}
	return nil
}

func (r *RuntimeRegistry) snapshot() []*Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Runtime, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		out = append(out, rt)
	}
	return out
}
