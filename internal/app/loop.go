// internal/app/loop.go
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrLoopStopped = fmt.Errorf("runtime loop stopped")

// Scheduler is the only way the runtime defers work. Every callback runs on
// the runtime's own loop, one at a time.
type Scheduler interface {
	// Post runs f on a later loop turn.
	Post(f func())
	// AfterFunc runs f after d. The returned cancel is safe to call any
	// number of times and prevents f from running if it has not started.
	AfterFunc(d time.Duration, f func()) (cancel func())
	// Async runs work off the loop and then done on the loop.
	Async(work func(), done func())
}

// Loop serializes all runtime callbacks on one goroutine. The queue is
// unbounded so tasks may post follow-ups without blocking the loop.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	once    sync.Once
	log     *logrus.Entry
}

func NewLoop(log *logrus.Entry) *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		log:     log.WithField("component", "loop"),
	}
}

// Run processes tasks until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.stopped:
			return
		case <-l.wake:
		}
		for {
			f, ok := l.next()
			if !ok {
				break
			}
			l.run(f)
			select {
			case <-l.stopped:
				return
			default:
			}
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	f := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return f, true
}

func (l *Loop) run(f func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithField("panic", r).Error("Recovered panic in runtime task")
		}
	}()
	f()
}

// Stop ends Run. Queued tasks are dropped.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stopped) })
}

// Stopped reports whether Stop has been called.
func (l *Loop) Stopped() bool {
	select {
	case <-l.stopped:
		return true
	default:
		return false
	}
}

func (l *Loop) Post(f func()) {
	if l.Stopped() {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) AfterFunc(d time.Duration, f func()) func() {
	var cancelled atomic.Bool
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if !cancelled.Load() {
				f()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		t.Stop()
	}
}

func (l *Loop) Async(work func(), done func()) {
	go func() {
		work()
		l.Post(done)
	}()
}

// Do runs f on the loop and waits for it to finish. It must not be called
// from the loop itself.
func (l *Loop) Do(ctx context.Context, f func()) error {
	if l.Stopped() {
		return ErrLoopStopped
	}
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		f()
	})
	select {
	case <-finished:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
