// internal/app/listeners.go
package app

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
)

// Subscription removes a listener when Unsubscribe is called. Components
// keep their subscriptions and release them on teardown.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type listenerEntry[T any] struct {
	id int
	fn func(T) error
}

// listenerSet is an ordered observer list. It is only touched from the
// runtime loop.
type listenerSet[T any] struct {
	nextID  int
	entries []listenerEntry[T]
}

func (ls *listenerSet[T]) add(fn func(T) error) *Subscription {
	ls.nextID++
	id := ls.nextID
	ls.entries = append(ls.entries, listenerEntry[T]{id: id, fn: fn})
	return &Subscription{cancel: func() { ls.remove(id) }}
}

func (ls *listenerSet[T]) remove(id int) {
	for i, e := range ls.entries {
		if e.id == id {
			ls.entries = append(ls.entries[:i:i], ls.entries[i+1:]...)
			return
		}
	}
}

func (ls *listenerSet[T]) len() int { return len(ls.entries) }

// notify calls every listener with v. A failing or panicking listener does
// not stop the others; all failures are returned together.
func (ls *listenerSet[T]) notify(v T) error {
	snapshot := append([]listenerEntry[T](nil), ls.entries...)
	var errs error
	for _, e := range snapshot {
		errs = multierr.Append(errs, callListener(e.fn, v))
	}
	return errs
}

func callListener[T any](fn func(T) error, v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(v)
}
