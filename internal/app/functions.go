// internal/app/functions.go
package app

import (
	"fmt"

	"course_runtime/internal/domain/course"

	"github.com/sirupsen/logrus"
)

// SectionFunc is a content-authored side effect bound to a section by name.
type SectionFunc func(el course.SectionElement, sectionID, pageID string) error

// FunctionRegistry resolves data-function names. Content functions are
// untrusted: errors and panics are logged and never reach the engine.
type FunctionRegistry struct {
	funcs map[string]SectionFunc
	log   *logrus.Entry
}

func NewFunctionRegistry(log *logrus.Entry) *FunctionRegistry {
	return &FunctionRegistry{
		funcs: make(map[string]SectionFunc),
		log:   log.WithField("component", "functions"),
	}
}

func (r *FunctionRegistry) Register(name string, fn SectionFunc) {
	r.funcs[name] = fn
}

func (r *FunctionRegistry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Run calls the function named by el.Function. It reports whether the
// function ran without error.
func (r *FunctionRegistry) Run(el course.SectionElement, pageID string) bool {
	if el.Function == "" {
		return false
	}
	return r.Call(el.Function, el, pageID)
}

// Call invokes name with el as its element.
func (r *FunctionRegistry) Call(name string, el course.SectionElement, pageID string) bool {
	logCtx := r.log.WithFields(logrus.Fields{"function": name, "page": pageID, "section": el.ID})
	fn, ok := r.funcs[name]
	if !ok {
		logCtx.Warn("Section function not registered")
		return false
	}
	if err := invoke(fn, el, pageID); err != nil {
		logCtx.WithError(err).Error("Section function failed")
		return false
	}
	return true
}

func invoke(fn SectionFunc, el course.SectionElement, pageID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(el, el.ID, pageID)
}
