// internal/infra/session/namespace.go
package session

import (
	"context"
	"fmt"

	"course_runtime/internal/domain/session"
)

// namespaced gives one learner's runtime its own key space on a shared
// backend, the way a browser tab has its own sessionStorage.
type namespaced struct {
	backend session.Store
	prefix  string
}

// ForLearner scopes backend to one learner of one course.
func ForLearner(backend session.Store, courseID string, learnerID int64) session.Store {
	return &namespaced{backend: backend, prefix: Prefix(courseID, learnerID)}
}

// Prefix is the key prefix used for a learner's values.
func Prefix(courseID string, learnerID int64) string {
	return fmt.Sprintf("course:%s:learner:%d:", courseID, learnerID)
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.backend.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.backend.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.backend.Remove(ctx, n.prefix+key)
}
