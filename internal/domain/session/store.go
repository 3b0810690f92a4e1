// internal/domain/session/store.go
package session

import (
	"context"
	"fmt"
)

var ErrKeyNotFound = fmt.Errorf("session key not found")

// Store is the tab-scoped volatile channel. Values are opaque strings.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
