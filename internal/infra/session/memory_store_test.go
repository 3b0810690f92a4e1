package session

import (
	"context"
	"testing"
	"time"

	"course_runtime/internal/domain/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	_, err := s.Get(ctx, "sp")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, "sp", `{"currentPage":"lesson1"}`))
	v, err := s.Get(ctx, "sp")
	require.NoError(t, err)
	assert.Equal(t, `{"currentPage":"lesson1"}`, v)

	require.NoError(t, s.Remove(ctx, "sp"))
	require.NoError(t, s.Remove(ctx, "sp"))
	_, err = s.Get(ctx, "sp")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Hour)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.NoError(t, s.Set(ctx, "b", "2"))

	now = now.Add(59 * time.Minute)
	_, err := s.Get(ctx, "a")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)
	assert.Equal(t, 1, s.Purge())
	assert.Zero(t, s.Purge())
}

func TestForLearner_IsolatesKeySpaces(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore(0)
	alice := ForLearner(backend, "intro", 1)
	bob := ForLearner(backend, "intro", 2)

	require.NoError(t, alice.Set(ctx, "psn", "s2"))
	_, err := bob.Get(ctx, "psn")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)

	raw, err := backend.Get(ctx, "course:intro:learner:1:psn")
	require.NoError(t, err)
	assert.Equal(t, "s2", raw)

	require.NoError(t, alice.Remove(ctx, "psn"))
	_, err = alice.Get(ctx, "psn")
	assert.ErrorIs(t, err, session.ErrKeyNotFound)
}
