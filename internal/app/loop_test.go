package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		loop.Stop()
	})
	return loop
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	loop := startLoop(t)
	var got []int

	require.NoError(t, loop.Do(context.Background(), func() {
		for i := 0; i < 3; i++ {
			i := i
			loop.Post(func() { got = append(got, i) })
		}
	}))
	require.NoError(t, loop.Do(context.Background(), func() {}))

	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestLoop_SurvivesPanickingTask(t *testing.T) {
	loop := startLoop(t)
	loop.Post(func() { panic("boom") })

	ran := false
	require.NoError(t, loop.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_AfterFuncCanBeCancelled(t *testing.T) {
	loop := startLoop(t)
	var mu sync.Mutex
	fired := map[string]bool{}
	mark := func(name string) func() {
		return func() {
			mu.Lock()
			fired[name] = true
			mu.Unlock()
		}
	}

	cancel := loop.AfterFunc(10*time.Millisecond, mark("cancelled"))
	loop.AfterFunc(10*time.Millisecond, mark("kept"))
	cancel()
	cancel()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired["kept"]
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.False(t, fired["cancelled"])
	mu.Unlock()
}

func TestLoop_AsyncCompletesOnLoop(t *testing.T) {
	loop := startLoop(t)
	done := make(chan int, 1)

	var result int
	loop.Async(func() { result = 42 }, func() { done <- result })

	select {
	case v := <-done:
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("async completion never ran")
	}
}

func TestLoop_DoAfterStop(t *testing.T) {
	loop := NewLoop(testLogger())
	loop.Stop()
	loop.Stop()

	assert.True(t, loop.Stopped())
	assert.ErrorIs(t, loop.Do(context.Background(), func() {}), ErrLoopStopped)
}

func TestLoop_DoHonoursContext(t *testing.T) {
	loop := NewLoop(testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Nobody runs the loop, so the task never completes.
	assert.ErrorIs(t, loop.Do(ctx, func() {}), context.DeadlineExceeded)
}
