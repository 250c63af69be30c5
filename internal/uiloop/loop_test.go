package uiloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_RunsTasksInOrder(t *testing.T) {
	l := New(4, nil)
	l.Start()
	defer l.Stop()

	var got []int
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}

	var snapshot []int
	require.NoError(t, l.Do(context.Background(), func() {
		snapshot = append(snapshot, got...)
	}))

	require.Len(t, snapshot, 20)
	for i, v := range snapshot {
		assert.Equal(t, i, v)
	}
}

func TestLoop_TasksNeverOverlap(t *testing.T) {
	l := New(64, nil)
	l.Start()
	defer l.Stop()

	var running, overlaps atomic.Int32
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Post(func() {
			if running.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(100 * time.Microsecond)
			running.Add(-1)
		}))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Zero(t, overlaps.Load())
}

func TestLoop_AfterTaskHookRunsAfterEveryTask(t *testing.T) {
	var hooks atomic.Int32
	l := New(8, func() { hooks.Add(1) })
	l.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Post(func() {}))
	}
	l.Stop()

	assert.Equal(t, int32(3), hooks.Load())
}

func TestLoop_PanicDoesNotKillLoop(t *testing.T) {
	l := New(8, nil)
	l.Start()
	defer l.Stop()

	require.NoError(t, l.Post(func() { panic("boom") }))

	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_StopDrainsQueueThenRejects(t *testing.T) {
	l := New(8, nil)

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Post(func() { count.Add(1) }))
	}
	l.Start()
	l.Stop()

	assert.Equal(t, int32(5), count.Load())
	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrStopped)

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after Stop")
	}
}

func TestLoop_DoHonorsContext(t *testing.T) {
	l := New(8, nil)
	l.Start()
	defer l.Stop()

	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}
