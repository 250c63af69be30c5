package wailsapp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packwisely/patchdesk/internal/view"
)

// emitted records what the bridge sent to the frontend.
type emitted struct {
	mu    sync.Mutex
	names []string
	snaps []view.Snapshot
}

func (e *emitted) emit(_ context.Context, name string, data ...interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
	if len(data) == 1 {
		if snap, ok := data[0].(view.Snapshot); ok {
			e.snaps = append(e.snaps, snap)
		}
	}
}

func (e *emitted) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.snaps)
}

func (e *emitted) last() view.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snaps[len(e.snaps)-1]
}

func labelSnapshot(text string) view.Snapshot {
	return view.Snapshot{Labels: map[string]string{"status": text}}
}

func TestViewBridge_EmitsSnapshots(t *testing.T) {
	rec := &emitted{}
	b := NewViewBridge(context.Background(), rec.emit, time.Millisecond)
	b.Start()
	defer b.Stop()

	b.Render(labelSnapshot("one"))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, []string{ViewEvent}, rec.names)
	rec.mu.Unlock()
	assert.Equal(t, "one", rec.last().Labels["status"])
}

func TestViewBridge_CoalescesBursts(t *testing.T) {
	rec := &emitted{}
	b := NewViewBridge(context.Background(), rec.emit, 100*time.Millisecond)
	b.Start()
	defer b.Stop()

	b.Render(labelSnapshot("first"))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	// Everything rendered during the interval collapses into one emit of
	// the latest snapshot.
	for _, text := range []string{"a", "b", "c", "final"} {
		b.Render(labelSnapshot(text))
	}
	require.Eventually(t, func() bool { return rec.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "final", rec.last().Labels["status"])

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 2, rec.count())
}

func TestViewBridge_Latest(t *testing.T) {
	b := NewViewBridge(context.Background(), func(context.Context, string, ...interface{}) {}, time.Millisecond)

	_, ok := b.Latest()
	assert.False(t, ok)

	b.Render(labelSnapshot("x"))
	snap, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, "x", snap.Labels["status"])
}

func TestViewBridge_StopHaltsEmits(t *testing.T) {
	rec := &emitted{}
	b := NewViewBridge(context.Background(), rec.emit, time.Millisecond)
	b.Start()
	b.Start()

	b.Stop()
	b.Stop()

	b.Render(labelSnapshot("late"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}
