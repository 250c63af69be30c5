package events

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/uiloop"
)

type fileProgress struct {
	Done  int    `json:"done_files"`
	Total int    `json:"total_files"`
	Path  string `json:"path"`
}

func newTestConsumer(t *testing.T) (*EventBus, *uiloop.Loop, *Consumer) {
	t.Helper()
	bus := NewEventBus()
	loop := uiloop.New(64, nil)
	loop.Start()
	c := NewConsumer(bus, loop)
	t.Cleanup(func() {
		c.Close()
		loop.Stop()
		bus.Close()
	})
	return bus, loop, c
}

// drain waits until every event published so far has been handled.
func drain(t *testing.T, loop *uiloop.Loop, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		var ok bool
		require.NoError(t, loop.Do(context.Background(), func() { ok = cond() }))
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestConsumer_DeliversInPublishOrderPerChannel(t *testing.T) {
	bus, loop, c := newTestConsumer(t)

	var seen []int
	On(c, ChannelCreatePatchProgress, func(p fileProgress, meta Meta) {
		assert.Equal(t, ChannelCreatePatchProgress, meta.Channel)
		seen = append(seen, p.Done)
	})

	for i := 0; i < 30; i++ {
		raw, _ := json.Marshal(fileProgress{Done: i, Total: 30})
		bus.PublishWorkerEvent(ChannelCreatePatchProgress, 0, raw)
	}

	// Progress may coalesce, but what arrives is in order and ends on the
	// last event.
	drain(t, loop, func() bool { return len(seen) > 0 && seen[len(seen)-1] == 29 })
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestConsumer_BurstEndsOnLastEvent(t *testing.T) {
	bus, loop, c := newTestConsumer(t)

	var last fileProgress
	var handled int
	On(c, ChannelCreatePatchProgress, func(p fileProgress, _ Meta) {
		last = p
		handled++
	})
	var finished []string
	c.Subscribe(ChannelInstallFinished, func(raw json.RawMessage, _ Meta) {
		finished = append(finished, string(raw))
	})

	const burst = 20000
	for i := 1; i <= burst; i++ {
		raw, _ := json.Marshal(fileProgress{Done: i, Total: burst, Path: "f" + strconv.Itoa(i)})
		bus.PublishWorkerEvent(ChannelCreatePatchProgress, 5, raw)
	}
	for i := 0; i < 100; i++ {
		bus.PublishWorkerEvent(ChannelInstallFinished, 5, json.RawMessage(strconv.Itoa(i)))
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), constants.EventSyncTimeout)
	defer cancel()
	require.NoError(t, c.Sync(ctx))
	assert.Less(t, time.Since(start), constants.EventSyncTimeout/2)

	require.NoError(t, loop.Do(context.Background(), func() {
		assert.Equal(t, burst, last.Done)
		assert.Equal(t, "f20000", last.Path)
		assert.LessOrEqual(t, handled, burst)
		require.Len(t, finished, 100)
		assert.Equal(t, "99", finished[99])
	}))
}

func TestConsumer_SyncTimesOut(t *testing.T) {
	bus, _, c := newTestConsumer(t)

	block := make(chan struct{})
	c.Subscribe(ChannelInstallFinished, func(json.RawMessage, Meta) { <-block })
	bus.PublishWorkerEvent(ChannelInstallFinished, 0, nil)
	// The handler holds the loop, so the marker cannot be released.
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Sync(ctx), context.DeadlineExceeded)
}

func TestConsumer_RawHandlerReceivesGeneration(t *testing.T) {
	bus, loop, c := newTestConsumer(t)

	var got Meta
	var payload string
	c.Subscribe(ChannelInstallFinished, func(raw json.RawMessage, meta Meta) {
		got = meta
		payload = string(raw)
	})

	bus.PublishWorkerEvent(ChannelInstallFinished, 42, json.RawMessage(`"sig len: 10"`))

	drain(t, loop, func() bool { return payload != "" })
	assert.Equal(t, uint64(42), got.Generation)
	assert.Equal(t, `"sig len: 10"`, payload)
}

func TestConsumer_DropsUndecodablePayload(t *testing.T) {
	bus, loop, c := newTestConsumer(t)

	var count int
	On(c, ChannelCreatePatchProgress, func(p fileProgress, _ Meta) { count++ })

	bus.PublishWorkerEvent(ChannelCreatePatchProgress, 0, json.RawMessage(`not json`))
	bus.PublishWorkerEvent(ChannelCreatePatchProgress, 0, json.RawMessage(`{"done_files":1}`))

	drain(t, loop, func() bool { return count == 1 })
}

func TestConsumer_CloseStopsDelivery(t *testing.T) {
	bus, loop, c := newTestConsumer(t)

	var count int
	c.Subscribe(ChannelInstallProgress, func(json.RawMessage, Meta) { count++ })
	bus.PublishWorkerEvent(ChannelInstallProgress, 0, json.RawMessage(`{}`))
	drain(t, loop, func() bool { return count == 1 })

	c.Close()
	bus.PublishWorkerEvent(ChannelInstallProgress, 0, json.RawMessage(`{}`))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, loop.Do(context.Background(), func() {
		assert.Equal(t, 1, count)
	}))
}

func TestConsumer_SyncWaitsForEarlierEvents(t *testing.T) {
	bus, loop, c := newTestConsumer(t)
	other := NewConsumer(bus, loop)
	defer other.Close()

	var install, patchA, patchB, otherPatch int
	last := func(dst *int) func(fileProgress, Meta) {
		return func(p fileProgress, _ Meta) { *dst = p.Done }
	}
	On(c, ChannelInstallProgress, last(&install))
	On(c, ChannelCreatePatchProgress, last(&patchA))
	On(c, ChannelCreatePatchProgress, last(&patchB))
	On(other, ChannelCreatePatchProgress, last(&otherPatch))

	for i := 1; i <= 20; i++ {
		raw, _ := json.Marshal(fileProgress{Done: i, Total: 20})
		bus.PublishWorkerEvent(ChannelInstallProgress, 0, raw)
		bus.PublishWorkerEvent(ChannelCreatePatchProgress, 0, raw)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Sync(ctx))

	require.NoError(t, loop.Do(context.Background(), func() {
		assert.Equal(t, 20, install)
		assert.Equal(t, 20, patchA)
		assert.Equal(t, 20, patchB)
	}))

	// The other consumer ignores barriers it does not own.
	drain(t, loop, func() bool { return otherPatch == 20 })
}

func TestConsumer_SyncAfterClose(t *testing.T) {
	_, _, c := newTestConsumer(t)
	c.Subscribe(ChannelInstallProgress, func(json.RawMessage, Meta) {})
	c.Close()

	assert.ErrorIs(t, c.Sync(context.Background()), ErrConsumerClosed)
}
