package wailsapp

import (
	"context"
	"sync"
	"time"

	"github.com/packwisely/patchdesk/internal/view"
)

// ViewEvent is the frontend event carrying a view.Snapshot.
const ViewEvent = "patchdesk:view"

// EmitFunc matches runtime.EventsEmit.
type EmitFunc func(ctx context.Context, eventName string, optionalData ...interface{})

// ViewBridge forwards page snapshots to the webview. Render never blocks the
// UI loop: snapshots are coalesced and emitted at most once per interval, and
// the latest one is always delivered.
type ViewBridge struct {
	ctx      context.Context
	emit     EmitFunc
	interval time.Duration

	mu      sync.Mutex
	latest  *view.Snapshot
	started bool
	pending chan struct{}
	stopC   chan struct{}
	wg      sync.WaitGroup
}

// NewViewBridge creates a bridge emitting through emit.
func NewViewBridge(ctx context.Context, emit EmitFunc, interval time.Duration) *ViewBridge {
	return &ViewBridge{
		ctx:      ctx,
		emit:     emit,
		interval: interval,
		pending:  make(chan struct{}, 1),
		stopC:    make(chan struct{}),
	}
}

// Start begins forwarding. Calling Start twice is a no-op.
func (b *ViewBridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return
	}
	b.started = true
	b.wg.Add(1)
	go b.forwardLoop()
}

// Stop emits nothing further and waits for the forwarder to exit.
func (b *ViewBridge) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()

	close(b.stopC)
	b.wg.Wait()
}

// Render implements view.Sink.
func (b *ViewBridge) Render(snap view.Snapshot) {
	b.mu.Lock()
	b.latest = &snap
	b.mu.Unlock()

	select {
	case b.pending <- struct{}{}:
	default:
	}
}

// Latest returns the last rendered snapshot, if any.
func (b *ViewBridge) Latest() (view.Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return view.Snapshot{}, false
	}
	return *b.latest, true
}

func (b *ViewBridge) forwardLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.pending:
		case <-b.stopC:
			return
		}

		if snap, ok := b.Latest(); ok {
			b.emit(b.ctx, ViewEvent, snap)
		}

		// Coalesce bursts of progress events.
		select {
		case <-time.After(b.interval):
		case <-b.stopC:
			return
		}
	}
}
