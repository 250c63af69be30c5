// Package events carries worker notifications from the transport to the UI.
//
// The worker publishes fire-and-forget events on named channels. The EventBus
// fans them out per channel name; the Consumer turns subscriptions into
// handler calls on the UI loop.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// EventType is the name of a worker event channel.
type EventType string

const (
	ChannelInstallProgress     EventType = "install-progress"
	ChannelCreatePatchProgress EventType = "create-patch-progress"
	ChannelUpdateCheckFinished EventType = "update-check-finished"
	ChannelInstallFinished     EventType = "install-finished" // legacy free-form message
)

// Channels lists every channel the client subscribes to at startup.
var Channels = []EventType{
	ChannelInstallProgress,
	ChannelCreatePatchProgress,
	ChannelUpdateCheckFinished,
	ChannelInstallFinished,
}

// ProgressChannels carry state snapshots: each event fully replaces the
// previous one, so a pending event may be superseded by a newer one.
var ProgressChannels = []EventType{
	ChannelInstallProgress,
	ChannelCreatePatchProgress,
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// WorkerEvent is one notification received from the worker.
// Payload is still encoded; handlers decode it for their channel.
type WorkerEvent struct {
	BaseEvent
	// Generation echoes the token of the command that caused the event.
	// Zero means the worker did not tag the event.
	Generation uint64
	Payload    json.RawMessage
}

// EventBus manages event subscriptions and publishing.
//
// Publish never blocks and never discards an event. Each subscription has its
// own ordered queue drained by a pump goroutine. On progress channels a
// pending worker event is replaced by a newer one of the same generation, so
// a slow subscriber sees the latest progress instead of a backlog.
type EventBus struct {
	subscribers map[EventType][]*subscriber
	coalesce    map[EventType]bool
	mu          sync.RWMutex
	closed      bool
	coalesced   atomic.Int64 // Count of progress events superseded before delivery
}

// subscriber is one subscription: a queue, and a pump moving it to out.
type subscriber struct {
	out      chan Event
	coalesce bool
	bus      *EventBus

	mu      sync.Mutex
	queue   []Event
	closing bool // bus closed: deliver what is queued, then close out

	wake chan struct{} // capacity 1
	stop chan struct{} // closed by Unsubscribe: abandon the queue
}

// NewEventBus creates an event bus. ProgressChannels coalesce.
func NewEventBus() *EventBus {
	eb := &EventBus{
		subscribers: make(map[EventType][]*subscriber),
		coalesce:    make(map[EventType]bool),
	}
	for _, ch := range ProgressChannels {
		eb.coalesce[ch] = true
	}
	return eb
}

// Subscribe creates a subscription to a specific event type
func (eb *EventBus) Subscribe(eventType EventType) <-chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	sub := &subscriber{
		out:      make(chan Event),
		coalesce: eb.coalesce[eventType],
		bus:      eb,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	eb.subscribers[eventType] = append(eb.subscribers[eventType], sub)
	go sub.pump()
	return sub.out
}

// Publish queues an event for every subscriber of its type. It never blocks.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return
	}

	for _, sub := range eb.subscribers[event.Type()] {
		sub.push(event)
	}
}

// PublishWorkerEvent is a convenience method for publishing a raw worker event
func (eb *EventBus) PublishWorkerEvent(channel EventType, generation uint64, payload json.RawMessage) {
	eb.Publish(&WorkerEvent{
		BaseEvent: BaseEvent{
			EventType: channel,
			Time:      time.Now(),
		},
		Generation: generation,
		Payload:    payload,
	})
}

// Close shuts down the event bus. Subscribers receive what was already
// queued, then their channels close.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}

	eb.closed = true

	for _, subs := range eb.subscribers {
		for _, sub := range subs {
			sub.shutdown()
		}
	}
}

// Unsubscribe removes a subscription channel from a specific event type.
// Events still queued for it are discarded and the channel is not closed.
func (eb *EventBus) Unsubscribe(eventType EventType, ch <-chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subscribers := eb.subscribers[eventType]
	for i, sub := range subscribers {
		if sub.out == ch {
			close(sub.stop)
			subscribers[i] = subscribers[len(subscribers)-1]
			eb.subscribers[eventType] = subscribers[:len(subscribers)-1]
			break
		}
	}
}

// CoalescedEventCount returns how many progress events were superseded by a
// newer one before delivery.
func (eb *EventBus) CoalescedEventCount() int64 {
	return eb.coalesced.Load()
}

func (s *subscriber) push(event Event) {
	s.mu.Lock()
	if s.coalesce && s.replaceLast(event) {
		s.mu.Unlock()
		s.bus.coalesced.Add(1)
		return
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()
	s.signal()
}

// replaceLast overwrites the newest queued event when both it and event are
// worker events of the same generation. Other events keep their position.
func (s *subscriber) replaceLast(event Event) bool {
	next, ok := event.(*WorkerEvent)
	if !ok || len(s.queue) == 0 {
		return false
	}
	last, ok := s.queue[len(s.queue)-1].(*WorkerEvent)
	if !ok || last.Generation != next.Generation {
		return false
	}
	s.queue[len(s.queue)-1] = next
	return true
}

func (s *subscriber) shutdown() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.signal()
}

func (s *subscriber) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest queued event. done reports that the bus has closed
// and the queue is empty.
func (s *subscriber) next() (ev Event, ok bool, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false, s.closing
	}
	ev = s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return ev, true, false
}

func (s *subscriber) pump() {
	for {
		ev, ok, done := s.next()
		if done {
			close(s.out)
			return
		}
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		select {
		case s.out <- ev:
		case <-s.stop:
			return
		}
	}
}
