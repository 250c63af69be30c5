package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/uiloop"
)

// Poster schedules work on the UI loop. *uiloop.Loop satisfies it.
type Poster interface {
	Post(task uiloop.Task) error
}

// Meta describes the delivery of one event.
type Meta struct {
	Channel    EventType
	Generation uint64
	Received   time.Time
}

// Handler receives the still-encoded payload of one event. It runs on the UI
// loop, must not block, and must tolerate duplicate delivery.
type Handler func(payload json.RawMessage, meta Meta)

// Consumer subscribes to worker channels and dispatches each event to its
// handler on the UI loop. Events on one channel are dispatched in the order
// they were published; nothing is implied across channels.
type Consumer struct {
	bus    *EventBus
	loop   Poster
	logger *logging.Logger

	mu     sync.Mutex
	subs   []subscription
	stopC  chan struct{}
	wg     sync.WaitGroup
	closed bool
}

type subscription struct {
	channel EventType
	ch      <-chan Event
}

// NewConsumer creates a consumer reading from bus and posting to loop.
func NewConsumer(bus *EventBus, loop Poster) *Consumer {
	return &Consumer{
		bus:    bus,
		loop:   loop,
		logger: logging.NewLogger("consumer"),
		stopC:  make(chan struct{}),
	}
}

// Subscribe registers handler for every event delivered on channel for the
// lifetime of the consumer.
func (c *Consumer) Subscribe(channel EventType, handler Handler) {
	c.subscribe(channel, func(ev *WorkerEvent) (uiloop.Task, bool) {
		meta := Meta{Channel: channel, Generation: ev.Generation, Received: ev.Timestamp()}
		payload := ev.Payload
		return func() { handler(payload, meta) }, true
	})
}

// On registers a typed handler: the payload is decoded into T before the
// handler is scheduled. Payloads that fail to decode are logged and dropped.
func On[T any](c *Consumer, channel EventType, fn func(payload T, meta Meta)) {
	c.subscribe(channel, func(ev *WorkerEvent) (uiloop.Task, bool) {
		var payload T
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			c.logger.Warn().
				Err(err).
				Str("channel", string(channel)).
				Msg("Dropping undecodable event payload")
			return nil, false
		}
		meta := Meta{Channel: channel, Generation: ev.Generation, Received: ev.Timestamp()}
		return func() { fn(payload, meta) }, true
	})
}

func (c *Consumer) subscribe(channel EventType, toTask func(*WorkerEvent) (uiloop.Task, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Warn().Str("channel", string(channel)).Msg("Subscribe on closed consumer ignored")
		return
	}

	ch := c.bus.Subscribe(channel)
	c.subs = append(c.subs, subscription{channel: channel, ch: ch})

	c.wg.Add(1)
	go c.forward(channel, ch, toTask)
}

// forward drains one subscription in order. One goroutine per subscription
// keeps per-channel ordering without coupling channels to each other.
func (c *Consumer) forward(channel EventType, ch <-chan Event, toTask func(*WorkerEvent) (uiloop.Task, bool)) {
	defer c.wg.Done()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if b, isBarrier := ev.(*barrier); isBarrier {
				if b.owner == c {
					if err := c.loop.Post(b.release); err != nil {
						return
					}
				}
				continue
			}
			we, isWorker := ev.(*WorkerEvent)
			if !isWorker {
				continue
			}
			task, ok := toTask(we)
			if !ok {
				continue
			}
			if err := c.loop.Post(task); err != nil {
				c.logger.Debug().Str("channel", string(channel)).Msg("UI loop stopped, ending subscription")
				return
			}
		case <-c.stopC:
			return
		}
	}
}

// Close stops all subscriptions and waits for their forwarders to exit.
// Events already handed to the loop still run.
func (c *Consumer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	close(c.stopC)
	c.wg.Wait()
	for _, s := range subs {
		c.bus.Unsubscribe(s.channel, s.ch)
	}
}

// ErrConsumerClosed is returned by Sync after Close.
var ErrConsumerClosed = errors.New("consumer closed")

// barrier marks a position in a channel's stream. The owning consumer's
// forwarders post release to the loop when they reach it.
type barrier struct {
	BaseEvent
	owner   *Consumer
	release func()
}

// Sync returns once every event published on a subscribed channel before the
// call has been handled on the loop. A command that settles after Sync cannot
// be overtaken by its own trailing progress events. Sync gives up when ctx
// ends.
func (c *Consumer) Sync(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConsumerClosed
	}
	perChannel := make(map[EventType]int)
	for _, s := range c.subs {
		perChannel[s.channel]++
	}
	c.mu.Unlock()

	total := 0
	for _, n := range perChannel {
		total += n
	}
	released := make(chan struct{}, total)
	for channel := range perChannel {
		c.bus.Publish(&barrier{
			BaseEvent: BaseEvent{EventType: channel, Time: time.Now()},
			owner:     c,
			release:   func() { released <- struct{}{} },
		})
	}

	for i := 0; i < total; i++ {
		select {
		case <-released:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
