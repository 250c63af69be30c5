// Package uiloop provides the single-threaded task loop that owns all view state.
//
// Every task posted to a Loop runs to completion before the next one starts, so
// code running on the loop never needs locks for state that only the loop touches.
// Work that blocks (worker commands, dialogs) runs elsewhere and posts its result
// back with Post.
package uiloop

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/logging"
)

// ErrStopped is returned when posting to a loop that has been stopped.
var ErrStopped = errors.New("ui loop stopped")

// Task is a unit of work executed on the loop goroutine.
type Task func()

// Loop is a FIFO task queue drained by exactly one goroutine.
type Loop struct {
	queue     chan Task
	stopC     chan struct{}
	done      chan struct{}
	afterTask func()
	logger    *logging.Logger

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a loop with the given queue size. afterTask, if non-nil, runs on
// the loop goroutine after every task (used to flush rendering).
func New(queueSize int, afterTask func()) *Loop {
	if queueSize <= 0 {
		queueSize = constants.UILoopQueueSize
	}
	return &Loop{
		queue:     make(chan Task, queueSize),
		stopC:     make(chan struct{}),
		done:      make(chan struct{}),
		afterTask: afterTask,
		logger:    logging.NewLogger("uiloop"),
	}
}

// Start launches the loop goroutine. Calling Start more than once is a no-op.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

// Post enqueues a task. It blocks while the queue is full and returns
// ErrStopped once the loop has been stopped; tasks are never dropped silently.
func (l *Loop) Post(task Task) error {
	select {
	case <-l.stopC:
		return ErrStopped
	default:
	}

	select {
	case l.queue <- task:
		return nil
	case <-l.stopC:
		return ErrStopped
	}
}

// Do runs task on the loop and waits for it to finish.
// Must not be called from the loop goroutine itself.
func (l *Loop) Do(ctx context.Context, task Task) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The loop may have run the task just before exiting.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop runs every task already queued, then stops the loop goroutine.
// Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopC)
	})
	l.Start() // a never-started loop still has to close done
	<-l.done
}

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		select {
		case task := <-l.queue:
			l.runTask(task)
		case <-l.stopC:
			for {
				select {
				case task := <-l.queue:
					l.runTask(task)
				default:
					return
				}
			}
		}
	}
}

// runTask executes a single task with panic recovery, then the after-task hook.
func (l *Loop) runTask(task Task) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("UI task panicked")
			}
		}()
		task()
	}()

	if l.afterTask != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error().Interface("panic", r).Msg("After-task hook panicked")
				}
			}()
			l.afterTask()
		}()
	}
}
