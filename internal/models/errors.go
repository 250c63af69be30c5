package models

import "errors"

// WorkerError is a failure reported by the worker process for a command.
// Its message is shown to the user verbatim.
type WorkerError struct {
	Command string
	Message string
}

func (e *WorkerError) Error() string {
	return e.Message
}

// ErrStaleEvent marks an event whose generation does not match the
// currently active request of its operation kind.
var ErrStaleEvent = errors.New("stale event")
