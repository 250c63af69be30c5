package constants

import (
	"time"
)

// UI Loop
const (
	// UILoopQueueSize - pending UI tasks before Post blocks the caller
	UILoopQueueSize = 256
)

// Worker IPC
const (
	// WorkerDialTimeout - time allowed to connect to the worker socket
	WorkerDialTimeout = 5 * time.Second

	// EventSyncTimeout - longest a settling command waits for its trailing events
	EventSyncTimeout = 2 * time.Second

	// WorkerMaxMessageSize - largest single NDJSON line accepted from the peer (16 MB).
	// A create_patch result carries the whole manifest, which can be large.
	WorkerMaxMessageSize = 16 * 1024 * 1024

	// WorkerSocketName - file name of the worker socket inside the config directory
	WorkerSocketName = "worker.sock"

	// WorkerPipeName - Windows named pipe used instead of a socket
	WorkerPipeName = `\\.\pipe\patchdesk-worker`
)

// Display
const (
	// DefaultSizeBase - unit base used by the size formatter unless configured
	DefaultSizeBase = 1024

	// DefaultMaxUnitIndex - largest unit index (8 = Y/Yi) unless configured
	DefaultMaxUnitIndex = 8
)

// UI Updates
const (
	// ProgressRefreshRate - terminal progress bar redraw interval
	ProgressRefreshRate = 150 * time.Millisecond
)
