// Package mock is a stand-in worker process. It serves the worker commands
// over ipc with simulated timings, so the client can be developed and
// demonstrated without the real installer.
package mock

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/packwisely/patchdesk/internal/diskspace"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/ipc"
	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/progress"
)

// Options tune the simulation.
type Options struct {
	// UpdateCheckDelay is how long the background update check takes.
	UpdateCheckDelay time.Duration
	// Step is the pause between progress events.
	Step time.Duration
	// Version is reported by the update check and the install.
	Version string
	// InstallBytes is the simulated download size.
	InstallBytes uint64
	// InstallSteps is the number of install-progress events.
	InstallSteps int
	// FailInstall, if set, makes install fail with this message.
	FailInstall string
}

// DefaultOptions returns timings suited to an interactive demo.
func DefaultOptions() Options {
	return Options{
		UpdateCheckDelay: 2 * time.Second,
		Step:             200 * time.Millisecond,
		Version:          "1.1.0",
		InstallBytes:     48 * 1024 * 1024,
		InstallSteps:     20,
	}
}

// Broadcaster sends untagged events to every client. *ipc.Server satisfies it.
type Broadcaster interface {
	Broadcast(channel events.EventType, payload any) error
}

// Worker implements ipc.Handler.
type Worker struct {
	opts   Options
	logger *logging.Logger

	// checkSpace fails if the output directory cannot hold required bytes.
	checkSpace func(dir string, required uint64) error

	mu     sync.Mutex
	status models.UpdateCheckStatus
}

// New creates a worker whose update check has not finished yet.
func New(opts Options) *Worker {
	if opts.InstallSteps <= 0 {
		opts.InstallSteps = 1
	}
	if opts.Version == "" {
		opts.Version = DefaultOptions().Version
	}
	return &Worker{
		opts:   opts,
		logger: logging.NewLogger("mock-worker"),
		checkSpace: func(dir string, required uint64) error {
			return diskspace.Check(filepath.Join(dir, rawArchive), required, diskspace.DefaultMargin)
		},
		status: models.UpdateCheckStatus{Ready: false, Reason: "Checking for updates..."},
	}
}

// RunUpdateCheck completes the update check after the configured delay and
// announces it on update-check-finished. It returns early if ctx ends.
func (w *Worker) RunUpdateCheck(ctx context.Context, b Broadcaster) {
	select {
	case <-time.After(w.opts.UpdateCheckDelay):
	case <-ctx.Done():
		return
	}

	status := models.UpdateCheckStatus{
		Ready:  true,
		Reason: fmt.Sprintf("Version %s is available", w.opts.Version),
	}
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()

	w.logger.Info().Str("version", w.opts.Version).Msg("Update check finished")
	if err := b.Broadcast(events.ChannelUpdateCheckFinished, status); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to announce update check")
	}
}

// Status returns the current update check status.
func (w *Worker) Status() models.UpdateCheckStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Handle implements ipc.Handler.
func (w *Worker) Handle(ctx context.Context, req *ipc.Request, emit ipc.Emitter) (any, error) {
	switch req.Command {
	case ipc.CmdGetUpdateCheckStatus:
		return w.Status(), nil

	case ipc.CmdInstall:
		return nil, w.install(ctx, emit)

	case ipc.CmdCreatePatch:
		var args models.CreatePatchRequest
		if err := req.DecodeArgs(&args); err != nil {
			return nil, &models.WorkerError{Command: string(req.Command), Message: err.Error()}
		}
		res, err := w.createPatch(ctx, args, emit)
		if err != nil {
			return nil, &models.WorkerError{Command: string(req.Command), Message: err.Error()}
		}
		return res, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", req.Command)
	}
}

// install simulates a download followed by a disk write. The disk counter
// is indeterminate while the download is still being prepared.
func (w *Worker) install(ctx context.Context, emit ipc.Emitter) error {
	if !w.Status().Ready {
		return &models.WorkerError{Command: string(ipc.CmdInstall), Message: "update check has not finished"}
	}

	total := w.opts.InstallBytes
	steps := uint64(w.opts.InstallSteps)
	prepare := steps / 4
	indeterminate := false

	for i := uint64(0); i <= steps; i++ {
		if err := sleep(ctx, w.opts.Step); err != nil {
			return err
		}

		net := total * i / steps
		ev := progress.InstallPayload{
			Net:     progress.Payload{Value: net, Bound: total},
			Message: "Downloading update",
		}
		if i < prepare {
			ev.Disk = progress.Payload{Value: 0, Bound: total, Determinate: &indeterminate}
			ev.Message = "Preparing install directory"
		} else {
			ev.Disk = progress.Payload{Value: total * (i - prepare) / (steps - prepare), Bound: total}
		}

		if i == steps && w.opts.FailInstall != "" {
			return &models.WorkerError{Command: string(ipc.CmdInstall), Message: w.opts.FailInstall}
		}
		if err := emit.Emit(events.ChannelInstallProgress, ev); err != nil {
			return err
		}
	}

	return emit.Emit(events.ChannelInstallFinished, fmt.Sprintf("Installed version %s", w.opts.Version))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
