package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/packwisely/patchdesk/internal/config"
	"github.com/packwisely/patchdesk/internal/core"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/ipc"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/view"
)

// connect dials the worker and returns the client with the bus its events
// are published on. The caller closes both.
func connect(ctx context.Context, cfg *config.Config) (*ipc.Client, *events.EventBus, error) {
	bus := events.NewEventBus()
	client, err := ipc.Dial(ctx, cfg.Worker.Socket, cfg.DialTimeout(), bus)
	if err != nil {
		bus.Close()
		return nil, nil, fmt.Errorf("is the worker running? %w", err)
	}
	return client, bus, nil
}

// operation is one CLI-driven form submission.
type operation struct {
	kind models.OperationKind
	sink view.Sink
	// prepare fills the form before submission.
	prepare func(ctx context.Context, s *core.Session) error
	// readyWait bounds how long a gated operation waits for the update check.
	readyWait time.Duration
}

// run connects, submits op and waits for it to settle. It returns the final
// page and the settle error (nil on success).
func (op operation) run(ctx context.Context, cfg *config.Config) (view.Snapshot, error) {
	client, bus, err := connect(ctx, cfg)
	if err != nil {
		return view.Snapshot{}, err
	}
	defer bus.Close()
	defer client.Close()

	session, err := core.NewSession(ctx, client, bus, core.Options{
		SizeFormat: cfg.SizeFormat(),
		Sink:       op.sink,
	})
	if err != nil {
		return view.Snapshot{}, err
	}
	defer session.Close()

	settled := make(chan error, 1)
	session.Start()
	if err := session.OnSettle(ctx, func(kind models.OperationKind, err error) {
		if kind == op.kind {
			select {
			case settled <- err:
			default:
			}
		}
	}); err != nil {
		return view.Snapshot{}, err
	}
	// A terminal has nothing left to load.
	if err := session.MarkInteractive(ctx); err != nil {
		return view.Snapshot{}, err
	}

	if op.prepare != nil {
		if err := op.prepare(ctx, session); err != nil {
			return view.Snapshot{}, err
		}
	}
	if op.readyWait > 0 {
		if err := waitReady(ctx, session, op.readyWait); err != nil {
			return view.Snapshot{}, err
		}
	}

	if err := session.Submit(ctx, op.kind); err != nil {
		return view.Snapshot{}, err
	}
	GetLogger().Debug().Str("operation", op.kind.String()).Msg("Submitted")

	var settleErr error
	select {
	case settleErr = <-settled:
	case <-ctx.Done():
		return view.Snapshot{}, ctx.Err()
	}

	snap, err := session.Snapshot(ctx)
	if err != nil {
		return view.Snapshot{}, err
	}
	return snap, settleErr
}

// waitReady polls the gate until the update check is ready.
func waitReady(ctx context.Context, s *core.Session, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		r, reason, err := s.Readiness(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("update check did not finish in %s", wait)
			}
			return err
		}
		if r == models.ReadinessReady {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if reason == "" {
				reason = "no answer from worker"
			}
			return fmt.Errorf("update not ready after %s: %s", wait, reason)
		}
	}
}
