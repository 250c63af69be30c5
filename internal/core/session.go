// Package core wires the patcher page to a worker.
//
// A Session owns the UI loop and everything that runs on it: the view page,
// the readiness gate, the request coordinator and the progress projections.
// Worker events reach it through the EventBus the ipc client publishes to.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/coordinator"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/gate"
	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/progress"
	"github.com/packwisely/patchdesk/internal/uiloop"
	"github.com/packwisely/patchdesk/internal/util/size"
	"github.com/packwisely/patchdesk/internal/view"
)

// Worker is the backend the session issues commands to. *ipc.Client
// satisfies it.
type Worker interface {
	GetUpdateCheckStatus(ctx context.Context) (models.UpdateCheckStatus, error)
	Install(ctx context.Context, generation uint64) error
	CreatePatch(ctx context.Context, generation uint64, req models.CreatePatchRequest) (models.CreatePatchResult, error)
}

// Options configures a Session.
type Options struct {
	// SizeFormat renders byte counts in progress text and messages.
	SizeFormat size.Format
	// Layout declares the page; zero value means view.DefaultLayout().
	Layout *view.Layout
	// Sink receives a snapshot after every loop task that changed the page.
	Sink view.Sink
}

// Session is one connected patcher page.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	worker   Worker
	bus      *events.EventBus
	page     *view.Page
	loop     *uiloop.Loop
	consumer *events.Consumer
	gate     *gate.Gate
	coord    *coordinator.Coordinator
	install  *progress.InstallProjection
	files    *progress.FileProjection
	format   size.Format
	logger   *logging.Logger

	installMessage *view.Label
	// installNote holds an install-finished message that arrived while the
	// install request was still in flight.
	installNote string
}

// NewSession binds every element the session needs. A missing element is a
// *view.LookupError and nothing is started.
func NewSession(ctx context.Context, worker Worker, bus *events.EventBus, opts Options) (*Session, error) {
	if worker == nil {
		return nil, errors.New("session: no worker")
	}
	if bus == nil {
		return nil, errors.New("session: no event bus")
	}

	layout := view.DefaultLayout()
	if opts.Layout != nil {
		layout = *opts.Layout
	}
	if opts.SizeFormat.Base == 0 {
		opts.SizeFormat = size.Format{Base: constants.DefaultSizeBase, ClampIndex: constants.DefaultMaxUnitIndex}
	}

	page := view.NewPage(layout)
	if opts.Sink != nil {
		page.SetSink(opts.Sink)
	}

	g, err := gate.New(page, view.FormInstall, view.LabelUpdateStatus)
	if err != nil {
		return nil, fmt.Errorf("bind readiness gate: %w", err)
	}
	install, err := progress.NewInstallProjection(page, opts.SizeFormat)
	if err != nil {
		return nil, fmt.Errorf("bind install progress: %w", err)
	}
	files, err := progress.NewFileProjection(page)
	if err != nil {
		return nil, fmt.Errorf("bind create-patch progress: %w", err)
	}
	installMessage, err := page.Label(view.LabelInstallMessage)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	loop := uiloop.New(constants.UILoopQueueSize, page.Flush)

	s := &Session{
		ctx:            sctx,
		cancel:         cancel,
		worker:         worker,
		bus:            bus,
		page:           page,
		loop:           loop,
		consumer:       events.NewConsumer(bus, loop),
		gate:           g,
		coord:          coordinator.New(sctx, loop, page, g),
		install:        install,
		files:          files,
		format:         opts.SizeFormat,
		logger:         logging.NewLogger("session"),
		installMessage: installMessage,
	}

	if err := s.register(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Session) register() error {
	err := s.coord.Register(coordinator.Operation{
		Kind:       models.OperationInstall,
		Form:       view.FormInstall,
		Message:    view.LabelInstallMessage,
		SubMessage: view.LabelInstallDetail,
		Indicators: indicators(s.install.Indicators()),
		Gated:      true,
		Run: func(ctx context.Context, sub coordinator.Submission) (string, error) {
			err := s.worker.Install(ctx, sub.Generation)
			s.syncEvents(ctx)
			if err != nil {
				return "", err
			}
			return coordinator.InstallSucceeded, nil
		},
	})
	if err != nil {
		return fmt.Errorf("register install: %w", err)
	}

	err = s.coord.Register(coordinator.Operation{
		Kind:       models.OperationCreatePatch,
		Form:       view.FormCreatePatch,
		Message:    view.LabelCreatePatchMessage,
		SubMessage: view.LabelCreatePatchPath,
		Indicators: indicators(s.files.Indicators()),
		Run: func(ctx context.Context, sub coordinator.Submission) (string, error) {
			req := models.CreatePatchRequest{
				OutDir: sub.Values[view.FieldOutDir],
				NewDir: sub.Values[view.FieldNewDir],
				OldDir: sub.Values[view.FieldOldDir],
			}
			res, err := s.worker.CreatePatch(ctx, sub.Generation, req)
			s.syncEvents(ctx)
			if err != nil {
				return "", err
			}
			return coordinator.PatchCreated(res, s.format), nil
		},
	})
	if err != nil {
		return fmt.Errorf("register create patch: %w", err)
	}

	s.coord.OnSettle(func(kind models.OperationKind, err error) {
		if kind != models.OperationInstall {
			return
		}
		if err == nil && s.installNote != "" {
			s.installMessage.SetText(s.installNote)
		}
		s.installNote = ""
	})
	return nil
}

// syncEvents lets the events the worker sent before its response reach the
// page before the request settles.
func (s *Session) syncEvents(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, constants.EventSyncTimeout)
	defer cancel()
	if err := s.consumer.Sync(ctx); err != nil {
		s.logger.Debug().Err(err).Msg("Settling without event sync")
	}
}

func indicators(ps []*progress.Projection) []coordinator.Indicator {
	out := make([]coordinator.Indicator, len(ps))
	for i, p := range ps {
		out[i] = p
	}
	return out
}

// Start subscribes to the worker channels, starts the loop and issues the
// one-shot update status query.
func (s *Session) Start() {
	events.On(s.consumer, events.ChannelInstallProgress, func(p progress.InstallPayload, meta events.Meta) {
		if !s.accept(models.OperationInstall, meta) {
			return
		}
		if !s.inFlight(models.OperationInstall) {
			s.install.ApplyCounters(p)
			return
		}
		s.install.Apply(p)
	})
	events.On(s.consumer, events.ChannelCreatePatchProgress, func(p progress.FilePayload, meta events.Meta) {
		if !s.accept(models.OperationCreatePatch, meta) {
			return
		}
		// Settle cleared the path line; a trailing event must not bring it back.
		if !s.inFlight(models.OperationCreatePatch) {
			s.files.ApplyCounters(p)
			return
		}
		s.files.Apply(p)
	})
	events.On(s.consumer, events.ChannelUpdateCheckFinished, func(status models.UpdateCheckStatus, _ events.Meta) {
		s.gate.Observe(status, gate.SourceEvent)
	})
	events.On(s.consumer, events.ChannelInstallFinished, func(msg string, meta events.Meta) {
		if !s.accept(models.OperationInstall, meta) {
			return
		}
		// While in flight the settle hook shows it in place of the generic
		// success message.
		if s.inFlight(models.OperationInstall) {
			s.installNote = msg
			return
		}
		s.installMessage.SetText(msg)
	})

	s.loop.Start()
	go s.queryStatus()
}

func (s *Session) accept(kind models.OperationKind, meta events.Meta) bool {
	if err := s.coord.Accept(kind, meta.Generation); err != nil {
		s.logger.Debug().Err(err).Str("channel", string(meta.Channel)).Msg("Dropping stale event")
		return false
	}
	return true
}

func (s *Session) inFlight(kind models.OperationKind) bool {
	return s.coord.Lifecycle(kind) == models.LifecycleInFlight
}

func (s *Session) queryStatus() {
	status, err := s.worker.GetUpdateCheckStatus(s.ctx)
	if err != nil {
		// The update-check-finished event can still unlock the page.
		s.logger.Warn().Err(err).Msg("Update status query failed")
		return
	}
	if err := s.loop.Post(func() { s.gate.Observe(status, gate.SourceQuery) }); err != nil {
		s.logger.Debug().Err(err).Msg("Session closed before status query returned")
	}
}

// Do runs fn on the UI loop and waits for it.
func (s *Session) Do(ctx context.Context, fn func()) error {
	return s.loop.Do(ctx, fn)
}

// MarkInteractive reports that the page can now take input. Deferred gate
// unlocks run at this point.
func (s *Session) MarkInteractive(ctx context.Context) error {
	return s.Do(ctx, s.page.MarkInteractive)
}

// Submit dispatches the form of kind. Rejections (in flight, not ready,
// validation) are returned; worker failures surface on the page instead.
func (s *Session) Submit(ctx context.Context, kind models.OperationKind) error {
	var submitErr error
	if err := s.Do(ctx, func() { submitErr = s.coord.Submit(kind) }); err != nil {
		return err
	}
	return submitErr
}

// SetField stores a field value typed by the user.
func (s *Session) SetField(ctx context.Context, id view.ElementID, value string) error {
	var setErr error
	err := s.Do(ctx, func() {
		field, err := s.page.Field(id)
		if err != nil {
			setErr = err
			return
		}
		field.SetValue(value)
	})
	if err != nil {
		return err
	}
	return setErr
}

// Pick asks picker for a directory and stores it in field. Blocks until the
// picker returns; an empty result means the user cancelled.
func (s *Session) Pick(ctx context.Context, picker coordinator.Picker, field view.ElementID, title string) (string, error) {
	return s.coord.Pick(ctx, picker, field, title)
}

// OnSettle registers fn to run on the loop after every settled request.
func (s *Session) OnSettle(ctx context.Context, fn coordinator.SettleFunc) error {
	return s.Do(ctx, func() { s.coord.OnSettle(fn) })
}

// Snapshot returns a copy of the page state.
func (s *Session) Snapshot(ctx context.Context) (view.Snapshot, error) {
	var snap view.Snapshot
	err := s.Do(ctx, func() { snap = s.page.Snapshot() })
	return snap, err
}

// Readiness returns the gate state and its reason.
func (s *Session) Readiness(ctx context.Context) (models.Readiness, string, error) {
	var (
		r      models.Readiness
		reason string
	)
	err := s.Do(ctx, func() {
		r = s.gate.Readiness()
		reason = s.gate.Reason()
	})
	return r, reason, err
}

// Close stops event delivery, abandons outstanding commands and stops the loop.
func (s *Session) Close() {
	s.consumer.Close()
	s.cancel()
	s.loop.Stop()
	s.logger.Infof("Session closed; %d progress events superseded before display", s.bus.CoalescedEventCount())
}
