// Package coordinator runs form submissions as single-flight worker requests.
//
// For each registered form the coordinator disables the submitting control,
// resets the form's progress indicators, runs the worker command off the UI
// loop and settles the result back on it: a message on success, the failure
// text and failed indicators otherwise, and the control re-enabled either way.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/uiloop"
	"github.com/packwisely/patchdesk/internal/view"
)

var (
	// ErrInFlight is returned when a form is submitted while its previous
	// request is still outstanding.
	ErrInFlight = errors.New("request already in flight")

	// ErrNotReady is returned when a gated form is submitted before the
	// update check unlocked it.
	ErrNotReady = errors.New("update check has not completed")

	// ErrUnknownOperation is returned for an operation kind that was never registered.
	ErrUnknownOperation = errors.New("operation not registered")
)

// ValidationError reports required fields left empty. Nothing is sent to the
// worker when it is returned.
type ValidationError struct {
	Form    view.ElementID
	Missing []view.ElementID
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		names[i] = string(id)
	}
	return fmt.Sprintf("missing required field(s): %s", strings.Join(names, ", "))
}

// Poster schedules work on the UI loop. *uiloop.Loop satisfies it.
type Poster interface {
	Post(task uiloop.Task) error
}

// Readiness reports whether gated forms may be submitted. *gate.Gate satisfies it.
type Readiness interface {
	Unlocked() bool
}

// Indicator is a progress display owned by one operation.
type Indicator interface {
	Reset()
	Fail()
}

// Submission carries the values of one dispatch to its command.
type Submission struct {
	// Generation tags the request; the worker echoes it on related events.
	Generation uint64
	Values     map[view.ElementID]string
}

// Command performs the worker request for a submission and returns the
// success message. It runs off the UI loop and may block.
type Command func(ctx context.Context, sub Submission) (string, error)

// Operation describes one form handled by the coordinator.
type Operation struct {
	Kind models.OperationKind
	Form view.ElementID
	// Message receives the success message or the failure text.
	Message view.ElementID
	// SubMessage, if set, is a path/status line cleared on success.
	SubMessage view.ElementID
	Indicators []Indicator
	// Gated forms are refused until the readiness gate has unlocked.
	Gated bool
	Run   Command
}

type flight struct {
	op         Operation
	form       *view.Form
	message    *view.Label
	subMessage *view.Label
	lifecycle  models.Lifecycle
	generation uint64
}

// SettleFunc observes a settled request on the UI loop. err is nil on success.
type SettleFunc func(kind models.OperationKind, err error)

// Coordinator owns the request lifecycle of every registered operation.
// Methods other than Pick must run on the UI loop.
type Coordinator struct {
	ctx        context.Context
	loop       Poster
	page       *view.Page
	gate       Readiness
	flights    map[models.OperationKind]*flight
	generation uint64
	onSettle   []SettleFunc
	logger     *logging.Logger
}

// New creates a coordinator. ctx is passed to every command; cancelling it
// is the only way to abandon outstanding requests.
func New(ctx context.Context, loop Poster, page *view.Page, gate Readiness) *Coordinator {
	return &Coordinator{
		ctx:     ctx,
		loop:    loop,
		page:    page,
		gate:    gate,
		flights: make(map[models.OperationKind]*flight),
		logger:  logging.NewLogger("coordinator"),
	}
}

// Register resolves the elements of op. A missing element is a
// *view.LookupError.
func (c *Coordinator) Register(op Operation) error {
	if op.Run == nil {
		return fmt.Errorf("register %s: no command", op.Kind)
	}
	form, err := c.page.Form(op.Form)
	if err != nil {
		return err
	}
	message, err := c.page.Label(op.Message)
	if err != nil {
		return err
	}
	if _, err := form.SubmitterControl(); err != nil {
		return err
	}
	f := &flight{op: op, form: form, message: message}
	if op.SubMessage != "" {
		if f.subMessage, err = c.page.Label(op.SubMessage); err != nil {
			return err
		}
	}
	c.flights[op.Kind] = f
	return nil
}

// OnSettle registers fn to run after every settled request.
func (c *Coordinator) OnSettle(fn SettleFunc) {
	c.onSettle = append(c.onSettle, fn)
}

// Submit dispatches the form of kind. The submitting control is disabled
// before Submit returns; the command runs on its own goroutine.
func (c *Coordinator) Submit(kind models.OperationKind) error {
	f, ok := c.flights[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, kind)
	}
	if f.lifecycle == models.LifecycleInFlight {
		return fmt.Errorf("%s: %w", kind, ErrInFlight)
	}
	if f.op.Gated && (c.gate == nil || !c.gate.Unlocked()) {
		return fmt.Errorf("%s: %w", kind, ErrNotReady)
	}
	if missing := missingFields(f.form); len(missing) > 0 {
		verr := &ValidationError{Form: f.form.ID(), Missing: missing}
		f.message.SetText(verr.Error())
		return verr
	}

	c.generation++
	gen := c.generation
	f.generation = gen
	f.lifecycle = models.LifecycleInFlight

	if s := f.form.Submitter(); s != nil {
		s.SetDisabled(true)
	}
	for _, ind := range f.op.Indicators {
		ind.Reset()
	}
	f.message.SetText("")
	if f.subMessage != nil {
		f.subMessage.SetText("")
	}

	sub := Submission{Generation: gen, Values: f.form.Values()}
	c.logger.Info().Str("operation", kind.String()).Uint64("generation", gen).Msg("Dispatching request")

	go c.run(f, sub)
	return nil
}

// run executes the command and posts the outcome back to the loop.
func (c *Coordinator) run(f *flight, sub Submission) {
	msg, err := c.call(f.op.Run, sub)
	if perr := c.loop.Post(func() { c.settle(f, sub.Generation, msg, err) }); perr != nil {
		c.logger.Warn().
			Err(perr).
			Str("operation", f.op.Kind.String()).
			Msg("UI loop stopped before request settled")
	}
}

func (c *Coordinator) call(run Command, sub Submission) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Command panicked")
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return run(c.ctx, sub)
}

func (c *Coordinator) settle(f *flight, gen uint64, msg string, err error) {
	if f.generation != gen || f.lifecycle != models.LifecycleInFlight {
		return
	}

	kind := f.op.Kind
	if err != nil {
		f.lifecycle = models.LifecycleFailed
		f.message.SetText(FailureMessage(err))
		for _, ind := range f.op.Indicators {
			ind.Fail()
		}
		c.logger.Warn().Err(err).Str("operation", kind.String()).Uint64("generation", gen).Msg("Request failed")
	} else {
		f.lifecycle = models.LifecycleSucceeded
		f.message.SetText(msg)
		if f.subMessage != nil {
			f.subMessage.SetText("")
		}
		c.logger.Info().Str("operation", kind.String()).Uint64("generation", gen).Msg("Request succeeded")
	}

	if s := f.form.Submitter(); s != nil {
		s.SetDisabled(false)
	}
	for _, fn := range c.onSettle {
		fn(kind, err)
	}
}

// Accept decides whether an event tagged with generation still belongs to
// the current request of kind. Untagged events are always accepted.
func (c *Coordinator) Accept(kind models.OperationKind, generation uint64) error {
	if generation == 0 {
		return nil
	}
	f, ok := c.flights[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOperation, kind)
	}
	if generation != f.generation {
		return fmt.Errorf("%w: %s generation %d, current %d", models.ErrStaleEvent, kind, generation, f.generation)
	}
	return nil
}

// Lifecycle returns the request state of kind.
func (c *Coordinator) Lifecycle(kind models.OperationKind) models.Lifecycle {
	if f, ok := c.flights[kind]; ok {
		return f.lifecycle
	}
	return models.LifecycleIdle
}

// Generation returns the token of the latest request of kind, 0 if none.
func (c *Coordinator) Generation(kind models.OperationKind) uint64 {
	if f, ok := c.flights[kind]; ok {
		return f.generation
	}
	return 0
}

func missingFields(form *view.Form) []view.ElementID {
	var missing []view.ElementID
	for _, field := range form.Fields() {
		if field.Required() && strings.TrimSpace(field.Value()) == "" {
			missing = append(missing, field.ID())
		}
	}
	return missing
}
