package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/uiloop"
	"github.com/packwisely/patchdesk/internal/util/size"
	"github.com/packwisely/patchdesk/internal/view"
)

type fakeGate struct{ unlocked bool }

func (g *fakeGate) Unlocked() bool { return g.unlocked }

type fakeIndicator struct{ resets, fails int }

func (i *fakeIndicator) Reset() { i.resets++ }
func (i *fakeIndicator) Fail()  { i.fails++ }

type harness struct {
	loop    *uiloop.Loop
	page    *view.Page
	gate    *fakeGate
	coord   *Coordinator
	settled chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loop := uiloop.New(64, nil)
	loop.Start()
	t.Cleanup(loop.Stop)

	page := view.NewPage(view.DefaultLayout())
	g := &fakeGate{}
	h := &harness{
		loop:    loop,
		page:    page,
		gate:    g,
		coord:   New(context.Background(), loop, page, g),
		settled: make(chan error, 8),
	}
	h.coord.OnSettle(func(_ models.OperationKind, err error) { h.settled <- err })
	return h
}

func (h *harness) do(t *testing.T, fn func()) {
	t.Helper()
	require.NoError(t, h.loop.Do(context.Background(), fn))
}

func (h *harness) submit(t *testing.T, kind models.OperationKind) error {
	t.Helper()
	var err error
	h.do(t, func() { err = h.coord.Submit(kind) })
	return err
}

func (h *harness) waitSettled(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.settled:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("request never settled")
		return nil
	}
}

func (h *harness) control(t *testing.T, id view.ElementID) *view.Control {
	c, err := h.page.Control(id)
	require.NoError(t, err)
	return c
}

func (h *harness) label(t *testing.T, id view.ElementID) *view.Label {
	l, err := h.page.Label(id)
	require.NoError(t, err)
	return l
}

func (h *harness) setField(t *testing.T, id view.ElementID, v string) {
	f, err := h.page.Field(id)
	require.NoError(t, err)
	h.do(t, func() { f.SetValue(v) })
}

func installOp(run Command, ind ...Indicator) Operation {
	return Operation{
		Kind:       models.OperationInstall,
		Form:       view.FormInstall,
		Message:    view.LabelInstallMessage,
		SubMessage: view.LabelInstallDetail,
		Indicators: ind,
		Gated:      true,
		Run:        run,
	}
}

func patchOp(run Command, ind ...Indicator) Operation {
	return Operation{
		Kind:       models.OperationCreatePatch,
		Form:       view.FormCreatePatch,
		Message:    view.LabelCreatePatchMessage,
		SubMessage: view.LabelCreatePatchPath,
		Indicators: ind,
		Run:        run,
	}
}

func TestSubmit_DisablesBeforeResolveAndReenablesAfter(t *testing.T) {
	h := newHarness(t)
	h.gate.unlocked = true

	release := make(chan struct{})
	ind := &fakeIndicator{}
	require.NoError(t, h.coord.Register(installOp(func(ctx context.Context, _ Submission) (string, error) {
		<-release
		return InstallSucceeded, nil
	}, ind)))

	submit := h.control(t, view.ControlInstallSubmit)
	h.do(t, func() { submit.SetDisabled(false) })

	require.NoError(t, h.submit(t, models.OperationInstall))

	h.do(t, func() {
		assert.True(t, submit.Disabled(), "submitter must be disabled before the command resolves")
		assert.Equal(t, models.LifecycleInFlight, h.coord.Lifecycle(models.OperationInstall))
		assert.Equal(t, 1, ind.resets)
	})

	close(release)
	require.NoError(t, h.waitSettled(t))

	h.do(t, func() {
		assert.False(t, submit.Disabled())
		assert.Equal(t, models.LifecycleSucceeded, h.coord.Lifecycle(models.OperationInstall))
		assert.Equal(t, InstallSucceeded, h.label(t, view.LabelInstallMessage).Text())
		assert.Zero(t, ind.fails)
	})
}

func TestSubmit_FailureSurfacesWorkerMessage(t *testing.T) {
	h := newHarness(t)
	h.gate.unlocked = true

	ind := &fakeIndicator{}
	require.NoError(t, h.coord.Register(installOp(func(context.Context, Submission) (string, error) {
		return "", &models.WorkerError{Command: "install", Message: "no space left on device"}
	}, ind)))

	require.NoError(t, h.submit(t, models.OperationInstall))
	err := h.waitSettled(t)
	var werr *models.WorkerError
	require.ErrorAs(t, err, &werr)

	h.do(t, func() {
		assert.False(t, h.control(t, view.ControlInstallSubmit).Disabled())
		assert.Equal(t, models.LifecycleFailed, h.coord.Lifecycle(models.OperationInstall))
		assert.Equal(t, "Error: no space left on device", h.label(t, view.LabelInstallMessage).Text())
		assert.Equal(t, 1, ind.fails)
	})
}

func TestSubmit_RejectsWhileInFlight(t *testing.T) {
	h := newHarness(t)

	release := make(chan struct{})
	var calls atomic.Int32
	require.NoError(t, h.coord.Register(patchOp(func(context.Context, Submission) (string, error) {
		calls.Add(1)
		<-release
		return "done", nil
	})))
	h.setField(t, view.FieldOutDir, "/out")
	h.setField(t, view.FieldNewDir, "/new")

	require.NoError(t, h.submit(t, models.OperationCreatePatch))
	assert.ErrorIs(t, h.submit(t, models.OperationCreatePatch), ErrInFlight)

	close(release)
	require.NoError(t, h.waitSettled(t))
	assert.Equal(t, int32(1), calls.Load())

	// a settled request can be submitted again
	release = make(chan struct{})
	close(release)
	require.NoError(t, h.submit(t, models.OperationCreatePatch))
	require.NoError(t, h.waitSettled(t))
	assert.Equal(t, int32(2), calls.Load())
}

func TestSubmit_ValidationErrorSkipsDispatch(t *testing.T) {
	h := newHarness(t)

	var calls atomic.Int32
	require.NoError(t, h.coord.Register(patchOp(func(context.Context, Submission) (string, error) {
		calls.Add(1)
		return "", nil
	})))
	h.setField(t, view.FieldOutDir, "/out")
	h.setField(t, view.FieldNewDir, "   ")

	err := h.submit(t, models.OperationCreatePatch)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []view.ElementID{view.FieldNewDir}, verr.Missing)

	h.do(t, func() {
		assert.False(t, h.control(t, view.ControlCreatePatchSubmit).Disabled())
		assert.Equal(t, models.LifecycleIdle, h.coord.Lifecycle(models.OperationCreatePatch))
		assert.Contains(t, h.label(t, view.LabelCreatePatchMessage).Text(), "new-dir")
	})
	assert.Zero(t, calls.Load())
}

func TestSubmit_GatedBeforeReady(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.coord.Register(installOp(func(context.Context, Submission) (string, error) {
		return InstallSucceeded, nil
	})))

	assert.ErrorIs(t, h.submit(t, models.OperationInstall), ErrNotReady)
	assert.ErrorIs(t, h.submit(t, models.OperationUpdateCheck), ErrUnknownOperation)
}

func TestSubmit_CreatePatchWithoutOldDir(t *testing.T) {
	h := newHarness(t)

	var got Submission
	require.NoError(t, h.coord.Register(patchOp(func(_ context.Context, sub Submission) (string, error) {
		got = sub
		res := models.CreatePatchResult{
			Manifest: models.PatchManifest{
				ManifestVersion: "V1",
				NewFiles:        []models.FileManifest{{Path: "a"}, {Path: "b"}},
				DiffFiles:       []models.FileManifest{{Path: "c"}},
				StaleFiles:      []string{"d"},
			},
			PatchSize: 2048,
		}
		return PatchCreated(res, size.Binary), nil
	})))
	h.setField(t, view.FieldOutDir, "/out")
	h.setField(t, view.FieldNewDir, "/new")

	path := h.label(t, view.LabelCreatePatchPath)
	h.do(t, func() { path.SetText("/new/leftover.bin") })

	require.NoError(t, h.submit(t, models.OperationCreatePatch))
	require.NoError(t, h.waitSettled(t))

	assert.Equal(t, "/out", got.Values[view.FieldOutDir])
	assert.Equal(t, "/new", got.Values[view.FieldNewDir])
	assert.Empty(t, got.Values[view.FieldOldDir])
	assert.NotZero(t, got.Generation)

	h.do(t, func() {
		assert.Empty(t, path.Text())
		assert.Equal(t, "Patch created: 3 files (2 new, 1 diff, 1 stale), 2KiB",
			h.label(t, view.LabelCreatePatchMessage).Text())
	})
}

func TestSubmit_CommandPanicSettlesAsFailure(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.coord.Register(patchOp(func(context.Context, Submission) (string, error) {
		panic("boom")
	})))
	h.setField(t, view.FieldOutDir, "/out")
	h.setField(t, view.FieldNewDir, "/new")

	require.NoError(t, h.submit(t, models.OperationCreatePatch))
	require.Error(t, h.waitSettled(t))

	h.do(t, func() {
		assert.False(t, h.control(t, view.ControlCreatePatchSubmit).Disabled())
		assert.Equal(t, models.LifecycleFailed, h.coord.Lifecycle(models.OperationCreatePatch))
	})
}

func TestAccept_StaleGeneration(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.coord.Register(patchOp(func(context.Context, Submission) (string, error) {
		return "ok", nil
	})))
	h.setField(t, view.FieldOutDir, "/out")
	h.setField(t, view.FieldNewDir, "/new")

	require.NoError(t, h.submit(t, models.OperationCreatePatch))
	require.NoError(t, h.waitSettled(t))
	var first uint64
	h.do(t, func() { first = h.coord.Generation(models.OperationCreatePatch) })

	require.NoError(t, h.submit(t, models.OperationCreatePatch))
	require.NoError(t, h.waitSettled(t))

	h.do(t, func() {
		second := h.coord.Generation(models.OperationCreatePatch)
		assert.Greater(t, second, first)
		assert.NoError(t, h.coord.Accept(models.OperationCreatePatch, second))
		assert.NoError(t, h.coord.Accept(models.OperationCreatePatch, 0), "untagged events are accepted")
		assert.ErrorIs(t, h.coord.Accept(models.OperationCreatePatch, first), models.ErrStaleEvent)
	})
}

func TestRegister_MissingElement(t *testing.T) {
	h := newHarness(t)
	op := patchOp(func(context.Context, Submission) (string, error) { return "", nil })
	op.Message = "nowhere"

	var lookup *view.LookupError
	require.ErrorAs(t, h.coord.Register(op), &lookup)

	op.Run = nil
	assert.Error(t, h.coord.Register(op))
}

func TestRegister_SubmitterNotAmongControls(t *testing.T) {
	layout := view.DefaultLayout()
	for i := range layout.Forms {
		if layout.Forms[i].ID == view.FormCreatePatch {
			layout.Forms[i].Submitter = "create-patch-missing"
		}
	}
	page := view.NewPage(layout)
	coord := New(context.Background(), uiloop.New(1, nil), page, &fakeGate{})

	var lookup *view.LookupError
	err := coord.Register(patchOp(func(context.Context, Submission) (string, error) { return "", nil }))
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "control", lookup.Kind)
	assert.Equal(t, view.ElementID("create-patch-missing"), lookup.ID)
}

func TestPick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	path, err := h.coord.Pick(ctx, PickerFunc(func(context.Context, string) (string, error) {
		return "/releases/v2", nil
	}), view.FieldNewDir, "New version")
	require.NoError(t, err)
	assert.Equal(t, "/releases/v2", path)

	path, err = h.coord.Pick(ctx, PickerFunc(func(context.Context, string) (string, error) {
		return "", nil
	}), view.FieldNewDir, "New version")
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = h.coord.Pick(ctx, PickerFunc(func(context.Context, string) (string, error) {
		return "", errors.New("dialog unavailable")
	}), view.FieldOldDir, "Old version")
	assert.Error(t, err)

	field, _ := h.page.Field(view.FieldNewDir)
	h.do(t, func() { assert.Equal(t, "/releases/v2", field.Value()) })
}
