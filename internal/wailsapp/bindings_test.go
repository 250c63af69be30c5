package wailsapp

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/packwisely/patchdesk/internal/config"
	"github.com/packwisely/patchdesk/internal/coordinator"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/view"
)

type stubWorker struct {
	installs atomic.Int32
	requests chan models.CreatePatchRequest
}

func (w *stubWorker) GetUpdateCheckStatus(context.Context) (models.UpdateCheckStatus, error) {
	return models.UpdateCheckStatus{Ready: true, Reason: "Version 2.0.0 is available"}, nil
}

func (w *stubWorker) Install(context.Context, uint64) error {
	w.installs.Add(1)
	return nil
}

func (w *stubWorker) CreatePatch(_ context.Context, _ uint64, req models.CreatePatchRequest) (models.CreatePatchResult, error) {
	w.requests <- req
	return models.CreatePatchResult{}, nil
}

func newAttachedApp(t *testing.T, w *stubWorker) (*App, *emitted) {
	t.Helper()
	ctx := context.Background()
	cfg := config.NewConfig()
	cfg.Notify.Enabled = false
	app := NewApp(cfg)
	app.ctx = ctx
	app.picker = coordinator.PickerFunc(func(_ context.Context, title string) (string, error) {
		if title == pickerTitles[view.FieldOldDir] {
			return "", nil
		}
		return "/picked/" + title, nil
	})

	rec := &emitted{}
	require.NoError(t, app.attach(ctx, w, events.NewEventBus(), rec.emit))
	t.Cleanup(func() { app.shutdown(ctx) })
	app.domReady(ctx)

	require.Eventually(t, func() bool {
		r, _, err := app.session.Readiness(ctx)
		return err == nil && r == models.ReadinessReady
	}, 2*time.Second, 5*time.Millisecond)
	return app, rec
}

func TestApp_SubmitInstall(t *testing.T) {
	w := &stubWorker{}
	app, rec := newAttachedApp(t, w)

	require.NoError(t, app.SubmitInstall())
	require.Eventually(t, func() bool { return w.installs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return rec.count() > 0 && rec.last().Labels[string(view.LabelInstallMessage)] != ""
	}, 2*time.Second, 5*time.Millisecond)
}

func TestApp_CreatePatchFromBoundFields(t *testing.T) {
	w := &stubWorker{requests: make(chan models.CreatePatchRequest, 1)}
	app, _ := newAttachedApp(t, w)

	require.NoError(t, app.SetField(string(view.FieldOutDir), "/out"))
	path, err := app.PickDirectory(string(view.FieldNewDir))
	require.NoError(t, err)
	assert.Equal(t, "/picked/"+pickerTitles[view.FieldNewDir], path)

	// Cancelled dialog leaves the field empty.
	path, err = app.PickDirectory(string(view.FieldOldDir))
	require.NoError(t, err)
	assert.Empty(t, path)

	state, err := app.GetViewState()
	require.NoError(t, err)
	assert.Equal(t, "/out", state.Fields[string(view.FieldOutDir)])

	require.NoError(t, app.SubmitCreatePatch())
	select {
	case req := <-w.requests:
		assert.Equal(t, "/out", req.OutDir)
		assert.Equal(t, path, req.OldDir)
	case <-time.After(2 * time.Second):
		t.Fatal("create-patch was not issued")
	}
}

func TestApp_BindingErrors(t *testing.T) {
	app, _ := newAttachedApp(t, &stubWorker{})

	var lookup *view.LookupError
	assert.ErrorAs(t, app.SetField("nope", "x"), &lookup)
	_, err := app.PickDirectory(string(view.LabelInstallMessage))
	assert.ErrorAs(t, err, &lookup)

	var verr *coordinator.ValidationError
	require.ErrorAs(t, app.SubmitCreatePatch(), &verr)
	assert.Equal(t, []view.ElementID{view.FieldOutDir, view.FieldNewDir}, verr.Missing)
}

func TestApp_NotConnected(t *testing.T) {
	app := NewApp(config.NewConfig())
	app.ctx = context.Background()

	assert.ErrorIs(t, app.SubmitInstall(), ErrNotConnected)
	assert.ErrorIs(t, app.SetField(string(view.FieldOutDir), "x"), ErrNotConnected)
	_, err := app.PickDirectory(string(view.FieldOutDir))
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = app.GetViewState()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, app.GetConnectionError())

	app.connectErr = errors.New("dial unix /tmp/worker.sock: connection refused")
	err = app.SubmitInstall()
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, app.connectErr.Error(), app.GetConnectionError())

	// Nothing to release.
	app.domReady(context.Background())
	app.shutdown(context.Background())
}

func TestApp_GetVersion(t *testing.T) {
	assert.NotEmpty(t, NewApp(config.NewConfig()).GetVersion())
}

func TestApp_NotificationToggle(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Notify.Enabled = false
	app := NewApp(cfg)

	assert.False(t, app.GetNotificationsEnabled())
	app.SetNotificationsEnabled(true)
	assert.True(t, app.GetNotificationsEnabled())
	app.SetNotificationsEnabled(false)
	assert.False(t, app.GetNotificationsEnabled())
}

func TestApp_GetLogFilePath(t *testing.T) {
	app := NewApp(config.NewConfig())
	assert.Empty(t, app.GetLogFilePath())

	path := filepath.Join(t.TempDir(), "patchdesk.log")
	fileLoggerMu.Lock()
	fileLogger = &lumberjack.Logger{Filename: path}
	fileLoggerMu.Unlock()
	t.Cleanup(CloseFileLogger)

	assert.Equal(t, path, app.GetLogFilePath())
}
