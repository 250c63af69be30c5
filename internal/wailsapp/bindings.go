package wailsapp

import (
	"fmt"

	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/version"
	"github.com/packwisely/patchdesk/internal/view"
)

// pickerTitles are the dialog titles of the directory fields.
var pickerTitles = map[view.ElementID]string{
	view.FieldOutDir: "Choose where to write the patch",
	view.FieldNewDir: "Choose the new version directory",
	view.FieldOldDir: "Choose the previous version directory",
}

// SubmitInstall starts the install. Rejections (not ready, already running)
// are returned; the outcome arrives through view updates.
func (a *App) SubmitInstall() error {
	return a.submit(models.OperationInstall)
}

// SubmitCreatePatch starts patch creation from the current field values.
func (a *App) SubmitCreatePatch() error {
	return a.submit(models.OperationCreatePatch)
}

func (a *App) submit(kind models.OperationKind) error {
	if a.session == nil {
		return a.notConnected()
	}
	if err := a.session.Submit(a.ctx, kind); err != nil {
		wailsLogger.Debug().Err(err).Str("operation", kind.String()).Msg("Submission rejected")
		return err
	}
	return nil
}

// SetField stores text typed into a field.
func (a *App) SetField(id string, value string) error {
	if a.session == nil {
		return a.notConnected()
	}
	return a.session.SetField(a.ctx, view.ElementID(id), value)
}

// PickDirectory opens a directory dialog for field and stores the choice.
// It returns "" when the user cancels.
func (a *App) PickDirectory(id string) (string, error) {
	if a.session == nil {
		return "", a.notConnected()
	}
	field := view.ElementID(id)
	title, ok := pickerTitles[field]
	if !ok {
		return "", &view.LookupError{Kind: "field", ID: field}
	}
	return a.session.Pick(a.ctx, a.picker, field, title)
}

// GetViewState returns the current page, for the first render.
func (a *App) GetViewState() (view.Snapshot, error) {
	if a.session == nil {
		return view.Snapshot{}, a.notConnected()
	}
	return a.session.Snapshot(a.ctx)
}

// GetConnectionError returns why the worker is unreachable, or "".
func (a *App) GetConnectionError() string {
	if a.connectErr == nil {
		return ""
	}
	return a.connectErr.Error()
}

// GetLogFilePath returns where the log file is written, or "" when file
// logging is off.
func (a *App) GetLogFilePath() string {
	return LogFilePath()
}

// SetNotificationsEnabled turns desktop notifications on or off for the
// rest of the run.
func (a *App) SetNotificationsEnabled(enabled bool) {
	a.notify.SetEnabled(enabled)
	wailsLogger.Infof("Desktop notifications enabled: %t", enabled)
}

// GetNotificationsEnabled reports whether desktop notifications are on.
func (a *App) GetNotificationsEnabled() bool {
	return a.notify.IsEnabled()
}

// GetVersion returns the application version.
func (a *App) GetVersion() string {
	return version.String()
}

func (a *App) notConnected() error {
	if a.connectErr != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, a.connectErr)
	}
	return ErrNotConnected
}
