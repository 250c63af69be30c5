package coordinator

import (
	"context"
	"fmt"

	"github.com/packwisely/patchdesk/internal/view"
)

// Picker asks the user for a directory. An empty path with a nil error means
// the user cancelled. Paths are not checked for existence.
type Picker interface {
	PickDirectory(ctx context.Context, title string) (string, error)
}

// PickerFunc adapts a function to the Picker interface.
type PickerFunc func(ctx context.Context, title string) (string, error)

func (f PickerFunc) PickDirectory(ctx context.Context, title string) (string, error) {
	return f(ctx, title)
}

// Pick runs picker and stores the chosen path in field. It blocks on the
// picker and must not be called from the UI loop. Cancellation is a no-op.
func (c *Coordinator) Pick(ctx context.Context, picker Picker, fieldID view.ElementID, title string) (string, error) {
	field, err := c.page.Field(fieldID)
	if err != nil {
		return "", err
	}

	path, err := picker.PickDirectory(ctx, title)
	if err != nil {
		return "", fmt.Errorf("pick %s: %w", fieldID, err)
	}
	if path == "" {
		return "", nil
	}

	if err := c.loop.Post(func() { field.SetValue(path) }); err != nil {
		return "", err
	}
	return path, nil
}
