// Package notify sends desktop notifications when a long-running request
// settles, so a minimised window still reports the outcome.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"fmt"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
)

const appName = "PatchDesk"

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	mu      sync.RWMutex

	// send delivers one notification; beeep.Notify outside tests.
	send func(title, message string) error
}

// NewNotifier creates a notifier. A nil logger discards send failures.
func NewNotifier(enabled bool, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Notifier{
		logger:  logger,
		enabled: enabled,
		send: func(title, message string) error {
			// Windows: toast, macOS: NSUserNotificationCenter, Linux: D-Bus
			return beeep.Notify(title, message, "")
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// Settled announces the outcome of a request. The update check never
// produces a notification.
func (n *Notifier) Settled(kind models.OperationKind, err error) {
	if !n.IsEnabled() {
		return
	}
	title, message, ok := settledText(kind, err)
	if !ok {
		return
	}
	if sendErr := n.send(title, message); sendErr != nil {
		n.logger.Warn().Err(sendErr).Str("operation", kind.String()).Msg("Failed to send notification")
	}
}

func settledText(kind models.OperationKind, err error) (title, message string, ok bool) {
	switch kind {
	case models.OperationInstall:
		if err != nil {
			return "Install Failed", truncate(err.Error(), 100), true
		}
		return "Update Installed", fmt.Sprintf("%s finished installing the update.", appName), true
	case models.OperationCreatePatch:
		if err != nil {
			return "Patch Failed", truncate(err.Error(), 100), true
		}
		return "Patch Created", fmt.Sprintf("%s finished writing the patch.", appName), true
	default:
		return "", "", false
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
