// Package gate decides when controls that depend on the update check may be
// used.
//
// Readiness arrives from two independent sources, the startup status query
// and the update-check-finished event, in any order and any number of times.
// The gate applies its unlock exactly once, and never before the page is
// interactive.
package gate

import (
	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
	"github.com/packwisely/patchdesk/internal/view"
)

// Source names where a readiness observation came from.
type Source string

const (
	SourceQuery Source = "query"
	SourceEvent Source = "event"
)

// Gate tracks the readiness of the update check. All methods must run on the
// UI loop.
type Gate struct {
	page   *view.Page
	form   *view.Form
	status *view.Label
	logger *logging.Logger

	readiness models.Readiness
	reason    string

	// scheduled is set when the unlock has been queued or applied; it is
	// never cleared, so the unlock runs at most once.
	scheduled bool
	unlocked  bool
	unlocks   int
}

// New binds a gate to the dependent form and the status label of page.
func New(page *view.Page, formID, statusID view.ElementID) (*Gate, error) {
	form, err := page.Form(formID)
	if err != nil {
		return nil, err
	}
	status, err := page.Label(statusID)
	if err != nil {
		return nil, err
	}
	return &Gate{
		page:   page,
		form:   form,
		status: status,
		logger: logging.NewLogger("gate"),
	}, nil
}

// Observe records one readiness report. Ready is absorbing: once seen, later
// reports are ignored. A not-ready report only replaces Unknown or an earlier
// not-ready report, so a check that was still running at startup can turn
// ready later.
func (g *Gate) Observe(status models.UpdateCheckStatus, source Source) {
	if g.readiness == models.ReadinessReady {
		g.logger.Debug().
			Str("source", string(source)).
			Bool("ready", status.Ready).
			Msg("Readiness already settled, ignoring report")
		return
	}

	g.reason = status.Reason
	g.status.SetText(status.Reason)

	if !status.Ready {
		g.readiness = models.ReadinessNotReady
		g.logger.Debug().Str("source", string(source)).Str("reason", status.Reason).Msg("Update check not ready")
		return
	}

	g.readiness = models.ReadinessReady
	g.logger.Info().Str("source", string(source)).Str("reason", status.Reason).Msg("Update check ready")

	if g.scheduled {
		return
	}
	g.scheduled = true
	g.page.WhenInteractive(g.unlock)
}

// unlock enables every control of the dependent form that the layout
// declared disabled.
func (g *Gate) unlock() {
	for _, c := range g.form.Controls() {
		if c.InitiallyDisabled() {
			c.SetDisabled(false)
		}
	}
	g.unlocked = true
	g.unlocks++
}

// Readiness returns the current readiness.
func (g *Gate) Readiness() models.Readiness { return g.readiness }

// Reason returns the reason carried by the last accepted report.
func (g *Gate) Reason() string { return g.reason }

// Unlocked reports whether the dependent controls have been enabled.
func (g *Gate) Unlocked() bool { return g.unlocked }

// Unlocks returns how many times the unlock action ran. It never exceeds one.
func (g *Gate) Unlocks() int { return g.unlocks }
