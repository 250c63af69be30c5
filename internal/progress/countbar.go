package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/view"
)

// CountBar renders one page bar as a progressbar counter, with the bar's
// detail label as its description. Used for the file count of patch creation.
type CountBar struct {
	mu         sync.Mutex
	bar        *progressbar.ProgressBar
	out        io.Writer
	isTerminal bool
	track      Track
	detail     view.ElementID
	echo       *labelEcho
	lastMax    int64
}

// NewCountBar creates the counter for track on out. detail names the label
// shown as the bar description; watched labels are printed when they change.
func NewCountBar(out *os.File, track Track, detail view.ElementID, watched []view.ElementID) *CountBar {
	isTerminal := term.IsTerminal(int(out.Fd()))
	if isTerminal {
		enableANSIOnWindows(out)
	}

	c := &CountBar{
		out:        out,
		isTerminal: isTerminal,
		track:      track,
		detail:     detail,
		echo:       newLabelEcho(out, watched),
		lastMax:    -1,
	}
	if isTerminal {
		c.bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetDescription(track.Name),
			progressbar.OptionSetWriter(out),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(constants.ProgressRefreshRate),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(out, "\n")
			}),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return c
}

// Render implements view.Sink.
func (c *CountBar) Render(snap view.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		if state, ok := snap.Bars[string(c.track.Bar)]; ok {
			if total := int64(state.Max); total > 0 && total != c.lastMax {
				c.bar.ChangeMax64(total)
				c.lastMax = total
			}
			if state.Value != nil {
				_ = c.bar.Set64(int64(*state.Value))
			}
		}
		desc := c.track.Name
		if path := snap.Labels[string(c.detail)]; path != "" {
			desc = fmt.Sprintf("%s %s", c.track.Name, truncatePath(path, 3))
		}
		c.bar.Describe(desc)
		if hasEcho(c.echo, snap) {
			// keep the echoed line off the bar's line
			_ = c.bar.Clear()
		}
	}
	c.echo.render(snap)
}

// IsTerminal reports whether the bar is drawn.
func (c *CountBar) IsTerminal() bool {
	return c.isTerminal
}

// Close finishes the bar.
func (c *CountBar) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil && !c.bar.IsFinished() {
		_ = c.bar.Finish()
	}
}

func hasEcho(e *labelEcho, snap view.Snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range e.ids {
		if text := snap.Labels[string(id)]; text != "" && text != e.last[id] {
			return true
		}
	}
	return false
}
