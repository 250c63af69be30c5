package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/view"
)

// Track ties a page bar and its text label to one terminal bar.
type Track struct {
	Name string
	Bar  view.ElementID
	Text view.ElementID
}

// MultiBar renders page snapshots as one mpb bar per track, printing the
// watched labels above the bars whenever they change.
type MultiBar struct {
	progress   *mpb.Progress
	out        io.Writer
	isTerminal bool
	bars       []*trackBar
	echo       *labelEcho
	closeOnce  sync.Once
}

type trackBar struct {
	track  Track
	bar    *mpb.Bar
	text   atomic.Value // string
	failed atomic.Bool
}

// NewMultiBar creates bars for tracks on out. On a non-terminal output no
// bars are drawn and only the watched labels are printed.
func NewMultiBar(out *os.File, tracks []Track, watched []view.ElementID) *MultiBar {
	isTerminal := term.IsTerminal(int(out.Fd()))

	var p *mpb.Progress
	if isTerminal {
		// Enable ANSI escape sequences on Windows for proper progress bar rendering
		enableANSIOnWindows(out)

		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(64),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	m := &MultiBar{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
	}
	if isTerminal {
		m.echo = newLabelEcho(p, watched)
	} else {
		m.echo = newLabelEcho(out, watched)
	}

	for _, t := range tracks {
		tb := &trackBar{track: t}
		tb.text.Store("")
		if isTerminal {
			tb.bar = p.New(0,
				mpb.BarStyle().
					Lbound("[").
					Filler("█").
					Tip("█").
					Padding("░").
					Rbound("]"),
				mpb.PrependDecorators(
					decor.Name(t.Name, decor.WCSyncSpaceR),
				),
				mpb.AppendDecorators(
					decor.Any(func(decor.Statistics) string {
						text := tb.text.Load().(string)
						if tb.failed.Load() {
							return text + " (failed)"
						}
						return text
					}, decor.WCSyncSpace),
				),
			)
		}
		m.bars = append(m.bars, tb)
	}
	return m
}

// Render implements view.Sink.
func (m *MultiBar) Render(snap view.Snapshot) {
	for _, tb := range m.bars {
		state, ok := snap.Bars[string(tb.track.Bar)]
		if !ok {
			continue
		}
		tb.text.Store(snap.Labels[string(tb.track.Text)])
		tb.failed.Store(state.Error)
		if tb.bar == nil {
			continue
		}
		tb.bar.SetTotal(int64(state.Max), false)
		if state.Value != nil {
			tb.bar.SetCurrent(int64(*state.Value))
		}
	}
	m.echo.render(snap)
}

// Writer returns a writer that prints above the bars.
func (m *MultiBar) Writer() io.Writer {
	if m.isTerminal {
		return m.progress
	}
	return m.out
}

// IsTerminal reports whether bars are drawn.
func (m *MultiBar) IsTerminal() bool {
	return m.isTerminal
}

// Close completes every bar and waits for the final frame.
func (m *MultiBar) Close() {
	m.closeOnce.Do(func() {
		for _, tb := range m.bars {
			if tb.bar != nil {
				tb.bar.SetTotal(-1, true)
			}
		}
		m.progress.Wait()
	})
}

// labelEcho prints labels when their text changes.
type labelEcho struct {
	mu   sync.Mutex
	out  io.Writer
	ids  []view.ElementID
	last map[view.ElementID]string
}

func newLabelEcho(out io.Writer, ids []view.ElementID) *labelEcho {
	return &labelEcho{out: out, ids: ids, last: make(map[view.ElementID]string)}
}

func (e *labelEcho) render(snap view.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range e.ids {
		text := snap.Labels[string(id)]
		if text == e.last[id] {
			continue
		}
		e.last[id] = text
		if text != "" {
			fmt.Fprintln(e.out, text)
		}
	}
}

// truncatePath shortens a path to its last maxComponents components.
// Example: truncatePath("/a/b/c/d/file.txt", 3) → "…/c/d/file.txt"
func truncatePath(path string, maxComponents int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= maxComponents {
		return path
	}
	relevant := parts[len(parts)-maxComponents:]
	return "…/" + strings.Join(relevant, "/")
}
