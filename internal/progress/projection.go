// Package progress turns worker progress payloads into bar and text state,
// and renders that state to a terminal.
package progress

import (
	"strconv"

	"github.com/packwisely/patchdesk/internal/util/size"
	"github.com/packwisely/patchdesk/internal/view"
)

// State is the last reported progress of one channel.
type State struct {
	Value       uint64
	Bound       uint64
	Determinate bool
}

// Payload is the wire form of a byte or unit counter.
type Payload struct {
	Value uint64 `json:"value"`
	Bound uint64 `json:"bound"`
	// Determinate defaults to true when the worker omits it.
	Determinate *bool `json:"determinate,omitempty"`
}

// State converts the payload, applying the determinate default.
func (p Payload) State() State {
	determinate := true
	if p.Determinate != nil {
		determinate = *p.Determinate
	}
	return State{Value: p.Value, Bound: p.Bound, Determinate: determinate}
}

// FilePayload is the create-patch-progress event.
type FilePayload struct {
	Done  uint64 `json:"done_files"`
	Total uint64 `json:"total_files"`
	Path  string `json:"path"`
}

// State converts the file counters. File counts are always determinate.
func (p FilePayload) State() State {
	return State{Value: p.Done, Bound: p.Total, Determinate: true}
}

// InstallPayload is the install-progress event.
type InstallPayload struct {
	Net     Payload `json:"net"`
	Disk    Payload `json:"disk"`
	Message string  `json:"message"`
}

// Counter renders one counter value for a text summary.
type Counter func(n uint64) string

// Count renders plain unit counts.
func Count(n uint64) string {
	return strconv.FormatUint(n, 10)
}

// Bytes renders byte counts with f.
func Bytes(f size.Format) Counter {
	return f.String
}

// Summary is the text shown next to a bar: "12 / 40" when determinate,
// the value alone otherwise.
func Summary(s State, c Counter) string {
	if !s.Determinate {
		return c(s.Value)
	}
	return c(s.Value) + " / " + c(s.Bound)
}

// Projection owns one bar and its text summary. Every Apply overwrites the
// previous state; values are not required to grow.
type Projection struct {
	bar     *view.Bar
	text    *view.Label
	counter Counter
	state   State
}

// NewProjection resolves the bar and its text label on page.
func NewProjection(page *view.Page, barID, textID view.ElementID, counter Counter) (*Projection, error) {
	bar, err := page.Bar(barID)
	if err != nil {
		return nil, err
	}
	text, err := page.Label(textID)
	if err != nil {
		return nil, err
	}
	if counter == nil {
		counter = Count
	}
	return &Projection{bar: bar, text: text, counter: counter}, nil
}

// Apply projects s onto the bar. The bound is always taken from s; an
// indeterminate state removes the bar value instead of showing a stale one.
func (p *Projection) Apply(s State) {
	p.state = s
	p.bar.SetMax(s.Bound)
	if s.Determinate {
		p.bar.SetValue(s.Value)
	} else {
		p.bar.ClearValue()
	}
	p.text.SetText(Summary(s, p.counter))
}

// State returns the last applied state.
func (p *Projection) State() State { return p.state }

// Reset zeroes the bar, clears its error indication and its text.
func (p *Projection) Reset() {
	p.state = State{Bound: p.state.Bound, Determinate: true}
	p.bar.Reset()
	p.text.SetText("")
}

// Fail marks the bar with the error indication.
func (p *Projection) Fail() {
	p.bar.SetFailed(true)
}

// InstallProjection projects install-progress events: network and disk
// counters plus the free-form detail line.
type InstallProjection struct {
	Net    *Projection
	Disk   *Projection
	detail *view.Label
}

// NewInstallProjection binds the install bars of page, rendering bytes with f.
func NewInstallProjection(page *view.Page, f size.Format) (*InstallProjection, error) {
	net, err := NewProjection(page, view.BarInstallNet, view.LabelInstallNet, Bytes(f))
	if err != nil {
		return nil, err
	}
	disk, err := NewProjection(page, view.BarInstallDisk, view.LabelInstallDisk, Bytes(f))
	if err != nil {
		return nil, err
	}
	detail, err := page.Label(view.LabelInstallDetail)
	if err != nil {
		return nil, err
	}
	return &InstallProjection{Net: net, Disk: disk, detail: detail}, nil
}

// Apply projects one install-progress event.
func (p *InstallProjection) Apply(ev InstallPayload) {
	p.ApplyCounters(ev)
	p.detail.SetText(ev.Message)
}

// ApplyCounters projects the bars of ev and leaves the detail line alone.
// Used once the request has settled and the detail line was cleared.
func (p *InstallProjection) ApplyCounters(ev InstallPayload) {
	p.Net.Apply(ev.Net.State())
	p.Disk.Apply(ev.Disk.State())
}

// Indicators returns the bars reset and failed around an install request.
func (p *InstallProjection) Indicators() []*Projection {
	return []*Projection{p.Net, p.Disk}
}

// FileProjection projects create-patch-progress events: the file counter
// and the path currently being processed.
type FileProjection struct {
	Files *Projection
	path  *view.Label
}

// NewFileProjection binds the patch creation bar of page.
func NewFileProjection(page *view.Page) (*FileProjection, error) {
	files, err := NewProjection(page, view.BarCreatePatch, view.LabelCreatePatchCount, Count)
	if err != nil {
		return nil, err
	}
	path, err := page.Label(view.LabelCreatePatchPath)
	if err != nil {
		return nil, err
	}
	return &FileProjection{Files: files, path: path}, nil
}

// Apply projects one create-patch-progress event.
func (p *FileProjection) Apply(ev FilePayload) {
	p.ApplyCounters(ev)
	p.path.SetText(ev.Path)
}

// ApplyCounters projects the file count of ev and leaves the path line alone.
func (p *FileProjection) ApplyCounters(ev FilePayload) {
	p.Files.Apply(ev.State())
}

// Indicators returns the bars reset and failed around a create-patch request.
func (p *FileProjection) Indicators() []*Projection {
	return []*Projection{p.Files}
}
