package view

// Snapshot is a copy of the page state safe to hand to other goroutines and
// to encode as JSON for the webview.
type Snapshot struct {
	Interactive bool                    `json:"interactive"`
	Controls    map[string]ControlState `json:"controls"`
	Fields      map[string]string       `json:"fields"`
	Bars        map[string]BarState     `json:"bars"`
	Labels      map[string]string       `json:"labels"`
}

// ControlState is the snapshot of one control.
type ControlState struct {
	Disabled bool `json:"disabled"`
}

// BarState is the snapshot of one bar. Value is nil for an indeterminate bar.
type BarState struct {
	Value *uint64 `json:"value,omitempty"`
	Max   uint64  `json:"max"`
	Error bool    `json:"error"`
}

// Snapshot copies the current page state.
func (p *Page) Snapshot() Snapshot {
	snap := Snapshot{
		Interactive: p.interactive,
		Controls:    make(map[string]ControlState, len(p.controls)),
		Fields:      make(map[string]string, len(p.fields)),
		Bars:        make(map[string]BarState, len(p.bars)),
		Labels:      make(map[string]string, len(p.labels)),
	}

	for id, c := range p.controls {
		snap.Controls[string(id)] = ControlState{Disabled: c.disabled}
	}
	for id, f := range p.fields {
		snap.Fields[string(id)] = f.value
	}
	for id, b := range p.bars {
		state := BarState{Max: b.max, Error: b.failed}
		if b.hasValue {
			v := b.value
			state.Value = &v
		}
		snap.Bars[string(id)] = state
	}
	for id, l := range p.labels {
		snap.Labels[string(id)] = l.text
	}
	return snap
}
