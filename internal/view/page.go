package view

// Sink receives a snapshot whenever a flushed page has changed.
type Sink interface {
	Render(snap Snapshot)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(snap Snapshot)

func (f SinkFunc) Render(snap Snapshot) { f(snap) }

// Page is the element registry built from a Layout.
type Page struct {
	forms    map[ElementID]*Form
	controls map[ElementID]*Control
	fields   map[ElementID]*Field
	bars     map[ElementID]*Bar
	labels   map[ElementID]*Label

	interactive   bool
	onInteractive []func()

	dirty bool
	sink  Sink
}

// NewPage builds a page from layout. Elements start with the state the
// layout declares.
func NewPage(layout Layout) *Page {
	p := &Page{
		forms:    make(map[ElementID]*Form),
		controls: make(map[ElementID]*Control),
		fields:   make(map[ElementID]*Field),
		bars:     make(map[ElementID]*Bar),
		labels:   make(map[ElementID]*Label),
	}

	for _, fs := range layout.Forms {
		form := &Form{id: fs.ID, submitterID: fs.Submitter}
		for _, spec := range fs.Fields {
			field := &Field{id: spec.ID, required: spec.Required, page: p}
			form.fields = append(form.fields, field)
			p.fields[spec.ID] = field
		}
		for _, spec := range fs.Controls {
			c := &Control{id: spec.ID, disabled: spec.Disabled, initiallyDisabled: spec.Disabled, page: p}
			form.controls = append(form.controls, c)
			p.controls[spec.ID] = c
			if spec.ID == fs.Submitter {
				form.submitter = c
			}
		}
		p.forms[fs.ID] = form
	}
	for _, id := range layout.Bars {
		p.bars[id] = &Bar{id: id, page: p}
	}
	for _, id := range layout.Labels {
		p.labels[id] = &Label{id: id, page: p}
	}

	p.dirty = true
	return p
}

// Form looks up a form by id.
func (p *Page) Form(id ElementID) (*Form, error) {
	if f, ok := p.forms[id]; ok {
		return f, nil
	}
	return nil, &LookupError{Kind: "form", ID: id}
}

// Control looks up a control by id.
func (p *Page) Control(id ElementID) (*Control, error) {
	if c, ok := p.controls[id]; ok {
		return c, nil
	}
	return nil, &LookupError{Kind: "control", ID: id}
}

// Field looks up a form field by id.
func (p *Page) Field(id ElementID) (*Field, error) {
	if f, ok := p.fields[id]; ok {
		return f, nil
	}
	return nil, &LookupError{Kind: "field", ID: id}
}

// Bar looks up a progress bar by id.
func (p *Page) Bar(id ElementID) (*Bar, error) {
	if b, ok := p.bars[id]; ok {
		return b, nil
	}
	return nil, &LookupError{Kind: "bar", ID: id}
}

// Label looks up a text label by id.
func (p *Page) Label(id ElementID) (*Label, error) {
	if l, ok := p.labels[id]; ok {
		return l, nil
	}
	return nil, &LookupError{Kind: "label", ID: id}
}

// Interactive reports whether the page has finished loading and accepts input.
func (p *Page) Interactive() bool { return p.interactive }

// MarkInteractive flags the page interactive and runs the callbacks queued
// by WhenInteractive, in registration order. Later calls are no-ops.
func (p *Page) MarkInteractive() {
	if p.interactive {
		return
	}
	p.interactive = true
	p.markDirty()

	pending := p.onInteractive
	p.onInteractive = nil
	for _, fn := range pending {
		fn()
	}
}

// WhenInteractive runs fn now if the page is interactive, otherwise once it
// becomes interactive.
func (p *Page) WhenInteractive(fn func()) {
	if p.interactive {
		fn()
		return
	}
	p.onInteractive = append(p.onInteractive, fn)
}

// SetSink sets the destination for Flush. A nil sink disables rendering.
func (p *Page) SetSink(s Sink) {
	p.sink = s
	p.dirty = true
}

// Dirty reports whether the page changed since the last flush.
func (p *Page) Dirty() bool { return p.dirty }

// Flush renders the page to the sink if anything changed since the last
// flush. It is meant to run as the UI loop's after-task hook.
func (p *Page) Flush() {
	if !p.dirty || p.sink == nil {
		return
	}
	p.dirty = false
	p.sink.Render(p.Snapshot())
}

func (p *Page) markDirty() { p.dirty = true }
