// Package view holds the page state shared by every UI handler.
//
// A Page is owned by the UI loop: elements are read and written only from
// tasks running on the loop, so none of the types here lock. Every mutation
// marks the page dirty; Flush hands a Snapshot to the configured Sink.
package view

import "fmt"

// ElementID names one element on the page.
type ElementID string

// LookupError reports a required element missing from the page. Components
// that hit it at construction cannot function and abort initialization.
type LookupError struct {
	Kind string
	ID   ElementID
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("required %s %q not found on page", e.Kind, e.ID)
}

// Control is a clickable element such as a submit button.
type Control struct {
	id                ElementID
	disabled          bool
	initiallyDisabled bool
	page              *Page
}

func (c *Control) ID() ElementID { return c.id }

func (c *Control) Disabled() bool { return c.disabled }

// InitiallyDisabled reports whether the layout declared the control disabled.
func (c *Control) InitiallyDisabled() bool { return c.initiallyDisabled }

func (c *Control) SetDisabled(disabled bool) {
	if c.disabled == disabled {
		return
	}
	c.disabled = disabled
	c.page.markDirty()
}

// Field is a text input belonging to a form.
type Field struct {
	id       ElementID
	value    string
	required bool
	page     *Page
}

func (f *Field) ID() ElementID  { return f.id }
func (f *Field) Value() string  { return f.value }
func (f *Field) Required() bool { return f.required }

func (f *Field) SetValue(v string) {
	if f.value == v {
		return
	}
	f.value = v
	f.page.markDirty()
}

// Bar is a progress indicator. A bar without a value renders as
// indeterminate; its maximum is still tracked.
type Bar struct {
	id       ElementID
	value    uint64
	hasValue bool
	max      uint64
	failed   bool
	page     *Page
}

func (b *Bar) ID() ElementID { return b.id }

// Value returns the bar position and whether it has one.
func (b *Bar) Value() (uint64, bool) { return b.value, b.hasValue }

func (b *Bar) Max() uint64 { return b.max }

// Failed reports whether the bar carries the error indication.
func (b *Bar) Failed() bool { return b.failed }

func (b *Bar) SetMax(max uint64) {
	if b.max == max {
		return
	}
	b.max = max
	b.page.markDirty()
}

func (b *Bar) SetValue(v uint64) {
	if b.hasValue && b.value == v {
		return
	}
	b.value = v
	b.hasValue = true
	b.page.markDirty()
}

// ClearValue removes the bar position so it renders as indeterminate.
func (b *Bar) ClearValue() {
	if !b.hasValue {
		return
	}
	b.value = 0
	b.hasValue = false
	b.page.markDirty()
}

func (b *Bar) SetFailed(failed bool) {
	if b.failed == failed {
		return
	}
	b.failed = failed
	b.page.markDirty()
}

// Reset zeroes the position and clears the error indication.
func (b *Bar) Reset() {
	b.SetValue(0)
	b.SetFailed(false)
}

// Label is a line of status text.
type Label struct {
	id   ElementID
	text string
	page *Page
}

func (l *Label) ID() ElementID { return l.id }
func (l *Label) Text() string  { return l.text }

func (l *Label) SetText(text string) {
	if l.text == text {
		return
	}
	l.text = text
	l.page.markDirty()
}

// Form groups fields and controls submitted together.
type Form struct {
	id          ElementID
	fields      []*Field
	controls    []*Control
	submitter   *Control
	submitterID ElementID
}

func (f *Form) ID() ElementID        { return f.id }
func (f *Form) Fields() []*Field     { return f.fields }
func (f *Form) Controls() []*Control { return f.controls }

// Submitter returns the control that submits the form, or nil.
func (f *Form) Submitter() *Control { return f.submitter }

// SubmitterControl is Submitter for callers that require one. A layout that
// names no submitter, or one outside the form's controls, is a *LookupError.
func (f *Form) SubmitterControl() (*Control, error) {
	if f.submitter == nil {
		return nil, &LookupError{Kind: "control", ID: f.submitterID}
	}
	return f.submitter, nil
}

// Field returns the form field with the given id, or nil.
func (f *Form) Field(id ElementID) *Field {
	for _, field := range f.fields {
		if field.id == id {
			return field
		}
	}
	return nil
}

// Values returns the current field values keyed by field id.
func (f *Form) Values() map[ElementID]string {
	values := make(map[ElementID]string, len(f.fields))
	for _, field := range f.fields {
		values[field.id] = field.value
	}
	return values
}
