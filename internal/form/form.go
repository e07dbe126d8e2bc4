// Package form holds the state of the student registration form.
package form

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"edureg/internal/student"
	"edureg/internal/validate"
)

// Mode says whether submitting creates a new record or updates one.
type Mode int

const (
	Create Mode = iota
	Edit
)

func (m Mode) String() string {
	if m == Edit {
		return "edit"
	}
	return "create"
}

var (
	// ErrBusy is returned while an extraction is in flight.
	ErrBusy = errors.New("form is busy")
	// ErrClosed is returned once the form has been closed.
	ErrClosed = errors.New("form is closed")
	// ErrDiscarded reports an extraction result that arrived too late.
	ErrDiscarded = errors.New("extraction result discarded")
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Controller is one open form. It is safe to use from several goroutines.
type Controller struct {
	mu     sync.Mutex
	mode   Mode
	target string
	fields student.Fields
	autoID bool
	busy   bool
	ticket uint64
	closed bool
}

// NewCreate opens an empty form with nextID pre-filled and auto-assigned.
func NewCreate(nextID string, now time.Time) *Controller {
	return &Controller{
		mode: Create,
		fields: student.Fields{
			StudentID: nextID,
			Sex:       student.Male,
			Date:      now.Format(dateLayout),
			Time:      now.Format(timeLayout),
			Schedule:  student.DefaultSchedule(),
		},
		autoID: true,
	}
}

// NewEdit opens a form pre-filled from s.
func NewEdit(s student.Student) *Controller {
	return &Controller{mode: Edit, target: s.ID, fields: s.Fields()}
}

// State is a read-only copy of the form.
type State struct {
	Mode   string         `json:"mode"`
	Target string         `json:"target,omitempty"`
	Fields student.Fields `json:"fields"`
	AutoID bool           `json:"autoId"`
	Busy   bool           `json:"busy"`
}

// State returns the current values.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Mode: c.mode.String(), Target: c.target, Fields: c.fields, AutoID: c.autoID, Busy: c.busy}
}

// Fields returns the current values.
func (c *Controller) Fields() student.Fields {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields
}

// SyncAutoID replaces the studentId with nextID while it is still
// auto-assigned. It reports whether the value changed.
func (c *Controller) SyncAutoID(nextID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.autoID || c.fields.StudentID == nextID {
		return false
	}
	c.fields.StudentID = nextID
	return true
}

// SetStudentID is a manual edit, so the id stops following the roster.
func (c *Controller) SetStudentID(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields.StudentID = v
	c.autoID = false
}

func (c *Controller) SetName(v string)     { c.edit(func(f *student.Fields) { f.Name = v }) }
func (c *Controller) SetSex(v student.Sex) { c.edit(func(f *student.Fields) { f.Sex = v }) }
func (c *Controller) SetCourse(v string)   { c.edit(func(f *student.Fields) { f.Course = v }) }
func (c *Controller) SetDate(v string)     { c.edit(func(f *student.Fields) { f.Date = v }) }
func (c *Controller) SetTime(v string)     { c.edit(func(f *student.Fields) { f.Time = v }) }

// ToggleDay flips one schedule flag.
func (c *Controller) ToggleDay(d student.Weekday) {
	c.edit(func(f *student.Fields) { f.Schedule.Toggle(d) })
}

func (c *Controller) edit(fn func(*student.Fields)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.fields)
}

// Apply merges a draft as if the user had typed it.
func (c *Controller) Apply(d student.Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(d)
}

func (c *Controller) apply(d student.Draft) {
	d.ApplyTo(&c.fields)
	if d.StudentID != nil {
		c.autoID = false
	}
}

// Ticket identifies one extraction started on a form.
type Ticket uint64

// BeginExtraction marks the form busy. Only one extraction may run at a time.
func (c *Controller) BeginExtraction() (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if c.busy {
		return 0, ErrBusy
	}
	c.busy = true
	c.ticket++
	return Ticket(c.ticket), nil
}

// FinishExtraction clears the busy flag and merges d when err is nil.
// On error nothing is merged and err is returned. A result for a closed
// form or a stale ticket is dropped with ErrDiscarded.
func (c *Controller) FinishExtraction(t Ticket, d *student.Draft, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || uint64(t) != c.ticket || !c.busy {
		return ErrDiscarded
	}
	c.busy = false
	if err != nil {
		return err
	}
	if d != nil {
		c.apply(*d)
	}
	return nil
}

// Close abandons the form; pending extraction results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.busy = false
}

// Submission is what a successful submit hands to the record store.
type Submission struct {
	Mode   Mode
	Target string
	Fields student.Fields
}

// Submit validates the form. Required fields that are blank block the
// submission with a *validate.ValidationError.
func (c *Controller) Submit() (Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Submission{}, ErrClosed
	}
	if c.busy {
		return Submission{}, ErrBusy
	}
	if err := validate.Struct(c.fields); err != nil {
		return Submission{}, err
	}
	return Submission{Mode: c.mode, Target: c.target, Fields: c.fields}, nil
}
