// Package app is the root controller. It owns the record store, the
// attendance ledger and the preferences, and every change goes through it.
package app

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"edureg/internal/attendance"
	"edureg/internal/extract"
	"edureg/internal/form"
	"edureg/internal/logsvc"
	"edureg/internal/metrics"
	"edureg/internal/report"
	"edureg/internal/store"
	"edureg/internal/student"
)

// ErrNoPendingDeletion is returned for an unknown or already used token.
var ErrNoPendingDeletion = errors.New("no pending deletion for that token")

// Options tunes an App.
type Options struct {
	SyncDelay time.Duration
	// DeletionTTL bounds how long a requested deletion can be confirmed.
	DeletionTTL time.Duration
	Now         func() time.Time
}

// DefaultDeletionTTL is used when Options.DeletionTTL is zero.
const DefaultDeletionTTL = 10 * time.Minute

// App holds all application state.
type App struct {
	kv        store.KV
	log       logsvc.Logger
	metrics   *metrics.Metrics
	extractor extract.Extractor
	now       func() time.Time

	students *student.Repository
	ledger   *attendance.Ledger
	sync     *SyncTracker

	mu      sync.Mutex
	prefs   Preferences
	pending map[string]pendingDeletion // by token
	ttl     time.Duration
}

type pendingDeletion struct {
	id      string
	expires time.Time
}

// New loads the roster, ledger and preferences from kv.
func New(ctx context.Context, kv store.KV, ext extract.Extractor, m *metrics.Metrics, logger logsvc.Logger, opts Options) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DeletionTTL <= 0 {
		opts.DeletionTTL = DefaultDeletionTTL
	}
	if ext == nil {
		ext = extract.Disabled{}
	}
	if m == nil {
		m = metrics.New(false)
	}

	tracker := NewSyncTracker(opts.SyncDelay)
	kv = store.Observed(kv, tracker, m)

	students, err := student.Load(ctx, kv, logger)
	if err != nil {
		return nil, err
	}
	ledger, err := attendance.Load(ctx, kv, students, logger)
	if err != nil {
		return nil, err
	}
	prefs, err := loadPrefs(ctx, kv, logger)
	if err != nil {
		return nil, err
	}

	m.Students.Set(float64(students.Len()))
	return &App{
		kv:        kv,
		log:       logger,
		metrics:   m,
		extractor: ext,
		now:       opts.Now,
		students:  students,
		ledger:    ledger,
		sync:      tracker,
		prefs:     prefs,
		pending:   make(map[string]pendingDeletion),
		ttl:       opts.DeletionTTL,
	}, nil
}

// Close stops the sync timer and closes the store.
func (a *App) Close() error {
	a.sync.Stop()
	return a.kv.Close()
}

// Students returns records matching query, most recent first.
func (a *App) Students(query string) []student.Student {
	return report.Filter(a.students.List(), query)
}

// Student returns one record.
func (a *App) Student(id string) (student.Student, error) {
	return a.students.Get(id)
}

// NextStudentID is the id a new form starts with.
func (a *App) NextStudentID() string {
	return a.students.NextSequentialID()
}

// NewForm opens a create form.
func (a *App) NewForm() *form.Controller {
	return form.NewCreate(a.students.NextSequentialID(), a.now())
}

// EditForm opens an edit form for an existing record.
func (a *App) EditForm(id string) (*form.Controller, error) {
	s, err := a.students.Get(id)
	if err != nil {
		return nil, err
	}
	return form.NewEdit(s), nil
}

// Submit validates the form and creates or updates the record. A record
// whose write failed is still kept in memory and the error is returned.
func (a *App) Submit(ctx context.Context, c *form.Controller) (student.Student, error) {
	sub, err := c.Submit()
	if err != nil {
		return student.Student{}, err
	}

	var s student.Student
	op := "create"
	if sub.Mode == form.Edit {
		op = "update"
		s, err = a.students.Update(ctx, sub.Target, sub.Fields)
	} else {
		s, err = a.students.Create(ctx, sub.Fields)
	}
	a.metrics.Mutations.WithLabelValues(op, metrics.Outcome(err)).Inc()
	a.metrics.Students.Set(float64(a.students.Len()))
	if err != nil {
		return s, err
	}
	a.log.Info("student saved", map[string]interface{}{"op": op, "id": s.ID, "studentId": s.StudentID})
	return s, nil
}

// SmartFill runs an extraction for text and merges the result into c.
// On failure c is left unchanged and the call can be retried.
func (a *App) SmartFill(ctx context.Context, c *form.Controller, text string) error {
	ticket, err := c.BeginExtraction()
	if err != nil {
		return err
	}
	draft, err := a.extractor.Extract(ctx, text, a.now())
	err = c.FinishExtraction(ticket, draft, err)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, extract.ErrEmptyInput):
		outcome = "empty"
	case errors.Is(err, extract.ErrDisabled):
		outcome = "disabled"
	case errors.Is(err, form.ErrDiscarded):
		outcome = "discarded"
	default:
		outcome = "error"
		cause := err
		var xerr *extract.Error
		if errors.As(err, &xerr) && xerr.Cause != nil {
			cause = xerr.Cause
		}
		a.log.Warn("extraction failed", cause)
	}
	a.metrics.Extractions.WithLabelValues(outcome).Inc()
	return err
}

// Deletion is a delete waiting for confirmation.
type Deletion struct {
	Token     string          `json:"token"`
	Student   student.Student `json:"student"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// RequestDeletion starts the two-step delete of a record. The token is
// valid until ExpiresAt; expired requests are dropped.
func (a *App) RequestDeletion(id string) (Deletion, error) {
	s, err := a.students.Get(id)
	if err != nil {
		return Deletion{}, err
	}
	now := a.now()
	token := uuid.NewString()
	expires := now.Add(a.ttl)

	a.mu.Lock()
	for t, p := range a.pending {
		if !now.Before(p.expires) {
			delete(a.pending, t)
		}
	}
	a.pending[token] = pendingDeletion{id: id, expires: expires}
	a.mu.Unlock()
	return Deletion{Token: token, Student: s, ExpiresAt: expires}, nil
}

// takePending removes and returns a live pending deletion.
func (a *App) takePending(token string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[token]
	delete(a.pending, token)
	if !ok || !a.now().Before(p.expires) {
		return "", false
	}
	return p.id, true
}

// ConfirmDeletion removes the record irreversibly. Its ledger cells are
// left in place.
func (a *App) ConfirmDeletion(ctx context.Context, token string) (student.Student, error) {
	id, ok := a.takePending(token)
	if !ok {
		return student.Student{}, ErrNoPendingDeletion
	}

	s, err := a.students.Get(id)
	if err != nil {
		return student.Student{}, err
	}
	err = a.students.Delete(ctx, id)
	a.metrics.Mutations.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	a.metrics.Students.Set(float64(a.students.Len()))
	if err != nil {
		return s, err
	}
	a.log.Info("student deleted", map[string]interface{}{"id": s.ID, "studentId": s.StudentID})
	return s, nil
}

// AbortDeletion drops a pending deletion.
func (a *App) AbortDeletion(token string) error {
	if _, ok := a.takePending(token); !ok {
		return ErrNoPendingDeletion
	}
	return nil
}

// Cycle advances one attendance cell.
func (a *App) Cycle(ctx context.Context, id string, day student.Weekday) (attendance.Status, error) {
	st, err := a.ledger.Cycle(ctx, id, day)
	switch {
	case errors.Is(err, attendance.ErrNotScheduled), errors.Is(err, student.ErrNotFound):
	default:
		a.metrics.LedgerChanges.WithLabelValues("cycle", string(day)).Inc()
	}
	return st, err
}

// MarkAllPresent marks every student enrolled on day present.
func (a *App) MarkAllPresent(ctx context.Context, day student.Weekday) (int, error) {
	n, err := a.ledger.MarkAllPresent(ctx, day)
	a.metrics.LedgerChanges.WithLabelValues("mark_all", string(day)).Add(float64(n))
	return n, err
}

// StatusOf returns one attendance cell.
func (a *App) StatusOf(id string, day student.Weekday) attendance.Status {
	return a.ledger.StatusOf(id, day)
}

// Report builds the attendance view for query.
func (a *App) Report(query string) report.View {
	return report.Build(a.students.List(), a.ledger.Snapshot(), query)
}

// Format is an export file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// ErrUnknownFormat is returned by Export.
var ErrUnknownFormat = errors.New("unknown export format")

// Export writes every record with its week of attendance.
func (a *App) Export(w io.Writer, f Format) error {
	students, sheet := a.students.List(), a.ledger.Snapshot()
	switch f {
	case CSV:
		return report.WriteCSV(w, students, sheet)
	case XLSX:
		return report.WriteXLSX(w, students, sheet)
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", f)
}

// ExportFilename names an export file with today's date.
func (a *App) ExportFilename(kind report.Kind, f Format) string {
	return report.Filename(kind, a.now(), string(f))
}

// Preferences returns the display settings.
func (a *App) Preferences() Preferences {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.prefs
}

// UpdatePreferences stores new display settings.
func (a *App) UpdatePreferences(ctx context.Context, p Preferences) (Preferences, error) {
	t, err := ParseTheme(string(p.Theme))
	if err != nil {
		return Preferences{}, err
	}
	p.Theme = t

	a.mu.Lock()
	defer a.mu.Unlock()
	a.prefs = p
	return p, savePrefs(ctx, a.kv, p)
}

// SyncState returns the storage indicator.
func (a *App) SyncState() SyncState {
	return a.sync.State()
}

// CheckStorage pings the store and updates the indicator.
func (a *App) CheckStorage(ctx context.Context) error {
	err := a.kv.Ping(ctx)
	a.sync.ObservePing(err)
	return err
}

// ExtractorHealth probes the extraction backend.
func (a *App) ExtractorHealth(ctx context.Context) error {
	return a.extractor.Health(ctx)
}
