package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edureg/internal/attendance"
	"edureg/internal/extract"
	"edureg/internal/form"
	"edureg/internal/logsvc"
	"edureg/internal/metrics"
	"edureg/internal/report"
	"edureg/internal/store"
	"edureg/internal/student"
	"edureg/internal/validate"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type stubExtractor struct {
	draft *student.Draft
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, text string, _ time.Time) (*student.Draft, error) {
	s.calls++
	if strings.TrimSpace(text) == "" {
		return nil, extract.ErrEmptyInput
	}
	return s.draft, s.err
}

func (s *stubExtractor) Health(context.Context) error { return nil }

func newApp(t *testing.T, kv store.KV, ext extract.Extractor) (*App, *metrics.Metrics) {
	t.Helper()
	m := metrics.New(false)
	a, err := New(context.Background(), kv, ext, m, logsvc.Discard(), Options{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, m
}

func register(t *testing.T, a *App, name, course string, days ...student.Weekday) student.Student {
	t.Helper()
	c := a.NewForm()
	c.SetName(name)
	c.SetCourse(course)
	if len(days) > 0 {
		for _, d := range student.Weekdays {
			if c.Fields().Schedule.Enrolled(d) {
				c.ToggleDay(d)
			}
		}
		for _, d := range days {
			c.ToggleDay(d)
		}
	}
	s, err := a.Submit(context.Background(), c)
	require.NoError(t, err)
	return s
}

func TestRegisterAndList(t *testing.T) {
	a, m := newApp(t, store.NewMemory(), nil)
	assert.Equal(t, "0001", a.NextStudentID())

	ada := register(t, a, "Ada", "Mathematics")
	grace := register(t, a, "Grace", "CS")

	assert.Equal(t, "0001", ada.StudentID)
	assert.Equal(t, "0002", grace.StudentID)
	assert.Equal(t, "2024-03-01", ada.Date)
	assert.Equal(t, "09:30", ada.Time)

	list := a.Students("")
	require.Len(t, list, 2)
	assert.Equal(t, grace.ID, list[0].ID)
	assert.Len(t, a.Students("math"), 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Students))
}

func TestSubmitBlockedByValidation(t *testing.T) {
	a, _ := newApp(t, store.NewMemory(), nil)
	c := a.NewForm()
	c.SetName("Ada")

	_, err := a.Submit(context.Background(), c)
	fields, ok := validate.Fields(err)
	require.True(t, ok)
	assert.Equal(t, "course", fields[0].Field)
	assert.Empty(t, a.Students(""))
}

func TestEditKeepsIdentity(t *testing.T) {
	a, _ := newApp(t, store.NewMemory(), nil)
	s := register(t, a, "Ada", "Math")

	c, err := a.EditForm(s.ID)
	require.NoError(t, err)
	c.SetCourse("Physics")
	got, err := a.Submit(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, s.CreatedAt, got.CreatedAt)
	assert.Equal(t, "Physics", got.Course)

	_, err = a.EditForm("missing")
	assert.ErrorIs(t, err, student.ErrNotFound)
}

func TestTwoStepDeletion(t *testing.T) {
	ctx := context.Background()
	a, _ := newApp(t, store.NewMemory(), nil)
	s := register(t, a, "Ada", "Math", student.Monday)
	_, err := a.Cycle(ctx, s.ID, student.Monday)
	require.NoError(t, err)

	d, err := a.RequestDeletion(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, d.Student.ID)
	require.NoError(t, a.AbortDeletion(d.Token))
	assert.ErrorIs(t, a.AbortDeletion(d.Token), ErrNoPendingDeletion)
	_, err = a.ConfirmDeletion(ctx, d.Token)
	assert.ErrorIs(t, err, ErrNoPendingDeletion)
	assert.Len(t, a.Students(""), 1)

	d, err = a.RequestDeletion(s.ID)
	require.NoError(t, err)
	gone, err := a.ConfirmDeletion(ctx, d.Token)
	require.NoError(t, err)
	assert.Equal(t, "Ada", gone.Name)
	assert.Empty(t, a.Students(""))

	v := a.Report("")
	assert.Empty(t, v.Weekly)
	assert.Empty(t, v.Weekend)
	// cells of deleted students stay in the ledger
	assert.Equal(t, attendance.Present, a.StatusOf(s.ID, student.Monday))

	_, err = a.RequestDeletion(s.ID)
	assert.ErrorIs(t, err, student.ErrNotFound)
}

func TestPendingDeletionsExpire(t *testing.T) {
	ctx := context.Background()
	now := fixedNow
	a, err := New(ctx, store.NewMemory(), nil, nil, logsvc.Discard(), Options{
		DeletionTTL: time.Minute,
		Now:         func() time.Time { return now },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	s := register(t, a, "Ada", "Math")

	d, err := a.RequestDeletion(s.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(time.Minute), d.ExpiresAt)

	now = now.Add(time.Minute)
	_, err = a.ConfirmDeletion(ctx, d.Token)
	assert.ErrorIs(t, err, ErrNoPendingDeletion)
	assert.Len(t, a.Students(""), 1)

	// abandoned requests are pruned
	for i := 0; i < 5; i++ {
		_, err = a.RequestDeletion(s.ID)
		require.NoError(t, err)
		now = now.Add(2 * time.Minute)
	}
	last, err := a.RequestDeletion(s.ID)
	require.NoError(t, err)
	a.mu.Lock()
	assert.Len(t, a.pending, 1)
	a.mu.Unlock()

	now = now.Add(59 * time.Second)
	_, err = a.ConfirmDeletion(ctx, last.Token)
	require.NoError(t, err)
	assert.Empty(t, a.Students(""))
}

func TestAttendanceAndReport(t *testing.T) {
	ctx := context.Background()
	a, m := newApp(t, store.NewMemory(), nil)
	weekday := register(t, a, "Ada", "Math")
	weekend := register(t, a, "Grace", "CS", student.Saturday)

	_, err := a.Cycle(ctx, weekend.ID, student.Monday)
	assert.ErrorIs(t, err, attendance.ErrNotScheduled)

	n, err := a.MarkAllPresent(ctx, student.Monday)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	st, err := a.Cycle(ctx, weekday.ID, student.Monday)
	require.NoError(t, err)
	assert.Equal(t, attendance.Absent, st)

	v := a.Report("")
	assert.Len(t, v.Weekly, 1)
	assert.Len(t, v.Weekend, 1)
	assert.Equal(t, report.Tally{Absent: 1}, v.Daily[0].Tally)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerChanges.WithLabelValues("mark_all", "monday")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerChanges.WithLabelValues("cycle", "monday")))
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	a, _ := newApp(t, store.NewMemory(), nil)
	s := register(t, a, `Ada "A"`, "Math")
	_, _ = a.Cycle(ctx, s.ID, student.Monday)
	_, _ = a.Cycle(ctx, s.ID, student.Tuesday)
	_, _ = a.Cycle(ctx, s.ID, student.Tuesday)

	var buf bytes.Buffer
	require.NoError(t, a.Export(&buf, CSV))
	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"Ada ""A""",0001,"Math",Present,Absent,Pending,Pending,Pending,Not Enrolled,Not Enrolled`, lines[1])

	buf.Reset()
	require.NoError(t, a.Export(&buf, XLSX))
	assert.NotZero(t, buf.Len())

	assert.ErrorIs(t, a.Export(&buf, "pdf"), ErrUnknownFormat)
	assert.Equal(t, "full_attendance_report_2024-03-01.csv", a.ExportFilename(report.FullAudit, CSV))
}

func TestSmartFill(t *testing.T) {
	ctx := context.Background()
	name, id := "Grace Hopper", "0100"
	ext := &stubExtractor{draft: &student.Draft{Name: &name, StudentID: &id}}
	a, m := newApp(t, store.NewMemory(), ext)

	c := a.NewForm()
	c.SetCourse("CS")
	require.NoError(t, a.SmartFill(ctx, c, "Grace Hopper, 0100"))
	f := c.Fields()
	assert.Equal(t, "Grace Hopper", f.Name)
	assert.Equal(t, "0100", f.StudentID)
	assert.Equal(t, "CS", f.Course)
	assert.False(t, c.State().AutoID)

	ext.err = &extract.Error{Cause: errors.New("timeout")}
	c2 := a.NewForm()
	err := a.SmartFill(ctx, c2, "text")
	assert.ErrorIs(t, err, extract.ErrFailed)
	assert.Empty(t, c2.Fields().Name)

	assert.ErrorIs(t, a.SmartFill(ctx, c2, "  "), extract.ErrEmptyInput)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("empty")))
}

func TestSmartFillDisabled(t *testing.T) {
	a, _ := newApp(t, store.NewMemory(), nil)
	err := a.SmartFill(context.Background(), a.NewForm(), "text")
	assert.ErrorIs(t, err, extract.ErrDisabled)
	assert.ErrorIs(t, a.ExtractorHealth(context.Background()), extract.ErrDisabled)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	a, _ := newApp(t, kv, nil)
	assert.Equal(t, Preferences{Theme: Light}, a.Preferences())

	p, err := a.UpdatePreferences(ctx, Preferences{Theme: "DARK", ShowGroupQR: true})
	require.NoError(t, err)
	assert.Equal(t, Dark, p.Theme)

	raw, _ := kv.Get(ctx, ThemeKey)
	assert.Equal(t, "dark", raw)
	raw, _ = kv.Get(ctx, ShowQRKey)
	assert.Equal(t, "true", raw)

	_, err = a.UpdatePreferences(ctx, Preferences{Theme: "neon"})
	assert.ErrorIs(t, err, ErrInvalidTheme)

	again, _ := newApp(t, kv, nil)
	assert.Equal(t, Preferences{Theme: Dark, ShowGroupQR: true}, again.Preferences())
}

type flakyKV struct {
	*store.Memory
	fail bool
}

func (f *flakyKV) Set(ctx context.Context, key, value string) error {
	if f.fail {
		return errors.New("storage unavailable")
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *flakyKV) Ping(context.Context) error {
	if f.fail {
		return errors.New("storage unavailable")
	}
	return nil
}

func TestSyncStateFollowsWrites(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{Memory: store.NewMemory()}
	a, err := New(ctx, kv, nil, nil, logsvc.Discard(), Options{SyncDelay: 20 * time.Millisecond})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, Synced, a.SyncState())
	register(t, a, "Ada", "Math")
	assert.Equal(t, Syncing, a.SyncState())
	assert.Eventually(t, func() bool { return a.SyncState() == Synced }, time.Second, 5*time.Millisecond)

	kv.fail = true
	c := a.NewForm()
	c.SetName("Grace")
	c.SetCourse("CS")
	_, err = a.Submit(ctx, c)
	require.Error(t, err)
	assert.Equal(t, Offline, a.SyncState())
	// kept locally
	assert.Len(t, a.Students(""), 2)

	assert.Error(t, a.CheckStorage(ctx))
	kv.fail = false
	assert.NoError(t, a.CheckStorage(ctx))
	assert.Equal(t, Synced, a.SyncState())
}

func TestFormIsUsableAfterSubmit(t *testing.T) {
	a, _ := newApp(t, store.NewMemory(), nil)
	c := a.NewForm()
	register(t, a, "Ada", "Math")
	assert.True(t, c.SyncAutoID(a.NextStudentID()))
	assert.Equal(t, "0002", c.Fields().StudentID)
	assert.Equal(t, form.Create, mustSubmitMode(t, c))
}

func mustSubmitMode(t *testing.T, c *form.Controller) form.Mode {
	t.Helper()
	c.SetName("X")
	c.SetCourse("Y")
	sub, err := c.Submit()
	require.NoError(t, err)
	return sub.Mode
}
