package attendance

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edureg/internal/logsvc"
	"edureg/internal/store"
	"edureg/internal/student"
)

type fixture struct {
	kv     *store.Memory
	roster *student.Repository
	ledger *Ledger
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	kv := store.NewMemory()
	roster, err := student.Load(ctx, kv, logsvc.Discard())
	require.NoError(t, err)
	ledger, err := Load(ctx, kv, roster, logsvc.Discard())
	require.NoError(t, err)
	return fixture{kv: kv, roster: roster, ledger: ledger}
}

func (f fixture) add(t *testing.T, name string, days ...student.Weekday) student.Student {
	t.Helper()
	var sched student.Schedule
	for _, d := range days {
		sched.Set(d, true)
	}
	s, err := f.roster.Create(context.Background(), student.Fields{
		StudentID: f.roster.NextSequentialID(),
		Name:      name,
		Sex:       student.Female,
		Course:    "Math",
		Date:      "2024-03-01",
		Time:      "10:00",
		Schedule:  sched,
	})
	require.NoError(t, err)
	return s
}

func TestStatusCycle(t *testing.T) {
	assert.Equal(t, Present, Unset.Next())
	assert.Equal(t, Absent, Present.Next())
	assert.Equal(t, Unset, Absent.Next())

	assert.Equal(t, "Pending", Unset.String())
	assert.Equal(t, "Present", Present.String())
	assert.Equal(t, "Absent", Absent.String())
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"a": Unset, "b": Present, "c": Absent})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":null,"b":"P","c":"A"}`, string(data))

	var back map[string]Status
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, map[string]Status{"a": Unset, "b": Present, "c": Absent}, back)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"X"}`), &back))
}

func TestCycleThreeTimesReturnsToStart(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.add(t, "Ada", student.Monday)

	want := []Status{Present, Absent, Unset}
	for _, w := range want {
		got, err := f.ledger.Cycle(ctx, s.ID, student.Monday)
		require.NoError(t, err)
		assert.Equal(t, w, got)
		assert.Equal(t, w, f.ledger.StatusOf(s.ID, student.Monday))
	}
}

func TestCycleUnscheduledIsNoop(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.add(t, "Ada", student.Monday)

	for i := 0; i < 3; i++ {
		got, err := f.ledger.Cycle(ctx, s.ID, student.Tuesday)
		assert.ErrorIs(t, err, ErrNotScheduled)
		assert.Equal(t, Unset, got)
	}
	assert.Empty(t, f.ledger.Snapshot())

	_, err := f.kv.Get(ctx, StorageKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCycleKeepsStatusOnceUnscheduled(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.add(t, "Ada", student.Monday, student.Tuesday)

	got, err := f.ledger.Cycle(ctx, s.ID, student.Tuesday)
	require.NoError(t, err)
	require.Equal(t, Present, got)

	fields := s.Fields()
	fields.Schedule.Set(student.Tuesday, false)
	_, err = f.roster.Update(ctx, s.ID, fields)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err = f.ledger.Cycle(ctx, s.ID, student.Tuesday)
		assert.ErrorIs(t, err, ErrNotScheduled)
		assert.Equal(t, Present, got)
	}
	assert.Equal(t, Present, f.ledger.StatusOf(s.ID, student.Tuesday))
}

func TestCycleUnknownStudent(t *testing.T) {
	f := setup(t)
	_, err := f.ledger.Cycle(context.Background(), "ghost", student.Monday)
	assert.ErrorIs(t, err, student.ErrNotFound)
}

func TestMarkAllPresent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	mon := f.add(t, "Ada", student.Monday, student.Tuesday)
	sat := f.add(t, "Grace", student.Saturday)
	both := f.add(t, "Linus", student.Monday, student.Sunday)

	// a prior Absent is overwritten
	_, _ = f.ledger.Cycle(ctx, both.ID, student.Monday)
	_, _ = f.ledger.Cycle(ctx, both.ID, student.Monday)

	n, err := f.ledger.MarkAllPresent(ctx, student.Monday)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, Present, f.ledger.StatusOf(mon.ID, student.Monday))
	assert.Equal(t, Present, f.ledger.StatusOf(both.ID, student.Monday))
	assert.Equal(t, Unset, f.ledger.StatusOf(sat.ID, student.Monday))
	assert.NotContains(t, f.ledger.Snapshot(), sat.ID)
	assert.Equal(t, Unset, f.ledger.StatusOf(mon.ID, student.Tuesday))
}

func TestLedgerPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.add(t, "Ada", student.Monday, student.Tuesday)
	_, _ = f.ledger.Cycle(ctx, s.ID, student.Monday)
	_, _ = f.ledger.Cycle(ctx, s.ID, student.Tuesday)
	_, _ = f.ledger.Cycle(ctx, s.ID, student.Tuesday)

	raw, err := f.kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+s.ID+`":{"monday":"P","tuesday":"A"}}`, raw)

	again, err := Load(ctx, f.kv, f.roster, logsvc.Discard())
	require.NoError(t, err)
	assert.Equal(t, f.ledger.Snapshot(), again.Snapshot())
}

func TestDeletedStudentCellsAreKept(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.add(t, "Ada", student.Monday)
	_, _ = f.ledger.Cycle(ctx, s.ID, student.Monday)

	require.NoError(t, f.roster.Delete(ctx, s.ID))
	assert.Equal(t, Present, f.ledger.StatusOf(s.ID, student.Monday))
}

func TestLoadCorruptLedgerStartsEmpty(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	require.NoError(t, f.kv.Set(ctx, StorageKey, `{"x":{"monday":"maybe"}}`))

	l, err := Load(ctx, f.kv, f.roster, logsvc.Discard())
	require.NoError(t, err)
	assert.Empty(t, l.Snapshot())
}

func TestSnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.add(t, "Ada", student.Monday)
	_, _ = f.ledger.Cycle(ctx, s.ID, student.Monday)

	snap := f.ledger.Snapshot()
	snap[s.ID][student.Monday] = Absent
	assert.Equal(t, Present, f.ledger.StatusOf(s.ID, student.Monday))
}

func TestLoadNullStudentEntry(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	s := f.add(t, "Ada", student.Monday, student.Tuesday)
	require.NoError(t, f.kv.Set(ctx, StorageKey, `{"`+s.ID+`":null}`))

	l, err := Load(ctx, f.kv, f.roster, logsvc.Discard())
	require.NoError(t, err)
	assert.Empty(t, l.Snapshot())

	assert.NotPanics(t, func() {
		got, err := l.Cycle(ctx, s.ID, student.Tuesday)
		require.NoError(t, err)
		assert.Equal(t, Present, got)

		n, err := l.MarkAllPresent(ctx, student.Monday)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	raw, err := f.kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+s.ID+`":{"monday":"P","tuesday":"P"}}`, raw)
}

func TestSetFillsNilDays(t *testing.T) {
	f := setup(t)
	f.ledger.sheet["x"] = nil

	assert.NotPanics(t, func() { f.ledger.set("x", student.Friday, Absent) })
	assert.Equal(t, Absent, f.ledger.StatusOf("x", student.Friday))
}
