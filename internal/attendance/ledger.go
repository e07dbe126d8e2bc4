package attendance

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"edureg/internal/logsvc"
	"edureg/internal/store"
	"edureg/internal/student"
)

// StorageKey is where the ledger map lives.
const StorageKey = "edureg_attendance_history"

// ErrNotScheduled is returned by Cycle when the student is not enrolled on
// that day. Nothing changes.
var ErrNotScheduled = errors.New("student is not scheduled on that day")

// Roster is the read side of the record store.
type Roster interface {
	Get(id string) (student.Student, error)
	List() []student.Student
}

// Sheet maps a student's internal id to its per-day cells.
type Sheet map[string]map[student.Weekday]Status

// StatusOf returns the cell, Unset when absent.
func (s Sheet) StatusOf(id string, day student.Weekday) Status {
	return s[id][day]
}

// Ledger records present/absent per student and weekday. It references
// students by id but never removes cells when a student is deleted.
type Ledger struct {
	mu     sync.RWMutex
	kv     store.KV
	roster Roster
	log    logsvc.Logger
	sheet  Sheet
}

// Load hydrates the ledger from kv. An unreadable value starts empty.
func Load(ctx context.Context, kv store.KV, roster Roster, logger logsvc.Logger) (*Ledger, error) {
	l := &Ledger{kv: kv, roster: roster, log: logger, sheet: Sheet{}}

	var sheet Sheet
	err := store.LoadJSON(ctx, kv, StorageKey, &sheet)
	switch {
	case err == nil:
		for id, days := range sheet {
			// a null entry holds no cells
			if days != nil {
				l.sheet[id] = days
			}
		}
	case errors.Is(err, store.ErrNotFound):
	case errors.Is(err, store.ErrCorrupt):
		logger.Error("failed to parse attendance history, starting empty", err)
	default:
		return nil, errors.Wrap(err, "loading attendance")
	}
	return l, nil
}

// StatusOf returns the cell for a student and day.
func (l *Ledger) StatusOf(id string, day student.Weekday) Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sheet.StatusOf(id, day)
}

// Cycle advances the cell for a scheduled day and persists the ledger.
func (l *Ledger) Cycle(ctx context.Context, id string, day student.Weekday) (Status, error) {
	s, err := l.roster.Get(id)
	if err != nil {
		return Unset, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	current := l.sheet.StatusOf(id, day)
	if !s.Schedule.Enrolled(day) {
		return current, ErrNotScheduled
	}
	next := current.Next()
	l.set(id, day, next)
	return next, l.persist(ctx)
}

// MarkAllPresent sets the cell to Present for every student enrolled on day
// and persists once. It returns how many students were marked.
func (l *Ledger) MarkAllPresent(ctx context.Context, day student.Weekday) (int, error) {
	students := l.roster.List()

	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range students {
		if s.Schedule.Enrolled(day) {
			l.set(s.ID, day, Present)
			n++
		}
	}
	return n, l.persist(ctx)
}

// Snapshot returns a deep copy of the ledger.
func (l *Ledger) Snapshot() Sheet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(Sheet, len(l.sheet))
	for id, days := range l.sheet {
		cp := make(map[student.Weekday]Status, len(days))
		for d, st := range days {
			cp[d] = st
		}
		out[id] = cp
	}
	return out
}

func (l *Ledger) set(id string, day student.Weekday, st Status) {
	days := l.sheet[id]
	if days == nil {
		days = make(map[student.Weekday]Status)
		l.sheet[id] = days
	}
	days[day] = st
}

func (l *Ledger) persist(ctx context.Context) error {
	if err := store.SaveJSON(ctx, l.kv, StorageKey, l.sheet); err != nil {
		l.log.Warn("attendance kept locally only", err)
		return err
	}
	return nil
}
