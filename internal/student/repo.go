package student

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"edureg/internal/logsvc"
	"edureg/internal/store"
)

// StorageKey is where the full record list lives.
const StorageKey = "edureg_students"

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("student not found")

// NowFunc returns the current time.
var NowFunc = time.Now // mockable

var numericID = regexp.MustCompile(`^\d+$`)

// Repository keeps the roster in memory, most recent first, and writes the
// whole list back to the KV after every change.
type Repository struct {
	mu       sync.RWMutex
	kv       store.KV
	log      logsvc.Logger
	students []Student
}

// Load hydrates a repository from kv. Missing or unreadable data starts an
// empty roster; only the storage read itself can fail.
func Load(ctx context.Context, kv store.KV, logger logsvc.Logger) (*Repository, error) {
	r := &Repository{kv: kv, log: logger}

	var list []Student
	err := store.LoadJSON(ctx, kv, StorageKey, &list)
	switch {
	case err == nil:
		r.students = list
	case errors.Is(err, store.ErrNotFound):
	case errors.Is(err, store.ErrCorrupt):
		logger.Error("failed to parse stored students, starting empty", err)
	default:
		return nil, errors.Wrap(err, "loading students")
	}
	if r.students == nil {
		r.students = []Student{}
	}
	return r, nil
}

// List returns a copy of all records, most recently created first.
func (r *Repository) List() []Student {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Student, len(r.students))
	copy(out, r.students)
	return out
}

// Len returns the number of records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.students)
}

// Get returns the record with the given id.
func (r *Repository) Get(id string) (Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return r.students[i], nil
	}
	return Student{}, ErrNotFound
}

// Create adds a new record at the front of the list and persists.
// The record stays in memory when the write fails.
func (r *Repository) Create(ctx context.Context, f Fields) (Student, error) {
	s := Student{
		ID:        uuid.NewString(),
		CreatedAt: NowFunc().UnixMilli(),
	}
	s.apply(f)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.students = append([]Student{s}, r.students...)
	return s, r.persist(ctx)
}

// Update replaces the editable fields of the record with the given id,
// keeping its id and creation time.
func (r *Repository) Update(ctx context.Context, id string, f Fields) (Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return Student{}, ErrNotFound
	}
	r.students[i].apply(f)
	return r.students[i], r.persist(ctx)
}

// Delete removes the record with the given id. Unknown ids are ignored.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil
	}
	r.students = append(r.students[:i:i], r.students[i+1:]...)
	return r.persist(ctx)
}

// NextSequentialID returns the highest purely numeric studentId plus one,
// zero-padded to four digits. Non-numeric ids are skipped.
func (r *Repository) NextSequentialID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return NextSequentialID(r.students)
}

// NextSequentialID computes the next id over an arbitrary list.
func NextSequentialID(students []Student) string {
	highest := 0
	for _, s := range students {
		if !numericID.MatchString(s.StudentID) {
			continue
		}
		n, err := strconv.Atoi(s.StudentID)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%04d", highest+1)
}

func (r *Repository) indexOf(id string) int {
	for i := range r.students {
		if r.students[i].ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with mu held.
func (r *Repository) persist(ctx context.Context) error {
	if err := store.SaveJSON(ctx, r.kv, StorageKey, r.students); err != nil {
		r.log.Warn("students kept locally only", err)
		return err
	}
	return nil
}
