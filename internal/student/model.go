package student

import (
	"strings"

	"github.com/pkg/errors"
)

// Sex is the closed set of values a record may carry.
type Sex string

const (
	Male   Sex = "Male"
	Female Sex = "Female"
	Other  Sex = "Other"
)

// Sexes lists the valid values in display order.
var Sexes = []Sex{Male, Female, Other}

// Weekday names a day of the week as it is stored.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays is the fixed Monday-first order used by every view and export.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ErrUnknownWeekday is returned by ParseWeekday.
var ErrUnknownWeekday = errors.New("unknown weekday")

// ParseWeekday accepts full or three-letter names in any case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Weekdays {
		if s == string(d) || (len(s) == 3 && strings.HasPrefix(string(d), s)) {
			return d, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownWeekday, "%q", s)
}

// Label is the capitalised name, e.g. "Monday".
func (d Weekday) Label() string {
	if d == "" {
		return ""
	}
	return strings.ToUpper(string(d[:1])) + string(d[1:])
}

// Short is the three-letter label, e.g. "Mon".
func (d Weekday) Short() string {
	l := d.Label()
	if len(l) < 3 {
		return l
	}
	return l[:3]
}

// Weekend reports whether d is Saturday or Sunday.
func (d Weekday) Weekend() bool {
	return d == Saturday || d == Sunday
}

// Schedule holds one enrollment flag per weekday. It is a struct rather
// than a map so a record can never carry a partial week.
type Schedule struct {
	Monday    bool `json:"monday"`
	Tuesday   bool `json:"tuesday"`
	Wednesday bool `json:"wednesday"`
	Thursday  bool `json:"thursday"`
	Friday    bool `json:"friday"`
	Saturday  bool `json:"saturday"`
	Sunday    bool `json:"sunday"`
}

// DefaultSchedule is Monday to Friday.
func DefaultSchedule() Schedule {
	return Schedule{Monday: true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true}
}

func (s *Schedule) flag(d Weekday) *bool {
	switch d {
	case Monday:
		return &s.Monday
	case Tuesday:
		return &s.Tuesday
	case Wednesday:
		return &s.Wednesday
	case Thursday:
		return &s.Thursday
	case Friday:
		return &s.Friday
	case Saturday:
		return &s.Saturday
	case Sunday:
		return &s.Sunday
	}
	return nil
}

// Enrolled reports the flag for d. Unknown days are never enrolled.
func (s Schedule) Enrolled(d Weekday) bool {
	f := s.flag(d)
	return f != nil && *f
}

// Set assigns the flag for d; unknown days are ignored.
func (s *Schedule) Set(d Weekday, on bool) {
	if f := s.flag(d); f != nil {
		*f = on
	}
}

// Toggle flips the flag for d.
func (s *Schedule) Toggle(d Weekday) {
	s.Set(d, !s.Enrolled(d))
}

// HasWeekday reports whether any of Monday to Friday is set.
func (s Schedule) HasWeekday() bool {
	return s.Monday || s.Tuesday || s.Wednesday || s.Thursday || s.Friday
}

// HasWeekend reports whether Saturday or Sunday is set.
func (s Schedule) HasWeekend() bool {
	return s.Saturday || s.Sunday
}

// Student is one enrolled person.
type Student struct {
	ID        string   `json:"id"`
	StudentID string   `json:"studentId"`
	Name      string   `json:"name"`
	Sex       Sex      `json:"sex"`
	Course    string   `json:"course"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Schedule  Schedule `json:"attendance"`
	CreatedAt int64    `json:"createdAt"`
}

// Fields is the editable part of a Student.
type Fields struct {
	StudentID string   `json:"studentId" validate:"notblank"`
	Name      string   `json:"name" validate:"notblank"`
	Sex       Sex      `json:"sex" validate:"required,oneof=Male Female Other"`
	Course    string   `json:"course" validate:"notblank"`
	Date      string   `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string   `json:"time" validate:"required,datetime=15:04"`
	Schedule  Schedule `json:"attendance"`
}

// Fields returns the editable snapshot of s.
func (s Student) Fields() Fields {
	return Fields{
		StudentID: s.StudentID,
		Name:      s.Name,
		Sex:       s.Sex,
		Course:    s.Course,
		Date:      s.Date,
		Time:      s.Time,
		Schedule:  s.Schedule,
	}
}

func (s *Student) apply(f Fields) {
	s.StudentID = f.StudentID
	s.Name = f.Name
	s.Sex = f.Sex
	s.Course = f.Course
	s.Date = f.Date
	s.Time = f.Time
	s.Schedule = f.Schedule
}
