// Package report derives filtered, grouped and tallied views of the roster
// and ledger, and renders the attendance export.
package report

import (
	"strings"

	"edureg/internal/attendance"
	"edureg/internal/student"
)

// Filter keeps students whose name, studentId or course contains query,
// ignoring case. An empty query keeps everyone.
func Filter(students []student.Student, query string) []student.Student {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return students
	}
	out := make([]student.Student, 0, len(students))
	for _, s := range students {
		if strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.StudentID), q) ||
			strings.Contains(strings.ToLower(s.Course), q) {
			out = append(out, s)
		}
	}
	return out
}

// Group splits students into the weekly (any of Mon-Fri) and weekend
// (Sat or Sun) groups. A student may land in both.
func Group(students []student.Student) (weekly, weekend []student.Student) {
	for _, s := range students {
		if s.Schedule.HasWeekday() {
			weekly = append(weekly, s)
		}
		if s.Schedule.HasWeekend() {
			weekend = append(weekend, s)
		}
	}
	return weekly, weekend
}

// Tally counts present and absent cells.
type Tally struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
}

func (t *Tally) add(st attendance.Status) {
	switch st {
	case attendance.Present:
		t.Present++
	case attendance.Absent:
		t.Absent++
	}
}

// StudentTally counts one student's cells across the whole week.
func StudentTally(id string, sheet attendance.Sheet) Tally {
	var t Tally
	for _, d := range student.Weekdays {
		t.add(sheet.StatusOf(id, d))
	}
	return t
}

// DayTally is the count for one weekday.
type DayTally struct {
	Day   student.Weekday `json:"day"`
	Label string          `json:"label"`
	Tally
}

// DailyTallies counts present and absent per weekday over the given
// students. Callers pass the full roster, not a filtered one.
func DailyTallies(students []student.Student, sheet attendance.Sheet) []DayTally {
	out := make([]DayTally, len(student.Weekdays))
	for i, d := range student.Weekdays {
		out[i] = DayTally{Day: d, Label: d.Label()}
		for _, s := range students {
			out[i].add(sheet.StatusOf(s.ID, d))
		}
	}
	return out
}

// Cell is one weekday of a report row.
type Cell struct {
	Day      student.Weekday   `json:"day"`
	Enrolled bool              `json:"enrolled"`
	Status   attendance.Status `json:"status"`
	Label    string            `json:"label"`
}

// CellLabel renders a cell the way the export does.
func CellLabel(enrolled bool, st attendance.Status) string {
	if !enrolled {
		return "Not Enrolled"
	}
	return st.String()
}

// Row is one student in a group.
type Row struct {
	Student student.Student `json:"student"`
	Cells   []Cell          `json:"cells"`
	Tally   Tally           `json:"tally"`
}

// View is everything the attendance screen shows.
type View struct {
	Query   string     `json:"query"`
	Matches int        `json:"matches"`
	Total   int        `json:"total"`
	Weekly  []Row      `json:"weekly"`
	Weekend []Row      `json:"weekend"`
	Daily   []DayTally `json:"daily"`
}

// Build filters and groups students and fills in ledger cells. Daily
// tallies ignore the query.
func Build(students []student.Student, sheet attendance.Sheet, query string) View {
	matched := Filter(students, query)
	weekly, weekend := Group(matched)
	return View{
		Query:   query,
		Matches: len(matched),
		Total:   len(students),
		Weekly:  rows(weekly, sheet),
		Weekend: rows(weekend, sheet),
		Daily:   DailyTallies(students, sheet),
	}
}

func rows(students []student.Student, sheet attendance.Sheet) []Row {
	out := make([]Row, 0, len(students))
	for _, s := range students {
		r := Row{Student: s, Tally: StudentTally(s.ID, sheet)}
		for _, d := range student.Weekdays {
			enrolled := s.Schedule.Enrolled(d)
			st := sheet.StatusOf(s.ID, d)
			r.Cells = append(r.Cells, Cell{Day: d, Enrolled: enrolled, Status: st, Label: CellLabel(enrolled, st)})
		}
		out = append(out, r)
	}
	return out
}
