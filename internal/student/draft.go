package student

import "strings"

// Draft is a partially populated record. Nil fields were not supplied and
// leave the target untouched when applied.
type Draft struct {
	StudentID *string   `json:"studentId,omitempty" validate:"omitempty,notblank"`
	Name      *string   `json:"name,omitempty" validate:"omitempty,notblank"`
	Sex       *Sex      `json:"sex,omitempty" validate:"omitempty,oneof=Male Female Other"`
	Course    *string   `json:"course,omitempty" validate:"omitempty,notblank"`
	Date      *string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time      *string   `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
	Schedule  *Schedule `json:"attendance,omitempty"`
}

// Normalize trims strings and drops the ones left empty.
func (d *Draft) Normalize() {
	for _, p := range []**string{&d.StudentID, &d.Name, &d.Course, &d.Date, &d.Time} {
		if *p == nil {
			continue
		}
		v := strings.TrimSpace(**p)
		if v == "" {
			*p = nil
			continue
		}
		*p = &v
	}
	if d.Sex != nil && strings.TrimSpace(string(*d.Sex)) == "" {
		d.Sex = nil
	}
}

// Empty reports whether no field is set.
func (d Draft) Empty() bool {
	return d.StudentID == nil && d.Name == nil && d.Sex == nil && d.Course == nil &&
		d.Date == nil && d.Time == nil && d.Schedule == nil
}

// ApplyTo merges the supplied fields onto f.
func (d Draft) ApplyTo(f *Fields) {
	if d.StudentID != nil {
		f.StudentID = *d.StudentID
	}
	if d.Name != nil {
		f.Name = *d.Name
	}
	if d.Sex != nil {
		f.Sex = *d.Sex
	}
	if d.Course != nil {
		f.Course = *d.Course
	}
	if d.Date != nil {
		f.Date = *d.Date
	}
	if d.Time != nil {
		f.Time = *d.Time
	}
	if d.Schedule != nil {
		f.Schedule = *d.Schedule
	}
}
