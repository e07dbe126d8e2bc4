package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"edureg/internal/attendance"
	"edureg/internal/student"
)

// Kind selects which export a file name is for.
type Kind string

const (
	StudentReport Kind = "student_report"
	FullAudit     Kind = "full_attendance_report"
)

// SheetName is the worksheet used by the spreadsheet export.
const SheetName = "Attendance"

// Filename returns e.g. student_report_2024-03-01.csv, using the UTC date.
func Filename(kind Kind, now time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", kind, now.UTC().Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

// Header is the export's first row.
func Header() []string {
	h := []string{"Student Name", "Student ID", "Course"}
	for _, d := range student.Weekdays {
		h = append(h, d.Label())
	}
	return h
}

// Record is one export row in column order.
func Record(s student.Student, sheet attendance.Sheet) []string {
	r := []string{s.Name, s.StudentID, s.Course}
	for _, d := range student.Weekdays {
		r = append(r, CellLabel(s.Schedule.Enrolled(d), sheet.StatusOf(s.ID, d)))
	}
	return r
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV writes the header and one line per student in list order.
// Name and course are always quoted, the other fields never are, and lines
// are joined with "\n" without a trailing newline.
func WriteCSV(w io.Writer, students []student.Student, sheet attendance.Sheet) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(strings.Join(Header(), ","))
	for _, s := range students {
		rec := Record(s, sheet)
		rec[0] = quote(rec[0])
		rec[2] = quote(rec[2])
		bw.WriteString("\n")
		bw.WriteString(strings.Join(rec, ","))
	}
	return errors.Wrap(bw.Flush(), "writing csv")
}

// WriteXLSX writes the same rows as WriteCSV into a single worksheet.
func WriteXLSX(w io.Writer, students []student.Student, sheet attendance.Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	lines := [][]string{Header()}
	for _, s := range students {
		lines = append(lines, Record(s, sheet))
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(line))
		for j, v := range line {
			row[j] = v
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+1)
		}
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return errors.Wrap(err, "freezing header")
	}
	return errors.Wrap(f.Write(w), "writing xlsx")
}
