package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"edureg/internal/app"
	"edureg/internal/attendance"
	"edureg/internal/report"
	"edureg/internal/student"
	"edureg/internal/validate"
)

var (
	createFileFunc = os.Create // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	app *app.App
	out io.Writer
	in  io.Reader
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  list [-q QUERY]                      - list students, most recent first")
	fmt.Fprintln(cli.out, "  next-id                              - print the next sequential student id")
	fmt.Fprintln(cli.out, "  add -name NAME -course COURSE [...]  - register a student (-text to smart-fill)")
	fmt.Fprintln(cli.out, "  edit -id ID [...]                    - change a student's fields")
	fmt.Fprintln(cli.out, "  delete -id ID [-yes]                 - delete a student")
	fmt.Fprintln(cli.out, "  cycle -id ID -day DAY                - advance one attendance cell")
	fmt.Fprintln(cli.out, "  present -day DAY                     - mark everyone enrolled on DAY present")
	fmt.Fprintln(cli.out, "  report [-q QUERY]                    - weekly and weekend attendance")
	fmt.Fprintln(cli.out, "  export [-format csv|xlsx] [-kind student|full] [-o FILE|-]")
	fmt.Fprintln(cli.out, "  prefs [-theme light|dark] [-qr true|false]")
}

// fieldFlags are the editable fields shared by add and edit.
type fieldFlags struct {
	studentID, name, sex, course, date, clock, days string
}

func (ff *fieldFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&ff.studentID, "sid", "", "Human-facing student id, e.g. 0007.")
	fs.StringVar(&ff.name, "name", "", "Full name.")
	fs.StringVar(&ff.sex, "sex", "", "Male, Female or Other.")
	fs.StringVar(&ff.course, "course", "", "Course or class.")
	fs.StringVar(&ff.date, "date", "", "Enrollment date, YYYY-MM-DD.")
	fs.StringVar(&ff.clock, "time", "", "Enrollment time, HH:mm.")
	fs.StringVar(&ff.days, "days", "", "Comma separated schedule, e.g. mon,wed,sat.")
}

// draft returns only the flags given on the command line.
func (ff *fieldFlags) draft(fs *flag.FlagSet) (student.Draft, error) {
	var d student.Draft
	var err error
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "sid":
			d.StudentID = &v
		case "name":
			d.Name = &v
		case "sex":
			sex := student.Sex(v)
			d.Sex = &sex
		case "course":
			d.Course = &v
		case "date":
			d.Date = &v
		case "time":
			d.Time = &v
		case "days":
			var sched student.Schedule
			sched, err = parseDays(v)
			d.Schedule = &sched
		}
	})
	return d, err
}

func parseDays(s string) (student.Schedule, error) {
	var sched student.Schedule
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := student.ParseWeekday(part)
		if err != nil {
			return sched, err
		}
		sched.Set(d, true)
	}
	return sched, nil
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	cmd, rest := args[1], args[2:]
	switch cmd {
	case "list":
		fs := cli.newFlagSet(cmd)
		query := fs.String("q", "", "Search name, student id or course.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		cli.printStudents(cli.app.Students(*query))
		return nil

	case "next-id":
		fmt.Fprintln(cli.out, cli.app.NextStudentID())
		return nil

	case "add":
		fs := cli.newFlagSet(cmd)
		var ff fieldFlags
		ff.register(fs)
		text := fs.String("text", "", "Free text to smart-fill the form from before the flags apply.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		d, err := ff.draft(fs)
		if err != nil {
			return err
		}
		return cli.add(ctx, *text, d)

	case "edit":
		fs := cli.newFlagSet(cmd)
		var ff fieldFlags
		ff.register(fs)
		id := fs.String("id", "", "Internal id of the student.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		d, err := ff.draft(fs)
		if err != nil {
			return err
		}
		return cli.edit(ctx, *id, d)

	case "delete":
		fs := cli.newFlagSet(cmd)
		id := fs.String("id", "", "Internal id of the student.")
		yes := fs.Bool("yes", false, "Skip the confirmation prompt.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		if *id == "" {
			fs.Usage()
			return errHelp
		}
		return cli.delete(ctx, *id, *yes)

	case "cycle":
		fs := cli.newFlagSet(cmd)
		id := fs.String("id", "", "Internal id of the student.")
		day := fs.String("day", "", "Weekday, e.g. monday or mon.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		if *id == "" || *day == "" {
			fs.Usage()
			return errHelp
		}
		d, err := student.ParseWeekday(*day)
		if err != nil {
			return err
		}
		st, err := cli.app.Cycle(ctx, *id, d)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%s: %s\n", d.Label(), st)
		return nil

	case "present":
		fs := cli.newFlagSet(cmd)
		day := fs.String("day", "", "Weekday, e.g. monday or mon.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		if *day == "" {
			fs.Usage()
			return errHelp
		}
		d, err := student.ParseWeekday(*day)
		if err != nil {
			return err
		}
		n, err := cli.app.MarkAllPresent(ctx, d)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "marked %d student(s) present on %s\n", n, d.Label())
		return nil

	case "report":
		fs := cli.newFlagSet(cmd)
		query := fs.String("q", "", "Search name, student id or course.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		cli.printReport(cli.app.Report(*query))
		return nil

	case "export":
		fs := cli.newFlagSet(cmd)
		format := fs.String("format", "csv", "csv or xlsx.")
		kind := fs.String("kind", "student", "student or full.")
		out := fs.String("o", "", "Output file; - for stdout. Defaults to a dated file name.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		return cli.export(app.Format(*format), *kind, *out)

	case "prefs":
		fs := cli.newFlagSet(cmd)
		theme := fs.String("theme", "", "light or dark.")
		qr := fs.String("qr", "", "Show the group QR shortcut: true or false.")
		if err := fs.Parse(rest); err != nil {
			return errHelp
		}
		return cli.prefs(ctx, *theme, *qr)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) add(ctx context.Context, text string, d student.Draft) error {
	f := cli.app.NewForm()
	defer f.Close()
	if strings.TrimSpace(text) != "" {
		if err := cli.app.SmartFill(ctx, f, text); err != nil {
			return err
		}
	}
	f.Apply(d)
	s, err := cli.app.Submit(ctx, f)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cli.out, "registered %s (%s) id=%s\n", s.Name, s.StudentID, s.ID)
	return nil
}

func (cli *commandLine) edit(ctx context.Context, id string, d student.Draft) error {
	f, err := cli.app.EditForm(id)
	if err != nil {
		return err
	}
	defer f.Close()
	f.Apply(d)
	s, err := cli.app.Submit(ctx, f)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cli.out, "updated %s (%s)\n", s.Name, s.StudentID)
	return nil
}

func (cli *commandLine) delete(ctx context.Context, id string, yes bool) error {
	d, err := cli.app.RequestDeletion(id)
	if err != nil {
		return err
	}
	if !yes {
		fmt.Fprintf(cli.out, "Delete %s (%s)? This cannot be undone. Type yes to confirm: ", d.Student.Name, d.Student.StudentID)
		answer, _ := bufio.NewReader(cli.in).ReadString('\n')
		if strings.TrimSpace(strings.ToLower(answer)) != "yes" {
			_ = cli.app.AbortDeletion(d.Token)
			fmt.Fprintln(cli.out, "aborted")
			return nil
		}
	}
	s, err := cli.app.ConfirmDeletion(ctx, d.Token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %s (%s)\n", s.Name, s.StudentID)
	return nil
}

func (cli *commandLine) export(format app.Format, kind, path string) error {
	k := report.StudentReport
	switch kind {
	case "student":
	case "full":
		k = report.FullAudit
	default:
		return fmt.Errorf("unknown export kind %q", kind)
	}

	if path == "-" {
		return cli.app.Export(cli.out, format)
	}
	if path == "" {
		path = cli.app.ExportFilename(k, format)
	}
	f, err := createFileFunc(path)
	if err != nil {
		return err
	}
	if err := cli.app.Export(f, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "wrote %s\n", path)
	return nil
}

func (cli *commandLine) prefs(ctx context.Context, theme, qr string) error {
	p := cli.app.Preferences()
	if theme != "" || qr != "" {
		if theme != "" {
			p.Theme = app.Theme(theme)
		}
		if qr != "" {
			show, err := strconv.ParseBool(qr)
			if err != nil {
				return fmt.Errorf("-qr must be true or false (got %q)", qr)
			}
			p.ShowGroupQR = show
		}
		var err error
		if p, err = cli.app.UpdatePreferences(ctx, p); err != nil {
			return err
		}
	}
	fmt.Fprintf(cli.out, "theme=%s qr=%t sync=%s\n", p.Theme, p.ShowGroupQR, cli.app.SyncState())
	return nil
}

// describe turns a validation error into one readable line.
func describe(err error) error {
	fields, ok := validate.Fields(err)
	if !ok {
		return err
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Field + ": " + f.Error
	}
	return fmt.Errorf("invalid form: %s", strings.Join(parts, "; "))
}

func (cli *commandLine) printStudents(students []student.Student) {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTUDENT ID\tNAME\tSEX\tCOURSE\tENROLLED\tDAYS")
	for _, s := range students {
		var days []string
		for _, d := range student.Weekdays {
			if s.Schedule.Enrolled(d) {
				days = append(days, d.Short())
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\n", s.ID, s.StudentID, s.Name, s.Sex, s.Course, s.Date, s.Time, strings.Join(days, ","))
	}
	w.Flush()
}

func (cli *commandLine) printReport(v report.View) {
	if v.Query != "" {
		fmt.Fprintf(cli.out, "Found %d matches for %q\n", v.Matches, v.Query)
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, g := range []struct {
		title string
		rows  []report.Row
	}{{"Weekly", v.Weekly}, {"Weekend", v.Weekend}} {
		fmt.Fprintf(w, "%s (%d active)\n", g.title, len(g.rows))
		header := []string{"STUDENT ID", "NAME"}
		for _, d := range student.Weekdays {
			header = append(header, d.Short())
		}
		fmt.Fprintln(w, strings.Join(append(header, "P", "A"), "\t"))
		for _, r := range g.rows {
			line := []string{r.Student.StudentID, r.Student.Name}
			for _, c := range r.Cells {
				line = append(line, cellMark(c))
			}
			line = append(line, strconv.Itoa(r.Tally.Present), strconv.Itoa(r.Tally.Absent))
			fmt.Fprintln(w, strings.Join(line, "\t"))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "Daily\tPresent\tAbsent")
	for _, d := range v.Daily {
		fmt.Fprintf(w, "%s\t%d\t%d\n", d.Label, d.Present, d.Absent)
	}
	w.Flush()
}

func cellMark(c report.Cell) string {
	if !c.Enrolled {
		return "-"
	}
	switch c.Status {
	case attendance.Present:
		return "P"
	case attendance.Absent:
		return "A"
	}
	return "."
}
