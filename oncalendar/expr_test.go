package oncalendar

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// members collects the values in [lo, hi] accepted by a FieldSet.
func members(fs FieldSet, lo, hi int) []int {
	var out []int
	for v := lo; v <= hi; v++ {
		if fs.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

func wantMembers(t *testing.T, name string, fs FieldSet, lo, hi int, want ...int) {
	t.Helper()
	got := members(fs, lo, hi)
	if len(got) != len(want) {
		t.Fatalf("%s: expected members %v, got %v", name, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: expected members %v, got %v", name, want, got)
		}
	}
}

func wantReason(t *testing.T, err error, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", reason)
	}
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if pe.Reason != reason {
		t.Fatalf("expected error %q, got %q", reason, pe.Reason)
	}
}

func mustParse(t *testing.T, expr string) *Expr {
	t.Helper()
	e, err := Parse(expr)
	if err != nil {
		t.Fatalf("Parse(%q): %v", expr, err)
	}
	return e
}

func TestParseStars(t *testing.T) {
	e := mustParse(t, "*-*-* *:*:*")
	if !e.Weekdays.IsWildcard() || !e.Years.IsWildcard() || !e.Months.IsWildcard() || !e.Days.IsWildcard() {
		t.Fatal("expected wildcard weekday/year/month/day")
	}
	if len(members(e.Hours, 0, 23)) != 24 {
		t.Fatal("expected all hours allowed")
	}
	if len(members(e.Minutes, 0, 59)) != 60 || len(members(e.Seconds, 0, 59)) != 60 {
		t.Fatal("expected all minutes and seconds allowed")
	}
}

func TestParseWeekday(t *testing.T) {
	for _, sample := range []string{"Mon", "MON", "Monday", "MONDAY", "monday"} {
		e := mustParse(t, sample)
		wantMembers(t, sample, e.Weekdays, 0, 6, 0)
		wantMembers(t, sample, e.Hours, 0, 23, 0)
		wantMembers(t, sample, e.Minutes, 0, 59, 0)
		wantMembers(t, sample, e.Seconds, 0, 59, 0)
		if !e.Years.IsWildcard() || !e.Months.IsWildcard() || !e.Days.IsWildcard() {
			t.Fatalf("%s: expected wildcard date fields", sample)
		}
	}
}

func TestParseWeekdayTrailingComma(t *testing.T) {
	e := mustParse(t, "Mon, 12:34")
	wantMembers(t, "weekdays", e.Weekdays, 0, 6, 0)
	wantMembers(t, "hours", e.Hours, 0, 23, 12)
	wantMembers(t, "minutes", e.Minutes, 0, 59, 34)
}

func TestParseWeekdayInterval(t *testing.T) {
	for _, sample := range []string{"Mon..Tue", "Mon,Tue", "Mon-Tue"} {
		e := mustParse(t, sample)
		wantMembers(t, sample, e.Weekdays, 0, 6, 0, 1)
	}
}

func TestParseDate(t *testing.T) {
	e := mustParse(t, "2023-11-30")
	wantMembers(t, "years", e.Years, 2023, 2023, 2023)
	wantMembers(t, "months", e.Months, 1, 12, 11)
	wantMembers(t, "days", e.Days, 1, 31, 30)
	if !e.Weekdays.IsWildcard() {
		t.Fatal("expected wildcard weekdays")
	}
	wantMembers(t, "hours", e.Hours, 0, 23, 0)
}

func TestParseOmittedYear(t *testing.T) {
	e := mustParse(t, "11-30")
	if !e.Years.IsWildcard() {
		t.Fatal("expected wildcard years")
	}
	wantMembers(t, "months", e.Months, 1, 12, 11)
	wantMembers(t, "days", e.Days, 1, 31, 30)
}

func TestParseTwoDigitYear(t *testing.T) {
	e := mustParse(t, "69-*-*")
	wantMembers(t, "years", e.Years, 2000, 2199, 2069)

	e = mustParse(t, "70-*-*")
	wantMembers(t, "years", e.Years, 1900, 1999, 1970)
}

func TestParseTime(t *testing.T) {
	e := mustParse(t, "11:22:33")
	wantMembers(t, "hours", e.Hours, 0, 23, 11)
	wantMembers(t, "minutes", e.Minutes, 0, 59, 22)
	wantMembers(t, "seconds", e.Seconds, 0, 59, 33)
	if !e.Years.IsWildcard() || !e.Days.IsWildcard() {
		t.Fatal("expected wildcard date fields")
	}
}

func TestParseOmittedSeconds(t *testing.T) {
	e := mustParse(t, "11:22")
	wantMembers(t, "hours", e.Hours, 0, 23, 11)
	wantMembers(t, "minutes", e.Minutes, 0, 59, 22)
	wantMembers(t, "seconds", e.Seconds, 0, 59, 0)
}

func TestParseFieldForms(t *testing.T) {
	tests := []struct {
		expr string
		want []int
	}{
		{"*:1,2,3", []int{1, 2, 3}},
		{"*:1..3", []int{1, 2, 3}},
		{"*:1..3,7..9", []int{1, 2, 3, 7, 8, 9}},
		{"*:0/15", []int{0, 15, 30, 45}},
		{"*:0..10/2", []int{0, 2, 4, 6, 8, 10}},
		{"*:5/15", []int{5, 20, 35, 50}},
	}
	for _, tt := range tests {
		e := mustParse(t, tt.expr)
		wantMembers(t, tt.expr, e.Minutes, 0, 59, tt.want...)
	}
}

func TestParseReverseDay(t *testing.T) {
	tests := []struct {
		expr string
		want []int
	}{
		{"*-*~1", []int{-1}},
		{"*~1", []int{-1}},
		{"*-*~1,8", []int{-8, -1}},
		{"*-*~1..3", []int{-3, -2, -1}},
		{"*-*~1..2,4..5", []int{-5, -4, -2, -1}},
		{"*-*~1..5/2", []int{-5, -3, -1}},
		{"*-*~3/2", []int{-3, -1}},
	}
	for _, tt := range tests {
		e := mustParse(t, tt.expr)
		wantMembers(t, tt.expr, e.Days, -31, -1, tt.want...)
	}
}

func TestParseSpecialExpressions(t *testing.T) {
	for _, sample := range []string{"minutely", "Minutely", "MINUTELY", "MiNuTeLY"} {
		e := mustParse(t, sample)
		if len(members(e.Hours, 0, 23)) != 24 || len(members(e.Minutes, 0, 59)) != 60 {
			t.Fatalf("%s: expected wildcard hours and minutes", sample)
		}
		wantMembers(t, sample, e.Seconds, 0, 59, 0)
	}

	e := mustParse(t, "quarterly")
	wantMembers(t, "quarterly months", e.Months, 1, 12, 1, 4, 7, 10)
	wantMembers(t, "quarterly days", e.Days, 1, 31, 1)
}

func TestParseDeterministic(t *testing.T) {
	a := mustParse(t, "Mon..Fri *-*-1,15 9..17:30")
	b := mustParse(t, "Mon..Fri *-*-1,15 9..17:30")
	for _, fs := range []struct {
		name string
		x, y FieldSet
		lo   int
		hi   int
	}{
		{"weekdays", a.Weekdays, b.Weekdays, 0, 6},
		{"days", a.Days, b.Days, 1, 31},
		{"hours", a.Hours, b.Hours, 0, 23},
		{"minutes", a.Minutes, b.Minutes, 0, 59},
	} {
		for v := fs.lo; v <= fs.hi; v++ {
			if fs.x.Contains(v) != fs.y.Contains(v) {
				t.Fatalf("%s: parses disagree at %d", fs.name, v)
			}
		}
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("")
	wantReason(t, err, "Wrong number of fields")
}

func TestParseRejectsFourComponents(t *testing.T) {
	_, err := Parse("Mon *-*-* *:*:* 1:1")
	wantReason(t, err, "Wrong number of fields")
}

func TestParseRejectsBadValues(t *testing.T) {
	patterns := []string{"%s-*-*", "*-%s-*", "*-*-%s", "%s:*:*", "*:%s:*", "*:*:%s"}
	badValues := []string{"-1", "1000", "ABC", "1:1", "~1", "*/1", "*,1", "1..*", "1..1_0", "*/0"}

	for _, p := range patterns {
		for _, v := range badValues {
			expr := fmt.Sprintf(p, v)
			if _, err := Parse(expr); err == nil {
				t.Fatalf("expected error for %q", expr)
			}
		}
	}

	for _, sample := range []string{"-1 *-*-* *:*:*", "ABC *-*-* *:*:*", "Mon/1 *-*-* *:*:*", "*/1 *-*-* *:*:*"} {
		if _, err := Parse(sample); err == nil {
			t.Fatalf("expected error for %q", sample)
		}
	}
}

func TestParseRejectsLopsidedRange(t *testing.T) {
	_, err := Parse("*-*-5..1")
	wantReason(t, err, "Bad day-of-month")
}

func TestParseRejectsZeroStep(t *testing.T) {
	_, err := Parse("*:*/0")
	wantReason(t, err, "Bad minute")
}

func TestParseRejectsDayOutOfRange(t *testing.T) {
	_, err := Parse("1-32")
	wantReason(t, err, "Bad day-of-month")
}

func TestParseRejectsWeekdayStar(t *testing.T) {
	_, err := Parse("* 1-1")
	wantReason(t, err, "Bad day-of-week")
}

func TestParseRejectsReverseDayAbove28(t *testing.T) {
	_, err := Parse("1~29")
	wantReason(t, err, "Bad day-of-month")
}

func TestParseRejectsImpossibleDay(t *testing.T) {
	_, err := Parse("2-30")
	wantReason(t, err, "Bad day-of-month")

	// day 30 is fine as long as some allowed month has one
	if _, err := Parse("2,4-30"); err != nil {
		t.Fatalf("expected 2,4-30 to parse, got %v", err)
	}
}

func TestParseHourRangeError(t *testing.T) {
	_, err := Parse("123:456")
	wantReason(t, err, "Bad hour")
}

func TestParseTimezone(t *testing.T) {
	e := mustParse(t, "12:34 Europe/Riga")
	if e.Location == nil || e.Location.String() != "Europe/Riga" {
		t.Fatalf("expected Europe/Riga location, got %v", e.Location)
	}

	e = mustParse(t, "12:34")
	if e.Location != nil {
		t.Fatalf("expected no location, got %v", e.Location)
	}
}

func TestParseBadTimezone(t *testing.T) {
	for _, sample := range []string{"12:34 Europe/Surprise", "12:34 Europe/"} {
		_, err := Parse(sample)
		wantReason(t, err, "Bad timezone")
	}
}

func TestParseAvoidsTimezoneLookups(t *testing.T) {
	// Expressions whose last token is recognizably not a timezone must not
	// consult the provider at all.
	load := func(name string) (*time.Location, error) {
		t.Fatalf("unexpected timezone lookup for %q", name)
		return nil, nil
	}
	for _, sample := range []string{"*-* *:*", "Mon 1-10", "Mon *-10"} {
		if _, err := ParseIn(sample, load); err != nil {
			t.Fatalf("ParseIn(%q): %v", sample, err)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("Mon..Fri 9:00"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate("*:*/0"); err == nil {
		t.Fatal("expected error for zero step")
	}
}
