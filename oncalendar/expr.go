// Package oncalendar parses systemd OnCalendar expressions and evaluates
// them against a reference time, producing the ordered sequence of future
// timestamps matching the recurrence rule.
package oncalendar

import (
	"strings"
	"time"
)

// Expr is the parsed, immutable form of an OnCalendar expression. It is
// built once by Parse and thereafter read-only, so a single Expr is safe to
// share across any number of iterators and goroutines.
type Expr struct {
	Weekdays FieldSet
	Years    FieldSet
	Months   FieldSet
	Days     FieldSet
	Hours    FieldSet
	Minutes  FieldSet
	Seconds  FieldSet

	// Location is non-nil when the expression named a timezone
	// ("12:34 Europe/Riga").
	Location *time.Location

	raw string
}

// String returns the original expression text.
func (e *Expr) String() string {
	return e.raw
}

// LocationProvider resolves IANA timezone names. The matching core never
// touches the platform timezone database directly; ParseIn accepts any
// provider, and Parse uses time.LoadLocation.
type LocationProvider func(name string) (*time.Location, error)

// specials are the named shorthand expressions systemd accepts, matched
// case-insensitively.
var specials = map[string]string{
	"minutely":     "*-*-* *:*:00",
	"hourly":       "*-*-* *:00:00",
	"daily":        "*-*-* 00:00:00",
	"monthly":      "*-*-01 00:00:00",
	"weekly":       "Mon *-*-* 00:00:00",
	"yearly":       "*-01-01 00:00:00",
	"annually":     "*-01-01 00:00:00",
	"quarterly":    "*-01,04,07,10-01 00:00:00",
	"semiannually": "*-01,07-01 00:00:00",
	"secondly":     "*-*-* *:*:*",
}

// Parse parses a systemd OnCalendar expression: an optional weekday list, an
// optional year-month-day date, an optional hour:minute[:second] time, and
// an optional trailing IANA timezone name. Omitted components default to
// "*", "*-*-*", and "0:0:0" respectively. On failure it returns an *Error
// with a field-specific message and no partial result.
func Parse(expr string) (*Expr, error) {
	return ParseIn(expr, time.LoadLocation)
}

// ParseIn is Parse with an explicit timezone lookup capability.
func ParseIn(expr string, load LocationProvider) (*Expr, error) {
	e := &Expr{raw: expr}

	rest, zone := splitZone(expr)
	if zone != "" {
		loc, err := load(zone)
		if err != nil || loc == nil {
			return nil, &Error{Reason: "Bad timezone"}
		}
		e.Location = loc
	}

	if canonical, ok := specials[strings.ToLower(rest)]; ok {
		rest = canonical
	}

	// "~" marks a day counted from the end of the month. Rewriting it to
	// "-~" lets the date split treat it as an ordinary separator; a literal
	// "-~" in the input would alias that rewrite, so reject it up front.
	if strings.Contains(rest, "-~") {
		return nil, fieldDay.badValue()
	}
	rest = strings.ReplaceAll(rest, "~", "-~")

	parts := strings.Fields(rest)
	if len(parts) == 0 {
		return nil, errFieldCount
	}

	// Insert defaults for omitted components. A leading date or time means
	// the weekday list was omitted; a missing date or time slot gets its
	// zero form. A dash after a leading weekday name is a range separator
	// ("Mon-Tue"), not a date.
	weekdayDefaulted := false
	if strings.Contains(parts[0], ":") ||
		(strings.Contains(parts[0], "-") && !startsWithLetter(parts[0])) {
		parts = insertPart(parts, 0, "*")
		weekdayDefaulted = true
	}
	if len(parts) == 1 || !strings.Contains(parts[1], "-") {
		parts = insertPart(parts, 1, "*-*-*")
	}
	if len(parts) == 2 || !strings.Contains(parts[2], ":") {
		parts = insertPart(parts, 2, "0:0:0")
	}
	if len(parts) != 3 {
		return nil, errFieldCount
	}

	var err error
	if weekdayDefaulted {
		e.Weekdays = wildcardSet(fieldDow)
	} else if e.Weekdays, err = parseWeekdays(parts[0]); err != nil {
		return nil, err
	}

	dateParts := strings.Split(parts[1], "-")
	if len(dateParts) == 2 {
		dateParts = insertPart(dateParts, 0, "*")
	}
	if len(dateParts) != 3 {
		return nil, errFieldCount
	}
	if e.Years, err = parseField(fieldYear, dateParts[0]); err != nil {
		return nil, err
	}
	if e.Months, err = parseField(fieldMonth, dateParts[1]); err != nil {
		return nil, err
	}
	if e.Days, err = parseField(fieldDay, dateParts[2]); err != nil {
		return nil, err
	}

	timeParts := strings.Split(parts[2], ":")
	if len(timeParts) == 2 {
		timeParts = append(timeParts, "0")
	}
	if len(timeParts) != 3 {
		return nil, errFieldCount
	}
	if e.Hours, err = parseField(fieldHour, timeParts[0]); err != nil {
		return nil, err
	}
	if e.Minutes, err = parseField(fieldMinute, timeParts[1]); err != nil {
		return nil, err
	}
	if e.Seconds, err = parseField(fieldSecond, timeParts[2]); err != nil {
		return nil, err
	}

	if err := checkDayFeasible(e.Days, e.Months); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate reports whether expr is a well-formed OnCalendar expression.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// splitZone detaches a trailing timezone token. Timezone names never contain
// ":" and never start with a digit or "*", so date, time, and wildcard
// tokens are recognized without consulting the timezone database.
func splitZone(s string) (rest, zone string) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	last := s[i+1:]
	if last == "" || strings.Contains(last, ":") {
		return s, ""
	}
	if c := last[0]; (c >= '0' && c <= '9') || c == '*' || c == '~' {
		return s, ""
	}
	return strings.TrimSpace(s[:i]), last
}

// checkDayFeasible rejects expressions whose smallest day-of-month value
// cannot occur in any allowed month, such as "2-30". Without this the
// search would walk all the way to the horizon at iteration time.
func checkDayFeasible(days, months FieldSet) error {
	if days.wildcard {
		return nil
	}
	lo := days.min()
	if lo <= 29 {
		// reverse days are negative and land here too
		return nil
	}
	longest := 0
	for m := 1; m <= 12; m++ {
		if months.Contains(m) && daysInMonth[m] > longest {
			longest = daysInMonth[m]
		}
	}
	if lo > longest {
		return fieldDay.badValue()
	}
	return nil
}

func startsWithLetter(s string) bool {
	c := s[0]
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func insertPart(parts []string, i int, v string) []string {
	parts = append(parts, "")
	copy(parts[i+1:], parts[i:])
	parts[i] = v
	return parts
}
