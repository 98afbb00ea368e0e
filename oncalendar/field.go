package oncalendar

import (
	"strconv"
	"strings"
)

// field identifies one calendar/time component of an expression.
type field int

const (
	fieldDow field = iota
	fieldYear
	fieldMonth
	fieldDay
	fieldHour
	fieldMinute
	fieldSecond
)

var fieldNames = [...]string{
	"day-of-week",
	"year",
	"month",
	"day-of-month",
	"hour",
	"minute",
	"second",
}

// fieldBounds holds the inclusive value domain per field. Weekdays are
// Monday=0 through Sunday=6, matching the systemd convention.
var fieldBounds = [...]struct{ min, max int }{
	{0, 6},
	{1970, 2199},
	{1, 12},
	{1, 31},
	{0, 23},
	{0, 59},
	{0, 59},
}

// daysInMonth is the longest possible length of each month. February counts
// as 29; whether a concrete February has a 29th is decided per candidate.
var daysInMonth = [...]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

var (
	symbolicDays      = [...]string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}
	symbolicDaysShort = [...]string{"MON", "TUE", "WED", "THU", "FRI", "SAT", "SUN"}
)

// Error reports an invalid OnCalendar expression or iterator construction.
// It is the only error type produced at parse time; iteration running out of
// occurrences is signaled by ErrExhausted instead.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

var errFieldCount = &Error{Reason: "Wrong number of fields"}

func (f field) badValue() error {
	return &Error{Reason: "Bad " + fieldNames[f]}
}

// atoi parses an unsigned decimal literal. Signs, spaces, and anything else
// strconv would tolerate are field errors.
func (f field) atoi(s string) (int, error) {
	if s == "" {
		return 0, f.badValue()
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, f.badValue()
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, f.badValue()
	}
	return v, nil
}

// value parses a single numeric literal and checks it against the field's
// domain. Two-digit years pivot at 70: 69 is 2069, 70 is 1970.
func (f field) value(s string) (int, error) {
	v, err := f.atoi(s)
	if err != nil {
		return 0, err
	}
	if f == fieldYear && v < 100 {
		if v < 70 {
			v += 2000
		} else {
			v += 1900
		}
	}
	b := fieldBounds[f]
	if v < b.min || v > b.max {
		return 0, f.badValue()
	}
	return v, nil
}

// weekdayIndex resolves a symbolic weekday name, full or three-letter,
// case-insensitively. Monday is 0.
func weekdayIndex(s string) (int, error) {
	for i, name := range symbolicDays {
		if strings.EqualFold(s, name) || strings.EqualFold(s, symbolicDaysShort[i]) {
			return i, nil
		}
	}
	return 0, fieldDow.badValue()
}
