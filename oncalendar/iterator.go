package oncalendar

import (
	"errors"
	"time"
)

// horizonYear bounds the search. systemd generates occurrences up to the
// year 2200, so the iterator gives up there too instead of looping forever
// on expressions that can never match.
const horizonYear = 2200

// ErrExhausted is returned by Next once no further occurrence exists before
// the year 2200. It signals normal termination, not an invalid expression.
var ErrExhausted = errors.New("oncalendar: no occurrence before year 2200")

// Iterator walks the occurrences of an expression in plain wall-clock time:
// every candidate is treated as a simple calendar tuple with no DST
// resolution. Use TzIterator when real timezone behavior matters.
//
// An Iterator owns a mutable cursor and is not safe for concurrent use; the
// underlying Expr is shared and read-only.
type Iterator struct {
	expr   *Expr
	cursor time.Time      // wall-clock cursor, held in UTC
	out    *time.Location // location of emitted times
}

// NewIterator parses expr and returns an iterator positioned at start. The
// first Next result is strictly after start.
func NewIterator(expr string, start time.Time) (*Iterator, error) {
	e, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return e.Iterator(start), nil
}

// Iterator returns a wall-clock iterator over e starting at start.
func (e *Expr) Iterator(start time.Time) *Iterator {
	return &Iterator{expr: e, cursor: toWall(start), out: start.Location()}
}

// toWall re-homes t's wall-clock fields into UTC so that calendar
// arithmetic is free of DST effects, dropping sub-second precision.
func toWall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Next returns the next occurrence strictly after the cursor, advancing the
// cursor past it, or ErrExhausted once the search crosses the horizon.
//
// The search ticks the cursor one second forward and then validates fields
// coarse to fine. Whenever a field fails, it advances to its next allowed
// value with every finer field reset to its minimum, and validation
// restarts from the top: an advance that wraps a coarser field can change
// which values are legal several levels down.
func (it *Iterator) Next() (time.Time, error) {
	it.cursor = it.cursor.Add(time.Second)
	for {
		if it.cursor.Year() >= horizonYear {
			return time.Time{}, ErrExhausted
		}
		if it.advanceYear() {
			continue
		}
		if it.advanceMonth() {
			continue
		}
		if it.advanceDay() {
			continue
		}
		if it.advanceHour() {
			continue
		}
		if it.advanceMinute() {
			continue
		}
		if it.advanceSecond() {
			continue
		}
		c := it.cursor
		return time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), c.Second(), 0, it.out), nil
	}
}

func (it *Iterator) advanceYear() bool {
	if it.expr.Years.Contains(it.cursor.Year()) {
		return false
	}
	y := it.cursor.Year()
	for !it.expr.Years.Contains(y) && y < horizonYear {
		y++
	}
	it.cursor = time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	return true
}

func (it *Iterator) advanceMonth() bool {
	if it.expr.Months.Contains(int(it.cursor.Month())) {
		return false
	}
	y, m := it.cursor.Year(), int(it.cursor.Month())
	for !it.expr.Months.Contains(m) {
		m++
		if m > 12 {
			m = 1
			y++
		}
	}
	it.cursor = time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
	return true
}

func (it *Iterator) advanceDay() bool {
	if it.dayMatches(it.cursor) {
		return false
	}
	c := it.cursor
	c = time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC)
	for {
		c = c.AddDate(0, 0, 1)
		// Stop on a month wrap even without a match: the new month has to
		// pass the coarser checks first.
		if it.dayMatches(c) || c.Day() == 1 {
			break
		}
	}
	it.cursor = c
	return true
}

func (it *Iterator) advanceHour() bool {
	if it.expr.Hours.Contains(it.cursor.Hour()) {
		return false
	}
	c := it.cursor
	c = time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), 0, 0, 0, time.UTC)
	for {
		c = c.Add(time.Hour)
		if it.expr.Hours.Contains(c.Hour()) || c.Hour() == 0 {
			break
		}
	}
	it.cursor = c
	return true
}

func (it *Iterator) advanceMinute() bool {
	if it.expr.Minutes.Contains(it.cursor.Minute()) {
		return false
	}
	c := it.cursor
	c = time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), 0, 0, time.UTC)
	for {
		c = c.Add(time.Minute)
		if it.expr.Minutes.Contains(c.Minute()) || c.Minute() == 0 {
			break
		}
	}
	it.cursor = c
	return true
}

func (it *Iterator) advanceSecond() bool {
	sec := it.cursor.Second()
	if it.expr.Seconds.Contains(sec) {
		return false
	}
	if len(it.expr.Seconds.values) == 1 && len(it.expr.Seconds.steps) == 0 {
		// Jump straight to the single target second instead of ticking.
		target := it.expr.Seconds.values[0]
		it.cursor = it.cursor.Add(time.Duration((target-sec+60)%60) * time.Second)
		return true
	}
	c := it.cursor
	for {
		c = c.Add(time.Second)
		if it.expr.Seconds.Contains(c.Second()) || c.Second() == 0 {
			break
		}
	}
	it.cursor = c
	return true
}

// dayMatches reports whether t's date satisfies both the weekday and the
// day-of-month constraints. Reverse day values match relative to the length
// of t's month, so "~1" is the month's last day in any month.
func (it *Iterator) dayMatches(t time.Time) bool {
	dow := (int(t.Weekday()) + 6) % 7 // Monday=0
	if !it.expr.Weekdays.Contains(dow) {
		return false
	}
	day := t.Day()
	if it.expr.Days.Contains(day) {
		return true
	}
	last := lastDayOfMonth(t.Year(), t.Month())
	return it.expr.Days.Contains(day - last - 1)
}

func lastDayOfMonth(y int, m time.Month) int {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}
