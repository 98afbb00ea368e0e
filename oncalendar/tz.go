package oncalendar

import "time"

// TzIterator walks the occurrences of an expression in a timezone's local
// wall-clock space and resolves DST irregularities on output: a wall time
// swallowed by a spring-forward gap yields the first valid instant after
// the gap, and an ambiguous fall-back wall time yields its earlier
// occurrence. Results are expressed in the start time's location.
//
// Like Iterator, a TzIterator is single-owner mutable state; the Expr it
// reads is shared and immutable.
type TzIterator struct {
	base *Iterator
	loc  *time.Location // zone the search runs in
	out  *time.Location // location of emitted times
	last time.Time
}

// NewTzIterator parses expr and returns a timezone-resolving iterator
// positioned at start. The search runs in the expression's declared zone,
// or in start's own location when the expression names none. start must be
// a concrete reference time; the zero time.Time is rejected.
func NewTzIterator(expr string, start time.Time) (*TzIterator, error) {
	e, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return e.TzIterator(start)
}

// NewTzIteratorIn is NewTzIterator with an explicit timezone lookup
// capability.
func NewTzIteratorIn(expr string, start time.Time, load LocationProvider) (*TzIterator, error) {
	e, err := ParseIn(expr, load)
	if err != nil {
		return nil, err
	}
	return e.TzIterator(start)
}

// TzIterator returns a timezone-resolving iterator over e starting at start.
func (e *Expr) TzIterator(start time.Time) (*TzIterator, error) {
	if start.IsZero() {
		return nil, &Error{Reason: "Bad reference time"}
	}
	loc := e.Location
	if loc == nil {
		loc = start.Location()
	}
	// The base iterator must hand over raw wall-clock tuples: materializing
	// them in loc would normalize times inside a spring-forward gap before
	// localize can detect them.
	base := e.Iterator(start.In(loc))
	base.out = time.UTC
	return &TzIterator{
		base: base,
		loc:  loc,
		out:  start.Location(),
	}, nil
}

// Next returns the next occurrence strictly after the previous one, or
// ErrExhausted once the underlying search crosses the horizon.
func (tz *TzIterator) Next() (time.Time, error) {
	for {
		w, err := tz.base.Next()
		if err != nil {
			return time.Time{}, err
		}
		t, ok := localize(w, tz.loc)
		if !ok {
			t = gapEnd(w, tz.loc)
		}
		// Several wall times inside one gap all collapse onto the gap's
		// end; emit it once and keep the sequence strictly increasing.
		if !t.After(tz.last) {
			continue
		}
		tz.last = t
		return t.In(tz.out), nil
	}
}

// localize interprets the wall-clock fields of w as a local time in loc.
// Ambiguous (fall-back) wall times resolve to the earlier occurrence. ok is
// false when the wall time does not exist in loc.
func localize(w time.Time, loc *time.Location) (t time.Time, ok bool) {
	t = time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, loc)
	if !sameWall(t, w) {
		return time.Time{}, false
	}
	for _, d := range []time.Duration{time.Hour, 30 * time.Minute} {
		if e := t.Add(-d); sameWall(e, w) {
			return e, true
		}
	}
	return t, true
}

func sameWall(t, w time.Time) bool {
	return t.Second() == w.Second() &&
		t.Minute() == w.Minute() &&
		t.Hour() == w.Hour() &&
		t.Day() == w.Day() &&
		t.Month() == w.Month() &&
		t.Year() == w.Year()
}

// gapEnd returns the first valid instant after the spring-forward gap that
// swallowed the wall time w: the transition instant itself. The transition
// is located by bisecting the UTC offset change around the normalized time.
func gapEnd(w time.Time, loc *time.Location) time.Time {
	t := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, loc)
	offAt := func(sec int64) int {
		_, off := time.Unix(sec, 0).In(loc).Zone()
		return off
	}
	lo := t.Add(-36 * time.Hour).Unix()
	hi := t.Unix()
	if offAt(lo) == offAt(hi) {
		hi = t.Add(36 * time.Hour).Unix()
	}
	offBefore := offAt(lo)
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if offAt(mid) == offBefore {
			lo = mid
		} else {
			hi = mid
		}
	}
	return time.Unix(hi, 0).In(loc)
}
