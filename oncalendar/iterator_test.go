package oncalendar

import (
	"errors"
	"testing"
	"time"
)

var iterStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func collect(t *testing.T, it *Iterator, n int) []time.Time {
	t.Helper()
	out := make([]time.Time, 0, n)
	for range n {
		next, err := it.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, next)
	}
	return out
}

func wantSequence(t *testing.T, expr string, start time.Time, want ...string) {
	t.Helper()
	it, err := NewIterator(expr, start)
	if err != nil {
		t.Fatalf("NewIterator(%q): %v", expr, err)
	}
	for i, w := range want {
		got, err := it.Next()
		if err != nil {
			t.Fatalf("%q result %d: %v", expr, i, err)
		}
		if s := got.Format("2006-01-02T15:04:05"); s != w {
			t.Fatalf("%q result %d: expected %s, got %s", expr, i, w, s)
		}
	}
}

func TestIteratorEveryFifthSecond(t *testing.T) {
	wantSequence(t, "*:*:0/5", iterStart,
		"2020-01-01T00:00:05",
		"2020-01-01T00:00:10")
}

func TestIteratorEveryMinute(t *testing.T) {
	wantSequence(t, "*:*", iterStart,
		"2020-01-01T00:01:00",
		"2020-01-01T00:02:00")
}

func TestIteratorFeb29Monday(t *testing.T) {
	wantSequence(t, "Mon 2-29", iterStart,
		"2044-02-29T00:00:00",
		"2072-02-29T00:00:00")
}

func TestIteratorLastDayOfMonth(t *testing.T) {
	wantSequence(t, "*~1", iterStart,
		"2020-01-31T00:00:00",
		"2020-02-29T00:00:00",
		"2020-03-31T00:00:00")
}

func TestIteratorLastSundayOfMonth(t *testing.T) {
	wantSequence(t, "Sun *~7/1", iterStart,
		"2020-01-26T00:00:00",
		"2020-02-23T00:00:00",
		"2020-03-29T00:00:00")
}

func TestIteratorMidnight(t *testing.T) {
	wantSequence(t, "00:00", iterStart.Add(time.Hour),
		"2020-01-02T00:00:00")
}

func TestIteratorWeekdayTime(t *testing.T) {
	// 2023-12-07 is a Thursday; the next Monday is the 11th.
	start := time.Date(2023, 12, 7, 10, 0, 0, 0, time.UTC)
	wantSequence(t, "Mon, 12:34", start,
		"2023-12-11T12:34:00",
		"2023-12-18T12:34:00")
}

func TestIteratorDoesNotReemitStart(t *testing.T) {
	start := time.Date(2020, 1, 1, 12, 34, 0, 0, time.UTC)
	wantSequence(t, "12:34", start, "2020-01-02T12:34:00")
}

func TestIteratorExhaustedPastDate(t *testing.T) {
	it, err := NewIterator("2019-01-01", iterStart)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	if _, err := it.Next(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestIteratorExhaustedNonLeapFeb29(t *testing.T) {
	// 2199 is not a leap year and the horizon is 2200.
	it, err := NewIterator("2199-2-29", iterStart)
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	if _, err := it.Next(); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestIteratorConstructionError(t *testing.T) {
	_, err := NewIterator("123:456", iterStart)
	wantReason(t, err, "Bad hour")
}

func TestIteratorStrictlyIncreasing(t *testing.T) {
	exprs := []string{"*:*:*", "*:0/7", "Mon..Fri 9..17:00", "*-*-1,15 6:30", "Sun *~7/1"}
	for _, expr := range exprs {
		it, err := NewIterator(expr, iterStart)
		if err != nil {
			t.Fatalf("NewIterator(%q): %v", expr, err)
		}
		prev := iterStart
		for _, got := range collect(t, it, 40) {
			if !got.After(prev) {
				t.Fatalf("%q: %v is not after %v", expr, got, prev)
			}
			prev = got
		}
	}
}

func TestIteratorResultsSatisfyExpression(t *testing.T) {
	exprs := []string{"Mon,Thu 2,14:15,45", "*-2,8-5..10 12:00:30", "*~2", "*-*-* 23:59:1/20"}
	for _, expr := range exprs {
		e := mustParse(t, expr)
		it := e.Iterator(iterStart)
		for range 30 {
			got, err := it.Next()
			if err != nil {
				t.Fatalf("%q: %v", expr, err)
			}
			if !e.Years.Contains(got.Year()) || !e.Months.Contains(int(got.Month())) {
				t.Fatalf("%q: %v violates year/month fields", expr, got)
			}
			if !e.Hours.Contains(got.Hour()) || !e.Minutes.Contains(got.Minute()) || !e.Seconds.Contains(got.Second()) {
				t.Fatalf("%q: %v violates time fields", expr, got)
			}
			if !it.dayMatches(toWall(got)) {
				t.Fatalf("%q: %v violates day/weekday fields", expr, got)
			}
		}
	}
}

func TestIteratorPreservesLocation(t *testing.T) {
	riga, err := time.LoadLocation("Europe/Riga")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	it, err := NewIterator("*:*", time.Date(2020, 1, 1, 0, 0, 0, 0, riga))
	if err != nil {
		t.Fatalf("NewIterator: %v", err)
	}
	got, err := it.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.Location() != riga {
		t.Fatalf("expected result in Europe/Riga, got %v", got.Location())
	}
	if s := got.Format("2006-01-02T15:04:05"); s != "2020-01-01T00:01:00" {
		t.Fatalf("expected 2020-01-01T00:01:00, got %s", s)
	}
}
