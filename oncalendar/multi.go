package oncalendar

import (
	"strings"
	"time"
)

// Schedule merges the occurrence streams of several OnCalendar expressions,
// one per line, into a single strictly increasing sequence. Instants that
// several lines produce simultaneously are emitted once.
type Schedule struct {
	iters  []*TzIterator
	heads  []time.Time
	done   []bool
	primed bool
}

// NewSchedule parses newline-separated expression text and returns a merged
// iterator positioned at start. Blank lines are skipped; text with no
// expressions at all, or any malformed line, fails construction.
func NewSchedule(text string, start time.Time) (*Schedule, error) {
	var iters []*TzIterator
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		it, err := NewTzIterator(line, start)
		if err != nil {
			return nil, err
		}
		iters = append(iters, it)
	}
	if len(iters) == 0 {
		return nil, errFieldCount
	}
	return &Schedule{
		iters: iters,
		heads: make([]time.Time, len(iters)),
		done:  make([]bool, len(iters)),
	}, nil
}

// Next returns the earliest pending occurrence across all lines, or
// ErrExhausted once every line has run out.
func (s *Schedule) Next() (time.Time, error) {
	if !s.primed {
		for i := range s.iters {
			s.refill(i)
		}
		s.primed = true
	}

	var min time.Time
	for i, h := range s.heads {
		if s.done[i] {
			continue
		}
		if min.IsZero() || h.Before(min) {
			min = h
		}
	}
	if min.IsZero() {
		return time.Time{}, ErrExhausted
	}

	// Advance every line whose head was just consumed; simultaneous
	// matches across lines collapse into this single emission.
	for i, h := range s.heads {
		if !s.done[i] && h.Equal(min) {
			s.refill(i)
		}
	}
	return min, nil
}

func (s *Schedule) refill(i int) {
	t, err := s.iters[i].Next()
	if err != nil {
		s.done[i] = true
		return
	}
	s.heads[i] = t
}
