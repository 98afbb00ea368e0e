package oncalendar

import (
	"slices"
	"strings"
)

// FieldSet is the set of values one calendar field may take: a wildcard,
// enumerated values, stepped ranges, or a mix of the latter two. A FieldSet
// is immutable once parsed. Reverse day-of-month values ("~3" for the third
// day from the end of the month) are stored negated.
type FieldSet struct {
	field    field
	wildcard bool
	values   []int
	steps    []stepRange
}

// stepRange matches start <= v <= end where (v-start) is a multiple of step.
type stepRange struct {
	start, end, step int
}

// Contains reports whether v is an allowed value for the field.
func (fs FieldSet) Contains(v int) bool {
	if fs.wildcard {
		b := fieldBounds[fs.field]
		return v >= b.min && v <= b.max
	}
	if _, ok := slices.BinarySearch(fs.values, v); ok {
		return true
	}
	for _, r := range fs.steps {
		if v >= r.start && v <= r.end && (v-r.start)%r.step == 0 {
			return true
		}
	}
	return false
}

// IsWildcard reports whether the field was left unrestricted.
func (fs FieldSet) IsWildcard() bool {
	return fs.wildcard
}

// min returns the smallest allowed value. Only meaningful for non-wildcard
// sets, which are never empty.
func (fs FieldSet) min() int {
	lo := fieldBounds[fs.field].max + 1
	if len(fs.values) > 0 && fs.values[0] < lo {
		lo = fs.values[0]
	}
	for _, r := range fs.steps {
		if r.start < lo {
			lo = r.start
		}
	}
	return lo
}

func (fs *FieldSet) finalize() {
	slices.Sort(fs.values)
	fs.values = slices.Compact(fs.values)
}

func wildcardSet(f field) FieldSet {
	return FieldSet{field: f, wildcard: true}
}

// parseField parses one numeric expression component: "*", a single value,
// "a..b", "a..b/step", "start/step", or a comma list of those. A leading "~"
// on the day-of-month field counts from the end of the month.
func parseField(f field, s string) (FieldSet, error) {
	if s == "*" {
		return wildcardSet(f), nil
	}
	reverse := false
	if f == fieldDay && strings.HasPrefix(s, "~") {
		reverse = true
		s = s[1:]
	}
	fs := FieldSet{field: f}
	for _, term := range strings.Split(s, ",") {
		if err := fs.addTerm(f, term, reverse); err != nil {
			return FieldSet{}, err
		}
	}
	fs.finalize()
	return fs, nil
}

func (fs *FieldSet) addTerm(f field, term string, reverse bool) error {
	base, stepStr, hasStep := strings.Cut(term, "/")
	step := 1
	if hasStep {
		n, err := f.atoi(stepStr)
		if err != nil {
			return err
		}
		if n == 0 {
			return f.badValue()
		}
		step = n
	}

	startStr, endStr, isRange := strings.Cut(base, "..")
	if !isRange {
		v, err := f.value(startStr)
		if err != nil {
			return err
		}
		if reverse {
			// systemd rejects reverse days beyond the shortest possible month
			if v > 28 {
				return f.badValue()
			}
			if hasStep {
				fs.steps = append(fs.steps, stepRange{start: -v, end: -1, step: step})
			} else {
				fs.values = append(fs.values, -v)
			}
			return nil
		}
		if hasStep {
			fs.steps = append(fs.steps, stepRange{start: v, end: fieldBounds[f].max, step: step})
		} else {
			fs.values = append(fs.values, v)
		}
		return nil
	}

	start, err := f.value(startStr)
	if err != nil {
		return err
	}
	end, err := f.value(endStr)
	if err != nil {
		return err
	}
	if end < start {
		return f.badValue()
	}
	if reverse {
		if end > 28 {
			return f.badValue()
		}
		start, end = -end, -start
	}
	if hasStep {
		fs.steps = append(fs.steps, stepRange{start: start, end: end, step: step})
		return nil
	}
	for v := start; v <= end; v++ {
		fs.values = append(fs.values, v)
	}
	return nil
}

// parseWeekdays parses the weekday component: symbolic names, ranges with
// ".." or "-", comma lists. A trailing comma is tolerated ("Mon, 12:34").
// An explicit "*" is not a legal weekday token; the wildcard only arises
// when the component is omitted entirely.
func parseWeekdays(s string) (FieldSet, error) {
	fs := FieldSet{field: fieldDow}
	seen := false
	for _, term := range strings.Split(s, ",") {
		if term == "" {
			continue
		}
		startStr, endStr, isRange := strings.Cut(term, "..")
		if !isRange {
			startStr, endStr, isRange = strings.Cut(term, "-")
		}
		start, err := weekdayIndex(startStr)
		if err != nil {
			return FieldSet{}, err
		}
		if !isRange {
			fs.values = append(fs.values, start)
			seen = true
			continue
		}
		end, err := weekdayIndex(endStr)
		if err != nil {
			return FieldSet{}, err
		}
		if end < start {
			return FieldSet{}, fieldDow.badValue()
		}
		for v := start; v <= end; v++ {
			fs.values = append(fs.values, v)
		}
		seen = true
	}
	if !seen {
		return FieldSet{}, fieldDow.badValue()
	}
	fs.finalize()
	return fs, nil
}
