package scheduler

import (
	"fmt"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/verlaine-io/oncal/oncalendar"
)

// Entry kinds, by expression syntax.
const (
	KindCalendar = "calendar"
	KindCron     = "cron"
)

// Trigger computes future fire times for a schedule expression.
type Trigger interface {
	// Next returns the first fire time strictly after t, or
	// oncalendar.ErrExhausted when no such time exists.
	Next(t time.Time) (time.Time, error)
	Kind() string
}

// calendarTrigger evaluates systemd OnCalendar expressions, one per line.
type calendarTrigger struct {
	text string
}

func (c calendarTrigger) Kind() string { return KindCalendar }

func (c calendarTrigger) Next(t time.Time) (time.Time, error) {
	s, err := oncalendar.NewSchedule(c.text, t)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next()
}

// cronParser accepts classic 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type cronTrigger struct {
	raw      string
	schedule cron.Schedule
}

func (c cronTrigger) Kind() string { return KindCron }

func (c cronTrigger) Next(t time.Time) (time.Time, error) {
	next := c.schedule.Next(t)
	if next.IsZero() {
		return time.Time{}, oncalendar.ErrExhausted
	}
	return next, nil
}

// ParseTrigger parses a schedule expression. Calendar syntax is tried first,
// classic 5-field cron syntax as a fallback.
func ParseTrigger(expr string) (Trigger, error) {
	_, calErr := oncalendar.NewSchedule(expr, time.Unix(0, 0).UTC())
	if calErr == nil {
		return calendarTrigger{text: expr}, nil
	}
	if schedule, err := cronParser.Parse(expr); err == nil {
		return cronTrigger{raw: expr, schedule: schedule}, nil
	}
	return nil, fmt.Errorf("parse schedule %q: %w", expr, calErr)
}
