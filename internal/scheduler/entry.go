package scheduler

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry represents a persistent schedule entry.
type Entry struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Expression  string     `json:"expression"`
	Kind        string     `json:"kind"` // "calendar" or "cron"
	Enabled     bool       `json:"enabled"`
	MaxRuns     int        `json:"max_runs,omitempty"`
	RunCount    int        `json:"run_count"`
	CreatedAt   time.Time  `json:"created_at"`
	LastFiredAt *time.Time `json:"last_fired_at,omitempty"`
}

// Firing records a single trigger of an entry.
type Firing struct {
	EntryID      string    `json:"entry_id"`
	Expression   string    `json:"expression"`
	ScheduledFor time.Time `json:"scheduled_for"`
	FiredAt      time.Time `json:"fired_at"`
	RunCount     int       `json:"run_count"`
}

// GenerateEntryID creates a unique schedule identifier with "sched_" prefix.
func GenerateEntryID() string {
	u := uuid.New().String()
	return "sched_" + strings.ReplaceAll(u[:8], "-", "")
}
