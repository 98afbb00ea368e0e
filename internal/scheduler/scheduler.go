// Package scheduler fires schedule entries at the times their calendar or
// cron expressions describe, publishing a trigger event for each fire.
package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/verlaine-io/oncal/internal/events"
	"github.com/verlaine-io/oncal/oncalendar"
)

// idleWait bounds the sleep when no entry has a pending fire time.
const idleWait = time.Minute

// Config holds dependencies for the scheduler.
type Config struct {
	Bus   *events.Bus
	Store *Store // nil-safe: entries are not persisted without a store
}

// runtimeEntry is the in-memory state of one schedule entry.
type runtimeEntry struct {
	entry   Entry
	trigger Trigger
	next    time.Time
	dead    bool // trigger exhausted, entry will never fire again
}

// Scheduler manages schedule entries and their fire loop.
type Scheduler struct {
	bus   *events.Bus
	store *Store

	mu      sync.Mutex
	entries map[string]*runtimeEntry

	wake chan struct{}
	done chan struct{}
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	return &Scheduler{
		bus:     cfg.Bus,
		store:   cfg.Store,
		entries: make(map[string]*runtimeEntry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Start loads persisted entries and begins the fire loop.
func (s *Scheduler) Start() {
	s.loadPersistedEntries()
	slog.Info("scheduler started", "entries", len(s.entries))
	go s.fireLoop()
}

// Stop halts the scheduler.
func (s *Scheduler) Stop() {
	close(s.done)
	slog.Info("scheduler stopped")
}

// Add registers a schedule entry. A missing ID is generated, a zero
// CreatedAt is set to now.
func (s *Scheduler) Add(e *Entry) error {
	trigger, err := ParseTrigger(e.Expression)
	if err != nil {
		return err
	}
	e.Kind = trigger.Kind()

	if e.ID == "" {
		e.ID = GenerateEntryID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	if s.store != nil {
		if err := s.store.Save(e); err != nil {
			return fmt.Errorf("persist schedule: %w", err)
		}
	}

	re := &runtimeEntry{entry: *e, trigger: trigger}
	s.computeNext(re, time.Now())

	s.mu.Lock()
	s.entries[e.ID] = re
	s.mu.Unlock()
	s.kick()

	s.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.ScheduleChangePayload{
		Change:     events.EventScheduleAdded,
		EntryID:    e.ID,
		Title:      e.Title,
		Expression: e.Expression,
	}))

	slog.Info("scheduler: added entry", "id", e.ID, "title", e.Title, "kind", e.Kind)
	return nil
}

// Remove removes a schedule entry by ID.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	re, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("schedule entry not found: %s", id)
	}
	delete(s.entries, id)
	s.mu.Unlock()
	s.kick()

	if s.store != nil {
		if err := s.store.Delete(id); err != nil {
			slog.Warn("scheduler: failed to delete persisted entry", "id", id, "error", err)
		}
	}

	s.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.ScheduleChangePayload{
		Change:     events.EventScheduleRemoved,
		EntryID:    id,
		Title:      re.entry.Title,
		Expression: re.entry.Expression,
	}))

	slog.Info("scheduler: removed entry", "id", id)
	return nil
}

// Get returns a schedule entry by ID.
func (s *Scheduler) Get(id string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	re, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	e := re.entry
	return &e, true
}

// List returns all schedule entries, newest first.
func (s *Scheduler) List() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]*Entry, 0, len(s.entries))
	for _, re := range s.entries {
		e := re.entry
		result = append(result, &e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// NextFire returns the pending fire time for an entry, if it has one.
func (s *Scheduler) NextFire(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	re, ok := s.entries[id]
	if !ok || re.dead || !re.entry.Enabled {
		return time.Time{}, false
	}
	return re.next, true
}

func (s *Scheduler) loadPersistedEntries() {
	if s.store == nil {
		return
	}

	list, err := s.store.List()
	if err != nil {
		slog.Warn("scheduler: failed to load persisted entries", "error", err)
		return
	}

	now := time.Now()
	for _, e := range list {
		trigger, err := ParseTrigger(e.Expression)
		if err != nil {
			slog.Warn("scheduler: invalid persisted expression", "id", e.ID, "error", err)
			continue
		}
		re := &runtimeEntry{entry: *e, trigger: trigger}
		s.computeNext(re, now)
		s.entries[e.ID] = re
		slog.Info("scheduler: loaded persisted entry", "id", e.ID, "title", e.Title)
	}
}

// kick wakes the fire loop so it recomputes its sleep.
func (s *Scheduler) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) fireLoop() {
	for {
		wait := s.untilNext(time.Now())
		timer := time.NewTimer(wait)

		select {
		case <-s.done:
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
			s.fireDue(time.Now())
		}
	}
}

// untilNext returns how long to sleep before the earliest pending fire.
func (s *Scheduler) untilNext(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var earliest time.Time
	for _, re := range s.entries {
		if re.dead || !re.entry.Enabled {
			continue
		}
		if earliest.IsZero() || re.next.Before(earliest) {
			earliest = re.next
		}
	}
	if earliest.IsZero() {
		return idleWait
	}
	if wait := earliest.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// fireDue triggers every enabled entry whose fire time has arrived.
func (s *Scheduler) fireDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, re := range s.entries {
		if re.dead || !re.entry.Enabled || re.next.After(now) {
			continue
		}
		s.fire(re, now)
	}
}

// fire triggers one entry and advances it. Caller must hold s.mu.
func (s *Scheduler) fire(re *runtimeEntry, now time.Time) {
	scheduled := re.next
	re.entry.RunCount++
	t := now
	re.entry.LastFiredAt = &t

	s.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.ScheduleTriggerPayload{
		EntryID:      re.entry.ID,
		Title:        re.entry.Title,
		Expression:   re.entry.Expression,
		ScheduledFor: scheduled,
		FiredAt:      now,
		RunCount:     re.entry.RunCount,
	}))

	if s.store != nil {
		firing := &Firing{
			EntryID:      re.entry.ID,
			Expression:   re.entry.Expression,
			ScheduledFor: scheduled,
			FiredAt:      now,
			RunCount:     re.entry.RunCount,
		}
		if err := s.store.RecordFiring(firing); err != nil {
			slog.Warn("scheduler: failed to record firing", "id", re.entry.ID, "error", err)
		}
	}

	if re.entry.MaxRuns > 0 && re.entry.RunCount >= re.entry.MaxRuns {
		re.entry.Enabled = false
		slog.Info("scheduler: entry reached max runs, disabled", "id", re.entry.ID, "runs", re.entry.RunCount)
		s.bus.Publish(events.NewTypedEvent(events.SourceScheduler, events.ScheduleChangePayload{
			Change:     events.EventScheduleDisabled,
			EntryID:    re.entry.ID,
			Title:      re.entry.Title,
			Expression: re.entry.Expression,
		}))
	} else {
		s.computeNext(re, now)
	}

	if s.store != nil {
		if err := s.store.Save(&re.entry); err != nil {
			slog.Warn("scheduler: failed to update persisted entry", "id", re.entry.ID, "error", err)
		}
	}

	slog.Info("scheduler: triggered", "id", re.entry.ID, "scheduled_for", scheduled, "run_count", re.entry.RunCount)
}

// computeNext advances the entry's pending fire time past now.
func (s *Scheduler) computeNext(re *runtimeEntry, now time.Time) {
	next, err := re.trigger.Next(now)
	if err != nil {
		if !errors.Is(err, oncalendar.ErrExhausted) {
			slog.Warn("scheduler: trigger failed", "id", re.entry.ID, "error", err)
		}
		re.dead = true
		return
	}
	re.next = next
}
