package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// ScheduleTriggerPayload is emitted every time a schedule entry fires.
type ScheduleTriggerPayload struct {
	EntryID      string    `json:"entry_id"`
	Title        string    `json:"title,omitempty"`
	Expression   string    `json:"expression"`
	ScheduledFor time.Time `json:"scheduled_for"`
	FiredAt      time.Time `json:"fired_at"`
	RunCount     int       `json:"run_count"`
}

func (ScheduleTriggerPayload) EventType() EventType { return EventScheduleTrigger }

// ScheduleChangePayload describes an entry being added, removed, or disabled.
type ScheduleChangePayload struct {
	Change     EventType `json:"-"`
	EntryID    string    `json:"entry_id"`
	Title      string    `json:"title,omitempty"`
	Expression string    `json:"expression,omitempty"`
}

func (p ScheduleChangePayload) EventType() EventType { return p.Change }

// NewTypedEvent wraps a typed payload in an Event.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// ExtractPayload decodes an event's payload map back into a typed payload.
func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

func GetScheduleTriggerPayload(e Event) (ScheduleTriggerPayload, bool) {
	return ExtractPayload[ScheduleTriggerPayload](e)
}
