package coordinator

import (
	"log"
	"sync/atomic"
	"time"
)

// EventType represents the type of coordinator event.
type EventType string

const (
	// EventPlanProposed indicates the planner produced a candidate plan.
	EventPlanProposed EventType = "plan_proposed"
	// EventPlanValidated indicates the plan passed validation.
	EventPlanValidated EventType = "plan_validated"
	// EventSkillStarted indicates a skill began executing.
	EventSkillStarted EventType = "skill_started"
	// EventSkillCompleted indicates a skill finished successfully.
	EventSkillCompleted EventType = "skill_completed"
	// EventSkillFailed indicates a skill failed.
	EventSkillFailed EventType = "skill_failed"
	// EventSkillSkipped indicates a failed skill was skipped because nothing
	// downstream depends on it.
	EventSkillSkipped EventType = "skill_skipped"
	// EventFallback indicates a fallback layer engaged.
	EventFallback EventType = "fallback"
	// EventRunCompleted indicates the request finished.
	EventRunCompleted EventType = "run_completed"
	// EventRunCancelled indicates the caller cancelled the request.
	EventRunCancelled EventType = "run_cancelled"
)

// Event is emitted by a coordinator as a request progresses. Subscribers
// use it for progress display and audit.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related request.
	TaskID string
	// Skill is the related skill name, if applicable.
	Skill string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Duration is the elapsed time, for completion events.
	Duration time.Duration
}

// EventEmitter provides thread-safe event emission with bounded buffering.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates an EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event, dropping it if no receiver drains the channel in
// time. Execution never blocks on a slow subscriber.
func (e *EventEmitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 { // log every 10th drop to avoid spam
			log.Printf("[coordinator] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// Events returns the receive side of the event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// DroppedCount returns the total number of dropped events.
func (e *EventEmitter) DroppedCount() uint64 {
	return e.droppedCount.Load()
}

// Close closes the event channel. Emit must not be called afterwards.
func (e *EventEmitter) Close() {
	close(e.events)
}
