package coordinator

import (
	"testing"
	"time"
)

func TestEmitterDeliversInOrder(t *testing.T) {
	emitter := NewEventEmitter(8)
	emitter.Emit(Event{Type: EventSkillStarted, Skill: "retrieve"})
	emitter.Emit(Event{Type: EventSkillCompleted, Skill: "retrieve"})
	emitter.Close()

	var got []EventType
	for event := range emitter.Events() {
		got = append(got, event.Type)
		if event.Timestamp.IsZero() {
			t.Error("timestamp not stamped on emit")
		}
	}
	if len(got) != 2 || got[0] != EventSkillStarted || got[1] != EventSkillCompleted {
		t.Errorf("events = %v", got)
	}
	if emitter.DroppedCount() != 0 {
		t.Errorf("dropped = %d", emitter.DroppedCount())
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	emitter := NewEventEmitter(1)
	emitter.Emit(Event{Type: EventSkillStarted})

	// Nobody drains; the second emit must give up rather than block.
	done := make(chan struct{})
	go func() {
		emitter.Emit(Event{Type: EventSkillCompleted})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emit blocked on a full channel")
	}

	if emitter.DroppedCount() != 1 {
		t.Errorf("dropped = %d, want 1", emitter.DroppedCount())
	}
}

func TestEmitterPreservesExplicitTimestamp(t *testing.T) {
	emitter := NewEventEmitter(1)
	stamp := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	emitter.Emit(Event{Type: EventRunCompleted, Timestamp: stamp})
	emitter.Close()

	event := <-emitter.Events()
	if !event.Timestamp.Equal(stamp) {
		t.Errorf("timestamp = %v, want %v", event.Timestamp, stamp)
	}
}
