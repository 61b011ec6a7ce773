package types

import "time"

// EventType identifies an engine lifecycle notification.
type EventType string

const (
	EventExecutionQueued    EventType = "execution_queued"
	EventExecutionStarted   EventType = "execution_started"
	EventExecutionProgress  EventType = "execution_progress"
	EventExecutionCompleted EventType = "execution_completed"
	EventExecutionFailed    EventType = "execution_failed"
	EventExecutionCancelled EventType = "execution_cancelled"
	EventFeedbackCompleted  EventType = "feedback_completed"
)

// Event is a lifecycle notification published by the engine.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      any       `json:"data,omitempty"`
}

// EventSink receives engine lifecycle events. Implementations must not
// block; slow consumers should buffer internally.
type EventSink interface {
	Publish(event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(event Event)

// Publish implements EventSink.
func (f EventSinkFunc) Publish(event Event) { f(event) }
