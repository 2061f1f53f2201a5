package types

// Status event types. A run emits zero or more status events followed by
// exactly one complete or error event.
const (
	EventStatus   = "status"
	EventError    = "error"
	EventComplete = "complete"
)

// StatusEvent is a single progress message delivered to observers.
type StatusEvent struct {
	Type    string   `json:"type"`
	Message string   `json:"message,omitempty"`
	Results *Summary `json:"results,omitempty"`
}

// Terminal reports whether the event ends a run.
func (e StatusEvent) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// StatusSink receives status events from a run.
type StatusSink interface {
	Emit(event StatusEvent)
}

// SinkFunc adapts a function to StatusSink.
type SinkFunc func(event StatusEvent)

// Emit calls f(event).
func (f SinkFunc) Emit(event StatusEvent) { f(event) }

// DiscardSink drops every event.
var DiscardSink StatusSink = SinkFunc(func(StatusEvent) {})
