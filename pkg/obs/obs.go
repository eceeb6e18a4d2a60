// ABOUTME: Observability sink boundary for pipeline and retrieval events
// ABOUTME: Fire-and-forget; implementations must never block the caller

package obs

import "time"

// Event is one structured observation emitted by an operation.
type Event struct {
	Operation string
	Duration  time.Duration
	InputSize int
	Outcome   string // "ok", "error", "timeout", "empty"
}

// Sink consumes events. Implementations must not block and must not fail
// the calling operation; dropping events under pressure is acceptable.
type Sink interface {
	Observe(Event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Observe(Event) {}

// Timed emits an event for an operation that started at the given time.
func Timed(s Sink, operation string, start time.Time, inputSize int, outcome string) {
	if s == nil {
		return
	}
	s.Observe(Event{
		Operation: operation,
		Duration:  time.Since(start),
		InputSize: inputSize,
		Outcome:   outcome,
	})
}
