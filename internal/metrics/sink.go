// Observability sink implementation on top of Prometheus and zerolog
package metrics

import (
	"github.com/nainya/lexindex/internal/logger"
	"github.com/nainya/lexindex/pkg/obs"
)

// Sink forwards observability events into metrics and the debug log. Events
// go through a buffered channel and are dropped when the buffer is full, so
// Observe never blocks or fails the calling operation.
type Sink struct {
	m      *Metrics
	log    *logger.Logger
	events chan obs.Event
}

// NewSink starts the consumer goroutine.
func NewSink(m *Metrics, log *logger.Logger) *Sink {
	s := &Sink{
		m:      m,
		log:    log,
		events: make(chan obs.Event, 1024),
	}
	go s.consume()
	return s
}

// Observe implements obs.Sink.
func (s *Sink) Observe(ev obs.Event) {
	select {
	case s.events <- ev:
	default:
		// Buffer full: drop rather than block the operation.
	}
}

func (s *Sink) consume() {
	for ev := range s.events {
		switch ev.Operation {
		case "retrieve":
			s.m.RecordRetrieval(ev.Outcome, ev.Duration, ev.InputSize)
		case "embed":
			s.m.RecordEmbed(ev.Outcome, ev.Duration)
		case "upsert", "delete_by_node":
			s.m.RecordWrite(ev.Operation, ev.Outcome, ev.Duration)
		case "write_retry":
			s.m.WriteRetriesTotal.Inc()
		case "sibling_merge":
			s.m.SiblingMergesTotal.Add(float64(ev.InputSize))
		}
		if s.log != nil {
			s.log.Debug("observed").
				Str("operation", ev.Operation).
				Dur("duration_ms", ev.Duration).
				Int("input_size", ev.InputSize).
				Str("outcome", ev.Outcome).
				Msg("Operation observed")
		}
	}
}
