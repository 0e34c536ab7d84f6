package orchestrator

import (
	"log/slog"
	"time"

	"github.com/0xBAD5EED5/deathcounter/internal/orchestrator/eventlog"
	"github.com/0xBAD5EED5/deathcounter/internal/resilience"
)

// Event re-exported for the shells
type Event = eventlog.Event

// Sink receives status events. Publish is called from the worker goroutine
// and must not block for long.
type Sink interface {
	Publish(e Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// LogSink writes events to slog; used by the headless shell.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(e Event) {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	switch e.Kind {
	case eventlog.KindError:
		log.Error(e.Message, "count", e.Count)
	default:
		log.Info(e.Message, "kind", string(e.Kind), "count", e.Count)
	}
}

// Tee publishes to every sink in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			s.Publish(e)
		}
	})
}

// BreakerNotice returns a breaker hook that reports OCR outages on sink.
func BreakerNotice(sink Sink) func(from, to resilience.State) {
	return func(_, to resilience.State) {
		switch to {
		case resilience.Open:
			sink.Publish(stamp(Event{Kind: eventlog.KindError, Message: "OCR engine unavailable, cycles skipped until it recovers"}))
		case resilience.Closed:
			sink.Publish(stamp(Event{Kind: eventlog.KindInfo, Message: "OCR engine recovered"}))
		}
	}
}

func stamp(e Event) Event {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return e
}
