// Package event carries the typed notifications the download and launch
// pipelines publish to their consumer (the CLI, or any other shell).
package event

import (
	"sync"
	"time"
)

type Kind string

const (
	Progress      Kind = "progress"
	CategoryTick  Kind = "category-progress"
	ProgressTime  Kind = "progress-time"
	EstimatedTime Kind = "estimated-time"
	Done          Kind = "done"
	Error         Kind = "error"

	Debug Kind = "debug"
	Data  Kind = "data"
	Close Kind = "close"
)

// Event is a single notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind     Kind
	Category string
	Message  string
	Percent  float64
	Duration time.Duration
	Code     int
}

// Name returns the wire name of the event. Category-scoped progress events
// are named "<category>-progress".
func (e Event) Name() string {
	if e.Kind == CategoryTick && e.Category != "" {
		return e.Category + "-progress"
	}
	return string(e.Kind)
}

// Sink receives events. Implementations must be safe for concurrent use.
type Sink func(Event)

// Discard drops every event.
func Discard(Event) {}

// Emit delivers e to s if s is non-nil.
func (s Sink) Emit(e Event) {
	if s != nil {
		s(e)
	}
}

// Serialize wraps a sink so that deliveries never interleave.
func Serialize(s Sink) Sink {
	var mu sync.Mutex
	return func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		s.Emit(e)
	}
}

// Recorder collects events in memory. It is used by tests and by callers
// that inspect a run after it finishes.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Sink() Sink {
	return func(e Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	}
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have the given kind.
func (r *Recorder) Count(kind Kind) int {
	n := 0
	for _, e := range r.Events() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent event of the given kind.
func (r *Recorder) Last(kind Kind) (Event, bool) {
	events := r.Events()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			return events[i], true
		}
	}
	return Event{}, false
}
