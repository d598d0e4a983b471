package types

import (
	"sync"
)

// recorderCap bounds the in-memory event history; the oldest events are
// dropped once the cap is reached.
const recorderCap = 1024

// Recorder is a bounded in-memory event sink shared by the core components.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder returns an empty event recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends an event, evicting the oldest entry when full.
func (r *Recorder) Emit(ev Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) >= recorderCap {
		r.events = r.events[1:]
	}
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsNamed returns the recorded events with the given name, oldest first.
func (r *Recorder) EventsNamed(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}
