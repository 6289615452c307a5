package scenario

import (
	"fmt"
	"sync"
)

// Status is the state of one scenario file during RunAll.
type Status uint8

const (
	StatusQueued Status = iota
	StatusLoading
	StatusRunning
	StatusPassed
	StatusFailed // ran, with failing queries
	StatusError  // could not be loaded, built or run
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusLoading:
		return "loading"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Finished reports whether no further event follows for the file.
func (s Status) Finished() bool {
	return s >= StatusPassed
}

// Event reports progress of one scenario file. Passed and Total are set
// once the file has run.
type Event struct {
	Path   string
	Status Status
	Passed int
	Total  int
}

// ProgressSink receives events from concurrent workers.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events to a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(ev Event) {
	s.Ch <- ev
}

// Recorder keeps every event in arrival order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) OnEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Tally counts queued and finished files.
type Tally struct {
	mu       sync.Mutex
	queued   int
	finished int
	failed   int
}

func (t *Tally) OnEvent(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case ev.Status == StatusQueued:
		t.queued++
	case ev.Status.Finished():
		t.finished++
		if ev.Status != StatusPassed {
			t.failed++
		}
	}
}

// String renders the tally as "3/8 scenarios, 1 failed".
func (t *Tally) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := fmt.Sprintf("%d/%d scenarios", t.finished, t.queued)
	if t.failed > 0 {
		s += fmt.Sprintf(", %d failed", t.failed)
	}
	return s
}

// FanOut delivers every event to each non-nil sink in order.
func FanOut(sinks ...ProgressSink) ProgressSink {
	out := make(fanOut, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type fanOut []ProgressSink

func (f fanOut) OnEvent(ev Event) {
	for _, s := range f {
		s.OnEvent(ev)
	}
}

func emit(sink ProgressSink, ev Event) {
	if sink != nil {
		sink.OnEvent(ev)
	}
}
