package trace

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Heartbeat emits a driver-scope event every interval so a long scenario
// run shows it is alive even while no span ends. Each beat carries the
// elapsed time and, once SetStatus is called, a progress note.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	start    time.Time
	status   atomic.Pointer[func() string]
	stop     chan struct{}
	done     sync.WaitGroup
	once     sync.Once
}

// StartHeartbeat starts beating on tracer. It returns nil, which is safe
// to use, when tracer is disabled or interval is not positive.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		start:    time.Now(),
		stop:     make(chan struct{}),
	}
	h.done.Add(1)
	go h.loop()
	return h
}

// SetStatus installs fn as the source of the progress note. fn is called
// from the heartbeat goroutine.
func (h *Heartbeat) SetStatus(fn func() string) {
	if h == nil {
		return
	}
	h.status.Store(&fn)
}

// Beat emits one heartbeat event now.
func (h *Heartbeat) Beat(n uint64) {
	if h == nil {
		return
	}
	detail := fmt.Sprintf("#%d +%s", n, time.Since(h.start).Round(time.Millisecond))
	if fn := h.status.Load(); fn != nil && *fn != nil {
		if note := (*fn)(); note != "" {
			detail += " " + note
		}
	}
	h.tracer.Emit(&Event{
		Time:   time.Now(),
		Seq:    NextSeq(),
		Kind:   KindHeartbeat,
		Scope:  ScopeDriver,
		GID:    getGoroutineID(),
		Name:   "heartbeat",
		Detail: detail,
	})
}

func (h *Heartbeat) loop() {
	defer h.done.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	var n uint64
	for {
		select {
		case <-ticker.C:
			n++
			h.Beat(n)
		case <-h.stop:
			return
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. It may be called
// more than once.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.stop)
		h.done.Wait()
	})
}
