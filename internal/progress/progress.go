// Package progress carries (percent, message) events from extractors to whoever
// persists or displays them. Reporters never block the extraction that feeds them.
package progress

import "sync"

// Event is a single progress update.
type Event struct {
	Percent int
	Message string
}

// Reporter receives progress updates. Implementations must not block.
type Reporter interface {
	Report(percent int, message string)
}

// ReporterFunc adapts a function into a Reporter.
type ReporterFunc func(percent int, message string)

func (f ReporterFunc) Report(percent int, message string) { f(percent, message) }

type nop struct{}

func (nop) Report(int, string) {}

// Nop returns a Reporter that discards everything.
func Nop() Reporter { return nop{} }

// OrNop returns r, or a no-op reporter when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return nop{}
	}
	return r
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Channel is a bounded, monotonic Reporter backed by a buffered channel.
// When the buffer is full the event is dropped rather than waiting for the consumer.
type Channel struct {
	mu      sync.Mutex
	ch      chan Event
	last    int
	closed  bool
	dropped int
}

// NewChannel returns a Channel with the given buffer size (minimum 1).
func NewChannel(size int) *Channel {
	if size < 1 {
		size = 1
	}
	return &Channel{ch: make(chan Event, size)}
}

// Report enqueues an event. Percent is clamped to [0,100] and never goes below a value
// already reported.
func (c *Channel) Report(percent int, message string) {
	percent = clamp(percent)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if percent < c.last {
		percent = c.last
	}
	c.last = percent
	select {
	case c.ch <- Event{Percent: percent, Message: message}:
	default:
		c.dropped++
	}
}

// Events returns the receive side. It is closed by Close.
func (c *Channel) Events() <-chan Event { return c.ch }

// Close stops accepting events and closes the receive side. Safe to call twice.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Dropped reports how many events were discarded because the buffer was full.
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Last returns the highest percent reported so far.
func (c *Channel) Last() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

type scaled struct {
	parent Reporter
	lo, hi int
}

// Scale maps a child's 0..100 range onto [lo,hi] of parent, so a sub-step such as
// OCR of one page can report its own progress inside the caller's window.
func Scale(parent Reporter, lo, hi int) Reporter {
	lo, hi = clamp(lo), clamp(hi)
	if hi < lo {
		hi = lo
	}
	return scaled{parent: OrNop(parent), lo: lo, hi: hi}
}

func (s scaled) Report(percent int, message string) {
	percent = clamp(percent)
	s.parent.Report(s.lo+(s.hi-s.lo)*percent/100, message)
}

// Recorder keeps every event it receives. Useful in tests and for the CLI.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Percent: percent, Message: message})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
