package pipeline

import "sync"

// Event is a pipeline lifecycle event. Minimal and stable: name plus
// device id and optional fields via key/values.
type Event struct {
	Name     string
	DeviceID string
	Fields   map[string]any
}

// EventPublisher receives events from the pipeline. Implementations
// should be lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher keeps the most recent events in a ring for the admin
// API's recent-events view.
type MemoryPublisher struct {
	mu     sync.Mutex
	buf    []Event
	next   int
	filled bool
}

func NewMemoryPublisher(size int) *MemoryPublisher {
	if size <= 0 {
		size = 64
	}
	return &MemoryPublisher{buf: make([]Event, size)}
}

func (p *MemoryPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf[p.next] = ev
	p.next++
	if p.next == len(p.buf) {
		p.next = 0
		p.filled = true
	}
}

// Recent returns events oldest first.
func (p *MemoryPublisher) Recent() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.filled {
		out := make([]Event, p.next)
		copy(out, p.buf[:p.next])
		return out
	}
	out := make([]Event, 0, len(p.buf))
	out = append(out, p.buf[p.next:]...)
	out = append(out, p.buf[:p.next]...)
	return out
}
