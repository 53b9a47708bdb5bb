// Package notify provides the change-notification layer between the MimirKB
// engine and its collaborators.
//
// The engine emits an Event after every successful Create, Update, Delete,
// and Move. Delivery is fire-and-forget: a failed or slow consumer must
// never fail, block, or roll back the mutation that produced the event.
// The Registry enforces this by delivering over buffered per-subscriber
// channels and pruning any subscriber whose buffer is full.
//
// What consumes the events — a WebSocket fan-out, an audit log, a no-op —
// is entirely external; the engine only depends on the Sink interface.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the mutation that produced an event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
	EventMoved   EventKind = "moved"
)

// Event describes one successful mutation.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Kind is the mutation type.
	Kind EventKind `json:"kind"`

	// Path is the entry path the mutation applies to. For moves this is
	// the resolved destination path.
	Path string `json:"path"`

	// OldPath is set for moves only: the path the entry vacated.
	OldPath string `json:"old_path,omitempty"`

	// At is the event timestamp.
	At time.Time `json:"at"`
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(kind EventKind, path string) Event {
	return Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Path: path,
		At:   time.Now().UTC(),
	}
}

// Sink receives mutation events from the engine.
//
// Implementations must not block: the engine calls Notify synchronously on
// the mutation path and relies on the sink to hand off quickly.
type Sink interface {
	Notify(Event)
}

// NopSink discards every event. The engine's default when no registry is
// wired in.
type NopSink struct{}

func (NopSink) Notify(Event) {}

// Registry is an explicit subscriber registry implementing Sink.
//
// Subscribers receive events over buffered channels. Notify never blocks:
// if a subscriber's buffer is full, the subscriber is dropped and its
// channel closed — a dead or slow consumer is pruned rather than allowed
// to stall the notifier.
type Registry struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[int]chan Event)}
}

// DefaultBuffer is the per-subscriber channel buffer used by Subscribe.
const DefaultBuffer = 64

// Subscribe registers a new consumer and returns its event channel plus a
// cancel function. The channel is closed on cancel and on pruning.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	return r.SubscribeBuffer(DefaultBuffer)
}

// SubscribeBuffer registers a consumer with an explicit buffer size.
func (r *Registry) SubscribeBuffer(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	ch := make(chan Event, buffer)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if ch, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// Notify delivers an event to every live subscriber without blocking.
// Subscribers that cannot accept the event are pruned.
func (r *Registry) Notify(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// Buffer full: the consumer is not keeping up. Prune it.
			delete(r.subs, id)
			close(ch)
		}
	}
}

// Len returns the current subscriber count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close drops and closes every subscriber channel.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}
