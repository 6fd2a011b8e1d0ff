package engine

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Wildcards for Subscribe.
const (
	AnyButton logic.ButtonID  = -2
	AnyKind   logic.EventKind = ""
)

// Handler receives events synchronously on the engine's consumer goroutine
// while the engine holds its lock. Handlers must return quickly and must not
// call back into the Engine.
type Handler interface {
	HandleEvent(logic.Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(logic.Event)

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev logic.Event) { f(ev) }

// Subscription identifies a registered handler.
type Subscription uint64

type subscription struct {
	id      Subscription
	button  logic.ButtonID
	kind    logic.EventKind
	handler Handler
}

func (s subscription) matches(ev logic.Event) bool {
	if s.kind != AnyKind && s.kind != ev.Kind {
		return false
	}
	if s.button == AnyButton {
		return true
	}
	return s.button == ev.Button || (ev.Partner != logic.NoButton && s.button == ev.Partner)
}

// Sink is the engine's ordered output: a bounded FIFO drained by one
// consumer, plus a table of handlers keyed by (button, kind).
//
// When the FIFO is full the newest event is dropped and counted.
type Sink struct {
	events  chan logic.Event
	dropped atomic.Uint64

	// overflowing is only touched by the publishing goroutine
	overflowing bool

	mu     sync.RWMutex
	subs   []subscription
	nextID Subscription
}

// NewSink creates a sink whose FIFO holds size events. A size of 0
// disables the FIFO; events then only reach handlers.
func NewSink(size int) *Sink {
	s := &Sink{}
	if size > 0 {
		s.events = make(chan logic.Event, size)
	}
	return s
}

// Publish dispatches ev to matching handlers, then offers it to the FIFO.
// It never blocks.
func (s *Sink) Publish(ev logic.Event) {
	s.mu.RLock()
	subs := s.subs
	s.mu.RUnlock()

	for _, sub := range subs {
		if sub.matches(ev) {
			sub.handler.HandleEvent(ev)
		}
	}

	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
		s.overflowing = false
	default:
		n := s.dropped.Add(1)
		if !s.overflowing {
			log.Printf("engine: event sink full (%d events), dropping %s for button %d (dropped=%d)",
				cap(s.events), ev.Kind, ev.Button, n)
			s.overflowing = true
		}
	}
}

// Events returns the FIFO for use in select loops. It is nil when the
// FIFO is disabled.
func (s *Sink) Events() <-chan logic.Event {
	return s.events
}

// Receive waits up to timeout for the next event. A timeout <= 0 waits
// until an event arrives or ctx is done.
func (s *Sink) Receive(ctx context.Context, timeout time.Duration) (logic.Event, bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case ev, ok := <-s.events:
		return ev, ok
	case <-ctx.Done():
		return logic.Event{}, false
	}
}

// Len returns the number of events waiting in the FIFO.
func (s *Sink) Len() int {
	return len(s.events)
}

// Dropped returns the number of events dropped because the FIFO was full.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Subscribe attaches h to events of kind for button. Use AnyButton and
// AnyKind as wildcards. A button matches combined events it takes part in.
func (s *Sink) Subscribe(button logic.ButtonID, kind logic.EventKind, h Handler) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := subscription{id: s.nextID, button: button, kind: kind, handler: h}
	// Copy on write: Publish iterates a snapshot without holding the lock.
	subs := make([]subscription, len(s.subs), len(s.subs)+1)
	copy(subs, s.subs)
	s.subs = append(subs, sub)
	return sub.id
}

// Unsubscribe removes a handler. It reports whether it was registered.
func (s *Sink) Unsubscribe(id Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.id != id {
			continue
		}
		subs := make([]subscription, 0, len(s.subs)-1)
		subs = append(subs, s.subs[:i]...)
		subs = append(subs, s.subs[i+1:]...)
		s.subs = subs
		return true
	}
	return false
}
