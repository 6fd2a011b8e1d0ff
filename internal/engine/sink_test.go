package engine

import (
	"context"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

func event(kind logic.EventKind, button logic.ButtonID) logic.Event {
	return logic.Event{Kind: kind, Button: button, Partner: logic.NoButton, Time: epoch}
}

func TestSinkDropsNewestWhenFull(t *testing.T) {
	s := NewSink(2)
	s.Publish(event(logic.EventPressed, 1))
	s.Publish(event(logic.EventReleased, 1))
	s.Publish(event(logic.EventClick, 1))

	if s.Len() != 2 {
		t.Errorf("Len: got %d, want 2", s.Len())
	}
	if s.Dropped() != 1 {
		t.Errorf("Dropped: got %d, want 1", s.Dropped())
	}

	for _, want := range []logic.EventKind{logic.EventPressed, logic.EventReleased} {
		ev, ok := s.Receive(context.Background(), time.Second)
		if !ok || ev.Kind != want {
			t.Fatalf("got %v (ok=%v), want %s", ev.Kind, ok, want)
		}
	}

	// Space again after draining
	s.Publish(event(logic.EventLongPress, 1))
	if ev := <-s.Events(); ev.Kind != logic.EventLongPress {
		t.Errorf("got %s, want LONG_PRESS", ev.Kind)
	}
	if s.Dropped() != 1 {
		t.Errorf("Dropped should not change, got %d", s.Dropped())
	}
}

func TestSinkReceiveTimeout(t *testing.T) {
	s := NewSink(1)
	start := time.Now()
	if _, ok := s.Receive(context.Background(), 20*time.Millisecond); ok {
		t.Error("expected timeout on empty sink")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("Receive returned before the timeout")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := s.Receive(ctx, 0); ok {
		t.Error("expected cancelled receive to fail")
	}
}

func TestSinkDisabledFIFO(t *testing.T) {
	s := NewSink(0)
	var got int
	s.Subscribe(AnyButton, AnyKind, HandlerFunc(func(logic.Event) { got++ }))

	s.Publish(event(logic.EventClick, 1))
	if got != 1 {
		t.Errorf("handler calls: got %d, want 1", got)
	}
	if s.Events() != nil || s.Len() != 0 || s.Dropped() != 0 {
		t.Error("disabled FIFO should hold and drop nothing")
	}
}

func TestSinkSubscriptionMatching(t *testing.T) {
	s := NewSink(0)
	calls := map[string]int{}
	record := func(name string) Handler {
		return HandlerFunc(func(logic.Event) { calls[name]++ })
	}

	s.Subscribe(1, logic.EventClick, record("click1"))
	s.Subscribe(2, AnyKind, record("any2"))
	s.Subscribe(AnyButton, logic.EventCombinedPress, record("combined"))
	all := s.Subscribe(AnyButton, AnyKind, record("all"))

	s.Publish(event(logic.EventClick, 1))
	s.Publish(event(logic.EventLongPress, 1))
	s.Publish(event(logic.EventClick, 2))
	s.Publish(logic.Event{Kind: logic.EventCombinedPress, Button: 1, Partner: 2, Time: epoch})

	want := map[string]int{"click1": 1, "any2": 2, "combined": 1, "all": 4}
	for name, n := range want {
		if calls[name] != n {
			t.Errorf("%s: got %d calls, want %d", name, calls[name], n)
		}
	}

	if !s.Unsubscribe(all) {
		t.Error("Unsubscribe should report a registered handler")
	}
	if s.Unsubscribe(all) {
		t.Error("second Unsubscribe should report false")
	}
	s.Publish(event(logic.EventClick, 1))
	if calls["all"] != 4 {
		t.Errorf("unsubscribed handler called: %d", calls["all"])
	}
}
