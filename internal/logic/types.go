// Package logic contains the pure gesture classification logic for buttons.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"time"
)

// ButtonID is the physical identifier of a button (its GPIO line offset).
type ButtonID int

// NoButton marks an unused button identifier, e.g. the partner of a
// single-button event.
const NoButton ButtonID = -1

// EventKind represents a classified button event.
type EventKind string

const (
	EventPressed           EventKind = "PRESSED"
	EventReleased          EventKind = "RELEASED"
	EventClick             EventKind = "CLICK"
	EventLongPress         EventKind = "LONG_PRESS"
	EventDoubleClick       EventKind = "DOUBLE_CLICK"
	EventDoubleLongPress   EventKind = "DOUBLE_LONG_PRESS"
	EventCombinedPress     EventKind = "COMBINED_PRESS"
	EventCombinedLongPress EventKind = "COMBINED_LONG_PRESS"
	EventCombinedRelease   EventKind = "COMBINED_RELEASE"
)

// AllEventKinds lists every kind in a stable order.
var AllEventKinds = []EventKind{
	EventPressed,
	EventReleased,
	EventClick,
	EventLongPress,
	EventDoubleClick,
	EventDoubleLongPress,
	EventCombinedPress,
	EventCombinedLongPress,
	EventCombinedRelease,
}

// Combined reports whether the kind belongs to a button pair.
func (k EventKind) Combined() bool {
	switch k {
	case EventCombinedPress, EventCombinedLongPress, EventCombinedRelease:
		return true
	}
	return false
}

// Event is an immutable classified event.
type Event struct {
	Kind    EventKind
	Button  ButtonID
	Partner ButtonID // second button of a pair, NoButton otherwise
	Time    time.Time
}

func newEvent(kind EventKind, id ButtonID, t time.Time) Event {
	return Event{Kind: kind, Button: id, Partner: NoButton, Time: t}
}

// Firmware defaults.
const (
	DefaultDebounce        = 50 * time.Millisecond
	DefaultLongPress       = 1000 * time.Millisecond
	DefaultDoubleClick     = 300 * time.Millisecond
	DefaultDoubleLongPress = 2000 * time.Millisecond
)

// ButtonConfig is the immutable configuration of one button.
type ButtonConfig struct {
	ID   ButtonID
	Name string

	// ActiveLow means a raw low level is "pressed" (pull-up wiring).
	ActiveLow bool

	Debounce        time.Duration
	LongPress       time.Duration
	DoubleClick     time.Duration
	DoubleLongPress time.Duration
}

// DefaultButtonConfig returns an active-low button with the firmware timings.
func DefaultButtonConfig(id ButtonID, name string) ButtonConfig {
	return ButtonConfig{
		ID:              id,
		Name:            name,
		ActiveLow:       true,
		Debounce:        DefaultDebounce,
		LongPress:       DefaultLongPress,
		DoubleClick:     DefaultDoubleClick,
		DoubleLongPress: DefaultDoubleLongPress,
	}
}

// Pressed converts a raw level into the logical pressed state.
func (c ButtonConfig) Pressed(level bool) bool {
	return level != c.ActiveLow
}

// RawLevel converts a logical pressed state into the raw level.
func (c ButtonConfig) RawLevel(pressed bool) bool {
	return pressed != c.ActiveLow
}

// Validate checks that every duration is positive.
func (c ButtonConfig) Validate() error {
	if c.ID < 0 {
		return errors.New("button id must not be negative")
	}
	if c.Debounce <= 0 {
		return errors.New("debounce must be positive")
	}
	if c.LongPress <= 0 {
		return errors.New("long press threshold must be positive")
	}
	if c.DoubleClick <= 0 {
		return errors.New("double click window must be positive")
	}
	if c.DoubleLongPress <= 0 {
		return errors.New("double long press threshold must be positive")
	}
	return nil
}

// PairConfig configures a combined (chorded) pair of buttons.
type PairConfig struct {
	A, B      ButtonID
	LongPress time.Duration

	// SuppressIndividual mutes the per-button gestures of A and B for the
	// episodes during which the chord formed. PRESSED and RELEASED are
	// always delivered.
	SuppressIndividual bool
}

// Validate checks the pair is well formed.
func (c PairConfig) Validate() error {
	if c.A == c.B {
		return errors.New("pair buttons must differ")
	}
	if c.LongPress <= 0 {
		return errors.New("combined long press threshold must be positive")
	}
	return nil
}

// Key returns an order-independent key for the pair.
func (c PairConfig) Key() [2]ButtonID {
	if c.A < c.B {
		return [2]ButtonID{c.A, c.B}
	}
	return [2]ButtonID{c.B, c.A}
}

// EventCounts tracks the number of each event kind since startup.
type EventCounts struct {
	Pressed           int
	Released          int
	Click             int
	LongPress         int
	DoubleClick       int
	DoubleLongPress   int
	CombinedPress     int
	CombinedLongPress int
	CombinedRelease   int
}

// Add increments the counter for kind.
func (c *EventCounts) Add(kind EventKind) {
	switch kind {
	case EventPressed:
		c.Pressed++
	case EventReleased:
		c.Released++
	case EventClick:
		c.Click++
	case EventLongPress:
		c.LongPress++
	case EventDoubleClick:
		c.DoubleClick++
	case EventDoubleLongPress:
		c.DoubleLongPress++
	case EventCombinedPress:
		c.CombinedPress++
	case EventCombinedLongPress:
		c.CombinedLongPress++
	case EventCombinedRelease:
		c.CombinedRelease++
	}
}

// Total returns the sum of all counters.
func (c EventCounts) Total() int {
	return c.Pressed + c.Released + c.Click + c.LongPress + c.DoubleClick +
		c.DoubleLongPress + c.CombinedPress + c.CombinedLongPress + c.CombinedRelease
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
