package logic

import "time"

// Chord detects the simultaneous hold of two buttons.
// It only sees the debounced pressed state of A and B.
type Chord struct {
	cfg PairConfig

	chorded       bool
	start         time.Time
	longTriggered bool
}

// NewChord creates a detector for the pair.
func NewChord(cfg PairConfig) *Chord {
	return &Chord{cfg: cfg}
}

// Config returns the pair configuration.
func (c *Chord) Config() PairConfig {
	return c.cfg
}

// Chorded reports whether both buttons are currently held together.
func (c *Chord) Chorded() bool {
	return c.chorded
}

// Involves reports whether id is one of the pair's buttons.
func (c *Chord) Involves(id ButtonID) bool {
	return id == c.cfg.A || id == c.cfg.B
}

// Update handles a debounce commit affecting A or B at t.
func (c *Chord) Update(aPressed, bPressed bool, t time.Time) []Event {
	both := aPressed && bPressed
	switch {
	case both && !c.chorded:
		c.chorded = true
		c.start = t
		c.longTriggered = false
		return []Event{c.event(EventCombinedPress, t)}
	case !both && c.chorded:
		c.chorded = false
		c.longTriggered = false
		return []Event{c.event(EventCombinedRelease, t)}
	}
	return nil
}

// Tick emits COMBINED_LONG_PRESS once per chord when the hold reaches the
// threshold at at.
func (c *Chord) Tick(at time.Time) []Event {
	if !c.chorded || c.longTriggered {
		return nil
	}
	if at.Sub(c.start) < c.cfg.LongPress {
		return nil
	}
	c.longTriggered = true
	return []Event{c.event(EventCombinedLongPress, c.start.Add(c.cfg.LongPress))}
}

func (c *Chord) event(kind EventKind, t time.Time) Event {
	return Event{Kind: kind, Button: c.cfg.A, Partner: c.cfg.B, Time: t}
}
