package logic

import "time"

// ClassifierState is the externally visible gesture state of a button.
type ClassifierState int

const (
	StateIdle ClassifierState = iota
	StatePressed
	StateLongPressActive
	StateWaitingSecondPress
	StateDoubleClickActive
	StateDoubleLongPressActive
)

func (s ClassifierState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StatePressed:
		return "PRESSED"
	case StateLongPressActive:
		return "LONG_PRESS_ACTIVE"
	case StateWaitingSecondPress:
		return "WAITING_SECOND_PRESS"
	case StateDoubleClickActive:
		return "DOUBLE_CLICK_ACTIVE"
	case StateDoubleLongPressActive:
		return "DOUBLE_LONG_PRESS_ACTIVE"
	}
	return "UNKNOWN"
}

// phase is the internal state; the long-press variants are phases with a
// triggered flag set.
type phase int

const (
	phaseIdle phase = iota
	phasePressed
	phaseWaiting
	phaseDouble
)

// Classifier turns debounced press/release commits and elapsed time into
// gesture events for a single button.
//
// A short release emits CLICK immediately; a second short press inside the
// double click window additionally emits DOUBLE_CLICK on its release.
type Classifier struct {
	cfg ButtonConfig

	phase       phase
	lastPress   time.Time
	lastRelease time.Time
	// presses in the current episode: 1 after the first press, 2 once the
	// second press of a double click arrives
	pressCount int

	longTriggered       bool
	doubleLongTriggered bool
	suppressed          bool
}

// NewClassifier creates an idle classifier.
func NewClassifier(cfg ButtonConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Config returns the button configuration.
func (c *Classifier) Config() ButtonConfig {
	return c.cfg
}

// State returns the current gesture state.
func (c *Classifier) State() ClassifierState {
	switch c.phase {
	case phasePressed:
		if c.longTriggered {
			return StateLongPressActive
		}
		return StatePressed
	case phaseWaiting:
		return StateWaitingSecondPress
	case phaseDouble:
		if c.doubleLongTriggered {
			return StateDoubleLongPressActive
		}
		return StateDoubleClickActive
	}
	return StateIdle
}

// PressCount returns the number of presses in the current episode.
func (c *Classifier) PressCount() int {
	return c.pressCount
}

// Suppress mutes gesture events until the classifier next returns to idle.
// PRESSED and RELEASED are still emitted.
func (c *Classifier) Suppress() {
	if c.phase != phaseIdle {
		c.suppressed = true
	}
}

// Suppressed reports whether the current episode is muted.
func (c *Classifier) Suppressed() bool {
	return c.suppressed
}

// Press handles a debounced press at t.
func (c *Classifier) Press(t time.Time) []Event {
	switch c.phase {
	case phaseIdle:
		c.startEpisode(t)
	case phaseWaiting:
		if t.Sub(c.lastRelease) < c.cfg.DoubleClick {
			c.phase = phaseDouble
			c.lastPress = t
			c.pressCount = 2
		} else {
			// Window expired before a tick noticed it.
			c.reset()
			c.startEpisode(t)
		}
	default:
		// Already pressed; the debouncer never commits the same level twice.
		return nil
	}
	return []Event{newEvent(EventPressed, c.cfg.ID, t)}
}

// Release handles a debounced release at t.
func (c *Classifier) Release(t time.Time) []Event {
	switch c.phase {
	case phasePressed:
		events := c.checkHold(t)
		c.lastRelease = t
		events = append(events, newEvent(EventReleased, c.cfg.ID, t))
		if c.longTriggered || c.suppressed {
			c.reset()
			return events
		}
		events = append(events, newEvent(EventClick, c.cfg.ID, t))
		c.phase = phaseWaiting
		return events

	case phaseDouble:
		events := c.checkHold(t)
		c.lastRelease = t
		events = append(events, newEvent(EventReleased, c.cfg.ID, t))
		if !c.doubleLongTriggered && !c.suppressed {
			events = append(events, newEvent(EventDoubleClick, c.cfg.ID, t))
		}
		c.reset()
		return events
	}
	// Release without a press we saw (e.g. held at registration).
	return nil
}

// Tick evaluates time based transitions at at: long press thresholds while
// held and the double click timeout while waiting.
func (c *Classifier) Tick(at time.Time) []Event {
	switch c.phase {
	case phasePressed, phaseDouble:
		return c.checkHold(at)
	case phaseWaiting:
		if at.Sub(c.lastRelease) >= c.cfg.DoubleClick {
			c.reset()
		}
	}
	return nil
}

func (c *Classifier) checkHold(at time.Time) []Event {
	held := at.Sub(c.lastPress)
	switch c.phase {
	case phasePressed:
		if c.longTriggered || held < c.cfg.LongPress {
			return nil
		}
		c.longTriggered = true
		if c.suppressed {
			return nil
		}
		return []Event{newEvent(EventLongPress, c.cfg.ID, c.lastPress.Add(c.cfg.LongPress))}

	case phaseDouble:
		if c.doubleLongTriggered || held < c.cfg.DoubleLongPress {
			return nil
		}
		c.doubleLongTriggered = true
		if c.suppressed {
			return nil
		}
		return []Event{newEvent(EventDoubleLongPress, c.cfg.ID, c.lastPress.Add(c.cfg.DoubleLongPress))}
	}
	return nil
}

func (c *Classifier) startEpisode(t time.Time) {
	c.phase = phasePressed
	c.lastPress = t
	c.pressCount = 1
}

// reset returns to idle and clears the episode flags.
func (c *Classifier) reset() {
	c.phase = phaseIdle
	c.pressCount = 0
	c.longTriggered = false
	c.doubleLongTriggered = false
	c.suppressed = false
}
