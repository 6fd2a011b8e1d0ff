package logic

import "time"

// Commit is a debounced level change.
type Commit struct {
	Level bool
	// Time is when the level became stable (the last raw edge), not when
	// the debounce interval expired.
	Time time.Time
}

// Debouncer commits a raw level only after it has been stable for the
// debounce interval. Every raw edge restarts the interval.
type Debouncer struct {
	interval time.Duration

	// Current stable (committed) level
	level bool
	// Pending level during debounce
	pending bool
	// Time when the pending level was last observed as an edge
	pendingSince time.Time
	hasPending   bool
}

// NewDebouncer creates a debouncer whose committed level starts at initial.
func NewDebouncer(interval time.Duration, initial bool) *Debouncer {
	return &Debouncer{interval: interval, level: initial}
}

// Level returns the committed level.
func (d *Debouncer) Level() bool {
	return d.level
}

// Pending reports whether a level change is waiting out the interval.
func (d *Debouncer) Pending() bool {
	return d.hasPending
}

// Edge records a raw level observed at t.
func (d *Debouncer) Edge(level bool, t time.Time) {
	if level == d.level {
		// Bounced back to the committed level, nothing to commit.
		d.hasPending = false
		return
	}
	d.pending = level
	d.pendingSince = t
	d.hasPending = true
}

// Peek reports the commit Due would make at now without making it.
func (d *Debouncer) Peek(now time.Time) (Commit, bool) {
	if !d.hasPending || now.Sub(d.pendingSince) < d.interval {
		return Commit{}, false
	}
	return Commit{Level: d.pending, Time: d.pendingSince}, true
}

// Due commits the pending level if it has been stable for the interval at now.
func (d *Debouncer) Due(now time.Time) (Commit, bool) {
	c, ok := d.Peek(now)
	if !ok {
		return Commit{}, false
	}
	d.level = c.Level
	d.hasPending = false
	return c, true
}

// StableUntil returns the latest instant at which the committed level is
// known to have held: the start of a pending change, or now.
func (d *Debouncer) StableUntil(now time.Time) time.Time {
	if d.hasPending && d.pendingSince.Before(now) {
		return d.pendingSince
	}
	return now
}
