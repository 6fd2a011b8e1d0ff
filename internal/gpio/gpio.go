// Package gpio provides raw button edges with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Edge is a raw level change of one button's line, timestamped by the
// producer. Level is the raw line level: true = high.
type Edge struct {
	Button logic.ButtonID
	Level  bool
	Time   time.Time
}

// PostFunc hands an edge to the consumer. It must not block.
// It reports whether the edge was accepted.
type PostFunc func(Edge) bool

// Source reads raw button levels.
type Source interface {
	// Level returns the raw level of the button's line.
	Level(id logic.ButtonID) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pull selects the bias applied to an input line.
type Pull string

const (
	PullNone Pull = "none"
	PullUp   Pull = "up"
	PullDown Pull = "down"
)

// Line describes one button input.
type Line struct {
	Button logic.ButtonID // line offset on the chip
	Pull   Pull
}

// DefaultChip is the GPIO chip used when none is configured.
const DefaultChip = "gpiochip0"
