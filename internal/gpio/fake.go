package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/button-sensor/internal/logic"
)

// FakeSource is a test double holding scripted raw levels.
type FakeSource struct {
	mu sync.Mutex

	// Levels holds the current raw level per button.
	Levels map[logic.ButtonID]bool

	// Post, if set, receives edges produced by Emit.
	Post PostFunc

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Level()
	ReadError error
}

// NewFakeSource creates a FakeSource with the given initial levels.
func NewFakeSource(levels map[logic.ButtonID]bool) *FakeSource {
	if levels == nil {
		levels = make(map[logic.ButtonID]bool)
	}
	return &FakeSource{Levels: levels}
}

// Level returns the scripted level.
func (f *FakeSource) Level(id logic.ButtonID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	level, ok := f.Levels[id]
	if !ok {
		return false, fmt.Errorf("line %d not configured", id)
	}
	return level, nil
}

// Set changes the level without producing an edge, as seen by a poller.
func (f *FakeSource) Set(id logic.ButtonID, level bool) {
	f.mu.Lock()
	f.Levels[id] = level
	f.mu.Unlock()
}

// Emit changes the level and hands the edge to Post, as an edge-event
// source would.
func (f *FakeSource) Emit(e Edge) error {
	f.Set(e.Button, e.Level)
	if f.Post == nil {
		return errors.New("no post function configured")
	}
	if !f.Post(e) {
		return errors.New("edge rejected")
	}
	return nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
