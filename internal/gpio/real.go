//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/button-sensor/internal/logic"
)

// RealSource reads buttons from actual hardware using the Linux GPIO
// character device.
type RealSource struct {
	chip  *gpiocdev.Chip
	lines map[logic.ButtonID]*gpiocdev.Line
	now   func() time.Time
}

// NewRealSource requests every line as an input on the named chip.
// If post is non-nil, lines also watch both edges and each kernel edge
// event is timestamped and handed to post. The handler does no other work.
// With a nil post, the source only supports Level and is driven by Poll.
func NewRealSource(chipName string, lines []Line, post PostFunc) (*RealSource, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	s := &RealSource{
		chip:  chip,
		lines: make(map[logic.ButtonID]*gpiocdev.Line, len(lines)),
		now:   time.Now,
	}

	for _, l := range lines {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, pullOption(l.Pull)}
		if post != nil {
			id := l.Button
			opts = append(opts,
				gpiocdev.WithBothEdges,
				gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
					post(Edge{
						Button: id,
						Level:  evt.Type == gpiocdev.LineEventRisingEdge,
						Time:   s.now(),
					})
				}))
		}

		line, err := chip.RequestLine(int(l.Button), opts...)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("request button line %d: %w", l.Button, err)
		}
		s.lines[l.Button] = line
	}

	return s, nil
}

func pullOption(p Pull) gpiocdev.LineReqOption {
	switch p {
	case PullUp:
		return gpiocdev.WithPullUp
	case PullDown:
		return gpiocdev.WithPullDown
	}
	return gpiocdev.WithBiasDisabled
}

// Level returns the raw level of the button's line.
func (s *RealSource) Level(id logic.ButtonID) (bool, error) {
	line, ok := s.lines[id]
	if !ok {
		return false, fmt.Errorf("line %d not requested", id)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", id, err)
	}
	return v != 0, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults)
// before closing to ensure clean state for system shutdown/reboot.
func (s *RealSource) Close() error {
	var errs []error

	for id, line := range s.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", id, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", id, err))
		}
		delete(s.lines, id)
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		s.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
