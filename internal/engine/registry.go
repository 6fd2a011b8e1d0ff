package engine

import (
	"fmt"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Handle is a typed token for a registered button. It stays valid until
// the button is unregistered; a reused slot gets a new generation.
type Handle struct {
	id   logic.ButtonID
	slot int
	gen  uint32
}

// ID returns the button identifier.
func (h Handle) ID() logic.ButtonID {
	return h.id
}

// PairHandle is a typed token for a registered pair.
type PairHandle struct {
	slot int
	gen  uint32
}

type buttonSlot struct {
	used bool
	gen  uint32
	cfg  logic.ButtonConfig
	deb  *logic.Debouncer
	cls  *logic.Classifier
}

func (b *buttonSlot) pressed() bool {
	return b.cfg.Pressed(b.deb.Level())
}

type pairSlot struct {
	used  bool
	gen   uint32
	chord *logic.Chord
}

// registry is a fixed-capacity arena of buttons and pairs.
// Not safe for concurrent use; the engine serialises access.
type registry struct {
	buttons []buttonSlot
	pairs   []pairSlot
	byID    map[logic.ButtonID]int
}

func newRegistry(maxButtons, maxPairs int) *registry {
	return &registry{
		buttons: make([]buttonSlot, maxButtons),
		pairs:   make([]pairSlot, maxPairs),
		byID:    make(map[logic.ButtonID]int, maxButtons),
	}
}

func (r *registry) addButton(cfg logic.ButtonConfig, initialLevel bool) (Handle, error) {
	if err := cfg.Validate(); err != nil {
		return Handle{}, fmt.Errorf("button %d: %w: %v", cfg.ID, ErrInvalidConfig, err)
	}
	if _, ok := r.byID[cfg.ID]; ok {
		return Handle{}, fmt.Errorf("button %d: %w", cfg.ID, ErrDuplicateButton)
	}
	slot := -1
	for i := range r.buttons {
		if !r.buttons[i].used {
			slot = i
			break
		}
	}
	if slot < 0 {
		return Handle{}, fmt.Errorf("button %d: %w (max %d buttons)", cfg.ID, ErrCapacity, len(r.buttons))
	}

	b := &r.buttons[slot]
	b.used = true
	b.gen++
	b.cfg = cfg
	b.deb = logic.NewDebouncer(cfg.Debounce, initialLevel)
	b.cls = logic.NewClassifier(cfg)
	r.byID[cfg.ID] = slot

	return Handle{id: cfg.ID, slot: slot, gen: b.gen}, nil
}

func (r *registry) button(h Handle) (*buttonSlot, error) {
	if h.slot < 0 || h.slot >= len(r.buttons) {
		return nil, ErrStaleHandle
	}
	b := &r.buttons[h.slot]
	if !b.used || b.gen != h.gen {
		return nil, ErrStaleHandle
	}
	return b, nil
}

func (r *registry) lookup(id logic.ButtonID) (*buttonSlot, bool) {
	slot, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return &r.buttons[slot], true
}

// removeButton frees the slot and returns the pairs dropped with it.
func (r *registry) removeButton(h Handle) ([]logic.PairConfig, error) {
	b, err := r.button(h)
	if err != nil {
		return nil, err
	}

	var dropped []logic.PairConfig
	for i := range r.pairs {
		p := &r.pairs[i]
		if p.used && p.chord.Involves(h.id) {
			dropped = append(dropped, p.chord.Config())
			p.used = false
			p.chord = nil
		}
	}

	delete(r.byID, h.id)
	b.used = false
	b.deb = nil
	b.cls = nil
	return dropped, nil
}

func (r *registry) addPair(cfg logic.PairConfig) (PairHandle, error) {
	if cfg.A == cfg.B {
		return PairHandle{}, fmt.Errorf("pair %d+%d: %w", cfg.A, cfg.B, ErrSamePair)
	}
	if err := cfg.Validate(); err != nil {
		return PairHandle{}, fmt.Errorf("pair %d+%d: %w: %v", cfg.A, cfg.B, ErrInvalidConfig, err)
	}
	for _, id := range []logic.ButtonID{cfg.A, cfg.B} {
		if _, ok := r.byID[id]; !ok {
			return PairHandle{}, fmt.Errorf("pair %d+%d: %w: %d", cfg.A, cfg.B, ErrUnknownButton, id)
		}
	}
	slot := -1
	for i := range r.pairs {
		p := &r.pairs[i]
		if !p.used {
			if slot < 0 {
				slot = i
			}
			continue
		}
		if p.chord.Config().Key() == cfg.Key() {
			return PairHandle{}, fmt.Errorf("pair %d+%d: %w", cfg.A, cfg.B, ErrDuplicatePair)
		}
	}
	if slot < 0 {
		return PairHandle{}, fmt.Errorf("pair %d+%d: %w (max %d pairs)", cfg.A, cfg.B, ErrCapacity, len(r.pairs))
	}

	p := &r.pairs[slot]
	p.used = true
	p.gen++
	p.chord = logic.NewChord(cfg)
	return PairHandle{slot: slot, gen: p.gen}, nil
}

func (r *registry) removePair(h PairHandle) error {
	if h.slot < 0 || h.slot >= len(r.pairs) {
		return ErrStaleHandle
	}
	p := &r.pairs[h.slot]
	if !p.used || p.gen != h.gen {
		return ErrStaleHandle
	}
	p.used = false
	p.chord = nil
	return nil
}
