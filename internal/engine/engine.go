// Package engine turns raw button edges into an ordered stream of gesture
// events.
//
// Producers (GPIO edge handlers or a poller) only timestamp edges and post
// them with PostEdge, which never blocks. A single consumer goroutine (Run)
// performs all debounce, classification and chord work, so button and pair
// state is only ever mutated from one place.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxButtons   = 8
	DefaultMaxPairs     = 4
	DefaultQueueSize    = 64
	DefaultSinkSize     = 32
	DefaultPollInterval = 10 * time.Millisecond
)

// Config holds engine limits.
type Config struct {
	MaxButtons int
	MaxPairs   int

	// QueueSize bounds the raw edge queue between producers and the consumer.
	QueueSize int

	// SinkSize bounds the event FIFO. Negative disables the FIFO.
	SinkSize int

	// PollInterval is how often the consumer wakes without edges to
	// advance debounce and hold timers.
	PollInterval time.Duration

	// Now is the clock used by Run. Defaults to time.Now.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxButtons <= 0 {
		c.MaxButtons = DefaultMaxButtons
	}
	if c.MaxPairs <= 0 {
		c.MaxPairs = DefaultMaxPairs
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.SinkSize == 0 {
		c.SinkSize = DefaultSinkSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ButtonStatus is a point-in-time view of one button.
type ButtonStatus struct {
	ID      logic.ButtonID
	Name    string
	Pressed bool
	State   logic.ClassifierState
}

// PairStatus is a point-in-time view of one pair.
type PairStatus struct {
	A, B    logic.ButtonID
	Chorded bool
}

// Stats are the engine's observability counters.
type Stats struct {
	DroppedEvents uint64 // sink full
	DroppedEdges  uint64 // edge queue full
	UnknownEdges  uint64 // edges for unregistered buttons
	QueuedEdges   int
	QueuedEvents  int
}

// Engine owns the registry, the raw edge queue and the event sink.
type Engine struct {
	cfg   Config
	edges chan gpio.Edge
	sink  *Sink

	// mu serialises the consumer with registration and queries.
	mu  sync.Mutex
	reg *registry

	droppedEdges atomic.Uint64
	unknownEdges atomic.Uint64
}

// New creates an engine. Call Run to start consuming edges.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	sinkSize := cfg.SinkSize
	if sinkSize < 0 {
		sinkSize = 0
	}
	return &Engine{
		cfg:   cfg,
		edges: make(chan gpio.Edge, cfg.QueueSize),
		sink:  NewSink(sinkSize),
		reg:   newRegistry(cfg.MaxButtons, cfg.MaxPairs),
	}
}

// Sink returns the event sink.
func (e *Engine) Sink() *Sink {
	return e.sink
}

// Events is shorthand for Sink().Events().
func (e *Engine) Events() <-chan logic.Event {
	return e.sink.Events()
}

// Subscribe is shorthand for Sink().Subscribe.
func (e *Engine) Subscribe(button logic.ButtonID, kind logic.EventKind, h Handler) Subscription {
	return e.sink.Subscribe(button, kind, h)
}

// RegisterButton adds a button whose raw line currently reads initialLevel.
func (e *Engine) RegisterButton(cfg logic.ButtonConfig, initialLevel bool) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.reg.addButton(cfg, initialLevel)
	if err != nil {
		return Handle{}, err
	}
	log.Printf("engine: registered button %d (%s) active_low=%v debounce=%v long=%v double=%v double_long=%v",
		cfg.ID, cfg.Name, cfg.ActiveLow, cfg.Debounce, cfg.LongPress, cfg.DoubleClick, cfg.DoubleLongPress)
	return h, nil
}

// UnregisterButton removes a button and any pair it belongs to.
func (e *Engine) UnregisterButton(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dropped, err := e.reg.removeButton(h)
	if err != nil {
		return fmt.Errorf("unregister button %d: %w", h.id, err)
	}
	for _, p := range dropped {
		log.Printf("engine: pair %d+%d removed with button %d", p.A, p.B, h.id)
	}
	log.Printf("engine: unregistered button %d", h.id)
	return nil
}

// RegisterPair adds a combined pair of already registered buttons.
func (e *Engine) RegisterPair(cfg logic.PairConfig) (PairHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.reg.addPair(cfg)
	if err != nil {
		return PairHandle{}, err
	}
	log.Printf("engine: registered pair %d+%d long=%v suppress_individual=%v",
		cfg.A, cfg.B, cfg.LongPress, cfg.SuppressIndividual)
	return h, nil
}

// UnregisterPair removes a pair.
func (e *Engine) UnregisterPair(h PairHandle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.reg.removePair(h); err != nil {
		return fmt.Errorf("unregister pair: %w", err)
	}
	return nil
}

// PostEdge enqueues a raw edge without blocking. It is safe to call from
// any goroutine, including GPIO event handlers. It reports false and counts
// a drop when the queue is full.
func (e *Engine) PostEdge(edge gpio.Edge) bool {
	select {
	case e.edges <- edge:
		return true
	default:
		e.droppedEdges.Add(1)
		return false
	}
}

// Run consumes edges and advances timers until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	return e.run(ctx, ticker.C)
}

func (e *Engine) run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case edge := <-e.edges:
			e.HandleEdge(edge)
		case <-tick:
			// Edges that arrived before this tick are older than now.
			e.drainEdges()
			e.Advance(e.cfg.Now())
		}
	}
}

func (e *Engine) drainEdges() {
	for {
		select {
		case edge := <-e.edges:
			e.HandleEdge(edge)
		default:
			return
		}
	}
}

// HandleEdge processes one raw edge: it first advances timers to the edge's
// time, then feeds the edge to the button's debouncer. Run calls this; it is
// exported so the engine can be driven synchronously.
func (e *Engine) HandleEdge(edge gpio.Edge) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.advanceLocked(edge.Time)

	b, ok := e.reg.lookup(edge.Button)
	if !ok {
		n := e.unknownEdges.Add(1)
		log.Printf("engine: ignoring edge for unregistered button %d (unknown=%d)", edge.Button, n)
		return
	}
	b.deb.Edge(edge.Level, edge.Time)
}

// Advance commits due debounce changes and evaluates hold and timeout
// thresholds at now.
func (e *Engine) Advance(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceLocked(now)
}

func (e *Engine) advanceLocked(now time.Time) {
	// Commit one change at a time, oldest first, so pairs observe the
	// levels as they were at each commit.
	for {
		var next *buttonSlot
		var at time.Time
		for i := range e.reg.buttons {
			b := &e.reg.buttons[i]
			if !b.used {
				continue
			}
			if c, ok := b.deb.Peek(now); ok && (next == nil || c.Time.Before(at)) {
				next, at = b, c.Time
			}
		}
		if next == nil {
			break
		}
		c, _ := next.deb.Due(now)
		e.commitLocked(next, c)
	}

	for i := range e.reg.buttons {
		b := &e.reg.buttons[i]
		if !b.used {
			continue
		}
		e.emit(b.cls.Tick(b.deb.StableUntil(now)))
	}

	for i := range e.reg.pairs {
		p := &e.reg.pairs[i]
		if !p.used {
			continue
		}
		at, ok := e.pairStableUntil(p, now)
		if !ok {
			continue
		}
		e.emit(p.chord.Tick(at))
	}
}

func (e *Engine) commitLocked(b *buttonSlot, c logic.Commit) {
	// A chord that crossed its threshold between ticks still fires before
	// either button's release is reported.
	for i := range e.reg.pairs {
		p := &e.reg.pairs[i]
		if !p.used || !p.chord.Involves(b.cfg.ID) {
			continue
		}
		if at, ok := e.pairStableUntil(p, c.Time); ok {
			e.emit(p.chord.Tick(at))
		}
	}

	if b.cfg.Pressed(c.Level) {
		e.emit(b.cls.Press(c.Time))
	} else {
		e.emit(b.cls.Release(c.Time))
	}

	for i := range e.reg.pairs {
		p := &e.reg.pairs[i]
		if !p.used || !p.chord.Involves(b.cfg.ID) {
			continue
		}
		cfg := p.chord.Config()
		a, okA := e.reg.lookup(cfg.A)
		bb, okB := e.reg.lookup(cfg.B)
		if !okA || !okB {
			continue
		}

		events := p.chord.Update(a.pressed(), bb.pressed(), c.Time)
		for _, ev := range events {
			if ev.Kind == logic.EventCombinedPress && cfg.SuppressIndividual {
				a.cls.Suppress()
				bb.cls.Suppress()
			}
		}
		e.emit(events)
	}
}

func (e *Engine) pairStableUntil(p *pairSlot, now time.Time) (time.Time, bool) {
	cfg := p.chord.Config()
	a, okA := e.reg.lookup(cfg.A)
	b, okB := e.reg.lookup(cfg.B)
	if !okA || !okB {
		return time.Time{}, false
	}
	at := a.deb.StableUntil(now)
	if bt := b.deb.StableUntil(now); bt.Before(at) {
		at = bt
	}
	return at, true
}

func (e *Engine) emit(events []logic.Event) {
	for _, ev := range events {
		e.sink.Publish(ev)
	}
}

// IsPressed returns the debounced pressed state of a button.
func (e *Engine) IsPressed(id logic.ButtonID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.reg.lookup(id)
	if !ok {
		return false, fmt.Errorf("button %d: %w", id, ErrUnknownButton)
	}
	return b.pressed(), nil
}

// Buttons returns the status of every registered button in slot order.
func (e *Engine) Buttons() []ButtonStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []ButtonStatus
	for i := range e.reg.buttons {
		b := &e.reg.buttons[i]
		if !b.used {
			continue
		}
		out = append(out, ButtonStatus{
			ID:      b.cfg.ID,
			Name:    b.cfg.Name,
			Pressed: b.pressed(),
			State:   b.cls.State(),
		})
	}
	return out
}

// Pairs returns the status of every registered pair in slot order.
func (e *Engine) Pairs() []PairStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []PairStatus
	for i := range e.reg.pairs {
		p := &e.reg.pairs[i]
		if !p.used {
			continue
		}
		cfg := p.chord.Config()
		out = append(out, PairStatus{A: cfg.A, B: cfg.B, Chorded: p.chord.Chorded()})
	}
	return out
}

// Stats returns the engine's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		DroppedEvents: e.sink.Dropped(),
		DroppedEdges:  e.droppedEdges.Load(),
		UnknownEdges:  e.unknownEdges.Load(),
		QueuedEdges:   len(e.edges),
		QueuedEvents:  e.sink.Len(),
	}
}
