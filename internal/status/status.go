// Package status provides a thread-safe status tracker for the button-sensor
// daemon. It is read by the HTTP handlers and used to build lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/engine"
	"github.com/sweeney/button-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Chip        string
	Mode        string // "edge" or "poll"
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	WSBroker    string // websocket broker URL for browser MQTT, empty disables
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Buttons       []engine.ButtonStatus
	Pairs         []engine.PairStatus
	Counts        logic.EventCounts
	Engine        engine.Stats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the button, pair, count and engine counter views.
// Called from runLoop after every event batch and tick.
func (t *Tracker) Update(buttons []engine.ButtonStatus, pairs []engine.PairStatus, counts logic.EventCounts, stats engine.Stats) {
	buttons = append([]engine.ButtonStatus(nil), buttons...)
	pairs = append([]engine.PairStatus(nil), pairs...)

	t.mu.Lock()
	t.snap.Buttons = buttons
	t.snap.Pairs = pairs
	t.snap.Counts = counts
	t.snap.Engine = stats
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state with Now set to
// the time of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]engine.ButtonStatus(nil), t.snap.Buttons...)
	s.Pairs = append([]engine.PairStatus(nil), t.snap.Pairs...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
