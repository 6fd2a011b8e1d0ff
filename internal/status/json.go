package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Buttons       []ButtonJSON `json:"buttons"`
	Pairs         []PairJSON   `json:"pairs"`
	Counts        CountsJSON   `json:"event_counts"`
	Engine        EngineJSON   `json:"engine"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ButtonJSON is one button's debounced state.
type ButtonJSON struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Pressed bool   `json:"pressed"`
	State   string `json:"state"`
}

// PairJSON is one combined pair.
type PairJSON struct {
	A       int  `json:"a"`
	B       int  `json:"b"`
	Chorded bool `json:"chorded"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Pressed           int `json:"pressed"`
	Released          int `json:"released"`
	Click             int `json:"click"`
	LongPress         int `json:"long_press"`
	DoubleClick       int `json:"double_click"`
	DoubleLongPress   int `json:"double_long_press"`
	CombinedPress     int `json:"combined_press"`
	CombinedLongPress int `json:"combined_long_press"`
	CombinedRelease   int `json:"combined_release"`
}

// EngineJSON reports the engine's loss counters.
type EngineJSON struct {
	DroppedEvents uint64 `json:"dropped_events"`
	DroppedEdges  uint64 `json:"dropped_edges"`
	UnknownEdges  uint64 `json:"unknown_edges"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip        string `json:"chip"`
	Mode        string `json:"mode"`
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	WSBroker    string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Buttons:       make([]ButtonJSON, 0, len(snap.Buttons)),
		Pairs:         make([]PairJSON, 0, len(snap.Pairs)),
		Counts: CountsJSON{
			Pressed:           snap.Counts.Pressed,
			Released:          snap.Counts.Released,
			Click:             snap.Counts.Click,
			LongPress:         snap.Counts.LongPress,
			DoubleClick:       snap.Counts.DoubleClick,
			DoubleLongPress:   snap.Counts.DoubleLongPress,
			CombinedPress:     snap.Counts.CombinedPress,
			CombinedLongPress: snap.Counts.CombinedLongPress,
			CombinedRelease:   snap.Counts.CombinedRelease,
		},
		Engine: EngineJSON{
			DroppedEvents: snap.Engine.DroppedEvents,
			DroppedEdges:  snap.Engine.DroppedEdges,
			UnknownEdges:  snap.Engine.UnknownEdges,
		},
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			Mode:        snap.Config.Mode,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
			WSBroker:    snap.Config.WSBroker,
		},
	}

	for _, b := range snap.Buttons {
		inner.Buttons = append(inner.Buttons, ButtonJSON{
			ID:      int(b.ID),
			Name:    b.Name,
			Pressed: b.Pressed,
			State:   b.State.String(),
		})
	}
	for _, p := range snap.Pairs {
		inner.Pairs = append(inner.Pairs, PairJSON{A: int(p.A), B: int(p.B), Chorded: p.Chorded})
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
