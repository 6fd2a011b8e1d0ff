package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/engine"
	"github.com/sweeney/button-sensor/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testButtons() []engine.ButtonStatus {
	return []engine.ButtonStatus{
		{ID: 13, Name: "A", Pressed: true, State: logic.StateLongPressActive},
		{ID: 12, Name: "B", Pressed: false, State: logic.StateIdle},
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{Mode: "edge", PollMs: 10, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.Mode != "edge" {
		t.Errorf("Config.Mode: got %q, want edge", snap.Config.Mode)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if len(snap.Buttons) != 0 {
		t.Error("expected no buttons initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(testButtons(), []engine.PairStatus{{A: 13, B: 12, Chorded: true}},
		logic.EventCounts{Click: 3, CombinedPress: 1}, engine.Stats{DroppedEvents: 2})

	snap := tr.Snapshot()
	if len(snap.Buttons) != 2 || snap.Buttons[0].Name != "A" || !snap.Buttons[0].Pressed {
		t.Errorf("unexpected buttons: %+v", snap.Buttons)
	}
	if len(snap.Pairs) != 1 || !snap.Pairs[0].Chorded {
		t.Errorf("unexpected pairs: %+v", snap.Pairs)
	}
	if snap.Counts.Click != 3 {
		t.Errorf("Counts.Click: got %d, want 3", snap.Counts.Click)
	}
	if snap.Engine.DroppedEvents != 2 {
		t.Errorf("Engine.DroppedEvents: got %d, want 2", snap.Engine.DroppedEvents)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}
	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	buttons := testButtons()
	tr.Update(buttons, nil, logic.EventCounts{}, engine.Stats{})

	// Neither the caller's slice nor a snapshot aliases the tracker's state
	buttons[0].Name = "changed"
	snap1 := tr.Snapshot()
	if snap1.Buttons[0].Name != "A" {
		t.Error("tracker should copy buttons on Update")
	}
	snap1.Buttons[0].Pressed = false
	if !tr.Snapshot().Buttons[0].Pressed {
		t.Error("snapshot should be a copy")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Buttons:       testButtons(),
		Pairs:         []engine.PairStatus{{A: 13, B: 12}},
		Counts:        logic.EventCounts{Click: 5, LongPress: 2, CombinedRelease: 1},
		Engine:        engine.Stats{DroppedEdges: 4, UnknownEdges: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Chip: "gpiochip0", Mode: "edge", HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status

	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("unexpected MQTT: %+v", s.MQTT)
	}
	if len(s.Buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(s.Buttons))
	}
	if s.Buttons[0].ID != 13 || s.Buttons[0].State != "LONG_PRESS_ACTIVE" || !s.Buttons[0].Pressed {
		t.Errorf("unexpected button: %+v", s.Buttons[0])
	}
	if s.Buttons[1].State != "IDLE" {
		t.Errorf("unexpected state: %q", s.Buttons[1].State)
	}
	if len(s.Pairs) != 1 || s.Pairs[0].A != 13 || s.Pairs[0].B != 12 {
		t.Errorf("unexpected pairs: %+v", s.Pairs)
	}
	if s.Counts.Click != 5 || s.Counts.LongPress != 2 || s.Counts.CombinedRelease != 1 {
		t.Errorf("unexpected counts: %+v", s.Counts)
	}
	if s.Engine.DroppedEdges != 4 || s.Engine.UnknownEdges != 1 {
		t.Errorf("unexpected engine counters: %+v", s.Engine)
	}
	if s.Config.Chip != "gpiochip0" || s.Config.Mode != "edge" {
		t.Errorf("unexpected config: %+v", s.Config)
	}
	if s.Event != "" || s.Reason != "" {
		t.Errorf("web format should not carry event/reason: %q %q", s.Event, s.Reason)
	}
}

func TestFormatJSONEmptyListsNotNull(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatJSON(snap), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := raw["status"]["buttons"].([]interface{}); !ok {
		t.Errorf("buttons should be an empty array, got %v", raw["status"]["buttons"])
	}
	if _, ok := raw["status"]["pairs"].([]interface{}); !ok {
		t.Errorf("pairs should be an empty array, got %v", raw["status"]["pairs"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Counts:    logic.EventCounts{Click: 3},
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM"), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.Counts.Click != 3 {
		t.Errorf("Counts.Click: got %d, want 3", parsed.Status.Counts.Click)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(FormatStatusEvent(snap, "STARTUP", ""), &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := raw["status"]["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if raw["status"]["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", raw["status"]["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(testButtons(), nil, logic.EventCounts{Click: i}, engine.Stats{})
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
