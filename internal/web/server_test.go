package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/engine"
	"github.com/sweeney/button-sensor/internal/logic"
	"github.com/sweeney/button-sensor/internal/status"
)

func newTestServer(t *testing.T, cfg status.Config) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func defaultConfig() status.Config {
	return status.Config{
		Chip:        "gpiochip0",
		Mode:        "edge",
		PollMs:      10,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
	}
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, defaultConfig())
	tr.Update(
		[]engine.ButtonStatus{{ID: 13, Name: "A", Pressed: true, State: logic.StatePressed}},
		nil,
		logic.EventCounts{Click: 5, LongPress: 2},
		engine.Stats{},
	)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if len(sj.Status.Buttons) != 1 || sj.Status.Buttons[0].Name != "A" || sj.Status.Buttons[0].State != "PRESSED" {
		t.Errorf("unexpected buttons: %+v", sj.Status.Buttons)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Click != 5 || sj.Status.Counts.LongPress != 2 {
		t.Errorf("unexpected counts: %+v", sj.Status.Counts)
	}
	if sj.Status.Config.Mode != "edge" || sj.Status.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("unexpected config: %+v", sj.Status.Config)
	}
}

func TestJSONRejectsPost(t *testing.T) {
	ts, _ := newTestServer(t, defaultConfig())

	resp, err := http.Post(ts.URL+"/index.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /index.json: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, defaultConfig())
	tr.SetNetwork(&status.NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, defaultConfig())
	tr.Update(
		[]engine.ButtonStatus{{ID: 13, Name: "A"}, {ID: 12, Name: "B"}},
		[]engine.PairStatus{{A: 13, B: 12}},
		logic.EventCounts{},
		engine.Stats{},
	)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{`id="btn-13"`, `id="btn-12"`, "13 + 12", "IDLE"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, "mqtt.connect") {
		t.Error("live script should be absent without a websocket broker")
	}
}

func TestHTMLLiveScript(t *testing.T) {
	cfg := defaultConfig()
	cfg.WSBroker = "ws://192.168.1.200:9001"
	ts, _ := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	if !strings.Contains(page, "mqtt.connect") {
		t.Error("expected live script")
	}
	if !strings.Contains(page, `input\/buttons\/sensor\/events`) && !strings.Contains(page, "input/buttons/sensor/events") {
		t.Error("expected events topic in live script")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, defaultConfig())

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, defaultConfig())

	sj1 := getJSON(t, ts.URL+"/index.json")
	if len(sj1.Status.Buttons) != 0 {
		t.Errorf("expected no buttons initially, got %d", len(sj1.Status.Buttons))
	}

	tr.Update(
		[]engine.ButtonStatus{{ID: 14, Name: "C", Pressed: true, State: logic.StateLongPressActive}},
		nil,
		logic.EventCounts{LongPress: 1},
		engine.Stats{DroppedEdges: 3},
	)
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if len(sj2.Status.Buttons) != 1 || sj2.Status.Buttons[0].State != "LONG_PRESS_ACTIVE" {
		t.Errorf("unexpected buttons: %+v", sj2.Status.Buttons)
	}
	if sj2.Status.Engine.DroppedEdges != 3 {
		t.Errorf("DroppedEdges: got %d, want 3", sj2.Status.Engine.DroppedEdges)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
