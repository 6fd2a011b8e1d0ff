package logic

import (
	"testing"
	"time"
)

func TestButtonConfigValidate(t *testing.T) {
	valid := DefaultButtonConfig(13, "A")
	if err := valid.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ButtonConfig)
	}{
		{"negative id", func(c *ButtonConfig) { c.ID = -1 }},
		{"zero debounce", func(c *ButtonConfig) { c.Debounce = 0 }},
		{"negative long press", func(c *ButtonConfig) { c.LongPress = -time.Second }},
		{"zero double click", func(c *ButtonConfig) { c.DoubleClick = 0 }},
		{"zero double long press", func(c *ButtonConfig) { c.DoubleLongPress = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestButtonConfigPolarity(t *testing.T) {
	low := ButtonConfig{ActiveLow: true}
	if !low.Pressed(false) || low.Pressed(true) {
		t.Error("active low: raw low should be pressed")
	}
	if low.RawLevel(true) != false {
		t.Error("active low: pressed should map to raw low")
	}

	high := ButtonConfig{ActiveLow: false}
	if !high.Pressed(true) || high.Pressed(false) {
		t.Error("active high: raw high should be pressed")
	}
	if high.RawLevel(true) != true {
		t.Error("active high: pressed should map to raw high")
	}
}

func TestEventCountsAdd(t *testing.T) {
	var c EventCounts
	for _, k := range AllEventKinds {
		c.Add(k)
	}
	c.Add(EventClick)
	c.Add(EventKind("BOGUS"))

	if c.Click != 2 {
		t.Errorf("Click: got %d, want 2", c.Click)
	}
	if c.CombinedRelease != 1 {
		t.Errorf("CombinedRelease: got %d, want 1", c.CombinedRelease)
	}
	if c.Total() != len(AllEventKinds)+1 {
		t.Errorf("Total: got %d, want %d", c.Total(), len(AllEventKinds)+1)
	}
}

func TestEventKindCombined(t *testing.T) {
	if !EventCombinedPress.Combined() || !EventCombinedLongPress.Combined() || !EventCombinedRelease.Combined() {
		t.Error("combined kinds should report Combined")
	}
	if EventClick.Combined() {
		t.Error("CLICK is not combined")
	}
}

func TestHeartbeatCheck(t *testing.T) {
	h := NewHeartbeat(ms(0))
	counts := EventCounts{Click: 3}

	if hb := h.Check(ms(60000), 0, counts); hb != nil {
		t.Error("interval 0 should disable heartbeat")
	}
	if hb := h.Check(ms(59999), time.Minute, counts); hb != nil {
		t.Error("heartbeat before interval")
	}

	hb := h.Check(ms(60000), time.Minute, counts)
	if hb == nil {
		t.Fatal("expected heartbeat at interval")
	}
	if hb.Uptime != time.Minute {
		t.Errorf("uptime: got %v, want 1m", hb.Uptime)
	}
	if hb.Counts.Click != 3 {
		t.Errorf("counts not carried: %+v", hb.Counts)
	}

	// Interval restarts from last heartbeat
	if hb := h.Check(ms(90000), time.Minute, counts); hb != nil {
		t.Error("heartbeat too soon after previous")
	}
	if hb := h.Check(ms(120000), time.Minute, counts); hb == nil {
		t.Error("expected second heartbeat")
	}
}
