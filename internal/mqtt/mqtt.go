// Package mqtt publishes button events and lifecycle events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/button-sensor/internal/logic"
)

// Topic carries one message per button event.
const Topic = "input/buttons/sensor/events"

// TopicSystem carries lifecycle events (STARTUP, SHUTDOWN, HEARTBEAT, OFFLINE).
const TopicSystem = "input/buttons/sensor/system"

// timestampLayout is RFC 3339 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a button event. Errors are reported, never fatal.
	Publish(event logic.Event) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// NameFunc resolves a button identifier to its configured name.
type NameFunc func(logic.ButtonID) string

// SystemEvent is a lifecycle event.
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // STARTUP, SHUTDOWN, HEARTBEAT, OFFLINE
	Reason     string // signal name, shutdown only
	RawPayload []byte // pre-formatted status snapshot, sent as is when set
	Retained   bool
}

// Payload is the JSON envelope for a button event.
type Payload struct {
	Button ButtonPayload `json:"button"`
}

// ButtonPayload describes one button event. Partner fields are only present
// for combined events.
type ButtonPayload struct {
	Timestamp   string `json:"timestamp"`
	Event       string `json:"event"`
	ID          int    `json:"id"`
	Name        string `json:"name,omitempty"`
	Partner     *int   `json:"partner,omitempty"`
	PartnerName string `json:"partner_name,omitempty"`
}

// FormatTimestamp renders t the way every payload does.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// FormatPayload creates the JSON payload for a button event. names may be nil.
func FormatPayload(event logic.Event, names NameFunc) ([]byte, error) {
	name := func(id logic.ButtonID) string {
		if names == nil {
			return ""
		}
		return names(id)
	}

	p := ButtonPayload{
		Timestamp: FormatTimestamp(event.Time),
		Event:     string(event.Kind),
		ID:        int(event.Button),
		Name:      name(event.Button),
	}
	if event.Partner != logic.NoButton {
		partner := int(event.Partner)
		p.Partner = &partner
		p.PartnerName = name(event.Partner)
	}
	return json.Marshal(Payload{Button: p})
}

// SystemPayload is the JSON envelope for simple lifecycle events that do not
// carry a status snapshot (the OFFLINE will).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// RawPayload wins when set.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = FormatTimestamp(event.Timestamp)
	}
	return json.Marshal(SystemPayload{System: inner})
}
