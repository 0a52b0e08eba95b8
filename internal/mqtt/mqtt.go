// Package mqtt provides MQTT publishing and command subscription with
// abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/irrigation-controller/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "garden/irrigation"

// Topics holds the topics the controller uses under one prefix.
type Topics struct {
	// Events carries station and program state changes.
	Events string
	// Log carries run log entries.
	Log string
	// System carries lifecycle events and status snapshots.
	System string
	// Command is subscribed to for manual commands.
	Command string
}

// NewTopics derives the topic set from a prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:  prefix + "/events",
		Log:     prefix + "/log",
		System:  prefix + "/system",
		Command: prefix + "/cmd",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a station or program event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Irrigation EventPayload `json:"irrigation"`
}

// EventPayload contains the event details.
type EventPayload struct {
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	Station         int    `json:"station,omitempty"`
	Program         string `json:"program,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	Active          *bool  `json:"active,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := EventPayload{
		Timestamp:       event.Timestamp.UTC().Format(time.RFC3339),
		Event:           string(event.Type),
		Station:         int(event.Station),
		DurationSeconds: int64(event.Duration / time.Second),
	}
	if !event.Program.IsNone() {
		p.Program = event.Program.String()
	}
	if event.Type == logic.EventRainSensor || event.Type == logic.EventRainDelay {
		active := event.Active
		p.Active = &active
	}
	return json.Marshal(Payload{Irrigation: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// willPayload is published by the broker when the connection drops.
func willPayload() string {
	b, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE", Reason: "LWT"}})
	return string(b)
}
