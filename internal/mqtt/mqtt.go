// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/flow-sensor/internal/report"
	"github.com/sweeney/flow-sensor/internal/units"
)

// Topic is the MQTT topic for flow readings.
const Topic = "energy/flow/sensor/readings"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "energy/flow/sensor/system"

// Publisher publishes readings to MQTT.
type Publisher interface {
	// Publish sends a flow reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(reading report.Reading) error

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
	Flow FlowPayload `json:"flow"`
}

// FlowPayload contains one meter reading. Volume and rate are decimals
// rounded to the meter's configured precision.
type FlowPayload struct {
	Timestamp    string      `json:"timestamp"`
	Meter        string      `json:"meter"`
	Volume       json.Number `json:"volume"`
	Rate         json.Number `json:"rate"`
	Unit         string      `json:"unit"`
	RateUnit     string      `json:"rate_unit"`
	Pulses       uint32      `json:"pulses"`
	WindowPulses uint32      `json:"window_pulses"`
	Running      bool        `json:"running"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(r report.Reading) ([]byte, error) {
	volume, err := units.Round(r.Volume, r.Precision)
	if err != nil {
		return nil, fmt.Errorf("volume: %w", err)
	}
	rate, err := units.Round(r.Rate, r.Precision)
	if err != nil {
		return nil, fmt.Errorf("rate: %w", err)
	}

	payload := Payload{
		Flow: FlowPayload{
			Timestamp:    r.Timestamp.UTC().Format(time.RFC3339),
			Meter:        r.Meter,
			Volume:       volume,
			Rate:         rate,
			Unit:         r.Unit,
			RateUnit:     r.RateUnit.Label(r.Unit),
			Pulses:       r.Pulses,
			WindowPulses: r.WindowPulses,
			Running:      r.Running,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is registered with the broker as the last will, published on
// our behalf if the connection drops without a clean disconnect. It has no
// timestamp because it is fixed at connect time.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "LWT", Reason: "connection_lost"})
	return data
}
