package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/flow-sensor/internal/units"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Meters        []MeterJSON  `json:"meters"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// MeterJSON is the JSON representation of one meter's latest reading.
type MeterJSON struct {
	Name         string      `json:"name"`
	Running      bool        `json:"running"`
	Volume       json.Number `json:"volume"`
	Rate         json.Number `json:"rate"`
	Unit         string      `json:"unit"`
	RateUnit     string      `json:"rate_unit"`
	Pulses       uint32      `json:"pulses"`
	WindowPulses uint32      `json:"window_pulses"`
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
	PollMs      int64  `json:"poll_ms"`
	PublishMs   int64  `json:"publish_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	meters := make([]MeterJSON, 0, len(snap.Readings))
	for _, r := range snap.Readings {
		meters = append(meters, MeterJSON{
			Name:         r.Meter,
			Running:      r.Running,
			Volume:       units.MustRound(r.Volume, r.Precision),
			Rate:         units.MustRound(r.Rate, r.Precision),
			Unit:         r.Unit,
			RateUnit:     r.RateUnit.Label(r.Unit),
			Pulses:       r.Pulses,
			WindowPulses: r.WindowPulses,
		})
	}

	inner := StatusInner{
		Ready:         snap.Sampled,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Meters:        meters,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			PublishMs:   snap.Config.PublishMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
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

// FormatCompactJSON is FormatJSON without indentation, for streaming.
func FormatCompactJSON(snap Snapshot) []byte {
	data, _ := json.Marshal(StatusJSON{Status: buildInner(snap)})
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
