package mqtt

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sweeney/flow-sensor/internal/report"
	"github.com/sweeney/flow-sensor/internal/units"
)

func testReading() report.Reading {
	return report.Reading{
		Meter:        "mains",
		Timestamp:    time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Volume:       123.45678,
		Rate:         7.5,
		Unit:         "L",
		RateUnit:     units.PerMinute,
		Precision:    2,
		Pulses:       12,
		WindowPulses: 3,
		Running:      true,
	}
}

func TestFormatPayload(t *testing.T) {
	payload, err := FormatPayload(testReading())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Flow.Timestamp != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected timestamp: %s", parsed.Flow.Timestamp)
	}
	if parsed.Flow.Meter != "mains" {
		t.Errorf("unexpected meter: %s", parsed.Flow.Meter)
	}
	if parsed.Flow.Volume != "123.46" {
		t.Errorf("volume: got %s, want 123.46", parsed.Flow.Volume)
	}
	if parsed.Flow.Rate != "7.50" {
		t.Errorf("rate: got %s, want 7.50", parsed.Flow.Rate)
	}
	if parsed.Flow.RateUnit != "L/min" {
		t.Errorf("rate unit: got %s, want L/min", parsed.Flow.RateUnit)
	}
	if parsed.Flow.Pulses != 12 || parsed.Flow.WindowPulses != 3 {
		t.Errorf("pulses: got %d/%d, want 12/3", parsed.Flow.Pulses, parsed.Flow.WindowPulses)
	}
	if !parsed.Flow.Running {
		t.Error("expected running=true")
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	r := testReading()
	r.Precision = 1
	r.RateUnit = units.PerSecond

	payload, err := FormatPayload(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"flow":{"timestamp":"2026-02-02T22:18:12Z","meter":"mains","volume":123.5,"rate":7.5,"unit":"L","rate_unit":"L/s","pulses":12,"window_pulses":3,"running":true}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	r := testReading()
	r.Timestamp = time.Date(2026, 2, 3, 1, 0, 0, 0, time.FixedZone("EST+5", 5*3600))

	payload, err := FormatPayload(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Flow.Timestamp != "2026-02-02T20:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Flow.Timestamp)
	}
}

func TestFormatPayloadRejectsNonFinite(t *testing.T) {
	r := testReading()
	r.Rate = math.Inf(1)
	if _, err := FormatPayload(r); err == nil {
		t.Error("expected error for infinite rate")
	}
}

func TestTopic(t *testing.T) {
	if Topic != "energy/flow/sensor/readings" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "energy/flow/sensor/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadReconnected(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-10T14:30:00Z","event":"RECONNECTED"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload passthrough, got %s", payload)
	}
}

func TestWillPayload(t *testing.T) {
	expected := `{"system":{"event":"LWT","reason":"connection_lost"}}`
	if got := string(WillPayload()); got != expected {
		t.Errorf("unexpected will payload:\ngot:  %s\nwant: %s", got, expected)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(testReading()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(f.Readings))
	}
	if f.Readings[0].Meter != "mains" {
		t.Errorf("unexpected meter: %s", f.Readings[0].Meter)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}

	if err := f.PublishSystem(SystemEvent{Event: "HEARTBEAT", Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.SystemEvents) != 1 || f.SystemEvents[0].Event != "HEARTBEAT" {
		t.Errorf("unexpected system events: %+v", f.SystemEvents)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated")
	f.PublishSystemError = errors.New("simulated system")

	if err := f.Publish(testReading()); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Readings) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(testReading())
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true

	f.Reset()

	if f.Readings != nil || f.Payloads != nil || f.SystemEvents != nil || f.SystemPayloads != nil {
		t.Error("expected recorded events to be cleared")
	}
	if f.Closed || f.Connected {
		t.Error("expected flags to be cleared")
	}
}

func TestFakePublisherReadingsFor(t *testing.T) {
	f := NewFakePublisher()
	garden := testReading()
	garden.Meter = "garden"

	f.Publish(testReading())
	f.Publish(garden)
	f.Publish(testReading())

	if got := len(f.ReadingsFor("mains")); got != 2 {
		t.Errorf("mains readings: got %d, want 2", got)
	}
	if got := len(f.ReadingsFor("garden")); got != 1 {
		t.Errorf("garden readings: got %d, want 1", got)
	}
	if got := f.ReadingsFor("missing"); got != nil {
		t.Errorf("missing meter: got %v, want nil", got)
	}
}

func TestFakePublisherEvents(t *testing.T) {
	f := NewFakePublisher()
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.PublishSystem(SystemEvent{Event: "SHUTDOWN", Reason: "SIGTERM"})

	got := f.Events()
	if len(got) != 2 || got[0] != "STARTUP" || got[1] != "SHUTDOWN" {
		t.Errorf("events: got %v, want [STARTUP SHUTDOWN]", got)
	}
}
