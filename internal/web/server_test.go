package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/flow-sensor/internal/report"
	"github.com/sweeney/flow-sensor/internal/status"
	"github.com/sweeney/flow-sensor/internal/units"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *Server) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      1000,
		PublishMs:   10000,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.stream.closeAll()
		ts.Close()
	})
	return ts, tr, srv
}

func mainsReading(volume, rate float64) report.Reading {
	return report.Reading{
		Meter:        "mains",
		Timestamp:    time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC),
		Volume:       volume,
		Rate:         rate,
		Unit:         "L",
		RateUnit:     units.PerMinute,
		Precision:    2,
		Pulses:       3,
		WindowPulses: 5,
		Running:      true,
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
	ts, tr, _ := newTestServer(t)
	tr.Update([]report.Reading{mainsReading(42.125, 6)})
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

	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if len(sj.Status.Meters) != 1 {
		t.Fatalf("Meters: got %d, want 1", len(sj.Status.Meters))
	}
	if sj.Status.Meters[0].Volume != "42.13" {
		t.Errorf("Volume: got %s, want 42.13", sj.Status.Meters[0].Volume)
	}
	if sj.Status.Meters[0].Rate != "6.00" {
		t.Errorf("Rate: got %s, want 6.00", sj.Status.Meters[0].Rate)
	}
	if sj.Status.Config.PollMs != 1000 {
		t.Errorf("Config.PollMs: got %d, want 1000", sj.Status.Config.PollMs)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update([]report.Reading{mainsReading(42.125, 6)})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"mains", "6.00 L/min", "42.13 L", "running"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("HTML missing %q", want)
		}
	}
}

func TestHTMLEndpointNoReadings(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "no readings yet") {
		t.Error("expected placeholder row before first sample")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

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
	ts, tr, _ := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	tr.Update([]report.Reading{mainsReading(1, 0)})
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
