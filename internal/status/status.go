// Package status provides a thread-safe status tracker for the flow-sensor daemon.
// It is read by HTTP handlers and the websocket stream.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/flow-sensor/internal/report"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	PublishMs   int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Readings      []report.Reading
	Sampled       bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Reading returns the latest reading for the named meter.
func (s Snapshot) Reading(meter string) (report.Reading, bool) {
	for _, r := range s.Readings {
		if r.Meter == meter {
			return r, true
		}
	}
	return report.Reading{}, false
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		subs: make(map[int]chan Snapshot),
	}
}

// Update replaces the per-meter readings and notifies subscribers.
// Called from runLoop on every tick.
func (t *Tracker) Update(readings []report.Reading) {
	cp := make([]report.Reading, len(readings))
	copy(cp, readings)

	t.mu.Lock()
	t.snap.Readings = cp
	t.snap.Sampled = true
	t.mu.Unlock()

	t.notify()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// Subscribe returns a channel that receives the latest snapshot after every
// Update, and a func that unsubscribes and closes the channel. A slow
// subscriber only ever sees the newest snapshot; older ones are replaced.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	t.subMu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.subMu.Lock()
			delete(t.subs, id)
			t.subMu.Unlock()
			close(ch)
		})
	}
}

func (t *Tracker) notify() {
	snap := t.Snapshot()

	t.subMu.Lock()
	defer t.subMu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: swap the stale snapshot for the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
