package report

import "time"

// Reporter samples a fixed set of meters.
type Reporter struct {
	meters          []Meter
	publishInterval time.Duration
	startTime       time.Time
	lastPublish     time.Time
	lastHeartbeat   time.Time
	published       int
}

// New creates a Reporter. Readings are due every publishInterval starting
// from startTime; an interval <= 0 makes every sample due.
func New(meters []Meter, publishInterval time.Duration, startTime time.Time) *Reporter {
	return &Reporter{
		meters:          meters,
		publishInterval: publishInterval,
		startTime:       startTime,
		lastPublish:     startTime,
		lastHeartbeat:   startTime,
	}
}

// Sample reads every meter. Pending pulses are drained into each meter's
// volume, so consecutive samples partition the pulse stream.
func (r *Reporter) Sample(now time.Time) []Reading {
	readings := make([]Reading, 0, len(r.meters))
	for _, m := range r.meters {
		pulses := m.Source.FlowCounts()
		readings = append(readings, Reading{
			Meter:        m.Name,
			Timestamp:    now,
			Volume:       m.Source.Volume(),
			Rate:         m.RateUnit.FromPerSecond(m.Source.FlowRate()),
			Unit:         m.Unit,
			RateUnit:     m.RateUnit,
			Precision:    m.Precision,
			Pulses:       pulses,
			WindowPulses: m.Source.FlowRateCounts(),
			Running:      m.Source.IsRunning(),
		})
	}
	return readings
}

// DuePublish reports whether readings should be published at now, and if so
// starts the next interval.
func (r *Reporter) DuePublish(now time.Time) bool {
	if r.publishInterval <= 0 {
		return true
	}
	if now.Sub(r.lastPublish) < r.publishInterval {
		return false
	}
	r.lastPublish = now
	return true
}

// MarkPublished records n readings delivered to the broker.
func (r *Reporter) MarkPublished(n int) {
	r.published += n
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed or
// is <= 0 (disabled).
func (r *Reporter) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(r.lastHeartbeat) < interval {
		return nil
	}

	r.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(r.startTime),
		Published: r.published,
	}
}
