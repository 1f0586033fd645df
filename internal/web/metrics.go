package web

import (
	"fmt"
	"io"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/sweeney/flow-sensor/internal/status"
)

const metricsContentType = "text/plain; version=0.0.4; charset=utf-8"

// buildMetrics converts a snapshot into Prometheus metric families.
// Rates are exported per second regardless of each meter's display unit.
func buildMetrics(snap status.Snapshot) []*dto.MetricFamily {
	rate := family("flow_sensor_rate", "Flow rate in volume units per second.", dto.MetricType_GAUGE)
	volume := family("flow_sensor_volume_total", "Volume accumulated since start.", dto.MetricType_COUNTER)
	window := family("flow_sensor_window_pulses", "Pulses counted in the last complete window.", dto.MetricType_GAUGE)
	running := family("flow_sensor_running", "Whether the meter is attached to its pin.", dto.MetricType_GAUGE)

	for _, r := range snap.Readings {
		labels := []*dto.LabelPair{
			{Name: ptr("meter"), Value: ptr(r.Meter)},
			{Name: ptr("unit"), Value: ptr(r.Unit)},
		}
		perSecond := r.Rate / r.RateUnit.Factor()
		rate.Metric = append(rate.Metric, &dto.Metric{Label: labels, Gauge: &dto.Gauge{Value: ptr(perSecond)}})
		volume.Metric = append(volume.Metric, &dto.Metric{Label: labels, Counter: &dto.Counter{Value: ptr(r.Volume)}})
		window.Metric = append(window.Metric, &dto.Metric{Label: labels[:1], Gauge: &dto.Gauge{Value: ptr(float64(r.WindowPulses))}})
		running.Metric = append(running.Metric, &dto.Metric{Label: labels[:1], Gauge: &dto.Gauge{Value: ptr(boolValue(r.Running))}})
	}

	mqtt := family("flow_sensor_mqtt_connected", "Whether the MQTT broker connection is up.", dto.MetricType_GAUGE)
	mqtt.Metric = []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(boolValue(snap.MQTTConnected))}}}

	uptime := family("flow_sensor_uptime_seconds", "Seconds since the daemon started.", dto.MetricType_GAUGE)
	uptime.Metric = []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(snap.Uptime().Seconds())}}}

	return []*dto.MetricFamily{rate, volume, window, running, mqtt, uptime}
}

func writeMetrics(w io.Writer, snap status.Snapshot) error {
	for _, mf := range buildMetrics(snap) {
		if len(mf.Metric) == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{Name: ptr(name), Help: ptr(help), Type: typ.Enum()}
}

func ptr[T any](v T) *T { return &v }

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
