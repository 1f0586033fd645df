package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sweeney/flow-sensor/internal/config"
	"github.com/sweeney/flow-sensor/internal/flow"
	"github.com/sweeney/flow-sensor/internal/gpio"
)

// defaultMeterName names the meter built from flags when no config file is given.
const defaultMeterName = "flow"

type options struct {
	configPath string
	broker     string
	httpAddr   string
	chip       string
	poll       time.Duration
	publish    time.Duration
	heartbeat  time.Duration
	calibrate  time.Duration

	pin            int
	windowMs       uint
	minIntervalMs  uint
	volumePerPulse float64
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "YAML config file (watched for calibration changes)")
	fs.StringVar(&o.broker, "broker", config.DefaultBroker, "MQTT broker address")
	fs.StringVar(&o.httpAddr, "http", config.DefaultHTTP, "HTTP status address (empty to disable)")
	fs.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip device")
	fs.DurationVar(&o.poll, "poll", config.DefaultPoll, "Meter sampling interval")
	fs.DurationVar(&o.publish, "publish", config.DefaultPublish, "MQTT publish interval (0 publishes every poll)")
	fs.DurationVar(&o.heartbeat, "heartbeat", config.DefaultHeartbeat, "Heartbeat interval (0 to disable)")
	fs.DurationVar(&o.calibrate, "calibrate", 0, "Count pulses for this long, print totals and exit")
	fs.IntVar(&o.pin, "pin", gpio.DefaultPin, "GPIO line for the meter (ignored with -config)")
	fs.UintVar(&o.windowMs, "window", flow.DefaultWindowPeriodMs, "Rate window in ms (ignored with -config)")
	fs.UintVar(&o.minIntervalMs, "min-interval", flow.DefaultMinIntervalMs, "Minimum ms between accepted pulses (ignored with -config)")
	fs.Float64Var(&o.volumePerPulse, "volume-per-pulse", flow.DefaultVolumePerPulse, "Volume per pulse (ignored with -config)")
}

var meterFlags = []string{"pin", "window", "min-interval", "volume-per-pulse"}

// buildConfig loads the config file if one was given, otherwise builds a
// single-meter config from flags. Daemon flags set explicitly on the command
// line override the file.
func (o *options) buildConfig(explicit map[string]bool) (*config.Config, error) {
	var cfg *config.Config
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		for _, name := range meterFlags {
			if explicit[name] {
				log.Printf("config: -%s ignored, meters come from %s", name, o.configPath)
			}
		}
	} else {
		if o.windowMs > math.MaxUint32 {
			return nil, fmt.Errorf("config: -window %d exceeds %d ms", o.windowMs, uint32(math.MaxUint32))
		}
		if o.minIntervalMs > math.MaxUint32 {
			return nil, fmt.Errorf("config: -min-interval %d exceeds %d ms", o.minIntervalMs, uint32(math.MaxUint32))
		}
		cfg = config.Default()
		m := config.DefaultMeter()
		m.Name = defaultMeterName
		m.Pin = o.pin
		m.WindowPeriodMs = uint32(o.windowMs)
		m.MinIntervalMs = uint32(o.minIntervalMs)
		m.VolumePerPulse = o.volumePerPulse
		cfg.Meters = []config.Meter{m}
	}

	override := func(name string) bool { return o.configPath == "" || explicit[name] }
	if override("broker") {
		cfg.Broker = o.broker
	}
	if override("http") {
		cfg.HTTP = o.httpAddr
	}
	if override("chip") {
		cfg.Chip = o.chip
	}
	if override("poll") {
		cfg.Poll = o.poll
	}
	if override("publish") {
		cfg.Publish = o.publish
	}
	if override("heartbeat") {
		cfg.Heartbeat = o.heartbeat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
