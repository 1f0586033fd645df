// Package config loads the flow-sensor daemon configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/flow-sensor/internal/flow"
	"github.com/sweeney/flow-sensor/internal/gpio"
	"github.com/sweeney/flow-sensor/internal/units"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultBroker    = "tcp://192.168.1.200:1883"
	DefaultClientID  = "flow-sensor"
	DefaultHTTP      = ":80"
	DefaultPoll      = 1 * time.Second
	DefaultPublish   = 10 * time.Second
	DefaultHeartbeat = 15 * time.Minute
	DefaultUnit      = "L"
	DefaultPrecision = 3
)

// Config is the daemon configuration.
type Config struct {
	// Broker is the MQTT broker URL.
	Broker string `yaml:"broker"`

	// ClientID is the MQTT client identifier.
	ClientID string `yaml:"client_id"`

	// HTTP is the status server listen address; empty disables it.
	HTTP string `yaml:"http"`

	// Chip is the gpiochip device name.
	Chip string `yaml:"chip"`

	// Poll is how often meters are sampled for the status page.
	Poll time.Duration `yaml:"poll"`

	// Publish is how often readings go to MQTT; 0 publishes every poll.
	Publish time.Duration `yaml:"publish"`

	// Heartbeat is the system heartbeat interval; 0 disables it.
	Heartbeat time.Duration `yaml:"heartbeat"`

	Meters []Meter `yaml:"meters"`
}

// Meter configures one flow sensor.
type Meter struct {
	// Name identifies the meter in topics, metrics and logs.
	Name string `yaml:"name"`

	// Pin is the GPIO line offset (BCM numbering on a Pi).
	Pin int `yaml:"pin"`

	WindowPeriodMs uint32  `yaml:"window_period_ms"`
	MinIntervalMs  uint32  `yaml:"min_interval_ms"`
	VolumePerPulse float64 `yaml:"volume_per_pulse"`

	// Unit is the volume unit label, e.g. "L".
	Unit string `yaml:"unit"`

	// RateUnit is per_second, per_minute or per_hour.
	RateUnit string `yaml:"rate_unit"`

	// Precision is the number of decimal places published.
	Precision int32 `yaml:"precision"`
}

// UnmarshalYAML fills unset fields with defaults. A field written explicitly
// as zero keeps its zero value, so validation can reject it.
func (m *Meter) UnmarshalYAML(value *yaml.Node) error {
	type plain Meter
	p := plain(DefaultMeter())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = Meter(p)
	return nil
}

// DefaultMeter returns a meter on the default pin with the default calibration.
func DefaultMeter() Meter {
	cal := flow.DefaultCalibration()
	return Meter{
		Name:           "main",
		Pin:            gpio.DefaultPin,
		WindowPeriodMs: cal.WindowPeriodMs,
		MinIntervalMs:  cal.MinIntervalMs,
		VolumePerPulse: cal.VolumePerPulse,
		Unit:           DefaultUnit,
		RateUnit:       string(units.PerSecond),
		Precision:      DefaultPrecision,
	}
}

// Calibration returns the meter's calibration parameters.
func (m Meter) Calibration() flow.Calibration {
	return flow.Calibration{
		WindowPeriodMs: m.WindowPeriodMs,
		MinIntervalMs:  m.MinIntervalMs,
		VolumePerPulse: m.VolumePerPulse,
	}
}

// Rate returns the parsed rate unit. Only valid after Validate.
func (m Meter) Rate() units.RateUnit {
	u, _ := units.ParseRateUnit(m.RateUnit)
	return u
}

// Default returns a Config with daemon defaults and no meters.
func Default() *Config {
	return &Config{
		Broker:    DefaultBroker,
		ClientID:  DefaultClientID,
		HTTP:      DefaultHTTP,
		Chip:      gpio.DefaultChip,
		Poll:      DefaultPoll,
		Publish:   DefaultPublish,
		Heartbeat: DefaultHeartbeat,
	}
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks required fields and structural constraints.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.Chip == "" {
		return errors.New("chip is required")
	}
	if c.Poll <= 0 {
		return errors.New("poll must be positive")
	}
	if c.Publish < 0 {
		return errors.New("publish must not be negative")
	}
	if c.Heartbeat < 0 {
		return errors.New("heartbeat must not be negative")
	}
	if len(c.Meters) == 0 {
		return errors.New("at least one meter is required")
	}

	names := make(map[string]bool)
	pins := make(map[int]string)
	for i, m := range c.Meters {
		if m.Name == "" {
			return fmt.Errorf("meters[%d]: name is required", i)
		}
		if names[m.Name] {
			return fmt.Errorf("meters[%d]: duplicate name %q", i, m.Name)
		}
		names[m.Name] = true

		if m.Pin < 0 {
			return fmt.Errorf("meters[%d] %q: pin must not be negative", i, m.Name)
		}
		if other, ok := pins[m.Pin]; ok {
			return fmt.Errorf("meters[%d] %q: pin %d already used by %q", i, m.Name, m.Pin, other)
		}
		pins[m.Pin] = m.Name

		if err := m.Calibration().Validate(); err != nil {
			return fmt.Errorf("meters[%d] %q: %w", i, m.Name, err)
		}
		if _, err := units.ParseRateUnit(m.RateUnit); err != nil {
			return fmt.Errorf("meters[%d] %q: %w", i, m.Name, err)
		}
		if m.Precision < 0 || m.Precision > units.MaxPrecision {
			return fmt.Errorf("meters[%d] %q: precision must be between 0 and %d", i, m.Name, units.MaxPrecision)
		}
	}
	return nil
}

// Find returns the meter named name.
func (c *Config) Find(name string) (Meter, bool) {
	for _, m := range c.Meters {
		if m.Name == name {
			return m, true
		}
	}
	return Meter{}, false
}
