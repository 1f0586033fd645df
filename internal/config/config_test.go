package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/flow-sensor/internal/flow"
	"github.com/sweeney/flow-sensor/internal/units"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
broker: "tcp://10.0.0.5:1883"
http: ":8080"
poll: 500ms
publish: 5s
heartbeat: 1m
meters:
  - name: mains
    pin: 17
    window_period_ms: 2000
    min_interval_ms: 4
    volume_per_pulse: 0.00222
    unit: L
    rate_unit: per_minute
    precision: 2
  - name: garden
    pin: 27
`
	cfg := loadFromString(t, yaml)

	assert.Equal(t, "tcp://10.0.0.5:1883", cfg.Broker)
	assert.Equal(t, ":8080", cfg.HTTP)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll)
	assert.Equal(t, 5*time.Second, cfg.Publish)
	assert.Equal(t, time.Minute, cfg.Heartbeat)
	require.Len(t, cfg.Meters, 2)

	m := cfg.Meters[0]
	assert.Equal(t, "mains", m.Name)
	assert.Equal(t, 17, m.Pin)
	assert.Equal(t, flow.Calibration{WindowPeriodMs: 2000, MinIntervalMs: 4, VolumePerPulse: 0.00222}, m.Calibration())
	assert.Equal(t, units.PerMinute, m.Rate())
	assert.Equal(t, int32(2), m.Precision)
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
meters:
  - name: garden
    pin: 27
`
	cfg := loadFromString(t, yaml)

	assert.Equal(t, DefaultBroker, cfg.Broker)
	assert.Equal(t, DefaultClientID, cfg.ClientID)
	assert.Equal(t, DefaultHTTP, cfg.HTTP)
	assert.Equal(t, "gpiochip0", cfg.Chip)
	assert.Equal(t, DefaultPoll, cfg.Poll)
	assert.Equal(t, DefaultPublish, cfg.Publish)
	assert.Equal(t, DefaultHeartbeat, cfg.Heartbeat)

	m := cfg.Meters[0]
	assert.Equal(t, flow.DefaultCalibration(), m.Calibration())
	assert.Equal(t, DefaultUnit, m.Unit)
	assert.Equal(t, units.PerSecond, m.Rate())
	assert.Equal(t, int32(DefaultPrecision), m.Precision)
}

func TestLoad_ExplicitZeroMinIntervalKept(t *testing.T) {
	cfg := loadFromString(t, `
meters:
  - name: a
    pin: 5
    min_interval_ms: 0
`)
	assert.Equal(t, uint32(0), cfg.Meters[0].MinIntervalMs)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"no meters": `broker: "tcp://x:1883"`,
		"zero window": `
meters:
  - name: a
    pin: 5
    window_period_ms: 0
`,
		"debounce swallows window": `
meters:
  - name: a
    pin: 5
    window_period_ms: 100
    min_interval_ms: 100
`,
		"zero volume per pulse": `
meters:
  - name: a
    pin: 5
    volume_per_pulse: 0
`,
		"duplicate name": `
meters:
  - name: a
    pin: 5
  - name: a
    pin: 6
`,
		"duplicate pin": `
meters:
  - name: a
    pin: 5
  - name: b
    pin: 5
`,
		"missing name": `
meters:
  - pin: 5
    name: ""
`,
		"bad rate unit": `
meters:
  - name: a
    pin: 5
    rate_unit: per_week
`,
		"bad precision": `
meters:
  - name: a
    pin: 5
    precision: 12
`,
		"negative publish": `
publish: -1s
meters:
  - name: a
    pin: 5
`,
		"zero poll": `
poll: 0s
meters:
  - name: a
    pin: 5
`,
		"not yaml": "meters: [",
	}
	for name, yaml := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := loadStringErr(t, yaml)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ZeroWindowIsCalibrationError(t *testing.T) {
	_, err := loadStringErr(t, `
meters:
  - name: a
    pin: 5
    window_period_ms: 0
`)
	assert.ErrorIs(t, err, flow.ErrInvalidCalibration)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	cfg := loadFromString(t, `
meters:
  - name: a
    pin: 5
  - name: b
    pin: 6
`)
	m, ok := cfg.Find("b")
	require.True(t, ok)
	assert.Equal(t, 6, m.Pin)

	_, ok = cfg.Find("c")
	assert.False(t, ok)
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	require.NoError(t, err)
	return cfg
}

func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return Load(path)
}
