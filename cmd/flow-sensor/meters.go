package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/sweeney/flow-sensor/internal/clock"
	"github.com/sweeney/flow-sensor/internal/config"
	"github.com/sweeney/flow-sensor/internal/flow"
	"github.com/sweeney/flow-sensor/internal/gpio"
	"github.com/sweeney/flow-sensor/internal/report"
	"github.com/sweeney/flow-sensor/internal/units"
)

// meterSet is the running meters in config order. cfg holds the meter
// settings they were started with.
type meterSet struct {
	cfg    config.Config
	meters []*flow.Meter
}

// startMeters creates and starts one meter per configured sensor. On error
// any meters already started are closed.
func startMeters(cfg *config.Config, src gpio.EdgeSource, clk clock.Clock) (*meterSet, error) {
	set := &meterSet{}
	for _, mc := range cfg.Meters {
		m := flow.NewMeter(mc.Pin, src, clk)
		if err := m.SetCalibration(mc.Calibration()); err != nil {
			set.close()
			return nil, fmt.Errorf("meter %q: %w", mc.Name, err)
		}
		if err := m.Start(); err != nil {
			set.close()
			return nil, fmt.Errorf("meter %q: %w", mc.Name, err)
		}
		set.cfg.Meters = append(set.cfg.Meters, mc)
		set.meters = append(set.meters, m)
		log.Printf("meter %s: pin=%d window=%dms min_interval=%dms volume_per_pulse=%g",
			mc.Name, mc.Pin, mc.WindowPeriodMs, mc.MinIntervalMs, mc.VolumePerPulse)
	}
	return set, nil
}

func (s *meterSet) sources() []report.Meter {
	out := make([]report.Meter, len(s.meters))
	for i, m := range s.meters {
		mc := s.cfg.Meters[i]
		out[i] = report.Meter{
			Name:      mc.Name,
			Unit:      mc.Unit,
			RateUnit:  mc.Rate(),
			Precision: mc.Precision,
			Source:    m,
		}
	}
	return out
}

func (s *meterSet) close() error {
	var errs []error
	for _, m := range s.meters {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// applyCalibration swaps in new calibration for meters whose parameters
// changed. Each meter is paused for the swap and resumed if it was running.
// Added or removed meters and pin or output changes need a restart.
func applyCalibration(s *meterSet, cfg *config.Config) {
	for _, mc := range cfg.Meters {
		if _, ok := s.cfg.Find(mc.Name); !ok {
			log.Printf("config: meter %s added, restart to start it", mc.Name)
		}
	}

	for i, current := range s.cfg.Meters {
		m := s.meters[i]
		mc, ok := cfg.Find(current.Name)
		if !ok {
			log.Printf("config: meter %s removed, restart to stop it", current.Name)
			continue
		}
		if mc.Pin != current.Pin || mc.Unit != current.Unit || mc.RateUnit != current.RateUnit || mc.Precision != current.Precision {
			log.Printf("config: meter %s pin or output settings changed, restart to apply", mc.Name)
		}

		cal := mc.Calibration()
		if m.Calibration() == cal {
			continue
		}

		wasRunning := m.IsRunning()
		if err := m.Pause(); err != nil {
			log.Printf("config: meter %s: pause: %v", mc.Name, err)
			continue
		}
		if err := m.SetCalibration(cal); err != nil {
			log.Printf("config: meter %s: %v", mc.Name, err)
		} else {
			log.Printf("config: meter %s recalibrated: window=%dms min_interval=%dms volume_per_pulse=%g",
				mc.Name, cal.WindowPeriodMs, cal.MinIntervalMs, cal.VolumePerPulse)
		}
		if wasRunning {
			if err := m.Resume(); err != nil {
				log.Printf("config: meter %s: resume: %v", mc.Name, err)
			}
		}
	}
}

// runCalibrate waits for done (or a signal), then prints raw counts so the
// volume per pulse can be worked out from a measured pour. The line level is
// printed to help spot a floating or stuck input.
func runCalibrate(w io.Writer, s *meterSet, levels gpio.LevelReader, done <-chan time.Time, sig <-chan os.Signal) {
	select {
	case <-done:
	case got := <-sig:
		log.Printf("received %v, printing partial counts", got)
	}

	for i, m := range s.meters {
		mc := s.cfg.Meters[i]
		level := "?"
		if v, err := levels.Value(mc.Pin); err != nil {
			log.Printf("meter %s: %v", mc.Name, err)
		} else {
			level = strconv.Itoa(v)
		}
		pending := m.FlowCounts()
		rate := m.FlowRate()
		window := m.FlowRateCounts()
		volume := m.Volume()
		cal := m.Calibration()
		fmt.Fprintf(w, "%s: pin=%d level=%s pulses=%d window_pulses=%d volume=%s %s rate=%s %s volume_per_pulse=%g\n",
			mc.Name, mc.Pin, level, pending, window,
			units.MustRound(volume, mc.Precision), mc.Unit,
			units.MustRound(mc.Rate().FromPerSecond(rate), mc.Precision), mc.Rate().Label(mc.Unit),
			cal.VolumePerPulse)
	}
}
