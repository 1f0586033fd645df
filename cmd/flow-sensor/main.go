// Command flow-sensor counts pulses from GPIO flow meters and publishes
// volume and flow rate readings to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/flow-sensor/internal/clock"
	"github.com/sweeney/flow-sensor/internal/config"
	"github.com/sweeney/flow-sensor/internal/gpio"
	"github.com/sweeney/flow-sensor/internal/mqtt"
	"github.com/sweeney/flow-sensor/internal/report"
	"github.com/sweeney/flow-sensor/internal/status"
	"github.com/sweeney/flow-sensor/internal/web"
)

func main() {
	var opts options
	opts.register(flag.CommandLine)
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	cfg, err := opts.buildConfig(explicit)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, opts.configPath, opts.calibrate); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, configPath string, calibrate time.Duration) error {
	src, err := gpio.NewRealEdgeSource(cfg.Chip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer src.Close()

	meters, err := startMeters(cfg, src, clock.NewMonotonic())
	if err != nil {
		return err
	}
	defer meters.close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Calibration mode
	if calibrate > 0 {
		log.Printf("calibrating for %v, pour a known volume now", calibrate)
		runCalibrate(os.Stdout, meters, src, time.After(calibrate), sigCh)
		return nil
	}

	publisher := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID)
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		PublishMs:   cfg.Publish.Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
		Broker:      cfg.Broker,
		HTTPAddr:    cfg.HTTP,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	if configPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			err := config.Watch(ctx, configPath, func(c *config.Config) {
				applyCalibration(meters, c)
			})
			if err != nil {
				log.Printf("config watch stopped: %v", err)
			}
		}()
	}

	log.Printf("started: meters=%d poll=%v publish=%v broker=%s heartbeat=%v",
		len(cfg.Meters), cfg.Poll, cfg.Publish, cfg.Broker, cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	return runLoop(meters.sources(), cfg.Publish, publisher, publisher, tracker, cfg.Heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(meters []report.Meter, publish time.Duration, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	reporter := report.New(meters, publish, now())

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}

			// Flush what was counted since the last publish.
			t := now()
			readings := reporter.Sample(t)
			publishReadings(reporter, publisher, readings)

			event := mqtt.SystemEvent{
				Timestamp: t,
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				tracker.Update(readings)
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			readings := reporter.Sample(t)

			// Update status tracker for HTTP/websocket consumers
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				tracker.Update(readings)
			}

			if reporter.DuePublish(t) {
				publishReadings(reporter, publisher, readings)
			}

			if hbData := reporter.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v published=%d", hbData.Uptime, hbData.Published)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func publishReadings(reporter *report.Reporter, publisher mqtt.Publisher, readings []report.Reading) {
	sent := 0
	for _, r := range readings {
		if err := publisher.Publish(r); err != nil {
			// Don't crash on publish failure
			log.Printf("publish error: meter=%s: %v", r.Meter, err)
			continue
		}
		sent++
	}
	reporter.MarkPublished(sent)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
