// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/insole"
	"github.com/relabs-tech/gait_computer/internal/link"
	"github.com/relabs-tech/gait_computer/internal/link/ble"
	"github.com/relabs-tech/gait_computer/internal/link/serialbridge"
	"github.com/relabs-tech/gait_computer/internal/link/sim"
	"github.com/relabs-tech/gait_computer/internal/record"
	"github.com/relabs-tech/gait_computer/internal/session"
)

// NewRadio builds the radio selected by TRANSPORT. The returned close
// function releases it.
func NewRadio(cfg *config.Config) (link.Radio, func(), error) {
	switch cfg.Transport {
	case "sim":
		slog.Info("using simulated devices")
		return sim.NewRadio(
			sim.Profile{Name: cfg.InsoleName, Kind: sim.Insole},
			sim.Profile{Name: cfg.BallName, Kind: sim.Ball},
		), func() {}, nil

	case "serial":
		b, err := serialbridge.Open(serialbridge.Options{
			Port:        cfg.SerialPort,
			BaudRate:    cfg.SerialBaudRate,
			FindTimeout: cfg.ScanTimeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil

	default:
		return ble.NewRadio(cfg.ScanTimeout(), map[string]ble.Profile{
			cfg.InsoleName: {Service: cfg.InsoleServiceUUID, Cmd: cfg.InsoleCmdUUID, Data: cfg.InsoleDataUUID},
			cfg.BallName:   {Service: cfg.BallServiceUUID, Cmd: cfg.BallCmdUUID, Data: cfg.BallDataUUID},
		}), func() {}, nil
	}
}

// NewSink opens the output file and the optional MQTT and InfluxDB sinks.
func NewSink(cfg *config.Config) (record.Sink, error) {
	sinks := record.NewMultiSink()

	if cfg.OutputFile != "" {
		enc, err := record.NewEncoder(record.Format(cfg.OutputFormat))
		if err != nil {
			return nil, err
		}
		f, err := record.OpenFile(cfg.OutputFile, enc)
		if err != nil {
			return nil, err
		}
		sinks.Add("file", f)
		slog.Info("writing records", "file", cfg.OutputFile, "format", enc.Format())
	}

	if cfg.MQTTBroker != "" {
		m, err := record.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDRecorder, cfg.MQTTTopicPrefix)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks.Add("mqtt", m)
		slog.Info("publishing records", "broker", cfg.MQTTBroker, "prefix", cfg.MQTTTopicPrefix)
	}

	if cfg.InfluxURL != "" {
		sinks.Add("influx", record.DialInflux(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
		slog.Info("writing points", "influx", cfg.InfluxURL, "bucket", cfg.InfluxBucket)
	}

	if sinks.Len() == 0 {
		return nil, fmt.Errorf("no output configured: set OUTPUT_FILE, MQTT_BROKER or INFLUX_URL")
	}
	return sinks, nil
}

// NewRecorder assembles a recorder from the configuration.
func NewRecorder(cfg *config.Config, radio link.Radio, sink record.Sink) (*Recorder, error) {
	rc := &Recorder{
		Radio:   radio,
		Sink:    sink,
		Session: uuid.NewString(),
		Options: session.Options{
			Timeouts: session.Timeouts{
				Write:   cfg.PullWriteTimeout(),
				Batch:   cfg.BatchWaitTimeout(),
				Backoff: cfg.RetryBackoff(),
			},
			ConnectTimeout: cfg.ScanTimeout(),
			SettleDelay:    cfg.StopSettle(),
			WaitCeiling:    cfg.SessionWaitTimeout(),
		},
		ContinueOnMissing: cfg.ContinueOnMissingDevice,
	}

	if cfg.InsoleEnabled {
		layout := insole.DefaultLayout
		if cfg.InsoleLayout != "" {
			l, err := insole.LoadLayout(cfg.InsoleLayout)
			if err != nil {
				return nil, err
			}
			layout = l
		}
		rc.Insole = &InsoleSetup{
			Name:        cfg.InsoleName,
			Foot:        cfg.InsoleFoot,
			Layout:      layout,
			Calibration: insole.DefaultCalibration,
			Gait: gait.Options{
				BodyWeight: cfg.BodyWeightN,
				Ratio:      cfg.ForceThresholdRatio,
				Positions:  layout.Positions(),
			},
		}
	}
	if cfg.BallEnabled {
		rc.Ball = &BallSetup{Name: cfg.BallName}
	}
	return rc, nil
}

// StopSignal closes the returned channel on ENTER, SIGINT/SIGTERM or after
// duration (when > 0).
func StopSignal(ctx context.Context, stdin io.Reader, duration time.Duration) <-chan struct{} {
	stop := make(chan struct{})
	var once sync.Once
	fire := func(reason string) {
		once.Do(func() {
			slog.Info("stopping recording", "reason", reason)
			close(stop)
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case s := <-sigCh:
			fire(s.String())
		case <-stop:
		case <-ctx.Done():
		}
	}()

	if stdin != nil {
		go func() {
			if _, err := bufio.NewReader(stdin).ReadString('\n'); err == nil {
				fire("enter")
			}
		}()
	}
	if duration > 0 {
		time.AfterFunc(duration, func() { fire("duration elapsed") })
	}
	return stop
}

// RunRecorder records one session with the global configuration.
func RunRecorder(duration time.Duration) error {
	cfg := config.Get()
	cfg.SetupLogging()

	radio, closeRadio, err := NewRadio(cfg)
	if err != nil {
		return err
	}
	defer closeRadio()

	sink, err := NewSink(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	rc, err := NewRecorder(cfg, radio, sink)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var devices []string
	if rc.Insole != nil {
		devices = append(devices, rc.Insole.Name)
	}
	if rc.Ball != nil {
		devices = append(devices, rc.Ball.Name)
	}
	slog.Info("recording; press ENTER or Ctrl+C to stop", "session", rc.Session, "devices", strings.Join(devices, ","))

	res, err := rc.Run(ctx, StopSignal(ctx, os.Stdin, duration))
	if err != nil {
		return err
	}
	for _, d := range res.Devices {
		slog.Info("device finished",
			"device", d.Role,
			"frames", d.Frames,
			"done", d.Done,
			"timed_out", d.TimedOut,
			"error", d.Error)
	}
	if cfg.OutputFile != "" {
		slog.Info("saved", "file", cfg.OutputFile)
	}
	return nil
}
