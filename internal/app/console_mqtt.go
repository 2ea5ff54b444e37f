// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/gait_computer/internal/ball"
	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/record"
)

func newtons(f float64) physic.Force {
	return physic.Force(f * float64(physic.Newton))
}

func pascals(p float64) physic.Pressure {
	return physic.Pressure(p * float64(physic.Pascal))
}

func hertz(f float64) physic.Frequency {
	return physic.Frequency(f * float64(physic.Hertz))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}

// Describe renders one record as a console line.
func Describe(r record.Record) string {
	switch rec := r.(type) {
	case *record.InsoleSample:
		var total float64
		peak := -1
		for i, s := range rec.Sensors {
			total += s.Force
			if peak < 0 || s.Force > rec.Sensors[peak].Force {
				peak = i
			}
		}
		line := fmt.Sprintf("[INSOLE-%s] t=%8.3fs total=%s", footTag(rec.Foot), rec.T, newtons(total))
		if peak >= 0 && rec.Sensors[peak].Force > 0 {
			s := rec.Sensors[peak]
			line += fmt.Sprintf("  peak %s %s (%s)", s.Label, newtons(s.Force), pascals(s.Pressure))
		}
		return line

	case *record.BallBatch:
		peak := 0.0
		for _, f := range rec.Frames() {
			peak = max(peak, ball.Omega(f))
		}
		return fmt.Sprintf("[BALL] %3d frames  peak ω=%7.1f°/s", len(rec.Records), peak)

	case *record.GaitEvents:
		var ct float64
		for _, v := range rec.Temporal.CT {
			ct += v / float64(len(rec.Temporal.CT))
		}
		return fmt.Sprintf("[GAIT-%s] thr=%s HS=%d TO=%d stance=%d  CT=%v  cadence=%s",
			footTag(rec.Foot), newtons(rec.Events.ThresholdN),
			len(rec.Events.HS), len(rec.Events.TO), len(rec.Events.Stance),
			seconds(ct), hertz(rec.Temporal.StrideFrequency))

	case *record.COPPath:
		return fmt.Sprintf("[COP-%s] %d points", footTag(rec.Foot), len(rec.Path))

	case *record.BallSummary:
		s := rec.Summary
		return fmt.Sprintf("[BALL] %v  %d samples  avg %.2f rev/s (%.0f rpm)  total %.1f rev  peak %.0f rpm",
			seconds(s.DurationS), s.Samples, s.AvgRevPerSec, s.AvgSpinRPM, s.TotalRevolutions, s.PeakSpinRPM)

	case *record.SessionEnd:
		parts := make([]string, 0, len(rec.Devices))
		for _, d := range rec.Devices {
			status := "done"
			switch {
			case d.Error != "":
				status = "missing"
			case d.TimedOut:
				status = "timed out"
			}
			parts = append(parts, fmt.Sprintf("%s %d frames %s", d.Role, d.Frames, status))
		}
		return fmt.Sprintf("[END] %s  %s", time.UnixMilli(rec.T).Format(time.TimeOnly), strings.Join(parts, ", "))
	}
	return fmt.Sprintf("[%s]", r.Kind())
}

func footTag(foot string) string {
	if foot == "" {
		return "?"
	}
	return strings.ToUpper(foot[:1])
}

// RunConsoleMQTT prints every record published under the topic prefix.
func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	topic := cfg.MQTTTopicPrefix + "/#"
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		r, err := record.Decode(msg.Payload())
		if err != nil {
			log.Printf("console: %s: %v", msg.Topic(), err)
			return
		}
		fmt.Println(Describe(r))
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
