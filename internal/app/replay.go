// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/record"
)

// Replay reads a recording and hands every record to fn. With speed > 0 the
// gaps between host timestamps are reproduced, divided by speed.
func Replay(ctx context.Context, path string, format record.Format, speed float64, fn func(record.Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	recs, err := record.ReadAll(f, format)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var prev float64
	for i, r := range recs {
		ts := r.Head().Timestamp
		if speed > 0 && i > 0 && ts > prev {
			wait := time.Duration((ts - prev) / speed * float64(time.Second))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		prev = ts
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// RunReplayConsole prints a recording the way the MQTT console does.
func RunReplayConsole(path string, format record.Format, speed float64) error {
	log.Printf("console: replaying %s", path)
	return Replay(context.Background(), path, format, speed, func(r record.Record) error {
		fmt.Println(Describe(r))
		return nil
	})
}

// RunReplayMQTT publishes a recording under the configured topic prefix, so
// the console and web tools can be exercised without devices.
func RunReplayMQTT(path string, format record.Format, speed float64) error {
	cfg := config.Get()
	sink, err := record.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDRecorder, cfg.MQTTTopicPrefix)
	if err != nil {
		return err
	}
	defer sink.Close()
	log.Printf("connected to MQTT broker at %s, replaying %s", cfg.MQTTBroker, path)

	ctx := context.Background()
	n := 0
	err = Replay(ctx, path, format, speed, func(r record.Record) error {
		n++
		return sink.Emit(ctx, r)
	})
	log.Printf("published %d records", n)
	return err
}
