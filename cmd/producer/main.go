// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/gait_computer/internal/app"
	"github.com/relabs-tech/gait_computer/internal/config"
	"github.com/relabs-tech/gait_computer/internal/record"
)

func main() {
	configPath := flag.String("config", "gait_config.txt", "configuration file")
	format := flag.String("format", "json", "recording format: json or msgpack")
	speed := flag.Float64("speed", 1, "replay speed factor (0 publishes without pauses)")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: producer [-config file] [-format json|msgpack] [-speed x] <recording>")
	}

	log.Println("starting gait-computer MQTT producer (recording replay)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if config.Get().MQTTBroker == "" {
		log.Fatalf("MQTT_BROKER is required")
	}

	if err := app.RunReplayMQTT(flag.Arg(0), record.Format(*format), *speed); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
