// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/gait_computer/internal/app"
	"github.com/relabs-tech/gait_computer/internal/config"
)

func main() {
	configPath := flag.String("config", "gait_config.txt", "configuration file")
	duration := flag.Duration("duration", 0, "stop after this long (0 waits for ENTER or Ctrl+C)")
	flag.Parse()

	log.Println("starting gait-computer recorder")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRecorder(*duration); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
