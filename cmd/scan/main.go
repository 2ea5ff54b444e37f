// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"time"

	"github.com/relabs-tech/gait_computer/internal/app"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "how long to listen")
	filter := flag.String("name", "", "only list names containing this")
	flag.Parse()

	log.Println("starting gait-computer BLE scan")

	if err := app.RunScan(*timeout, *filter); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
