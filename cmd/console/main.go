// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/gait_computer/internal/app"
	"github.com/relabs-tech/gait_computer/internal/record"
)

func main() {
	format := flag.String("format", "json", "recording format: json or msgpack")
	speed := flag.Float64("speed", 0, "replay speed factor (0 prints without pauses)")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: console [-format json|msgpack] [-speed x] <recording>")
	}

	log.Println("starting gait-computer console (recording replay)")

	if err := app.RunReplayConsole(flag.Arg(0), record.Format(*format), *speed); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
