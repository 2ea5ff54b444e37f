// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"strings"

	"github.com/relabs-tech/gait_computer/internal/app"
	"github.com/relabs-tech/gait_computer/internal/record"
)

func main() {
	format := flag.String("format", "json", "recording format: json or msgpack")
	out := flag.String("o", "", "output PNG (default: recording name with .png)")
	flag.Parse()
	if flag.NArg() != 1 {
		log.Fatalf("usage: plot [-format json|msgpack] [-o file.png] <recording>")
	}

	in := flag.Arg(0)
	if *out == "" {
		base := in
		if i := strings.LastIndex(base, "."); i > 0 {
			base = base[:i]
		}
		*out = base + ".png"
	}

	if err := app.RunPlot(in, record.Format(*format), *out); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
