// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package insole

import (
	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/protocol"
)

// Reading is one channel of one sample with derived quantities.
type Reading struct {
	Label      string  `json:"label"`
	Raw        uint16  `json:"analog"`
	Resistance float64 `json:"resistance"`
	Force      float64 `json:"force"`    // N
	Pressure   float64 `json:"pressure"` // Pa
}

// Sample is one decoded insole frame at device time T (s).
type Sample struct {
	T        float64   `json:"t"`
	Readings []Reading `json:"sensors"`
}

// Processor accumulates the time-aligned series of one insole. It is used by
// a single pull worker and read once that worker has returned.
type Processor struct {
	layout Layout
	cal    Calibration

	times  []float64
	forces []gait.ForceSnapshot
}

// NewProcessor creates a processor for layout using cal.
func NewProcessor(layout Layout, cal Calibration) *Processor {
	return &Processor{layout: layout, cal: cal}
}

// Reading calibrates channel i of a raw value.
func (p *Processor) Reading(i int, raw uint16) Reading {
	resistance, force := p.cal.Apply(raw)
	r := Reading{
		Label:      p.layout.Channels[i].Label,
		Raw:        raw,
		Resistance: resistance,
		Force:      force,
	}
	if force > 0 {
		if area := p.layout.Area(i) * 1e-4; area > 0 {
			r.Pressure = force / area
		}
	}
	return r
}

// Process converts frames to samples and appends them to the series in
// arrival order.
func (p *Processor) Process(frames []protocol.InsoleFrame) []Sample {
	out := make([]Sample, 0, len(frames))
	for _, f := range frames {
		s := Sample{
			T:        float64(f.Ticks) / p.layout.TicksPerSecond,
			Readings: make([]Reading, len(p.layout.Channels)),
		}
		snap := make(gait.ForceSnapshot, len(p.layout.Channels))
		for i := range p.layout.Channels {
			r := p.Reading(i, f.Channels[i])
			s.Readings[i] = r
			snap[i] = gait.Force{Label: r.Label, Newton: r.Force}
		}

		p.times = append(p.times, s.T)
		p.forces = append(p.forces, snap)
		out = append(out, s)
	}
	return out
}

// Series returns the accumulated device times and force snapshots.
func (p *Processor) Series() ([]float64, []gait.ForceSnapshot) {
	return p.times, p.forces
}

// Len is the number of accumulated samples.
func (p *Processor) Len() int {
	return len(p.times)
}
