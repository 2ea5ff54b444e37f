// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ball accumulates spin statistics from the ball's gyroscope frames.
package ball

import (
	"math"

	"github.com/relabs-tech/gait_computer/internal/protocol"
)

// Summary is the end-of-session spin report.
type Summary struct {
	StartMs          *uint32 `json:"t_start_ms"`
	EndMs            *uint32 `json:"t_end_ms"`
	DurationS        float64 `json:"duration_s"`
	Samples          int     `json:"samples"`
	AvgRevPerSec     float64 `json:"avg_rev_per_sec"`
	AvgSpinRPM       float64 `json:"avg_spin_rpm"`
	TotalRevolutions float64 `json:"total_revolutions"`
	PeakOmegaDegS    float64 `json:"omega_deg_s_peak"`
	PeakSpinRPS      float64 `json:"spin_rps_peak"`
	PeakSpinRPM      float64 `json:"spin_rpm_peak"`
}

// Stats accumulates angular rate over every received frame. Gyro counts are
// taken as deg/s.
type Stats struct {
	samples   int
	sumRevSec float64
	peakOmega float64
}

// Omega is the angular rate magnitude of f in deg/s.
func Omega(f protocol.BallFrame) float64 {
	x, y, z := float64(f.Gyro[0]), float64(f.Gyro[1]), float64(f.Gyro[2])
	return math.Sqrt(x*x + y*y + z*z)
}

// Add accumulates a decoded batch.
func (s *Stats) Add(frames []protocol.BallFrame) {
	for _, f := range frames {
		w := Omega(f)
		s.peakOmega = math.Max(s.peakOmega, w)
		s.sumRevSec += w / 360
		s.samples++
	}
}

// Samples is the number of frames accumulated so far.
func (s *Stats) Samples() int {
	return s.samples
}

// Summary derives the spin report. Without a usable timing record the
// duration, averages and revolution count are zero.
func (s *Stats) Summary(timing protocol.TimingRecord, hasTiming bool) Summary {
	out := Summary{
		Samples:       s.samples,
		PeakOmegaDegS: s.peakOmega,
		PeakSpinRPS:   s.peakOmega / 360,
		PeakSpinRPM:   s.peakOmega / 360 * 60,
	}
	if hasTiming {
		start, end := timing.StartMs, timing.EndMs
		out.StartMs, out.EndMs = &start, &end
		out.DurationS = timing.Duration().Seconds()
	}
	if s.samples > 0 && out.DurationS > 0 {
		out.AvgRevPerSec = s.sumRevSec / float64(s.samples)
		out.AvgSpinRPM = out.AvgRevPerSec * 60
		out.TotalRevolutions = out.AvgRevPerSec * out.DurationS
	}
	return out
}
