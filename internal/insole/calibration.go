// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package insole turns raw insole ADC frames into resistance, force and
// pressure readings and keeps the time-aligned force series for gait analysis.
package insole

import (
	"math"
)

// Calibration maps a raw ADC reading to a force through the FSR curve
// force = K * resistance^-P, clamped to [0, MaxForce].
type Calibration struct {
	Ceiling    uint16  // ADC saturation value
	RefVoltage float64 // divider reference
	K          float64
	P          float64
	MaxForce   float64 // N
}

// DefaultCalibration is the empirical curve of the current insole build.
var DefaultCalibration = Calibration{
	Ceiling:    4095,
	RefVoltage: 3.3,
	K:          156.6869,
	P:          1.839,
	MaxForce:   30,
}

// Apply returns (resistance, force). Zero and saturated readings yield (0, 0).
func (c Calibration) Apply(raw uint16) (resistance, force float64) {
	if raw == 0 || raw >= c.Ceiling {
		return 0, 0
	}
	a := float64(raw)
	resistance = (a / (float64(c.Ceiling) - a)) * c.RefVoltage
	force = c.K * math.Pow(resistance, -c.P)
	if math.IsNaN(force) {
		return 0, 0
	}
	return resistance, math.Min(math.Max(force, 0), c.MaxForce)
}

// Raw is the inverse of Apply: the ADC reading producing force. Forces <= 0
// map to 0, forces at or above MaxForce to the smallest reading that clamps.
func (c Calibration) Raw(force float64) uint16 {
	if force <= 0 {
		return 0
	}
	force = math.Min(force, c.MaxForce)
	resistance := math.Pow(c.K/force, 1/c.P)
	a := resistance * float64(c.Ceiling) / (c.RefVoltage + resistance)
	raw := math.Round(a)
	if raw < 1 {
		raw = 1
	}
	if raw >= float64(c.Ceiling) {
		raw = float64(c.Ceiling) - 1
	}
	return uint16(raw)
}
