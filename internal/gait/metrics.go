// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gait

// TemporalMetrics are durations in seconds derived from HS/TO indices.
type TemporalMetrics struct {
	CT              []float64 // contact time per stance
	FT              []float64 // flight time before each HS after the first
	Stride          []float64 // HS to next HS
	StrideFrequency float64   // Hz, 0 without strides
}

// Temporal computes contact, flight and stride durations.
func Temporal(times []float64, hs, to []int, stance []Interval) TemporalMetrics {
	var m TemporalMetrics

	for _, s := range stance {
		m.CT = append(m.CT, times[s.To]-times[s.From])
	}

	for i := 1; i < len(hs); i++ {
		prev := -1
		for j := len(to) - 1; j >= 0; j-- {
			if to[j] < hs[i] {
				prev = to[j]
				break
			}
		}
		if prev >= 0 {
			m.FT = append(m.FT, times[hs[i]]-times[prev])
		}
	}

	var sum float64
	for i := 0; i+1 < len(hs); i++ {
		d := times[hs[i+1]] - times[hs[i]]
		m.Stride = append(m.Stride, d)
		sum += d
	}
	if len(m.Stride) > 0 && sum > 0 {
		m.StrideFrequency = 1 / (sum / float64(len(m.Stride)))
	}
	return m
}
