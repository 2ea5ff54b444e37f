// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gait derives heel-strike / toe-off events, the center of pressure
// path and temporal metrics from an insole force series.
package gait

import "sort"

// DefaultThresholdRatio is the HS/TO threshold as a fraction of the reference force.
const DefaultThresholdRatio = 0.05

// Force is one sensor's force in Newtons.
type Force struct {
	Label  string
	Newton float64
}

// ForceSnapshot maps sensor label to force at one instant, in channel order.
type ForceSnapshot []Force

// Total returns the sum of all forces.
func (s ForceSnapshot) Total() float64 {
	var sum float64
	for _, f := range s {
		sum += f.Newton
	}
	return sum
}

// Get returns the force for label, 0 if absent.
func (s ForceSnapshot) Get(label string) float64 {
	for _, f := range s {
		if f.Label == label {
			return f.Newton
		}
	}
	return 0
}

// Interval is a pair of sample indices. For stance it is (HS, TO), for swing (TO, next HS).
type Interval struct {
	From int
	To   int
}

// Position is a sensor location on the insole plane, in metres.
type Position struct {
	X float64
	Y float64
}

// COPPoint is the center of pressure at device time T, in metres.
type COPPoint struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Options tune event detection.
type Options struct {
	// BodyWeight in Newtons; <= 0 derives the reference force from the data.
	BodyWeight float64
	// Ratio of the reference force used as threshold; <= 0 means DefaultThresholdRatio.
	Ratio float64
	// Positions of the sensors by label, for the COP path.
	Positions map[string]Position
}

// Events is the result of Detect.
type Events struct {
	Threshold float64
	HS        []int
	TO        []int
	Stance    []Interval
	Swing     []Interval
	COP       []COPPoint
}

// TotalForce returns the per-sample total force series.
func TotalForce(forces []ForceSnapshot) []float64 {
	out := make([]float64, len(forces))
	for i, s := range forces {
		out[i] = s.Total()
	}
	return out
}

// Threshold returns ratio × bodyWeight, or ratio × the median of the top
// decile of total when no body weight is known.
func Threshold(total []float64, bodyWeight, ratio float64) float64 {
	if ratio <= 0 {
		ratio = DefaultThresholdRatio
	}
	if bodyWeight > 0 {
		return ratio * bodyWeight
	}
	if len(total) == 0 {
		return 0
	}

	sorted := append([]float64(nil), total...)
	sort.Float64s(sorted)
	top := sorted[int(0.9*float64(len(sorted))):]
	return ratio * top[len(top)/2]
}

// Crossings scans consecutive samples for threshold crossings. A rising
// crossing records HS, a falling one records TO; the "above" state makes them
// alternate. A stance still open at the end of the series has no TO.
func Crossings(total []float64, thr float64) (hs, to []int) {
	above := false
	for i := 1; i < len(total); i++ {
		prev, cur := total[i-1], total[i]
		switch {
		case !above && prev < thr && thr <= cur:
			hs = append(hs, i)
			above = true
		case above && prev >= thr && thr > cur:
			to = append(to, i)
			above = false
		}
	}
	return hs, to
}

// Pair matches every HS with the first unconsumed TO at or after it. Each
// matched TO opens a swing interval ending at the next HS strictly after it.
func Pair(hs, to []int) (stance, swing []Interval) {
	ti := 0
	for _, h := range hs {
		for ti < len(to) && to[ti] < h {
			ti++
		}
		if ti >= len(to) {
			break
		}
		t := to[ti]
		stance = append(stance, Interval{From: h, To: t})

		next := sort.SearchInts(hs, t+1)
		if next < len(hs) {
			swing = append(swing, Interval{From: t, To: hs[next]})
		}
		ti++
	}
	return stance, swing
}

// CenterOfPressure returns the force-weighted centroid of the sensor
// positions for every sample; (0,0) when the total force is not positive.
func CenterOfPressure(times []float64, forces []ForceSnapshot, positions map[string]Position) []COPPoint {
	n := min(len(times), len(forces))
	out := make([]COPPoint, n)
	for i := 0; i < n; i++ {
		out[i].T = times[i]

		total := forces[i].Total()
		if total <= 0 {
			continue
		}
		var sx, sy float64
		for _, f := range forces[i] {
			p, ok := positions[f.Label]
			if !ok {
				continue
			}
			sx += f.Newton * p.X
			sy += f.Newton * p.Y
		}
		out[i].X = sx / total
		out[i].Y = sy / total
	}
	return out
}

// Detect runs threshold derivation, crossing detection, pairing and the COP
// path over a force series sampled at times.
func Detect(times []float64, forces []ForceSnapshot, opts Options) Events {
	if len(times) == 0 || len(forces) == 0 {
		return Events{}
	}

	total := TotalForce(forces)
	thr := Threshold(total, opts.BodyWeight, opts.Ratio)
	hs, to := Crossings(total, thr)
	stance, swing := Pair(hs, to)

	return Events{
		Threshold: thr,
		HS:        hs,
		TO:        to,
		Stance:    stance,
		Swing:     swing,
		COP:       CenterOfPressure(times, forces, opts.Positions),
	}
}
