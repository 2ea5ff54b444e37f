// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gait

import "testing"

func TestTemporalRunning(t *testing.T) {
	times := make([]float64, 30)
	for i := range times {
		times[i] = float64(i) * 0.1
	}
	hs := []int{2, 12, 22}
	to := []int{6, 16, 26}
	stance, _ := Pair(hs, to)

	m := Temporal(times, hs, to, stance)

	wantCT := []float64{0.4, 0.4, 0.4}
	wantFT := []float64{0.6, 0.6}
	wantStride := []float64{1.0, 1.0}
	check := func(name string, got, want []float64) {
		t.Helper()
		if len(got) != len(want) {
			t.Fatalf("%s = %v, want %v", name, got, want)
		}
		for i := range got {
			if !approx(got[i], want[i]) {
				t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
			}
		}
	}
	check("CT", m.CT, wantCT)
	check("FT", m.FT, wantFT)
	check("stride", m.Stride, wantStride)
	if !approx(m.StrideFrequency, 1.0) {
		t.Errorf("stride frequency = %v, want 1", m.StrideFrequency)
	}
}

func TestTemporalFlightSkipsWithoutPriorTO(t *testing.T) {
	times := []float64{0, 1, 2, 3, 4, 5}
	// Second HS has no TO before it.
	m := Temporal(times, []int{1, 2}, []int{4}, []Interval{{1, 4}})
	if len(m.FT) != 0 {
		t.Errorf("FT = %v, want none", m.FT)
	}
	if len(m.Stride) != 1 || !approx(m.StrideFrequency, 1) {
		t.Errorf("stride = %v freq = %v", m.Stride, m.StrideFrequency)
	}
}

func TestTemporalNoStrides(t *testing.T) {
	for _, hs := range [][]int{nil, {3}} {
		m := Temporal([]float64{0, 1, 2, 3}, hs, nil, nil)
		if m.StrideFrequency != 0 || len(m.Stride) != 0 {
			t.Errorf("hs=%v: stride=%v freq=%v, want none and 0", hs, m.Stride, m.StrideFrequency)
		}
	}
}
