// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gait

import (
	"math"
	"reflect"
	"testing"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func snapshots(total []float64) []ForceSnapshot {
	out := make([]ForceSnapshot, len(total))
	for i, v := range total {
		out[i] = ForceSnapshot{{Label: "Heel", Newton: v / 2}, {Label: "Toe", Newton: v / 2}}
	}
	return out
}

func TestCrossingsSingleStance(t *testing.T) {
	total := []float64{0, 0, 2, 8, 9, 3, 0, 0}
	times := []float64{0, .1, .2, .3, .4, .5, .6, .7}

	hs, to := Crossings(total, 5)
	if !reflect.DeepEqual(hs, []int{3}) || !reflect.DeepEqual(to, []int{5}) {
		t.Fatalf("HS=%v TO=%v, want [3] [5]", hs, to)
	}

	stance, swing := Pair(hs, to)
	if !reflect.DeepEqual(stance, []Interval{{From: 3, To: 5}}) {
		t.Errorf("stance = %v", stance)
	}
	if len(swing) != 0 {
		t.Errorf("swing = %v, want none", swing)
	}

	m := Temporal(times, hs, to, stance)
	if len(m.CT) != 1 || !approx(m.CT[0], 0.2) {
		t.Errorf("CT = %v, want [0.2]", m.CT)
	}
	if m.StrideFrequency != 0 {
		t.Errorf("stride frequency = %v, want 0", m.StrideFrequency)
	}
}

func TestCrossingsAlternate(t *testing.T) {
	total := []float64{0, 10, 10, 0, 10, 0, 0, 10, 10, 10}
	hs, to := Crossings(total, 5)

	if !reflect.DeepEqual(hs, []int{1, 4, 7}) {
		t.Errorf("HS = %v", hs)
	}
	// Trailing stance stays open.
	if !reflect.DeepEqual(to, []int{3, 5}) {
		t.Errorf("TO = %v", to)
	}

	// Alternation: every TO lies between consecutive HS.
	for i, t0 := range to {
		if !(hs[i] < t0 && (i+1 >= len(hs) || t0 < hs[i+1])) {
			t.Errorf("TO %d at %d not between HS %v", i, t0, hs)
		}
	}

	stance, swing := Pair(hs, to)
	wantStance := []Interval{{1, 3}, {4, 5}}
	wantSwing := []Interval{{3, 4}, {5, 7}}
	if !reflect.DeepEqual(stance, wantStance) {
		t.Errorf("stance = %v, want %v", stance, wantStance)
	}
	if !reflect.DeepEqual(swing, wantSwing) {
		t.Errorf("swing = %v, want %v", swing, wantSwing)
	}
}

func TestCrossingsThresholdTouch(t *testing.T) {
	// Reaching the threshold exactly counts as above; dropping to it does not end stance.
	hs, to := Crossings([]float64{4, 5, 5, 6, 5, 4.9}, 5)
	if !reflect.DeepEqual(hs, []int{1}) || !reflect.DeepEqual(to, []int{5}) {
		t.Errorf("HS=%v TO=%v, want [1] [5]", hs, to)
	}
	// First sample above threshold never produces an HS.
	hs, to = Crossings([]float64{9, 9, 1}, 5)
	if len(hs) != 0 || len(to) != 0 {
		t.Errorf("HS=%v TO=%v, want none", hs, to)
	}
}

func TestPairSkipsStaleTO(t *testing.T) {
	stance, swing := Pair([]int{5, 10}, []int{2, 7, 12})
	if want := []Interval{{5, 7}, {10, 12}}; !reflect.DeepEqual(stance, want) {
		t.Errorf("stance = %v, want %v", stance, want)
	}
	if want := []Interval{{7, 10}}; !reflect.DeepEqual(swing, want) {
		t.Errorf("swing = %v, want %v", swing, want)
	}
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		name       string
		total      []float64
		bodyWeight float64
		ratio      float64
		want       float64
	}{
		{"body weight", []float64{1, 2, 3}, 700, 0.05, 35},
		{"default ratio", []float64{1, 2, 3}, 700, 0, 35},
		{"single sample", []float64{40}, 0, 0.05, 2},
		{"top decile of ten", []float64{9, 1, 2, 3, 4, 5, 6, 7, 8, 100}, 0, 0.05, 5},
		// n=20: top = sorted[18:] = {19, 20}, element len/2 = 20
		{"top decile of twenty", seq(1, 20), 0, 0.1, 2},
		{"empty", nil, 0, 0.05, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Threshold(tt.total, tt.bodyWeight, tt.ratio); !approx(got, tt.want) {
				t.Errorf("Threshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func seq(from, to int) []float64 {
	var out []float64
	for i := from; i <= to; i++ {
		out = append(out, float64(i))
	}
	return out
}

func TestCenterOfPressure(t *testing.T) {
	positions := map[string]Position{
		"Heel": {X: 0, Y: -0.04},
		"Toe":  {X: 0.02, Y: 0.16},
	}
	forces := []ForceSnapshot{
		{{"Heel", 0}, {"Toe", 0}},
		{{"Heel", 30}, {"Toe", 10}},
		{{"Heel", -1}, {"Toe", 0}},
		{{"Heel", 10}, {"Unknown", 10}},
	}
	cop := CenterOfPressure([]float64{0, 0.01, 0.02, 0.03}, forces, positions)

	if cop[0].X != 0 || cop[0].Y != 0 {
		t.Errorf("zero force COP = %+v, want origin", cop[0])
	}
	if !approx(cop[1].X, 0.005) || !approx(cop[1].Y, 0.01) {
		t.Errorf("COP = %+v, want x=0.005 y=0.01", cop[1])
	}
	if cop[2].X != 0 || cop[2].Y != 0 {
		t.Errorf("negative force COP = %+v, want origin", cop[2])
	}
	// Sensors without a position weigh into the total only.
	if !approx(cop[3].Y, -0.02) {
		t.Errorf("COP with unknown label = %+v, want y=-0.02", cop[3])
	}
	if cop[1].T != 0.01 {
		t.Errorf("COP time = %v, want 0.01", cop[1].T)
	}
}

func TestDetect(t *testing.T) {
	times := []float64{0, .1, .2, .3, .4, .5, .6, .7}
	forces := snapshots([]float64{0, 0, 2, 8, 9, 3, 0, 0})

	ev := Detect(times, forces, Options{BodyWeight: 100, Ratio: 0.05})
	if ev.Threshold != 5 {
		t.Errorf("threshold = %v, want 5", ev.Threshold)
	}
	if !reflect.DeepEqual(ev.HS, []int{3}) || !reflect.DeepEqual(ev.TO, []int{5}) {
		t.Errorf("HS=%v TO=%v", ev.HS, ev.TO)
	}
	if len(ev.COP) != len(times) {
		t.Errorf("COP has %d points, want %d", len(ev.COP), len(times))
	}

	if empty := Detect(nil, nil, Options{}); len(empty.HS) != 0 || empty.Threshold != 0 || len(empty.COP) != 0 {
		t.Errorf("empty input produced %+v", empty)
	}
}
