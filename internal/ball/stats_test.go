// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ball

import (
	"math"
	"testing"

	"github.com/relabs-tech/gait_computer/internal/protocol"
)

func TestSummaryConstantSpin(t *testing.T) {
	var s Stats
	frames := make([]protocol.BallFrame, 100)
	for i := range frames {
		frames[i].Gyro = [3]int16{0, 0, 720}
	}
	s.Add(frames[:40])
	s.Add(frames[40:])

	sum := s.Summary(protocol.TimingRecord{StartMs: 1000, EndMs: 6000}, true)
	if sum.Samples != 100 {
		t.Errorf("samples = %d", sum.Samples)
	}
	if sum.DurationS != 5 {
		t.Errorf("duration = %v, want 5", sum.DurationS)
	}
	if math.Abs(sum.AvgRevPerSec-2) > 1e-9 || math.Abs(sum.AvgSpinRPM-120) > 1e-9 {
		t.Errorf("avg = %v rps / %v rpm, want 2 / 120", sum.AvgRevPerSec, sum.AvgSpinRPM)
	}
	if math.Abs(sum.TotalRevolutions-10) > 1e-9 {
		t.Errorf("total revolutions = %v, want 10", sum.TotalRevolutions)
	}
	if sum.PeakOmegaDegS != 720 || sum.PeakSpinRPM != 120 {
		t.Errorf("peak = %v deg/s %v rpm", sum.PeakOmegaDegS, sum.PeakSpinRPM)
	}
	if sum.StartMs == nil || *sum.StartMs != 1000 || *sum.EndMs != 6000 {
		t.Errorf("timing not reported: %+v", sum)
	}
}

func TestSummaryWithoutTiming(t *testing.T) {
	var s Stats
	s.Add([]protocol.BallFrame{{Gyro: [3]int16{3, 4, 0}}})

	sum := s.Summary(protocol.TimingRecord{}, false)
	if sum.StartMs != nil || sum.EndMs != nil {
		t.Error("timing reported without a timing record")
	}
	if sum.AvgRevPerSec != 0 || sum.TotalRevolutions != 0 {
		t.Errorf("averages without duration: %+v", sum)
	}
	if sum.PeakOmegaDegS != 5 {
		t.Errorf("peak omega = %v, want 5", sum.PeakOmegaDegS)
	}

	inverted := s.Summary(protocol.TimingRecord{StartMs: 10, EndMs: 5}, true)
	if inverted.DurationS != 0 || inverted.TotalRevolutions != 0 {
		t.Errorf("inverted timing produced %+v", inverted)
	}
}
