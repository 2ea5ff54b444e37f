// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record defines the output records of a recording run and the sinks
// they are written to.
package record

import (
	"time"

	"github.com/relabs-tech/gait_computer/internal/ball"
	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/insole"
	"github.com/relabs-tech/gait_computer/internal/protocol"
)

// Kind tags every record.
type Kind string

const (
	KindInsoleSample Kind = "insole_sample"
	KindBallBatch    Kind = "ball_batch"
	KindGaitEvents   Kind = "gait_events"
	KindCOPPath      Kind = "cop_path"
	KindBallSummary  Kind = "ball_summary"
	KindSessionEnd   Kind = "session_end"
)

// Kinds lists every record kind in emission order.
var Kinds = []Kind{KindInsoleSample, KindBallBatch, KindGaitEvents, KindCOPPath, KindBallSummary, KindSessionEnd}

// Header is common to all records.
type Header struct {
	Kind      Kind    `json:"kind"`
	Timestamp float64 `json:"timestamp"` // host time, unix seconds
	Session   string  `json:"session"`
}

// Head gives access to the embedded header.
func (h *Header) Head() *Header { return h }

// Time returns the host timestamp.
func (h *Header) Time() time.Time {
	sec := int64(h.Timestamp)
	return time.Unix(sec, int64((h.Timestamp-float64(sec))*1e9))
}

// Record is one of the concrete record types in this package.
type Record interface {
	Kind() Kind
	Head() *Header
}

// Stamp fills the header of r.
func Stamp(r Record, session string, now time.Time) Record {
	h := r.Head()
	h.Kind = r.Kind()
	h.Session = session
	h.Timestamp = float64(now.UnixNano()) / 1e9
	return r
}

// InsoleSample is one decoded insole frame.
type InsoleSample struct {
	Header
	Foot    string           `json:"foot"`
	Ticks   uint32           `json:"ticks"`
	T       float64          `json:"t"` // device time, s
	Sensors []insole.Reading `json:"sensors"`
}

func (*InsoleSample) Kind() Kind { return KindInsoleSample }

// NewInsoleSample wraps a processed sample.
func NewInsoleSample(foot string, ticks uint32, s insole.Sample) *InsoleSample {
	return &InsoleSample{Foot: foot, Ticks: ticks, T: s.T, Sensors: s.Readings}
}

// BallReading is one raw ball frame.
type BallReading struct {
	AX int16 `json:"ax"`
	AY int16 `json:"ay"`
	AZ int16 `json:"az"`
	GX int16 `json:"gx"`
	GY int16 `json:"gy"`
	GZ int16 `json:"gz"`
}

// BallBatch carries the raw frames of one pulled batch.
type BallBatch struct {
	Header
	Records []BallReading `json:"records"`
}

func (*BallBatch) Kind() Kind { return KindBallBatch }

// NewBallBatch converts decoded frames.
func NewBallBatch(frames []protocol.BallFrame) *BallBatch {
	b := &BallBatch{Records: make([]BallReading, 0, len(frames))}
	for _, f := range frames {
		b.Records = append(b.Records, BallReading{
			AX: f.Accel[0], AY: f.Accel[1], AZ: f.Accel[2],
			GX: f.Gyro[0], GY: f.Gyro[1], GZ: f.Gyro[2],
		})
	}
	return b
}

// Frames converts the records back to frames.
func (b *BallBatch) Frames() []protocol.BallFrame {
	out := make([]protocol.BallFrame, 0, len(b.Records))
	for _, r := range b.Records {
		out = append(out, protocol.BallFrame{
			Accel: [3]int16{r.AX, r.AY, r.AZ},
			Gyro:  [3]int16{r.GX, r.GY, r.GZ},
		})
	}
	return out
}

// EventSet holds the detected event indices. Intervals are [from, to] pairs.
type EventSet struct {
	ThresholdN float64  `json:"threshold_N"`
	HS         []int    `json:"HS_idx"`
	TO         []int    `json:"TO_idx"`
	Stance     [][2]int `json:"stance_idx"`
	Swing      [][2]int `json:"swing_idx"`
}

// Temporal holds the temporal metrics in seconds.
type Temporal struct {
	CT              []float64 `json:"CT_s"`
	FT              []float64 `json:"FT_s"`
	Stride          []float64 `json:"stride_s"`
	StrideFrequency float64   `json:"stride_freq_hz"`
}

// GaitEvents is the gait analysis summary of one foot.
type GaitEvents struct {
	Header
	Foot     string   `json:"foot"`
	Samples  int      `json:"samples"`
	Events   EventSet `json:"gait_events"`
	Temporal Temporal `json:"temporal_metrics"`
}

func (*GaitEvents) Kind() Kind { return KindGaitEvents }

// NewGaitEvents converts detection results. Empty lists encode as [].
func NewGaitEvents(foot string, samples int, ev gait.Events, m gait.TemporalMetrics) *GaitEvents {
	return &GaitEvents{
		Foot:    foot,
		Samples: samples,
		Events: EventSet{
			ThresholdN: ev.Threshold,
			HS:         nonNil(ev.HS),
			TO:         nonNil(ev.TO),
			Stance:     pairs(ev.Stance),
			Swing:      pairs(ev.Swing),
		},
		Temporal: Temporal{
			CT:              nonNil(m.CT),
			FT:              nonNil(m.FT),
			Stride:          nonNil(m.Stride),
			StrideFrequency: m.StrideFrequency,
		},
	}
}

// COPPath is the center of pressure trajectory of one foot.
type COPPath struct {
	Header
	Foot string          `json:"foot"`
	Path []gait.COPPoint `json:"cop_path"`
}

func (*COPPath) Kind() Kind { return KindCOPPath }

// NewCOPPath wraps a trajectory.
func NewCOPPath(foot string, path []gait.COPPoint) *COPPath {
	return &COPPath{Foot: foot, Path: nonNil(path)}
}

// BallSummary carries the end-of-session spin statistics.
type BallSummary struct {
	Header
	Summary ball.Summary `json:"ball_summary"`
}

func (*BallSummary) Kind() Kind { return KindBallSummary }

// DeviceStatus reports how one device session went.
type DeviceStatus struct {
	Role          string `json:"role"`
	Name          string `json:"name,omitempty"`
	Error         string `json:"error,omitempty"`
	Frames        int    `json:"frames"`
	Batches       int    `json:"batches"`
	Malformed     int    `json:"malformed"`
	WriteFailures int    `json:"write_failures"`
	BatchTimeouts int    `json:"batch_timeouts"`
	Done          bool   `json:"done"`
	TimedOut      bool   `json:"timed_out"`
}

// SessionEnd is the last record of a run.
type SessionEnd struct {
	Header
	Event   string         `json:"event"`
	T       int64          `json:"t"` // unix ms
	Devices []DeviceStatus `json:"devices"`
}

func (*SessionEnd) Kind() Kind { return KindSessionEnd }

// NewSessionEnd marks the end of a run at now.
func NewSessionEnd(now time.Time, devices []DeviceStatus) *SessionEnd {
	return &SessionEnd{Event: "session_end", T: now.UnixMilli(), Devices: nonNil(devices)}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func pairs(in []gait.Interval) [][2]int {
	out := make([][2]int, 0, len(in))
	for _, iv := range in {
		out = append(out, [2]int{iv.From, iv.To})
	}
	return out
}
