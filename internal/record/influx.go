// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/relabs-tech/gait_computer/internal/ball"
)

// InfluxSink writes records as points to an InfluxDB 2 bucket.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking

	mu     sync.Mutex
	points *Points
}

// DialInflux creates a sink writing to org/bucket at url.
func DialInflux(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(org, bucket),
		points: NewPoints(),
	}
}

func (s *InfluxSink) Emit(ctx context.Context, r Record) error {
	s.mu.Lock()
	pts := s.points.From(r)
	s.mu.Unlock()

	if len(pts) == 0 {
		return nil
	}
	if err := s.write.WritePoint(ctx, pts...); err != nil {
		return fmt.Errorf("influx write %s: %w", r.Kind(), err)
	}
	return nil
}

func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// Points converts records to line-protocol points. Device-timed records are
// placed on the host clock using the first sample seen per session and foot.
type Points struct {
	origin map[string]time.Time
}

// NewPoints returns an empty converter.
func NewPoints() *Points {
	return &Points{origin: make(map[string]time.Time)}
}

func (p *Points) originFor(session, foot string, host time.Time, deviceT float64) time.Time {
	key := session + "/" + foot
	o, ok := p.origin[key]
	if !ok {
		o = host.Add(-time.Duration(deviceT * float64(time.Second)))
		p.origin[key] = o
	}
	return o
}

// From returns the points for r; some kinds produce none.
func (p *Points) From(r Record) []*write.Point {
	h := r.Head()
	host := h.Time()

	switch rec := r.(type) {
	case *InsoleSample:
		at := p.originFor(h.Session, rec.Foot, host, rec.T).Add(time.Duration(rec.T * float64(time.Second)))
		out := make([]*write.Point, 0, len(rec.Sensors))
		for _, s := range rec.Sensors {
			out = append(out, influxdb2.NewPoint(
				"insole",
				map[string]string{"session": h.Session, "foot": rec.Foot, "sensor": s.Label},
				map[string]interface{}{
					"raw":        int64(s.Raw),
					"resistance": s.Resistance,
					"force":      s.Force,
					"pressure":   s.Pressure,
				},
				at,
			))
		}
		return out

	case *BallBatch:
		peak := 0.0
		for _, f := range rec.Frames() {
			peak = max(peak, ball.Omega(f))
		}
		return []*write.Point{influxdb2.NewPoint(
			"ball_batch",
			map[string]string{"session": h.Session},
			map[string]interface{}{"frames": len(rec.Records), "omega_deg_s_peak": peak},
			host,
		)}

	case *GaitEvents:
		meanCT := 0.0
		for _, ct := range rec.Temporal.CT {
			meanCT += ct / float64(len(rec.Temporal.CT))
		}
		return []*write.Point{influxdb2.NewPoint(
			"gait",
			map[string]string{"session": h.Session, "foot": rec.Foot},
			map[string]interface{}{
				"threshold_n":    rec.Events.ThresholdN,
				"heel_strikes":   len(rec.Events.HS),
				"toe_offs":       len(rec.Events.TO),
				"ct_mean_s":      meanCT,
				"stride_freq_hz": rec.Temporal.StrideFrequency,
			},
			host,
		)}

	case *COPPath:
		if len(rec.Path) == 0 {
			return nil
		}
		origin := p.originFor(h.Session, rec.Foot, host, rec.Path[len(rec.Path)-1].T)
		out := make([]*write.Point, 0, len(rec.Path))
		for _, c := range rec.Path {
			out = append(out, influxdb2.NewPoint(
				"cop",
				map[string]string{"session": h.Session, "foot": rec.Foot},
				map[string]interface{}{"x": c.X, "y": c.Y},
				origin.Add(time.Duration(c.T*float64(time.Second))),
			))
		}
		return out

	case *BallSummary:
		s := rec.Summary
		return []*write.Point{influxdb2.NewPoint(
			"ball_summary",
			map[string]string{"session": h.Session},
			map[string]interface{}{
				"duration_s":        s.DurationS,
				"samples":           s.Samples,
				"avg_rev_per_sec":   s.AvgRevPerSec,
				"avg_spin_rpm":      s.AvgSpinRPM,
				"total_revolutions": s.TotalRevolutions,
				"omega_deg_s_peak":  s.PeakOmegaDegS,
				"spin_rpm_peak":     s.PeakSpinRPM,
			},
			host,
		)}
	}
	return nil
}
