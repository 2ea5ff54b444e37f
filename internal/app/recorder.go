// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/gait_computer/internal/ball"
	"github.com/relabs-tech/gait_computer/internal/gait"
	"github.com/relabs-tech/gait_computer/internal/insole"
	"github.com/relabs-tech/gait_computer/internal/link"
	"github.com/relabs-tech/gait_computer/internal/protocol"
	"github.com/relabs-tech/gait_computer/internal/reactor"
	"github.com/relabs-tech/gait_computer/internal/record"
	"github.com/relabs-tech/gait_computer/internal/session"
)

// InsoleSetup enables the insole session.
type InsoleSetup struct {
	Name        string
	Foot        string
	Layout      insole.Layout
	Calibration insole.Calibration
	Gait        gait.Options
}

// BallSetup enables the ball session.
type BallSetup struct {
	Name string
}

// Recorder runs the insole and ball sessions of one recording side by side
// and writes their records to Sink.
type Recorder struct {
	Radio   link.Radio
	Sink    record.Sink
	Session string // id stamped on every record
	Options session.Options

	Insole *InsoleSetup // nil disables the insole
	Ball   *BallSetup   // nil disables the ball

	// ContinueOnMissing keeps recording with the remaining devices when one
	// is not found. Otherwise a missing device aborts the run.
	ContinueOnMissing bool

	Now func() time.Time
}

// InsoleResult is the analysed insole series.
type InsoleResult struct {
	Report  session.Report
	Samples int
	Events  gait.Events
	Metrics gait.TemporalMetrics
}

// BallResult is the ball spin summary.
type BallResult struct {
	Report  session.Report
	Summary ball.Summary
}

// Result of a run. Insole and Ball are nil for sessions that did not run.
type Result struct {
	Insole  *InsoleResult
	Ball    *BallResult
	Devices []record.DeviceStatus
}

func (rc *Recorder) now() time.Time {
	if rc.Now != nil {
		return rc.Now()
	}
	return time.Now()
}

func (rc *Recorder) emit(ctx context.Context, r record.Record) {
	record.Stamp(r, rc.Session, rc.now())
	if err := rc.Sink.Emit(ctx, r); err != nil {
		slog.Warn("record not written", "kind", r.Kind(), "error", err)
	}
}

// Run records until stop is closed, drains every device and emits the
// analysis records. Cancelling ctx aborts without analysis.
func (rc *Recorder) Run(ctx context.Context, stop <-chan struct{}) (Result, error) {
	if rc.Insole == nil && rc.Ball == nil {
		return Result{}, errors.New("no device enabled")
	}

	rctx, stopReactor := context.WithCancel(context.Background())
	r := reactor.New(reactor.DefaultQueueSize)
	go r.Run(rctx)
	defer func() {
		stopReactor()
		<-r.Stopped()
	}()

	var (
		insoleRes *InsoleResult
		ballRes   *BallResult
		insoleSt  record.DeviceStatus
		ballSt    record.DeviceStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	if rc.Insole != nil {
		insoleSt = record.DeviceStatus{Role: string(session.RoleInsole)}
		g.Go(func() error {
			res, err := rc.runInsole(gctx, r, stop)
			return rc.settle(session.RoleInsole, &insoleSt, err, func() { insoleRes = res })
		})
	}
	if rc.Ball != nil {
		ballSt = record.DeviceStatus{Role: string(session.RoleBall)}
		g.Go(func() error {
			res, err := rc.runBall(gctx, r, stop)
			return rc.settle(session.RoleBall, &ballSt, err, func() { ballRes = res })
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out := Result{Insole: insoleRes, Ball: ballRes}
	if insoleRes != nil {
		fillStatus(&insoleSt, insoleRes.Report)
		rc.emit(ctx, record.NewGaitEvents(rc.Insole.Foot, insoleRes.Samples, insoleRes.Events, insoleRes.Metrics))
		rc.emit(ctx, record.NewCOPPath(rc.Insole.Foot, insoleRes.Events.COP))
	}
	if ballRes != nil {
		fillStatus(&ballSt, ballRes.Report)
		rc.emit(ctx, &record.BallSummary{Summary: ballRes.Summary})
	}
	if rc.Insole != nil {
		out.Devices = append(out.Devices, insoleSt)
	}
	if rc.Ball != nil {
		out.Devices = append(out.Devices, ballSt)
	}
	rc.emit(ctx, record.NewSessionEnd(rc.now(), out.Devices))
	return out, nil
}

// settle applies the missing-device policy to one session outcome.
func (rc *Recorder) settle(role session.Role, st *record.DeviceStatus, err error, keep func()) error {
	switch {
	case err == nil:
		keep()
		return nil
	case errors.Is(err, link.ErrDeviceNotFound) && rc.ContinueOnMissing:
		slog.Warn("device not found, continuing without it", "device", string(role), "error", err)
		st.Error = err.Error()
		return nil
	default:
		return fmt.Errorf("%s session: %w", role, err)
	}
}

func fillStatus(st *record.DeviceStatus, rep session.Report) {
	st.Name = rep.Name
	st.Frames = rep.Scheduler.FramesDelivered
	st.Batches = rep.Scheduler.Batches
	st.Malformed = rep.Demux.Malformed
	st.WriteFailures = rep.Scheduler.WriteFailures
	st.BatchTimeouts = rep.Scheduler.BatchTimeouts
	st.Done = rep.Done
	st.TimedOut = rep.TimedOut
}

func (rc *Recorder) runInsole(ctx context.Context, r *reactor.Reactor, stop <-chan struct{}) (*InsoleResult, error) {
	setup := rc.Insole
	proc := insole.NewProcessor(setup.Layout, setup.Calibration)

	dev := session.Device[protocol.InsoleFrame]{
		Role:  session.RoleInsole,
		Name:  setup.Name,
		Codec: protocol.InsoleCodec,
		Deliver: func(frames []protocol.InsoleFrame) {
			for i, s := range proc.Process(frames) {
				rc.emit(ctx, record.NewInsoleSample(setup.Foot, frames[i].Ticks, s))
			}
		},
		PullDuringRecording: true,
	}

	s, err := session.Open(ctx, r, rc.Radio, dev, rc.Options)
	if err != nil {
		return nil, err
	}
	rep, err := s.Record(ctx, stop)
	if err != nil {
		return nil, err
	}

	times, forces := proc.Series()
	ev := gait.Detect(times, forces, setup.Gait)
	m := gait.Temporal(times, ev.HS, ev.TO, ev.Stance)
	slog.Info("gait analysed",
		"samples", len(times),
		"threshold_n", ev.Threshold,
		"heel_strikes", len(ev.HS),
		"stride_freq_hz", m.StrideFrequency)

	return &InsoleResult{Report: rep, Samples: len(times), Events: ev, Metrics: m}, nil
}

func (rc *Recorder) runBall(ctx context.Context, r *reactor.Reactor, stop <-chan struct{}) (*BallResult, error) {
	// stats is written on the reactor goroutine; Record returning orders
	// those writes before the Summary below.
	var stats ball.Stats

	dev := session.Device[protocol.BallFrame]{
		Role:  session.RoleBall,
		Name:  rc.Ball.Name,
		Codec: protocol.BallCodec,
		// Spin totals count every decoded frame, also a last batch the
		// scheduler did not take before Done.
		Observe: stats.Add,
		Deliver: func(frames []protocol.BallFrame) {
			rc.emit(ctx, record.NewBallBatch(frames))
		},
	}

	s, err := session.Open(ctx, r, rc.Radio, dev, rc.Options)
	if err != nil {
		return nil, err
	}
	rep, err := s.Record(ctx, stop)
	if err != nil {
		return nil, err
	}

	if !rep.HasTiming {
		slog.Warn("ball sent no timing record, spin averages will be zero", "device", string(session.RoleBall))
	}
	sum := stats.Summary(rep.Timing, rep.HasTiming)
	slog.Info("ball summarised",
		"samples", sum.Samples,
		"duration_s", sum.DurationS,
		"total_revolutions", sum.TotalRevolutions,
		"spin_rpm_peak", sum.PeakSpinRPM)

	return &BallResult{Report: rep, Summary: sum}, nil
}
