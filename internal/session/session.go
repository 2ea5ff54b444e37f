// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session runs one recording session against one device: discovery,
// start/stop commands and the batch-pull loop, on top of the shared reactor.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relabs-tech/gait_computer/internal/link"
	"github.com/relabs-tech/gait_computer/internal/protocol"
	"github.com/relabs-tech/gait_computer/internal/reactor"
)

// Role names a device in logs and records.
type Role string

const (
	RoleInsole Role = "insole"
	RoleBall   Role = "ball"
)

// Device describes one peripheral and what to do with its frames.
type Device[F any] struct {
	Role  Role
	Name  string // advertised name, matched as a substring
	Codec protocol.Codec[F]

	// Deliver receives every non-empty batch, in arrival order, on the
	// scheduler goroutine.
	Deliver func([]F)

	// Observe, when set, sees every decoded batch on the reactor goroutine
	// as soon as its BATCH_DONE arrives, including batches the scheduler
	// never takes. It must not block.
	Observe func([]F)

	// PullDuringRecording starts pulling right after start_r. Otherwise the
	// device is only drained after stop_r.
	PullDuringRecording bool
}

// Options tune the session lifecycle.
type Options struct {
	Timeouts       Timeouts
	ConnectTimeout time.Duration // subscribe on the reactor
	SettleDelay    time.Duration // pause after stop_r before draining
	WaitCeiling    time.Duration // max wait for Done after stop_r
}

// DefaultOptions are used for zero fields.
var DefaultOptions = Options{
	Timeouts:       DefaultTimeouts,
	ConnectTimeout: 10 * time.Second,
	SettleDelay:    200 * time.Millisecond,
	WaitCeiling:    120 * time.Second,
}

func (o Options) withDefaults() Options {
	o.Timeouts = o.Timeouts.withDefaults()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultOptions.ConnectTimeout
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.WaitCeiling <= 0 {
		o.WaitCeiling = DefaultOptions.WaitCeiling
	}
	return o
}

// Report summarises a finished session.
type Report struct {
	Role      Role                  `json:"role"`
	Name      string                `json:"name"`
	Started   time.Time             `json:"started"`
	Stopped   time.Time             `json:"stopped"`
	Done      bool                  `json:"done"`
	TimedOut  bool                  `json:"timed_out"`
	Scheduler SchedulerStats        `json:"scheduler"`
	Demux     protocol.DemuxStats   `json:"demux"`
	Timing    protocol.TimingRecord `json:"-"`
	HasTiming bool                  `json:"has_timing"`
}

// Session is one connected device.
type Session[F any] struct {
	dev     Device[F]
	opts    Options
	r       *reactor.Reactor
	link    link.Link
	handoff *protocol.Handoff[F]
	demux   *protocol.Demux[F]
	log     *slog.Logger

	unsubscribed bool // reactor goroutine only

	closeOnce sync.Once
	closeErr  error
	demuxSt   protocol.DemuxStats
	timing    protocol.TimingRecord
	hasTiming bool
}

// Open finds the device and subscribes its notifications through r, which
// must be running. A missing device yields an error wrapping
// link.ErrDeviceNotFound.
func Open[F any](ctx context.Context, r *reactor.Reactor, radio link.Radio, dev Device[F], opts Options) (*Session[F], error) {
	opts = opts.withDefaults()
	log := slog.Default().With("device", string(dev.Role))

	log.Info("looking for device", "name", dev.Name)
	l, err := radio.Find(ctx, dev.Name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dev.Role, err)
	}
	log.Info("connected", "name", l.Name())

	h := protocol.NewHandoff[F]()
	s := &Session[F]{
		dev:     dev,
		opts:    opts,
		r:       r,
		link:    l,
		handoff: h,
		demux:   protocol.NewDemux(dev.Codec, h),
		log:     log,
	}
	if dev.Observe != nil {
		s.demux.OnDecode(dev.Observe)
	}

	err = r.Call(ctx, opts.ConnectTimeout, func() error {
		return l.Subscribe(s.onNotify)
	})
	if err != nil {
		_ = l.Disconnect()
		return nil, fmt.Errorf("%s: subscribe: %w", dev.Role, err)
	}
	log.Info("notifications enabled")
	return s, nil
}

// onNotify may run on any goroutine; the demux only ever runs on the reactor.
func (s *Session[F]) onNotify(payload []byte) {
	p := bytes.Clone(payload)
	s.r.Post(func() {
		if !s.unsubscribed {
			s.demux.Handle(p)
		}
	})
}

func (s *Session[F]) command(ctx context.Context, cmd []byte) error {
	return s.r.Call(ctx, s.opts.Timeouts.Write, func() error {
		return s.link.Write(cmd)
	})
}

func (s *Session[F]) pull(ctx context.Context, timeout time.Duration) error {
	return s.r.Call(ctx, timeout, func() error {
		return s.link.Write(link.CmdPull)
	})
}

// Record starts recording, waits for stop, then drains the device until it
// sends Done or the wait ceiling expires, and closes the session.
//
// A ceiling timeout is not an error: the report has TimedOut set and holds
// whatever was received. Cancelling ctx aborts the session and returns the
// context error.
func (s *Session[F]) Record(ctx context.Context, stop <-chan struct{}) (rep Report, err error) {
	rep = Report{Role: s.dev.Role, Name: s.link.Name()}
	defer func() {
		_ = s.Close(ctx)
		rep.Demux = s.demuxSt
		rep.Timing, rep.HasTiming = s.timing, s.hasTiming
	}()

	if err := s.command(ctx, link.CmdStart); err != nil {
		return rep, fmt.Errorf("%s: start recording: %w", s.dev.Role, err)
	}
	rep.Started = time.Now()
	s.log.Info("recording started")

	pullCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := NewScheduler(string(s.dev.Role), s.pull, s.handoff, s.dev.Deliver, s.opts.Timeouts)
	errc := make(chan error, 1)
	running := false
	startPulling := func() {
		running = true
		go func() { errc <- sched.Run(pullCtx) }()
	}
	if s.dev.PullDuringRecording {
		startPulling()
	}

	select {
	case <-stop:
	case <-ctx.Done():
		cancel()
		if running {
			<-errc
			rep.Scheduler = sched.Stats()
		}
		return rep, ctx.Err()
	}

	rep.Stopped = time.Now()
	if err := s.command(ctx, link.CmdStop); err != nil {
		s.log.Warn("stop command failed, draining anyway", "error", err)
	} else {
		s.log.Info("recording stopped", "elapsed", rep.Stopped.Sub(rep.Started).Round(time.Millisecond))
	}

	if s.opts.SettleDelay > 0 {
		select {
		case <-time.After(s.opts.SettleDelay):
		case <-ctx.Done():
		}
	}
	if !running {
		startPulling()
	}

	ceiling := time.NewTimer(s.opts.WaitCeiling)
	defer ceiling.Stop()

	select {
	case err = <-errc:
	case <-ceiling.C:
		rep.TimedOut = true
		s.log.Warn("timeout waiting for Done, proceeding with partial data", "ceiling", s.opts.WaitCeiling)
		cancel()
		<-errc
	}
	rep.Scheduler = sched.Stats()

	if err != nil && !rep.TimedOut {
		return rep, err
	}
	rep.Done = s.handoff.IsDone()
	s.log.Info("session finished",
		"batches", rep.Scheduler.Batches,
		"frames", rep.Scheduler.FramesDelivered,
		"pulls", rep.Scheduler.Pulls,
		"done", rep.Done)
	return rep, nil
}

// Close unsubscribes and disconnects the device. It is safe to call more
// than once; Record calls it on return.
func (s *Session[F]) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close(context.WithoutCancel(ctx))
	})
	return s.closeErr
}

func (s *Session[F]) close(ctx context.Context) error {
	var (
		st        protocol.DemuxStats
		timing    protocol.TimingRecord
		hasTiming bool
	)
	unsubErr := s.r.Call(ctx, s.opts.Timeouts.Write, func() error {
		err := s.link.Unsubscribe()
		s.unsubscribed = true
		st = s.demux.Stats()
		timing, hasTiming = s.demux.Timing()
		return err
	})
	if unsubErr == nil || !isReactorFailure(unsubErr) {
		// The closure ran; its results are visible after Call returned.
		s.demuxSt, s.timing, s.hasTiming = st, timing, hasTiming
	}

	discErr := s.r.Call(ctx, s.opts.Timeouts.Write, s.link.Disconnect)
	if isReactorFailure(discErr) {
		// Reactor gone or stuck: disconnect directly so the radio is released.
		discErr = s.link.Disconnect()
	}
	s.log.Info("disconnected")
	return errors.Join(unsubErr, discErr)
}

func isReactorFailure(err error) bool {
	return errors.Is(err, reactor.ErrClosed) || errors.Is(err, reactor.ErrTimeout)
}
