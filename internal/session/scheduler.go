// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/relabs-tech/gait_computer/internal/protocol"
)

// Timeouts bound every blocking step of a pull cycle.
type Timeouts struct {
	Write   time.Duration // pull write completion on the reactor
	Batch   time.Duration // BATCH_DONE after a successful pull
	Backoff time.Duration // pause after a failed write or an empty batch
}

// DefaultTimeouts match the firmware's pacing.
var DefaultTimeouts = Timeouts{
	Write:   2 * time.Second,
	Batch:   5 * time.Second,
	Backoff: 50 * time.Millisecond,
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Write <= 0 {
		t.Write = DefaultTimeouts.Write
	}
	if t.Batch <= 0 {
		t.Batch = DefaultTimeouts.Batch
	}
	if t.Backoff <= 0 {
		t.Backoff = DefaultTimeouts.Backoff
	}
	return t
}

// SchedulerStats counts pull cycles.
type SchedulerStats struct {
	Pulls           int `json:"pulls"`
	WriteFailures   int `json:"write_failures"`
	BatchTimeouts   int `json:"batch_timeouts"`
	EmptyBatches    int `json:"empty_batches"`
	Batches         int `json:"batches"`
	FramesDelivered int `json:"frames"`
}

// Scheduler pulls batches from one device until it reports Done.
//
// It runs on its own goroutine and never touches link state directly: the
// pull write is marshalled through pull (a reactor call) and batches arrive
// through the handoff.
type Scheduler[F any] struct {
	name     string
	pull     func(ctx context.Context, timeout time.Duration) error
	handoff  *protocol.Handoff[F]
	deliver  func([]F)
	timeouts Timeouts
	log      *slog.Logger

	stats SchedulerStats
}

// NewScheduler creates a scheduler. deliver may be nil.
func NewScheduler[F any](name string, pull func(context.Context, time.Duration) error, h *protocol.Handoff[F], deliver func([]F), t Timeouts) *Scheduler[F] {
	return &Scheduler[F]{
		name:     name,
		pull:     pull,
		handoff:  h,
		deliver:  deliver,
		timeouts: t.withDefaults(),
		log:      slog.Default().With("device", name),
	}
}

// Run loops request → await → deliver. It returns nil once the device sent
// Done, or the context error.
func (s *Scheduler[F]) Run(ctx context.Context) error {
	for !s.handoff.IsDone() {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.handoff.Clear()
		s.stats.Pulls++
		if err := s.pull(ctx, s.timeouts.Write); err != nil {
			s.stats.WriteFailures++
			s.log.Debug("pull write failed, retrying", "error", err)
			if !s.sleep(ctx, s.timeouts.Backoff) {
				return ctx.Err()
			}
			continue
		}

		batch, ok := s.handoff.Wait(ctx, s.timeouts.Batch)
		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.stats.BatchTimeouts++
			s.log.Debug("no batch before timeout, re-pulling", "timeout", s.timeouts.Batch)
			continue
		}
		if s.handoff.IsDone() {
			break
		}

		if len(batch) == 0 {
			s.stats.EmptyBatches++
			if !s.sleep(ctx, s.timeouts.Backoff) {
				return ctx.Err()
			}
			continue
		}
		s.stats.Batches++
		s.stats.FramesDelivered += len(batch)
		if s.deliver != nil {
			s.deliver(batch)
		}
	}
	return nil
}

// Stats returns the counters. Call after Run has returned.
func (s *Scheduler[F]) Stats() SchedulerStats {
	return s.stats
}

func (s *Scheduler[F]) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.handoff.Done():
		return true
	case <-ctx.Done():
		return false
	}
}
