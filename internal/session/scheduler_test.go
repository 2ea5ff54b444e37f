// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"testing"
	"time"

	"github.com/relabs-tech/gait_computer/internal/protocol"
)

func TestSchedulerStopsAtDone(t *testing.T) {
	h := protocol.NewHandoff[int]()
	var delivered [][]int
	pulls := 0

	pull := func(context.Context, time.Duration) error {
		pulls++
		switch pulls {
		case 1:
			go h.SetReady([]int{1, 2})
		default:
			go h.SetDone()
		}
		return nil
	}

	s := NewScheduler("test", pull, h, func(b []int) { delivered = append(delivered, b) },
		Timeouts{Write: time.Second, Batch: time.Second, Backoff: time.Millisecond})
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(delivered) != 1 || len(delivered[0]) != 2 {
		t.Fatalf("delivered %v, want [[1 2]]", delivered)
	}
	if st := s.Stats(); st.Pulls != 2 || st.FramesDelivered != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestSchedulerStopsOnContext(t *testing.T) {
	h := protocol.NewHandoff[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := NewScheduler("test", func(context.Context, time.Duration) error { return nil }, h, nil,
		Timeouts{Write: time.Second, Batch: 10 * time.Millisecond, Backoff: time.Millisecond})
	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Run = %v, want DeadlineExceeded", err)
	}
	if s.Stats().BatchTimeouts == 0 {
		t.Error("expected batch timeouts")
	}
}
