// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"context"
	"sync"
	"time"
)

// Handoff passes decoded batches from the reactor goroutine (single producer)
// to a pull worker (single consumer).
//
// batchReady is a one-slot channel: setting it replaces any unconsumed batch,
// clearing it drains the slot. done is closed once and never reopened. The
// batch travels through the channel, so the consumer never touches producer
// state and the channel operations provide the happens-before edge.
type Handoff[F any] struct {
	batchReady chan []F
	done       chan struct{}
	doneOnce   sync.Once
}

// NewHandoff returns a handoff with both signals clear.
func NewHandoff[F any]() *Handoff[F] {
	return &Handoff[F]{
		batchReady: make(chan []F, 1),
		done:       make(chan struct{}),
	}
}

// SetReady publishes batch (possibly empty) and sets batchReady. Producer only.
func (h *Handoff[F]) SetReady(batch []F) {
	for {
		select {
		case h.batchReady <- batch:
			return
		default:
		}
		// Slot still holds an unconsumed batch; replace it.
		select {
		case <-h.batchReady:
		default:
		}
	}
}

// SetDone sets done and batchReady so a pending waiter wakes up.
func (h *Handoff[F]) SetDone() {
	h.doneOnce.Do(func() { close(h.done) })
	h.SetReady(nil)
}

// Clear resets batchReady. Consumer only.
func (h *Handoff[F]) Clear() {
	select {
	case <-h.batchReady:
	default:
	}
}

// Wait blocks until batchReady is set, the timeout expires or ctx ends.
// ok is false when no batch arrived.
func (h *Handoff[F]) Wait(ctx context.Context, timeout time.Duration) (batch []F, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case batch = <-h.batchReady:
		return batch, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// IsDone reports whether the device signalled the end of the session.
func (h *Handoff[F]) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done is closed when the device signals the end of the session.
func (h *Handoff[F]) Done() <-chan struct{} {
	return h.done
}
