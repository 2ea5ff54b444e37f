// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package reactor provides the single-goroutine I/O context that owns every
// radio operation and notification callback of the process.
//
// Work reaches the reactor in two ways:
//   - Post: fire-and-forget closures, used by radio notification callbacks.
//   - Call: request/response handoff from a blocking worker, bounded by its own
//     timeout so a slow radio write never stalls the caller indefinitely.
//
// Closures run strictly one at a time, in submission order, so state touched
// only from reactor closures needs no locking.
package reactor

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrClosed  = errors.New("reactor: closed")
	ErrTimeout = errors.New("reactor: operation timed out")
)

// DefaultQueueSize is the number of pending closures Post accepts before blocking.
const DefaultQueueSize = 1024

// Completion holds the single result of an operation scheduled on the reactor.
type Completion struct {
	err  error
	done chan struct{}
	once sync.Once
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Complete stores the result and wakes waiters. Only the first call has an effect.
func (c *Completion) Complete(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Test reports whether the completion has a result.
func (c *Completion) Test() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result is available, the timeout expires or ctx ends.
func (c *Completion) Wait(ctx context.Context, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
		return c.err
	case <-timer.C:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reactor executes queued closures on one goroutine.
type Reactor struct {
	queue   chan func()
	stopped chan struct{}
	once    sync.Once
}

// New creates a reactor with the given queue size (DefaultQueueSize if <= 0).
func New(queueSize int) *Reactor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Reactor{
		queue:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
	}
}

// Run dispatches closures until ctx is cancelled. Closures still queued at
// that point are dropped.
func (r *Reactor) Run(ctx context.Context) {
	defer r.once.Do(func() { close(r.stopped) })

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.queue:
			fn()
		}
	}
}

// Stopped is closed once Run has returned.
func (r *Reactor) Stopped() <-chan struct{} {
	return r.stopped
}

// Post enqueues fn. It returns false if the reactor has stopped.
func (r *Reactor) Post(fn func()) bool {
	select {
	case <-r.stopped:
		return false
	default:
	}

	select {
	case r.queue <- fn:
		return true
	case <-r.stopped:
		return false
	}
}

// Call runs fn on the reactor and waits up to timeout for its result.
// On ErrTimeout fn may still run later; its result is then discarded.
func (r *Reactor) Call(ctx context.Context, timeout time.Duration, fn func() error) error {
	c := newCompletion()
	if !r.Post(func() { c.Complete(fn()) }) {
		return ErrClosed
	}

	err := c.Wait(ctx, timeout)
	if errors.Is(err, ErrTimeout) {
		select {
		case <-r.stopped:
			return ErrClosed
		default:
		}
	}
	return err
}
