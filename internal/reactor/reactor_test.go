// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package reactor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func startReactor(t *testing.T) (*Reactor, context.CancelFunc) {
	t.Helper()
	r := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-r.Stopped()
	})
	return r, cancel
}

func TestCallReturnsResult(t *testing.T) {
	r, _ := startReactor(t)

	want := errors.New("write failed")
	err := r.Call(context.Background(), time.Second, func() error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("Call error = %v, want %v", err, want)
	}

	if err := r.Call(context.Background(), time.Second, func() error { return nil }); err != nil {
		t.Fatalf("Call error = %v, want nil", err)
	}
}

func TestCallTimeout(t *testing.T) {
	r, _ := startReactor(t)

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := r.Call(context.Background(), 20*time.Millisecond, func() error {
		<-release
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Call error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Call took %v, expected to give up after ~20ms", elapsed)
	}
}

func TestPostRunsInOrderOnOneGoroutine(t *testing.T) {
	r, _ := startReactor(t)

	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 100; i++ {
		i := i
		if !r.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}) {
			t.Fatal("Post returned false on a running reactor")
		}
	}
	if err := r.Call(context.Background(), time.Second, func() error { return nil }); err != nil {
		t.Fatalf("barrier Call: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 100 {
		t.Fatalf("ran %d closures, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("closure %d ran at position %d", v, i)
		}
	}
}

func TestStoppedReactor(t *testing.T) {
	r := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	cancel()
	<-r.Stopped()

	if r.Post(func() {}) {
		t.Error("Post succeeded on a stopped reactor")
	}
	if err := r.Call(context.Background(), time.Second, func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Call error = %v, want ErrClosed", err)
	}
}

func TestCompletionFirstResultWins(t *testing.T) {
	c := newCompletion()
	if c.Test() {
		t.Fatal("fresh completion reports done")
	}
	first := errors.New("first")
	c.Complete(first)
	c.Complete(errors.New("second"))
	if !c.Test() {
		t.Fatal("completed completion reports not done")
	}
	if err := c.Wait(context.Background(), time.Second); !errors.Is(err, first) {
		t.Errorf("Wait = %v, want %v", err, first)
	}
}
