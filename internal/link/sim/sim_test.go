// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/gait_computer/internal/insole"
	"github.com/relabs-tech/gait_computer/internal/link"
	"github.com/relabs-tech/gait_computer/internal/protocol"
)

func TestFindBySubstring(t *testing.T) {
	r := NewRadio(Profile{Name: "Insole_Left"}, Profile{Name: "SmartBall", Kind: Ball})

	l, err := r.Find(context.Background(), "Ball")
	if err != nil || l.Name() != "SmartBall" {
		t.Fatalf("Find(Ball) = %v, %v", l, err)
	}
	if _, err := r.Find(context.Background(), "Insole_Right"); !errors.Is(err, link.ErrDeviceNotFound) {
		t.Fatalf("Find(Insole_Right) err = %v, want ErrDeviceNotFound", err)
	}
}

type inbox struct {
	mu sync.Mutex
	p  [][]byte
}

func (b *inbox) add(p []byte) {
	b.mu.Lock()
	b.p = append(b.p, append([]byte(nil), p...))
	b.mu.Unlock()
}

func (b *inbox) waitFor(t *testing.T, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		if len(b.p) >= n {
			out := b.p
			b.mu.Unlock()
			return out
		}
		b.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d payloads", n)
	return nil
}

func TestBallPullAfterStop(t *testing.T) {
	d := NewDevice(Profile{Name: "SmartBall", Kind: Ball, Frames: 3, MTU: 20})
	var in inbox
	if err := d.Subscribe(in.add); err != nil {
		t.Fatal(err)
	}
	defer d.Disconnect()

	for _, c := range [][]byte{link.CmdStart, link.CmdStop, link.CmdPull} {
		if err := d.Write(c); err != nil {
			t.Fatalf("Write(%s): %v", c, err)
		}
	}

	// timing, BIN10:3, 36 bytes in 20-byte chunks, BATCH_DONE
	got := in.waitFor(t, 5)
	if len(got[0]) != protocol.TimingSize {
		t.Errorf("first payload is %d bytes, want timing record", len(got[0]))
	}
	if string(got[1]) != "BIN10:3" {
		t.Errorf("marker = %q", got[1])
	}
	if len(got[2]) != 20 || len(got[3]) != 16 {
		t.Errorf("chunks = %d, %d bytes", len(got[2]), len(got[3]))
	}
	if string(got[4]) != protocol.MarkerBatchDone {
		t.Errorf("last = %q", got[4])
	}

	if err := d.Write(link.CmdPull); err != nil {
		t.Fatal(err)
	}
	if got := in.waitFor(t, 6); string(got[5]) != protocol.MarkerDone {
		t.Errorf("after drain got %q, want Done", got[5])
	}
}

func TestInsoleFrameAtWalks(t *testing.T) {
	cal := insole.DefaultCalibration
	total := func(f protocol.InsoleFrame) float64 {
		var sum float64
		for _, raw := range f.Channels {
			_, force := cal.Apply(raw)
			sum += force
		}
		return sum
	}

	// Swing at t=0, heel loaded shortly after contact.
	if got := total(InsoleFrameAt(0, 100)); got != 0 {
		t.Errorf("force at t=0 = %v, want 0 (swing)", got)
	}
	f := InsoleFrameAt(35, 100)
	if _, heel := cal.Apply(f.Channels[2]); heel <= 0 {
		t.Errorf("heel force at contact = %v, want > 0", heel)
	}
	if f.Ticks != 350 {
		t.Errorf("ticks = %d, want 350", f.Ticks)
	}
}

func TestInjectedWriteFailure(t *testing.T) {
	d := NewDevice(Profile{Name: "SmartBall", Kind: Ball, FailWrites: 1})
	if err := d.Write(link.CmdPull); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("first pull err = %v, want ErrWriteFailed", err)
	}
	if err := d.Write(link.CmdPull); err != nil {
		t.Fatalf("second pull err = %v", err)
	}
}
