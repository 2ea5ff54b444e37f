// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tinygo.org/x/bluetooth"
)

// fakeScanner behaves like the Linux adapter: a second Scan while one is
// running fails immediately.
type fakeScanner struct {
	mu          sync.Mutex
	scanning    bool
	stop        chan struct{}
	pendingStop bool
	emit        bool // report one advertisement per scan

	scans    int
	overlaps int
}

func (f *fakeScanner) Scan(cb func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	f.mu.Lock()
	if f.scanning {
		f.overlaps++
		f.mu.Unlock()
		return errors.New("bluetooth: a scan is already in progress")
	}
	if f.pendingStop {
		f.pendingStop = false
		f.mu.Unlock()
		return nil
	}
	f.scanning = true
	f.scans++
	stop := make(chan struct{})
	f.stop = stop
	emit := f.emit
	f.mu.Unlock()

	if emit {
		cb(nil, bluetooth.ScanResult{RSSI: -40})
	}
	<-stop

	f.mu.Lock()
	f.scanning = false
	f.mu.Unlock()
	return nil
}

func (f *fakeScanner) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.scanning {
		f.pendingStop = true
		return errors.New("bluetooth: not scanning")
	}
	if f.stop != nil {
		close(f.stop)
		f.stop = nil
	}
	return nil
}

func (f *fakeScanner) counts() (scans, overlaps int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scans, f.overlaps
}

func TestConcurrentScansTakeTurns(t *testing.T) {
	f := &fakeScanner{}
	r := &Radio{scanner: f, scanTimeout: 30 * time.Millisecond}

	begin := time.Now()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.scan(context.Background(), func(bluetooth.ScanResult) bool { return false })
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("scan %d: err = %v, want deadline exceeded", i, err)
		}
	}
	scans, overlaps := f.counts()
	if scans != 2 || overlaps != 0 {
		t.Errorf("scans = %d overlaps = %d, want 2 and 0", scans, overlaps)
	}
	// Each scan gets its full window once the adapter is free.
	if elapsed := time.Since(begin); elapsed < 55*time.Millisecond {
		t.Errorf("both scans finished after %v", elapsed)
	}
}

func TestScanStopsOnMatch(t *testing.T) {
	f := &fakeScanner{emit: true}
	r := &Radio{scanner: f, scanTimeout: time.Second}

	res, err := r.scan(context.Background(), func(res bluetooth.ScanResult) bool { return res.RSSI == -40 })
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.RSSI != -40 {
		t.Errorf("result = %+v", res)
	}

	// The adapter is free again.
	f.emit = false
	r.scanTimeout = 20 * time.Millisecond
	if _, err := r.scan(context.Background(), func(bluetooth.ScanResult) bool { return false }); err == nil {
		t.Fatal("second scan matched nothing but returned no error")
	}
	if _, overlaps := f.counts(); overlaps != 0 {
		t.Errorf("overlaps = %d", overlaps)
	}
}

func TestScanWithCancelledContext(t *testing.T) {
	f := &fakeScanner{}
	r := &Radio{scanner: f, scanTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.scan(ctx, func(bluetooth.ScanResult) bool { return true }); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if scans, _ := f.counts(); scans != 0 {
		t.Errorf("scanned %d times with a cancelled context", scans)
	}
}
