// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim provides in-process insole and ball devices that speak the
// batch-pull protocol, for tests and bench runs without hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/gait_computer/internal/insole"
	"github.com/relabs-tech/gait_computer/internal/link"
	"github.com/relabs-tech/gait_computer/internal/protocol"
)

// Kind selects the firmware personality.
type Kind int

const (
	Insole Kind = iota
	Ball
)

// ErrWriteFailed is returned by injected write failures.
var ErrWriteFailed = errors.New("sim: write failed")

// Profile configures a simulated device.
type Profile struct {
	Name string
	Kind Kind

	SampleRate  float64 // Hz, default 100
	BatchFrames int     // max frames per batch, default 10
	MTU         int     // notification payload size, default 244
	Frames      int     // > 0: frames available right after start_r, independent of wall time

	SpinDegS float64 // ball spin rate, default 720

	// Fault injection.
	FailWrites        int // the first N pull writes fail
	DropBatchDoneEach int // every Nth batch loses its BATCH_DONE marker
	TruncateEach      int // every Nth batch is sent 5 bytes short
}

func (p Profile) withDefaults() Profile {
	if p.SampleRate <= 0 {
		p.SampleRate = 100
	}
	if p.BatchFrames <= 0 {
		p.BatchFrames = 10
	}
	if p.MTU <= 0 {
		p.MTU = 244
	}
	if p.SpinDegS == 0 {
		p.SpinDegS = 720
	}
	return p
}

// Radio finds simulated devices by name substring.
type Radio struct {
	mu      sync.Mutex
	devices []*Device
}

// NewRadio creates a radio advertising devices built from profiles.
func NewRadio(profiles ...Profile) *Radio {
	r := &Radio{}
	for _, p := range profiles {
		r.devices = append(r.devices, NewDevice(p))
	}
	return r
}

// Device returns the simulated device whose name equals name.
func (r *Radio) Device(name string) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.profile.Name == name {
			return d
		}
	}
	return nil
}

// Find implements link.Radio.
func (r *Radio) Find(ctx context.Context, name string) (link.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if strings.Contains(d.profile.Name, name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("sim: %q: %w", name, link.ErrDeviceNotFound)
}

// Device is a simulated peripheral. It implements link.Link.
type Device struct {
	profile Profile

	mu           sync.Mutex
	out          chan [][]byte
	stopSend     chan struct{}
	sendDone     chan struct{}
	recording    bool
	started      time.Time
	recorded     int // frames fixed at stop_r, -1 while recording
	sent         int
	batches      int
	writes       int
	timingSent   bool
	disconnected bool
	commands     []string
}

// NewDevice creates a device from p.
func NewDevice(p Profile) *Device {
	return &Device{profile: p.withDefaults(), recorded: 0}
}

func (d *Device) Name() string { return d.profile.Name }

// Subscribe starts delivering notifications to onNotify from a device goroutine.
func (d *Device) Subscribe(onNotify func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disconnected {
		return errors.New("sim: disconnected")
	}
	if d.out != nil {
		return errors.New("sim: already subscribed")
	}
	d.out = make(chan [][]byte, 64)
	d.stopSend = make(chan struct{})
	d.sendDone = make(chan struct{})
	go d.sendLoop(d.out, d.stopSend, d.sendDone, onNotify)
	return nil
}

func (d *Device) sendLoop(out <-chan [][]byte, stop <-chan struct{}, done chan<- struct{}, onNotify func([]byte)) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case payloads := <-out:
			for _, p := range payloads {
				select {
				case <-stop:
					return
				default:
				}
				onNotify(p)
			}
		}
	}
}

// Unsubscribe stops notifications. A payload already being delivered may
// still complete after Unsubscribe returns.
func (d *Device) Unsubscribe() error {
	d.mu.Lock()
	stop := d.stopSend
	d.out, d.stopSend, d.sendDone = nil, nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	return nil
}

// Disconnect marks the device unusable.
func (d *Device) Disconnect() error {
	_ = d.Unsubscribe()
	d.mu.Lock()
	d.disconnected = true
	d.mu.Unlock()
	return nil
}

// Disconnected reports whether Disconnect was called.
func (d *Device) Disconnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disconnected
}

// Commands returns the commands written so far.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// Write handles start_r, stop_r and get_data10_bin.
func (d *Device) Write(cmd []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disconnected {
		return errors.New("sim: disconnected")
	}
	d.commands = append(d.commands, string(cmd))

	switch string(cmd) {
	case string(link.CmdStart):
		d.recording = true
		d.started = time.Now()
		d.recorded = -1
		d.sent = 0
		d.timingSent = false
	case string(link.CmdStop):
		if d.recording {
			d.recorded = d.available()
			d.recording = false
		}
	case string(link.CmdPull):
		d.writes++
		if d.writes <= d.profile.FailWrites {
			return ErrWriteFailed
		}
		d.enqueue(d.pull())
	default:
		return fmt.Errorf("sim: unknown command %q", cmd)
	}
	return nil
}

func (d *Device) enqueue(payloads [][]byte) {
	if d.out == nil || len(payloads) == 0 {
		return
	}
	select {
	case d.out <- payloads:
	default:
		// Radio congestion: the pull is lost.
	}
}

// available is the number of frames recorded so far. Caller holds mu.
func (d *Device) available() int {
	if d.recorded >= 0 {
		return d.recorded
	}
	if d.profile.Frames > 0 {
		return d.profile.Frames
	}
	return int(time.Since(d.started).Seconds() * d.profile.SampleRate)
}

// pull builds the notifications answering one pull request. Caller holds mu.
func (d *Device) pull() [][]byte {
	var out [][]byte

	if d.profile.Kind == Ball && !d.recording && !d.timingSent {
		d.timingSent = true
		dur := uint32(float64(d.recorded) / d.profile.SampleRate * 1000)
		out = append(out, protocol.TimingRecord{StartMs: 1000, EndMs: 1000 + dur}.Append(nil))
	}

	n := min(d.available()-d.sent, d.profile.BatchFrames)
	if n <= 0 && !d.recording {
		return append(out, []byte(protocol.MarkerDone))
	}
	n = max(n, 0)

	var data []byte
	for i := d.sent; i < d.sent+n; i++ {
		data = d.frame(i, data)
	}
	d.sent += n
	d.batches++

	if d.profile.TruncateEach > 0 && d.batches%d.profile.TruncateEach == 0 && len(data) > 5 {
		data = data[:len(data)-5]
	}

	out = append(out, []byte(protocol.MarkerBatchStart+strconv.Itoa(n)))
	for off := 0; off < len(data); off += d.profile.MTU {
		end := min(off+d.profile.MTU, len(data))
		out = append(out, data[off:end])
	}
	if d.profile.DropBatchDoneEach > 0 && d.batches%d.profile.DropBatchDoneEach == 0 {
		return out
	}
	return append(out, []byte(protocol.MarkerBatchDone))
}

func (d *Device) frame(i int, b []byte) []byte {
	t := float64(i) / d.profile.SampleRate
	if d.profile.Kind == Ball {
		return BallFrameAt(t, d.profile.SpinDegS).Append(b)
	}
	return InsoleFrameAt(i, d.profile.SampleRate).Append(b)
}

// Stride timing of the synthetic walker.
const (
	StridePeriod  = 1.0  // s
	StanceFrac    = 0.62 // of the stride
	initialSwingS = 0.25
)

// InsoleFrameAt returns synthetic frame i of a steady walk sampled at rate:
// heel loading first, then midfoot, forefoot and toes, followed by swing.
func InsoleFrameAt(i int, rate float64) protocol.InsoleFrame {
	t := float64(i) / rate
	f := protocol.InsoleFrame{Ticks: uint32(math.Round(t * 1000))}

	phase := math.Mod(t+StridePeriod-initialSwingS, StridePeriod) / StridePeriod
	if phase >= StanceFrac {
		return f
	}
	s := phase / StanceFrac

	cal := insole.DefaultCalibration
	forces := [protocol.InsoleChannels]float64{
		0: 12 * bump(s, 0.55, 1.0),  // Toe R
		1: 18 * bump(s, 0.35, 0.95), // Ball R
		2: 22 * bump(s, 0.0, 0.5),   // Heel R
		3: 22 * bump(s, 0.0, 0.5),   // Heel L
		4: 8 * bump(s, 0.15, 0.7),   // Mid
		5: 18 * bump(s, 0.35, 0.95), // Ball L
		6: 12 * bump(s, 0.55, 1.0),  // Toe L
		7: 16 * bump(s, 0.35, 0.95), // Ball Mid
	}
	for c, force := range forces {
		f.Channels[c] = cal.Raw(force)
	}
	return f
}

func bump(s, from, to float64) float64 {
	if s < from || s > to {
		return 0
	}
	return math.Sin(math.Pi * (s - from) / (to - from))
}

// BallFrameAt returns a ball spinning about z at spin deg/s with a small wobble.
func BallFrameAt(t, spin float64) protocol.BallFrame {
	wobble := 0.05 * spin * math.Sin(2*math.Pi*t)
	return protocol.BallFrame{
		Accel: [3]int16{0, 0, 2048},
		Gyro:  [3]int16{int16(wobble), 0, int16(spin)},
	}
}
