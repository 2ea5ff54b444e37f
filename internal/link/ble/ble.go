// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ble implements link.Radio on the host Bluetooth adapter.
package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/gait_computer/internal/link"
)

// Profile names the GATT service and characteristics of one device type.
// Cmd and Data may be the same characteristic.
type Profile struct {
	Service string
	Cmd     string
	Data    string
}

// Advertisement is one device seen while scanning.
type Advertisement struct {
	Name    string
	Address string
	RSSI    int16
}

// scanner is the scanning half of *bluetooth.Adapter.
type scanner interface {
	Scan(func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// Radio scans and connects through one adapter. The adapter runs one scan at
// a time, so concurrent Find and Scan calls queue on scanMu; connecting and
// service discovery run concurrently.
type Radio struct {
	adapter     *bluetooth.Adapter
	scanner     scanner
	scanTimeout time.Duration

	scanMu sync.Mutex

	mu       sync.Mutex
	profiles map[string]Profile // by name substring
	enabled  bool
}

// NewRadio uses the default adapter. Profiles map the name substring passed
// to Find to the GATT layout of that device.
func NewRadio(scanTimeout time.Duration, profiles map[string]Profile) *Radio {
	return &Radio{
		adapter:     bluetooth.DefaultAdapter,
		scanner:     bluetooth.DefaultAdapter,
		scanTimeout: scanTimeout,
		profiles:    profiles,
	}
}

func (r *Radio) enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enabled {
		return nil
	}
	if err := r.adapter.Enable(); err != nil {
		return fmt.Errorf("enable BLE adapter: %w", err)
	}
	r.enabled = true
	return nil
}

// Scan reports advertisements until ctx ends or the scan timeout expires.
// Each address is reported once.
func (r *Radio) Scan(ctx context.Context, fn func(Advertisement)) error {
	if err := r.enable(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	_, err := r.scan(ctx, func(res bluetooth.ScanResult) bool {
		addr := res.Address.String()
		if !seen[addr] {
			seen[addr] = true
			fn(Advertisement{Name: res.LocalName(), Address: addr, RSSI: res.RSSI})
		}
		return false
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// scan waits for the adapter, then scans until match returns true, the scan
// timeout expires or ctx ends. The timeout starts once the adapter is ours.
func (r *Radio) scan(ctx context.Context, match func(bluetooth.ScanResult) bool) (bluetooth.ScanResult, error) {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()
	if err := ctx.Err(); err != nil {
		return bluetooth.ScanResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.scanTimeout)
	defer cancel()

	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- r.scanner.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
			if match(res) {
				select {
				case found <- res:
				default:
				}
				_ = r.scanner.StopScan()
			}
		})
	}()

	select {
	case res := <-found:
		<-scanErr
		return res, nil
	case err := <-scanErr:
		if err == nil {
			err = errors.New("scan stopped")
		}
		return bluetooth.ScanResult{}, err
	case <-ctx.Done():
		_ = r.scanner.StopScan()
		<-scanErr
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func (r *Radio) profileFor(name string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[name]; ok {
		return p, nil
	}
	for sub, p := range r.profiles {
		if strings.Contains(name, sub) {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("no GATT profile for %q", name)
}

// Find scans for a device whose advertised name contains name, connects and
// resolves its characteristics.
func (r *Radio) Find(ctx context.Context, name string) (link.Link, error) {
	prof, err := r.profileFor(name)
	if err != nil {
		return nil, err
	}
	svcUUID, err := bluetooth.ParseUUID(prof.Service)
	if err != nil {
		return nil, fmt.Errorf("service uuid: %w", err)
	}
	cmdUUID, err := bluetooth.ParseUUID(prof.Cmd)
	if err != nil {
		return nil, fmt.Errorf("command characteristic uuid: %w", err)
	}
	dataUUID, err := bluetooth.ParseUUID(prof.Data)
	if err != nil {
		return nil, fmt.Errorf("data characteristic uuid: %w", err)
	}
	if err := r.enable(); err != nil {
		return nil, err
	}

	slog.Debug("scanning", "name", name, "timeout", r.scanTimeout)
	res, err := r.scan(ctx, func(res bluetooth.ScanResult) bool {
		return strings.Contains(res.LocalName(), name)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%q: %w", name, link.ErrDeviceNotFound)
		}
		return nil, err
	}
	slog.Debug("found", "name", res.LocalName(), "address", res.Address.String())

	dev, err := r.adapter.Connect(res.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", res.LocalName(), err)
	}

	l := &Link{name: res.LocalName(), dev: dev}
	if err := l.resolve(svcUUID, cmdUUID, dataUUID); err != nil {
		_ = dev.Disconnect()
		return nil, err
	}
	return l, nil
}

// Link is a connected peripheral.
type Link struct {
	name string
	dev  bluetooth.Device
	cmd  bluetooth.DeviceCharacteristic
	data bluetooth.DeviceCharacteristic
}

func (l *Link) resolve(svc, cmd, data bluetooth.UUID) error {
	services, err := l.dev.DiscoverServices([]bluetooth.UUID{svc})
	if err != nil || len(services) == 0 {
		return fmt.Errorf("discover service %s: %w", svc, errors.Join(err, errors.New("not found")))
	}

	uuids := []bluetooth.UUID{cmd}
	if data != cmd {
		uuids = append(uuids, data)
	}
	chars, err := services[0].DiscoverCharacteristics(uuids)
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}

	var haveCmd, haveData bool
	for _, c := range chars {
		if c.UUID() == cmd {
			l.cmd, haveCmd = c, true
		}
		if c.UUID() == data {
			l.data, haveData = c, true
		}
	}
	if !haveCmd || !haveData {
		return fmt.Errorf("characteristics %s/%s not found on %s", cmd, data, l.name)
	}
	return nil
}

func (l *Link) Name() string { return l.name }

func (l *Link) Subscribe(onNotify func([]byte)) error {
	return l.data.EnableNotifications(onNotify)
}

func (l *Link) Unsubscribe() error {
	return l.data.EnableNotifications(nil)
}

func (l *Link) Write(cmd []byte) error {
	_, err := l.cmd.WriteWithoutResponse(cmd)
	return err
}

func (l *Link) Disconnect() error {
	return l.dev.Disconnect()
}
