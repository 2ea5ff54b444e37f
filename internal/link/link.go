// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link defines the radio boundary used by device sessions: finding a
// device, subscribing to its notify characteristic and writing commands.
package link

import (
	"context"
	"errors"
)

// Commands understood by the insole and ball firmware.
var (
	CmdStart = []byte("start_r")
	CmdStop  = []byte("stop_r")
	CmdPull  = []byte("get_data10_bin")
)

// ErrDeviceNotFound is returned (wrapped) by Radio.Find when no advertised
// device matches the requested name.
var ErrDeviceNotFound = errors.New("device not found")

// Radio discovers and connects devices.
type Radio interface {
	Find(ctx context.Context, name string) (Link, error)
}

// Link is a connected device. Except for Find, all calls are made from the
// reactor goroutine. The notify callback may be invoked from any goroutine;
// the payload slice is only valid for the duration of the call.
type Link interface {
	Name() string
	Subscribe(onNotify func(payload []byte)) error
	Unsubscribe() error
	Write(cmd []byte) error
	Disconnect() error
}
