// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package serialbridge drives a BLE central co-processor attached over a UART.
//
// Frames in both directions are type(1) | length(2, little endian) | payload.
// Host to bridge: 'F' find (name), 'S' subscribe, 'U' unsubscribe,
// 'W' write (command bytes), 'D' disconnect. Device-scoped frames start their
// payload with the one-byte handle returned by find. Bridge to host: 'A' ack
// (find acks carry the handle), 'E' error (text), 'N' notification
// (handle, data). Requests are answered in order, one at a time.
package serialbridge

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/gait_computer/internal/link"
)

// Frame types.
const (
	TypeFind        = 'F'
	TypeSubscribe   = 'S'
	TypeUnsubscribe = 'U'
	TypeWrite       = 'W'
	TypeDisconnect  = 'D'

	TypeAck    = 'A'
	TypeError  = 'E'
	TypeNotify = 'N'
)

const maxPayload = 0xFFFF

// ErrBridgeClosed is returned once the port has been closed or failed.
var ErrBridgeClosed = errors.New("serial bridge closed")

// Frame is one message on the wire.
type Frame struct {
	Type    byte
	Payload []byte
}

// AppendFrame encodes f.
func AppendFrame(b []byte, f Frame) []byte {
	b = append(b, f.Type)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(f.Payload)))
	return append(b, f.Payload...)
}

// ReadFrame reads one frame.
func ReadFrame(r *bufio.Reader) (Frame, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	f := Frame{Type: hdr[0], Payload: make([]byte, binary.LittleEndian.Uint16(hdr[1:]))}
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Options for opening the UART.
type Options struct {
	Port           string
	BaudRate       int
	RequestTimeout time.Duration // per request; find uses FindTimeout
	FindTimeout    time.Duration
}

// Bridge is a link.Radio backed by the co-processor.
type Bridge struct {
	port io.ReadWriteCloser
	opts Options

	reqMu   sync.Mutex // one request in flight
	replies chan Frame

	subMu sync.Mutex
	subs  map[byte]func([]byte)

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error
}

// Open opens the serial port and starts the reader.
func Open(opts Options) (*Bridge, error) {
	serialOpts := serial.OpenOptions{
		PortName:              opts.Port,
		BaudRate:              uint(opts.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Port, err)
	}
	slog.Info("serial bridge opened", "port", opts.Port, "baud", opts.BaudRate)
	return New(port, opts), nil
}

// New runs the bridge protocol over an already open port.
func New(port io.ReadWriteCloser, opts Options) *Bridge {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = time.Second
	}
	if opts.FindTimeout <= 0 {
		opts.FindTimeout = 10 * time.Second
	}
	b := &Bridge{
		port:    port,
		opts:    opts,
		replies: make(chan Frame, 1),
		subs:    make(map[byte]func([]byte)),
		closed:  make(chan struct{}),
	}
	go b.readLoop()
	return b
}

func (b *Bridge) readLoop() {
	r := bufio.NewReader(b.port)
	for {
		f, err := ReadFrame(r)
		if err != nil {
			b.shutdown(err)
			return
		}
		switch f.Type {
		case TypeNotify:
			if len(f.Payload) == 0 {
				continue
			}
			b.subMu.Lock()
			fn := b.subs[f.Payload[0]]
			b.subMu.Unlock()
			if fn != nil {
				fn(f.Payload[1:])
			}
		case TypeAck, TypeError:
			select {
			case b.replies <- f:
			default:
				slog.Warn("serial bridge: unsolicited reply dropped", "type", string(f.Type))
			}
		default:
			slog.Warn("serial bridge: unknown frame", "type", f.Type, "len", len(f.Payload))
		}
	}
}

func (b *Bridge) shutdown(err error) {
	b.closeOnce.Do(func() {
		b.readErr = err
		close(b.closed)
		_ = b.port.Close()
	})
}

// Close closes the port.
func (b *Bridge) Close() error {
	b.shutdown(ErrBridgeClosed)
	return nil
}

func (b *Bridge) request(ctx context.Context, timeout time.Duration, f Frame) ([]byte, error) {
	if len(f.Payload) > maxPayload {
		return nil, fmt.Errorf("payload of %d bytes too large", len(f.Payload))
	}
	b.reqMu.Lock()
	defer b.reqMu.Unlock()

	// Drop a late reply to an earlier, timed out request.
	select {
	case <-b.replies:
	default:
	}

	if _, err := b.port.Write(AppendFrame(nil, f)); err != nil {
		return nil, fmt.Errorf("serial write: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case rep := <-b.replies:
		if rep.Type == TypeError {
			msg := string(rep.Payload)
			if strings.Contains(msg, "not found") {
				return nil, link.ErrDeviceNotFound
			}
			return nil, fmt.Errorf("bridge: %s", msg)
		}
		return rep.Payload, nil
	case <-timer.C:
		return nil, fmt.Errorf("bridge %c request: timeout after %v", f.Type, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.closed:
		return nil, fmt.Errorf("%w: %v", ErrBridgeClosed, b.readErr)
	}
}

// Find asks the bridge to scan for and connect to name.
func (b *Bridge) Find(ctx context.Context, name string) (link.Link, error) {
	rep, err := b.request(ctx, b.opts.FindTimeout, Frame{Type: TypeFind, Payload: []byte(name)})
	if err != nil {
		if errors.Is(err, link.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		return nil, err
	}
	if len(rep) < 1 {
		return nil, errors.New("bridge: find ack without handle")
	}
	full := name
	if len(rep) > 1 {
		full = string(rep[1:])
	}
	return &Link{b: b, handle: rep[0], name: full}, nil
}

// Link is one device connected through the bridge.
type Link struct {
	b      *Bridge
	handle byte
	name   string
}

func (l *Link) Name() string { return l.name }

func (l *Link) call(t byte, data []byte) error {
	payload := append([]byte{l.handle}, data...)
	_, err := l.b.request(context.Background(), l.b.opts.RequestTimeout, Frame{Type: t, Payload: payload})
	return err
}

func (l *Link) Subscribe(onNotify func([]byte)) error {
	l.b.subMu.Lock()
	l.b.subs[l.handle] = onNotify
	l.b.subMu.Unlock()
	if err := l.call(TypeSubscribe, nil); err != nil {
		l.dropSub()
		return err
	}
	return nil
}

func (l *Link) dropSub() {
	l.b.subMu.Lock()
	delete(l.b.subs, l.handle)
	l.b.subMu.Unlock()
}

func (l *Link) Unsubscribe() error {
	defer l.dropSub()
	return l.call(TypeUnsubscribe, nil)
}

func (l *Link) Write(cmd []byte) error {
	return l.call(TypeWrite, cmd)
}

func (l *Link) Disconnect() error {
	l.dropSub()
	return l.call(TypeDisconnect, nil)
}
