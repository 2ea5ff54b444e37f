// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"encoding/binary"
	"time"
)

const (
	InsoleChannels  = 8
	InsoleFrameSize = 4 + InsoleChannels*2 // 20
	BallFrameSize   = 6 * 2                // 12
	TimingSize      = 8
)

// InsoleFrame is one insole sample: device tick count + 8 ADC channels.
type InsoleFrame struct {
	Ticks    uint32
	Channels [InsoleChannels]uint16
}

// Append encodes f in wire layout.
func (f InsoleFrame) Append(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, f.Ticks)
	for _, v := range f.Channels {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b
}

func decodeInsole(b []byte) InsoleFrame {
	var f InsoleFrame
	f.Ticks = binary.LittleEndian.Uint32(b[0:4])
	for i := range f.Channels {
		off := 4 + 2*i
		f.Channels[i] = binary.LittleEndian.Uint16(b[off : off+2])
	}
	return f
}

// BallFrame is one ball IMU sample in raw counts.
type BallFrame struct {
	Accel [3]int16 // x, y, z
	Gyro  [3]int16 // x, y, z
}

// Append encodes f in wire layout.
func (f BallFrame) Append(b []byte) []byte {
	for _, v := range f.Accel {
		b = binary.LittleEndian.AppendUint16(b, uint16(v))
	}
	for _, v := range f.Gyro {
		b = binary.LittleEndian.AppendUint16(b, uint16(v))
	}
	return b
}

func decodeBall(b []byte) BallFrame {
	var f BallFrame
	for i := 0; i < 3; i++ {
		f.Accel[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
		f.Gyro[i] = int16(binary.LittleEndian.Uint16(b[6+2*i:]))
	}
	return f
}

// TimingRecord is the ball's recording window in device milliseconds.
type TimingRecord struct {
	StartMs uint32
	EndMs   uint32
}

// Append encodes t in wire layout.
func (t TimingRecord) Append(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, t.StartMs)
	return binary.LittleEndian.AppendUint32(b, t.EndMs)
}

// Duration of the recording window, zero if the record is inverted.
func (t TimingRecord) Duration() time.Duration {
	if t.EndMs < t.StartMs {
		return 0
	}
	return time.Duration(t.EndMs-t.StartMs) * time.Millisecond
}

func decodeTiming(b []byte) TimingRecord {
	return TimingRecord{
		StartMs: binary.LittleEndian.Uint32(b[0:4]),
		EndMs:   binary.LittleEndian.Uint32(b[4:8]),
	}
}

// Codec describes one device's fixed-size frame format.
type Codec[F any] struct {
	Name      string
	FrameSize int
	Decode    func(b []byte) F

	// TimingRecord enables the leading 8-byte timing payload (ball firmware).
	TimingRecord bool
}

var (
	InsoleCodec = Codec[InsoleFrame]{Name: "insole", FrameSize: InsoleFrameSize, Decode: decodeInsole}
	BallCodec   = Codec[BallFrame]{Name: "ball", FrameSize: BallFrameSize, Decode: decodeBall, TimingRecord: true}
)

// DecodeFrames slices the first n frames out of buf. The caller guarantees
// len(buf) >= n*codec.FrameSize.
func DecodeFrames[F any](codec Codec[F], buf []byte, n int) []F {
	out := make([]F, 0, n)
	for i := 0; i < n; i++ {
		off := i * codec.FrameSize
		out = append(out, codec.Decode(buf[off:off+codec.FrameSize]))
	}
	return out
}
