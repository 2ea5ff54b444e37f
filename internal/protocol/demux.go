// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Control markers sent by the firmware as complete notification payloads.
const (
	MarkerBatchStart = "BIN10:"
	MarkerBatchDone  = "BATCH_DONE"
	MarkerDone       = "Done"
)

// DemuxStats counts what the demux saw. Read it only after the link has been
// unsubscribed.
type DemuxStats struct {
	Payloads  int
	RawBytes  int
	Batches   int
	Frames    int
	Malformed int
}

// Demux classifies notification payloads of one device session. Every method
// except the constructor runs on the reactor goroutine.
type Demux[F any] struct {
	codec Codec[F]
	out   *Handoff[F]

	buf      []byte
	expected int
	seen     bool

	timing    TimingRecord
	hasTiming bool

	stats    DemuxStats
	onDecode func([]F)
}

// NewDemux creates a demux publishing batches to out.
func NewDemux[F any](codec Codec[F], out *Handoff[F]) *Demux[F] {
	return &Demux[F]{codec: codec, out: out}
}

// OnDecode registers fn to be called with every non-empty decoded batch,
// before it is published to the handoff.
func (d *Demux[F]) OnDecode(fn func([]F)) {
	d.onDecode = fn
}

// Handle processes one notification payload.
func (d *Demux[F]) Handle(payload []byte) {
	first := !d.seen
	d.seen = true
	d.stats.Payloads++

	if d.codec.TimingRecord && first && d.expected == 0 && len(payload) == TimingSize {
		d.timing = decodeTiming(payload)
		d.hasTiming = true
		return
	}

	if utf8.Valid(payload) {
		text := string(payload)
		switch {
		case text == MarkerBatchDone:
			d.completeBatch()
			return
		case text == MarkerDone:
			d.out.SetDone()
			return
		case strings.HasPrefix(text, MarkerBatchStart):
			if n, ok := parseFrameCount(text[len(MarkerBatchStart):]); ok {
				d.buf = d.buf[:0]
				d.expected = n * d.codec.FrameSize
				return
			}
		}
	}

	// Binary data, or text that is not one of the markers.
	d.buf = append(d.buf, payload...)
	d.stats.RawBytes += len(payload)
}

func (d *Demux[F]) completeBatch() {
	var batch []F
	if d.expected > 0 && len(d.buf) >= d.expected {
		n := d.expected / d.codec.FrameSize
		batch = DecodeFrames(d.codec, d.buf[:d.expected], n)
		d.stats.Batches++
		d.stats.Frames += n
		if d.onDecode != nil {
			d.onDecode(batch)
		}
	} else if d.expected > 0 {
		d.stats.Malformed++
	}
	d.out.SetReady(batch)
}

// parseFrameCount accepts a non-negative base-10 integer only.
func parseFrameCount(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Timing returns the ball timing record, if one was received.
func (d *Demux[F]) Timing() (TimingRecord, bool) {
	return d.timing, d.hasTiming
}

// Stats returns the payload counters.
func (d *Demux[F]) Stats() DemuxStats {
	return d.stats
}
