// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package protocol

import (
	"context"
	"testing"
	"time"
)

func waitBatch[F any](t *testing.T, h *Handoff[F]) []F {
	t.Helper()
	batch, ok := h.Wait(context.Background(), 100*time.Millisecond)
	if !ok {
		t.Fatal("batchReady not set")
	}
	return batch
}

func ballFrames(n int) []byte {
	var buf []byte
	for i := 0; i < n; i++ {
		f := BallFrame{
			Accel: [3]int16{int16(i), int16(-i), 100},
			Gyro:  [3]int16{int16(10 * i), 0, int16(-10 * i)},
		}
		buf = f.Append(buf)
	}
	return buf
}

func TestDemuxBallBatchChunked(t *testing.T) {
	h := NewHandoff[BallFrame]()
	d := NewDemux(BallCodec, h)

	d.Handle([]byte("BIN10:5"))
	data := ballFrames(5)
	// Arbitrary chunk boundaries, including a 1-byte and an 8-byte chunk.
	for _, cut := range [][2]int{{0, 7}, {7, 8}, {8, 16}, {16, 40}, {40, 60}} {
		d.Handle(data[cut[0]:cut[1]])
	}
	d.Handle([]byte("BATCH_DONE"))

	batch := waitBatch(t, h)
	if len(batch) != 5 {
		t.Fatalf("decoded %d frames, want 5", len(batch))
	}
	for i, f := range batch {
		if f.Accel[0] != int16(i) || f.Gyro[2] != int16(-10*i) {
			t.Errorf("frame %d decoded as %+v", i, f)
		}
	}
	if h.IsDone() {
		t.Error("done set before Done marker")
	}

	d.Handle([]byte("Done"))
	if !h.IsDone() {
		t.Error("done not set after Done marker")
	}
	if batch := waitBatch(t, h); len(batch) != 0 {
		t.Errorf("Done published %d frames, want none", len(batch))
	}
}

func TestDemuxDoneMidCycle(t *testing.T) {
	h := NewHandoff[BallFrame]()
	d := NewDemux(BallCodec, h)

	d.Handle([]byte("BIN10:3"))
	d.Handle(ballFrames(1))
	d.Handle([]byte("Done"))

	if !h.IsDone() {
		t.Fatal("done not set")
	}
	waitBatch(t, h)
}

func TestDemuxShortBufferIsDropped(t *testing.T) {
	h := NewHandoff[InsoleFrame]()
	d := NewDemux(InsoleCodec, h)

	d.Handle([]byte("BIN10:2"))
	full := InsoleFrame{Ticks: 100}.Append(nil)
	full = InsoleFrame{Ticks: 101}.Append(full)
	d.Handle(full[:35])
	d.Handle([]byte("BATCH_DONE"))

	if batch := waitBatch(t, h); len(batch) != 0 {
		t.Fatalf("short buffer decoded into %d frames, want 0", len(batch))
	}
	if s := d.Stats(); s.Malformed != 1 || s.Batches != 0 {
		t.Errorf("stats = %+v, want 1 malformed, 0 batches", s)
	}
}

func TestDemuxExtraBytesIgnored(t *testing.T) {
	h := NewHandoff[InsoleFrame]()
	d := NewDemux(InsoleCodec, h)

	d.Handle([]byte("BIN10:1"))
	buf := InsoleFrame{Ticks: 7}.Append(nil)
	buf = append(buf, 0xAA, 0xBB, 0xCC)
	d.Handle(buf)
	d.Handle([]byte("BATCH_DONE"))

	batch := waitBatch(t, h)
	if len(batch) != 1 || batch[0].Ticks != 7 {
		t.Fatalf("batch = %+v, want one frame with ticks 7", batch)
	}
}

func TestDemuxTextFallthrough(t *testing.T) {
	h := NewHandoff[BallFrame]()
	d := NewDemux(BallCodec, h)

	d.Handle([]byte("BIN10:1"))
	// Twelve bytes of valid UTF-8 that match no marker are frame data.
	payload := []byte("hello world!")
	d.Handle(payload)
	d.Handle([]byte("BATCH_DONE"))

	batch := waitBatch(t, h)
	if len(batch) != 1 {
		t.Fatalf("decoded %d frames, want 1", len(batch))
	}
	want := DecodeFrames(BallCodec, payload, 1)[0]
	if batch[0] != want {
		t.Errorf("frame = %+v, want %+v", batch[0], want)
	}
}

func TestDemuxMalformedBatchStartIsData(t *testing.T) {
	h := NewHandoff[InsoleFrame]()
	d := NewDemux(InsoleCodec, h)

	d.Handle([]byte("BIN10:1"))
	d.Handle([]byte("BIN10:x"))
	if got := d.Stats().RawBytes; got != len("BIN10:x") {
		t.Errorf("raw bytes = %d, want %d", got, len("BIN10:x"))
	}
	d.Handle([]byte("BIN10:-1"))
	if got := d.Stats().RawBytes; got != len("BIN10:x")+len("BIN10:-1") {
		t.Errorf("raw bytes = %d after negative count", got)
	}
}

func TestDemuxSignedOrSpacedCountIsData(t *testing.T) {
	h := NewHandoff[InsoleFrame]()
	d := NewDemux(InsoleCodec, h)

	for _, text := range []string{"BIN10:+5", "BIN10: 5", "BIN10:5 "} {
		before := d.Stats().RawBytes
		d.Handle([]byte(text))
		if got := d.Stats().RawBytes - before; got != len(text) {
			t.Errorf("%q: buffered %d bytes, want %d", text, got, len(text))
		}
	}
}

func TestDemuxOnDecodeSeesReplacedBatch(t *testing.T) {
	h := NewHandoff[BallFrame]()
	d := NewDemux(BallCodec, h)
	var seen []int
	d.OnDecode(func(b []BallFrame) { seen = append(seen, len(b)) })

	d.Handle([]byte("BIN10:2"))
	d.Handle(ballFrames(2))
	d.Handle([]byte("BATCH_DONE"))
	d.Handle([]byte("BIN10:3"))
	d.Handle(ballFrames(3))
	d.Handle([]byte("BATCH_DONE"))
	d.Handle([]byte("BIN10:4"))
	d.Handle(ballFrames(3)) // short
	d.Handle([]byte("BATCH_DONE"))
	d.Handle([]byte("Done"))

	// Only the last signal survives in the handoff; the hook saw both batches.
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Errorf("hook saw %v, want [2 3]", seen)
	}
	if batch := waitBatch(t, h); len(batch) != 0 {
		t.Errorf("handoff holds %d frames, want the Done wakeup", len(batch))
	}
}

func TestDemuxBatchStartResetsBuffer(t *testing.T) {
	h := NewHandoff[InsoleFrame]()
	d := NewDemux(InsoleCodec, h)

	d.Handle([]byte("junk"))
	d.Handle([]byte("BIN10:1"))
	d.Handle(InsoleFrame{Ticks: 42}.Append(nil))
	d.Handle([]byte("BATCH_DONE"))

	batch := waitBatch(t, h)
	if len(batch) != 1 || batch[0].Ticks != 42 {
		t.Fatalf("batch = %+v, want one frame with ticks 42", batch)
	}
}

func TestDemuxZeroCountBatch(t *testing.T) {
	h := NewHandoff[InsoleFrame]()
	d := NewDemux(InsoleCodec, h)

	d.Handle([]byte("BIN10:0"))
	d.Handle([]byte("BATCH_DONE"))
	if batch := waitBatch(t, h); len(batch) != 0 {
		t.Errorf("empty batch decoded into %d frames", len(batch))
	}
	if s := d.Stats(); s.Malformed != 0 {
		t.Errorf("empty batch counted as malformed: %+v", s)
	}
}

func TestDemuxTimingRecord(t *testing.T) {
	h := NewHandoff[BallFrame]()
	d := NewDemux(BallCodec, h)

	d.Handle(TimingRecord{StartMs: 1200, EndMs: 9200}.Append(nil))
	rec, ok := d.Timing()
	if !ok {
		t.Fatal("timing record not captured")
	}
	if rec.StartMs != 1200 || rec.EndMs != 9200 {
		t.Errorf("timing = %+v", rec)
	}
	if d.Stats().RawBytes != 0 {
		t.Error("timing record was buffered as data")
	}

	// A later 8-byte payload is frame data.
	d.Handle([]byte("BIN10:1"))
	d.Handle(make([]byte, 8))
	if d.Stats().RawBytes != 8 {
		t.Errorf("raw bytes = %d, want 8", d.Stats().RawBytes)
	}
}

func TestDemuxInsoleIgnoresTimingShape(t *testing.T) {
	h := NewHandoff[InsoleFrame]()
	d := NewDemux(InsoleCodec, h)

	d.Handle(make([]byte, 8))
	if _, ok := d.Timing(); ok {
		t.Error("insole demux captured a timing record")
	}
	if d.Stats().RawBytes != 8 {
		t.Errorf("raw bytes = %d, want 8", d.Stats().RawBytes)
	}
}

func TestHandoffSetReplacesUnconsumed(t *testing.T) {
	h := NewHandoff[int]()
	h.SetReady([]int{1})
	h.SetReady([]int{2, 3})

	batch := waitBatch(t, h)
	if len(batch) != 2 || batch[0] != 2 {
		t.Errorf("batch = %v, want [2 3]", batch)
	}

	h.SetReady([]int{4})
	h.Clear()
	if _, ok := h.Wait(context.Background(), 10*time.Millisecond); ok {
		t.Error("Wait succeeded after Clear")
	}
}
