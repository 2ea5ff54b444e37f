// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Sink consumes records. Implementations are safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, r Record) error
	Close() error
}

// FileSink appends encoded records to a file.
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	enc Encoder
}

// OpenFile opens path for appending, creating it if needed.
func OpenFile(path string, enc Encoder) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &FileSink{f: f, enc: enc}, nil
}

func (s *FileSink) Emit(_ context.Context, r Record) error {
	b, err := s.enc.Encode(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	_, err = s.f.Write(b)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// MultiSink fans records out. A failing sink is logged and skipped; the
// others still receive the record.
type MultiSink struct {
	sinks []Sink
	names []string
}

// NewMultiSink combines sinks; names label them in logs.
func NewMultiSink() *MultiSink {
	return &MultiSink{}
}

// Add appends a sink.
func (m *MultiSink) Add(name string, s Sink) {
	m.sinks = append(m.sinks, s)
	m.names = append(m.names, name)
}

// Len is the number of sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

func (m *MultiSink) Emit(ctx context.Context, r Record) error {
	for i, s := range m.sinks {
		if err := s.Emit(ctx, r); err != nil {
			slog.Warn("sink emit failed", "sink", m.names[i], "kind", r.Kind(), "error", err)
		}
	}
	return nil
}

func (m *MultiSink) Close() error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.names[i], err))
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func (s *MemorySink) Emit(_ context.Context, r Record) error {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Records returns a copy of what was emitted.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// OfKind returns the emitted records of kind k.
func (s *MemorySink) OfKind(k Kind) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if r.Kind() == k {
			out = append(out, r)
		}
	}
	return out
}
