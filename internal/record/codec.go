// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Format selects the on-disk encoding. FormatJSON, the default, is line
// delimited; FormatMsgpack is a binary stream of length-prefixed records.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// Encoder turns a record into one self-delimiting chunk of bytes.
type Encoder interface {
	Encode(r Record) ([]byte, error)
	Format() Format
}

// NewEncoder returns the encoder for format.
func NewEncoder(format Format) (Encoder, error) {
	switch format {
	case FormatJSON, "":
		return JSONEncoder{}, nil
	case FormatMsgpack:
		return MsgpackEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// JSONEncoder writes one JSON object per line.
type JSONEncoder struct{}

func (JSONEncoder) Format() Format { return FormatJSON }

func (JSONEncoder) Encode(r Record) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Kind(), err)
	}
	return append(b, '\n'), nil
}

// MsgpackEncoder writes msgpack maps keyed like the JSON encoding, each
// prefixed with its length as a 4-byte big-endian integer.
type MsgpackEncoder struct{}

func (MsgpackEncoder) Format() Format { return FormatMsgpack }

func (MsgpackEncoder) Encode(r Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})

	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Kind(), err)
	}

	b := buf.Bytes()
	binary.BigEndian.PutUint32(b[:4], uint32(len(b)-4))
	return b, nil
}

func newRecord(k Kind) (Record, error) {
	switch k {
	case KindInsoleSample:
		return &InsoleSample{}, nil
	case KindBallBatch:
		return &BallBatch{}, nil
	case KindGaitEvents:
		return &GaitEvents{}, nil
	case KindCOPPath:
		return &COPPath{}, nil
	case KindBallSummary:
		return &BallSummary{}, nil
	case KindSessionEnd:
		return &SessionEnd{}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", k)
	}
}

// Decode parses one JSON record, dispatching on its kind.
func Decode(line []byte) (Record, error) {
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	r, err := newRecord(h.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(line, r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Kind, err)
	}
	return r, nil
}

// DecodeMsgpack parses one msgpack record body (without length prefix).
func DecodeMsgpack(body []byte) (Record, error) {
	var h Header
	dec := msgpack.NewDecoder(bytes.NewReader(body))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	r, err := newRecord(h.Kind)
	if err != nil {
		return nil, err
	}
	dec = msgpack.NewDecoder(bytes.NewReader(body))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", h.Kind, err)
	}
	return r, nil
}

// ReadAll reads every record of a file written in format.
func ReadAll(rd io.Reader, format Format) ([]Record, error) {
	var out []Record
	switch format {
	case FormatJSON, "":
		sc := bufio.NewScanner(rd)
		sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			if len(bytes.TrimSpace(sc.Bytes())) == 0 {
				continue
			}
			r, err := Decode(sc.Bytes())
			if err != nil {
				return out, fmt.Errorf("line %d: %w", line, err)
			}
			out = append(out, r)
		}
		return out, sc.Err()

	case FormatMsgpack:
		br := bufio.NewReader(rd)
		var size [4]byte
		for {
			if _, err := io.ReadFull(br, size[:]); err != nil {
				if errors.Is(err, io.EOF) {
					return out, nil
				}
				return out, fmt.Errorf("record %d: %w", len(out)+1, err)
			}
			body := make([]byte, binary.BigEndian.Uint32(size[:]))
			if _, err := io.ReadFull(br, body); err != nil {
				return out, fmt.Errorf("record %d: %w", len(out)+1, err)
			}
			r, err := DecodeMsgpack(body)
			if err != nil {
				return out, fmt.Errorf("record %d: %w", len(out)+1, err)
			}
			out = append(out, r)
		}

	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
