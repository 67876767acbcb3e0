//////////////////////////////////////////////////////////////////////////////
//
// Video decoder interface
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"strings"

	"github.com/pkg/errors"
)

// HardwarePreference is a hint for choosing between hardware and software
// decoding. Decoders may ignore it.
type HardwarePreference int

const (
	NoPreference HardwarePreference = iota
	PreferHardware
	PreferSoftware
)

func (p HardwarePreference) String() string {
	switch p {
	case PreferHardware:
		return "prefer-hardware"
	case PreferSoftware:
		return "prefer-software"
	default:
		return "no-preference"
	}
}

func ParseHardwarePreference(s string) (HardwarePreference, error) {
	switch strings.ToLower(s) {
	case "", "no-preference":
		return NoPreference, nil
	case "prefer-hardware", "hardware":
		return PreferHardware, nil
	case "prefer-software", "software":
		return PreferSoftware, nil
	}
	return NoPreference, errors.Errorf("unknown hardware acceleration preference %q", s)
}

// DecoderConfig describes the stream a decoder is about to receive.
type DecoderConfig struct {
	// RFC 6381 codec string, e.g. "avc1.640028".
	Codec string

	CodedWidth  int
	CodedHeight int

	HardwareAcceleration HardwarePreference
}

type ChunkType int

const (
	ChunkDelta ChunkType = iota
	ChunkKey
)

func (t ChunkType) String() string {
	if t == ChunkKey {
		return "key"
	}
	return "delta"
}

// EncodedChunk is one access unit in Annex B framing. Data is only valid for
// the duration of the Decode call.
type EncodedChunk struct {
	Type      ChunkType
	Timestamp int64
	Data      []byte
}

// VideoDecoder decodes access units asynchronously. Decoded frames and
// decode errors are delivered through the DecoderCallbacks it was created
// with, possibly from another goroutine.
type VideoDecoder interface {
	// Configure (or reconfigure) the decoder. Must precede the first Decode.
	Configure(cfg DecoderConfig) error

	// Queue a chunk for decoding. Chunks are decoded in submission order.
	Decode(chunk EncodedChunk) error

	Close() error
}

type DecoderCallbacks struct {
	// Output receives ownership of each decoded frame, and must eventually
	// Release it.
	Output func(*Frame)

	// Error reports a failure to decode a previously queued chunk.
	Error func(error)
}

// DecoderFactory creates a decoder bound to the given callbacks.
type DecoderFactory func(cb DecoderCallbacks) (VideoDecoder, error)
