//////////////////////////////////////////////////////////////////////////////
//
// Audio sink and source interfaces
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"io"
)

// Sample formats
const (
	S8 = iota
	U8
	S16LE
	F32LE
)

// BytesPerSample returns the width of one sample in the given format, or 0
// for an unknown format.
func BytesPerSample(format int) int {
	switch format {
	case S8, U8:
		return 1
	case S16LE:
		return 2
	case F32LE:
		return 4
	}
	return 0
}

// AudioSink is the interface for audio sinks (e.g. speaker). Write takes
// interleaved samples in the configured format and blocks at the device
// rate.
type AudioSink interface {
	io.Closer
	io.Writer

	// Configure audio sink sample rate, number of channels, and sample format
	Configure(rate int, channels int, format int) error
}

// PlanarAudioSink additionally accepts one float32 slice per channel, all of
// equal length, with samples in [-1, 1). Returns the number of frames
// written.
type PlanarAudioSink interface {
	AudioSink

	WritePlanar(channels [][]float32) (int, error)
}

// AudioSource is the interface for audio capture devices (e.g. microphone).
// Read fills p with interleaved samples in the configured format.
type AudioSource interface {
	io.Closer
	io.Reader

	Configure(rate int, channels int, format int) error

	// Interrupt makes a Read blocked in another goroutine return, and any
	// later Read fail, without releasing the device. Close must not be
	// called until that Read has returned.
	Interrupt() error
}
