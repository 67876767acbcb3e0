//////////////////////////////////////////////////////////////////////////////
//
// File audio sink
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"encoding/binary"
	"io"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
)

// How far ahead of the wall clock a FileAudioSink may run.
const fileSinkLead = 50 * time.Millisecond

// FileAudioSink writes raw PCM to a file or pipe, paced at the configured
// sample rate so that it can stand in for a playback device.
type FileAudioSink struct {
	w      io.WriteCloser
	rate   int
	chans  int
	format int

	start   time.Time
	written int64 // frames
	scratch []byte
	sleep   func(time.Duration)
}

func NewFileAudioSink(filename string) (*FileAudioSink, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return NewWriterAudioSink(f), nil
}

// NewWriterAudioSink wraps an arbitrary writer, e.g. os.Stdout.
func NewWriterAudioSink(w io.WriteCloser) *FileAudioSink {
	return &FileAudioSink{w: w, sleep: time.Sleep}
}

func (s *FileAudioSink) Close() error {
	return s.w.Close()
}

func (s *FileAudioSink) Configure(rate, channels, format int) error {
	if format != S16LE && format != F32LE {
		return errors.Wrapf(ErrNotImplemented, "file sink format %d", format)
	}
	if rate <= 0 || channels <= 0 {
		return errors.Errorf("invalid audio format %d Hz x %d", rate, channels)
	}
	s.rate, s.chans, s.format = rate, channels, format
	s.start = time.Time{}
	s.written = 0
	return nil
}

// Write interleaved samples in the configured format.
func (s *FileAudioSink) Write(p []byte) (int, error) {
	if s.rate == 0 {
		return 0, errors.New("file sink not configured")
	}
	n, err := s.w.Write(p)
	s.pace(int64(n / (BytesPerSample(s.format) * s.chans)))
	return n, err
}

// WritePlanar interleaves and converts the channels to the configured format.
func (s *FileAudioSink) WritePlanar(channels [][]float32) (int, error) {
	if len(channels) != s.chans || s.chans == 0 {
		return 0, errors.Errorf("got %d channels, configured for %d", len(channels), s.chans)
	}
	frames := len(channels[0])
	width := BytesPerSample(s.format)
	need := frames * s.chans * width
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	b := s.scratch[:need]
	for i := 0; i < frames; i++ {
		for c, ch := range channels {
			off := (i*s.chans + c) * width
			if s.format == F32LE {
				binary.LittleEndian.PutUint32(b[off:], math.Float32bits(ch[i]))
			} else {
				binary.LittleEndian.PutUint16(b[off:], uint16(floatToS16(ch[i])))
			}
		}
	}
	if _, err := s.Write(b); err != nil {
		return 0, err
	}
	return frames, nil
}

func floatToS16(v float32) int16 {
	x := v * 32768
	if x > math.MaxInt16 {
		return math.MaxInt16
	}
	if x < math.MinInt16 {
		return math.MinInt16
	}
	return int16(x)
}

// Block until the wall clock is within fileSinkLead of the stream position.
func (s *FileAudioSink) pace(frames int64) {
	if s.start.IsZero() {
		s.start = time.Now()
	}
	s.written += frames
	due := s.start.Add(time.Duration(s.written) * time.Second / time.Duration(s.rate))
	if ahead := time.Until(due) - fileSinkLead; ahead > 0 {
		s.sleep(ahead)
	}
}
