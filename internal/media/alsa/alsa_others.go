//////////////////////////////////////////////////////////////////////////////
//
// Stubs for operating systems on which ALSA is not supported.
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// +build !linux

package alsa

import (
	"github.com/lanikai/alohacar/internal/media"
)

type Sink struct {
}

func NewSink(devname string) (*Sink, error) {
	return nil, media.ErrNotSupported
}

func (s *Sink) Close() error {
	return media.ErrNotSupported
}

func (s *Sink) Configure(rate, channels, format int) error {
	return media.ErrNotSupported
}

func (s *Sink) Write(p []byte) (int, error) {
	return 0, media.ErrNotSupported
}

func (s *Sink) WritePlanar(channels [][]float32) (int, error) {
	return 0, media.ErrNotSupported
}

type Source struct {
}

func NewSource(devname string) (*Source, error) {
	return nil, media.ErrNotSupported
}

func (s *Source) Close() error {
	return media.ErrNotSupported
}

func (s *Source) Configure(rate, channels, format int) error {
	return media.ErrNotSupported
}

func (s *Source) Read(p []byte) (int, error) {
	return 0, media.ErrNotSupported
}

func (s *Source) Interrupt() error {
	return media.ErrNotSupported
}
