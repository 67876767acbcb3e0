//go:build !darwin && !linux
// +build !darwin,!linux

package openh264

import (
	"github.com/lanikai/alohacar/internal/media"
	"github.com/pkg/errors"
)

func Load(path string) error {
	return errors.Wrap(media.ErrNotSupported, "openh264 on this platform")
}

type Decoder struct {
	pool framePool
}

func NewDecoder(libPath string) (*Decoder, error) {
	return nil, Load(libPath)
}

func (d *Decoder) Configure(cfg media.DecoderConfig) error {
	return media.ErrNotSupported
}

func (d *Decoder) DecodeFrame(chunk media.EncodedChunk) ([]*media.Frame, error) {
	return nil, media.ErrNotSupported
}

func (d *Decoder) Close() error {
	return nil
}
