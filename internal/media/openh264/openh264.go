// Package openh264 binds Cisco's openh264 decoder at run time, without cgo.
package openh264

import (
	"sync"

	"github.com/lanikai/alohacar/internal/logging"
	"github.com/lanikai/alohacar/internal/media"
)

var log = logging.DefaultLogger.WithTag("openh264")

// NewDecoderFactory returns a factory for pipeline decoders: an openh264
// Decoder running on its own goroutine behind a queue of depth chunks.
func NewDecoderFactory(libPath string, depth int) media.DecoderFactory {
	return func(cb media.DecoderCallbacks) (media.VideoDecoder, error) {
		dec, err := NewDecoder(libPath)
		if err != nil {
			return nil, err
		}
		return media.NewAsyncDecoder(dec, cb, depth), nil
	}
}

// Available reports whether the library can be loaded.
func Available(libPath string) bool {
	return Load(libPath) == nil
}

// framePool recycles frames of one size. Frames of another size are
// dropped from the pool on the next get.
type framePool struct {
	mu     sync.Mutex
	width  int
	height int
	free   []*media.Frame
}

func (p *framePool) get(width, height int) *media.Frame {
	p.mu.Lock()
	if width != p.width || height != p.height {
		p.width, p.height = width, height
		p.free = nil
	}
	var planes *media.Frame
	if n := len(p.free); n > 0 {
		planes = p.free[n-1]
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if planes == nil {
		planes = media.NewI420Frame(width, height)
	}
	var f *media.Frame
	f = media.NewFrame(media.PixelFormatI420, width, height, func() { p.put(f) })
	f.Planes, f.Strides = planes.Planes, planes.Strides
	return f
}

func (p *framePool) put(f *media.Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f.CodedWidth == p.width && f.CodedHeight == p.height && len(p.free) < 4 {
		p.free = append(p.free, f)
	}
}
