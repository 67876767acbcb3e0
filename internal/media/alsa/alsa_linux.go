//////////////////////////////////////////////////////////////////////////////
//
// Advanced Linux Sound Architecture (ALSA) playback and capture devices
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// +build linux

package alsa

// #cgo pkg-config: alsa
// #include <stdlib.h>
// #include <alsa/asoundlib.h>
import "C"
import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/lanikai/alohacar/internal/logging"
	"github.com/lanikai/alohacar/internal/media"
	errors "golang.org/x/xerrors"
)

var log = logging.DefaultLogger.WithTag("alsa")

func alsaError(op string, code C.int) error {
	return errors.Errorf("alsa: %s: %s", op, C.GoString(C.snd_strerror(code)))
}

type device struct {
	name      string
	handle    *C.snd_pcm_t
	stopped   bool
	format    int
	channels  int
	framesize int
}

func openDevice(devname string, stream C.snd_pcm_stream_t) (*device, error) {
	d := &device{name: devname}
	name := C.CString(devname)
	err := C.snd_pcm_open(&d.handle, name, stream, 0)
	C.free(unsafe.Pointer(name))
	if err < 0 {
		return nil, alsaError("open "+devname, err)
	}
	return d, nil
}

func (d *device) configure(rate, channels, format int) error {
	var hwparams *C.snd_pcm_hw_params_t

	// Allocate hardware parameters structure
	if err := C.snd_pcm_hw_params_malloc(&hwparams); err < 0 {
		return alsaError("hw_params_malloc", err)
	}
	defer C.snd_pcm_hw_params_free(hwparams)

	// Initialize hardware parameters structure
	if err := C.snd_pcm_hw_params_any(d.handle, hwparams); err < 0 {
		return alsaError("hw_params_any", err)
	}

	// Set access type
	if err := C.snd_pcm_hw_params_set_access(d.handle, hwparams, C.SND_PCM_ACCESS_RW_INTERLEAVED); err < 0 {
		return alsaError("set_access", err)
	}

	// Set sample format
	var pcmFormat C.snd_pcm_format_t
	switch format {
	case media.S8:
		pcmFormat = C.SND_PCM_FORMAT_S8
	case media.U8:
		pcmFormat = C.SND_PCM_FORMAT_U8
	case media.S16LE:
		pcmFormat = C.SND_PCM_FORMAT_S16_LE
	case media.F32LE:
		pcmFormat = C.SND_PCM_FORMAT_FLOAT_LE
	default:
		return errors.Errorf("alsa: format %d: %w", format, media.ErrNotImplemented)
	}
	if err := C.snd_pcm_hw_params_set_format(d.handle, hwparams, pcmFormat); err < 0 {
		return alsaError("set_format", err)
	}
	d.format = format
	d.channels = channels
	d.framesize = media.BytesPerSample(format) * channels

	// Set number of channels
	if err := C.snd_pcm_hw_params_set_channels(d.handle, hwparams, C.uint(channels)); err < 0 {
		return alsaError("set_channels", err)
	}

	// Set sample rate
	if err := C.snd_pcm_hw_params_set_rate(d.handle, hwparams, C.uint(rate), 0); err < 0 {
		return alsaError("set_rate", err)
	}

	// Set device parameters
	if err := C.snd_pcm_hw_params(d.handle, hwparams); err < 0 {
		return alsaError("hw_params", err)
	}

	if err := C.snd_pcm_prepare(d.handle); err < 0 {
		return alsaError("prepare", err)
	}

	log.Debug("Configured %s: %d Hz, %d channels, format %d", d.name, rate, channels, format)
	return nil
}

func (d *device) close() error {
	// Drop remaining unprocessed samples in the buffer
	if !d.stopped {
		if err := C.snd_pcm_drop(d.handle); err < 0 {
			return alsaError("drop", err)
		}
	}
	if err := C.snd_pcm_close(d.handle); err < 0 {
		return alsaError("close", err)
	}
	return nil
}

// Sink writes audio to an ALSA soundcard for playback.
type Sink struct {
	*device
	scratch []byte
}

var _ media.PlanarAudioSink = (*Sink)(nil)

// NewSink opens an ALSA playback device, e.g. "default" or "hw:0,0".
func NewSink(devname string) (*Sink, error) {
	d, err := openDevice(devname, C.SND_PCM_STREAM_PLAYBACK)
	if err != nil {
		return nil, err
	}
	return &Sink{device: d}, nil
}

func (s *Sink) Close() error {
	return s.close()
}

func (s *Sink) Configure(rate, channels, format int) error {
	return s.configure(rate, channels, format)
}

// Write interleaved samples. Underruns are recovered and reported as zero
// frames written.
func (s *Sink) Write(p []byte) (int, error) {
	if s.framesize == 0 {
		return 0, errors.New("alsa: sink not configured")
	}
	numframes := len(p) / s.framesize
	if numframes == 0 {
		return 0, nil
	}
	n := C.snd_pcm_writei(s.handle, unsafe.Pointer(&p[0]), C.snd_pcm_uframes_t(numframes))
	if n < 0 {
		if err := C.snd_pcm_recover(s.handle, C.int(n), 1); err < 0 {
			return 0, alsaError("writei", err)
		}
		return 0, nil
	}
	return int(n) * s.framesize, nil
}

// WritePlanar interleaves and converts float32 channels to the configured
// format.
func (s *Sink) WritePlanar(channels [][]float32) (int, error) {
	if len(channels) != s.channels || s.channels == 0 {
		return 0, errors.Errorf("alsa: got %d channels, configured for %d", len(channels), s.channels)
	}
	frames := len(channels[0])
	width := media.BytesPerSample(s.format)
	need := frames * s.framesize
	if cap(s.scratch) < need {
		s.scratch = make([]byte, need)
	}
	b := s.scratch[:need]
	for i := 0; i < frames; i++ {
		for c, ch := range channels {
			off := (i*s.channels + c) * width
			switch s.format {
			case media.F32LE:
				binary.LittleEndian.PutUint32(b[off:], math.Float32bits(ch[i]))
			case media.S16LE:
				binary.LittleEndian.PutUint16(b[off:], uint16(toS16(ch[i])))
			default:
				b[off] = byte(toS16(ch[i]) >> 8)
				if s.format == media.U8 {
					b[off] ^= 0x80
				}
			}
		}
	}
	n, err := s.Write(b)
	return n / s.framesize, err
}

func toS16(v float32) int16 {
	x := v * 32768
	if x > math.MaxInt16 {
		return math.MaxInt16
	}
	if x < math.MinInt16 {
		return math.MinInt16
	}
	return int16(x)
}

// Source captures audio from an ALSA device.
type Source struct {
	*device
}

var _ media.AudioSource = (*Source)(nil)

// NewSource opens an ALSA capture device.
func NewSource(devname string) (*Source, error) {
	d, err := openDevice(devname, C.SND_PCM_STREAM_CAPTURE)
	if err != nil {
		return nil, err
	}
	return &Source{d}, nil
}

func (s *Source) Close() error {
	return s.close()
}

func (s *Source) Configure(rate, channels, format int) error {
	return s.configure(rate, channels, format)
}

// Interrupt stops the capture stream. A blocked snd_pcm_readi wakes up and
// fails, as does any later one, but the handle stays valid until Close.
func (s *Source) Interrupt() error {
	if err := C.snd_pcm_drop(s.handle); err < 0 {
		return alsaError("drop", err)
	}
	s.stopped = true
	return nil
}

// Read blocks until len(p)/framesize frames have been captured. Overruns are
// recovered and reported as zero bytes read.
func (s *Source) Read(p []byte) (int, error) {
	if s.framesize == 0 {
		return 0, errors.New("alsa: source not configured")
	}
	numframes := len(p) / s.framesize
	if numframes == 0 {
		return 0, nil
	}
	n := C.snd_pcm_readi(s.handle, unsafe.Pointer(&p[0]), C.snd_pcm_uframes_t(numframes))
	if n < 0 {
		if err := C.snd_pcm_recover(s.handle, C.int(n), 1); err < 0 {
			return 0, alsaError("readi", err)
		}
		return 0, nil
	}
	return int(n) * s.framesize, nil
}
