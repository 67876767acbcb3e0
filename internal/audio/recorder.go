package audio

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/lanikai/alohacar/internal/media"
	errors "golang.org/x/xerrors"
)

// Microphone defaults: 16 kHz mono, the producer's voice format.
const (
	DefaultCaptureRate     = 16000
	DefaultCaptureChannels = 1

	// Capture period and forwarding interval.
	captureFrames   = 320 // 20 ms at 16 kHz
	forwardInterval = 20 * time.Millisecond
)

type RecorderConfig struct {
	Rate     int
	Channels int

	// Samples buffered between the capture thread and the forwarder.
	RingCapacity int
}

// Recorder captures microphone audio into a Ring on one goroutine and
// forwards it to the producer from another, mirroring the playback path.
type Recorder struct {
	cfg  RecorderConfig
	open func() (media.AudioSource, error)
	send func(samples []int16) error

	mu      sync.Mutex
	running bool
	src     media.AudioSource
	ring    *Ring
	quit    chan struct{}
	wg      sync.WaitGroup
}

// NewRecorder returns a stopped recorder. open is called on every Start;
// send receives captured samples in order.
func NewRecorder(cfg RecorderConfig, open func() (media.AudioSource, error), send func([]int16) error) *Recorder {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultCaptureRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultCaptureChannels
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = cfg.Rate * cfg.Channels / 2
	}
	return &Recorder{cfg: cfg, open: open, send: send}
}

// Recording reports whether the microphone is open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start opens the microphone. Starting a running recorder is a no-op.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	src, err := r.open()
	if err != nil {
		return errors.Errorf("audio: open microphone: %w", err)
	}
	if err := src.Configure(r.cfg.Rate, r.cfg.Channels, media.S16LE); err != nil {
		src.Close()
		return errors.Errorf("audio: configure microphone: %w", err)
	}
	ring, err := NewRing(r.cfg.RingCapacity)
	if err != nil {
		src.Close()
		return err
	}

	r.src, r.ring = src, ring
	r.quit = make(chan struct{})
	r.running = true
	r.wg.Add(2)
	go r.capture(src, ring, r.quit)
	go r.forward(ring, r.quit)
	log.Info("Recording started (%d Hz, %d channels)", r.cfg.Rate, r.cfg.Channels)
	return nil
}

// Stop closes the microphone and flushes what was captured. Stopping a
// stopped recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	r.running = false
	close(r.quit)
	// The device must outlive the read blocked on it.
	if err := r.src.Interrupt(); err != nil {
		log.Warn("Interrupting microphone: %v", err)
	}
	r.wg.Wait()
	err := r.src.Close()
	r.ring.Close()
	r.src, r.ring = nil, nil
	log.Info("Recording stopped")
	return err
}

// Producer side: device reads into the ring.
func (r *Recorder) capture(src media.AudioSource, ring *Ring, quit chan struct{}) {
	defer r.wg.Done()
	raw := make([]byte, captureFrames*r.cfg.Channels*2)
	samples := make([]int16, captureFrames*r.cfg.Channels)
	for {
		select {
		case <-quit:
			return
		default:
		}
		n, err := src.Read(raw)
		if err != nil {
			select {
			case <-quit:
			default:
				log.Warn("Microphone read failed: %v", err)
			}
			return
		}
		count := n / 2
		for i := 0; i < count; i++ {
			samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		if pushed := ring.Push(samples[:count]); pushed < count {
			log.Debug("Microphone ring overrun, dropped %d samples", count-pushed)
		}
	}
}

// Consumer side: drain the ring to the producer at a steady interval.
func (r *Recorder) forward(ring *Ring, quit chan struct{}) {
	defer r.wg.Done()
	ticker := time.NewTicker(forwardInterval)
	defer ticker.Stop()
	buf := make([]int16, r.cfg.RingCapacity)
	flush := func() {
		n := ring.Pop(buf)
		if n == 0 {
			return
		}
		out := append([]int16(nil), buf[:n]...)
		if err := r.send(out); err != nil {
			log.Debug("Dropped %d microphone samples: %v", n, err)
		}
	}
	for {
		select {
		case <-quit:
			flush()
			return
		case <-ticker.C:
			flush()
		}
	}
}
