package audio

import (
	"runtime"
	"sync"

	"github.com/lanikai/alohacar/internal/media"
	errors "golang.org/x/xerrors"
)

// RenderFunc fills one quantum of output, one slice per channel.
type RenderFunc func(out [][]float32) bool

// Endpoint is an output device stream that pulls audio by calling a
// RenderFunc from its own real-time thread.
type Endpoint interface {
	Start(render RenderFunc) error
	Close() error
}

// EndpointFactory opens an output stream for the given player format.
type EndpointFactory func(key Key, quantumFrames int) (Endpoint, error)

// Consecutive write failures after which a sink is considered lost.
const maxSinkErrors = 50

// SinkEndpoint drives a blocking PlanarAudioSink: a goroutine locked to its
// OS thread renders a quantum and writes it, paced by the device.
type SinkEndpoint struct {
	sink     media.PlanarAudioSink
	channels int
	quantum  int
	onLost   func(error)

	quit    chan struct{}
	done    chan struct{}
	started bool
	once    sync.Once
}

// NewSinkEndpoint configures sink for the key's format, preferring float32
// samples. onLost is called, from the render thread, if the sink keeps
// failing.
func NewSinkEndpoint(sink media.PlanarAudioSink, key Key, quantumFrames int, onLost func(error)) (*SinkEndpoint, error) {
	if err := sink.Configure(key.Rate, key.Channels, media.F32LE); err != nil {
		log.Debug("%v: float32 output unavailable (%v), using s16le", key, err)
		if err := sink.Configure(key.Rate, key.Channels, media.S16LE); err != nil {
			return nil, errors.Errorf("audio: configure sink for %v: %w", key, err)
		}
	}
	return &SinkEndpoint{
		sink:     sink,
		channels: key.Channels,
		quantum:  quantumFrames,
		onLost:   onLost,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (e *SinkEndpoint) Start(render RenderFunc) error {
	out := make([][]float32, e.channels)
	for i := range out {
		out[i] = make([]float32, e.quantum)
	}
	e.started = true
	go func() {
		runtime.LockOSThread()
		defer close(e.done)

		failures := 0
		for {
			select {
			case <-e.quit:
				return
			default:
			}
			render(out)
			if _, err := e.sink.WritePlanar(out); err != nil {
				failures++
				if failures == maxSinkErrors {
					if e.onLost != nil {
						e.onLost(errors.Errorf("audio: output lost: %w", err))
					}
					return
				}
				continue
			}
			failures = 0
		}
	}()
	return nil
}

func (e *SinkEndpoint) Close() error {
	var err error
	e.once.Do(func() {
		close(e.quit)
		// A blocked write returns within one quantum.
		if e.started {
			<-e.done
		}
		err = e.sink.Close()
	})
	return err
}
