package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lanikai/alohacar/internal/media"
	errors "golang.org/x/xerrors"
)

// Player is one output stream: a ring fed by the producer, drained by an
// endpoint's render thread through a Consumer.
//
// The endpoint is opened in the background. Samples fed before it is running
// are held back and flushed into the ring once it starts.
type Player struct {
	key      Key
	ring     *Ring
	gain     *Gain
	consumer *Consumer

	// Guards the hand-off from pending to ring, and endpoint lifetime.
	mu       sync.Mutex
	pending  []int16
	endpoint Endpoint
	started  atomic.Bool
	closed   bool
	ready    chan struct{}
	err      error

	explicitVolume atomic.Bool

	// Producer-side bookkeeping, for logging outside the render thread.
	overflowing   bool
	seenUnderruns uint64
	fed           atomic.Uint64
	dropped       atomic.Uint64
}

func newPlayer(key Key, cfg Config, gain float32) (*Player, error) {
	if key.Rate <= 0 || key.Channels <= 0 {
		return nil, errors.Errorf("%w: %v", ErrBadFormat, key)
	}
	ring, err := NewRing(cfg.RingCapacity)
	if err != nil {
		return nil, err
	}
	g := NewGain(gain, key.Rate)
	return &Player{
		key:      key,
		ring:     ring,
		gain:     g,
		consumer: NewConsumer(ring, g, key.Channels, cfg.QuantumFrames),
		ready:    make(chan struct{}),
	}, nil
}

// start opens the endpoint and begins playback. Called once, in its own
// goroutine.
func (p *Player) start(open EndpointFactory) error {
	ep, err := open(p.key, p.consumer.QuantumFrames())
	if err == nil {
		err = ep.Start(p.consumer.Render)
		if err != nil {
			ep.Close()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	defer close(p.ready)

	if err != nil {
		p.err = media.Fatal("open audio output for "+p.key.String(), err)
		p.pending = nil
		return p.err
	}
	if p.closed {
		ep.Close()
		return ErrClosed
	}
	p.endpoint = ep

	// The producer is blocked on mu, so this is still the only writer.
	if len(p.pending) > 0 {
		p.push(p.pending)
		p.pending = nil
	}
	p.started.Store(true)
	log.Debug("Player %v started", p.key)
	return nil
}

// Key returns the player's format.
func (p *Player) Key() Key {
	return p.key
}

// Feed queues interleaved samples for playback and returns how many were
// accepted. Samples beyond the ring's free space are dropped. Producer only.
func (p *Player) Feed(samples []int16) int {
	p.fed.Add(uint64(len(samples)))
	p.logUnderruns()

	if p.started.Load() {
		return p.push(samples)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started.Load() {
		return p.push(samples)
	}
	if p.closed || p.err != nil {
		p.dropped.Add(uint64(len(samples)))
		return 0
	}
	n := len(samples)
	if room := p.ring.Capacity() - len(p.pending); n > room {
		n = room
		p.dropped.Add(uint64(len(samples) - n))
	}
	p.pending = append(p.pending, samples[:n]...)
	return n
}

func (p *Player) push(samples []int16) int {
	n := p.ring.Push(samples)
	if n < len(samples) {
		p.dropped.Add(uint64(len(samples) - n))
		if !p.overflowing {
			p.overflowing = true
			log.Warn("Player %v overrun: dropped %d samples", p.key, len(samples)-n)
		}
	} else {
		p.overflowing = false
	}
	return n
}

func (p *Player) logUnderruns() {
	if n := p.consumer.Underruns(); n != p.seenUnderruns {
		log.Debug("Player %v underflowed (%d episodes, %d silent quanta)", p.key, n, p.consumer.Starved())
		p.seenUnderruns = n
	}
}

// SetVolume changes the gain, immediately or ramped over duration.
func (p *Player) SetVolume(volume float32, duration time.Duration) {
	p.gain.Set(volume, duration)
}

// Volume returns the gain currently being applied.
func (p *Player) Volume() float32 {
	return p.gain.Value()
}

// TargetVolume returns the gain the player is heading toward.
func (p *Player) TargetVolume() float32 {
	return p.gain.Target()
}

// Ready is closed once the endpoint has started or failed to start.
func (p *Player) Ready() <-chan struct{} {
	return p.ready
}

// Err returns the endpoint start failure, if any.
func (p *Player) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

type PlayerStats struct {
	Key          Key
	Buffered     int
	Fed          uint64
	Dropped      uint64
	Overruns     uint64
	Underruns    uint64
	Underflowing bool
	Volume       float32
}

func (p *Player) Stats() PlayerStats {
	return PlayerStats{
		Key:          p.key,
		Buffered:     p.ring.AvailableRead(),
		Fed:          p.fed.Load(),
		Dropped:      p.dropped.Load(),
		Overruns:     p.ring.Overruns(),
		Underruns:    p.consumer.Underruns(),
		Underflowing: p.consumer.Underflowing(),
		Volume:       p.gain.Value(),
	}
}

// Close stops the endpoint and frees the ring.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	ep := p.endpoint
	p.endpoint = nil
	p.started.Store(false)
	p.pending = nil
	p.mu.Unlock()

	var err error
	if ep != nil {
		err = ep.Close()
	}
	// The render thread is gone once the endpoint is closed. If start is
	// still opening the endpoint, wait for it to notice the close.
	<-p.ready
	if rerr := p.ring.Close(); err == nil {
		err = rerr
	}
	return err
}
