package audio

import (
	"sync/atomic"
)

// Frames per render quantum, per channel.
const DefaultQuantumFrames = 128

// Consumer is the real-time side of a Ring. Each Render call produces one
// quantum: either a full quantum of de-interleaved samples or silence.
type Consumer struct {
	ring     *Ring
	gain     *Gain
	channels int
	quantum  int
	scratch  []int16

	underflowing atomic.Bool
	underruns    atomic.Uint64 // underflow episodes
	starved      atomic.Uint64 // silent quanta
	rendered     atomic.Uint64 // full quanta
}

func NewConsumer(ring *Ring, gain *Gain, channels, quantumFrames int) *Consumer {
	if quantumFrames <= 0 {
		quantumFrames = DefaultQuantumFrames
	}
	return &Consumer{
		ring:     ring,
		gain:     gain,
		channels: channels,
		quantum:  quantumFrames,
		scratch:  make([]int16, quantumFrames*channels),
	}
}

// QuantumFrames returns the number of frames per Render call.
func (c *Consumer) QuantumFrames() int {
	return c.quantum
}

// Render fills out[ch][:QuantumFrames()] for every output channel, scaling
// samples from [-32768, 32767] to [-1, 1) and applying the gain. Output
// channels beyond the stream's channel count repeat the stream's channels.
// Returns false, with silence written, when less than a full quantum was
// buffered. Safe to call from a real-time thread.
func (c *Consumer) Render(out [][]float32) bool {
	need := c.quantum * c.channels
	if c.ring.AvailableRead() < need {
		for _, ch := range out {
			for i := range ch[:c.quantum] {
				ch[i] = 0
			}
		}
		if !c.underflowing.Load() {
			c.underflowing.Store(true)
			c.underruns.Add(1)
		}
		c.starved.Add(1)
		// Keep ramps moving in real time.
		c.gain.advance(c.quantum)
		return false
	}
	c.underflowing.Store(false)

	c.ring.Pop(c.scratch[:need])
	from, to := c.gain.advance(c.quantum)

	const scale = 1.0 / 32768
	step := (to - from) / float32(c.quantum)
	for o, ch := range out {
		src := o % c.channels
		g := from
		for i := 0; i < c.quantum; i++ {
			g += step
			ch[i] = float32(c.scratch[i*c.channels+src]) * scale * g
		}
	}
	c.rendered.Add(1)
	return true
}

// Underflowing reports whether the last quantum was silence due to a short
// ring.
func (c *Consumer) Underflowing() bool {
	return c.underflowing.Load()
}

// Underruns returns the number of underflow episodes so far. An episode
// starts with the first silent quantum and ends with the next full one.
func (c *Consumer) Underruns() uint64 {
	return c.underruns.Load()
}

// Starved returns the number of silent quanta.
func (c *Consumer) Starved() uint64 {
	return c.starved.Load()
}

// Rendered returns the number of full quanta.
func (c *Consumer) Rendered() uint64 {
	return c.rendered.Load()
}
