package audio

import (
	"math"
	"sync/atomic"
	"time"
)

// atomicFloat32 is a float32 with atomic load and store.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (f *atomicFloat32) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}

func (f *atomicFloat32) Store(v float32) {
	f.bits.Store(math.Float32bits(v))
}

type gainRamp struct {
	target float32
	frames int64
}

// Gain is a volume control shared between a control goroutine, which calls
// Set, and the render thread, which calls advance. Ramps are handed over
// through an atomic pointer, so the render side never locks.
type Gain struct {
	rate int

	pending atomic.Pointer[gainRamp]
	level   atomicFloat32

	// Owned by the render thread.
	current   float32
	target    float32
	step      float32
	remaining int64
}

func NewGain(initial float32, sampleRate int) *Gain {
	g := &Gain{rate: sampleRate, current: initial, target: initial}
	g.level.Store(initial)
	return g
}

// Set moves the gain to target, immediately if ramp is zero, otherwise
// linearly over the ramp duration. A later Set replaces a ramp in progress,
// starting from wherever the gain has got to.
func (g *Gain) Set(target float32, ramp time.Duration) {
	if target < 0 {
		target = 0
	}
	frames := int64(ramp) * int64(g.rate) / int64(time.Second)
	g.pending.Store(&gainRamp{target, frames})
}

// Value returns the gain most recently applied by the render thread.
func (g *Gain) Value() float32 {
	return g.level.Load()
}

// Target returns the gain the render thread is heading toward, including a
// Set it has not picked up yet.
func (g *Gain) Target() float32 {
	if p := g.pending.Load(); p != nil {
		return p.target
	}
	return g.target
}

// advance moves the gain forward by frames samples and returns the gain at
// the start and end of that span. Render thread only.
func (g *Gain) advance(frames int) (from, to float32) {
	if r := g.pending.Swap(nil); r != nil {
		g.target = r.target
		if r.frames <= 0 {
			g.current = r.target
			g.remaining = 0
		} else {
			g.remaining = r.frames
			g.step = (r.target - g.current) / float32(r.frames)
		}
	}

	from = g.current
	if g.remaining > 0 {
		n := int64(frames)
		if n >= g.remaining {
			g.current = g.target
			g.remaining = 0
		} else {
			g.current += g.step * float32(n)
			g.remaining -= n
		}
	}
	g.level.Store(g.current)
	return from, g.current
}
