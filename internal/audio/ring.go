package audio

import (
	"sync/atomic"

	errors "golang.org/x/xerrors"
)

// Ring is a single-producer single-consumer queue of 16-bit PCM samples. The
// producer owns the write cursor and the consumer owns the read cursor; each
// side only ever loads the other's cursor. Neither Push nor Pop blocks,
// allocates or takes a lock, so Pop may be called from a real-time audio
// thread.
//
// One slot is kept empty to tell a full ring from an empty one, so the
// backing store has capacity+1 slots.
type Ring struct {
	buf   []int16
	slots uint32

	write atomic.Uint32
	_     [60]byte // keep the cursors on separate cache lines
	read  atomic.Uint32
	_     [60]byte

	overruns atomic.Uint64
	free     func() error
}

// NewRing allocates a ring holding up to capacity samples.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity >= 1<<31 {
		return nil, errors.Errorf("%w: %d", ErrBadCapacity, capacity)
	}
	buf, free, err := allocSamples(capacity + 1)
	if err != nil {
		return nil, errors.Errorf("audio: allocate ring: %w", err)
	}
	return &Ring{buf: buf, slots: uint32(capacity + 1), free: free}, nil
}

// Capacity returns the maximum number of samples the ring can hold.
func (r *Ring) Capacity() int {
	return int(r.slots - 1)
}

func (r *Ring) used(w, rd uint32) uint32 {
	return (w + r.slots - rd) % r.slots
}

// AvailableRead returns the number of samples ready to be popped.
func (r *Ring) AvailableRead() int {
	return int(r.used(r.write.Load(), r.read.Load()))
}

// AvailableWrite returns the number of samples that can be pushed.
func (r *Ring) AvailableWrite() int {
	return r.Capacity() - r.AvailableRead()
}

// Push copies as many samples from src as fit and returns that count. A
// short count means the ring overran and the tail of src was discarded.
// Producer only.
func (r *Ring) Push(src []int16) int {
	w, rd := r.write.Load(), r.read.Load()
	n := uint32(len(src))
	if free := r.slots - 1 - r.used(w, rd); n > free {
		n = free
		r.overruns.Add(1)
	}
	if n == 0 {
		return 0
	}

	// At most two contiguous ranges: up to the end of the store, then from
	// the start.
	first := r.slots - w
	if first > n {
		first = n
	}
	copy(r.buf[w:w+first], src[:first])
	copy(r.buf[:n-first], src[first:n])

	r.write.Store((w + n) % r.slots)
	return int(n)
}

// Pop copies up to len(dst) samples into dst and returns that count.
// Consumer only.
func (r *Ring) Pop(dst []int16) int {
	w, rd := r.write.Load(), r.read.Load()
	n := r.used(w, rd)
	if uint32(len(dst)) < n {
		n = uint32(len(dst))
	}
	if n == 0 {
		return 0
	}

	first := r.slots - rd
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rd:rd+first])
	copy(dst[first:n], r.buf[:n-first])

	r.read.Store((rd + n) % r.slots)
	return int(n)
}

// Overruns returns the number of pushes that were truncated.
func (r *Ring) Overruns() uint64 {
	return r.overruns.Load()
}

// Close releases the backing store. Both sides must have stopped.
func (r *Ring) Close() error {
	if r.free == nil {
		return nil
	}
	free := r.free
	r.free = nil
	r.buf = nil
	return free()
}
