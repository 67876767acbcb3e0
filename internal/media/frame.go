package media

import (
	"sync/atomic"
)

type PixelFormat int

const (
	// Planar YUV 4:2:0, 8 bits per sample: Y, then U, then V.
	PixelFormatI420 PixelFormat = iota
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatI420:
		return "I420"
	default:
		return "unknown"
	}
}

/*
A Frame is a decoded picture. Frames are handed from the decoder to the
presentation layer by ownership transfer: whoever holds a frame must either
pass it on or Release() it, exactly once. A frame that is replaced before it
could be drawn is released by whoever replaces it.

Example usage:

	func onOutput(f *Frame) {
		if stopped {
			f.Release()
			return
		}
		slot.Swap(f).Release() // Release the frame it replaces, if any.
	}

Hold() may be used to share a frame; each Hold() needs a matching Release().
The release callback runs when the last holder releases the frame, so that
decoder-owned memory can be recycled.
*/
type Frame struct {
	Format PixelFormat

	// Size of the decoded picture.
	CodedWidth  int
	CodedHeight int

	// Size of the visible region, starting at the top-left corner.
	DisplayWidth  int
	DisplayHeight int

	Timestamp int64

	Planes  [3][]byte
	Strides [3]int

	count   int32
	release func()
}

// NewFrame returns a frame with a hold count of one. release may be nil.
func NewFrame(format PixelFormat, width, height int, release func()) *Frame {
	return &Frame{
		Format:        format,
		CodedWidth:    width,
		CodedHeight:   height,
		DisplayWidth:  width,
		DisplayHeight: height,
		count:         1,
		release:       release,
	}
}

// NewI420Frame allocates a frame with tightly packed planes.
func NewI420Frame(width, height int) *Frame {
	f := NewFrame(PixelFormatI420, width, height, nil)
	cw, ch := (width+1)/2, (height+1)/2
	f.Strides = [3]int{width, cw, cw}
	f.Planes = [3][]byte{
		make([]byte, width*height),
		make([]byte, cw*ch),
		make([]byte, cw*ch),
	}
	return f
}

// Increments the hold count.
func (f *Frame) Hold() {
	atomic.AddInt32(&f.count, 1)
}

// Decrements the hold count. When the hold count reaches zero, the release
// callback runs. Releasing a nil frame is a no-op, and releases beyond the
// hold count are ignored.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	if atomic.AddInt32(&f.count, -1) == 0 && f.release != nil {
		f.release()
	}
}

// Released reports whether every holder has released the frame.
func (f *Frame) Released() bool {
	return atomic.LoadInt32(&f.count) <= 0
}
