package render

import (
	"sync"

	"github.com/lanikai/alohacar/internal/media"
)

// Null is a headless backend. It counts frames and tracks the size the
// surface would have been resized to.
type Null struct {
	mu      sync.Mutex
	surface Surface
	drawn   int
	resizes int
	last    int64
	closed  bool
	fail    error
}

func NewNull(surface Surface) *Null {
	return &Null{surface: surface, last: -1}
}

func (n *Null) Kind() Kind { return KindNull }

func (n *Null) Draw(f *media.Frame) error {
	defer f.Release()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrDeviceLost
	}
	if n.fail != nil {
		return n.fail
	}
	if f.DisplayWidth != n.surface.Width || f.DisplayHeight != n.surface.Height {
		n.surface.Width, n.surface.Height = f.DisplayWidth, f.DisplayHeight
		n.resizes++
	}
	n.drawn++
	n.last = f.Timestamp
	return nil
}

// FailWith makes subsequent draws return err, e.g. ErrDeviceLost.
func (n *Null) FailWith(err error) {
	n.mu.Lock()
	n.fail = err
	n.mu.Unlock()
}

// Drawn returns the number of frames drawn and the timestamp of the last.
func (n *Null) Drawn() (count int, last int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.drawn, n.last
}

func (n *Null) Surface() Surface {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.surface
}

func (n *Null) Resizes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resizes
}

func (n *Null) Close() error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	return nil
}
