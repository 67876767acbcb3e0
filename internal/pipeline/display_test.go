package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lanikai/alohacar/internal/media"
	"github.com/lanikai/alohacar/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pumpingNull is a headless backend with a scripted window event queue.
type pumpingNull struct {
	*render.Null

	mu     sync.Mutex
	queued []render.WindowEvent
}

func (p *pumpingNull) push(ev render.WindowEvent) {
	p.mu.Lock()
	p.queued = append(p.queued, ev)
	p.mu.Unlock()
}

func (p *pumpingNull) PumpEvents(fn func(render.WindowEvent)) error {
	p.mu.Lock()
	queued := p.queued
	p.queued = nil
	p.mu.Unlock()
	for _, ev := range queued {
		fn(ev)
	}
	return nil
}

func TestRunDisplayPresentsUntilCancelled(t *testing.T) {
	s, dec, backend := newTestSession(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunDisplay(ctx, s, 500, nil) }()

	dec.cb.Output(frame(0))
	deadline := time.Now().Add(time.Second)
	for {
		if n, _ := backend.Drawn(); n == 1 {
			break
		}
		require.True(t, time.Now().Before(deadline), "frame never presented")
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("display loop did not exit")
	}
	assert.Equal(t, StateStopped, s.State())

	// The backend was closed by the display loop.
	g := media.NewI420Frame(2, 2)
	assert.Equal(t, render.ErrDeviceLost, backend.Draw(g))
}

func TestRunDisplayWindowEvents(t *testing.T) {
	dec := &fakeDecoder{}
	backend := &pumpingNull{Null: render.NewNull(render.Surface{Width: 800, Height: 480})}
	s, err := New(Config{}, backend, dec.factory)
	require.NoError(t, err)

	var mu sync.Mutex
	var seen []render.WindowEvent
	done := make(chan error, 1)
	go func() {
		done <- RunDisplay(context.Background(), s, 500, func(ev render.WindowEvent) {
			mu.Lock()
			seen = append(seen, ev)
			mu.Unlock()
		})
	}()

	backend.push(render.WindowResized)
	backend.push(render.WindowClosed)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("closing the window did not stop the display loop")
	}
	mu.Lock()
	assert.Equal(t, []render.WindowEvent{render.WindowResized, render.WindowClosed}, seen)
	mu.Unlock()
	assert.Equal(t, StateStopped, s.State())
}
