package pipeline

import (
	"context"
	"runtime"
	"time"

	"github.com/lanikai/alohacar/internal/media"
	"github.com/lanikai/alohacar/internal/render"
)

// Refresh rate assumed when the display does not report one.
const DefaultRefreshRate = 60

// RunDisplay ticks the session once per display refresh until ctx is done or
// the session stops, then closes the session's backend. Window events from
// backends with an event queue are passed to onWindow, which may be nil; a
// closed window stops the session. Must run on the goroutine that opened the
// backend.
func RunDisplay(ctx context.Context, s *Session, refresh float64, onWindow func(render.WindowEvent)) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer func() {
		if err := s.backend.Close(); err != nil {
			log.Warn("Closing %v backend: %v", s.backend.Kind(), err)
		}
	}()

	if refresh <= 0 {
		refresh = DefaultRefreshRate
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / refresh))
	defer ticker.Stop()

	pump, _ := s.backend.(render.EventPump)
	handle := func(ev render.WindowEvent) {
		log.Debug("Window %v", ev)
		if ev == render.WindowClosed {
			s.Stop()
		}
		if onWindow != nil {
			onWindow(ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return nil
		case <-s.Done():
			return s.Err()
		case <-ticker.C:
		}

		if pump != nil {
			if err := pump.PumpEvents(handle); err != nil {
				err = media.Fatal("window events", err)
				s.Fail(err)
				return err
			}
		}
		if err := s.Tick(); err != nil {
			return err
		}
	}
}
