package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

type counters struct {
	submitted     atomic.Uint64
	parseDrops    atomic.Uint64
	unconfigured  atomic.Uint64
	decoded       atomic.Uint64
	presented     atomic.Uint64
	dropped       atomic.Uint64
	decodeErrors  atomic.Uint64
	configErrors  atomic.Uint64
	droppedEvents atomic.Uint64
}

// Stats is a snapshot of a session's counters.
type Stats struct {
	State State

	// Access units accepted by Submit.
	Submitted uint64
	// Access units with unrecognised framing.
	ParseDrops uint64
	// Access units discarded while waiting for a usable SPS.
	Unconfigured uint64

	Decoded      uint64
	Presented    uint64
	Dropped      uint64 // decoded but never drawn
	DecodeErrors uint64
	ConfigErrors uint64

	DroppedEvents uint64

	// Decoded frames per second since the first frame.
	DecoderFPS float64
	// Frame rate signalled by the active SPS, zero if absent.
	SPSFrameRate float64

	Codec  string
	Width  int
	Height int
}

// Output rate since the first decoded frame.
type fpsMeter struct {
	mu     sync.Mutex
	start  time.Time
	frames int
}

func (m *fpsMeter) frame(now time.Time) {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = now
	} else {
		m.frames++
	}
	m.mu.Unlock()
}

func (m *fpsMeter) rate(now time.Time) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := now.Sub(m.start).Seconds()
	if m.start.IsZero() || elapsed <= 0 {
		return 0
	}
	return float64(m.frames) / elapsed
}

func (s *Session) Stats() Stats {
	st := Stats{
		State:         s.State(),
		Submitted:     s.stats.submitted.Load(),
		ParseDrops:    s.stats.parseDrops.Load(),
		Unconfigured:  s.stats.unconfigured.Load(),
		Decoded:       s.stats.decoded.Load(),
		Presented:     s.stats.presented.Load(),
		Dropped:       s.stats.dropped.Load(),
		DecodeErrors:  s.stats.decodeErrors.Load(),
		ConfigErrors:  s.stats.configErrors.Load(),
		DroppedEvents: s.stats.droppedEvents.Load(),
		DecoderFPS:    s.fps.rate(time.Now()),
	}
	if sps := s.active.Load(); sps != nil {
		st.SPSFrameRate = sps.FramesPerSecond
		st.Codec = sps.MIME()
		st.Width, st.Height = sps.Width(), sps.Height()
	}
	return st
}

// Log the decoder frame rate periodically while configured.
func (s *Session) reportLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			if s.State() == StateConfigured {
				st := s.Stats()
				log.Debug("FPS: %.1f (stream %.2f), presented %d, dropped %d", st.DecoderFPS, st.SPSFrameRate, st.Presented, st.Dropped)
			}
		}
	}
}
