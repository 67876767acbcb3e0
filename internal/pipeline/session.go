//////////////////////////////////////////////////////////////////////////////
//
// Decode and present pipeline
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
	"github.com/lanikai/alohacar/internal/logging"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/lanikai/alohacar/internal/media/h264"
	"github.com/lanikai/alohacar/internal/render"
	"github.com/pkg/errors"
)

var log = logging.DefaultLogger.WithTag("pipeline")

var ErrStopped = errors.New("pipeline: session stopped")

type State int32

const (
	StateUnconfigured State = iota
	StateConfigured
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

type Config struct {
	HardwareAcceleration media.HardwarePreference

	// Capacity of the Events channel.
	EventBuffer int

	// Distinct SPS payloads remembered after parsing.
	SPSCacheSize int

	// If nonzero, log the decoder frame rate at this interval.
	ReportInterval time.Duration
}

const DefaultSPSCacheSize = 8

/*
A Session feeds access units to a video decoder and presents the decoded
frames, at most one per display refresh.

Three goroutines meet here:

	ingest:  Submit, in arrival order
	decode:  the decoder's output and error callbacks
	display: Tick, once per refresh

Decoded frames are handed to the display through a single pending slot. A
newer frame replaces an undrawn one, which is released without being drawn.
*/
type Session struct {
	id      uuid.UUID
	cfg     Config
	backend render.Backend
	decoder media.VideoDecoder

	state atomic.Int32

	// Ingest only.
	mu      sync.Mutex
	spsByID *lru.Cache
	nextTS  int64
	scratch []byte

	active atomic.Pointer[h264.SPS]

	pending atomic.Pointer[media.Frame]

	stats counters
	fps   fpsMeter

	evMu         sync.Mutex
	events       chan Event
	eventsClosed bool

	quit     chan struct{}
	stopOnce sync.Once
	failOnce sync.Once
	errMu    sync.Mutex
	err      error
}

// New creates a session presenting to backend, with a decoder from newDecoder.
// The backend must already own its surface.
func New(cfg Config, backend render.Backend, newDecoder media.DecoderFactory) (*Session, error) {
	if backend == nil {
		return nil, media.Fatal("create session", errors.New("no render backend"))
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	if cfg.SPSCacheSize <= 0 {
		cfg.SPSCacheSize = DefaultSPSCacheSize
	}

	s := &Session{
		id:      uuid.New(),
		cfg:     cfg,
		backend: backend,
		spsByID: lru.New(cfg.SPSCacheSize),
		events:  make(chan Event, cfg.EventBuffer),
		quit:    make(chan struct{}),
	}

	dec, err := newDecoder(media.DecoderCallbacks{
		Output: s.onOutput,
		Error:  s.onError,
	})
	if err != nil {
		return nil, media.Fatal("create decoder", err)
	}
	s.decoder = dec

	if cfg.ReportInterval > 0 {
		go s.reportLoop(cfg.ReportInterval)
	}
	log.Info("Session %v: %v backend", s.id, backend.Kind())
	return s, nil
}

func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) State() State { return State(s.state.Load()) }

// Events returns the session's event stream. It is closed when the session
// stops. If the owner falls behind, the oldest events are discarded.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session stops.
func (s *Session) Done() <-chan struct{} { return s.quit }

// Err returns the fatal failure that stopped the session, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Submit hands one access unit to the decoder. The session takes ownership of
// au, and may rewrite its framing in place. Submit never waits for decoding.
// Must be called from a single goroutine.
func (s *Session) Submit(au []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StateStopped {
		return
	}
	s.stats.submitted.Add(1)

	stream, _ := h264.NewStream(au, h264.Options{})
	if stream.Framing() == h264.FramingUnknown {
		s.stats.parseDrops.Add(1)
		log.Debug("Dropped %d byte access unit: %v", len(au), h264.ErrUnknownFraming)
		return
	}

	if nalu, ok := stream.Find(h264.TypeSPS); ok {
		s.handleSPS(nalu)
	}
	if s.State() != StateConfigured {
		s.stats.unconfigured.Add(1)
		log.Trace(2, "Dropped access unit while unconfigured")
		return
	}

	key := stream.IsKeyFrame()
	data, err := s.toAnnexB(stream)
	if err != nil {
		s.stats.parseDrops.Add(1)
		log.Debug("Dropped access unit: %v", err)
		return
	}

	chunk := media.EncodedChunk{Type: media.ChunkDelta, Timestamp: s.nextTS, Data: data}
	if key {
		chunk.Type = media.ChunkKey
	}
	s.nextTS++
	if err := s.decoder.Decode(chunk); err != nil {
		s.stats.decodeErrors.Add(1)
		log.Warn("Decode of %v chunk %d failed: %v", chunk.Type, chunk.Timestamp, err)
		s.emit(Event{Kind: EventDecodeError, Timestamp: chunk.Timestamp, Err: err})
	}
}

// Normalise to Annex B, in place when the length fields are start code sized.
func (s *Session) toAnnexB(stream *h264.Stream) ([]byte, error) {
	if stream.Framing() == h264.FramingAnnexB {
		return stream.Bytes(), nil
	}
	if err := stream.ConvertToAnnexB(); err == nil {
		return stream.Bytes(), nil
	}
	var err error
	s.scratch, err = stream.AppendAnnexB(s.scratch[:0], 4)
	if err != nil {
		return nil, err
	}
	if len(s.scratch) == 0 {
		return nil, errors.Wrap(h264.ErrUnknownFraming, "no NAL units")
	}
	return s.scratch, nil
}

func (s *Session) handleSPS(nalu h264.NALU) {
	var sps *h264.SPS
	if v, ok := s.spsByID.Get(string(nalu)); ok {
		sps = v.(*h264.SPS)
	} else {
		var err error
		sps, err = h264.ParseSPS(nalu)
		if err != nil {
			log.Warn("Ignoring SPS: %v", err)
			return
		}
		s.spsByID.Add(string(nalu), sps)
	}

	active := s.active.Load()
	if s.State() == StateConfigured && active != nil && active.SameFormat(sps) {
		return
	}

	cfg := media.DecoderConfig{
		Codec:                sps.MIME(),
		CodedWidth:           sps.PicWidth,
		CodedHeight:          sps.PicHeight,
		HardwareAcceleration: s.cfg.HardwareAcceleration,
	}
	if err := s.decoder.Configure(cfg); err != nil {
		s.stats.configErrors.Add(1)
		s.active.Store(nil)
		s.state.CompareAndSwap(int32(StateConfigured), int32(StateUnconfigured))
		log.Error("Decoder configuration for %v failed: %v", sps, err)
		return
	}
	s.active.Store(sps)
	if s.state.CompareAndSwap(int32(StateUnconfigured), int32(StateConfigured)) {
		log.Info("Decoder configured: %v", sps)
	} else {
		log.Info("Decoder reconfigured: %v", sps)
	}
}

// Decode goroutine. Frames arrive in display order, which may differ from
// the decode order of their timestamps when the stream has B-frames. Output
// is serial, so each frame is newer than anything already presented.
func (s *Session) onOutput(f *media.Frame) {
	s.stats.decoded.Add(1)
	s.fps.frame(time.Now())

	if s.State() == StateStopped {
		s.stats.dropped.Add(1)
		f.Release()
		return
	}
	if old := s.pending.Swap(f); old != nil {
		s.stats.dropped.Add(1)
		old.Release()
	}
	// Stop may have drained the slot between the check and the swap.
	if s.State() == StateStopped {
		if late := s.pending.Swap(nil); late != nil {
			s.stats.dropped.Add(1)
			late.Release()
		}
	}
}

// Decode goroutine.
func (s *Session) onError(err error) {
	if media.IsFatal(err) {
		// Stopping closes the decoder, which waits for this goroutine.
		go s.Fail(err)
		return
	}
	s.stats.decodeErrors.Add(1)
	s.emit(Event{Kind: EventDecodeError, Timestamp: -1, Err: err})
}

// Tick presents the newest decoded frame, if one arrived since the last tick.
// Called once per display refresh from the display goroutine. Only a lost
// render device is returned as an error; the session has then failed.
func (s *Session) Tick() error {
	if s.State() == StateStopped {
		return nil
	}
	f := s.pending.Swap(nil)
	if f == nil {
		return nil
	}

	ts, w, h := f.Timestamp, f.DisplayWidth, f.DisplayHeight
	if err := s.backend.Draw(f); err != nil {
		if errors.Is(err, render.ErrDeviceLost) || media.IsFatal(err) {
			err = media.Fatal("draw", err)
			s.Fail(err)
			return err
		}
		s.stats.dropped.Add(1)
		log.Warn("Draw of frame %d failed: %v", ts, err)
		return nil
	}
	s.stats.presented.Add(1)
	s.emit(Event{Kind: EventFramePresented, Timestamp: ts, Width: w, Height: h})
	return nil
}

// Fail reports an unrecoverable error as a single fatal event and stops the
// session.
func (s *Session) Fail(err error) {
	s.failOnce.Do(func() {
		if s.State() == StateStopped {
			return
		}
		s.errMu.Lock()
		s.err = err
		s.errMu.Unlock()
		log.Error("Session %v failed: %v", s.id, err)
		s.emit(Event{Kind: EventFatal, Timestamp: -1, Err: err})
	})
	s.Stop()
}

// Stop shuts down the decoder and discards any undrawn frame. Frames that the
// decoder delivers afterwards are released on arrival. Stop is idempotent. It
// does not close the backend, which belongs to the display goroutine.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(StateStopped))
		close(s.quit)

		if err := s.decoder.Close(); err != nil {
			log.Warn("Closing decoder: %v", err)
		}
		if f := s.pending.Swap(nil); f != nil {
			s.stats.dropped.Add(1)
			f.Release()
		}
		s.closeEvents()
		log.Info("Session %v stopped", s.id)
	})
}
