package pipeline

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/lanikai/alohacar/internal/bitstream"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/lanikai/alohacar/internal/render"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Baseline profile SPS for a picture of the given size in macroblocks.
func baselineSPS(widthMbs, heightMbs uint32) []byte {
	w := bitstream.NewWriter()
	w.WriteBits(0x67, 8)
	w.WriteBits(66, 8)
	w.WriteBits(0xC0, 8)
	w.WriteBits(30, 8)
	w.WriteUE(0) // seq_parameter_set_id
	w.WriteUE(0) // log2_max_frame_num_minus4
	w.WriteUE(0) // pic_order_cnt_type
	w.WriteUE(2)
	w.WriteUE(1) // max_num_ref_frames
	w.WriteFlag(false)
	w.WriteUE(widthMbs - 1)
	w.WriteUE(heightMbs - 1)
	w.WriteFlag(true) // frame_mbs_only_flag
	w.WriteFlag(true)
	w.WriteFlag(false) // frame_cropping_flag
	w.WriteFlag(false) // vui_parameters_present_flag
	w.WriteTrailingBits()
	return bitstream.Reemulate(w.Bytes())
}

var (
	sps720  = baselineSPS(80, 45)
	sps1080 = baselineSPS(120, 68)
	pps     = []byte{0x68, 0xCE, 0x3C, 0x80}
	idr     = []byte{0x65, 0x88, 0x84, 0x00, 0x33}
	slice   = []byte{0x41, 0x9A, 0x02, 0x04}
)

func annexB(units ...[]byte) []byte {
	var b []byte
	for _, u := range units {
		b = append(b, 0, 0, 0, 1)
		b = append(b, u...)
	}
	return b
}

func avcc(box int, units ...[]byte) []byte {
	var b []byte
	for _, u := range units {
		n := len(u)
		for i := box - 1; i >= 0; i-- {
			b = append(b, byte(n>>(8*uint(i))))
		}
		b = append(b, u...)
	}
	return b
}

type fakeDecoder struct {
	mu            sync.Mutex
	cb            media.DecoderCallbacks
	configs       []media.DecoderConfig
	chunks        []media.EncodedChunk
	failConfigure int
	failDecode    bool
	closed        bool
}

func (d *fakeDecoder) factory(cb media.DecoderCallbacks) (media.VideoDecoder, error) {
	d.cb = cb
	return d, nil
}

func (d *fakeDecoder) Configure(cfg media.DecoderConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failConfigure > 0 {
		d.failConfigure--
		return errors.Wrap(media.ErrDecoderConfig, "unsupported profile")
	}
	d.configs = append(d.configs, cfg)
	return nil
}

func (d *fakeDecoder) Decode(chunk media.EncodedChunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failDecode {
		return errors.Wrap(media.ErrDecodeSubmission, "queue full")
	}
	chunk.Data = append([]byte(nil), chunk.Data...)
	d.chunks = append(d.chunks, chunk)
	return nil
}

func (d *fakeDecoder) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func newTestSession(t *testing.T, cfg Config) (*Session, *fakeDecoder, *render.Null) {
	dec := &fakeDecoder{}
	backend := render.NewNull(render.Surface{Width: 800, Height: 480})
	s, err := New(cfg, backend, dec.factory)
	require.NoError(t, err)
	return s, dec, backend
}

func frame(ts int64) *media.Frame {
	f := media.NewI420Frame(16, 16)
	f.Timestamp = ts
	return f
}

func TestLatestFrameWins(t *testing.T) {
	s, dec, backend := newTestSession(t, Config{})
	defer s.Stop()

	f1, f2 := frame(0), frame(1)
	dec.cb.Output(f1)
	dec.cb.Output(f2)
	assert.True(t, f1.Released(), "replaced frame must be released undrawn")
	assert.False(t, f2.Released())

	require.NoError(t, s.Tick())
	count, last := backend.Drawn()
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(1), last)
	assert.True(t, f2.Released())

	// Nothing new: no redraw.
	require.NoError(t, s.Tick())
	count, _ = backend.Drawn()
	assert.Equal(t, 1, count)

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Decoded)
	assert.Equal(t, uint64(1), st.Presented)
	assert.Equal(t, uint64(1), st.Dropped)

	ev := <-s.Events()
	assert.Equal(t, EventFramePresented, ev.Kind)
	assert.Equal(t, int64(1), ev.Timestamp)
	assert.Equal(t, s.ID(), ev.Session)
}

func TestDisplayOrderOutput(t *testing.T) {
	s, dec, backend := newTestSession(t, Config{})
	defer s.Stop()

	// I P B: the B-frame was decoded last but is shown between I and P.
	for _, ts := range []int64{0, 2, 1} {
		f := frame(ts)
		dec.cb.Output(f)
		require.NoError(t, s.Tick())
		assert.True(t, f.Released())
	}

	count, last := backend.Drawn()
	assert.Equal(t, 3, count)
	assert.Equal(t, int64(1), last)
	assert.Equal(t, uint64(0), s.Stats().Dropped)

	for _, want := range []int64{0, 2, 1} {
		ev := <-s.Events()
		assert.Equal(t, EventFramePresented, ev.Kind)
		assert.Equal(t, want, ev.Timestamp)
	}
}

func TestConfigureOnSPS(t *testing.T) {
	s, dec, _ := newTestSession(t, Config{HardwareAcceleration: media.PreferHardware})
	defer s.Stop()
	assert.Equal(t, StateUnconfigured, s.State())

	s.Submit(annexB(slice))
	assert.Equal(t, StateUnconfigured, s.State())
	assert.Empty(t, dec.chunks)
	assert.Equal(t, uint64(1), s.Stats().Unconfigured)

	s.Submit(annexB(sps720, pps, idr))
	assert.Equal(t, StateConfigured, s.State())
	require.Len(t, dec.configs, 1)
	assert.Equal(t, media.DecoderConfig{
		Codec:                "avc1.42C01E",
		CodedWidth:           1280,
		CodedHeight:          720,
		HardwareAcceleration: media.PreferHardware,
	}, dec.configs[0])

	s.Submit(annexB(slice))
	require.Len(t, dec.chunks, 2)
	assert.Equal(t, media.ChunkKey, dec.chunks[0].Type)
	assert.Equal(t, int64(0), dec.chunks[0].Timestamp)
	assert.Equal(t, media.ChunkDelta, dec.chunks[1].Type)
	assert.Equal(t, int64(1), dec.chunks[1].Timestamp)

	st := s.Stats()
	assert.Equal(t, "avc1.42C01E", st.Codec)
	assert.Equal(t, 1280, st.Width)
	assert.Equal(t, uint64(3), st.Submitted)
}

func TestConfigureFailureRetries(t *testing.T) {
	s, dec, _ := newTestSession(t, Config{})
	defer s.Stop()
	dec.failConfigure = 1

	s.Submit(annexB(sps720, pps, idr))
	assert.Equal(t, StateUnconfigured, s.State())
	assert.Equal(t, uint64(1), s.Stats().ConfigErrors)
	assert.Empty(t, dec.chunks)

	s.Submit(annexB(sps720, pps, idr))
	assert.Equal(t, StateConfigured, s.State())
	assert.Len(t, dec.chunks, 1)
}

func TestReconfigureOnFormatChange(t *testing.T) {
	s, dec, _ := newTestSession(t, Config{})
	defer s.Stop()

	s.Submit(annexB(sps720, pps, idr))
	s.Submit(annexB(sps720, pps, idr))
	assert.Len(t, dec.configs, 1, "same SPS must not reconfigure")

	s.Submit(annexB(sps1080, pps, idr))
	require.Len(t, dec.configs, 2)
	assert.Equal(t, 1920, dec.configs[1].CodedWidth)
	assert.Equal(t, 1088, dec.configs[1].CodedHeight)
	assert.Equal(t, StateConfigured, s.State())

	// A failed reconfiguration drops back to unconfigured.
	dec.failConfigure = 1
	s.Submit(annexB(sps720, pps, idr))
	assert.Equal(t, StateUnconfigured, s.State())
	s.Submit(annexB(slice))
	assert.Len(t, dec.chunks, 3)
}

func TestUnknownFramingDropped(t *testing.T) {
	s, dec, _ := newTestSession(t, Config{})
	defer s.Stop()

	s.Submit([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	assert.Equal(t, uint64(1), s.Stats().ParseDrops)
	assert.Empty(t, dec.configs)
}

func TestPacketFramingNormalised(t *testing.T) {
	for _, box := range []int{1, 2, 3, 4} {
		s, dec, _ := newTestSession(t, Config{})

		s.Submit(avcc(box, sps720, pps, idr))
		require.Equal(t, StateConfigured, s.State(), "box %d", box)
		require.Len(t, dec.chunks, 1)

		data := dec.chunks[0].Data
		assert.True(t, bytes.HasPrefix(data, []byte{0, 0, 0, 1}) || bytes.HasPrefix(data, []byte{0, 0, 1}), "box %d", box)
		assert.True(t, bytes.HasSuffix(data, idr), "box %d", box)
		assert.Equal(t, media.ChunkKey, dec.chunks[0].Type)
		s.Stop()
	}
}

func TestDecodeSubmissionError(t *testing.T) {
	s, dec, _ := newTestSession(t, Config{})
	defer s.Stop()

	s.Submit(annexB(sps720, pps, idr))
	dec.failDecode = true
	s.Submit(annexB(slice))

	assert.Equal(t, uint64(1), s.Stats().DecodeErrors)
	ev := <-s.Events()
	assert.Equal(t, EventDecodeError, ev.Kind)
	assert.True(t, errors.Is(ev.Err, media.ErrDecodeSubmission))
	assert.Equal(t, StateConfigured, s.State())
}

func TestStopDiscardsLateFrames(t *testing.T) {
	s, dec, backend := newTestSession(t, Config{})

	pending := frame(0)
	dec.cb.Output(pending)
	s.Stop()
	s.Stop()
	assert.True(t, pending.Released())
	assert.True(t, dec.closed)
	assert.Equal(t, StateStopped, s.State())

	late := frame(1)
	dec.cb.Output(late)
	assert.True(t, late.Released())

	require.NoError(t, s.Tick())
	count, _ := backend.Drawn()
	assert.Equal(t, 0, count)

	s.Submit(annexB(sps720, pps, idr))
	assert.Empty(t, dec.configs)

	_, open := <-s.Events()
	assert.False(t, open)
}

func TestDeviceLostIsFatal(t *testing.T) {
	s, dec, backend := newTestSession(t, Config{})
	backend.FailWith(render.ErrDeviceLost)

	dec.cb.Output(frame(0))
	err := s.Tick()
	require.Error(t, err)
	assert.True(t, media.IsFatal(err))
	assert.Equal(t, StateStopped, s.State())
	assert.True(t, media.IsFatal(s.Err()))

	s.Fail(errors.New("again"))

	var fatal int
	for ev := range s.Events() {
		if ev.Kind == EventFatal {
			fatal++
		}
	}
	assert.Equal(t, 1, fatal)
}

func TestDecoderErrors(t *testing.T) {
	s, dec, _ := newTestSession(t, Config{})

	dec.cb.Error(errors.New("corrupt slice"))
	ev := <-s.Events()
	assert.Equal(t, EventDecodeError, ev.Kind)
	assert.Equal(t, StateUnconfigured, s.State())

	dec.cb.Error(media.Fatal("decoder", errors.New("gpu reset")))
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop on fatal decoder error")
	}
	assert.True(t, media.IsFatal(s.Err()))
}

func TestEventsDropOldest(t *testing.T) {
	s, dec, _ := newTestSession(t, Config{EventBuffer: 2})
	defer s.Stop()

	for ts := int64(0); ts < 3; ts++ {
		dec.cb.Output(frame(ts))
		require.NoError(t, s.Tick())
	}
	assert.Equal(t, uint64(1), s.Stats().DroppedEvents)
	assert.Equal(t, int64(1), (<-s.Events()).Timestamp)
	assert.Equal(t, int64(2), (<-s.Events()).Timestamp)
}

func TestNewRequiresBackend(t *testing.T) {
	dec := &fakeDecoder{}
	_, err := New(Config{}, nil, dec.factory)
	assert.True(t, media.IsFatal(err))

	_, err = New(Config{}, render.NewNull(render.Surface{}), func(media.DecoderCallbacks) (media.VideoDecoder, error) {
		return nil, media.ErrNotSupported
	})
	assert.True(t, media.IsFatal(err))
	assert.True(t, errors.Is(err, media.ErrNotSupported))
}
