package media

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrameDecoder struct {
	mu         sync.Mutex
	configured []DecoderConfig
	decoded    []int64
	data       [][]byte
	failOn     int64
	block      chan struct{}
	closed     bool
}

func (f *fakeFrameDecoder) Configure(cfg DecoderConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cfg.Codec == "bogus" {
		return ErrNotSupported
	}
	f.configured = append(f.configured, cfg)
	return nil
}

func (f *fakeFrameDecoder) DecodeFrame(chunk EncodedChunk) ([]*Frame, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if chunk.Timestamp == f.failOn {
		return nil, errors.New("corrupt slice")
	}
	f.decoded = append(f.decoded, chunk.Timestamp)
	f.data = append(f.data, append([]byte(nil), chunk.Data...))
	fr := NewI420Frame(4, 4)
	fr.Timestamp = chunk.Timestamp
	return []*Frame{fr}, nil
}

func (f *fakeFrameDecoder) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func TestAsyncDecoderOrderAndCallbacks(t *testing.T) {
	fake := &fakeFrameDecoder{failOn: 2}
	frames := make(chan *Frame, 10)
	errs := make(chan error, 10)
	d := NewAsyncDecoder(fake, DecoderCallbacks{
		Output: func(f *Frame) { frames <- f },
		Error:  func(err error) { errs <- err },
	}, 4)

	require.NoError(t, d.Configure(DecoderConfig{Codec: "avc1.42C01E", CodedWidth: 4, CodedHeight: 4}))

	data := []byte{0, 0, 0, 1, 0x65}
	for ts := int64(1); ts <= 3; ts++ {
		require.NoError(t, d.Decode(EncodedChunk{Type: ChunkKey, Timestamp: ts, Data: data}))
		// The caller may reuse its buffer as soon as Decode returns.
		data[4] = 0x41
	}

	for _, want := range []int64{1, 3} {
		select {
		case f := <-frames:
			assert.Equal(t, want, f.Timestamp)
			f.Release()
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
	select {
	case err := <-errs:
		assert.EqualError(t, err, "corrupt slice")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}

	require.NoError(t, d.Close())
	assert.True(t, fake.closed)
	assert.Equal(t, []byte{0, 0, 0, 1, 0x65}, fake.data[0])
	assert.True(t, errors.Is(d.Decode(EncodedChunk{}), ErrDecodeSubmission))
	assert.Equal(t, ErrDecoderClosed, d.Configure(DecoderConfig{}))
	assert.NoError(t, d.Close())
}

func TestAsyncDecoderConfigureError(t *testing.T) {
	d := NewAsyncDecoder(&fakeFrameDecoder{}, DecoderCallbacks{}, 1)
	defer d.Close()

	err := d.Configure(DecoderConfig{Codec: "bogus"})
	assert.True(t, errors.Is(err, ErrDecoderConfig))
}

func TestAsyncDecoderQueueFull(t *testing.T) {
	fake := &fakeFrameDecoder{block: make(chan struct{})}
	d := NewAsyncDecoder(fake, DecoderCallbacks{}, 1)

	// The first chunk occupies the decode goroutine, the second the queue.
	require.NoError(t, d.Decode(EncodedChunk{Timestamp: 1}))
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, d.Decode(EncodedChunk{Timestamp: 2}))

	err := d.Decode(EncodedChunk{Timestamp: 3})
	assert.True(t, errors.Is(err, ErrDecodeSubmission))

	close(fake.block)
	assert.NoError(t, d.Close())
}

func TestFrameRelease(t *testing.T) {
	released := 0
	f := NewFrame(PixelFormatI420, 2, 2, func() { released++ })
	f.Hold()
	f.Release()
	assert.False(t, f.Released())
	assert.Equal(t, 0, released)
	f.Release()
	assert.True(t, f.Released())
	assert.Equal(t, 1, released)

	// Extra releases are ignored.
	f.Release()
	assert.Equal(t, 1, released)

	var nilFrame *Frame
	nilFrame.Release()
}

func TestFatalError(t *testing.T) {
	err := errors.Wrap(Fatal("open audio device", ErrNotSupported), "player")
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, ErrNotSupported))
	assert.False(t, IsFatal(ErrNotSupported))
	assert.Nil(t, Fatal("noop", nil))
}
