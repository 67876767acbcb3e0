package audio

import (
	"sync"
	"testing"
	"time"

	"github.com/lanikai/alohacar/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errors "golang.org/x/xerrors"
)

type fakeSink struct {
	mu      sync.Mutex
	format  int
	noFloat bool
	failing bool
	writes  int
	frames  int
	closed  bool
}

func (s *fakeSink) Configure(rate, channels, format int) error {
	if s.noFloat && format == media.F32LE {
		return media.ErrNotSupported
	}
	s.format = format
	return nil
}

func (s *fakeSink) Write(p []byte) (int, error) { return len(p), nil }

func (s *fakeSink) WritePlanar(ch [][]float32) (int, error) {
	time.Sleep(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errors.New("device unplugged")
	}
	s.writes++
	s.frames += len(ch[0])
	return len(ch[0]), nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func TestSinkEndpointFormatFallback(t *testing.T) {
	sink := &fakeSink{}
	_, err := NewSinkEndpoint(sink, mediaKey, 128, nil)
	require.NoError(t, err)
	assert.Equal(t, media.F32LE, sink.format)

	sink = &fakeSink{noFloat: true}
	_, err = NewSinkEndpoint(sink, mediaKey, 128, nil)
	require.NoError(t, err)
	assert.Equal(t, media.S16LE, sink.format)
}

func TestSinkEndpointRenders(t *testing.T) {
	sink := &fakeSink{}
	ep, err := NewSinkEndpoint(sink, mediaKey, 64, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	require.NoError(t, ep.Start(func(out [][]float32) bool {
		mu.Lock()
		calls++
		mu.Unlock()
		assert.Len(t, out, 2)
		assert.Len(t, out[0], 64)
		return false
	}))

	deadline := time.Now().Add(time.Second)
	for sink.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, ep.Close())
	require.NoError(t, ep.Close())

	assert.True(t, sink.closed)
	assert.GreaterOrEqual(t, sink.writes, 3)
	assert.Equal(t, sink.writes*64, sink.frames)
}

func TestSinkEndpointLost(t *testing.T) {
	sink := &fakeSink{failing: true}
	lost := make(chan error, 1)
	ep, err := NewSinkEndpoint(sink, mediaKey, 64, func(err error) { lost <- err })
	require.NoError(t, err)
	require.NoError(t, ep.Start(func(out [][]float32) bool { return true }))

	select {
	case err := <-lost:
		assert.Contains(t, err.Error(), "device unplugged")
	case <-time.After(5 * time.Second):
		t.Fatal("output loss not reported")
	}
	require.NoError(t, ep.Close())
}
