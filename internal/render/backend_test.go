package render

import (
	"testing"

	"github.com/lanikai/alohacar/internal/media"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, test := range []struct {
		in   string
		kind Kind
	}{
		{"webgl", KindGLES2},
		{"gles2", KindGLES2},
		{"WebGL2", KindGL},
		{"gl", KindGL},
		{"webgpu", KindGPU},
		{" gpu ", KindGPU},
		{"null", KindNull},
	} {
		k, err := ParseKind(test.in)
		require.NoError(t, err, test.in)
		assert.Equal(t, test.kind, k, test.in)
	}

	_, err := ParseKind("vulkan")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "webgl", KindGLES2.String())
	assert.Equal(t, "webgl2", KindGL.String())
	assert.Equal(t, "webgpu", KindGPU.String())
	assert.Equal(t, "null", KindNull.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestNullBackend(t *testing.T) {
	b, err := Open(KindNull, Surface{Width: 640, Height: 480})
	require.NoError(t, err)
	n := b.(*Null)
	assert.Equal(t, KindNull, b.Kind())

	f := media.NewI420Frame(1280, 720)
	f.Timestamp = 7
	require.NoError(t, b.Draw(f))
	assert.True(t, f.Released())

	count, last := n.Drawn()
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(7), last)
	assert.Equal(t, Surface{Width: 1280, Height: 720}, n.Surface())
	assert.Equal(t, 1, n.Resizes())

	// Same size: no resize.
	require.NoError(t, b.Draw(media.NewI420Frame(1280, 720)))
	assert.Equal(t, 1, n.Resizes())

	n.FailWith(ErrDeviceLost)
	g := media.NewI420Frame(2, 2)
	assert.Equal(t, ErrDeviceLost, b.Draw(g))
	assert.True(t, g.Released())

	require.NoError(t, b.Close())
}

func TestOpenDefaultsSurfaceSize(t *testing.T) {
	b, err := Open(KindNull, Surface{})
	require.NoError(t, err)
	assert.Equal(t, Surface{Width: 800, Height: 480}, b.(*Null).Surface())
}
