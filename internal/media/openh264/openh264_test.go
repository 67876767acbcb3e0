package openh264

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructLayout(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layouts are for 64-bit targets")
	}

	var p decodingParam
	assert.Equal(t, uintptr(32), unsafe.Sizeof(p))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(p.cpuLoad))
	assert.Equal(t, uintptr(12), unsafe.Offsetof(p.targetDqLayer))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(p.ecActiveIdc))
	assert.Equal(t, uintptr(20), unsafe.Offsetof(p.parseOnly))
	assert.Equal(t, uintptr(24), unsafe.Offsetof(p.videoPropertySize))

	var b bufferInfo
	assert.Equal(t, uintptr(72), unsafe.Sizeof(b))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(b.inBsTimeStamp))
	assert.Equal(t, uintptr(24), unsafe.Offsetof(b.width))
	assert.Equal(t, uintptr(36), unsafe.Offsetof(b.strides))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(b.dst))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ok", stateString(dsErrorFree))
	assert.Equal(t, "ref-lost|bitstream-error", stateString(dsRefLost|dsBitstreamError))
	assert.Equal(t, "unknown", stateString(0x100))
}

func TestLibraryPaths(t *testing.T) {
	os.Setenv(EnvLibrary, "/opt/codecs/libopenh264.so")
	defer os.Unsetenv(EnvLibrary)

	paths := libraryPaths("/explicit/libopenh264.so")
	require.True(t, len(paths) > 2)
	assert.Equal(t, "/explicit/libopenh264.so", paths[0])
	assert.Equal(t, "/opt/codecs/libopenh264.so", paths[1])

	os.Unsetenv(EnvLibrary)
	paths = libraryPaths("")
	assert.NotContains(t, paths, "")
}

func TestFramePoolRecycles(t *testing.T) {
	var p framePool
	f := p.get(64, 32)
	assert.Equal(t, 64, f.CodedWidth)
	assert.Equal(t, 64*32, len(f.Planes[0]))
	assert.Equal(t, 32*16, len(f.Planes[1]))
	y := &f.Planes[0][0]
	f.Release()

	g := p.get(64, 32)
	assert.Same(t, y, &g.Planes[0][0])

	// A size change starts over.
	h := p.get(32, 32)
	assert.Equal(t, 32*32, len(h.Planes[0]))
	g.Release()
	assert.Empty(t, p.free)
}
