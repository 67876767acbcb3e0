package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeFormat(t *testing.T) {
	cases := []struct {
		decodeType uint8
		rate       int
		channels   int
	}{
		{1, 44100, 2},
		{2, 44100, 2},
		{3, 8000, 1},
		{4, 48000, 2},
		{5, 16000, 1},
		{6, 24000, 1},
		{7, 16000, 2},
	}
	for _, c := range cases {
		f, ok := DecodeFormat(c.decodeType)
		assert.True(t, ok, "decode type %d", c.decodeType)
		assert.Equal(t, Format{c.rate, c.channels}, f, "decode type %d", c.decodeType)
	}

	for _, bad := range []uint8{0, 8, 255} {
		_, ok := DecodeFormat(bad)
		assert.False(t, ok, "decode type %d", bad)
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "48000Hz/2ch/media", Key{48000, 2, AudioTypeMedia}.String())
	assert.Equal(t, "16000Hz/1ch/navigation", Key{16000, 1, AudioTypeNavigation}.String())
	assert.Equal(t, "siri-start", CommandSiriStart.String())
	assert.Equal(t, "command42", Command(42).String())
}
