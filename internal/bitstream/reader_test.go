package bitstream

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBits(t *testing.T) {
	r := NewRawReader([]byte{0xA5, 0x3C, 0xFF, 0x01})

	v, err := r.ReadBits(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x5), v) // 101

	// Unaligned byte read crosses the first byte boundary.
	v, err = r.ReadBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x29), v) // 00101 001

	v, err = r.ReadBits(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1C), v)

	assert.True(t, r.ByteAligned())
	v, err = r.ReadBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFF), v)

	assert.Equal(t, 8, r.Remaining())
	assert.Equal(t, 24, r.Consumed())
}

func TestReadBitsExhausted(t *testing.T) {
	r := NewRawReader([]byte{0xFF})
	_, err := r.ReadBits(4)
	require.NoError(t, err)

	_, err = r.ReadBits(5)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 4, r.Consumed(), "failed read must not move the cursor")

	_, err = r.ReadBits(33)
	assert.Equal(t, ErrTooWide, err)

	assert.True(t, errors.Is(r.Skip(5), ErrExhausted))
	assert.True(t, errors.Is(r.Seek(9), ErrExhausted))
	assert.NoError(t, r.Seek(8))
	assert.Equal(t, 0, r.Remaining())
}

func TestExpGolomb(t *testing.T) {
	values := []uint32{0, 1, 2, 3, 7, 8, 254, 255, 1 << 16, 1<<31 - 1, 1<<32 - 2}
	signed := []int32{0, 1, -1, 2, -2, 100, -100, 1<<31 - 1, -(1 << 31) + 1}

	w := NewWriter()
	for _, v := range values {
		w.WriteUE(v)
	}
	for _, v := range signed {
		w.WriteSE(v)
	}
	w.WriteTrailingBits()

	r := NewRawReader(w.Bytes())
	for _, want := range values {
		got, err := r.ReadUE()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, want := range signed {
		got, err := r.ReadSE()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.False(t, r.MoreRBSPData())
}

func TestExpGolombKnownCodes(t *testing.T) {
	for _, test := range []struct {
		bits string
		ue   uint32
		se   int32
	}{
		{"1", 0, 0},
		{"010", 1, 1},
		{"011", 2, -1},
		{"00100", 3, 2},
		{"00101", 4, -2},
		{"0001000", 7, 4},
	} {
		w := NewWriter()
		for _, c := range test.bits {
			w.WriteFlag(c == '1')
		}
		ue, err := NewRawReader(w.Bytes()).ReadUE()
		require.NoError(t, err)
		assert.Equal(t, test.ue, ue, test.bits)

		se, err := NewRawReader(w.Bytes()).ReadSE()
		require.NoError(t, err)
		assert.Equal(t, test.se, se, test.bits)
	}
}

func TestReadUEMalformed(t *testing.T) {
	// 40 zero bits never terminate the prefix.
	r := NewRawReader([]byte{0, 0, 0, 0, 0, 0x80})
	_, err := r.ReadUE()
	assert.Equal(t, ErrInvalidCode, err)
	assert.Equal(t, 0, r.Consumed())

	// Prefix runs off the end of the buffer.
	r = NewRawReader([]byte{0x00})
	_, err = r.ReadUE()
	assert.True(t, errors.Is(err, ErrExhausted))
}

func TestReaderDeemulates(t *testing.T) {
	src := []byte{0x67, 0x00, 0x00, 0x03, 0x01, 0xAA}
	orig := append([]byte(nil), src...)

	r := NewReader(src)
	assert.Equal(t, []byte{0x67, 0x00, 0x00, 0x01, 0xAA}, r.Payload())
	assert.Equal(t, 40, r.Remaining())
	assert.Equal(t, orig, r.Bytes())
	assert.Equal(t, orig, src, "source buffer must not be modified")
}
