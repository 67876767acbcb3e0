package bitstream

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeemulate(t *testing.T) {
	for _, test := range []struct {
		in, out []byte
	}{
		{[]byte{}, []byte{}},
		{[]byte{1, 2, 3}, []byte{1, 2, 3}},
		{[]byte{0, 0, 3, 0}, []byte{0, 0, 0}},
		{[]byte{0, 0, 3, 1}, []byte{0, 0, 1}},
		{[]byte{0, 0, 3, 3}, []byte{0, 0, 3}},
		{[]byte{0, 0, 3, 4}, []byte{0, 0, 3, 4}},
		{[]byte{0, 0, 3}, []byte{0, 0}},
		{[]byte{0, 0, 3, 0, 0, 3, 2}, []byte{0, 0, 0, 0, 2}},
		{[]byte{0, 3, 0}, []byte{0, 3, 0}},
	} {
		assert.Equal(t, test.out, Deemulate(test.in), "%x", test.in)
	}
}

func TestReemulate(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 3, 0, 0}, Reemulate([]byte{0, 0, 0, 0}))
	assert.Equal(t, []byte{0, 0, 3, 1}, Reemulate([]byte{0, 0, 1}))
	assert.Equal(t, []byte{0, 0, 4}, Reemulate([]byte{0, 0, 4}))
	assert.Equal(t, []byte{0, 0}, Reemulate([]byte{0, 0}))
}

func TestEmulationRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		b := make([]byte, rng.Intn(64))
		for j := range b {
			// Bias toward the bytes that matter.
			b[j] = byte(rng.Intn(5))
		}
		e := Reemulate(b)
		assert.Equal(t, b, Deemulate(e), "%x", b)
		assert.Equal(t, len(e) != len(b), HasEmulation(e), "%x", b)
	}
}
