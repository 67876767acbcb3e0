package source

import (
	"math"
)

// Tone generates a continuous sine wave as interleaved 16-bit PCM.
type Tone struct {
	Frequency float64
	Amplitude float64 // 0..1
	Rate      int
	Channels  int

	phase float64
}

// Fill writes len(buf)/Channels frames to buf.
func (t *Tone) Fill(buf []int16) {
	step := 2 * math.Pi * t.Frequency / float64(t.Rate)
	for i := 0; i+t.Channels <= len(buf); i += t.Channels {
		v := int16(t.Amplitude * math.MaxInt16 * math.Sin(t.phase))
		for c := 0; c < t.Channels; c++ {
			buf[i+c] = v
		}
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
}
