package source

import (
	"bufio"
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lanikai/alohacar/internal/audio"
	"github.com/lanikai/alohacar/internal/bitstream"
	"github.com/lanikai/alohacar/internal/dongle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baselineSPS(widthMbs, heightMbs uint32) []byte {
	w := bitstream.NewWriter()
	w.WriteBits(0x67, 8)
	w.WriteBits(66, 8)
	w.WriteBits(0xC0, 8)
	w.WriteBits(30, 8)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteUE(0)
	w.WriteUE(2)
	w.WriteUE(1)
	w.WriteFlag(false)
	w.WriteUE(widthMbs - 1)
	w.WriteUE(heightMbs - 1)
	w.WriteFlag(true)
	w.WriteFlag(true)
	w.WriteFlag(false)
	w.WriteFlag(false)
	w.WriteTrailingBits()
	return bitstream.Reemulate(w.Bytes())
}

var (
	sps   = baselineSPS(80, 45)
	pps   = []byte{0x68, 0xCE, 0x3C, 0x80}
	idr   = []byte{0x65, 0x88, 0x84, 0x00, 0x33}
	slice = []byte{0x41, 0x9A, 0x02, 0x04}
	// Second slice of the same picture: first_mb_in_slice != 0.
	slice2 = []byte{0x41, 0x40, 0x11}
)

// Elementary stream with a mix of start code lengths and trailing zeros.
func elementaryStream() []byte {
	var b []byte
	b = append(b, 0, 0, 0, 1)
	b = append(b, sps...)
	b = append(b, 0, 0, 1)
	b = append(b, pps...)
	b = append(b, 0, 0, 0, 1)
	b = append(b, idr...)
	b = append(b, 0, 0, 0, 0, 1)
	b = append(b, slice...)
	b = append(b, 0, 0, 1)
	b = append(b, slice2...)
	b = append(b, 0, 0, 1)
	b = append(b, slice...)
	return b
}

func writeStream(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "clip.h264")
	require.NoError(t, os.WriteFile(path, elementaryStream(), 0644))
	return path
}

func annexB(units ...[]byte) []byte {
	var b []byte
	for _, u := range units {
		b = append(b, 0, 0, 0, 1)
		b = append(b, u...)
	}
	return b
}

func TestSplitNALU(t *testing.T) {
	s := bufio.NewScanner(bytes.NewReader(elementaryStream()))
	s.Split(splitNALU)

	var nalus [][]byte
	for s.Scan() {
		if n := bytes.TrimRight(s.Bytes(), "\x00"); len(n) > 0 {
			nalus = append(nalus, append([]byte(nil), n...))
		}
	}
	require.NoError(t, s.Err())
	assert.Equal(t, [][]byte{sps, pps, idr, slice, slice2, slice}, nalus)
}

func TestAnnexBAccessUnits(t *testing.T) {
	r, err := openAnnexB(writeStream(t), 25)
	require.NoError(t, err)
	defer r.Close()

	au, pts, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, annexB(sps, pps, idr), au)
	assert.Equal(t, time.Duration(0), pts)

	w, h := r.size()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	au, pts, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, annexB(slice, slice2), au)
	assert.Equal(t, 40*time.Millisecond, pts)

	au, _, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, annexB(slice), au)

	_, _, err = r.next()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, r.rewind())
	au, pts, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, annexB(sps, pps, idr), au)
	assert.Equal(t, time.Duration(0), pts)
}

func TestSkipSEI(t *testing.T) {
	sample := []byte{0, 0, 0, 3, 0x06, 0x05, 0x80, 0, 0, 0, 2, 0x65, 0x88}
	assert.Equal(t, []byte{0, 0, 0, 2, 0x65, 0x88}, skipSEI(sample))

	noSEI := []byte{0, 0, 0, 2, 0x65, 0x88}
	assert.Equal(t, noSEI, skipSEI(noSEI))
}

func collect(t *testing.T, ch <-chan dongle.Message) []dongle.Message {
	var msgs []dongle.Message
	timeout := time.After(5 * time.Second)
	for {
		select {
		case m, ok := <-ch:
			if !ok {
				return msgs
			}
			msgs = append(msgs, m)
		case <-timeout:
			t.Fatal("producer did not finish")
		}
	}
}

func TestProducerPlaysFileThenUnplugs(t *testing.T) {
	p, err := Open(Options{Path: writeStream(t), FPS: 500})
	require.NoError(t, err)
	defer p.Close()

	msgs := collect(t, p.Messages())
	require.Len(t, msgs, 5)
	assert.Equal(t, dongle.KindPlugged, msgs[0].Kind)
	for _, m := range msgs[1:4] {
		assert.Equal(t, dongle.KindVideo, m.Kind)
		assert.Equal(t, 1280, m.Video.Width)
	}
	assert.Equal(t, annexB(sps, pps, idr), msgs[1].Video.Data)
	assert.Equal(t, dongle.KindUnplugged, msgs[4].Kind)
}

func TestProducerLoops(t *testing.T) {
	p, err := Open(Options{Path: writeStream(t), FPS: 500, Loop: true})
	require.NoError(t, err)

	var video [][]byte
	for m := range p.Messages() {
		if m.Kind == dongle.KindVideo {
			video = append(video, m.Video.Data)
		}
		if len(video) == 4 {
			break
		}
	}
	require.NoError(t, p.Close())
	assert.Equal(t, video[0], video[3])
}

func TestProducerMissingFile(t *testing.T) {
	_, err := Open(Options{Path: filepath.Join(t.TempDir(), "missing.h264")})
	assert.Error(t, err)

	_, err = Open(Options{})
	assert.Error(t, err)
}

func TestProducerTone(t *testing.T) {
	p, err := Open(Options{Tone: true})
	require.NoError(t, err)

	assert.Equal(t, dongle.KindPlugged, (<-p.Messages()).Kind)

	start := <-p.Messages()
	require.Equal(t, dongle.KindAudio, start.Kind)
	assert.Equal(t, audio.CommandMediaStart, start.Audio.Command)
	assert.Equal(t, audio.AudioTypeMedia, start.Audio.AudioType)

	pcm := <-p.Messages()
	require.Equal(t, dongle.KindAudio, pcm.Kind)
	assert.Len(t, pcm.Audio.Samples, 48000*2/50)

	require.NoError(t, p.SendAudio(make([]int16, 320)))
	assert.Equal(t, uint64(320), p.MicSamples())
	assert.NoError(t, p.RequestKeyFrame())

	require.NoError(t, p.Close())
}

func TestToneFill(t *testing.T) {
	tone := &Tone{Frequency: 1000, Amplitude: 0.5, Rate: 8000, Channels: 2}
	buf := make([]int16, 16)
	tone.Fill(buf)

	assert.Equal(t, int16(0), buf[0])
	// Quarter period is two frames at 8 kHz.
	assert.InDelta(t, 0.5*math.MaxInt16, float64(buf[4]), 1)
	for i := 0; i < len(buf); i += 2 {
		assert.Equal(t, buf[i], buf[i+1])
	}
}

func TestReadAccessUnits(t *testing.T) {
	units, err := ReadAccessUnits(writeStream(t), 2)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, annexB(slice, slice2), units[1])

	units, err = ReadAccessUnits(writeStream(t), 10)
	require.NoError(t, err)
	assert.Len(t, units, 3)
}
