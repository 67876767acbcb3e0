package source

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"time"

	"github.com/lanikai/alohacar/internal/media/h264"
)

const (
	naluBufferInitialSize = 16 * 1024
	naluBufferMaximumSize = 4 * 1024 * 1024
)

// Reads a raw H.264 elementary stream and groups its NALUs into access units,
// re-emitted with 4-byte start codes.
type annexBReader struct {
	file    *os.File
	scanner *bufio.Scanner
	fps     float64

	peeked h264.NALU // first NALU of the next access unit
	count  int
	width  int
	height int
}

func openAnnexB(filename string, fps float64) (*annexBReader, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	r := &annexBReader{file: f, fps: fps}
	r.reset()
	return r, nil
}

func (r *annexBReader) reset() {
	r.scanner = bufio.NewScanner(r.file)
	r.scanner.Buffer(make([]byte, naluBufferInitialSize), naluBufferMaximumSize)
	r.scanner.Split(splitNALU)
	r.peeked = nil
	r.count = 0
}

func (r *annexBReader) scan() (h264.NALU, error) {
	for r.scanner.Scan() {
		nalu := h264.NALU(bytes.TrimRight(r.scanner.Bytes(), "\x00"))
		if len(nalu) > 0 {
			return nalu, nil
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *annexBReader) next() (au []byte, pts time.Duration, err error) {
	var vcl bool
	for {
		nalu := r.peeked
		r.peeked = nil
		if nalu == nil {
			nalu, err = r.scan()
			if err == io.EOF && len(au) > 0 {
				break
			}
			if err != nil {
				return nil, 0, err
			}
		}

		if vcl && startsAccessUnit(nalu) {
			r.peeked = nalu
			break
		}
		if nalu.Type() == h264.TypeSPS {
			if sps, err := h264.ParseSPS(nalu); err == nil {
				r.width, r.height = sps.Width(), sps.Height()
			} else {
				log.Warn("Bad SPS in %s: %v", r.file.Name(), err)
			}
		}
		if nalu.Type().VCL() {
			vcl = true
		}
		au = append(au, 0, 0, 0, 1)
		au = append(au, nalu...)
	}

	pts = time.Duration(float64(r.count) / r.fps * float64(time.Second))
	r.count++
	return au, pts, nil
}

// Reports whether nalu opens a new access unit, given that the current one
// already holds a coded slice. See ITU-T H.264 section 7.4.1.2.3.
func startsAccessUnit(nalu h264.NALU) bool {
	switch t := nalu.Type(); {
	case t == h264.TypeAUD, t == h264.TypeSPS, t == h264.TypePPS, t == h264.TypeSEI:
		return true
	case t == h264.TypeNonIDR || t == h264.TypeIDR:
		// first_mb_in_slice == 0 is coded as a single 1 bit.
		return len(nalu) > 1 && nalu[1]&0x80 != 0
	case t >= 14 && t <= 18:
		return true
	}
	return false
}

func (r *annexBReader) rewind() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.reset()
	return nil
}

func (r *annexBReader) size() (int, int) {
	return r.width, r.height
}

func (r *annexBReader) Close() error {
	return r.file.Close()
}

var startCode = []byte{0, 0, 1}

// Splits NAL units on H.264 Annex B start codes. The zero byte of a 4-byte
// start code is left on the preceding token; callers trim it.
func splitNALU(data []byte, atEOF bool) (advance int, nalu []byte, err error) {
	i := bytes.Index(data, startCode)

	switch {
	case i == 0:
		// Start code at data[0]. Skip it.
		advance = 3
	case i > 0:
		// Next start code found at index i.
		advance = i + 3
		nalu = data[:i]
	case atEOF && len(data) > 0:
		// Last NALU in the stream.
		advance = len(data)
		nalu = data
	}
	return
}
