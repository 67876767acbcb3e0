package h264

import (
	"bytes"

	"github.com/nareix/joy4/utils/bits/pio"
	"github.com/pkg/errors"
)

// Framing describes how NAL units are delimited within a buffer.
type Framing int

const (
	FramingUnknown Framing = iota
	// Start code delimited, ITU-T H.264 Annex B.
	FramingAnnexB
	// Big-endian length prefixed, as in MP4/AVCC. Also called "packet" framing.
	FramingPacket
)

func (f Framing) String() string {
	switch f {
	case FramingAnnexB:
		return "annexb"
	case FramingPacket:
		return "packet"
	default:
		return "unknown"
	}
}

// Number of packets inspected when guessing the length field width.
const detectLookahead = 4

var startCode = []byte{0, 0, 1}

type Options struct {
	// Zero values mean auto-detect.
	Framing Framing
	BoxSize int

	// Fail construction on unknown framing, instead of yielding no units.
	Strict bool
}

// Stream views a buffer holding one or more NAL units. It never copies or
// modifies the buffer, except through the explicit Convert methods.
type Stream struct {
	buf     []byte
	framing Framing
	boxSize int
}

// NewStream wraps buf, detecting framing and box size unless given in opts.
// For Annex B streams the box size is the width of the first start code.
func NewStream(buf []byte, opts Options) (*Stream, error) {
	s := &Stream{buf: buf, framing: opts.Framing, boxSize: opts.BoxSize}

	if s.framing == FramingUnknown || s.boxSize == 0 {
		f, box := Detect(buf)
		if s.framing == FramingUnknown {
			s.framing = f
		}
		if s.boxSize == 0 && f == s.framing {
			s.boxSize = box
		}
	}

	switch s.framing {
	case FramingPacket:
		if s.boxSize < 1 || s.boxSize > 4 {
			return nil, errors.Wrapf(ErrBadBoxSize, "box size %d", s.boxSize)
		}
	case FramingAnnexB:
		if s.boxSize != 3 && s.boxSize != 4 {
			s.boxSize = 4
		}
	default:
		if opts.Strict {
			return nil, ErrUnknownFraming
		}
	}
	return s, nil
}

// Detect guesses the framing of buf. Annex B is recognized by a leading start
// code; otherwise length prefixed framing is tried with box sizes 4, 3, 2 and
// 1, accepting the first width whose leading packets are all plausible.
func Detect(buf []byte) (Framing, int) {
	switch {
	case len(buf) >= 4 && buf[0] == 0 && buf[1] == 0 && buf[2] == 0 && buf[3] == 1:
		return FramingAnnexB, 4
	case len(buf) >= 3 && buf[0] == 0 && buf[1] == 0 && buf[2] == 1:
		return FramingAnnexB, 3
	}

	for _, box := range []int{4, 3, 2, 1} {
		if plausible(buf, box) {
			return FramingPacket, box
		}
	}
	return FramingUnknown, 0
}

func plausible(buf []byte, box int) bool {
	pos, n := 0, 0
	for n < detectLookahead && pos < len(buf) {
		if pos+box > len(buf) {
			return false
		}
		l := readLength(buf[pos:], box)
		if l < 2 || l > len(buf)-pos-box || buf[pos+box]&0x80 != 0 {
			return false
		}
		pos += box + l
		n++
	}
	return n > 0
}

func readLength(b []byte, box int) int {
	switch box {
	case 1:
		return int(b[0])
	case 2:
		return int(pio.U16BE(b))
	case 3:
		return int(pio.U24BE(b))
	default:
		return int(pio.U32BE(b))
	}
}

func putLength(b []byte, box int, n int) {
	switch box {
	case 1:
		b[0] = byte(n)
	case 2:
		pio.PutU16BE(b, uint16(n))
	case 3:
		pio.PutU24BE(b, uint32(n))
	default:
		pio.PutU32BE(b, uint32(n))
	}
}

func (s *Stream) Framing() Framing { return s.framing }
func (s *Stream) BoxSize() int      { return s.boxSize }

// Bytes returns the underlying buffer.
func (s *Stream) Bytes() []byte { return s.buf }

// Iter returns a fresh iterator. Iterating twice yields the same units.
func (s *Stream) Iter() *Iterator {
	return &Iterator{s: s}
}

// Each calls fn for every NAL unit until fn returns false.
func (s *Stream) Each(fn func(NALU) bool) {
	it := s.Iter()
	for nalu, ok := it.Next(); ok; nalu, ok = it.Next() {
		if !fn(nalu) {
			return
		}
	}
}

func (s *Stream) NALUs() []NALU {
	var out []NALU
	s.Each(func(n NALU) bool {
		out = append(out, n)
		return true
	})
	return out
}

func (s *Stream) Count() int {
	n := 0
	s.Each(func(NALU) bool {
		n++
		return true
	})
	return n
}

// Types lists the NAL unit types in stream order.
func (s *Stream) Types() []NALUType {
	var out []NALUType
	s.Each(func(n NALU) bool {
		out = append(out, n.Type())
		return true
	})
	return out
}

// Find returns the first NAL unit of the given type.
func (s *Stream) Find(t NALUType) (NALU, bool) {
	var found NALU
	s.Each(func(n NALU) bool {
		if n.Type() == t {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

// IsKeyFrame reports whether the stream contains an IDR slice.
func (s *Stream) IsKeyFrame() bool {
	_, ok := s.Find(TypeIDR)
	return ok
}

// IsKeyFrame detects the framing of buf and reports whether it contains an
// IDR slice.
func IsKeyFrame(buf []byte) bool {
	s, err := NewStream(buf, Options{})
	if err != nil {
		return false
	}
	return s.IsKeyFrame()
}

// Iterator walks the NAL units of a Stream.
type Iterator struct {
	s       *Stream
	pos     int
	started bool
	err     error
}

// Next returns the next NAL unit, or false when the stream is exhausted.
func (it *Iterator) Next() (NALU, bool) {
	start, end, ok := it.next()
	if !ok {
		return nil, false
	}
	return NALU(it.s.buf[start:end:end]), true
}

// Err reports a truncated length prefixed packet, if one ended iteration.
func (it *Iterator) Err() error {
	return it.err
}

func (it *Iterator) next() (start, end int, ok bool) {
	buf := it.s.buf
	switch it.s.framing {
	case FramingAnnexB:
		if !it.started {
			it.started = true
			i := bytes.Index(buf, startCode)
			if i < 0 {
				it.pos = len(buf)
			} else {
				it.pos = i + len(startCode)
			}
		}
		for it.pos < len(buf) {
			start = it.pos
			end, it.pos = len(buf), len(buf)
			if j := bytes.Index(buf[start:], startCode); j >= 0 {
				end = start + j
				it.pos = end + len(startCode)
			}
			// Zero bytes ahead of the next start code belong to it (4-byte
			// form) or are trailing_zero_8bits.
			for end > start && buf[end-1] == 0 {
				end--
			}
			if end > start {
				return start, end, true
			}
		}

	case FramingPacket:
		box := it.s.boxSize
		for it.pos+box <= len(buf) {
			l := readLength(buf[it.pos:], box)
			start = it.pos + box
			if l > len(buf)-start {
				it.err = errors.Errorf("h264: packet length %d at offset %d exceeds buffer", l, it.pos)
				it.pos = len(buf)
				return 0, 0, false
			}
			it.pos = start + l
			if l > 0 {
				return start, start + l, true
			}
		}
	}
	return 0, 0, false
}

// ConvertToPacket rewrites an Annex B stream in place as length prefixed
// packets. Only possible when every start code is exactly as wide as the
// length field, i.e. box size 3 or 4.
func (s *Stream) ConvertToPacket() error {
	if s.framing != FramingAnnexB {
		return errors.Wrapf(ErrWrongFraming, "convert %v to packet", s.framing)
	}
	box := s.boxSize
	spans, err := s.uniformSpans(func(prefix []byte) bool {
		return bytes.Equal(prefix[box-3:], startCode) && (box == 3 || prefix[0] == 0)
	})
	if err != nil {
		return err
	}
	for _, sp := range spans {
		if box == 3 && sp.end-sp.start >= 1<<24 {
			return errors.Wrapf(ErrPacketTooLong, "%d bytes", sp.end-sp.start)
		}
	}
	for _, sp := range spans {
		putLength(s.buf[sp.start-box:], box, sp.end-sp.start)
	}
	s.framing = FramingPacket
	return nil
}

// ConvertToAnnexB rewrites a length prefixed stream in place with start codes
// as wide as the length field. Only possible for box size 3 or 4.
func (s *Stream) ConvertToAnnexB() error {
	if s.framing != FramingPacket {
		return errors.Wrapf(ErrWrongFraming, "convert %v to annexb", s.framing)
	}
	box := s.boxSize
	if box != 3 && box != 4 {
		return errors.Wrapf(ErrMixedStartCodes, "box size %d", box)
	}
	spans, err := s.uniformSpans(func([]byte) bool { return true })
	if err != nil {
		return err
	}
	for _, sp := range spans {
		p := s.buf[sp.start-box : sp.start]
		for i := range p {
			p[i] = 0
		}
		p[box-1] = 1
	}
	s.framing = FramingAnnexB
	return nil
}

type span struct{ start, end int }

// uniformSpans checks that the buffer is exactly a sequence of box-wide
// prefixes, each accepted by ok, followed by its unit.
func (s *Stream) uniformSpans(ok func(prefix []byte) bool) ([]span, error) {
	box := s.boxSize
	if box != 3 && box != 4 {
		return nil, errors.Wrapf(ErrMixedStartCodes, "box size %d", box)
	}
	var spans []span
	pos := 0
	it := s.Iter()
	for {
		start, end, more := it.next()
		if !more {
			break
		}
		if start-pos != box || !ok(s.buf[pos:start]) {
			return nil, errors.Wrapf(ErrMixedStartCodes, "unit at offset %d", start)
		}
		spans = append(spans, span{start, end})
		pos = end
	}
	if it.err != nil {
		return nil, it.err
	}
	if pos != len(s.buf) {
		return nil, errors.Wrapf(ErrMixedStartCodes, "%d trailing bytes", len(s.buf)-pos)
	}
	return spans, nil
}

// AppendPacket appends every unit to dst with a big-endian length prefix of
// the given width.
func (s *Stream) AppendPacket(dst []byte, box int) ([]byte, error) {
	if box < 1 || box > 4 {
		return dst, errors.Wrapf(ErrBadBoxSize, "box size %d", box)
	}
	var err error
	s.Each(func(n NALU) bool {
		if box < 4 && len(n) >= 1<<(8*uint(box)) {
			err = errors.Wrapf(ErrPacketTooLong, "%d bytes in %d-byte length", len(n), box)
			return false
		}
		var hdr [4]byte
		putLength(hdr[:], box, len(n))
		dst = append(dst, hdr[:box]...)
		dst = append(dst, n...)
		return true
	})
	return dst, err
}

// AppendAnnexB appends every unit to dst behind a 3 or 4 byte start code.
func (s *Stream) AppendAnnexB(dst []byte, startCodeLen int) ([]byte, error) {
	var sc []byte
	switch startCodeLen {
	case 3:
		sc = startCode
	case 4:
		sc = []byte{0, 0, 0, 1}
	default:
		return dst, errors.Wrapf(ErrBadBoxSize, "start code length %d", startCodeLen)
	}
	s.Each(func(n NALU) bool {
		dst = append(dst, sc...)
		dst = append(dst, n...)
		return true
	})
	return dst, nil
}
