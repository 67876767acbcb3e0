package bitstream

import (
	"github.com/pkg/errors"
)

// Reader reads an MSB-first bitstream, such as the RBSP of an H.264 NAL unit.
//
// If the source bytes contain emulation prevention sequences (00 00 03), the
// reader parses a private de-emulated copy. The caller's buffer is never
// written to.
type Reader struct {
	buf      []byte
	pos      int // bit cursor
	size     int // capacity in bits
	emulated bool
}

// NewReader returns a reader over the de-emulated payload of b.
func NewReader(b []byte) *Reader {
	if HasEmulation(b) {
		d := Deemulate(b)
		return &Reader{buf: d, size: len(d) * 8, emulated: true}
	}
	return &Reader{buf: b, size: len(b) * 8}
}

// NewRawReader returns a reader over b exactly as given.
func NewRawReader(b []byte) *Reader {
	return &Reader{buf: b, size: len(b) * 8}
}

// ReadBits reads an n-bit unsigned value, 0 <= n <= 32.
func (r *Reader) ReadBits(n int) (uint32, error) {
	switch {
	case n == 0:
		return 0, nil
	case n < 0 || n > 32:
		return 0, ErrTooWide
	case r.pos+n > r.size:
		return 0, errors.Wrapf(ErrExhausted, "read %d bits at %d/%d", n, r.pos, r.size)
	case n == 8:
		return uint32(r.readByte()), nil
	}

	var v uint32
	for n > 0 {
		off := r.pos & 7
		avail := 8 - off
		take := avail
		if take > n {
			take = n
		}
		b := uint32(r.buf[r.pos>>3]) >> uint(avail-take) & (1<<uint(take) - 1)
		v = v<<uint(take) | b
		r.pos += take
		n -= take
	}
	return v, nil
}

// Byte read, aligned or not. Bounds already checked.
func (r *Reader) readByte() byte {
	i, off := r.pos>>3, uint(r.pos&7)
	r.pos += 8
	if off == 0 {
		return r.buf[i]
	}
	return r.buf[i]<<off | r.buf[i+1]>>(8-off)
}

func (r *Reader) ReadFlag() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// ReadUE reads an unsigned exp-Golomb code, ue(v).
func (r *Reader) ReadUE() (uint32, error) {
	start := r.pos
	zeros := 0
	for {
		bit, err := r.ReadBits(1)
		if err != nil {
			r.pos = start
			return 0, err
		}
		if bit == 1 {
			break
		}
		zeros++
		if zeros > 31 {
			r.pos = start
			return 0, ErrInvalidCode
		}
	}
	if zeros == 0 {
		return 0, nil
	}
	suffix, err := r.ReadBits(zeros)
	if err != nil {
		r.pos = start
		return 0, err
	}
	return (1<<uint(zeros) - 1) + suffix, nil
}

// ReadSE reads a signed exp-Golomb code, se(v).
func (r *Reader) ReadSE() (int32, error) {
	k, err := r.ReadUE()
	if err != nil {
		return 0, err
	}
	v := int64(k+1) >> 1
	if k&1 == 0 {
		v = -v
	}
	return int32(v), nil
}

// Skip advances the cursor by n bits.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > r.size {
		return errors.Wrapf(ErrExhausted, "skip %d bits at %d/%d", n, r.pos, r.size)
	}
	r.pos += n
	return nil
}

// Seek moves the cursor to an absolute bit position.
func (r *Reader) Seek(bit int) error {
	if bit < 0 || bit > r.size {
		return errors.Wrapf(ErrExhausted, "seek to %d/%d", bit, r.size)
	}
	r.pos = bit
	return nil
}

// Consumed returns the cursor position in bits.
func (r *Reader) Consumed() int {
	return r.pos
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return r.size - r.pos
}

func (r *Reader) ByteAligned() bool {
	return r.pos&7 == 0
}

// MoreRBSPData reports whether anything other than the rbsp_trailing_bits
// remains.
func (r *Reader) MoreRBSPData() bool {
	if r.Remaining() <= 0 {
		return false
	}
	// Find the last set bit in the buffer; it is the stop bit.
	last := len(r.buf) - 1
	for last >= 0 && r.buf[last] == 0 {
		last--
	}
	if last < 0 {
		return false
	}
	b := r.buf[last]
	stop := last*8 + 7
	for b&1 == 0 {
		b >>= 1
		stop--
	}
	return r.pos < stop
}

// Payload returns the parsed bytes, which may be a de-emulated copy of the
// source. The result must not be modified.
func (r *Reader) Payload() []byte {
	return r.buf
}

// Bytes serializes the payload back out as a fresh slice, re-inserting
// emulation prevention bytes if the source carried them.
func (r *Reader) Bytes() []byte {
	if r.emulated {
		return Reemulate(r.buf)
	}
	return append([]byte(nil), r.buf...)
}
