package bitstream

// Writer builds an MSB-first bitstream. It is the inverse of Reader and is
// mostly used to synthesize parameter sets.
type Writer struct {
	buf  []byte
	bits int
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 32)}
}

// WriteBits appends the low n bits of v, most significant first.
func (w *Writer) WriteBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.bits&7 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 0x80 >> uint(w.bits&7)
		}
		w.bits++
	}
}

func (w *Writer) WriteFlag(f bool) {
	if f {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

func (w *Writer) WriteByte(b byte) error {
	w.WriteBits(uint32(b), 8)
	return nil
}

// WriteUE appends v as an unsigned exp-Golomb code.
func (w *Writer) WriteUE(v uint32) {
	x := uint64(v) + 1
	n := 0
	for t := x; t > 1; t >>= 1 {
		n++
	}
	w.WriteBits(0, n)
	// n+1 bits of x; split so that each WriteBits call fits in 32 bits.
	if n >= 32 {
		w.WriteBits(uint32(x>>32), n+1-32)
		w.WriteBits(uint32(x), 32)
		return
	}
	w.WriteBits(uint32(x), n+1)
}

// WriteSE appends v as a signed exp-Golomb code.
func (w *Writer) WriteSE(v int32) {
	if v > 0 {
		w.WriteUE(uint32(2*int64(v) - 1))
	} else {
		w.WriteUE(uint32(-2 * int64(v)))
	}
}

// WriteTrailingBits appends rbsp_stop_one_bit and zero bits up to the next
// byte boundary.
func (w *Writer) WriteTrailingBits() {
	w.WriteBits(1, 1)
	for w.bits&7 != 0 {
		w.WriteBits(0, 1)
	}
}

// Len returns the number of bits written.
func (w *Writer) Len() int {
	return w.bits
}

// Bytes returns the written bytes. A partial final byte is zero padded.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.bits = 0
}
