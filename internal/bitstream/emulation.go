package bitstream

// HasEmulation reports whether b contains an emulation prevention sequence.
func HasEmulation(b []byte) bool {
	zeros := 0
	for i, c := range b {
		if zeros >= 2 && c == 3 && (i+1 == len(b) || b[i+1] <= 3) {
			return true
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return false
}

// Deemulate returns a copy of b with emulation prevention bytes removed:
// every 03 of a 00 00 03 xx sequence where xx <= 03 (or the buffer ends).
func Deemulate(b []byte) []byte {
	out := make([]byte, 0, len(b))
	zeros := 0
	for i, c := range b {
		if zeros >= 2 && c == 3 && (i+1 == len(b) || b[i+1] <= 3) {
			zeros = 0
			continue
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, c)
	}
	return out
}

// Reemulate returns a copy of b with an emulation prevention byte inserted
// wherever two zero bytes are followed by a byte <= 03.
func Reemulate(b []byte) []byte {
	out := make([]byte, 0, len(b)+len(b)/64+4)
	zeros := 0
	for _, c := range b {
		if zeros >= 2 && c <= 3 {
			out = append(out, 3)
			zeros = 0
		}
		if c == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, c)
	}
	return out
}
