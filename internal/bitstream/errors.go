package bitstream

import (
	"github.com/pkg/errors"
)

var (
	// ErrExhausted is returned by any read that would move the cursor past
	// the end of the buffer. The cursor is left where it was.
	ErrExhausted = errors.New("bitstream: read past end of buffer")

	ErrInvalidCode = errors.New("bitstream: exp-Golomb prefix longer than 32 bits")
	ErrTooWide     = errors.New("bitstream: fixed-width read wider than 32 bits")
)
