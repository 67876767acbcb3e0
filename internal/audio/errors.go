package audio

import (
	errors "golang.org/x/xerrors"
)

var (
	ErrBadCapacity       = errors.New("audio: ring capacity must be positive")
	ErrUnknownDecodeType = errors.New("audio: unknown decode type")
	ErrBadFormat         = errors.New("audio: invalid sample rate or channel count")
	ErrClosed            = errors.New("audio: player closed")
)
