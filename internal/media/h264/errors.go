package h264

import (
	"github.com/pkg/errors"
)

var (
	ErrMalformedSPS    = errors.New("h264: malformed sequence parameter set")
	ErrUnknownFraming  = errors.New("h264: unknown framing")
	ErrMixedStartCodes = errors.New("h264: start code width differs from length field width")
	ErrPacketTooLong   = errors.New("h264: NAL unit too long for length field")
	ErrBadBoxSize      = errors.New("h264: length field must be 1 to 4 bytes")
	ErrWrongFraming    = errors.New("h264: conversion not valid for this framing")
)
