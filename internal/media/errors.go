//////////////////////////////////////////////////////////////////////////////
//
// Media errors
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import (
	"github.com/pkg/errors"
)

var (
	ErrNotImplemented = errors.New("Not implemented") // "to do" items
	ErrNotSupported   = errors.New("Not supported")   // "can't do" items

	ErrDecoderConfig    = errors.New("media: decoder configuration failed")
	ErrDecodeSubmission = errors.New("media: decode submission failed")
	ErrDecoderClosed    = errors.New("media: decoder closed")
)

// FatalError marks a failure the pipeline cannot recover from, e.g. a render
// surface or audio device that could not be opened or was lost.
type FatalError struct {
	Op  string
	Err error
}

func Fatal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{op, err}
}

func (e *FatalError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }
func (e *FatalError) Cause() error  { return e.Err }

// IsFatal reports whether err, or anything it wraps, is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
