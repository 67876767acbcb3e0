//////////////////////////////////////////////////////////////////////////////
//
// Render backends
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package render

import (
	"strings"

	"github.com/lanikai/alohacar/internal/logging"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/pkg/errors"
)

var log = logging.DefaultLogger.WithTag("render")

var (
	ErrUnknownKind = errors.New("render: unknown backend")

	// Returned by Draw when the surface or GPU context is gone.
	ErrDeviceLost = errors.New("render: device lost")
)

type Kind int

const (
	KindGLES2 Kind = iota
	KindGL
	KindGPU
	KindNull
)

var kindNames = []string{
	KindGLES2: "webgl",
	KindGL:    "webgl2",
	KindGPU:   "webgpu",
	KindNull:  "null",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// ParseKind accepts "webgl", "webgl2", "webgpu" and "null", as well as the
// driver-flavoured aliases "gles2", "gl" and "gpu".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webgl", "gles2", "gles", "opengles2":
		return KindGLES2, nil
	case "webgl2", "gl", "opengl":
		return KindGL, nil
	case "webgpu", "gpu", "native":
		return KindGPU, nil
	case "null", "none", "headless":
		return KindNull, nil
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", s)
}

// Surface describes the window a backend draws into.
type Surface struct {
	Title  string
	Width  int
	Height int
}

// Backend presents decoded frames. Draw takes ownership of the frame and
// releases it once the GPU no longer needs it, whether or not drawing
// succeeded. Backends are used from a single goroutine.
type Backend interface {
	Draw(f *media.Frame) error
	Close() error
	Kind() Kind
}

type WindowEvent int

const (
	WindowResized WindowEvent = iota + 1
	WindowClosed
)

func (e WindowEvent) String() string {
	switch e {
	case WindowResized:
		return "resized"
	case WindowClosed:
		return "closed"
	}
	return "unknown"
}

// EventPump is implemented by backends that own a window system event queue,
// which must be drained from the display goroutine.
type EventPump interface {
	PumpEvents(fn func(WindowEvent)) error
}

// Open creates a backend of the given kind. Must be called from the goroutine
// that will call Draw.
func Open(kind Kind, surface Surface) (Backend, error) {
	if surface.Width <= 0 || surface.Height <= 0 {
		surface.Width, surface.Height = 800, 480
	}
	switch kind {
	case KindNull:
		return NewNull(surface), nil
	case KindGLES2, KindGL, KindGPU:
		b, err := openSDL(kind, surface)
		if err != nil {
			return nil, errors.Wrapf(err, "open %v renderer", kind)
		}
		log.Info("Opened %v renderer (%dx%d)", kind, surface.Width, surface.Height)
		return b, nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "kind %d", int(kind))
}
