//go:build !sdl
// +build !sdl

package render

import (
	"github.com/lanikai/alohacar/internal/media"
	"github.com/pkg/errors"
)

func openSDL(kind Kind, surface Surface) (Backend, error) {
	return nil, media.Fatal("open renderer", errors.Wrap(media.ErrNotSupported, "built without sdl"))
}
