//go:build sdl
// +build sdl

package render

import (
	"runtime"

	"github.com/lanikai/alohacar/internal/media"
	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// SDL render driver for each backend kind.
func sdlDriver(kind Kind) string {
	switch kind {
	case KindGLES2:
		return "opengles2"
	case KindGL:
		return "opengl"
	}
	switch runtime.GOOS {
	case "darwin", "ios":
		return "metal"
	case "windows":
		return "direct3d12"
	}
	// Let SDL pick the best accelerated driver.
	return ""
}

type sdlBackend struct {
	kind     Kind
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture

	// Size of the texture, and of the window as last set by a frame.
	texW, texH int
	winW, winH int
}

func openSDL(kind Kind, surface Surface) (Backend, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, media.Fatal("sdl init", err)
	}
	if driver := sdlDriver(kind); driver != "" {
		sdl.SetHint(sdl.HINT_RENDER_DRIVER, driver)
	}

	window, err := sdl.CreateWindow(surface.Title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		int32(surface.Width), int32(surface.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, media.Fatal("create window", err)
	}
	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, media.Fatal("create renderer", err)
	}
	if info, err := renderer.GetInfo(); err == nil {
		log.Debug("SDL renderer %q for %v", info.Name, kind)
	}
	return &sdlBackend{
		kind:     kind,
		window:   window,
		renderer: renderer,
		winW:     surface.Width,
		winH:     surface.Height,
	}, nil
}

func (b *sdlBackend) Kind() Kind { return b.kind }

func (b *sdlBackend) Draw(f *media.Frame) error {
	defer f.Release()

	if f.Format != media.PixelFormatI420 {
		return errors.Wrapf(media.ErrNotSupported, "pixel format %v", f.Format)
	}
	if f.DisplayWidth != b.winW || f.DisplayHeight != b.winH {
		b.window.SetSize(int32(f.DisplayWidth), int32(f.DisplayHeight))
		b.winW, b.winH = f.DisplayWidth, f.DisplayHeight
	}
	if b.texture == nil || f.CodedWidth != b.texW || f.CodedHeight != b.texH {
		if b.texture != nil {
			b.texture.Destroy()
			b.texture = nil
		}
		tex, err := b.renderer.CreateTexture(uint32(sdl.PIXELFORMAT_IYUV), sdl.TEXTUREACCESS_STREAMING,
			int32(f.CodedWidth), int32(f.CodedHeight))
		if err != nil {
			return errors.Wrap(ErrDeviceLost, err.Error())
		}
		b.texture, b.texW, b.texH = tex, f.CodedWidth, f.CodedHeight
	}

	if err := b.texture.UpdateYUV(nil,
		f.Planes[0], f.Strides[0],
		f.Planes[1], f.Strides[1],
		f.Planes[2], f.Strides[2]); err != nil {
		return errors.Wrap(err, "upload frame")
	}

	src := sdl.Rect{W: int32(f.DisplayWidth), H: int32(f.DisplayHeight)}
	if err := b.renderer.Copy(b.texture, &src, nil); err != nil {
		return errors.Wrap(ErrDeviceLost, err.Error())
	}
	b.renderer.Present()
	return nil
}

func (b *sdlBackend) PumpEvents(fn func(WindowEvent)) error {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			fn(WindowClosed)
		case *sdl.WindowEvent:
			if e.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
				fn(WindowResized)
			}
		case *sdl.RenderEvent:
			if e.Type == sdl.RENDER_DEVICE_RESET {
				return ErrDeviceLost
			}
			// Textures are gone; recreate on the next frame.
			if b.texture != nil {
				b.texture.Destroy()
				b.texture = nil
			}
		}
	}
	return nil
}

func (b *sdlBackend) Close() error {
	if b.texture != nil {
		b.texture.Destroy()
	}
	b.renderer.Destroy()
	b.window.Destroy()
	sdl.Quit()
	return nil
}
