//go:build darwin || linux
// +build darwin linux

package openh264

import (
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/lanikai/alohacar/internal/media"
	"github.com/pkg/errors"
)

var (
	loadOnce sync.Once
	loadErr  error

	welsCreateDecoder     func(ppDecoder *uintptr) int64
	welsDestroyDecoder    func(decoder uintptr)
	welsGetCodecVersionEx func(v *version)
)

// Load opens the openh264 shared library. Only the first call has any effect;
// later calls return its result.
func Load(path string) error {
	loadOnce.Do(func() {
		var lastErr error
		for _, p := range libraryPaths(path) {
			handle, err := purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
			if err != nil {
				lastErr = err
				continue
			}
			purego.RegisterLibFunc(&welsCreateDecoder, handle, "WelsCreateDecoder")
			purego.RegisterLibFunc(&welsDestroyDecoder, handle, "WelsDestroyDecoder")
			purego.RegisterLibFunc(&welsGetCodecVersionEx, handle, "WelsGetCodecVersionEx")

			var v version
			welsGetCodecVersionEx(&v)
			log.Info("Loaded openh264 %d.%d.%d from %s", v.major, v.minor, v.revision, p)
			return
		}
		loadErr = errors.Wrapf(media.ErrNotSupported, "openh264 not found: %v", lastErr)
	})
	return loadErr
}

// Decoder is a software H.264 decoder backed by openh264. It is synchronous;
// wrap it with media.NewAsyncDecoder for use in a pipeline.
type Decoder struct {
	handle      uintptr // ISVCDecoder*
	initialized bool
	cfg         media.DecoderConfig

	pool framePool
	info *bufferInfo
	dst  *[3]uintptr
}

// NewDecoder creates a decoder. The library must load.
func NewDecoder(libPath string) (*Decoder, error) {
	if err := Load(libPath); err != nil {
		return nil, err
	}
	var handle uintptr
	if rv := welsCreateDecoder(&handle); rv != 0 || handle == 0 {
		return nil, errors.Errorf("openh264: WelsCreateDecoder failed (%d)", rv)
	}
	return &Decoder{
		handle: handle,
		info:   new(bufferInfo),
		dst:    new([3]uintptr),
	}, nil
}

// Call slot of the decoder's vtable with the decoder as first argument.
func (d *Decoder) call(slot int, args ...uintptr) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(d.handle))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(slot)*unsafe.Sizeof(uintptr(0))))
	r1, _, _ := purego.SyscallN(fn, append([]uintptr{d.handle}, args...)...)
	return r1
}

func (d *Decoder) Configure(cfg media.DecoderConfig) error {
	if !strings.HasPrefix(cfg.Codec, "avc1.") && !strings.HasPrefix(cfg.Codec, "avc3.") {
		return errors.Wrapf(media.ErrNotSupported, "codec %q", cfg.Codec)
	}
	if cfg.HardwareAcceleration == media.PreferHardware {
		log.Debug("openh264 is a software decoder; ignoring hardware preference")
	}
	if d.initialized {
		// The decoder follows in-band parameter set changes by itself.
		log.Debug("Reconfigure %s %dx%d -> %s %dx%d", d.cfg.Codec, d.cfg.CodedWidth, d.cfg.CodedHeight,
			cfg.Codec, cfg.CodedWidth, cfg.CodedHeight)
		d.cfg = cfg
		return nil
	}

	param := &decodingParam{
		targetDqLayer:     targetDqLayerAll,
		ecActiveIdc:       errorConSliceCopy,
		videoPropertySize: videoPropertySize,
		videoBsType:       videoBitstreamAVC,
	}
	rv := int64(d.call(slotInitialize, uintptr(unsafe.Pointer(param))))
	runtime.KeepAlive(param)
	if rv != cmResultSuccess {
		return errors.Errorf("openh264: Initialize failed (%d)", rv)
	}
	d.initialized = true
	d.cfg = cfg
	return nil
}

func (d *Decoder) DecodeFrame(chunk media.EncodedChunk) ([]*media.Frame, error) {
	if !d.initialized {
		return nil, errors.New("openh264: not configured")
	}
	if len(chunk.Data) == 0 {
		return nil, nil
	}

	*d.info = bufferInfo{inBsTimeStamp: uint64(chunk.Timestamp)}
	*d.dst = [3]uintptr{}
	state := int(int32(d.call(slotDecodeFrameNoDelay,
		uintptr(unsafe.Pointer(&chunk.Data[0])),
		uintptr(len(chunk.Data)),
		uintptr(unsafe.Pointer(d.dst)),
		uintptr(unsafe.Pointer(d.info)),
	)))
	runtime.KeepAlive(chunk.Data)

	var frames []*media.Frame
	if d.info.bufferStatus == bufferStatusReady {
		frames = append(frames, d.copyOut())
	}

	switch {
	case state&dsOutOfMemory != 0:
		return frames, media.Fatal("openh264 decode", errors.New(stateString(state)))
	case state&^dsUsable != 0:
		return frames, errors.Errorf("openh264: decode of chunk %d: %s", chunk.Timestamp, stateString(state))
	}
	return frames, nil
}

// Copy the decoder-owned picture into a frame.
func (d *Decoder) copyOut() *media.Frame {
	info := d.info
	w, h := int(info.width), int(info.height)
	f := d.pool.get(w, h)
	f.Timestamp = int64(info.outYuvTimeStamp)

	cw, ch := (w+1)/2, (h+1)/2
	copyPlane(f.Planes[0], f.Strides[0], info.dst[0], int(info.strides[0]), w, h)
	copyPlane(f.Planes[1], f.Strides[1], info.dst[1], int(info.strides[1]), cw, ch)
	copyPlane(f.Planes[2], f.Strides[2], info.dst[2], int(info.strides[1]), cw, ch)
	return f
}

func copyPlane(dst []byte, dstStride int, src uintptr, srcStride, width, height int) {
	if src == 0 {
		return
	}
	s := unsafe.Slice((*byte)(unsafe.Pointer(src)), srcStride*(height-1)+width)
	for y := 0; y < height; y++ {
		copy(dst[y*dstStride:y*dstStride+width], s[y*srcStride:y*srcStride+width])
	}
}

func (d *Decoder) Close() error {
	if d.handle == 0 {
		return nil
	}
	if d.initialized {
		d.call(slotUninitialize)
	}
	welsDestroyDecoder(d.handle)
	d.handle = 0
	return nil
}
