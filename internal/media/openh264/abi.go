package openh264

// Mirrors of the codec_api.h structures passed across the library boundary.
// Layouts assume a 64-bit target.

// SDecodingParam
type decodingParam struct {
	fileNameRestructed uintptr
	cpuLoad            uint32
	targetDqLayer      uint8
	_                  [3]byte
	ecActiveIdc        int32
	parseOnly          bool
	_                  [3]byte

	// SVideoProperty
	videoPropertySize uint32
	videoBsType       int32
}

// SBufferInfo, with the SSysMEMBuffer member of its union inlined.
type bufferInfo struct {
	bufferStatus    int32
	_               int32
	inBsTimeStamp   uint64
	outYuvTimeStamp uint64

	width   int32
	height  int32
	format  int32
	strides [2]int32
	_       int32

	dst [3]uintptr
}

// OpenH264Version
type version struct {
	major, minor, revision, reserved uint32
}

// ISVCDecoderVtbl slots.
const (
	slotInitialize = iota
	slotUninitialize
	slotDecodeFrame
	slotDecodeFrameNoDelay
	slotDecodeFrame2
	slotFlushFrame
	slotDecodeParser
	slotDecodeFrameEx
	slotSetOption
	slotGetOption
)

const (
	videoBitstreamAVC = 0
	errorConSliceCopy = 2
	targetDqLayerAll  = 0xFF
	videoPropertySize = 8
	bufferStatusReady = 1
	cmResultSuccess   = 0
)

// DECODING_STATE bits.
const (
	dsErrorFree          = 0x00
	dsFramePending       = 0x01
	dsRefLost            = 0x02
	dsBitstreamError     = 0x04
	dsDepLayerLost       = 0x08
	dsNoParamSets        = 0x10
	dsDataErrorConcealed = 0x20
	dsRefListNullPtrs    = 0x40
	dsInvalidArgument    = 0x1000
	dsInitialOptExpected = 0x2000
	dsOutOfMemory        = 0x4000
	dsDstBufNeedExpan    = 0x8000
)

// Non-fatal states: the frame was decoded, or concealed, or will come later.
const dsUsable = dsFramePending | dsDataErrorConcealed

func stateString(s int) string {
	names := []struct {
		bit  int
		name string
	}{
		{dsFramePending, "frame-pending"},
		{dsRefLost, "ref-lost"},
		{dsBitstreamError, "bitstream-error"},
		{dsDepLayerLost, "dep-layer-lost"},
		{dsNoParamSets, "no-param-sets"},
		{dsDataErrorConcealed, "concealed"},
		{dsRefListNullPtrs, "ref-list-null"},
		{dsInvalidArgument, "invalid-argument"},
		{dsInitialOptExpected, "not-initialized"},
		{dsOutOfMemory, "out-of-memory"},
		{dsDstBufNeedExpan, "buffer-too-small"},
	}
	if s == dsErrorFree {
		return "ok"
	}
	out := ""
	for _, n := range names {
		if s&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "unknown"
	}
	return out
}
