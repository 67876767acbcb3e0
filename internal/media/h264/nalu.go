package h264

import (
	"strconv"
)

// NALU is a single NAL unit, header byte included, without start code or
// length prefix. NALUs returned by a Stream alias the stream's buffer.
type NALU []byte

type NALUType byte

const (
	TypeUnspecified NALUType = 0
	TypeNonIDR      NALUType = 1
	TypeIDR         NALUType = 5
	TypeSEI         NALUType = 6
	TypeSPS         NALUType = 7
	TypePPS         NALUType = 8
	TypeAUD         NALUType = 9
	TypeEndOfSeq    NALUType = 10
	TypeEndOfStream NALUType = 11
	TypeFiller      NALUType = 12
)

func (t NALUType) String() string {
	switch t {
	case TypeNonIDR:
		return "non-IDR"
	case TypeIDR:
		return "IDR"
	case TypeSEI:
		return "SEI"
	case TypeSPS:
		return "SPS"
	case TypePPS:
		return "PPS"
	case TypeAUD:
		return "AUD"
	case TypeEndOfSeq:
		return "end-of-seq"
	case TypeEndOfStream:
		return "end-of-stream"
	case TypeFiller:
		return "filler"
	default:
		return strconv.Itoa(int(t))
	}
}

// VCL reports whether the type carries coded slice data.
func (t NALUType) VCL() bool {
	return t >= 1 && t <= 5
}

func (nalu NALU) ForbiddenBit() byte {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x80 >> 7
}

// RefIDC returns nal_ref_idc.
func (nalu NALU) RefIDC() byte {
	if len(nalu) == 0 {
		return 0
	}
	return nalu[0] & 0x60 >> 5
}

func (nalu NALU) Type() NALUType {
	if len(nalu) == 0 {
		return TypeUnspecified
	}
	return NALUType(nalu[0] & 0x1f)
}
