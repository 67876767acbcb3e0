package h264

import (
	"fmt"

	"github.com/lanikai/alohacar/internal/bitstream"
	"github.com/pkg/errors"
)

type Profile uint8

const (
	ProfileCAVLC444 Profile = 44
	ProfileBaseline Profile = 66
	ProfileMain     Profile = 77
	ProfileExtended Profile = 88
	ProfileHigh     Profile = 100
	ProfileHigh10   Profile = 110
	ProfileHigh422  Profile = 122
	ProfileHigh444  Profile = 244
)

func (p Profile) String() string {
	switch p {
	case ProfileCAVLC444:
		return "CAVLC 4:4:4 Intra"
	case ProfileBaseline:
		return "Baseline"
	case ProfileMain:
		return "Main"
	case ProfileExtended:
		return "Extended"
	case ProfileHigh:
		return "High"
	case ProfileHigh10:
		return "High 10"
	case ProfileHigh422:
		return "High 4:2:2"
	case ProfileHigh444:
		return "High 4:4:4 Predictive"
	default:
		return fmt.Sprintf("profile %d", uint8(p))
	}
}

func (p Profile) valid() bool {
	switch p {
	case ProfileCAVLC444, ProfileBaseline, ProfileMain, ProfileExtended,
		ProfileHigh, ProfileHigh10, ProfileHigh422, ProfileHigh444:
		return true
	}
	return false
}

// Profiles without chroma_format_idc and friends in the SPS.
func (p Profile) hasChromaInfo() bool {
	return p != ProfileBaseline && p != ProfileMain && p != ProfileExtended
}

// Rect is a pixel rectangle within the decoded picture.
type Rect struct {
	X, Y          int
	Width, Height int
}

// VUI holds the video usability information fields up to and including
// nal_hrd_parameters_present_flag.
type VUI struct {
	AspectRatioInfoPresent bool
	AspectRatioIDC         uint8
	SARWidth, SARHeight    uint16

	OverscanInfoPresent bool
	OverscanAppropriate bool

	VideoSignalTypePresent  bool
	VideoFormat             uint8
	VideoFullRange          bool
	ColourDescription       bool
	ColourPrimaries         uint8
	TransferCharacteristics uint8
	MatrixCoefficients      uint8

	ChromaLocInfoPresent       bool
	ChromaSampleLocTopField    uint32
	ChromaSampleLocBottomField uint32

	TimingInfoPresent bool
	NumUnitsInTick    uint32
	TimeScale         uint32
	FixedFrameRate    bool

	NALHRDParametersPresent bool
}

// aspect_ratio_idc signalling an explicit sample aspect ratio.
const extendedSAR = 255

// SPS is a decoded sequence parameter set. It is immutable once parsed.
type SPS struct {
	Profile        Profile
	ConstraintSet  [6]bool
	constraintByte uint8
	Level          uint8
	ID             uint32

	ChromaFormatIDC         uint32
	SeparateColourPlane     bool
	BitDepthLuma            uint32
	BitDepthChroma          uint32
	TransformBypass         bool
	ScalingMatrixPresent    bool
	ScalingLists            [12][]uint8 // nil where not transmitted
	UseDefaultScalingMatrix [12]bool

	Log2MaxFrameNum           uint32
	PicOrderCntType           uint32
	Log2MaxPicOrderCntLsb     uint32
	DeltaPicOrderAlwaysZero   bool
	OffsetForNonRefPic        int32
	OffsetForTopToBottomField int32
	OffsetForRefFrame         []int32

	MaxNumRefFrames           uint32
	GapsInFrameNumAllowed     bool
	PicWidthInMbsMinus1       uint32
	PicHeightInMapUnitsMinus1 uint32
	FrameMbsOnly              bool
	MbAdaptiveFrameField      bool
	Direct8x8Inference        bool

	FrameCropping bool
	CropLeft      uint32
	CropRight     uint32
	CropTop       uint32
	CropBottom    uint32

	// Decoded picture size in luma samples, before cropping.
	PicWidth  int
	PicHeight int
	// Display window within the decoded picture.
	CropRect Rect

	VUIPresent bool
	VUI        VUI

	// Derived from VUI timing; zero when absent.
	FramesPerSecond float64
}

// Field reader that remembers the first error, so the parser can be written
// as a straight sequence of reads.
type fieldReader struct {
	r     *bitstream.Reader
	err   error
	field string
}

func (f *fieldReader) fail(field string, err error) {
	if f.err == nil {
		f.err = err
		f.field = field
	}
}

func (f *fieldReader) u(n int, field string) uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadBits(n)
	if err != nil {
		f.fail(field, err)
	}
	return v
}

func (f *fieldReader) flag(field string) bool {
	return f.u(1, field) == 1
}

func (f *fieldReader) ue(field string) uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadUE()
	if err != nil {
		f.fail(field, err)
	}
	return v
}

func (f *fieldReader) se(field string) int32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadSE()
	if err != nil {
		f.fail(field, err)
	}
	return v
}

// ueMax reads ue(v) and rejects values above max.
func (f *fieldReader) ueMax(max uint32, field string) uint32 {
	v := f.ue(field)
	if f.err == nil && v > max {
		f.fail(field, errors.Errorf("%d out of range [0, %d]", v, max))
	}
	return v
}

func (f *fieldReader) result() error {
	if f.err == nil {
		return nil
	}
	return errors.Wrapf(ErrMalformedSPS, "%s: %v", f.field, f.err)
}

// ParseSPS decodes a sequence parameter set NAL unit, header byte included.
// Emulation prevention bytes are removed from a private copy; nalu itself is
// not modified.
func ParseSPS(nalu NALU) (*SPS, error) {
	if len(nalu) == 0 {
		return nil, errors.Wrap(ErrMalformedSPS, "empty NAL unit")
	}
	if nalu.ForbiddenBit() != 0 {
		return nil, errors.Wrap(ErrMalformedSPS, "forbidden_zero_bit set")
	}
	if t := nalu.Type(); t != TypeSPS {
		return nil, errors.Wrapf(ErrMalformedSPS, "nal_unit_type %v", t)
	}

	f := &fieldReader{r: bitstream.NewReader(nalu[1:])}
	sps := &SPS{ChromaFormatIDC: 1, BitDepthLuma: 8, BitDepthChroma: 8}

	sps.Profile = Profile(f.u(8, "profile_idc"))
	if f.err == nil && !sps.Profile.valid() {
		return nil, errors.Wrapf(ErrMalformedSPS, "profile_idc %d", uint8(sps.Profile))
	}
	sps.constraintByte = uint8(f.u(8, "constraint_set_flags"))
	for i := range sps.ConstraintSet {
		sps.ConstraintSet[i] = sps.constraintByte&(0x80>>uint(i)) != 0
	}
	if f.err == nil && sps.constraintByte&0x03 != 0 {
		return nil, errors.Wrap(ErrMalformedSPS, "reserved_zero_2bits set")
	}
	sps.Level = uint8(f.u(8, "level_idc"))
	sps.ID = f.ueMax(31, "seq_parameter_set_id")

	if sps.Profile.hasChromaInfo() {
		sps.ChromaFormatIDC = f.ueMax(3, "chroma_format_idc")
		if sps.ChromaFormatIDC == 3 {
			sps.SeparateColourPlane = f.flag("separate_colour_plane_flag")
		}
		sps.BitDepthLuma = 8 + f.ueMax(6, "bit_depth_luma_minus8")
		sps.BitDepthChroma = 8 + f.ueMax(6, "bit_depth_chroma_minus8")
		sps.TransformBypass = f.flag("qpprime_y_zero_transform_bypass_flag")
		sps.ScalingMatrixPresent = f.flag("seq_scaling_matrix_present_flag")
		if sps.ScalingMatrixPresent {
			n := 8
			if sps.ChromaFormatIDC == 3 {
				n = 12
			}
			for i := 0; i < n && f.err == nil; i++ {
				if !f.flag("seq_scaling_list_present_flag") {
					continue
				}
				size := 16
				if i >= 6 {
					size = 64
				}
				sps.ScalingLists[i], sps.UseDefaultScalingMatrix[i] = scalingList(f, size)
			}
		}
	}

	sps.Log2MaxFrameNum = 4 + f.ueMax(12, "log2_max_frame_num_minus4")
	sps.PicOrderCntType = f.ueMax(2, "pic_order_cnt_type")
	switch sps.PicOrderCntType {
	case 0:
		sps.Log2MaxPicOrderCntLsb = 4 + f.ueMax(12, "log2_max_pic_order_cnt_lsb_minus4")
	case 1:
		sps.DeltaPicOrderAlwaysZero = f.flag("delta_pic_order_always_zero_flag")
		sps.OffsetForNonRefPic = f.se("offset_for_non_ref_pic")
		sps.OffsetForTopToBottomField = f.se("offset_for_top_to_bottom_field")
		n := f.ueMax(255, "num_ref_frames_in_pic_order_cnt_cycle")
		for i := uint32(0); i < n && f.err == nil; i++ {
			sps.OffsetForRefFrame = append(sps.OffsetForRefFrame, f.se("offset_for_ref_frame"))
		}
	}

	sps.MaxNumRefFrames = f.ue("max_num_ref_frames")
	sps.GapsInFrameNumAllowed = f.flag("gaps_in_frame_num_value_allowed_flag")
	sps.PicWidthInMbsMinus1 = f.ue("pic_width_in_mbs_minus1")
	sps.PicHeightInMapUnitsMinus1 = f.ue("pic_height_in_map_units_minus1")
	sps.FrameMbsOnly = f.flag("frame_mbs_only_flag")
	if !sps.FrameMbsOnly {
		sps.MbAdaptiveFrameField = f.flag("mb_adaptive_frame_field_flag")
	}
	sps.Direct8x8Inference = f.flag("direct_8x8_inference_flag")
	sps.FrameCropping = f.flag("frame_cropping_flag")
	if sps.FrameCropping {
		sps.CropLeft = f.ue("frame_crop_left_offset")
		sps.CropRight = f.ue("frame_crop_right_offset")
		sps.CropTop = f.ue("frame_crop_top_offset")
		sps.CropBottom = f.ue("frame_crop_bottom_offset")
	}

	sps.VUIPresent = f.flag("vui_parameters_present_flag")
	if sps.VUIPresent {
		parseVUI(f, &sps.VUI)
	}

	if err := f.result(); err != nil {
		return nil, err
	}
	if err := sps.computeGeometry(); err != nil {
		return nil, err
	}
	if sps.VUI.TimingInfoPresent && sps.VUI.NumUnitsInTick > 0 {
		sps.FramesPerSecond = float64(sps.VUI.TimeScale) / (2 * float64(sps.VUI.NumUnitsInTick))
	}
	return sps, nil
}

// Delta coded scaling list, 7.3.2.1.1.1.
func scalingList(f *fieldReader, size int) ([]uint8, bool) {
	list := make([]uint8, size)
	last, next := int32(8), int32(8)
	useDefault := false
	for j := 0; j < size && f.err == nil; j++ {
		if next != 0 {
			delta := f.se("delta_scale")
			if delta < -128 || delta > 127 {
				f.fail("delta_scale", errors.Errorf("%d out of range [-128, 127]", delta))
				break
			}
			next = (last + delta + 256) % 256
			useDefault = j == 0 && next == 0
		}
		if next != 0 {
			list[j] = uint8(next)
		} else {
			list[j] = uint8(last)
		}
		last = int32(list[j])
	}
	return list, useDefault
}

func parseVUI(f *fieldReader, v *VUI) {
	v.AspectRatioInfoPresent = f.flag("aspect_ratio_info_present_flag")
	if v.AspectRatioInfoPresent {
		v.AspectRatioIDC = uint8(f.u(8, "aspect_ratio_idc"))
		if v.AspectRatioIDC == extendedSAR {
			v.SARWidth = uint16(f.u(16, "sar_width"))
			v.SARHeight = uint16(f.u(16, "sar_height"))
		}
	}

	v.OverscanInfoPresent = f.flag("overscan_info_present_flag")
	if v.OverscanInfoPresent {
		v.OverscanAppropriate = f.flag("overscan_appropriate_flag")
	}

	v.VideoSignalTypePresent = f.flag("video_signal_type_present_flag")
	if v.VideoSignalTypePresent {
		v.VideoFormat = uint8(f.u(3, "video_format"))
		v.VideoFullRange = f.flag("video_full_range_flag")
		v.ColourDescription = f.flag("colour_description_present_flag")
		if v.ColourDescription {
			v.ColourPrimaries = uint8(f.u(8, "colour_primaries"))
			v.TransferCharacteristics = uint8(f.u(8, "transfer_characteristics"))
			v.MatrixCoefficients = uint8(f.u(8, "matrix_coefficients"))
		}
	}

	v.ChromaLocInfoPresent = f.flag("chroma_loc_info_present_flag")
	if v.ChromaLocInfoPresent {
		v.ChromaSampleLocTopField = f.ue("chroma_sample_loc_type_top_field")
		v.ChromaSampleLocBottomField = f.ue("chroma_sample_loc_type_bottom_field")
	}

	v.TimingInfoPresent = f.flag("timing_info_present_flag")
	if v.TimingInfoPresent {
		v.NumUnitsInTick = f.u(32, "num_units_in_tick")
		v.TimeScale = f.u(32, "time_scale")
		v.FixedFrameRate = f.flag("fixed_frame_rate_flag")
	}

	v.NALHRDParametersPresent = f.flag("nal_hrd_parameters_present_flag")
}

func (sps *SPS) computeGeometry() error {
	sps.PicWidth = int(sps.PicWidthInMbsMinus1+1) * 16
	sps.PicHeight = sps.frameHeightFactor() * int(sps.PicHeightInMapUnitsMinus1+1) * 16

	if !sps.FrameCropping {
		sps.CropRect = Rect{0, 0, sps.PicWidth, sps.PicHeight}
		return nil
	}

	ux, uy := sps.cropUnits()
	left, right := ux*int(sps.CropLeft), ux*int(sps.CropRight)
	top, bottom := uy*int(sps.CropTop), uy*int(sps.CropBottom)
	r := Rect{left, top, sps.PicWidth - left - right, sps.PicHeight - top - bottom}
	if r.Width <= 0 || r.Height <= 0 {
		return errors.Wrapf(ErrMalformedSPS, "cropping leaves %dx%d of %dx%d", r.Width, r.Height, sps.PicWidth, sps.PicHeight)
	}
	sps.CropRect = r
	return nil
}

func (sps *SPS) frameHeightFactor() int {
	if sps.FrameMbsOnly {
		return 1
	}
	return 2
}

// Crop offsets are in chroma sample units, 7.4.2.1.1.
func (sps *SPS) cropUnits() (x, y int) {
	if sps.SeparateColourPlane || sps.ChromaFormatIDC == 0 {
		return 1, sps.frameHeightFactor()
	}
	subWidth, subHeight := 2, 2
	switch sps.ChromaFormatIDC {
	case 2:
		subHeight = 1
	case 3:
		subWidth, subHeight = 1, 1
	}
	return subWidth, subHeight * sps.frameHeightFactor()
}

// ConstraintFlags returns the constraint byte as coded: constraint_set0_flag
// in the most significant bit through constraint_set5_flag, then the two
// reserved zero bits.
func (sps *SPS) ConstraintFlags() uint8 {
	return sps.constraintByte
}

// MIME returns the RFC 6381 codec string, e.g. "avc1.42C01E".
func (sps *SPS) MIME() string {
	return fmt.Sprintf("avc1.%02X%02X%02X", uint8(sps.Profile), sps.constraintByte, sps.Level)
}

// Width and Height of the display window.
func (sps *SPS) Width() int  { return sps.CropRect.Width }
func (sps *SPS) Height() int { return sps.CropRect.Height }

// SampleAspectRatio returns the SAR, or 1:1 when unspecified. Only
// Extended_SAR is resolved; table values other than 1 are reported as 1:1.
func (sps *SPS) SampleAspectRatio() (num, den int) {
	if sps.VUI.AspectRatioIDC == extendedSAR && sps.VUI.SARWidth > 0 && sps.VUI.SARHeight > 0 {
		return int(sps.VUI.SARWidth), int(sps.VUI.SARHeight)
	}
	return 1, 1
}

// SameFormat reports whether a decoder configured for sps can decode
// pictures described by other without reconfiguration.
func (sps *SPS) SameFormat(other *SPS) bool {
	return other != nil &&
		sps.Profile == other.Profile &&
		sps.constraintByte == other.constraintByte &&
		sps.Level == other.Level &&
		sps.PicWidth == other.PicWidth &&
		sps.PicHeight == other.PicHeight &&
		sps.CropRect == other.CropRect &&
		sps.ChromaFormatIDC == other.ChromaFormatIDC &&
		sps.BitDepthLuma == other.BitDepthLuma
}

func (sps *SPS) String() string {
	return fmt.Sprintf("%s %v level %d.%d %dx%d", sps.MIME(), sps.Profile, sps.Level/10, sps.Level%10, sps.Width(), sps.Height())
}
