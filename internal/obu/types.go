// Package obu carries the bitstream-boundary types consumed by the decode
// pipeline: parsed sequence/frame header structures and just enough OBU
// framing (leb128 sizes, OBU headers, temporal-unit splitting) to slice a
// byte stream into frames and discover the tile configuration. Full syntax
// parsing of the headers themselves happens outside this module; callers
// hand the pipeline pre-filled header structs.
package obu

// OBU types from Section 6.2.2.
const (
	TypeSequenceHeader       = 1
	TypeTemporalDelimiter    = 2
	TypeFrameHeader          = 3
	TypeTileGroup            = 4
	TypeMetadata             = 5
	TypeFrame                = 6
	TypeRedundantFrameHeader = 7
	TypeTileList             = 8
	TypePadding              = 15
)

// FrameType is the frame_type syntax element (Section 6.8.2).
type FrameType uint8

const (
	FrameKey FrameType = iota
	FrameInter
	FrameIntraOnly
	FrameSwitch
)

// Reference frame types. Index 0 is intra; 1..7 are the seven reference
// slots a frame header can cite (Section 6.10.24).
const (
	ReferenceFrameNone       = -1
	ReferenceFrameIntra      = 0
	ReferenceFrameLast       = 1
	ReferenceFrameLast2      = 2
	ReferenceFrameLast3      = 3
	ReferenceFrameGolden     = 4
	ReferenceFrameBackward   = 5
	ReferenceFrameAlternate2 = 6
	ReferenceFrameAlternate  = 7

	NumReferenceFrameTypes  = 8
	NumInterReferenceFrames = 7
)

// GlobalMotionTransformationType, Section 6.8.17.
type GlobalMotionTransformationType uint8

const (
	GlobalMotionTransformationTypeIdentity GlobalMotionTransformationType = iota
	GlobalMotionTransformationTypeTranslation
	GlobalMotionTransformationTypeRotZoom
	GlobalMotionTransformationTypeAffine
)

// GlobalMotion holds one reference frame's global motion model. Params are
// in kWarpedModelPrecisionBits (16) fixed point, params[2] and params[5]
// carrying the extra (1 << 16) identity offset.
type GlobalMotion struct {
	Type   GlobalMotionTransformationType
	Params [6]int32
}

// LoopRestorationType, Section 6.10.15.
type LoopRestorationType uint8

const (
	LoopRestorationTypeNone LoopRestorationType = iota
	LoopRestorationTypeSwitchable
	LoopRestorationTypeWiener
	LoopRestorationTypeSgrProj
)

// LoopRestoration is the frame-level restoration configuration: per-plane
// filter type and restoration unit size in pixels (64, 128 or 256).
type LoopRestoration struct {
	Type     [3]LoopRestorationType
	UnitSize [3]int
}

// LoopFilter carries the frame-level deblocking parameters, Section 6.8.10.
type LoopFilter struct {
	Level        [4]int8 // Y vertical, Y horizontal, U, V
	Sharpness    int
	DeltaEnabled bool
	RefDeltas    [NumReferenceFrameTypes]int8
	ModeDeltas   [2]int8
}

// Delta is the delta_q/delta_lf presence config, Section 6.8.12/6.8.13.
type Delta struct {
	Present bool
	Scale   int
	Multi   bool
}

// Cdef carries frame-level CDEF parameters, Section 6.10.14.
type Cdef struct {
	Damping             int
	Bits                int
	YPrimaryStrength    [8]uint8
	YSecondaryStrength  [8]uint8
	UVPrimaryStrength   [8]uint8
	UVSecondaryStrength [8]uint8
}

// Segment feature indices used by the pipeline (Section 6.8.14). Only the
// loop-filter features matter to post filtering; quantizer features are
// consumed by block decode outside this module.
const (
	SegmentFeatureLoopFilterYVertical   = 1
	SegmentFeatureLoopFilterYHorizontal = 2
	SegmentFeatureLoopFilterU           = 3
	SegmentFeatureLoopFilterV           = 4

	MaxSegments       = 8
	SegmentFeatureMax = 8
)

// Segmentation holds per-segment feature enables/values.
type Segmentation struct {
	Enabled        bool
	FeatureEnabled [MaxSegments][SegmentFeatureMax]bool
	FeatureData    [MaxSegments][SegmentFeatureMax]int16
}

// ColorConfig, Section 6.4.2. Only the fields the pipeline reads.
type ColorConfig struct {
	BitDepth     int
	Monochrome   bool
	SubsamplingX int
	SubsamplingY int
	IsFullRange  bool
}

// TileInfo is the tile configuration discovered from the frame header.
type TileInfo struct {
	TileColumns int
	TileRows    int
}

// SequenceHeader is the parsed sequence header OBU (Section 6.4).
type SequenceHeader struct {
	MaxFrameWidth          int
	MaxFrameHeight         int
	Use128x128Superblock   bool
	EnableOrderHint        bool
	OrderHintBits          int
	EnableSuperRes         bool
	EnableCdef             bool
	EnableRestoration      bool
	FilmGrainParamsPresent bool
	// operating_point_idc per operating point (Section 6.4.1); zero
	// selects every layer.
	OperatingPointIdc [32]int
	ColorConfig       ColorConfig
}

// SuperResScaleNumerator is the fixed numerator of the superres scale
// (Section 5.9.8: denominators range 9..16 over a numerator of 8).
const SuperResScaleNumerator = 8

// FrameHeader is the parsed (uncompressed) frame header (Section 6.8).
type FrameHeader struct {
	Width         int // downscaled (coded) width
	Height        int
	UpscaledWidth int // equals Width when superres is off
	RenderWidth   int
	RenderHeight  int

	Rows4x4    int
	Columns4x4 int

	FrameType           FrameType
	ShowFrame           bool
	ShowableFrame       bool
	ShowExistingFrame   bool
	FrameToShow         int
	OrderHint           int
	RefreshFrameFlags   uint8
	ReferenceFrameIndex [NumInterReferenceFrames]int
	ReferenceOrderHint  [NumReferenceFrameTypes]int

	AllowHighPrecisionMv   bool
	ForceIntegerMv         bool
	UseRefFrameMvs         bool
	AllowWarpedMotion      bool
	IsMotionModeSwitchable bool

	GlobalMotion [NumReferenceFrameTypes]GlobalMotion

	LoopFilter      LoopFilter
	DeltaLf         Delta
	Cdef            Cdef
	LoopRestoration LoopRestoration
	Segmentation    Segmentation
	TileInfo        TileInfo

	// CodedLossless disables all post filters for the frame.
	CodedLossless bool
	AllowIntrabc  bool
}

// IsIntra reports whether no inter prediction occurs in the frame.
func (h *FrameHeader) IsIntra() bool {
	return h.FrameType == FrameKey || h.FrameType == FrameIntraOnly
}

// TileGroup is one tile group OBU's boundary record: the covered tile
// range and the raw payload handed to block decode.
type TileGroup struct {
	Start int
	End   int
	Data  []byte
}
