// Package frame holds the per-frame data model shared by the decode
// pipeline: bordered YUV pixel buffers, reference-counted frame buffers
// and their pool, the reference-slot decoder state, and the per-4x4 block
// parameter grids the post filters and motion vector prediction read.
package frame

// BlockSize is the prediction block size, Section 6.10.4.
type BlockSize uint8

const (
	Block4x4 BlockSize = iota
	Block4x8
	Block4x16
	Block8x4
	Block8x8
	Block8x16
	Block8x32
	Block16x4
	Block16x8
	Block16x16
	Block16x32
	Block16x64
	Block32x8
	Block32x16
	Block32x32
	Block32x64
	Block64x16
	Block64x32
	Block64x64
	Block64x128
	Block128x64
	Block128x128

	NumBlockSizes
)

// Block dimensions in 4x4 units.
var kNum4x4BlocksWide = [NumBlockSizes]int{
	1, 1, 1, 2, 2, 2, 2, 4, 4, 4, 4, 4, 8, 8, 8, 8, 16, 16, 16, 16, 32, 32,
}

var kNum4x4BlocksHigh = [NumBlockSizes]int{
	1, 2, 4, 1, 2, 4, 8, 1, 2, 4, 8, 16, 2, 4, 8, 16, 4, 8, 16, 32, 16, 32,
}

// Width4x4 returns the block width in 4x4 units.
func (s BlockSize) Width4x4() int { return kNum4x4BlocksWide[s] }

// Height4x4 returns the block height in 4x4 units.
func (s BlockSize) Height4x4() int { return kNum4x4BlocksHigh[s] }

// Width returns the block width in pixels.
func (s BlockSize) Width() int { return kNum4x4BlocksWide[s] * 4 }

// Height returns the block height in pixels.
func (s BlockSize) Height() int { return kNum4x4BlocksHigh[s] * 4 }

// TransformSize, Section 6.10.20.
type TransformSize uint8

const (
	Transform4x4 TransformSize = iota
	Transform4x8
	Transform4x16
	Transform8x4
	Transform8x8
	Transform8x16
	Transform8x32
	Transform16x4
	Transform16x8
	Transform16x16
	Transform16x32
	Transform16x64
	Transform32x8
	Transform32x16
	Transform32x32
	Transform32x64
	Transform64x16
	Transform64x32
	Transform64x64

	NumTransformSizes
)

var kTransformWidth = [NumTransformSizes]int{
	4, 4, 4, 8, 8, 8, 8, 16, 16, 16, 16, 16, 32, 32, 32, 32, 64, 64, 64,
}

var kTransformHeight = [NumTransformSizes]int{
	4, 8, 16, 4, 8, 16, 32, 4, 8, 16, 32, 64, 8, 16, 32, 64, 16, 32, 64,
}

// Width returns the transform width in pixels.
func (s TransformSize) Width() int { return kTransformWidth[s] }

// Height returns the transform height in pixels.
func (s TransformSize) Height() int { return kTransformHeight[s] }

// PredictionMode covers the modes the pipeline distinguishes. Intra modes
// are collapsed into one value; what matters downstream is newness and
// globalness of the motion (Section 6.10.24).
type PredictionMode uint8

const (
	PredictionModeIntra PredictionMode = iota
	PredictionModeNearestMv
	PredictionModeNearMv
	PredictionModeGlobalMv
	PredictionModeNewMv
	PredictionModeNearestNearestMv
	PredictionModeNearNearMv
	PredictionModeNearestNewMv
	PredictionModeNewNearestMv
	PredictionModeNearNewMv
	PredictionModeNewNearMv
	PredictionModeGlobalGlobalMv
	PredictionModeNewNewMv
)

// HasNewMv reports whether the mode codes at least one new motion vector.
func (m PredictionMode) HasNewMv() bool {
	switch m {
	case PredictionModeNewMv, PredictionModeNewNearestMv, PredictionModeNearestNewMv,
		PredictionModeNewNearMv, PredictionModeNearNewMv, PredictionModeNewNewMv:
		return true
	}
	return false
}

// IsGlobal reports whether the mode uses the global motion model.
func (m PredictionMode) IsGlobal() bool {
	return m == PredictionModeGlobalMv || m == PredictionModeGlobalGlobalMv
}

// MotionVector is a motion vector in 1/8 pel units. Row is vertical.
type MotionVector struct {
	Row int16
	Col int16
}

// IsZero reports whether both components are zero.
func (m MotionVector) IsZero() bool { return m.Row == 0 && m.Col == 0 }

// CompoundMotionVector pairs the two per-reference motion vectors of a
// (possibly compound) block. Single-reference blocks use index 0 only.
type CompoundMotionVector [2]MotionVector

// BlockParameters is the per-block decode output the post filters and
// motion vector prediction consume. One instance is shared by every 4x4
// cell the block covers.
type BlockParameters struct {
	Size            BlockSize
	SegmentID       int8
	Skip            bool
	IsInter         bool
	IsGlobalMvBlock bool
	PredictionMode  PredictionMode
	ReferenceFrame  [2]int8
	Mv              CompoundMotionVector
	TransformSize   TransformSize
	UVTransformSize TransformSize

	// Per-frame deblock strength: Y vertical, Y horizontal, U, V.
	DeblockFilterLevel [4]uint8
}

// BlockParametersHolder is the frame-sized grid of 4x4 cells, each
// pointing at the BlockParameters of the block covering it.
type BlockParametersHolder struct {
	Rows4x4    int
	Columns4x4 int
	grid       []*BlockParameters
}

// NewBlockParametersHolder allocates a grid for the given frame size.
func NewBlockParametersHolder(rows4x4, columns4x4 int) *BlockParametersHolder {
	return &BlockParametersHolder{
		Rows4x4:    rows4x4,
		Columns4x4: columns4x4,
		grid:       make([]*BlockParameters, rows4x4*columns4x4),
	}
}

// Find returns the parameters covering the 4x4 cell, or nil outside the
// filled region.
func (h *BlockParametersHolder) Find(row4x4, column4x4 int) *BlockParameters {
	if row4x4 < 0 || row4x4 >= h.Rows4x4 || column4x4 < 0 || column4x4 >= h.Columns4x4 {
		return nil
	}
	return h.grid[row4x4*h.Columns4x4+column4x4]
}

// FillRect points every cell covered by a block at its parameters. The
// rectangle is clipped to the frame.
func (h *BlockParametersHolder) FillRect(row4x4, column4x4 int, bp *BlockParameters) {
	h2 := min(bp.Size.Height4x4(), h.Rows4x4-row4x4)
	w := min(bp.Size.Width4x4(), h.Columns4x4-column4x4)
	for y := 0; y < h2; y++ {
		row := h.grid[(row4x4+y)*h.Columns4x4+column4x4:]
		for x := 0; x < w; x++ {
			row[x] = bp
		}
	}
}

// SegmentationMap stores the per-4x4 segment ids of a frame. It is copied
// forward when the next frame predicts segmentation from this one.
type SegmentationMap struct {
	Rows4x4    int
	Columns4x4 int
	ids        []int8
}

// NewSegmentationMap allocates a zeroed map.
func NewSegmentationMap(rows4x4, columns4x4 int) *SegmentationMap {
	return &SegmentationMap{
		Rows4x4:    rows4x4,
		Columns4x4: columns4x4,
		ids:        make([]int8, rows4x4*columns4x4),
	}
}

// Get returns the segment id at a 4x4 position.
func (m *SegmentationMap) Get(row4x4, column4x4 int) int8 {
	return m.ids[row4x4*m.Columns4x4+column4x4]
}

// Set writes the segment id at a 4x4 position.
func (m *SegmentationMap) Set(row4x4, column4x4 int, id int8) {
	m.ids[row4x4*m.Columns4x4+column4x4] = id
}

// CopyFrom copies another map of the same geometry.
func (m *SegmentationMap) CopyFrom(src *SegmentationMap) {
	copy(m.ids, src.ids)
}

// TemporalMotionField is the per-8x8 projected motion field used by
// temporal MV prediction (Section 7.9). RefOffset < 0 marks a cell with
// no projected motion.
type TemporalMotionField struct {
	Rows8x8    int
	Columns8x8 int
	Mv         []MotionVector
	RefOffset  []int8
}

// NewTemporalMotionField allocates a field with every cell invalid.
func NewTemporalMotionField(rows8x8, columns8x8 int) *TemporalMotionField {
	f := &TemporalMotionField{
		Rows8x8:    rows8x8,
		Columns8x8: columns8x8,
		Mv:         make([]MotionVector, rows8x8*columns8x8),
		RefOffset:  make([]int8, rows8x8*columns8x8),
	}
	f.Invalidate()
	return f
}

// Invalidate marks every cell as holding no projected motion.
func (f *TemporalMotionField) Invalidate() {
	for i := range f.RefOffset {
		f.RefOffset[i] = -1
	}
}

// Index returns the flat index of an 8x8 cell.
func (f *TemporalMotionField) Index(row8x8, column8x8 int) int {
	return row8x8*f.Columns8x8 + column8x8
}
