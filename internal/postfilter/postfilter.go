// Package postfilter runs the post-reconstruction filter graph over a
// decoded frame: deblocking, CDEF, super resolution and loop restoration,
// in that fixed order (Section 7.14 through 7.17), pipelined by 64-pixel
// superblock row with a one-row lag between deblocking and the remaining
// stages.
package postfilter

import (
	"github.com/deepteams/av1/internal/dsp"
	"github.com/deepteams/av1/internal/frame"
	"github.com/deepteams/av1/internal/obu"
	"github.com/deepteams/av1/internal/threading"
)

// Post-filter mask bits, one per stage.
const (
	MaskDeblock     = 1 << 0
	MaskCdef        = 1 << 1
	MaskSuperRes    = 1 << 2
	MaskRestoration = 1 << 3
	// Film grain is accepted in the mask but synthesis is not performed;
	// the bit only keeps caller masks portable.
	MaskFilmGrain = 1 << 4

	MaskAll = MaskDeblock | MaskCdef | MaskSuperRes | MaskRestoration | MaskFilmGrain
)

// One superblock row is 64 pixels: 16 4x4 units.
const (
	superBlockSize    = 64
	superBlockSize4x4 = 16
)

// RestorationInfo holds the per-plane grids of coded loop restoration
// unit parameters, row-major.
type RestorationInfo struct {
	UnitInfo     [frame.MaxPlanes][]dsp.RestorationUnitInfo
	UnitRows     [frame.MaxPlanes]int
	UnitsPerRow  [frame.MaxPlanes]int
}

// NumRestorationUnits returns how many restoration units cover a plane
// dimension: a trailing remainder of at least half a unit gets its own
// unit, anything smaller merges into the last (Section 6.10.15).
func NumRestorationUnits(size, unitSize int) int {
	return max(1, (size+unitSize/2)/unitSize)
}

// Allocate sizes the grids for a frame.
func (r *RestorationInfo) Allocate(buf *frame.YuvBuffer, lr *obu.LoopRestoration) {
	for plane := 0; plane < buf.Planes(); plane++ {
		if lr.Type[plane] == obu.LoopRestorationTypeNone {
			r.UnitRows[plane] = 0
			r.UnitsPerRow[plane] = 0
			r.UnitInfo[plane] = nil
			continue
		}
		unitSize := lr.UnitSize[plane]
		r.UnitsPerRow[plane] = NumRestorationUnits(buf.UpscaledPlaneWidth(plane), unitSize)
		r.UnitRows[plane] = NumRestorationUnits(buf.PlaneHeight(plane), unitSize)
		n := r.UnitRows[plane] * r.UnitsPerRow[plane]
		if len(r.UnitInfo[plane]) < n {
			r.UnitInfo[plane] = make([]dsp.RestorationUnitInfo, n)
		}
	}
}

// Unit returns the coded parameters of one restoration unit.
func (r *RestorationInfo) Unit(plane, unitRow, unitColumn int) *dsp.RestorationUnitInfo {
	return &r.UnitInfo[plane][unitRow*r.UnitsPerRow[plane]+unitColumn]
}

// Config wires a PostFilter to one frame's decode output.
type Config struct {
	Header      *obu.FrameHeader
	Frame       *frame.YuvBuffer
	Blocks      *frame.BlockParametersHolder
	Restoration *RestorationInfo
	// Per-64x64 coded CDEF filter indices, row-major over the superblock
	// grid. May be nil when CDEF is disabled.
	CdefIndex []int8
	Pool      *threading.Pool
	Mask      uint8
	// Progress sink for frame-parallel waiters; may be nil.
	Current *frame.RefCountedBuffer
}

// PostFilter applies the filter graph to one frame in place.
type PostFilter struct {
	header      *obu.FrameHeader
	frame       *frame.YuvBuffer
	blocks      *frame.BlockParametersHolder
	restoration *RestorationInfo
	cdefIndex   []int8
	pool        *threading.Pool
	mask        uint8
	current     *frame.RefCountedBuffer

	sb64Columns int
	sb64Rows    int

	outerThresh [64]int
	innerThresh [64]int
	hevThresh   [64]int

	// Rolling stores, one row group per 64-pixel band per plane.
	// deblockStore keeps the four deblocked-but-pre-CDEF rows loop
	// restoration needs around each band boundary; cdefTop keeps the two
	// pre-CDEF rows above the current band for the band's working window,
	// with cdefNext staging the rows for the band below until the swap.
	deblockStore [frame.MaxPlanes][]byte
	cdefTop      [frame.MaxPlanes][]byte
	cdefNext     [frame.MaxPlanes][]byte

	// Per-plane pre-CDEF working window of the current band, 2-pixel
	// padded, at the coded (pre-superres) width.
	cdefWindow [frame.MaxPlanes][]uint16

	superResStep    [frame.MaxPlanes]int
	superResInitial [frame.MaxPlanes]int

	restorationScratch dsp.RestorationBuffer
	restorationInput   []byte
}

// New builds a PostFilter for one frame. Stages whose mask bit is clear,
// or whose frame header carries only trivial parameters, become no-ops.
func New(cfg Config) *PostFilter {
	p := &PostFilter{
		header:      cfg.Header,
		frame:       cfg.Frame,
		blocks:      cfg.Blocks,
		restoration: cfg.Restoration,
		cdefIndex:   cfg.CdefIndex,
		pool:        cfg.Pool,
		mask:        cfg.Mask,
		current:     cfg.Current,
	}
	p.sb64Columns = (cfg.Frame.Width + superBlockSize - 1) / superBlockSize
	p.sb64Rows = (cfg.Frame.Height + superBlockSize - 1) / superBlockSize
	p.initDeblockThresholds()

	for plane := 0; plane < cfg.Frame.Planes(); plane++ {
		width := cfg.Frame.UpscaledPlaneWidth(plane)
		if p.DoRestoration() || p.DoCdef() {
			bands := (cfg.Frame.PlaneHeight(plane) + bandHeight(plane, cfg.Frame) - 1) /
				bandHeight(plane, cfg.Frame)
			p.deblockStore[plane] = make([]byte, 4*bands*width)
			p.cdefTop[plane] = make([]byte, 2*width)
			p.cdefNext[plane] = make([]byte, 2*width)
		}
		if p.DoCdef() {
			winStride := cfg.Frame.PlaneWidth(plane) + 2*cdefBorder
			p.cdefWindow[plane] = make([]uint16,
				(bandHeight(plane, cfg.Frame)+2*cdefBorder)*winStride)
		}
		if p.DoSuperRes() {
			p.superResStep[plane], p.superResInitial[plane] = dsp.SuperResCoefficients(
				width, cfg.Frame.PlaneWidth(plane))
		}
	}
	return p
}

// DoDeblock reports whether the deblocking stage runs.
func (p *PostFilter) DoDeblock() bool {
	if p.mask&MaskDeblock == 0 {
		return false
	}
	lf := &p.header.LoopFilter
	return lf.Level[0] != 0 || lf.Level[1] != 0 || lf.Level[2] != 0 || lf.Level[3] != 0
}

// DoCdef reports whether the CDEF stage runs.
func (p *PostFilter) DoCdef() bool {
	if p.mask&MaskCdef == 0 {
		return false
	}
	c := &p.header.Cdef
	if c.Bits > 0 {
		return true
	}
	return c.YPrimaryStrength[0] != 0 || c.YSecondaryStrength[0] != 0 ||
		c.UVPrimaryStrength[0] != 0 || c.UVSecondaryStrength[0] != 0
}

// DoSuperRes reports whether horizontal upscaling runs.
func (p *PostFilter) DoSuperRes() bool {
	return p.mask&MaskSuperRes != 0 && p.frame.UpscaledWidth != p.frame.Width
}

// DoRestoration reports whether loop restoration runs for any plane.
func (p *PostFilter) DoRestoration() bool {
	if p.mask&MaskRestoration == 0 {
		return false
	}
	lr := &p.header.LoopRestoration
	for plane := 0; plane < p.frame.Planes(); plane++ {
		if lr.Type[plane] != obu.LoopRestorationTypeNone {
			return true
		}
	}
	return false
}

// bandHeight is the filter band height of a plane in its own pixels.
func bandHeight(plane int, buf *frame.YuvBuffer) int {
	_, ssY := buf.SubsamplingForPlane(plane)
	return superBlockSize >> ssY
}

// ApplyFilteringForOneSuperBlockRow runs the pipelined filter step for
// the superblock row starting at row4x4: the row is deblocked, and the
// previous row, whose bottom context is now final, runs the remaining
// stages. Returns the first pixel row not yet fully filtered, for
// frame-parallel progress tracking.
func (p *PostFilter) ApplyFilteringForOneSuperBlockRow(row4x4 int, isLastRow bool) int {
	if p.DoDeblock() {
		p.deblockSuperBlockRow(row4x4)
	}
	p.storeDeblockedRows(row4x4)

	band := row4x4 / superBlockSize4x4
	if band > 0 {
		p.applyRemainingFilters(band - 1)
	}
	progress := band * superBlockSize
	if band > 0 {
		progress = band*superBlockSize - restorationUnitOffset
	}
	if isLastRow {
		p.applyRemainingFilters(band)
		p.ExtendBordersForReferenceFrame()
		progress = p.frame.Height
	}
	p.setProgress(progress)
	return progress
}

// ApplyFiltering runs the whole filter graph over the frame, using the
// worker pool per stage when one is present.
func (p *PostFilter) ApplyFiltering() {
	if p.pool != nil && p.pool.NumThreads() > 1 {
		p.applyFilteringThreaded()
		return
	}
	for band := 0; band < p.sb64Rows; band++ {
		row4x4 := band * superBlockSize4x4
		p.ApplyFilteringForOneSuperBlockRow(row4x4, band == p.sb64Rows-1)
	}
}

func (p *PostFilter) applyFilteringThreaded() {
	if p.DoDeblock() {
		p.deblockThreaded()
	}
	for band := 0; band < p.sb64Rows; band++ {
		p.storeDeblockedRows(band * superBlockSize4x4)
	}
	if p.DoCdef() {
		p.cdefThreaded()
	}
	if p.DoSuperRes() {
		p.superResThreaded()
	}
	if p.DoRestoration() {
		p.restorationThreaded()
	}
	p.ExtendBordersForReferenceFrame()
	p.setProgress(p.frame.Height)
}

// applyRemainingFilters runs CDEF, super resolution and loop restoration
// for one 64-pixel band whose deblock context is complete.
func (p *PostFilter) applyRemainingFilters(band int) {
	if p.DoCdef() {
		p.applyCdefBand(band)
	}
	if p.DoSuperRes() {
		p.applySuperResBand(band)
	}
	if p.DoRestoration() {
		p.applyRestorationBand(band)
	}
}

func (p *PostFilter) setProgress(row int) {
	if p.current != nil {
		p.current.SetProgress(row)
	}
}

// ExtendBordersForReferenceFrame replicates the frame edges into the
// allocation border so motion compensation of later frames can read past
// the frame bounds: left and right first, then full bordered rows up and
// down.
func (p *PostFilter) ExtendBordersForReferenceFrame() {
	for plane := 0; plane < p.frame.Planes(); plane++ {
		width := p.frame.UpscaledPlaneWidth(plane)
		height := p.frame.PlaneHeight(plane)
		stride := p.frame.Stride(plane)
		data := p.frame.Data(plane)
		origin := p.frame.Origin(plane)
		leftBorder := origin % stride
		topBorder := origin / stride
		rightBorder := stride - leftBorder - width

		for y := 0; y < height; y++ {
			rowStart := origin + y*stride
			first := data[rowStart]
			for x := 1; x <= leftBorder; x++ {
				data[rowStart-x] = first
			}
			last := data[rowStart+width-1]
			for x := 0; x < rightBorder; x++ {
				data[rowStart+width+x] = last
			}
		}
		top := origin - leftBorder
		for y := 1; y <= topBorder; y++ {
			copy(data[top-y*stride:top-y*stride+stride], data[top:top+stride])
		}
		bottom := top + (height-1)*stride
		maxDown := (len(data) - bottom - stride) / stride
		for y := 1; y <= maxDown; y++ {
			copy(data[bottom+y*stride:bottom+y*stride+stride], data[bottom:bottom+stride])
		}
	}
}
