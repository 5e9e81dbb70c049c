package postfilter

import (
	"sync/atomic"

	"github.com/deepteams/av1/internal/dsp"
	"github.com/deepteams/av1/internal/frame"
	"github.com/deepteams/av1/internal/obu"
	"github.com/deepteams/av1/internal/threading"
)

// Deblocking, Section 7.14: per-edge filtering in two directional passes.
// Vertical edges first, using only leftward context inside the same
// superblock row; then horizontal edges, which read the fully filtered
// row above. Per-block strengths are folded once by
// ComputeDeblockFilterLevels; the threshold tables derive once per frame
// from the sharpness syntax element.

// ComputeDeblockFilterLevels derives the four per-block deblock strengths
// (Y vertical, Y horizontal, U, V) from the frame base levels, the
// per-frame delta-lf values, the segment's loop filter features and the
// reference/mode deltas (Section 7.14.4).
func ComputeDeblockFilterLevels(h *obu.FrameHeader, segmentID int8, ref int8,
	modeDelta int, deltaLf [4]int) [4]uint8 {

	var out [4]uint8
	for i := 0; i < 4; i++ {
		level := dsp.Clip3(int(h.LoopFilter.Level[i])+deltaLf[i], 0, 63)
		feature := obu.SegmentFeatureLoopFilterYVertical + i
		if h.Segmentation.Enabled && h.Segmentation.FeatureEnabled[segmentID][feature] {
			level = dsp.Clip3(level+int(h.Segmentation.FeatureData[segmentID][feature]), 0, 63)
		}
		if h.LoopFilter.DeltaEnabled {
			delta := int(h.LoopFilter.RefDeltas[ref])
			if ref != obu.ReferenceFrameIntra {
				delta += int(h.LoopFilter.ModeDeltas[modeDelta])
			}
			level = dsp.Clip3(level+delta*(1<<uint(level>>5)), 0, 63)
		}
		out[i] = uint8(level)
	}
	return out
}

// initDeblockThresholds fills the per-level outer/inner/high-edge-variance
// threshold tables from the sharpness parameter (Section 7.14.4).
func (p *PostFilter) initDeblockThresholds() {
	sharpness := p.header.LoopFilter.Sharpness
	shift := 0
	if sharpness > 4 {
		shift = 2
	} else if sharpness > 0 {
		shift = 1
	}
	for level := 0; level < 64; level++ {
		limit := level
		if sharpness > 0 {
			limit = dsp.Clip3(level>>shift, 1, 9-sharpness)
		}
		if limit < 1 {
			limit = 1
		}
		p.innerThresh[level] = limit
		p.outerThresh[level] = 2*(level+2) + limit
		p.hevThresh[level] = level >> 4
	}
}

// filterLength picks the tap count for one edge from the smaller of the
// two adjoining transform dimensions. Luma uses 4, 8 or 14 taps; chroma
// caps at 6 (Section 7.14.5).
func filterLength(plane int, cur, prev frame.TransformSize, vertical bool) int {
	var curDim, prevDim int
	if vertical {
		curDim, prevDim = cur.Width(), prev.Width()
	} else {
		curDim, prevDim = cur.Height(), prev.Height()
	}
	m := min(curDim, prevDim)
	if plane == 0 {
		switch {
		case m >= 16:
			return 14
		case m >= 8:
			return 8
		default:
			return 4
		}
	}
	if m >= 8 {
		return 6
	}
	return 4
}

// edgeMasks classifies an edge into the transform-size mask category the
// bitmask builder uses. The categories partition the filter lengths, so
// exactly one is set for any edge: 4-tap edges, the 8-tap band (which
// also covers the chroma 6-tap), and the wide 14-tap luma filter.
func edgeMasks(length int) (mask4x4, mask8x8, mask16x16 bool) {
	switch length {
	case 4:
		mask4x4 = true
	case 6, 8:
		mask8x8 = true
	default:
		mask16x16 = true
	}
	return mask4x4, mask8x8, mask16x16
}

func loopFilterSize(length int) dsp.LoopFilterSize {
	switch length {
	case 4:
		return dsp.LoopFilterSize4
	case 6:
		return dsp.LoopFilterSize6
	case 8:
		return dsp.LoopFilterSize8
	default:
		return dsp.LoopFilterSize14
	}
}

// deblockSuperBlockRow runs both directional passes over one superblock
// row. The horizontal pass touches pixels above the row's top boundary,
// which is why the remaining filter stages lag one row behind.
func (p *PostFilter) deblockSuperBlockRow(row4x4 int) {
	endRow4x4 := min(row4x4+superBlockSize4x4, p.blocks.Rows4x4)
	for plane := 0; plane < p.frame.Planes(); plane++ {
		p.deblockVerticalPlane(plane, row4x4, endRow4x4, 0, p.blocks.Columns4x4)
	}
	for plane := 0; plane < p.frame.Planes(); plane++ {
		p.deblockHorizontalPlane(plane, row4x4, endRow4x4, 0, p.blocks.Columns4x4)
	}
}

// deblockThreaded runs the vertical pass with one job per superblock row,
// joins on a full barrier, then the horizontal pass with one job per
// superblock column. The split differs per pass so a job only ever writes
// its own stripe: a vertical edge writes across columns but stays inside
// its 4 rows, a horizontal edge writes across rows but stays inside its 4
// columns. The barrier between them is frame-wide because a horizontal
// edge reads vertically filtered pixels from the row above.
func (p *PostFilter) deblockThreaded() {
	p.deblockPassThreaded(p.sb64Rows, func(job int) {
		start := job * superBlockSize4x4
		end := min(start+superBlockSize4x4, p.blocks.Rows4x4)
		for plane := 0; plane < p.frame.Planes(); plane++ {
			p.deblockVerticalPlane(plane, start, end, 0, p.blocks.Columns4x4)
		}
	})
	p.deblockPassThreaded(p.sb64Columns, func(job int) {
		start := job * superBlockSize4x4
		end := min(start+superBlockSize4x4, p.blocks.Columns4x4)
		for plane := 0; plane < p.frame.Planes(); plane++ {
			p.deblockHorizontalPlane(plane, 0, p.blocks.Rows4x4, start, end)
		}
	})
}

func (p *PostFilter) deblockPassThreaded(jobs int, run func(job int)) {
	var jobCounter atomic.Int32
	barrier := threading.NewBlockingCounter(p.pool.NumThreads())
	for i := 0; i < p.pool.NumThreads(); i++ {
		p.pool.Schedule(func() {
			for {
				job := int(jobCounter.Add(1)) - 1
				if job >= jobs {
					break
				}
				run(job)
			}
			barrier.Decrement()
		})
	}
	barrier.Wait()
}

func (p *PostFilter) deblockVerticalPlane(plane, startRow4x4, endRow4x4,
	startColumn4x4, endColumn4x4 int) {

	ssX, ssY := p.frame.SubsamplingForPlane(plane)
	rowsP := (p.blocks.Rows4x4 + ssY) >> ssY
	colsP := min((endColumn4x4+ssX)>>ssX, (p.blocks.Columns4x4+ssX)>>ssX)
	startP := startRow4x4 >> ssY
	endP := min((endRow4x4+ssY)>>ssY, rowsP)
	data := p.frame.Data(plane)
	stride := p.frame.Stride(plane)
	levelIndex := 0
	if plane > 0 {
		levelIndex = plane + 1
	}

	for yP := startP; yP < endP; yP++ {
		lumaRow := yP << ssY
		xP := startColumn4x4 >> ssX
		for xP < colsP {
			bp := p.blocks.Find(lumaRow, xP<<ssX)
			if bp == nil {
				break
			}
			tx := bp.TransformSize
			if plane > 0 {
				tx = bp.UVTransformSize
			}
			if xP > 0 {
				prev := p.blocks.Find(lumaRow, (xP<<ssX)-1)
				if prev != nil {
					p.filterEdge(plane, dsp.LoopFilterTypeVertical, levelIndex,
						bp, prev, tx, data, p.frame.Offset(plane, xP*4, yP*4), stride)
				}
			}
			xP += max(1, tx.Width()/4)
		}
	}
}

func (p *PostFilter) deblockHorizontalPlane(plane, startRow4x4, endRow4x4,
	startColumn4x4, endColumn4x4 int) {

	ssX, ssY := p.frame.SubsamplingForPlane(plane)
	rowsP := (p.blocks.Rows4x4 + ssY) >> ssY
	colsP := min((endColumn4x4+ssX)>>ssX, (p.blocks.Columns4x4+ssX)>>ssX)
	startP := startRow4x4 >> ssY
	endP := min((endRow4x4+ssY)>>ssY, rowsP)
	data := p.frame.Data(plane)
	stride := p.frame.Stride(plane)
	levelIndex := 1
	if plane > 0 {
		levelIndex = plane + 1
	}

	for xP := startColumn4x4 >> ssX; xP < colsP; xP++ {
		lumaColumn := xP << ssX
		yP := startP
		for yP < endP {
			bp := p.blocks.Find(yP<<ssY, lumaColumn)
			if bp == nil {
				break
			}
			tx := bp.TransformSize
			if plane > 0 {
				tx = bp.UVTransformSize
			}
			if yP > 0 {
				prev := p.blocks.Find((yP<<ssY)-1, lumaColumn)
				if prev != nil {
					p.filterEdge(plane, dsp.LoopFilterTypeHorizontal, levelIndex,
						bp, prev, tx, data, p.frame.Offset(plane, xP*4, yP*4), stride)
				}
			}
			yP += max(1, tx.Height()/4)
		}
	}
}

// filterEdge applies one 4-line edge segment: resolve the strength with
// the zero-level fallback to the neighbor, apply the skip rule, pick the
// tap count from the adjoining transforms and dispatch.
func (p *PostFilter) filterEdge(plane int, typ dsp.LoopFilterType, levelIndex int,
	bp, prev *frame.BlockParameters, tx frame.TransformSize,
	data []byte, offset, stride int) {

	level := int(bp.DeblockFilterLevel[levelIndex])
	if level == 0 {
		level = int(prev.DeblockFilterLevel[levelIndex])
	}
	if level == 0 {
		return
	}
	// Interior edges of skipped inter blocks carry no reconstruction
	// discontinuity and are left alone.
	if bp.Skip && bp.IsInter && prev.Skip && prev.IsInter && bp == prev {
		return
	}
	prevTx := prev.TransformSize
	if plane > 0 {
		prevTx = prev.UVTransformSize
	}
	length := filterLength(plane, tx, prevTx, typ == dsp.LoopFilterTypeVertical)
	dsp.LoopFilters[loopFilterSize(length)][typ](data, offset, stride,
		p.outerThresh[level], p.innerThresh[level], p.hevThresh[level])
}
