package mv

import (
	"github.com/deepteams/av1/internal/frame"
	"github.com/deepteams/av1/internal/obu"
)

// Motion field projection, Section 7.9: before a frame decodes, the
// motion of up to three reference frames is projected along the time
// axis into the current frame's 8x8 temporal motion field.

const (
	// A projected cell may land at most this many 8-pixel units outside
	// its own 64-pixel column; vertical overshoot is not allowed.
	projectionMaxHorizontalOffset8 = 1

	// How many references beyond the first may be projected.
	projectionBudget = 2
)

// SetupMotionField fills rows [row8Start, row8End) of the temporal
// motion field from the reference frames the current header can reach.
// References are tried in the fixed order last, backward, alternate2,
// alternate, last2 until the projection budget is spent.
func SetupMotionField(header *obu.FrameHeader, state *frame.DecoderState,
	field *frame.TemporalMotionField, orderHintBits, row8Start, row8End int) {

	for row8 := row8Start; row8 < row8End; row8++ {
		base := field.Index(row8, 0)
		for i := 0; i < field.Columns8x8; i++ {
			field.RefOffset[base+i] = -1
		}
	}
	if orderHintBits == 0 || header.IsIntra() {
		return
	}

	refStamp := projectionBudget

	// The last reference adds nothing when its own alternate frame is the
	// current golden frame: that motion already flowed through golden.
	lastBuf := state.Reference(header, obu.ReferenceFrameLast)
	if lastBuf != nil {
		goldenHint := state.OrderHintOf(header, obu.ReferenceFrameGolden)
		if lastBuf.ReferenceOrderHints[obu.ReferenceFrameAlternate] != goldenHint {
			if projectReference(header, state, field, lastBuf, obu.ReferenceFrameLast,
				orderHintBits, row8Start, row8End) {
				refStamp--
			}
		}
	}

	for _, refType := range [4]int{
		obu.ReferenceFrameBackward,
		obu.ReferenceFrameAlternate2,
		obu.ReferenceFrameAlternate,
		obu.ReferenceFrameLast2,
	} {
		if refStamp < 0 {
			break
		}
		buf := state.Reference(header, refType)
		if buf == nil {
			continue
		}
		if projectReference(header, state, field, buf, refType,
			orderHintBits, row8Start, row8End) {
			refStamp--
		}
	}
}

// projectReference walks one reference frame's saved 8x8 motion and
// scatters each cell to where that motion lands in the current frame.
// The stored vector and the reference's own frame distance are kept, not
// the projection; FindMvStack rescales per block reference.
func projectReference(header *obu.FrameHeader, state *frame.DecoderState,
	field *frame.TemporalMotionField, ref *frame.RefCountedBuffer, refType int,
	orderHintBits, row8Start, row8End int) bool {

	if ref.MotionFieldMv == nil || ref.MotionFieldRef == nil {
		return false
	}
	refToCurrent := frame.GetRelativeDistance(
		state.OrderHintOf(header, refType), header.OrderHint, orderHintBits)
	if abs(refToCurrent) > maxFrameDistance {
		return false
	}

	refHint := state.OrderHintOf(header, refType)
	columns8 := field.Columns8x8
	refColumns8 := (ref.Columns4x4 + 1) >> 1
	refRows8 := (ref.Rows4x4 + 1) >> 1

	for y8 := 0; y8 < refRows8; y8++ {
		for x8 := 0; x8 < refColumns8; x8++ {
			srcIdx := y8*refColumns8 + x8
			srcRef := ref.MotionFieldRef[srcIdx]
			if srcRef < 0 {
				continue
			}
			refOffset := frame.GetRelativeDistance(refHint,
				ref.ReferenceOrderHints[srcRef], orderHintBits)
			if refOffset <= 0 || refOffset > maxFrameDistance {
				continue
			}
			mv := ref.MotionFieldMv[srcIdx]
			proj := Project(mv, refToCurrent, refOffset)

			dstY8 := y8 + (int(proj.Row) >> 6)
			dstX8 := x8 + (int(proj.Col) >> 6)
			if dstY8 < row8Start || dstY8 >= row8End ||
				!withinProjectionRange(dstY8, y8, 0) {
				continue
			}
			if dstX8 < 0 || dstX8 >= columns8 ||
				!withinProjectionRange(dstX8, x8, projectionMaxHorizontalOffset8) {
				continue
			}
			dstIdx := field.Index(dstY8, dstX8)
			field.Mv[dstIdx] = mv
			field.RefOffset[dstIdx] = int8(refOffset)
		}
	}
	return true
}

// withinProjectionRange limits how far a projected cell may stray from
// the 64-pixel tile of its source cell.
func withinProjectionRange(dst8, src8, maxOffset8 int) bool {
	base8 := (src8 >> 3) << 3
	return dst8 >= base8-maxOffset8 && dst8 < base8+8+maxOffset8
}
