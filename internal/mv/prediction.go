// Package mv implements motion vector prediction: the reference MV stack
// search (Section 7.10.2), global motion setup, temporal projection of
// reference frame motion (Section 7.9), and warp sample collection
// (Section 7.10.4).
package mv

import (
	"github.com/deepteams/av1/internal/dsp"
	"github.com/deepteams/av1/internal/frame"
	"github.com/deepteams/av1/internal/obu"
)

const (
	// MaxStackSize is the capacity of the reference MV stack.
	MaxStackSize = 8

	// Border is how far, in 1/8 pel units, a predicted block may reach
	// beyond the frame edge.
	Border = 128

	maxFrameDistance       = 31
	projectionMvClamp      = (1 << 14) - 1
	projectionDivisionBits = 14
)

// projectionDivisionLookup[k] approximates 2^14 / k for the frame
// distances temporal projection divides by.
var projectionDivisionLookup [maxFrameDistance + 1]int32

func init() {
	for k := 1; k <= maxFrameDistance; k++ {
		projectionDivisionLookup[k] = int32((1 << projectionDivisionBits) / k)
	}
}

// Block identifies the block whose motion is being predicted.
type Block struct {
	Row4x4, Column4x4   int
	Width4x4, Height4x4 int
	ReferenceFrame      [2]int8
}

// MvContexts are the entropy coding contexts FindMvStack derives while
// searching (Section 7.10.2.1).
type MvContexts struct {
	ZeroMv      int
	NewMv       int
	ReferenceMv int
}

// Stack is the result of a reference MV stack search: up to eight
// candidates ordered by weight, the nearest-neighbor count, the block's
// global motion vectors and the derived coding contexts.
type Stack struct {
	Candidates   [MaxStackSize]frame.CompoundMotionVector
	Weights      [MaxStackSize]int
	NumFound     int
	NearestCount int
	GlobalMv     [2]frame.MotionVector
	Contexts     MvContexts
}

func (s *Stack) add(cand frame.CompoundMotionVector, weight int) {
	for i := 0; i < s.NumFound; i++ {
		if s.Candidates[i] == cand {
			s.Weights[i] += weight
			return
		}
	}
	if s.NumFound >= MaxStackSize {
		return
	}
	s.Candidates[s.NumFound] = cand
	s.Weights[s.NumFound] = weight
	s.NumFound++
}

// Predictor carries the frame-level state motion vector prediction reads:
// the frame header, the block parameter grid filled so far, the projected
// temporal motion field and the per-reference frame distances.
type Predictor struct {
	header        *obu.FrameHeader
	blocks        *frame.BlockParametersHolder
	motionField   *frame.TemporalMotionField
	orderHintBits int

	// Signed distance from the current frame to each logical reference,
	// and whether that reference lies in the future (display order).
	refDistance [obu.NumReferenceFrameTypes]int
	signBias    [obu.NumReferenceFrameTypes]bool
}

// NewPredictor builds a predictor for one frame. refOrderHints holds the
// order hint of each logical reference type; index 0 (intra) is unused.
func NewPredictor(header *obu.FrameHeader, blocks *frame.BlockParametersHolder,
	motionField *frame.TemporalMotionField, orderHintBits int,
	refOrderHints [obu.NumReferenceFrameTypes]int) *Predictor {

	p := &Predictor{
		header:        header,
		blocks:        blocks,
		motionField:   motionField,
		orderHintBits: orderHintBits,
	}
	for ref := obu.ReferenceFrameLast; ref <= obu.ReferenceFrameAlternate; ref++ {
		d := frame.GetRelativeDistance(header.OrderHint, refOrderHints[ref], orderHintBits)
		p.refDistance[ref] = dsp.Clip3(d, -maxFrameDistance, maxFrameDistance)
		p.signBias[ref] = d < 0
	}
	return p
}

// FindMvStack searches the spatial neighbors and the temporal motion
// field for reference MV candidates (Section 7.10.2).
func (p *Predictor) FindMvStack(b *Block, isCompound bool) *Stack {
	s := &Stack{}
	s.GlobalMv[0] = p.GlobalMvForBlock(b, 0)
	if isCompound {
		s.GlobalMv[1] = p.GlobalMvForBlock(b, 1)
	}

	var foundNew, foundRow, foundColumn bool
	p.scanRow(b, b.Column4x4, -1, isCompound, s, &foundNew, &foundRow)
	p.scanColumn(b, b.Row4x4, -1, isCompound, s, &foundNew, &foundColumn)
	if max(b.Width4x4, b.Height4x4) <= 16 {
		p.scanPoint(b, -1, b.Width4x4, isCompound, s, &foundNew, &foundRow)
	}
	nearestMatches := boolToInt(foundRow) + boolToInt(foundColumn)
	s.NearestCount = s.NumFound
	for i := 0; i < s.NearestCount; i++ {
		s.Weights[i] += 640
	}

	// Without a temporal candidate the zero-MV context falls back to the
	// magnitude of the global motion vector alone.
	if abs(int(s.GlobalMv[0].Row)) >= 16 || abs(int(s.GlobalMv[0].Col)) >= 16 {
		s.Contexts.ZeroMv = 1
	}
	if p.header.UseRefFrameMvs {
		p.temporalScan(b, isCompound, s)
	}

	// The outer scans count toward the match totals but never toward the
	// new-MV context.
	var dummyNew bool
	p.scanPoint(b, -1, -1, isCompound, s, &dummyNew, &foundRow)
	for i := 0; i < 2; i++ {
		delta := -3 - 2*i
		if i == 0 || b.Height4x4 > 1 {
			p.scanRow(b, b.Column4x4|1, delta+(b.Row4x4&1), isCompound, s, &dummyNew, &foundRow)
		}
		if i == 0 || b.Width4x4 > 1 {
			p.scanColumn(b, b.Row4x4|1, delta+(b.Column4x4&1), isCompound, s, &dummyNew, &foundColumn)
		}
	}
	totalMatches := boolToInt(foundRow) + boolToInt(foundColumn)
	s.Contexts.NewMv, s.Contexts.ReferenceMv = computeContexts(foundNew, nearestMatches, totalMatches)

	s.sortByWeight(0, min(s.NearestCount, s.NumFound))
	s.sortByWeight(s.NearestCount, s.NumFound)
	if s.NumFound < 2 {
		p.extraSearch(b, isCompound, s)
	}

	refs := 1
	if isCompound {
		refs = 2
	}
	for i := 0; i < s.NumFound; i++ {
		for j := 0; j < refs; j++ {
			s.Candidates[i][j] = p.clampToBlockRange(b, s.Candidates[i][j])
		}
	}
	return s
}

func computeContexts(foundNew bool, nearestMatches, totalMatches int) (newMv, refMv int) {
	switch nearestMatches {
	case 0:
		return min(totalMatches, 1), totalMatches
	case 1:
		return 3 - boolToInt(foundNew), 2 + totalMatches
	default:
		return 5 - boolToInt(foundNew), 5
	}
}

// minimumStep spaces samples along a scan line: wide blocks and far scan
// lines sample at 8-pixel granularity so run length stays bounded.
func minimumStep(blockDim4x4, delta int) int {
	if blockDim4x4 >= 16 {
		return 4
	}
	if delta < -1 {
		return 2
	}
	return 0
}

func (p *Predictor) scanRow(b *Block, startColumn4x4, deltaRow int, isCompound bool,
	s *Stack, foundNew, foundMatch *bool) {
	mvRow := b.Row4x4 + deltaRow
	if mvRow < 0 || mvRow >= p.blocks.Rows4x4 {
		return
	}
	minStep := minimumStep(b.Width4x4, deltaRow)
	run := min(b.Width4x4, p.blocks.Columns4x4-b.Column4x4, 16)
	for i := 0; i < run; {
		bp := p.blocks.Find(mvRow, startColumn4x4+i)
		if bp == nil {
			return
		}
		step := max(min(b.Width4x4, bp.Size.Width4x4()), minStep, 1)
		p.addCandidate(b, bp, isCompound, 2*step, s, foundNew, foundMatch)
		i += step
	}
}

func (p *Predictor) scanColumn(b *Block, startRow4x4, deltaColumn int, isCompound bool,
	s *Stack, foundNew, foundMatch *bool) {
	mvColumn := b.Column4x4 + deltaColumn
	if mvColumn < 0 || mvColumn >= p.blocks.Columns4x4 {
		return
	}
	minStep := minimumStep(b.Height4x4, deltaColumn)
	run := min(b.Height4x4, p.blocks.Rows4x4-b.Row4x4, 16)
	for i := 0; i < run; {
		bp := p.blocks.Find(startRow4x4+i, mvColumn)
		if bp == nil {
			return
		}
		step := max(min(b.Height4x4, bp.Size.Height4x4()), minStep, 1)
		p.addCandidate(b, bp, isCompound, 2*step, s, foundNew, foundMatch)
		i += step
	}
}

func (p *Predictor) scanPoint(b *Block, deltaRow, deltaColumn int, isCompound bool,
	s *Stack, foundNew, foundMatch *bool) {
	bp := p.blocks.Find(b.Row4x4+deltaRow, b.Column4x4+deltaColumn)
	if bp != nil {
		p.addCandidate(b, bp, isCompound, 4, s, foundNew, foundMatch)
	}
}

// addCandidate folds one neighbor block into the stack. A neighbor that
// used the global motion model contributes this block's global MV in
// place of its own.
func (p *Predictor) addCandidate(b *Block, bp *frame.BlockParameters, isCompound bool,
	weight int, s *Stack, foundNew, foundMatch *bool) {
	if !bp.IsInter {
		return
	}
	if isCompound {
		if bp.ReferenceFrame[0] != b.ReferenceFrame[0] ||
			bp.ReferenceFrame[1] != b.ReferenceFrame[1] {
			return
		}
		var cand frame.CompoundMotionVector
		for i := 0; i < 2; i++ {
			cand[i] = bp.Mv[i]
			if bp.IsGlobalMvBlock {
				cand[i] = s.GlobalMv[i]
			}
			p.LowerMvPrecision(&cand[i])
		}
		*foundMatch = true
		if bp.PredictionMode.HasNewMv() {
			*foundNew = true
		}
		s.add(cand, weight)
		return
	}
	for i := 0; i < 2; i++ {
		if bp.ReferenceFrame[i] != b.ReferenceFrame[0] {
			continue
		}
		cand := bp.Mv[i]
		if bp.IsGlobalMvBlock {
			cand = s.GlobalMv[0]
		}
		p.LowerMvPrecision(&cand)
		*foundMatch = true
		if bp.PredictionMode.HasNewMv() {
			*foundNew = true
		}
		s.add(frame.CompoundMotionVector{cand}, weight)
	}
}

// scansExtraTemporalPoints reports whether the block's size admits the
// three sample positions past its bottom-right corner. Only the square and
// 1:2/2:1 sizes from 8x8 through 32x32 do (Section 7.10.2.5).
func scansExtraTemporalPoints(b *Block) bool {
	return b.Width4x4 >= 2 && b.Width4x4 <= 8 &&
		b.Height4x4 >= 2 && b.Height4x4 <= 8
}

// withinSame64x64 reports whether the sample offset stays inside the
// 64x64 region the block starts in. The motion field only holds projected
// rows for the superblock being decoded, so samples must not cross out.
func withinSame64x64(b *Block, deltaRow, deltaColumn int) bool {
	row := (b.Row4x4 & 15) + deltaRow
	column := (b.Column4x4 & 15) + deltaColumn
	return row >= 0 && row < 16 && column >= 0 && column < 16
}

// temporalScan samples the projected motion field across the block plus,
// for mid-range block sizes, three positions past its bottom-right corner
// (Section 7.10.2.5).
func (p *Predictor) temporalScan(b *Block, isCompound bool, s *Stack) {
	stepW, stepH := 2, 2
	if b.Width4x4 >= 16 {
		stepW = 4
	}
	if b.Height4x4 >= 16 {
		stepH = 4
	}
	for dr := 0; dr < min(b.Height4x4, 16); dr += stepH {
		for dc := 0; dc < min(b.Width4x4, 16); dc += stepW {
			p.addTemporalCandidate(b, dr, dc, isCompound, s, dr == 0 && dc == 0)
		}
	}
	if !scansExtraTemporalPoints(b) {
		return
	}
	for _, pos := range [3][2]int{
		{b.Height4x4, -2},
		{b.Height4x4, b.Width4x4},
		{b.Height4x4 - 2, b.Width4x4},
	} {
		if withinSame64x64(b, pos[0], pos[1]) {
			p.addTemporalCandidate(b, pos[0], pos[1], isCompound, s, false)
		}
	}
}

func (p *Predictor) addTemporalCandidate(b *Block, deltaRow, deltaColumn int,
	isCompound bool, s *Stack, contextPoint bool) {
	row := (b.Row4x4 + deltaRow) | 1
	column := (b.Column4x4 + deltaColumn) | 1
	if row >= p.blocks.Rows4x4 || column >= p.blocks.Columns4x4 {
		return
	}
	if contextPoint {
		// Stays 1 unless the block position holds a valid projected MV
		// close to the global motion vector.
		s.Contexts.ZeroMv = 1
	}
	idx := p.motionField.Index(row>>1, column>>1)
	refOffset := int(p.motionField.RefOffset[idx])
	if refOffset < 0 {
		return
	}
	stored := p.motionField.Mv[idx]
	refs := 1
	if isCompound {
		refs = 2
	}
	var cand frame.CompoundMotionVector
	for i := 0; i < refs; i++ {
		cand[i] = Project(stored, p.refDistance[b.ReferenceFrame[i]], refOffset)
		p.LowerMvPrecision(&cand[i])
	}
	if contextPoint {
		far := false
		for i := 0; i < refs; i++ {
			if abs(int(cand[i].Row)-int(s.GlobalMv[i].Row)) >= 16 ||
				abs(int(cand[i].Col)-int(s.GlobalMv[i].Col)) >= 16 {
				far = true
			}
		}
		s.Contexts.ZeroMv = boolToInt(far)
	}
	s.add(cand, 2)
}

// addExtraSingleCandidate folds a neighbor into a short stack regardless
// of which reference it cites, flipping the MV when the neighbor's
// reference sits on the other side of the current frame in display order
// (Section 7.10.2.13).
func (p *Predictor) addExtraSingleCandidate(b *Block, bp *frame.BlockParameters, s *Stack) {
	for i := 0; i < 2; i++ {
		ref := bp.ReferenceFrame[i]
		if ref <= obu.ReferenceFrameIntra {
			continue
		}
		cand := bp.Mv[i]
		if p.signBias[ref] != p.signBias[b.ReferenceFrame[0]] {
			cand.Row = -cand.Row
			cand.Col = -cand.Col
		}
		if (s.NumFound != 0 && s.Candidates[0][0] == cand) ||
			(s.NumFound == 2 && s.Candidates[1][0] == cand) {
			continue
		}
		s.Candidates[s.NumFound][0] = cand
		s.Weights[s.NumFound] = 0
		s.NumFound++
		if s.NumFound >= 2 {
			return
		}
	}
}

// addExtraCompoundCandidate collects a neighbor's MVs into same-reference
// and cross-reference pools per compound reference (Section 7.10.2.12).
func (p *Predictor) addExtraCompoundCandidate(b *Block, bp *frame.BlockParameters,
	refID, refDiff *[2][]frame.MotionVector) {
	for i := 0; i < 2; i++ {
		ref := bp.ReferenceFrame[i]
		if ref <= obu.ReferenceFrameIntra {
			continue
		}
		for j := 0; j < 2; j++ {
			cand := bp.Mv[i]
			if ref == b.ReferenceFrame[j] {
				if len(refID[j]) < 2 {
					refID[j] = append(refID[j], cand)
				}
				continue
			}
			if p.signBias[ref] != p.signBias[b.ReferenceFrame[j]] {
				cand.Row = -cand.Row
				cand.Col = -cand.Col
			}
			if len(refDiff[j]) < 2 {
				refDiff[j] = append(refDiff[j], cand)
			}
		}
	}
}

// extraSearch pads a short stack to two candidates from the row above and
// the column left, accepting inter neighbors whatever reference they cite,
// with the global motion vector as the final filler (Section 7.10.2.12,
// 7.10.2.13).
func (p *Predictor) extraSearch(b *Block, isCompound bool, s *Stack) {
	num4x4 := min(b.Width4x4, p.blocks.Columns4x4-b.Column4x4,
		b.Height4x4, p.blocks.Rows4x4-b.Row4x4, 16)
	var refID, refDiff [2][]frame.MotionVector
	for pass := 0; pass < 2 && s.NumFound < 2; pass++ {
		for i := 0; i < num4x4 && s.NumFound < 2; {
			var mvRow, mvColumn int
			if pass == 0 {
				mvRow, mvColumn = b.Row4x4-1, b.Column4x4+i
			} else {
				mvRow, mvColumn = b.Row4x4+i, b.Column4x4-1
			}
			if mvRow < 0 || mvColumn < 0 {
				break
			}
			bp := p.blocks.Find(mvRow, mvColumn)
			if bp == nil {
				break
			}
			if bp.IsInter {
				if isCompound {
					p.addExtraCompoundCandidate(b, bp, &refID, &refDiff)
				} else {
					p.addExtraSingleCandidate(b, bp, s)
				}
			}
			if pass == 0 {
				i += bp.Size.Width4x4()
			} else {
				i += bp.Size.Height4x4()
			}
		}
	}
	if isCompound {
		// Merge the pools into combined pairs, padding each side with the
		// global motion vector.
		var combined [2]frame.CompoundMotionVector
		for i := 0; i < 2; i++ {
			count := 0
			for _, cand := range refID[i] {
				combined[count][i] = cand
				count++
			}
			for j := 0; count < 2 && j < len(refDiff[i]); j++ {
				combined[count][i] = refDiff[i][j]
				count++
			}
			for ; count < 2; count++ {
				combined[count][i] = s.GlobalMv[i]
			}
		}
		if s.NumFound == 1 {
			if combined[0] == s.Candidates[0] {
				s.Candidates[1] = combined[1]
			} else {
				s.Candidates[1] = combined[0]
			}
			s.Weights[1] = 0
		} else {
			for i := 0; i < 2; i++ {
				s.Candidates[i] = combined[i]
				s.Weights[i] = 0
			}
		}
		s.NumFound = 2
		return
	}
	for i := s.NumFound; i < 2; i++ {
		s.Candidates[i][0] = s.GlobalMv[0]
		s.Weights[i] = 0
	}
	s.NumFound = 2
}

// clampToBlockRange limits a candidate so the predicted block stays
// within Border of the frame edges.
func (p *Predictor) clampToBlockRange(b *Block, mv frame.MotionVector) frame.MotionVector {
	rowBorder := Border + b.Height4x4*4*8
	columnBorder := Border + b.Width4x4*4*8
	mv.Row = int16(dsp.Clip3(int(mv.Row),
		-32*b.Row4x4-rowBorder,
		32*(p.blocks.Rows4x4-b.Height4x4-b.Row4x4)+rowBorder))
	mv.Col = int16(dsp.Clip3(int(mv.Col),
		-32*b.Column4x4-columnBorder,
		32*(p.blocks.Columns4x4-b.Width4x4-b.Column4x4)+columnBorder))
	return mv
}

// GlobalMvForBlock evaluates the reference's global motion model at the
// block center (Section 7.10.2.8).
func (p *Predictor) GlobalMvForBlock(b *Block, refIndex int) frame.MotionVector {
	ref := b.ReferenceFrame[refIndex]
	if ref <= obu.ReferenceFrameIntra {
		return frame.MotionVector{}
	}
	gm := &p.header.GlobalMotion[ref]
	switch gm.Type {
	case obu.GlobalMotionTransformationTypeIdentity:
		return frame.MotionVector{}
	case obu.GlobalMotionTransformationTypeTranslation:
		mv := frame.MotionVector{
			Row: int16(gm.Params[0] >> 13),
			Col: int16(gm.Params[1] >> 13),
		}
		p.LowerMvPrecision(&mv)
		return mv
	}
	x := 4*b.Column4x4 + b.Width4x4*2 - 1
	y := 4*b.Row4x4 + b.Height4x4*2 - 1
	xc := (int(gm.Params[2])-(1<<16))*x + int(gm.Params[3])*y + int(gm.Params[0])
	yc := int(gm.Params[4])*x + (int(gm.Params[5])-(1<<16))*y + int(gm.Params[1])
	var mv frame.MotionVector
	if p.header.AllowHighPrecisionMv {
		mv.Row = int16(dsp.RightShiftWithRoundingSigned(yc, 13))
		mv.Col = int16(dsp.RightShiftWithRoundingSigned(xc, 13))
	} else {
		mv.Row = int16(2 * dsp.RightShiftWithRoundingSigned(yc, 14))
		mv.Col = int16(2 * dsp.RightShiftWithRoundingSigned(xc, 14))
		p.LowerMvPrecision(&mv)
	}
	return mv
}

// LowerMvPrecision rounds a motion vector down to the precision the frame
// header allows (Section 7.10.2.10).
func (p *Predictor) LowerMvPrecision(mv *frame.MotionVector) {
	if p.header.AllowHighPrecisionMv {
		return
	}
	for _, c := range [2]*int16{&mv.Row, &mv.Col} {
		if p.header.ForceIntegerMv {
			*c = int16(dsp.ApplySign((abs(int(*c))+3) & ^7, int(*c)))
		} else if *c&1 != 0 {
			*c -= (*c >> 15) | 1
		}
	}
}

// Project scales a motion vector by the ratio of two frame distances,
// numerator over denominator (Section 7.9.3).
func Project(mv frame.MotionVector, numerator, denominator int) frame.MotionVector {
	den := min(denominator, maxFrameDistance)
	if den < 1 {
		den = 1
	}
	num := dsp.Clip3(numerator, -maxFrameDistance, maxFrameDistance)
	lookup := int(projectionDivisionLookup[den])
	return frame.MotionVector{
		Row: int16(dsp.Clip3(
			dsp.RightShiftWithRoundingSigned(int(mv.Row)*num*lookup, projectionDivisionBits),
			-projectionMvClamp, projectionMvClamp)),
		Col: int16(dsp.Clip3(
			dsp.RightShiftWithRoundingSigned(int(mv.Col)*num*lookup, projectionDivisionBits),
			-projectionMvClamp, projectionMvClamp)),
	}
}

// sortByWeight reorders the [begin, end) subrange of the stack by weight,
// heaviest first, keeping candidates and weights paired. The comparison
// key packs weight and index into one value, so equal weights keep their
// insertion order.
func (s *Stack) sortByWeight(begin, end int) {
	n := end - begin
	if n <= 1 {
		return
	}
	var packed [MaxStackSize]uint16
	for i := 0; i < n; i++ {
		packed[i] = uint16(s.Weights[begin+i])<<4 | uint16(MaxStackSize-1-i)
	}
	sortDescending(packed[:n])
	var cand [MaxStackSize]frame.CompoundMotionVector
	var weights [MaxStackSize]int
	for i := 0; i < n; i++ {
		src := begin + MaxStackSize - 1 - int(packed[i]&15)
		cand[i] = s.Candidates[src]
		weights[i] = s.Weights[src]
	}
	for i := 0; i < n; i++ {
		s.Candidates[begin+i] = cand[i]
		s.Weights[begin+i] = weights[i]
	}
}

// sortDescending sorts packed weight-index keys, largest first. Stacks of
// up to three entries dominate real streams, so those run as fixed
// compare-swap networks.
func sortDescending(v []uint16) {
	switch len(v) {
	case 0, 1:
	case 2:
		if v[0] < v[1] {
			v[0], v[1] = v[1], v[0]
		}
	case 3:
		if v[0] < v[1] {
			v[0], v[1] = v[1], v[0]
		}
		if v[1] < v[2] {
			v[1], v[2] = v[2], v[1]
		}
		if v[0] < v[1] {
			v[0], v[1] = v[1], v[0]
		}
	default:
		for i := 1; i < len(v); i++ {
			key := v[i]
			j := i - 1
			for j >= 0 && v[j] < key {
				v[j+1] = v[j]
				j--
			}
			v[j+1] = key
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
