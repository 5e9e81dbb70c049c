package mv

import (
	"github.com/deepteams/av1/internal/dsp"
	"github.com/deepteams/av1/internal/frame"
	"github.com/deepteams/av1/internal/obu"
)

// MaxWarpSamples is the most candidate correspondences the least squares
// warp estimation consumes.
const MaxWarpSamples = 8

// WarpSamples holds the source/destination point correspondences
// gathered from neighbors that share the block's reference frame, in
// 1/8 pel units: {srcY, srcX, dstY, dstX}.
type WarpSamples struct {
	Candidates [MaxWarpSamples][4]int16
	NumSamples int
	NumScanned int
}

// FindWarpSamples walks the row above and the column left of the block,
// collecting motion samples from single-reference neighbors that predict
// from the same frame (Section 7.10.4). mv is the block's own motion
// vector, used to reject outliers.
func (p *Predictor) FindWarpSamples(b *Block, mv frame.MotionVector) *WarpSamples {
	s := &WarpSamples{}
	if b.Row4x4 > 0 {
		run := min(b.Width4x4, p.blocks.Columns4x4-b.Column4x4)
		for dc := 0; dc < run; {
			bp := p.blocks.Find(b.Row4x4-1, b.Column4x4+dc)
			if bp == nil {
				break
			}
			p.addSample(b, -1, dc, bp, mv, s)
			dc += max(1, bp.Size.Width4x4())
		}
	}
	if b.Column4x4 > 0 {
		run := min(b.Height4x4, p.blocks.Rows4x4-b.Row4x4)
		for dr := 0; dr < run; {
			bp := p.blocks.Find(b.Row4x4+dr, b.Column4x4-1)
			if bp == nil {
				break
			}
			p.addSample(b, dr, -1, bp, mv, s)
			dr += max(1, bp.Size.Height4x4())
		}
	}
	if b.Row4x4 > 0 && b.Column4x4 > 0 {
		if bp := p.blocks.Find(b.Row4x4-1, b.Column4x4-1); bp != nil {
			p.addSample(b, -1, -1, bp, mv, s)
		}
	}
	// With nothing inside the outlier threshold, fall back to the last
	// neighbor scanned so the warp model still has one correspondence.
	if s.NumSamples == 0 && s.NumScanned > 0 {
		s.NumSamples = 1
	}
	return s
}

// addSample evaluates one neighbor. The neighbor's block center and its
// motion-compensated position form the correspondence; a motion vector
// too far from the block's own is recorded as scanned but not kept.
func (p *Predictor) addSample(b *Block, deltaRow, deltaColumn int,
	bp *frame.BlockParameters, mv frame.MotionVector, s *WarpSamples) {
	if !bp.IsInter ||
		bp.ReferenceFrame[0] != b.ReferenceFrame[0] ||
		bp.ReferenceFrame[1] != obu.ReferenceFrameNone {
		return
	}
	s.NumScanned++

	// Neighbor block origin, assuming the scan landed on its first cell
	// along the scanned edge.
	candRow4x4 := b.Row4x4 + deltaRow
	candColumn4x4 := b.Column4x4 + deltaColumn
	if deltaRow < 0 {
		candRow4x4 -= bp.Size.Height4x4() - 1
	}
	if deltaColumn < 0 {
		candColumn4x4 -= bp.Size.Width4x4() - 1
	}
	midY := 4*candRow4x4 + 2*bp.Size.Height4x4() - 1
	midX := 4*candColumn4x4 + 2*bp.Size.Width4x4() - 1

	threshold := dsp.Clip3(max(b.Width4x4*4, b.Height4x4*4), 16, 112)
	diff := abs(int(bp.Mv[0].Row)-int(mv.Row)) + abs(int(bp.Mv[0].Col)-int(mv.Col))
	valid := diff <= threshold

	if s.NumSamples >= MaxWarpSamples {
		return
	}
	s.Candidates[s.NumSamples] = [4]int16{
		int16(8 * midY),
		int16(8 * midX),
		int16(8*midY) + bp.Mv[0].Row,
		int16(8*midX) + bp.Mv[0].Col,
	}
	if valid {
		s.NumSamples++
	}
}
