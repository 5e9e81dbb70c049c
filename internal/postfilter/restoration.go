package postfilter

import (
	"sync/atomic"

	"github.com/deepteams/av1/internal/dsp"
	"github.com/deepteams/av1/internal/obu"
	"github.com/deepteams/av1/internal/threading"
)

// Loop restoration, Section 7.17. The plane is processed in 64-pixel
// strips shifted up by restorationUnitOffset so that strip boundaries
// avoid the superblock rows where CDEF support is still settling. Each
// strip is assembled into a bordered input buffer first: the three border
// rows above and below come from the pre-CDEF deblock store (or straight
// from the frame when CDEF is off and the strips run sequentially), and
// restoring from the snapshot keeps unit writes from feeding back into a
// neighbor's support.

// restorationUnitOffset is the upward shift of restoration strips
// relative to the 64-pixel filter bands, in luma pixels.
const restorationUnitOffset = 8

// restorationBorder is the context the restoration kernels need on every
// side of a unit.
const restorationBorder = 3

func (p *PostFilter) applyRestorationBand(band int) {
	p.restorationInput = p.restoreStrip(band, &p.restorationScratch,
		p.restorationInput, p.DoCdef())
}

// restorationThreaded hands whole strips to the workers. Every worker
// owns its scratch, and borders always come from the deblock store so a
// strip never reads rows a neighboring strip may be rewriting.
func (p *PostFilter) restorationThreaded() {
	var jobCounter atomic.Int32
	barrier := threading.NewBlockingCounter(p.pool.NumThreads())
	for i := 0; i < p.pool.NumThreads(); i++ {
		p.pool.Schedule(func() {
			var scratch dsp.RestorationBuffer
			var input []byte
			for {
				band := int(jobCounter.Add(1)) - 1
				if band >= p.sb64Rows {
					break
				}
				input = p.restoreStrip(band, &scratch, input, true)
			}
			barrier.Decrement()
		})
	}
	barrier.Wait()
}

// restoreStrip assembles and filters one strip of every restored plane.
// It returns the (possibly regrown) input buffer for reuse.
func (p *PostFilter) restoreStrip(band int, scratch *dsp.RestorationBuffer,
	input []byte, borderFromStore bool) []byte {

	lr := &p.header.LoopRestoration
	for plane := 0; plane < p.frame.Planes(); plane++ {
		if lr.Type[plane] == obu.LoopRestorationTypeNone {
			continue
		}
		input = p.restorePlaneStrip(plane, band, scratch, input, borderFromStore)
	}
	return input
}

func (p *PostFilter) restorePlaneStrip(plane, band int, scratch *dsp.RestorationBuffer,
	input []byte, borderFromStore bool) []byte {

	_, ssY := p.frame.SubsamplingForPlane(plane)
	bh := bandHeight(plane, p.frame)
	offset := restorationUnitOffset >> ssY
	height := p.frame.PlaneHeight(plane)
	width := p.frame.UpscaledPlaneWidth(plane)

	stripTop := band*bh - offset
	if band == 0 {
		stripTop = 0
	}
	stripBottom := (band+1)*bh - offset
	if band == p.sb64Rows-1 || stripBottom > height {
		stripBottom = height
	}
	if stripTop >= stripBottom {
		return input
	}
	stripHeight := stripBottom - stripTop

	inStride := width + 2*restorationBorder
	need := (stripHeight + 2*restorationBorder) * inStride
	if cap(input) < need {
		input = make([]byte, need)
	}
	input = input[:need]

	store := p.deblockStore[plane]
	for k := 0; k < stripHeight+2*restorationBorder; k++ {
		y := stripTop - restorationBorder + k
		var src []byte
		switch {
		case y < stripTop:
			if band == 0 || !borderFromStore {
				src = p.frame.Row(plane, max(y, 0))
			} else {
				// Rows stripTop-2 and stripTop-1 of the previous band's
				// store; the outermost border row replicates the first.
				i := dsp.Clip3(y-(stripTop-2), 0, 1)
				src = store[((band-1)*4+i)*width:]
			}
		case y >= stripBottom:
			if band == p.sb64Rows-1 || stripBottom == height || !borderFromStore {
				src = p.frame.Row(plane, min(y, height-1))
			} else {
				// Rows stripBottom and stripBottom+1 of this band's store;
				// the outermost border row replicates the last.
				i := dsp.Clip3(y-stripBottom, 0, 1) + 2
				src = store[(band*4+i)*width:]
			}
		default:
			src = p.frame.Row(plane, y)
		}
		dst := input[k*inStride : (k+1)*inStride]
		copy(dst[restorationBorder:restorationBorder+width], src[:width])
		for i := 0; i < restorationBorder; i++ {
			dst[i] = dst[restorationBorder]
			dst[restorationBorder+width+i] = dst[restorationBorder+width-1]
		}
	}

	unitSize := p.header.LoopRestoration.UnitSize[plane]
	unitRow := min((band*bh)/unitSize, p.restoration.UnitRows[plane]-1)
	unitsPerRow := p.restoration.UnitsPerRow[plane]
	for unit := 0; unit < unitsPerRow; unit++ {
		info := p.restoration.Unit(plane, unitRow, unit)
		if info.Type != dsp.RestorationTypeWiener && info.Type != dsp.RestorationTypeSgrProj {
			continue
		}
		columnStart := unit * unitSize
		columnEnd := min(columnStart+unitSize, width)
		if unit == unitsPerRow-1 {
			columnEnd = width
		}
		inOff := restorationBorder*inStride + restorationBorder + columnStart
		dsp.LoopRestorations[info.Type-dsp.RestorationTypeWiener](info,
			input, inOff, inStride,
			p.frame.Data(plane), p.frame.Offset(plane, columnStart, stripTop),
			p.frame.Stride(plane),
			columnEnd-columnStart, stripHeight, scratch)
	}
	return input
}
