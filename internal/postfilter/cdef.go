package postfilter

import (
	"sync/atomic"

	"github.com/deepteams/av1/internal/dsp"
	"github.com/deepteams/av1/internal/threading"
)

// CDEF, Section 7.15. The stage filters each 64x64 unit from a padded
// uint16 window holding the band's pre-CDEF pixels, so that writing the
// frame in place never feeds filtered pixels back into a neighbor's
// support. The two rows above the band come from the rolling cdefTop
// store, captured before the band above was filtered.

// cdefBorder is the window padding in pixels on every side.
const cdefBorder = 2

// kCdefUvDirection maps the luma direction to the chroma direction for
// each subsampling combination, indexed [ssX][ssY][direction].
var kCdefUvDirection = [2][2][8]int{
	{{0, 1, 2, 3, 4, 5, 6, 7}, {1, 2, 2, 2, 3, 4, 6, 0}},
	{{7, 0, 2, 4, 5, 6, 6, 6}, {0, 1, 2, 3, 4, 5, 6, 7}},
}

// storeDeblockedRows snapshots the four pre-CDEF rows around the band's
// restoration strip boundary into the deblock store. These rows are final
// after the band's own deblocking: the next band's horizontal pass writes
// at most six rows above its top edge, which stays below them.
func (p *PostFilter) storeDeblockedRows(row4x4 int) {
	if !p.DoRestoration() {
		return
	}
	band := row4x4 / superBlockSize4x4
	for plane := 0; plane < p.frame.Planes(); plane++ {
		_, ssY := p.frame.SubsamplingForPlane(plane)
		bh := bandHeight(plane, p.frame)
		boundary := (band+1)*bh - (restorationUnitOffset >> ssY)
		height := p.frame.PlaneHeight(plane)
		width := p.frame.PlaneWidth(plane)
		storeStride := p.frame.UpscaledPlaneWidth(plane)
		store := p.deblockStore[plane][band*4*storeStride:]
		for i := 0; i < 4; i++ {
			y := dsp.Clip3(boundary-2+i, 0, height-1)
			copy(store[i*storeStride:i*storeStride+width], p.frame.Row(plane, y)[:width])
		}
	}
}

// applyCdefBand filters one 64-pixel band. The band's bottom two rows are
// captured first so the next band's window still sees them pre-CDEF.
func (p *PostFilter) applyCdefBand(band int) {
	p.snapshotCdefNext(band)
	for plane := 0; plane < p.frame.Planes(); plane++ {
		p.fillCdefWindow(plane, band)
	}
	for sbColumn := 0; sbColumn < p.sb64Columns; sbColumn++ {
		p.cdefUnit(band, sbColumn)
	}
	p.rotateCdefStore()
}

// cdefThreaded runs bands in order, fanning the 64x64 units of each band
// across the pool. The window is read-only once filled and units write
// disjoint frame regions, so no further coordination is needed.
func (p *PostFilter) cdefThreaded() {
	for band := 0; band < p.sb64Rows; band++ {
		p.snapshotCdefNext(band)
		for plane := 0; plane < p.frame.Planes(); plane++ {
			p.fillCdefWindow(plane, band)
		}
		var jobCounter atomic.Int32
		barrier := threading.NewBlockingCounter(p.pool.NumThreads())
		for i := 0; i < p.pool.NumThreads(); i++ {
			p.pool.Schedule(func() {
				for {
					sbColumn := int(jobCounter.Add(1)) - 1
					if sbColumn >= p.sb64Columns {
						break
					}
					p.cdefUnit(band, sbColumn)
				}
				barrier.Decrement()
			})
		}
		barrier.Wait()
		p.rotateCdefStore()
	}
}

// snapshotCdefNext saves the band's bottom two rows, still unfiltered,
// for the window of the band below.
func (p *PostFilter) snapshotCdefNext(band int) {
	if band+1 >= p.sb64Rows {
		return
	}
	for plane := 0; plane < p.frame.Planes(); plane++ {
		bh := bandHeight(plane, p.frame)
		height := p.frame.PlaneHeight(plane)
		width := p.frame.PlaneWidth(plane)
		storeStride := p.frame.UpscaledPlaneWidth(plane)
		bottom := min((band+1)*bh, height)
		for i := 0; i < 2; i++ {
			y := bottom - 2 + i
			if y < 0 {
				continue
			}
			copy(p.cdefNext[plane][i*storeStride:i*storeStride+width],
				p.frame.Row(plane, y)[:width])
		}
	}
}

func (p *PostFilter) rotateCdefStore() {
	for plane := 0; plane < p.frame.Planes(); plane++ {
		p.cdefTop[plane], p.cdefNext[plane] = p.cdefNext[plane], p.cdefTop[plane]
	}
}

// fillCdefWindow builds the band's padded pre-CDEF window for one plane.
// Cells outside the frame hold CdefLargeValue, which the filter kernel
// excludes from its taps.
func (p *PostFilter) fillCdefWindow(plane, band int) {
	bh := bandHeight(plane, p.frame)
	height := p.frame.PlaneHeight(plane)
	width := p.frame.PlaneWidth(plane)
	storeStride := p.frame.UpscaledPlaneWidth(plane)
	rowStart := band * bh
	h := min(bh, height-rowStart)
	winStride := width + 2*cdefBorder
	win := p.cdefWindow[plane]

	for wy := 0; wy < h+2*cdefBorder; wy++ {
		y := rowStart + wy - cdefBorder
		dst := win[wy*winStride : (wy+1)*winStride]
		if y < 0 || y >= height {
			for i := range dst {
				dst[i] = dsp.CdefLargeValue
			}
			continue
		}
		var src []byte
		if wy < cdefBorder && band > 0 {
			// The rows above the band were already filtered in place;
			// their pre-CDEF values live in the rolling store.
			src = p.cdefTop[plane][wy*storeStride:]
		} else {
			src = p.frame.Row(plane, y)
		}
		dst[0], dst[1] = dsp.CdefLargeValue, dsp.CdefLargeValue
		for x := 0; x < width; x++ {
			dst[cdefBorder+x] = uint16(src[x])
		}
		dst[cdefBorder+width], dst[cdefBorder+width+1] = dsp.CdefLargeValue, dsp.CdefLargeValue
	}
}

// cdefUnit filters one 64x64 unit of the band, all planes. The direction
// of each 8x8 luma block is estimated from the frame before any plane of
// that block is written, so estimation always sees deblocked pixels.
func (p *PostFilter) cdefUnit(band, sbColumn int) {
	if p.cdefIndex == nil {
		return
	}
	index := int(p.cdefIndex[band*p.sb64Columns+sbColumn])
	if index < 0 {
		return
	}
	c := &p.header.Cdef
	lumaRowEnd := min(band*superBlockSize+superBlockSize, p.frame.Height)
	lumaColumnEnd := min(sbColumn*superBlockSize+superBlockSize, p.frame.Width)

	for lumaY := band * superBlockSize; lumaY < lumaRowEnd; lumaY += 8 {
		for lumaX := sbColumn * superBlockSize; lumaX < lumaColumnEnd; lumaX += 8 {
			if p.cdefSkip(lumaY/4, lumaX/4) {
				continue
			}
			direction, variance := dsp.CdefDirection(
				p.frame.Data(0), p.frame.Offset(0, lumaX, lumaY), p.frame.Stride(0))
			for plane := 0; plane < p.frame.Planes(); plane++ {
				ssX, ssY := p.frame.SubsamplingForPlane(plane)
				var primary, secondary, damping, planeDirection int
				if plane == 0 {
					primary = int(c.YPrimaryStrength[index])
					secondary = int(c.YSecondaryStrength[index])
					damping = c.Damping
					planeDirection = direction
					// Weak-feature blocks get a reduced primary strength.
					if variance > 0 {
						primary = (primary*(4+min(dsp.FloorLog2(variance>>6), 12)) + 8) >> 4
					} else {
						primary = 0
					}
				} else {
					primary = int(c.UVPrimaryStrength[index])
					secondary = int(c.UVSecondaryStrength[index])
					damping = c.Damping - 1
					planeDirection = kCdefUvDirection[ssX][ssY][direction]
				}
				if primary == 0 && secondary == 0 {
					continue
				}
				x := lumaX >> ssX
				y := lumaY >> ssY
				blockWidth := min(8>>ssX, p.frame.PlaneWidth(plane)-x)
				blockHeight := min(8>>ssY, p.frame.PlaneHeight(plane)-y)
				winStride := p.frame.PlaneWidth(plane) + 2*cdefBorder
				winOff := (y-band*bandHeight(plane, p.frame)+cdefBorder)*winStride +
					x + cdefBorder
				dsp.CdefFilter(p.cdefWindow[plane], winOff, winStride,
					p.frame.Data(plane), p.frame.Offset(plane, x, y), p.frame.Stride(plane),
					blockWidth, blockHeight, primary, secondary, damping, planeDirection)
			}
		}
	}
}

// cdefSkip reports whether the whole 8x8 block is skipped: CDEF leaves a
// block alone only when all four covering 4x4 cells are skip.
func (p *PostFilter) cdefSkip(row4x4, column4x4 int) bool {
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			r := min(row4x4+dy, p.blocks.Rows4x4-1)
			c := min(column4x4+dx, p.blocks.Columns4x4-1)
			bp := p.blocks.Find(r, c)
			if bp == nil || !bp.Skip {
				return false
			}
		}
	}
	return true
}
