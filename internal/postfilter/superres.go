package postfilter

import (
	"sync/atomic"

	"github.com/deepteams/av1/internal/dsp"
	"github.com/deepteams/av1/internal/threading"
)

// Super resolution, Section 7.16: each row is upscaled horizontally from
// the coded width to the upscaled width. The frame slab is allocated at
// the upscaled width, so the row is first copied into a bordered line
// buffer and the result written back in place. The stored restoration
// border rows are upscaled the same way so the restoration stage works
// entirely at the upscaled width.

func (p *PostFilter) applySuperResBand(band int) {
	for plane := 0; plane < p.frame.Planes(); plane++ {
		bh := bandHeight(plane, p.frame)
		rowStart := band * bh
		rowEnd := min(rowStart+bh, p.frame.PlaneHeight(plane))
		p.superResRows(plane, rowStart, rowEnd)
		if p.DoRestoration() {
			p.superResStoreRows(plane, band)
		}
	}
}

// superResThreaded splits the frame rows across the workers plus the
// calling thread, which also handles the stored border rows.
func (p *PostFilter) superResThreaded() {
	chunks := p.pool.NumThreads() + 1
	rowsPerChunk := (p.frame.Height + chunks - 1) / chunks
	barrier := threading.NewBlockingCounter(chunks - 1)
	var jobCounter atomic.Int32
	for i := 0; i < chunks-1; i++ {
		p.pool.Schedule(func() {
			for {
				chunk := int(jobCounter.Add(1)) - 1
				if chunk >= chunks-1 {
					break
				}
				p.superResChunk(chunk*rowsPerChunk, (chunk+1)*rowsPerChunk)
			}
			barrier.Decrement()
		})
	}
	p.superResChunk((chunks-1)*rowsPerChunk, p.frame.Height)
	if p.DoRestoration() {
		for plane := 0; plane < p.frame.Planes(); plane++ {
			for band := 0; band < p.sb64Rows; band++ {
				p.superResStoreRows(plane, band)
			}
		}
	}
	barrier.Wait()
}

// superResChunk upscales the plane rows covered by one luma row range.
func (p *PostFilter) superResChunk(lumaRowStart, lumaRowEnd int) {
	for plane := 0; plane < p.frame.Planes(); plane++ {
		_, ssY := p.frame.SubsamplingForPlane(plane)
		rowStart := lumaRowStart >> ssY
		rowEnd := lumaRowEnd >> ssY
		if lumaRowEnd >= p.frame.Height {
			rowEnd = p.frame.PlaneHeight(plane)
		}
		p.superResRows(plane, rowStart, rowEnd)
	}
}

func (p *PostFilter) superResRows(plane, rowStart, rowEnd int) {
	codedWidth := p.frame.PlaneWidth(plane)
	upscaledWidth := p.frame.UpscaledPlaneWidth(plane)
	line := make([]byte, codedWidth+2*dsp.SuperResHorizontalBorder)
	off := dsp.SuperResHorizontalBorder
	for y := rowStart; y < rowEnd; y++ {
		row := p.frame.Row(plane, y)
		copy(line[off:off+codedWidth], row[:codedWidth])
		extendLine(line, off, codedWidth, dsp.SuperResHorizontalBorder)
		dsp.SuperRes(line, off, p.frame.Data(plane), p.frame.Offset(plane, 0, y),
			upscaledWidth, p.superResInitial[plane], p.superResStep[plane])
	}
}

// superResStoreRows upscales the band's four stored restoration border
// rows in place. The store rows are spaced at the upscaled width, so the
// upscaled result fits the same slots.
func (p *PostFilter) superResStoreRows(plane, band int) {
	codedWidth := p.frame.PlaneWidth(plane)
	upscaledWidth := p.frame.UpscaledPlaneWidth(plane)
	store := p.deblockStore[plane][band*4*upscaledWidth:]
	line := make([]byte, codedWidth+2*dsp.SuperResHorizontalBorder)
	off := dsp.SuperResHorizontalBorder
	for i := 0; i < 4; i++ {
		copy(line[off:off+codedWidth], store[i*upscaledWidth:i*upscaledWidth+codedWidth])
		extendLine(line, off, codedWidth, dsp.SuperResHorizontalBorder)
		dsp.SuperRes(line, off, store, i*upscaledWidth,
			upscaledWidth, p.superResInitial[plane], p.superResStep[plane])
	}
}

// extendLine replicates the first and last pixels of a line into the
// border the upscale taps read past the row ends.
func extendLine(line []byte, off, width, border int) {
	first := line[off]
	last := line[off+width-1]
	for i := 1; i <= border; i++ {
		line[off-i] = first
		line[off+width-1+i] = last
	}
}
