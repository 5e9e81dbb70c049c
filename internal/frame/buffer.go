package frame

import (
	"fmt"

	"github.com/deepteams/av1/internal/pool"
)

// Border is the pixel border kept on every side of each plane. It covers
// the widest context any pipeline stage reads: deblock (8), CDEF (2),
// superres taps (4), restoration (3) and reference-frame extension.
const Border = 32

// strideAlignment keeps row starts 16-byte aligned so kernel code can
// process rows in fixed-width chunks without tail checks.
const strideAlignment = 16

// MaxPlanes is the plane count of a non-monochrome frame.
const MaxPlanes = 3

func alignTo(x, alignment int) int {
	return (x + alignment - 1) & ^(alignment - 1)
}

// YuvBuffer is a bordered planar pixel buffer. Each plane is a single
// slab; origin offsets locate pixel (0,0) so filter code can reach border
// context through plain offset arithmetic (the slab-plus-base-offset
// pattern; Go has no negative indices).
//
// Planes are always allocated at the superres-upscaled width so the
// horizontal upscaler can write in place row by row.
type YuvBuffer struct {
	Width         int // coded (downscaled) luma width
	Height        int
	UpscaledWidth int
	SubsamplingX  int
	SubsamplingY  int
	Monochrome    bool

	stride [MaxPlanes]int
	data   [MaxPlanes][]byte
	origin [MaxPlanes]int
}

// Planes returns the number of planes in use.
func (b *YuvBuffer) Planes() int {
	if b.Monochrome {
		return 1
	}
	return MaxPlanes
}

// PlaneWidth returns the coded width of a plane.
func (b *YuvBuffer) PlaneWidth(plane int) int {
	if plane == 0 {
		return b.Width
	}
	return subsampledSize(b.Width, b.SubsamplingX)
}

// UpscaledPlaneWidth returns the post-superres width of a plane.
func (b *YuvBuffer) UpscaledPlaneWidth(plane int) int {
	if plane == 0 {
		return b.UpscaledWidth
	}
	return subsampledSize(b.UpscaledWidth, b.SubsamplingX)
}

// PlaneHeight returns the height of a plane.
func (b *YuvBuffer) PlaneHeight(plane int) int {
	if plane == 0 {
		return b.Height
	}
	return subsampledSize(b.Height, b.SubsamplingY)
}

// SubsamplingForPlane returns the (x, y) subsampling of a plane.
func (b *YuvBuffer) SubsamplingForPlane(plane int) (int, int) {
	if plane == 0 {
		return 0, 0
	}
	return b.SubsamplingX, b.SubsamplingY
}

func subsampledSize(size, subsampling int) int {
	return (size + subsampling) >> subsampling
}

// Stride returns the row stride of a plane in bytes.
func (b *YuvBuffer) Stride(plane int) int { return b.stride[plane] }

// Data returns the full slab of a plane, borders included.
func (b *YuvBuffer) Data(plane int) []byte { return b.data[plane] }

// Origin returns the slab offset of pixel (0,0) of a plane.
func (b *YuvBuffer) Origin(plane int) int { return b.origin[plane] }

// Offset returns the slab offset of pixel (x, y) of a plane.
func (b *YuvBuffer) Offset(plane, x, y int) int {
	return b.origin[plane] + y*b.stride[plane] + x
}

// Row returns the plane slab starting at (0, y). The slice extends to the
// end of the slab; callers bound their own reads.
func (b *YuvBuffer) Row(plane, y int) []byte {
	return b.data[plane][b.origin[plane]+y*b.stride[plane]:]
}

// Realloc sizes the buffer for a frame, reusing slabs when they are big
// enough. Pixel contents after Realloc are unspecified.
func (b *YuvBuffer) Realloc(width, height, upscaledWidth, subsamplingX, subsamplingY int, monochrome bool) error {
	if width <= 0 || height <= 0 || upscaledWidth < width {
		return fmt.Errorf("frame: invalid dimensions %dx%d (upscaled %d)", width, height, upscaledWidth)
	}
	b.Width = width
	b.Height = height
	b.UpscaledWidth = upscaledWidth
	b.SubsamplingX = subsamplingX
	b.SubsamplingY = subsamplingY
	b.Monochrome = monochrome

	for plane := 0; plane < b.Planes(); plane++ {
		w := b.UpscaledPlaneWidth(plane)
		h := b.PlaneHeight(plane)
		stride := alignTo(w+2*Border, strideAlignment)
		size := stride * (h + 2*Border)
		if cap(b.data[plane]) < size {
			if b.data[plane] != nil {
				pool.Put(b.data[plane])
			}
			b.data[plane] = pool.Get(size)
		} else {
			b.data[plane] = b.data[plane][:size]
		}
		b.stride[plane] = stride
		b.origin[plane] = Border*stride + Border
	}
	return nil
}

// Release returns the plane slabs to the allocation pool.
func (b *YuvBuffer) Release() {
	for plane := range b.data {
		if b.data[plane] != nil {
			pool.Put(b.data[plane])
			b.data[plane] = nil
		}
	}
}
