// Package dsp holds the capability table of pixel kernels the post-filter
// graph calls through: deblocking loop filters, CDEF direction estimation
// and filtering, superres row upscaling, and the two loop-restoration
// filters. Callers never branch on CPU features; the table is assigned
// scalar reference implementations by Init() and architecture-specific
// files may override entries in their own init() afterwards.
package dsp

// LoopFilterSize selects the deblock filter tap count.
type LoopFilterSize int

const (
	LoopFilterSize4 LoopFilterSize = iota // 4-tap
	LoopFilterSize6                       // 6-tap (chroma)
	LoopFilterSize8                       // 8-tap
	LoopFilterSize14                      // 14-tap

	NumLoopFilterSizes
)

// LoopFilterType is the edge direction a deblock pass filters.
type LoopFilterType int

const (
	LoopFilterTypeVertical LoopFilterType = iota // vertical edges
	LoopFilterTypeHorizontal
	NumLoopFilterTypes
)

// LoopFilterFunc filters one 4-pixel edge segment. buf is the full plane
// slab, off the offset of the first edge pixel (the pixel just right of a
// vertical edge, just below a horizontal one), stride the plane stride.
// Thresholds are the precomputed outer/inner/hev limits.
type LoopFilterFunc func(buf []byte, off, stride int, outerThresh, innerThresh, hevThresh int)

// LoopFilters is indexed by [LoopFilterSize][LoopFilterType].
var LoopFilters [NumLoopFilterSizes][NumLoopFilterTypes]LoopFilterFunc

// CdefDirection estimates the dominant edge direction and its variance
// over an 8x8 block of the source plane.
var CdefDirection func(src []byte, off, stride int) (direction, variance int)

// CdefFilter filters one 8x8 (or subsampled) CDEF block. src is the
// padded uint16 working window with 2-pixel borders (frame-edge cells
// hold CdefLargeValue), positioned so src[srcOff] is the block's first
// pixel. The result is written into the plane slab at dstOff.
var CdefFilter func(src []uint16, srcOff, srcStride int,
	dst []byte, dstOff, dstStride int,
	width, height, primaryStrength, secondaryStrength, damping, direction int)

// SuperRes upscales one row horizontally. src[srcOff] is the first coded
// pixel of the row in a line buffer whose edges are already replicated;
// dst[dstOff] receives upscaledWidth pixels.
var SuperRes func(src []byte, srcOff int,
	dst []byte, dstOff int,
	upscaledWidth, initialSubpixelX, step int)

// LoopRestorationFunc applies one restoration filter to a unit. src is
// the prepared working buffer: the unit's pixels with 3 rows/columns of
// context on every side, src[srcOff] being the unit's first pixel.
type LoopRestorationFunc func(info *RestorationUnitInfo,
	src []byte, srcOff, srcStride int,
	dst []byte, dstOff, dstStride int,
	width, height int, scratch *RestorationBuffer)

// LoopRestorations is indexed by restoration type - 2 (Wiener, SgrProj).
var LoopRestorations [2]LoopRestorationFunc

// Init assigns the scalar reference implementations. It is called from
// this package's init(); architecture overrides run after it.
func Init() {
	initLoopFilters()
	initCdef()
	initSuperRes()
	initRestoration()
}

func init() {
	Init()
}
