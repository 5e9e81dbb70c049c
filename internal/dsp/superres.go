package dsp

// Horizontal super resolution, Section 7.16. The upscaler walks the
// output row with a fixed-point subpixel position; the integer part
// selects the source pixel and the fractional part one of 64 8-tap
// phases.

const (
	SuperResScaleBits  = 14
	SuperResScaleMask  = (1 << SuperResScaleBits) - 1
	SuperResExtraBits  = 8
	SuperResFilterBits = 6
	SuperResFilterShifts = 1 << SuperResFilterBits
	SuperResFilterTaps = 8
	// Whole-pixel border the line buffer must carry on each side for the
	// tap footprint.
	SuperResHorizontalBorder = 4

	superResRoundingBits = 7
)

// First half of the phase table; the second half is the reverse of the
// first (phase i and 64-i mirror each other). Tap weights sum to 128.
var kUpscaleFilterHalf = [SuperResFilterShifts/2 + 1][SuperResFilterTaps]int{
	{0, 0, 0, 128, 0, 0, 0, 0},
	{0, 0, -1, 128, 2, -1, 0, 0},
	{0, 1, -3, 127, 4, -2, 1, 0},
	{0, 1, -4, 127, 6, -3, 1, 0},
	{0, 2, -6, 126, 8, -3, 1, 0},
	{0, 2, -7, 125, 11, -4, 1, 0},
	{-1, 2, -8, 125, 13, -5, 2, 0},
	{-1, 3, -9, 124, 15, -6, 2, 0},
	{-1, 3, -10, 123, 18, -6, 2, -1},
	{-1, 3, -11, 122, 20, -7, 2, 0},
	{-1, 4, -12, 121, 22, -8, 2, 0},
	{-1, 4, -13, 120, 25, -9, 2, 0},
	{-1, 4, -14, 118, 28, -9, 2, 0},
	{-1, 4, -15, 117, 30, -10, 2, 1},
	{-1, 5, -16, 116, 32, -11, 2, 1},
	{-1, 5, -16, 114, 35, -12, 2, 1},
	{-1, 5, -17, 112, 38, -12, 2, 1},
	{-1, 5, -18, 111, 41, -13, 2, 1},
	{-1, 5, -18, 109, 44, -14, 2, 1},
	{-1, 6, -19, 107, 46, -14, 2, 1},
	{-1, 6, -19, 105, 49, -15, 2, 1},
	{-1, 6, -19, 103, 52, -16, 2, 1},
	{-1, 6, -20, 101, 55, -16, 2, 1},
	{-1, 6, -20, 99, 58, -17, 2, 1},
	{-1, 6, -20, 97, 60, -17, 2, 1},
	{-1, 6, -20, 95, 63, -18, 2, 1},
	{-2, 7, -20, 93, 64, -18, 3, 1},
	{-2, 7, -20, 91, 68, -19, 2, 1},
	{-2, 7, -20, 88, 71, -19, 2, 1},
	{-2, 7, -20, 86, 72, -19, 2, 2},
	{-2, 7, -20, 84, 76, -20, 2, 1},
	{-2, 7, -20, 81, 78, -20, 2, 2},
	{-2, 7, -20, 79, 79, -20, 7, -2},
}

var kUpscaleFilter [SuperResFilterShifts][SuperResFilterTaps]int

func buildUpscaleFilter() {
	for i := 0; i <= SuperResFilterShifts/2; i++ {
		kUpscaleFilter[i] = kUpscaleFilterHalf[i]
	}
	for i := SuperResFilterShifts/2 + 1; i < SuperResFilterShifts; i++ {
		for t := 0; t < SuperResFilterTaps; t++ {
			kUpscaleFilter[i][t] = kUpscaleFilterHalf[SuperResFilterShifts-i][SuperResFilterTaps-1-t]
		}
	}
}

func superRes(src []byte, srcOff int, dst []byte, dstOff int,
	upscaledWidth, initialSubpixelX, step int) {
	subpixelX := initialSubpixelX
	for x := 0; x < upscaledWidth; x++ {
		filter := &kUpscaleFilter[(subpixelX&SuperResScaleMask)>>SuperResExtraBits]
		base := srcOff + (subpixelX >> SuperResScaleBits)
		sum := 0
		for t := 0; t < SuperResFilterTaps; t++ {
			sum += int(src[base+t-(SuperResFilterTaps/2-1)]) * filter[t]
		}
		dst[dstOff+x] = ClipPixel((sum + (1 << (superResRoundingBits - 1))) >> superResRoundingBits)
		subpixelX += step
	}
}

// SuperResCoefficients computes the per-plane fixed-point step and the
// error-corrected initial subpixel offset (Section 7.16).
func SuperResCoefficients(upscaledWidth, downscaledWidth int) (step, initialSubpixelX int) {
	step = ((downscaledWidth << SuperResScaleBits) + upscaledWidth/2) / upscaledWidth
	err := step*upscaledWidth - (downscaledWidth << SuperResScaleBits)
	initialSubpixelX = ((-((upscaledWidth - downscaledWidth) << (SuperResScaleBits - 1)) +
		upscaledWidth/2) / upscaledWidth +
		(1 << (SuperResExtraBits - 1)) - err/2) & SuperResScaleMask
	return step, initialSubpixelX
}

func initSuperRes() {
	buildUpscaleFilter()
	SuperRes = superRes
}
