package dsp

// Loop restoration, Section 7.17: the Wiener filter and the self-guided
// (SGR) box filter. Both operate on a prepared working buffer carrying
// RestorationBorder rows/columns of context around the unit.

const (
	// Context rows/columns each kernel reads around the unit.
	RestorationBorder = 3

	WienerFilterBits          = 7
	WienerFilterTaps          = 7
	wienerRoundBitsHorizontal = 3
	wienerRoundBitsVertical   = 11

	SgrProjPrecisionBits  = 7
	SgrProjRestoreBits    = 4
	SgrProjSgrBits        = 8
	SgrProjReciprocalBits = 12
	SgrProjScaleBits      = 20

	// Restoration intermediates are written in chunks of this many
	// columns; scratch strides are padded to it so over-wide writes stay
	// inside the unit's own rows.
	RestorationProcessingUnitSize = 16

	// Largest restoration unit is 256x256 luma; a processing band within
	// it is at most 64 rows plus context.
	maxUnitWidth  = 256 + RestorationProcessingUnitSize
	maxBandHeight = 64 + 2*RestorationBorder
)

// Radius pairs and box-filter scale values per sgr_proj_info.index
// (Section 7.17.3). The scale is (1 << SgrProjScaleBits) / (e * n * n)
// for the coded strength e and window size n = 2*radius + 1.
var kSgrRadii = [16][2]int{
	{2, 1}, {2, 1}, {2, 1}, {2, 1}, {2, 1}, {2, 1}, {2, 1}, {2, 1},
	{2, 1}, {2, 1}, {0, 1}, {0, 1}, {0, 1}, {0, 1}, {2, 0}, {2, 0},
}

var kSgrScale = [16][2]int{
	{140, 3236}, {112, 2158}, {93, 1618}, {80, 1438},
	{70, 1295}, {58, 1177}, {47, 1079}, {37, 996},
	{30, 925}, {25, 863}, {0, 2589}, {0, 1618},
	{0, 1177}, {0, 925}, {56, 0}, {22, 0},
}

// SgrProjInfo is one unit's coded self-guided parameters.
type SgrProjInfo struct {
	Index      int
	Multiplier [2]int // w0, w2
}

// Weights returns the three projection weights. The middle weight is
// derived so the three always sum to 1 << SgrProjPrecisionBits.
func (s *SgrProjInfo) Weights() (w0, w1, w2 int) {
	w0 = s.Multiplier[0]
	w2 = s.Multiplier[1]
	if kSgrRadii[s.Index][0] == 0 {
		w0 = 0
	}
	if kSgrRadii[s.Index][1] == 0 {
		w2 = 0
	}
	w1 = (1 << SgrProjPrecisionBits) - w0 - w2
	return w0, w1, w2
}

// WienerInfo is one unit's coded Wiener parameters: the three stored
// coefficients per direction. The center tap is derived; leading zero
// coefficients shorten the filter to 5, 3 or 1 taps.
type WienerInfo struct {
	Filter [2][3]int16 // [horizontal, vertical]
}

const (
	WienerHorizontal = 0
	WienerVertical   = 1
)

// RestorationType mirrors the frame-header restoration types.
type RestorationType uint8

const (
	RestorationTypeNone RestorationType = iota
	RestorationTypeSwitchable
	RestorationTypeWiener
	RestorationTypeSgrProj
)

// RestorationUnitInfo is the per-unit filter choice with its parameters.
type RestorationUnitInfo struct {
	Type        RestorationType
	Wiener      WienerInfo
	SgrProjInfo SgrProjInfo
}

// RestorationBuffer is the reusable scratch a worker thread owns while
// filtering units: the Wiener 13-bit intermediate and the SGR grids.
type RestorationBuffer struct {
	wiener []int32
	a      []int32 // SGR ma grid
	b      []int32 // SGR offset grid
	flt    [2][]int32
}

func ensureInt32(s []int32, n int) []int32 {
	if cap(s) < n {
		return make([]int32, n)
	}
	return s[:n]
}

func expandWienerFilter(stored [3]int16) [WienerFilterTaps]int {
	var f [WienerFilterTaps]int
	f[0], f[6] = int(stored[0]), int(stored[0])
	f[1], f[5] = int(stored[1]), int(stored[1])
	f[2], f[4] = int(stored[2]), int(stored[2])
	f[3] = 128 - 2*(int(stored[0])+int(stored[1])+int(stored[2]))
	return f
}

// wienerFilter is the separable 7/5/3/1-tap filter: a horizontal pass
// into a clamped intermediate, then a vertical pass back to pixels
// (Section 7.17.4).
func wienerFilter(info *RestorationUnitInfo,
	src []byte, srcOff, srcStride int,
	dst []byte, dstOff, dstStride int,
	width, height int, scratch *RestorationBuffer) {

	fh := expandWienerFilter(info.Wiener.Filter[WienerHorizontal])
	fv := expandWienerFilter(info.Wiener.Filter[WienerVertical])

	iStride := alignToProcessingUnit(width)
	rows := height + WienerFilterTaps - 1
	scratch.wiener = ensureInt32(scratch.wiener, rows*iStride)
	intermediate := scratch.wiener

	const center = WienerFilterTaps / 2
	limit := (1 << (8 + 1 + WienerFilterBits - wienerRoundBitsHorizontal)) - 1
	horizontalRounding := 1 << (8 + WienerFilterBits - 1)
	for iy := 0; iy < rows; iy++ {
		rowOff := srcOff + (iy-center)*srcStride
		for x := 0; x < width; x++ {
			sum := horizontalRounding
			for t := 0; t < WienerFilterTaps; t++ {
				sum += int(src[rowOff+x+t-center]) * fh[t]
			}
			intermediate[iy*iStride+x] = int32(Clip3(
				RightShiftWithRounding(sum, wienerRoundBitsHorizontal), 0, limit))
		}
	}

	verticalRounding := -(1 << (8 + wienerRoundBitsVertical - 1))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum := verticalRounding
			for t := 0; t < WienerFilterTaps; t++ {
				sum += int(intermediate[(y+t)*iStride+x]) * fv[t]
			}
			dst[dstOff+y*dstStride+x] = ClipPixel(
				RightShiftWithRounding(sum, wienerRoundBitsVertical))
		}
	}
}

func alignToProcessingUnit(width int) int {
	return (width + RestorationProcessingUnitSize - 1) & ^(RestorationProcessingUnitSize - 1)
}

// boxFilterPass computes one self-guided pass: per-pixel blend weight ma
// from the clipped local variance, a matching offset grid, then the
// cross-weighted combination, output in SgrProjRestoreBits extra
// precision.
func boxFilterPass(src []byte, srcOff, srcStride int,
	width, height, radius, scale int,
	scratch *RestorationBuffer, pass int) []int32 {

	gridStride := alignToProcessingUnit(width) + 2
	gridRows := height + 2
	scratch.a = ensureInt32(scratch.a, gridRows*gridStride)
	scratch.b = ensureInt32(scratch.b, gridRows*gridStride)
	a, b := scratch.a, scratch.b

	n := (2*radius + 1) * (2*radius + 1)
	oneOverN := ((1 << SgrProjReciprocalBits) + n/2) / n

	for gy := -1; gy <= height; gy++ {
		// The radius-2 pass keeps grids on alternate rows only; the
		// combination below never reads the even ones.
		if pass == 0 && gy&1 == 0 {
			continue
		}
		for gx := -1; gx <= width; gx++ {
			var sum, sumSq int
			for dy := -radius; dy <= radius; dy++ {
				rowOff := srcOff + (gy+dy)*srcStride + gx
				for dx := -radius; dx <= radius; dx++ {
					v := int(src[rowOff+dx])
					sum += v
					sumSq += v * v
				}
			}
			p := sumSq*n - sum*sum
			if p < 0 {
				p = 0
			}
			z := RightShiftWithRounding(p*scale, SgrProjScaleBits)
			var ma int
			switch {
			case z >= 255:
				ma = 256
			case z == 0:
				ma = 1
			default:
				ma = ((z << SgrProjSgrBits) + z/2) / (z + 1)
			}
			idx := (gy+1)*gridStride + gx + 1
			a[idx] = int32(ma)
			b[idx] = int32(RightShiftWithRounding(
				((1<<SgrProjSgrBits)-ma)*sum*oneOverN, SgrProjReciprocalBits))
		}
	}

	scratch.flt[pass] = ensureInt32(scratch.flt[pass], height*alignToProcessingUnit(width))
	flt := scratch.flt[pass]
	fltStride := alignToProcessingUnit(width)

	if pass == 0 {
		// 5-6-5 row aggregate over the alternate-row grids. Odd output
		// rows read their own grid row (weight 16, shift 4); even rows
		// sum both neighboring grid rows (weight 32, shift 5).
		sum565 := func(g []int32, gy, x int) int {
			idx := (gy+1)*gridStride + x + 1
			return 5*(int(g[idx-1])+int(g[idx+1])) + 6*int(g[idx])
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				var aTotal, bTotal int
				shift := 5
				if y&1 == 1 {
					aTotal = sum565(a, y, x)
					bTotal = sum565(b, y, x)
					shift = 4
				} else {
					aTotal = sum565(a, y-1, x) + sum565(a, y+1, x)
					bTotal = sum565(b, y-1, x) + sum565(b, y+1, x)
				}
				v := aTotal*int(src[srcOff+y*srcStride+x]) + bTotal
				flt[y*fltStride+x] = int32(RightShiftWithRounding(v,
					SgrProjSgrBits+shift-SgrProjRestoreBits))
			}
		}
		return flt
	}

	// 3x3 cross combination for the radius-1 pass: corners weight 3,
	// center and edges 4, for a total of 32 (shift 5).
	const nb = 5
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := (y+1)*gridStride + x + 1
			aTotal := 4*(int(a[idx])+int(a[idx-1])+int(a[idx+1])+int(a[idx-gridStride])+int(a[idx+gridStride])) +
				3*(int(a[idx-gridStride-1])+int(a[idx-gridStride+1])+int(a[idx+gridStride-1])+int(a[idx+gridStride+1]))
			bTotal := 4*(int(b[idx])+int(b[idx-1])+int(b[idx+1])+int(b[idx-gridStride])+int(b[idx+gridStride])) +
				3*(int(b[idx-gridStride-1])+int(b[idx-gridStride+1])+int(b[idx+gridStride-1])+int(b[idx+gridStride+1]))
			v := aTotal*int(src[srcOff+y*srcStride+x]) + bTotal
			flt[y*fltStride+x] = int32(RightShiftWithRounding(v,
				SgrProjSgrBits+nb-SgrProjRestoreBits))
		}
	}
	return flt
}

// selfGuidedFilter runs the active box-filter passes and projects the
// outputs against the source with the coded multipliers (Section 7.17.3).
func selfGuidedFilter(info *RestorationUnitInfo,
	src []byte, srcOff, srcStride int,
	dst []byte, dstOff, dstStride int,
	width, height int, scratch *RestorationBuffer) {

	index := info.SgrProjInfo.Index
	r0, r1 := kSgrRadii[index][0], kSgrRadii[index][1]
	w0, w1, w2 := info.SgrProjInfo.Weights()

	var flt0, flt1 []int32
	if r0 > 0 {
		flt0 = boxFilterPass(src, srcOff, srcStride, width, height, r0, kSgrScale[index][0], scratch, 0)
	}
	if r1 > 0 {
		flt1 = boxFilterPass(src, srcOff, srcStride, width, height, r1, kSgrScale[index][1], scratch, 1)
	}

	fltStride := alignToProcessingUnit(width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u := int(src[srcOff+y*srcStride+x]) << SgrProjRestoreBits
			v := w1 * u
			if flt0 != nil {
				v += w0 * int(flt0[y*fltStride+x])
			} else {
				v += w0 * u
			}
			if flt1 != nil {
				v += w2 * int(flt1[y*fltStride+x])
			} else {
				v += w2 * u
			}
			dst[dstOff+y*dstStride+x] = ClipPixel(
				RightShiftWithRounding(v, SgrProjPrecisionBits+SgrProjRestoreBits))
		}
	}
}

func initRestoration() {
	LoopRestorations[0] = wienerFilter
	LoopRestorations[1] = selfGuidedFilter
}
