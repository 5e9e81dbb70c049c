package dsp

// Constrained Directional Enhancement Filter, Section 7.15.

// CdefLargeValue marks working-window cells beyond a true frame edge.
// It is far above any 8-bit pixel, so the filter's comparisons can tell
// padding from data without a separate mask.
const CdefLargeValue = 0x4000

// Tap offsets (dy, dx) for the two primary taps of each direction.
var kCdefDirections = [8][2][2]int{
	{{-1, 1}, {-2, 2}},
	{{0, 1}, {-1, 2}},
	{{0, 1}, {0, 2}},
	{{0, 1}, {1, 2}},
	{{1, 1}, {2, 2}},
	{{1, 0}, {2, 1}},
	{{1, 0}, {2, 0}},
	{{1, 0}, {2, -1}},
}

// Primary tap weights, selected by primaryStrength & 1.
var kCdefPrimaryTaps = [2][2]int{{4, 2}, {3, 3}}

// Secondary tap weights.
var kCdefSecondaryTaps = [2]int{2, 1}

// Direction cost normalizers: 840 / d for the partial-sum lengths of the
// diagonal directions.
var kCdefDivisionTable = [9]int{0, 840, 420, 280, 210, 168, 140, 120, 105}

// cdefDirection estimates the dominant direction of an 8x8 block by
// projecting the mean-removed pixels onto eight line orientations and
// scoring the squared partial sums (Section 7.15.2).
func cdefDirection(src []byte, off, stride int) (int, int) {
	var partial [8][15]int
	for i := 0; i < 8; i++ {
		for j := 0; j < 8; j++ {
			x := int(src[off+i*stride+j]) - 128
			partial[0][i+j] += x
			partial[1][i+j/2] += x
			partial[2][i] += x
			partial[3][3+i-j/2] += x
			partial[4][7+i-j] += x
			partial[5][3-i/2+j] += x
			partial[6][j] += x
			partial[7][i/2+j] += x
		}
	}

	var cost [8]int
	for i := 0; i < 8; i++ {
		cost[2] += partial[2][i] * partial[2][i]
		cost[6] += partial[6][i] * partial[6][i]
	}
	cost[2] *= kCdefDivisionTable[8]
	cost[6] *= kCdefDivisionTable[8]

	for _, d := range [2]int{0, 4} {
		for i := 0; i < 7; i++ {
			cost[d] += kCdefDivisionTable[i+1] *
				(partial[d][i]*partial[d][i] + partial[d][14-i]*partial[d][14-i])
		}
		cost[d] += kCdefDivisionTable[8] * partial[d][7] * partial[d][7]
	}
	for d := 1; d < 8; d += 2 {
		for i := 0; i < 5; i++ {
			cost[d] += partial[d][3+i] * partial[d][3+i]
		}
		cost[d] *= kCdefDivisionTable[8]
		for i := 0; i < 3; i++ {
			cost[d] += kCdefDivisionTable[2*i+2] *
				(partial[d][i]*partial[d][i] + partial[d][10-i]*partial[d][10-i])
		}
	}

	direction, best := 0, cost[0]
	for d := 1; d < 8; d++ {
		if cost[d] > best {
			best = cost[d]
			direction = d
		}
	}
	variance := (best - cost[(direction+4)&7]) >> 10
	return direction, variance
}

// constrain limits a tap's contribution by its distance from the center
// pixel, attenuated by the damping shift (Section 7.15.3).
func constrain(diff, threshold, damping int) int {
	if threshold == 0 {
		return 0
	}
	shift := damping - FloorLog2(threshold)
	if shift < 0 {
		shift = 0
	}
	d := abs(diff)
	v := threshold - (d >> shift)
	if v < 0 {
		v = 0
	} else if v > d {
		v = d
	}
	return ApplySign(v, diff)
}

// cdefFilter applies the primary and secondary taps to one block. Window
// cells holding CdefLargeValue contribute nothing and are excluded from
// the output clamp range.
func cdefFilter(src []uint16, srcOff, srcStride int,
	dst []byte, dstOff, dstStride int,
	width, height, primaryStrength, secondaryStrength, damping, direction int) {

	priTaps := kCdefPrimaryTaps[primaryStrength&1]

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			pos := srcOff + y*srcStride + x
			pixel := int(src[pos])
			sum := 0
			maxValue, minValue := pixel, pixel

			for k := 0; k < 2; k++ {
				if primaryStrength != 0 {
					dy := kCdefDirections[direction][k][0]
					dx := kCdefDirections[direction][k][1]
					for _, sign := range [2]int{1, -1} {
						p := int(src[pos+sign*(dy*srcStride+dx)])
						if p == CdefLargeValue {
							continue
						}
						sum += priTaps[k] * constrain(p-pixel, primaryStrength, damping)
						if p > maxValue {
							maxValue = p
						}
						if p < minValue {
							minValue = p
						}
					}
				}
				if secondaryStrength == 0 {
					continue
				}
				// Secondary taps sit two directions to either side.
				for _, sd := range [2]int{(direction + 2) & 7, (direction + 6) & 7} {
					sdy := kCdefDirections[sd][k][0]
					sdx := kCdefDirections[sd][k][1]
					for _, sign := range [2]int{1, -1} {
						p := int(src[pos+sign*(sdy*srcStride+sdx)])
						if p == CdefLargeValue {
							continue
						}
						sum += kCdefSecondaryTaps[k] * constrain(p-pixel, secondaryStrength, damping)
						if p > maxValue {
							maxValue = p
						}
						if p < minValue {
							minValue = p
						}
					}
				}
			}

			value := pixel + ((8 + sum - boolToInt(sum < 0)) >> 4)
			value = Clip3(value, minValue, maxValue)
			dst[dstOff+y*dstStride+x] = byte(value)
		}
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func initCdef() {
	CdefDirection = cdefDirection
	CdefFilter = cdefFilter
}
