package dsp

import "math/bits"

// Clip3 clamps value to [low, high].
func Clip3(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// ClipPixel clamps value to the 8-bit pixel range.
func ClipPixel(value int) byte {
	if value < 0 {
		return 0
	}
	if value > 255 {
		return 255
	}
	return byte(value)
}

// RightShiftWithRounding shifts a non-negative value right with rounding.
func RightShiftWithRounding(value, bitCount int) int {
	return (value + (1 << (bitCount - 1))) >> bitCount
}

// RightShiftWithRoundingSigned rounds the magnitude, so negative values
// round away from the result a plain arithmetic shift would give.
func RightShiftWithRoundingSigned(value, bitCount int) int {
	if value >= 0 {
		return RightShiftWithRounding(value, bitCount)
	}
	return -RightShiftWithRounding(-value, bitCount)
}

// FloorLog2 returns floor(log2(n)) for n >= 1.
func FloorLog2(n int) int {
	return bits.Len(uint(n)) - 1
}

// CeilLog2 returns ceil(log2(n)) for n >= 1.
func CeilLog2(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// ApplySign returns value with the sign of signed.
func ApplySign(value, signed int) int {
	if signed < 0 {
		return -value
	}
	return value
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
