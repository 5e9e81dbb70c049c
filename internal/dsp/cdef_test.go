package dsp

import "testing"

func TestCdefDirectionStripes(t *testing.T) {
	const stride = 8
	src := make([]byte, 64)

	// Horizontal stripes: structure runs along rows, direction 2.
	for y := 0; y < 8; y++ {
		v := byte(64)
		if y&1 != 0 {
			v = 192
		}
		for x := 0; x < 8; x++ {
			src[y*stride+x] = v
		}
	}
	dir, variance := CdefDirection(src, 0, stride)
	if dir != 2 {
		t.Errorf("horizontal stripes: direction = %d, want 2", dir)
	}
	if variance <= 0 {
		t.Errorf("horizontal stripes: variance = %d, want > 0", variance)
	}

	// Vertical stripes: structure runs along columns, direction 6.
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := byte(64)
			if x&1 != 0 {
				v = 192
			}
			src[y*stride+x] = v
		}
	}
	dir, variance = CdefDirection(src, 0, stride)
	if dir != 6 {
		t.Errorf("vertical stripes: direction = %d, want 6", dir)
	}
	if variance <= 0 {
		t.Errorf("vertical stripes: variance = %d, want > 0", variance)
	}
}

func TestCdefDirectionFlatBlock(t *testing.T) {
	const stride = 8
	src := make([]byte, 64)
	for i := range src {
		src[i] = 128
	}
	_, variance := CdefDirection(src, 0, stride)
	if variance != 0 {
		t.Errorf("flat block: variance = %d, want 0", variance)
	}
}

func TestCdefConstrain(t *testing.T) {
	tests := []struct {
		diff, threshold, damping, want int
	}{
		{0, 4, 3, 0},
		{3, 4, 3, 3},
		{-3, 4, 3, -3},
		{10, 4, 3, 0},
		{10, 8, 5, 6},
		{-10, 8, 5, -6},
		{100, 63, 6, 13},
		{5, 0, 3, 0},
	}
	for _, tt := range tests {
		if got := constrain(tt.diff, tt.threshold, tt.damping); got != tt.want {
			t.Errorf("constrain(%d, %d, %d) = %d, want %d",
				tt.diff, tt.threshold, tt.damping, got, tt.want)
		}
	}
}

// cdefWindow builds a padded working window with the interior set to fill
// and the two-cell border set to the padding sentinel.
func cdefWindow(fill uint16) ([]uint16, int, int) {
	const stride = 12
	src := make([]uint16, stride*12)
	for i := range src {
		src[i] = CdefLargeValue
	}
	for y := 2; y < 10; y++ {
		for x := 2; x < 10; x++ {
			src[y*stride+x] = fill
		}
	}
	return src, 2*stride + 2, stride
}

func TestCdefFilterIgnoresPadding(t *testing.T) {
	// With a uniform interior every in-frame tap difference is zero, so
	// even strong filtering next to sentinel cells must not move a pixel.
	src, off, stride := cdefWindow(77)
	dst := make([]byte, 64)
	for dir := 0; dir < 8; dir++ {
		CdefFilter(src, off, stride, dst, 0, 8, 8, 8, 7, 2, 3, dir)
		for i, v := range dst {
			if v != 77 {
				t.Fatalf("direction %d: pixel %d = %d, want 77", dir, i, v)
			}
		}
	}
}

func TestCdefFilterZeroStrengthIsCopy(t *testing.T) {
	src, off, stride := cdefWindow(0)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			src[off+y*stride+x] = uint16(y*31 + x*7)
		}
	}
	dst := make([]byte, 64)
	CdefFilter(src, off, stride, dst, 0, 8, 8, 8, 0, 0, 3, 5)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if got, want := dst[y*8+x], byte(y*31+x*7); got != want {
				t.Errorf("pixel (%d, %d) = %d, want %d", y, x, got, want)
			}
		}
	}
}

func TestCdefFilterClampsToTapRange(t *testing.T) {
	// One bright tap pulls the center up, but never past the brightest
	// pixel the filter saw.
	src, off, stride := cdefWindow(80)
	src[off+1] = 120 // direction 2 primary tap at (0, +1)
	dst := make([]byte, 64)
	CdefFilter(src, off, stride, dst, 0, 8, 8, 8, 15, 0, 6, 2)
	center := dst[0]
	if center < 80 || center > 120 {
		t.Errorf("center = %d, want within [80, 120]", center)
	}
	if center == 80 {
		t.Error("strong primary strength did not move the center pixel")
	}
}
