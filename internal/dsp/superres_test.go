package dsp

import "testing"

func TestUpscaleFilterTable(t *testing.T) {
	for phase := 0; phase < SuperResFilterShifts; phase++ {
		sum := 0
		for _, tap := range kUpscaleFilter[phase] {
			sum += tap
		}
		if sum != 128 {
			t.Errorf("phase %d: tap sum = %d, want 128", phase, sum)
		}
	}
	// Phase 0 passes the source pixel through unchanged.
	for tap, want := range [8]int{0, 0, 0, 128, 0, 0, 0, 0} {
		if kUpscaleFilter[0][tap] != want {
			t.Fatalf("phase 0 tap %d = %d, want %d", tap, kUpscaleFilter[0][tap], want)
		}
	}
	// Phases i and 64-i mirror each other.
	for phase := 1; phase < SuperResFilterShifts/2; phase++ {
		for tap := 0; tap < SuperResFilterTaps; tap++ {
			a := kUpscaleFilter[phase][tap]
			b := kUpscaleFilter[SuperResFilterShifts-phase][SuperResFilterTaps-1-tap]
			if a != b {
				t.Errorf("phase %d tap %d = %d, mirror = %d", phase, tap, a, b)
			}
		}
	}
}

func TestSuperResCoefficients(t *testing.T) {
	for _, tt := range []struct{ upscaled, downscaled int }{
		{64, 64}, {64, 48}, {64, 36}, {128, 72}, {1920, 1080}, {354, 200},
	} {
		step, initial := SuperResCoefficients(tt.upscaled, tt.downscaled)
		if tt.upscaled == tt.downscaled && step != 1<<SuperResScaleBits {
			t.Errorf("equal widths: step = %d, want %d", step, 1<<SuperResScaleBits)
		}
		// The step is the rounded scale ratio, so the accumulated error
		// over the whole row stays within half an output pixel.
		err := step*tt.upscaled - tt.downscaled<<SuperResScaleBits
		if 2*abs(err) > tt.upscaled {
			t.Errorf("%d -> %d: accumulated step error %d too large",
				tt.downscaled, tt.upscaled, err)
		}
		if initial < 0 || initial > SuperResScaleMask {
			t.Errorf("%d -> %d: initial subpixel %d outside mask",
				tt.downscaled, tt.upscaled, initial)
		}
	}
}

// superResLine pads a row with the tap border on each side and upscales it.
func superResLine(row []byte, upscaledWidth int) []byte {
	src := make([]byte, len(row)+2*SuperResHorizontalBorder)
	copy(src[SuperResHorizontalBorder:], row)
	for i := 0; i < SuperResHorizontalBorder; i++ {
		src[i] = row[0]
		src[len(src)-1-i] = row[len(row)-1]
	}
	step, initial := SuperResCoefficients(upscaledWidth, len(row))
	dst := make([]byte, upscaledWidth)
	SuperRes(src, SuperResHorizontalBorder, dst, 0, upscaledWidth, initial, step)
	return dst
}

func TestSuperResUniformRow(t *testing.T) {
	// Every phase's taps sum to 128, so a constant row stays constant at
	// any scale factor.
	row := make([]byte, 52)
	for i := range row {
		row[i] = 123
	}
	for _, upscaled := range []int{52, 64, 104, 97} {
		for i, v := range superResLine(row, upscaled) {
			if v != 123 {
				t.Fatalf("width %d: pixel %d = %d, want 123", upscaled, i, v)
			}
		}
	}
}

func TestSuperResIdentityWidth(t *testing.T) {
	row := make([]byte, 64)
	for i := range row {
		row[i] = byte(i * 4)
	}
	got := superResLine(row, len(row))
	for i := range row {
		if got[i] != row[i] {
			t.Errorf("pixel %d = %d, want %d", i, got[i], row[i])
		}
	}
}

func TestSuperResStepEdge(t *testing.T) {
	// A hard step upscaled 2x keeps both plateaus and transitions within
	// the source range away from the edge.
	row := make([]byte, 32)
	for i := 16; i < 32; i++ {
		row[i] = 200
	}
	got := superResLine(row, 64)
	if got[2] != 0 || got[61] != 200 {
		t.Errorf("plateaus not preserved: got[2] = %d, got[61] = %d", got[2], got[61])
	}
}
