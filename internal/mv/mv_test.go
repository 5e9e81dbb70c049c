package mv

import (
	"sort"
	"testing"

	"github.com/deepteams/av1/internal/frame"
	"github.com/deepteams/av1/internal/obu"
)

func testPredictor(header *obu.FrameHeader, rows4x4, columns4x4 int) *Predictor {
	blocks := frame.NewBlockParametersHolder(rows4x4, columns4x4)
	field := frame.NewTemporalMotionField((rows4x4+1)>>1, (columns4x4+1)>>1)
	return NewPredictor(header, blocks, field, 7, [obu.NumReferenceFrameTypes]int{})
}

func interBlock(size frame.BlockSize, ref int8, mvRow, mvCol int16) *frame.BlockParameters {
	return &frame.BlockParameters{
		Size:           size,
		IsInter:        true,
		PredictionMode: frame.PredictionModeNewMv,
		ReferenceFrame: [2]int8{ref, obu.ReferenceFrameNone},
		Mv:             frame.CompoundMotionVector{{Row: mvRow, Col: mvCol}},
	}
}

func TestFindMvStackSpatialNeighbor(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 16, 16)
	p.blocks.FillRect(2, 4, interBlock(frame.Block8x8, obu.ReferenceFrameLast, -8, 4))

	b := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindMvStack(b, false)

	if s.NumFound != 2 {
		t.Fatalf("NumFound = %d, want 2 (neighbor plus global pad)", s.NumFound)
	}
	if got := s.Candidates[0][0]; got != (frame.MotionVector{Row: -8, Col: 4}) {
		t.Errorf("Candidates[0] = %+v, want {-8 4}", got)
	}
	if s.Weights[0] <= 640 {
		t.Errorf("nearest candidate weight = %d, want > 640", s.Weights[0])
	}
	if !s.Candidates[1][0].IsZero() {
		t.Errorf("pad candidate = %+v, want zero global MV", s.Candidates[1][0])
	}
	if s.Contexts.NewMv != 2 || s.Contexts.ReferenceMv != 3 {
		t.Errorf("contexts = %+v, want NewMv 2 ReferenceMv 3", s.Contexts)
	}
	if s.Contexts.ZeroMv != 0 {
		t.Errorf("ZeroMv context = %d, want 0 for zero global motion", s.Contexts.ZeroMv)
	}
}

func TestFindMvStackCapacity(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 32, 32)
	// 8 distinct candidates above and 8 more to the left; the stack must
	// cap at its fixed capacity.
	for i := 0; i < 8; i++ {
		p.blocks.FillRect(3, 4+i, interBlock(frame.Block4x4, obu.ReferenceFrameLast, int16(2*i), 0))
		p.blocks.FillRect(4+i, 3, interBlock(frame.Block4x4, obu.ReferenceFrameLast, int16(2*i), 64))
	}
	b := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 8, Height4x4: 8,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindMvStack(b, false)
	if s.NumFound != MaxStackSize {
		t.Errorf("NumFound = %d, want %d", s.NumFound, MaxStackSize)
	}
}

func TestFindMvStackDeduplicatesAndSorts(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 16, 16)
	// The wide neighbor above repeats one MV over four cells; the left
	// column contributes a different MV once. The repeated MV must appear
	// once with the larger weight, sorted first.
	p.blocks.FillRect(2, 4, interBlock(frame.Block16x8, obu.ReferenceFrameLast, -8, 4))
	p.blocks.FillRect(4, 3, interBlock(frame.Block4x4, obu.ReferenceFrameLast, 16, -2))

	b := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 4, Height4x4: 4,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindMvStack(b, false)
	if s.NumFound != 2 {
		t.Fatalf("NumFound = %d, want 2", s.NumFound)
	}
	if got := s.Candidates[0][0]; got != (frame.MotionVector{Row: -8, Col: 4}) {
		t.Errorf("heaviest candidate = %+v, want the repeated {-8 4}", got)
	}
	if s.Weights[0] <= s.Weights[1] {
		t.Errorf("weights not descending: %d then %d", s.Weights[0], s.Weights[1])
	}
}

func intraBlock(size frame.BlockSize) *frame.BlockParameters {
	return &frame.BlockParameters{
		Size:           size,
		ReferenceFrame: [2]int8{obu.ReferenceFrameIntra, obu.ReferenceFrameNone},
	}
}

func TestFindMvStackExtraSearchCrossReference(t *testing.T) {
	// A short stack borrows motion from inter neighbors whatever reference
	// they cite. The row above holds an intra block and one inter block
	// referencing Golden; a block predicting from Last must still pick up
	// the Golden neighbor's motion as its first candidate.
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 16, 16)
	p.blocks.FillRect(3, 4, intraBlock(frame.Block4x4))
	p.blocks.FillRect(3, 5, interBlock(frame.Block4x4, obu.ReferenceFrameGolden, -8, 4))

	b := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindMvStack(b, false)
	if s.NumFound != 2 {
		t.Fatalf("NumFound = %d, want 2", s.NumFound)
	}
	if got := s.Candidates[0][0]; got != (frame.MotionVector{Row: -8, Col: 4}) {
		t.Errorf("Candidates[0] = %+v, want {-8 4}", got)
	}
	if s.Weights[0] != 0 {
		t.Errorf("borrowed candidate weight = %d, want 0", s.Weights[0])
	}
	if !s.Candidates[1][0].IsZero() {
		t.Errorf("pad candidate = %+v, want zero global MV", s.Candidates[1][0])
	}
}

func TestFindMvStackExtraSearchSignBias(t *testing.T) {
	// The borrowed MV flips sign when the neighbor's reference lies on the
	// other side of the current frame in display order.
	header := &obu.FrameHeader{AllowHighPrecisionMv: true, OrderHint: 8}
	blocks := frame.NewBlockParametersHolder(16, 16)
	field := frame.NewTemporalMotionField(8, 8)
	var hints [obu.NumReferenceFrameTypes]int
	hints[obu.ReferenceFrameLast] = 4    // past
	hints[obu.ReferenceFrameGolden] = 12 // future
	p := NewPredictor(header, blocks, field, 7, hints)
	p.blocks.FillRect(3, 4, interBlock(frame.Block8x4, obu.ReferenceFrameGolden, -8, 4))

	b := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindMvStack(b, false)
	if got := s.Candidates[0][0]; got != (frame.MotionVector{Row: 8, Col: -4}) {
		t.Errorf("Candidates[0] = %+v, want the flipped {8 -4}", got)
	}
}

func TestFindMvStackExtraSearchCompound(t *testing.T) {
	// Compound extra search pools the neighbor's motion per block reference
	// and merges the pools into combined pairs, padding with global motion.
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 16, 16)
	p.blocks.FillRect(3, 4, interBlock(frame.Block8x4, obu.ReferenceFrameGolden, -8, 4))

	b := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameAlternate},
	}
	s := p.FindMvStack(b, true)
	if s.NumFound != 2 {
		t.Fatalf("NumFound = %d, want 2", s.NumFound)
	}
	want := frame.CompoundMotionVector{{Row: -8, Col: 4}, {Row: -8, Col: 4}}
	if s.Candidates[0] != want {
		t.Errorf("Candidates[0] = %+v, want %+v", s.Candidates[0], want)
	}
	if !s.Candidates[1][0].IsZero() || !s.Candidates[1][1].IsZero() {
		t.Errorf("Candidates[1] = %+v, want global zero pair", s.Candidates[1])
	}
}

func TestFindMvStackTemporalZeroMvContext(t *testing.T) {
	// With temporal prediction on, an empty motion field cell at the block
	// position forces the zero-MV context to 1 even under zero global
	// motion.
	header := &obu.FrameHeader{AllowHighPrecisionMv: true, UseRefFrameMvs: true}
	p := testPredictor(header, 16, 16)
	b := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindMvStack(b, false)
	if s.Contexts.ZeroMv != 1 {
		t.Errorf("ZeroMv context = %d, want 1 for an empty field cell", s.Contexts.ZeroMv)
	}
}

func TestFindMvStackTemporalZeroMvContextCompound(t *testing.T) {
	// The compound zero-MV comparison inspects both projected components:
	// a projection near the global MV on the first reference but far on the
	// second still raises the context.
	header := &obu.FrameHeader{AllowHighPrecisionMv: true, UseRefFrameMvs: true, OrderHint: 8}
	blocks := frame.NewBlockParametersHolder(16, 16)
	field := frame.NewTemporalMotionField(8, 8)
	var hints [obu.NumReferenceFrameTypes]int
	hints[obu.ReferenceFrameLast] = 8      // same display position
	hints[obu.ReferenceFrameAlternate] = 0 // eight frames away
	p := NewPredictor(header, blocks, field, 7, hints)
	field.RefOffset[field.Index(2, 2)] = 2
	field.Mv[field.Index(2, 2)] = frame.MotionVector{Row: 8}

	single := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	if s := p.FindMvStack(single, false); s.Contexts.ZeroMv != 0 {
		t.Errorf("single ZeroMv context = %d, want 0 for a near projection", s.Contexts.ZeroMv)
	}
	compound := &Block{
		Row4x4: 4, Column4x4: 4, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameAlternate},
	}
	if s := p.FindMvStack(compound, true); s.Contexts.ZeroMv != 1 {
		t.Errorf("compound ZeroMv context = %d, want 1 for a far second component", s.Contexts.ZeroMv)
	}
}

func TestTemporalScanConfinedTo64x64(t *testing.T) {
	// The three samples past the bottom-right corner apply only inside the
	// block's own 64x64 region; near a region boundary they are skipped.
	header := &obu.FrameHeader{AllowHighPrecisionMv: true, UseRefFrameMvs: true, OrderHint: 4}
	var hints [obu.NumReferenceFrameTypes]int
	hints[obu.ReferenceFrameLast] = 2
	tests := []struct {
		name         string
		row, column  int
		fieldRow     int
		fieldColumn  int
		wantTemporal bool
	}{
		// Corner sample (row+2, column+2) lands at 4x4 cell (6, 6),
		// field cell (3, 3), inside the same 64x64 region.
		{"inside", 4, 4, 3, 3, true},
		// For a block at (14, 14) the same sample crosses into the next
		// region and must be ignored.
		{"across", 14, 14, 8, 8, false},
	}
	for _, tt := range tests {
		blocks := frame.NewBlockParametersHolder(32, 32)
		field := frame.NewTemporalMotionField(16, 16)
		field.RefOffset[field.Index(tt.fieldRow, tt.fieldColumn)] = 2
		field.Mv[field.Index(tt.fieldRow, tt.fieldColumn)] = frame.MotionVector{Row: 32, Col: 16}
		p := NewPredictor(header, blocks, field, 7, hints)
		b := &Block{
			Row4x4: tt.row, Column4x4: tt.column, Width4x4: 2, Height4x4: 2,
			ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
		}
		s := p.FindMvStack(b, false)
		got := s.Candidates[0][0] == (frame.MotionVector{Row: 32, Col: 16})
		if got != tt.wantTemporal {
			t.Errorf("%s: temporal candidate found = %v, want %v (candidates %v)",
				tt.name, got, tt.wantTemporal, s.Candidates[:s.NumFound])
		}
	}
}

func TestComputeContexts(t *testing.T) {
	tests := []struct {
		foundNew                bool
		nearest, total          int
		wantNew, wantRef        int
	}{
		{false, 0, 0, 0, 0},
		{false, 0, 1, 1, 1},
		{false, 0, 2, 1, 2},
		{true, 1, 1, 2, 3},
		{false, 1, 2, 3, 4},
		{true, 2, 2, 4, 5},
		{false, 2, 2, 5, 5},
	}
	for _, tt := range tests {
		gotNew, gotRef := computeContexts(tt.foundNew, tt.nearest, tt.total)
		if gotNew != tt.wantNew || gotRef != tt.wantRef {
			t.Errorf("computeContexts(%v, %d, %d) = %d, %d, want %d, %d",
				tt.foundNew, tt.nearest, tt.total, gotNew, gotRef, tt.wantNew, tt.wantRef)
		}
	}
}

func TestLowerMvPrecisionIdempotent(t *testing.T) {
	for _, force := range []bool{false, true} {
		header := &obu.FrameHeader{ForceIntegerMv: force}
		p := testPredictor(header, 4, 4)
		for v := -32768; v <= 32767; v += 7 {
			mv := frame.MotionVector{Row: int16(v), Col: int16(-v >> 1)}
			p.LowerMvPrecision(&mv)
			once := mv
			p.LowerMvPrecision(&mv)
			if mv != once {
				t.Fatalf("force=%v: not idempotent at %d: %+v then %+v", force, v, once, mv)
			}
			if force {
				if once.Row%8 != 0 || once.Col%8 != 0 {
					t.Fatalf("force=%v: %d lowered to %+v, not full pel", force, v, once)
				}
			} else if once.Row&1 != 0 || once.Col&1 != 0 {
				t.Fatalf("%d lowered to odd %+v", v, once)
			}
		}
	}
}

func TestLowerMvPrecisionHighPrecisionNoOp(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 4, 4)
	mv := frame.MotionVector{Row: -7, Col: 13}
	p.LowerMvPrecision(&mv)
	if mv != (frame.MotionVector{Row: -7, Col: 13}) {
		t.Errorf("high precision changed mv to %+v", mv)
	}
}

func TestProject(t *testing.T) {
	tests := []struct {
		mv       frame.MotionVector
		num, den int
		want     frame.MotionVector
	}{
		{frame.MotionVector{Row: 64, Col: -32}, 2, 4, frame.MotionVector{Row: 32, Col: -16}},
		{frame.MotionVector{Row: 100, Col: 100}, 1, 1, frame.MotionVector{Row: 100, Col: 100}},
		{frame.MotionVector{Row: 0, Col: 0}, 5, 3, frame.MotionVector{Row: 0, Col: 0}},
		// Projection output is clamped.
		{frame.MotionVector{Row: 16000, Col: 0}, 31, 1, frame.MotionVector{Row: 16383, Col: 0}},
		{frame.MotionVector{Row: -16000, Col: 0}, 31, 1, frame.MotionVector{Row: -16383, Col: 0}},
	}
	for _, tt := range tests {
		if got := Project(tt.mv, tt.num, tt.den); got != tt.want {
			t.Errorf("Project(%+v, %d, %d) = %+v, want %+v", tt.mv, tt.num, tt.den, got, tt.want)
		}
	}
}

func TestGlobalMvForBlock(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	header.GlobalMotion[obu.ReferenceFrameLast] = obu.GlobalMotion{
		Type:   obu.GlobalMotionTransformationTypeTranslation,
		Params: [6]int32{5 << 13, -3 << 13},
	}
	p := testPredictor(header, 16, 16)
	b := &Block{
		Row4x4: 0, Column4x4: 0, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	if got := p.GlobalMvForBlock(b, 0); got != (frame.MotionVector{Row: 5, Col: -3}) {
		t.Errorf("translation global mv = %+v, want {5 -3}", got)
	}

	b.ReferenceFrame[0] = obu.ReferenceFrameGolden // identity by default
	if got := p.GlobalMvForBlock(b, 0); !got.IsZero() {
		t.Errorf("identity global mv = %+v, want zero", got)
	}
	b.ReferenceFrame[0] = obu.ReferenceFrameIntra
	if got := p.GlobalMvForBlock(b, 0); !got.IsZero() {
		t.Errorf("intra global mv = %+v, want zero", got)
	}
}

// permutations feeds every ordering of v to fn.
func permutations(v []uint16, fn func([]uint16)) {
	var heap func(n int)
	heap = func(n int) {
		if n == 1 {
			tmp := make([]uint16, len(v))
			copy(tmp, v)
			fn(tmp)
			return
		}
		for i := 0; i < n; i++ {
			heap(n - 1)
			if n%2 == 0 {
				v[i], v[n-1] = v[n-1], v[i]
			} else {
				v[0], v[n-1] = v[n-1], v[0]
			}
		}
	}
	heap(len(v))
}

func TestSortDescendingMatchesGenericSort(t *testing.T) {
	// The fixed networks for short inputs must agree with a reference
	// sort on every permutation, duplicates included.
	for _, values := range [][]uint16{
		{},
		{9},
		{3, 7},
		{5, 5},
		{3, 1, 3},
		{640, 4, 640},
		{1, 2, 3, 2, 1},
	} {
		want := make([]uint16, len(values))
		copy(want, values)
		sort.Slice(want, func(i, j int) bool { return want[i] > want[j] })
		permutations(values, func(perm []uint16) {
			got := make([]uint16, len(perm))
			copy(got, perm)
			sortDescending(got)
			for i := range got {
				if got[i] != want[i] {
					t.Fatalf("sortDescending(%v) = %v, want %v", perm, got, want)
				}
			}
		})
	}
}

func TestSortByWeightKeepsPairsAndStability(t *testing.T) {
	s := &Stack{NumFound: 4}
	mvs := []frame.MotionVector{{Row: 1}, {Row: 2}, {Row: 3}, {Row: 4}}
	weights := []int{4, 10, 4, 12}
	for i := range mvs {
		s.Candidates[i][0] = mvs[i]
		s.Weights[i] = weights[i]
	}
	s.sortByWeight(0, 4)
	wantRows := []int16{4, 2, 1, 3} // ties keep insertion order
	for i, want := range wantRows {
		if s.Candidates[i][0].Row != want {
			t.Errorf("position %d: mv row %d, want %d (weights %v)",
				i, s.Candidates[i][0].Row, want, s.Weights)
		}
	}
	for i := 1; i < 4; i++ {
		if s.Weights[i] > s.Weights[i-1] {
			t.Errorf("weights not descending: %v", s.Weights[:4])
		}
	}
}

func TestFindWarpSamples(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 16, 16)
	// Above: same reference, motion close to the block's own. Left: same
	// reference but far outside the outlier threshold.
	p.blocks.FillRect(1, 2, interBlock(frame.Block8x4, obu.ReferenceFrameLast, 10, 10))
	p.blocks.FillRect(2, 1, interBlock(frame.Block4x4, obu.ReferenceFrameLast, 500, 500))

	b := &Block{
		Row4x4: 2, Column4x4: 2, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindWarpSamples(b, frame.MotionVector{Row: 8, Col: 8})
	if s.NumSamples != 1 {
		t.Fatalf("NumSamples = %d, want 1", s.NumSamples)
	}
	if s.NumScanned < 2 {
		t.Errorf("NumScanned = %d, want at least 2", s.NumScanned)
	}
	// The kept sample pairs the neighbor's center with its motion.
	c := s.Candidates[0]
	if c[2]-c[0] != 10 || c[3]-c[1] != 10 {
		t.Errorf("sample displacement = (%d, %d), want (10, 10)", c[2]-c[0], c[3]-c[1])
	}
}

func TestFindWarpSamplesFallback(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 16, 16)
	p.blocks.FillRect(1, 2, interBlock(frame.Block8x4, obu.ReferenceFrameLast, 500, 500))
	b := &Block{
		Row4x4: 2, Column4x4: 2, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	s := p.FindWarpSamples(b, frame.MotionVector{})
	if s.NumSamples != 1 {
		t.Errorf("NumSamples = %d, want 1 via fallback", s.NumSamples)
	}
	if s.NumScanned == 0 {
		t.Error("NumScanned = 0, want the rejected neighbor counted")
	}
}

func TestSetupMotionField(t *testing.T) {
	pool := frame.NewBufferPool(0)
	ref := pool.GetFreeBuffer()
	if ref == nil {
		t.Fatal("no free buffer")
	}
	defer ref.Unref()
	if err := ref.Realloc(64, 64, 64, 1, 1, false); err != nil {
		t.Fatal(err)
	}
	ref.OrderHint = 7
	ref.ReferenceOrderHints[obu.ReferenceFrameLast] = 5
	for i := range ref.MotionFieldRef {
		ref.MotionFieldRef[i] = -1
	}
	cols8 := (ref.Columns4x4 + 1) >> 1
	// One cell with stationary motion, one whose motion projects it one
	// cell up within the same 64-pixel band.
	ref.MotionFieldRef[2*cols8+2] = obu.ReferenceFrameLast
	ref.MotionFieldMv[2*cols8+2] = frame.MotionVector{}
	ref.MotionFieldRef[4*cols8+1] = obu.ReferenceFrameLast
	ref.MotionFieldMv[4*cols8+1] = frame.MotionVector{Row: 128}

	header := &obu.FrameHeader{OrderHint: 8, FrameType: obu.FrameInter}
	state := &frame.DecoderState{}
	state.ReferenceFrame[0] = ref
	ref.Ref()
	state.ReferenceOrderHint[0] = 7
	defer state.ClearReferenceFrames()

	rows8 := (ref.Rows4x4 + 1) >> 1
	field := frame.NewTemporalMotionField(rows8, cols8)
	SetupMotionField(header, state, field, 7, 0, rows8)

	if got := field.RefOffset[field.Index(2, 2)]; got != 2 {
		t.Errorf("stationary cell offset = %d, want 2", got)
	}
	// Row mv 128 projects by 128 * (-1) / 2 >> 6 = -1 cell.
	if got := field.RefOffset[field.Index(3, 1)]; got != 2 {
		t.Errorf("projected cell offset = %d, want 2", got)
	}
	if got := field.Mv[field.Index(3, 1)]; got != (frame.MotionVector{Row: 128}) {
		t.Errorf("projected cell mv = %+v, want the original {128 0}", got)
	}
	if got := field.RefOffset[field.Index(4, 1)]; got != -1 {
		t.Errorf("source cell of moved motion = %d, want invalid", got)
	}
}

func TestClampToBlockRange(t *testing.T) {
	header := &obu.FrameHeader{AllowHighPrecisionMv: true}
	p := testPredictor(header, 16, 16)
	b := &Block{
		Row4x4: 0, Column4x4: 0, Width4x4: 2, Height4x4: 2,
		ReferenceFrame: [2]int8{obu.ReferenceFrameLast, obu.ReferenceFrameNone},
	}
	got := p.clampToBlockRange(b, frame.MotionVector{Row: -30000, Col: 30000})
	// At the frame origin the block may move up only by the border.
	wantMinRow := int16(-(Border + 2*4*8))
	if got.Row != wantMinRow {
		t.Errorf("clamped row = %d, want %d", got.Row, wantMinRow)
	}
	wantMaxCol := int16(32*(16-2) + Border + 2*4*8)
	if got.Col != wantMaxCol {
		t.Errorf("clamped col = %d, want %d", got.Col, wantMaxCol)
	}
}
