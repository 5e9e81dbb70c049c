package dsp

// AV1 deblocking loop filters, Section 7.14.6. Each function filters one
// edge segment of four lines. The generic line filters take a pixel pitch
// across the edge and a line pitch along it, so vertical and horizontal
// variants share one body (vertical edges: pitch 1, lines advance by
// stride; horizontal edges: pitch stride, lines advance by 1).

func clipDiff(v int) int {
	return Clip3(v, -128, 127)
}

// filterMask is the shared activity check: both sides close to the edge
// and the edge step itself within the outer threshold.
func filterMask(buf []byte, off, pitch, count, outer, inner int) bool {
	p0 := int(buf[off-pitch])
	q0 := int(buf[off])
	p1 := int(buf[off-2*pitch])
	q1 := int(buf[off+pitch])
	if abs(p1-p0) > inner || abs(q1-q0) > inner {
		return false
	}
	if 2*abs(p0-q0)+abs(p1-q1)/2 > outer {
		return false
	}
	for i := 2; i < count; i++ {
		if abs(int(buf[off-(i+1)*pitch])-int(buf[off-i*pitch])) > inner {
			return false
		}
		if abs(int(buf[off+i*pitch])-int(buf[off+(i-1)*pitch])) > inner {
			return false
		}
	}
	return true
}

// isFlat checks that the count outermost pixels on each side sit within
// one step of the edge pixels (the 8-bit flatness threshold).
func isFlat(buf []byte, off, pitch, first, last int) bool {
	p0 := int(buf[off-pitch])
	q0 := int(buf[off])
	for i := first; i <= last; i++ {
		if abs(int(buf[off-(i+1)*pitch])-p0) > 1 {
			return false
		}
		if abs(int(buf[off+i*pitch])-q0) > 1 {
			return false
		}
	}
	return true
}

func hev(buf []byte, off, pitch, thresh int) bool {
	p0 := int(buf[off-pitch])
	q0 := int(buf[off])
	p1 := int(buf[off-2*pitch])
	q1 := int(buf[off+pitch])
	return abs(p1-p0) > thresh || abs(q1-q0) > thresh
}

// filter4Line is the narrow filter, Section 7.14.6.3. Writes p0/q0 and,
// without high edge variance, p1/q1.
func filter4Line(buf []byte, off, pitch int, highEdgeVariance bool) {
	ps1 := int(buf[off-2*pitch]) - 128
	ps0 := int(buf[off-pitch]) - 128
	qs0 := int(buf[off]) - 128
	qs1 := int(buf[off+pitch]) - 128

	filter := 0
	if highEdgeVariance {
		filter = clipDiff(ps1 - qs1)
	}
	filter = clipDiff(filter + 3*(qs0-ps0))
	filter1 := clipDiff(filter+4) >> 3
	filter2 := clipDiff(filter+3) >> 3

	buf[off] = byte(clipDiff(qs0-filter1) + 128)
	buf[off-pitch] = byte(clipDiff(ps0+filter2) + 128)
	if !highEdgeVariance {
		filter = (filter1 + 1) >> 1
		buf[off+pitch] = byte(clipDiff(qs1-filter) + 128)
		buf[off-2*pitch] = byte(clipDiff(ps1+filter) + 128)
	}
}

// filter6Line is the 6-tap smoothing used for flat chroma edges.
func filter6Line(buf []byte, off, pitch int) {
	p2 := int(buf[off-3*pitch])
	p1 := int(buf[off-2*pitch])
	p0 := int(buf[off-pitch])
	q0 := int(buf[off])
	q1 := int(buf[off+pitch])
	q2 := int(buf[off+2*pitch])

	buf[off-2*pitch] = byte(RightShiftWithRounding(p2*3+p1*2+p0*2+q0, 3))
	buf[off-pitch] = byte(RightShiftWithRounding(p2+p1*2+p0*2+q0*2+q1, 3))
	buf[off] = byte(RightShiftWithRounding(p1+p0*2+q0*2+q1*2+q2, 3))
	buf[off+pitch] = byte(RightShiftWithRounding(p0+q0*2+q1*2+q2*3, 3))
}

// filter8Line is the 8-tap smoothing for flat luma edges.
func filter8Line(buf []byte, off, pitch int) {
	p3 := int(buf[off-4*pitch])
	p2 := int(buf[off-3*pitch])
	p1 := int(buf[off-2*pitch])
	p0 := int(buf[off-pitch])
	q0 := int(buf[off])
	q1 := int(buf[off+pitch])
	q2 := int(buf[off+2*pitch])
	q3 := int(buf[off+3*pitch])

	buf[off-3*pitch] = byte(RightShiftWithRounding(p3*3+p2*2+p1+p0+q0, 3))
	buf[off-2*pitch] = byte(RightShiftWithRounding(p3*2+p2+p1*2+p0+q0+q1, 3))
	buf[off-pitch] = byte(RightShiftWithRounding(p3+p2+p1+p0*2+q0+q1+q2, 3))
	buf[off] = byte(RightShiftWithRounding(p2+p1+p0+q0*2+q1+q2+q3, 3))
	buf[off+pitch] = byte(RightShiftWithRounding(p1+p0+q0+q1*2+q2+q3*2, 3))
	buf[off+2*pitch] = byte(RightShiftWithRounding(p0+q0+q1+q2*2+q3*3, 3))
}

// filter14Line is the widest smoothing, used when the outer region is
// also flat.
func filter14Line(buf []byte, off, pitch int) {
	var p, q [7]int
	for i := 0; i < 7; i++ {
		p[i] = int(buf[off-(i+1)*pitch])
		q[i] = int(buf[off+i*pitch])
	}

	buf[off-6*pitch] = byte(RightShiftWithRounding(p[6]*7+p[5]*2+p[4]*2+p[3]+p[2]+p[1]+p[0]+q[0], 4))
	buf[off-5*pitch] = byte(RightShiftWithRounding(p[6]*5+p[5]*2+p[4]*2+p[3]*2+p[2]+p[1]+p[0]+q[0]+q[1], 4))
	buf[off-4*pitch] = byte(RightShiftWithRounding(p[6]*4+p[5]+p[4]*2+p[3]*2+p[2]*2+p[1]+p[0]+q[0]+q[1]+q[2], 4))
	buf[off-3*pitch] = byte(RightShiftWithRounding(p[6]*3+p[5]+p[4]+p[3]*2+p[2]*2+p[1]*2+p[0]+q[0]+q[1]+q[2]+q[3], 4))
	buf[off-2*pitch] = byte(RightShiftWithRounding(p[6]*2+p[5]+p[4]+p[3]+p[2]*2+p[1]*2+p[0]*2+q[0]+q[1]+q[2]+q[3]+q[4], 4))
	buf[off-pitch] = byte(RightShiftWithRounding(p[6]+p[5]+p[4]+p[3]+p[2]+p[1]*2+p[0]*2+q[0]*2+q[1]+q[2]+q[3]+q[4]+q[5], 4))
	buf[off] = byte(RightShiftWithRounding(p[5]+p[4]+p[3]+p[2]+p[1]+p[0]*2+q[0]*2+q[1]*2+q[2]+q[3]+q[4]+q[5]+q[6], 4))
	buf[off+pitch] = byte(RightShiftWithRounding(p[4]+p[3]+p[2]+p[1]+p[0]+q[0]*2+q[1]*2+q[2]*2+q[3]+q[4]+q[5]+q[6]*2, 4))
	buf[off+2*pitch] = byte(RightShiftWithRounding(p[3]+p[2]+p[1]+p[0]+q[0]+q[1]*2+q[2]*2+q[3]*2+q[4]+q[5]+q[6]*3, 4))
	buf[off+3*pitch] = byte(RightShiftWithRounding(p[2]+p[1]+p[0]+q[0]+q[1]+q[2]*2+q[3]*2+q[4]*2+q[5]+q[6]*4, 4))
	buf[off+4*pitch] = byte(RightShiftWithRounding(p[1]+p[0]+q[0]+q[1]+q[2]+q[3]*2+q[4]*2+q[5]*2+q[6]*5, 4))
	buf[off+5*pitch] = byte(RightShiftWithRounding(p[0]+q[0]+q[1]+q[2]+q[3]+q[4]*2+q[5]*2+q[6]*7, 4))
}

// filterEdge runs one size's decision tree over the four lines of an edge
// segment.
func filterEdge(buf []byte, off, pitch, linePitch int, size LoopFilterSize, outer, inner, hevThresh int) {
	for line := 0; line < 4; line++ {
		o := off + line*linePitch
		switch size {
		case LoopFilterSize4:
			if filterMask(buf, o, pitch, 2, outer, inner) {
				filter4Line(buf, o, pitch, hev(buf, o, pitch, hevThresh))
			}
		case LoopFilterSize6:
			if !filterMask(buf, o, pitch, 3, outer, inner) {
				continue
			}
			if isFlat(buf, o, pitch, 1, 2) {
				filter6Line(buf, o, pitch)
			} else {
				filter4Line(buf, o, pitch, hev(buf, o, pitch, hevThresh))
			}
		case LoopFilterSize8:
			if !filterMask(buf, o, pitch, 4, outer, inner) {
				continue
			}
			if isFlat(buf, o, pitch, 1, 3) {
				filter8Line(buf, o, pitch)
			} else {
				filter4Line(buf, o, pitch, hev(buf, o, pitch, hevThresh))
			}
		case LoopFilterSize14:
			if !filterMask(buf, o, pitch, 4, outer, inner) {
				continue
			}
			if !isFlat(buf, o, pitch, 1, 3) {
				filter4Line(buf, o, pitch, hev(buf, o, pitch, hevThresh))
				continue
			}
			if isFlat(buf, o, pitch, 4, 6) {
				filter14Line(buf, o, pitch)
			} else {
				filter8Line(buf, o, pitch)
			}
		}
	}
}

func makeLoopFilter(size LoopFilterSize, typ LoopFilterType) LoopFilterFunc {
	return func(buf []byte, off, stride int, outerThresh, innerThresh, hevThresh int) {
		if typ == LoopFilterTypeVertical {
			filterEdge(buf, off, 1, stride, size, outerThresh, innerThresh, hevThresh)
		} else {
			filterEdge(buf, off, stride, 1, size, outerThresh, innerThresh, hevThresh)
		}
	}
}

func initLoopFilters() {
	for size := LoopFilterSize(0); size < NumLoopFilterSizes; size++ {
		for typ := LoopFilterType(0); typ < NumLoopFilterTypes; typ++ {
			LoopFilters[size][typ] = makeLoopFilter(size, typ)
		}
	}
}
