package frame

import (
	"sync"
	"sync/atomic"

	"github.com/deepteams/av1/internal/obu"
)

// RefCountedBuffer is a reconstructed-frame buffer plus the side metadata
// future frames need when they cite it as a reference: the saved motion
// field, segmentation map, order hints and global motion parameters.
//
// Ownership is shared between the reference slots, in-flight frames and
// the output queue; the pixel data is immutable once the owning frame's
// filtering completes, so readers need no lock. Only the reference count
// and decode-progress fields require synchronized access.
type RefCountedBuffer struct {
	pool     *BufferPool
	refCount atomic.Int32

	Buffer YuvBuffer

	FrameType     obu.FrameType
	ShowableFrame bool
	OrderHint     int
	// Order hints of this frame's own references, indexed by reference
	// frame type. Needed by motion field projection of later frames.
	ReferenceOrderHints  [obu.NumReferenceFrameTypes]int
	GlobalMotion         [obu.NumReferenceFrameTypes]obu.GlobalMotion
	LoopFilterRefDeltas  [obu.NumReferenceFrameTypes]int8
	LoopFilterModeDeltas [2]int8

	Rows4x4    int
	Columns4x4 int

	// Saved per-8x8 motion of this frame (its own first-reference MVs),
	// read by motion field projection of later frames. MotionFieldRef
	// holds the reference frame type each MV points at, -1 for intra.
	MotionFieldMv  []MotionVector
	MotionFieldRef []int8

	SegmentationMap *SegmentationMap

	// Decode progress for frame-parallel waiters.
	mu          sync.Mutex
	cond        *sync.Cond
	progressRow int
	failed      bool
}

// Ref increments the reference count.
func (b *RefCountedBuffer) Ref() { b.refCount.Add(1) }

// Unref decrements the reference count and returns the buffer to its pool
// when it reaches zero.
func (b *RefCountedBuffer) Unref() {
	if b.refCount.Add(-1) == 0 {
		b.pool.release(b)
	}
}

// Realloc sizes the pixel buffer and side arrays for a frame.
func (b *RefCountedBuffer) Realloc(width, height, upscaledWidth, subsamplingX, subsamplingY int, monochrome bool) error {
	if err := b.Buffer.Realloc(width, height, upscaledWidth, subsamplingX, subsamplingY, monochrome); err != nil {
		return err
	}
	b.Rows4x4 = (height + 3) >> 2
	b.Columns4x4 = (width + 3) >> 2
	rows8 := (b.Rows4x4 + 1) >> 1
	cols8 := (b.Columns4x4 + 1) >> 1
	if len(b.MotionFieldMv) < rows8*cols8 {
		b.MotionFieldMv = make([]MotionVector, rows8*cols8)
		b.MotionFieldRef = make([]int8, rows8*cols8)
	}
	if b.SegmentationMap == nil || b.SegmentationMap.Rows4x4 != b.Rows4x4 || b.SegmentationMap.Columns4x4 != b.Columns4x4 {
		b.SegmentationMap = NewSegmentationMap(b.Rows4x4, b.Columns4x4)
	}
	b.mu.Lock()
	b.progressRow = -1
	b.failed = false
	b.mu.Unlock()
	return nil
}

// SetProgress publishes that rows up to and including row are fully
// decoded and filtered, waking any frame-parallel waiters.
func (b *RefCountedBuffer) SetProgress(row int) {
	b.mu.Lock()
	if row > b.progressRow {
		b.progressRow = row
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

// Abort marks the frame as failed and wakes all waiters.
func (b *RefCountedBuffer) Abort() {
	b.mu.Lock()
	b.failed = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

// WaitUntil blocks until the frame's progress reaches row. It returns
// false if the frame's decode failed.
func (b *RefCountedBuffer) WaitUntil(row int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.progressRow < row && !b.failed {
		b.cond.Wait()
	}
	return !b.failed
}

// BufferPool hands out RefCountedBuffers and recycles them when their
// last reference drops. Exhaustion (all buffers in flight and the limit
// reached) is reported by a nil return, which callers must treat as a
// fatal allocation failure or a retry point depending on context.
type BufferPool struct {
	mu    sync.Mutex
	free  []*RefCountedBuffer
	inUse int
	limit int
}

// NewBufferPool creates a pool bounded to limit concurrent buffers.
// A limit of 0 means unbounded.
func NewBufferPool(limit int) *BufferPool {
	return &BufferPool{limit: limit}
}

// GetFreeBuffer returns a buffer with reference count 1, or nil when the
// pool is exhausted.
func (p *BufferPool) GetFreeBuffer() *RefCountedBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	var b *RefCountedBuffer
	if n := len(p.free); n > 0 {
		b = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if p.limit > 0 && p.inUse >= p.limit {
			return nil
		}
		b = &RefCountedBuffer{pool: p}
		b.cond = sync.NewCond(&b.mu)
	}
	p.inUse++
	b.refCount.Store(1)
	return b
}

func (p *BufferPool) release(b *RefCountedBuffer) {
	p.mu.Lock()
	p.inUse--
	p.free = append(p.free, b)
	p.mu.Unlock()
}
