// Package pool provides bucketed sync.Pool instances for the pixel slabs
// and filter scratch the decode pipeline churns through: frame planes,
// CDEF working windows, superres line buffers and restoration
// intermediates. Buffers are organized by size class to minimize waste.
package pool

import "sync"

// Size classes for bucketed pools. Frame planes for common resolutions
// land in the top classes; per-row scratch in the lower ones.
const (
	Size1K   = 1024
	Size16K  = 16384
	Size64K  = 65536
	Size256K = 262144
	Size1M   = 1048576
	Size4M   = 4194304
	Size16M  = 16777216
)

var sizes = [7]int{Size1K, Size16K, Size64K, Size256K, Size1M, Size4M, Size16M}

// bucketIndex returns the pool index for a given size.
func bucketIndex(size int) int {
	for i, sz := range sizes {
		if size <= sz {
			return i
		}
	}
	return len(sizes) - 1
}

var bytePools [7]sync.Pool
var uint16Pools [7]sync.Pool

func init() {
	for i := range bytePools {
		sz := sizes[i]
		bytePools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
		uint16Pools[i] = sync.Pool{
			New: func() any {
				b := make([]uint16, sz)
				return &b
			},
		}
	}
}

// Get returns a byte slice of at least the requested size from the pool.
// The returned slice has length == size and may have a larger capacity.
// Contents are unspecified; the caller must call Put when done.
func Get(size int) []byte {
	idx := bucketIndex(size)
	bp := bytePools[idx].Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, size)
		*bp = b
		return b
	}
	return b[:size]
}

// Put returns a byte slice to the pool. The slice must have been obtained
// from Get. Slices smaller than the smallest class are not pooled.
func Put(b []byte) {
	c := cap(b)
	if c < Size1K {
		return
	}
	b = b[:c]
	bytePools[bucketIndex(c)].Put(&b)
}

// GetUint16 returns a uint16 slice of at least the requested length.
// CDEF's padded windows are uint16 so the frame-edge sentinel value is
// representable alongside ordinary pixels.
func GetUint16(length int) []uint16 {
	idx := bucketIndex(length)
	bp := uint16Pools[idx].Get().(*[]uint16)
	b := *bp
	if cap(b) < length {
		b = make([]uint16, length)
		*bp = b
		return b
	}
	return b[:length]
}

// PutUint16 returns a uint16 slice obtained from GetUint16 to the pool.
func PutUint16(b []uint16) {
	c := cap(b)
	if c < Size1K {
		return
	}
	b = b[:c]
	uint16Pools[bucketIndex(c)].Put(&b)
}
