// Package av1 provides a frame-parallel AV1 decode pipeline in pure Go.
//
// The package implements the decoder's orchestration and reconstruction
// layers: temporal units are queued, their frames decoded concurrently on
// a shared worker pool, passed through the in-loop post filters (deblock,
// CDEF, super resolution, loop restoration), and returned in display
// order. There are no CGo dependencies.
//
// The package supports:
//   - Frame-parallel decoding with a bounded temporal-unit queue
//   - Display-order output, including multi-layer temporal units
//   - The full post-filter chain with one-superblock-row pipelining
//   - Reference frame management with cross-frame progress waiting
//   - Per-stage post-filter masking for conformance testing
//
// Basic usage:
//
//	d := av1.NewDecoder(nil)
//	defer d.Close()
//	for _, tu := range temporalUnits {
//		if err := d.EnqueueFrame(tu, nil, nil); err != nil {
//			// handle av1.ErrTryAgain by dequeueing first
//		}
//		if buf, err := d.DequeueFrame(); err == nil && buf != nil {
//			// buf.Planes holds the YUV output
//		}
//	}
package av1
