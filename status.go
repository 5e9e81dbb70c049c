package av1

import "errors"

// Flow-control and failure sentinels. ErrTryAgain and ErrNothingToDequeue
// are not errors in the fatal sense: the first means the temporal-unit
// queue is full and output should be drained, the second means no unit
// has finished decoding yet. Everything else is sticky: once a fatal
// error is recorded, every later EnqueueFrame and DequeueFrame call
// returns it and in-flight work aborts at its next poll point.
var (
	// ErrTryAgain is returned by EnqueueFrame when the temporal-unit
	// queue is full. Dequeue some output and enqueue again.
	ErrTryAgain = errors.New("av1: try again")

	// ErrNothingToDequeue is returned by a non-blocking DequeueFrame when
	// no temporal unit has fully decoded. Feed more input.
	ErrNothingToDequeue = errors.New("av1: nothing to dequeue")

	// ErrBitstream reports a malformed bitstream. Decode does not recover
	// from a corrupt frame; the session is failed from that point on.
	ErrBitstream = errors.New("av1: malformed bitstream")

	// ErrUnsupported reports a stream feature this decoder does not
	// handle, including frames arriving with no syntax parser wired in.
	ErrUnsupported = errors.New("av1: unsupported feature")

	// ErrResourceExhausted reports frame buffer pool or worker exhaustion.
	ErrResourceExhausted = errors.New("av1: resource exhausted")
)
