package av1

import (
	"fmt"
	"sort"
	"sync"

	"github.com/deepteams/av1/internal/frame"
	"github.com/deepteams/av1/internal/mv"
	"github.com/deepteams/av1/internal/obu"
	"github.com/deepteams/av1/internal/postfilter"
	"github.com/deepteams/av1/internal/threading"
)

// DecoderBuffer is one displayable frame handed out by DequeueFrame. The
// plane slices alias the decoder's frame pool; they stay valid until the
// next DequeueFrame or Close call.
type DecoderBuffer struct {
	Planes  [frame.MaxPlanes][]byte
	Strides [frame.MaxPlanes]int

	// Display dimensions, after super resolution.
	Width  int
	Height int

	BitDepth int

	// The tags given to EnqueueFrame for the temporal unit this frame
	// came from, echoed back for correlation and buffer bookkeeping.
	UserTag   any
	BufferTag any
}

// outputLayer is one displayable frame of a temporal unit with its
// display position. The layer table is sorted by descending position so a
// single forward scan dequeues layers in the required order.
type outputLayer struct {
	buffer   *frame.RefCountedBuffer
	position int
}

// encodedFrame is one coded frame of a temporal unit: its copied headers,
// the buffer that will hold its pixels, and the per-frame side arrays the
// post filters read. It addresses its owning unit by ring index, never by
// pointer, so queue storage can be a plain slice.
type encodedFrame struct {
	unitIndex int
	header    obu.FrameHeader
	sequence  obu.SequenceHeader

	tileGroups  []obu.TileGroup
	buffer      *frame.RefCountedBuffer
	blocks      *frame.BlockParametersHolder
	restoration *postfilter.RestorationInfo
	cdefIndex   []int8

	// Snapshot of the reference slots as this frame's header saw them,
	// taken before the frame's own refresh. Each non-nil slot holds a
	// reference that is released once motion field projection is done.
	refState    frame.DecoderState
	motionField *frame.TemporalMotionField
}

// temporalUnit is one enqueued input unit and its decode bookkeeping.
type temporalUnit struct {
	data      []byte
	userTag   any
	bufferTag any

	parsed  bool
	decoded bool
	pending int

	frames       []*encodedFrame
	outputLayers []outputLayer
	nextLayer    int
}

// failureState is the session's sticky fault record: the first fatal
// error wins and every later operation observes it. When two workers fail
// simultaneously the stored code is whichever got the lock first; that
// nondeterminism is inherent to racing failures on a corrupt stream.
type failureState struct {
	mu  sync.Mutex
	err error
}

func (s *failureState) set(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false
	}
	s.err = err
	return true
}

func (s *failureState) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Decoder drives the frame-parallel decode pipeline: temporal units enter
// a bounded ring, frames are scheduled onto a shared worker pool, and
// finished units leave the ring head in enqueue order regardless of the
// order their frames completed in.
type Decoder struct {
	settings Settings
	pool     *threading.Pool
	buffers  *frame.BufferPool
	state    frame.DecoderState
	failure  failureState

	mu    sync.Mutex
	cond  *sync.Cond
	units []temporalUnit
	head  int
	count int
	eos   bool

	sequence *obu.SequenceHeader

	// Output buffers stay valid until the next dequeue; the previous one
	// is released here.
	lastOutput *frame.RefCountedBuffer

	// Bitstream-syntax and block-decode boundaries. Syntax parsing and
	// tile decode are outside this module; without wired implementations
	// frames fail with ErrUnsupported and tile decode is a pass-through.
	parseSequenceHeader func(payload []byte) (*obu.SequenceHeader, error)
	parseFrameHeader    func(payload []byte, seq *obu.SequenceHeader) (*obu.FrameHeader, error)
	decodeTiles         func(f *encodedFrame) error
}

// NewDecoder creates a decoder. A nil settings pointer selects
// DefaultSettings.
func NewDecoder(settings *Settings) *Decoder {
	s := DefaultSettings()
	if settings != nil {
		s = *settings
	}
	if s.Threads < 1 {
		s.Threads = 1
	}
	capacity := 1
	if s.FrameParallel {
		capacity = s.Threads + 1
	}
	d := &Decoder{
		settings: s,
		pool:     threading.NewPool(s.Threads - 1),
		buffers:  frame.NewBufferPool(0),
		units:    make([]temporalUnit, capacity),
	}
	d.cond = sync.NewCond(&d.mu)
	d.decodeTiles = func(*encodedFrame) error { return nil }
	return d
}

// EnqueueFrame appends one temporal unit to the decode queue. It returns
// ErrTryAgain when the queue is full; drain output first. The tags are
// echoed back on the DecoderBuffers produced from this unit.
func (d *Decoder) EnqueueFrame(data []byte, userTag, bufferTag any) error {
	if err := d.failure.get(); err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty temporal unit", ErrBitstream)
	}
	d.mu.Lock()
	if d.eos {
		d.mu.Unlock()
		return fmt.Errorf("av1: enqueue after end of stream")
	}
	if d.count == len(d.units) {
		d.mu.Unlock()
		return ErrTryAgain
	}
	index := (d.head + d.count) % len(d.units)
	d.units[index] = temporalUnit{data: data, userTag: userTag, bufferTag: bufferTag}
	d.count++
	d.mu.Unlock()

	if err := d.parseAndSchedule(); err != nil {
		d.fail(err)
		return err
	}
	return nil
}

// DequeueFrame returns the next displayable frame in display order. A
// temporal unit that produced no displayable frame yields (nil, nil).
// Without BlockingDequeue it returns ErrNothingToDequeue when the head
// unit has not finished decoding.
func (d *Decoder) DequeueFrame() (*DecoderBuffer, error) {
	if err := d.failure.get(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	for d.count == 0 || !d.units[d.head].decoded {
		if err := d.failure.get(); err != nil {
			d.mu.Unlock()
			return nil, err
		}
		if !d.settings.BlockingDequeue || (d.count == 0 && d.eos) {
			d.mu.Unlock()
			return nil, ErrNothingToDequeue
		}
		d.cond.Wait()
	}

	u := &d.units[d.head]
	if u.nextLayer >= len(u.outputLayers) {
		d.releaseHeadLocked()
		d.mu.Unlock()
		return nil, nil
	}
	layer := u.outputLayers[u.nextLayer]
	u.nextLayer++
	out := d.makeBuffer(layer.buffer, u.userTag, u.bufferTag)
	if d.lastOutput != nil {
		d.lastOutput.Unref()
	}
	d.lastOutput = layer.buffer
	if u.nextLayer >= len(u.outputLayers) {
		d.releaseHeadLocked()
	}
	d.mu.Unlock()
	return out, nil
}

// SignalEOS marks the end of input. Blocking dequeues drain the remaining
// units and then return ErrNothingToDequeue.
func (d *Decoder) SignalEOS() {
	d.mu.Lock()
	d.eos = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// Close releases the worker pool, the reference slots and any queued
// output. The decoder must not be used afterwards.
func (d *Decoder) Close() {
	d.pool.Shutdown()
	d.mu.Lock()
	for d.count > 0 {
		u := &d.units[d.head]
		for ; u.nextLayer < len(u.outputLayers); u.nextLayer++ {
			u.outputLayers[u.nextLayer].buffer.Unref()
		}
		d.releaseHeadLocked()
	}
	if d.lastOutput != nil {
		d.lastOutput.Unref()
		d.lastOutput = nil
	}
	d.mu.Unlock()
	d.state.ClearReferenceFrames()
}

func (d *Decoder) fail(err error) {
	if d.failure.set(err) {
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *Decoder) releaseHeadLocked() {
	d.units[d.head] = temporalUnit{}
	d.head = (d.head + 1) % len(d.units)
	d.count--
}

func (d *Decoder) makeBuffer(b *frame.RefCountedBuffer, userTag, bufferTag any) *DecoderBuffer {
	out := &DecoderBuffer{
		Width:     b.Buffer.UpscaledWidth,
		Height:    b.Buffer.Height,
		BitDepth:  8,
		UserTag:   userTag,
		BufferTag: bufferTag,
	}
	for plane := 0; plane < b.Buffer.Planes(); plane++ {
		out.Planes[plane] = b.Buffer.Data(plane)[b.Buffer.Origin(plane):]
		out.Strides[plane] = b.Buffer.Stride(plane)
	}
	return out
}

// parseAndSchedule parses every buffered-but-unparsed temporal unit in
// ring order and hands its frames to the pool. Parsing stays on the
// enqueue thread, so reference-slot updates have a single writer. Jobs
// are launched after the queue lock drops: Schedule applies backpressure
// by blocking, and completing workers need the same lock.
func (d *Decoder) parseAndSchedule() error {
	var jobs []*encodedFrame
	d.mu.Lock()
	for i := 0; i < d.count; i++ {
		index := (d.head + i) % len(d.units)
		u := &d.units[index]
		if u.parsed {
			continue
		}
		if err := d.parseTemporalUnit(u, index); err != nil {
			d.mu.Unlock()
			return err
		}
		u.parsed = true
		u.pending = len(u.frames)
		if u.pending == 0 {
			u.decoded = true
			d.cond.Broadcast()
			continue
		}
		jobs = append(jobs, u.frames...)
	}
	d.mu.Unlock()

	for _, f := range jobs {
		f := f
		if d.settings.FrameParallel {
			d.pool.Schedule(func() { d.decodeFrameJob(f) })
		} else {
			// Synchronous decode on the enqueue thread; the pool still
			// serves in-frame parallelism inside the filters.
			d.decodeFrameJob(f)
		}
	}
	return nil
}

// parseTemporalUnit splits one unit into OBUs, builds its frame list and
// output-layer table, and claims buffers and reference slots. Callers
// hold d.mu.
func (d *Decoder) parseTemporalUnit(u *temporalUnit, index int) error {
	obus, err := obu.Split(u.data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBitstream, err)
	}

	position := 0
	var current *encodedFrame
	for _, o := range obus {
		// The selected operating point's idc is known once a sequence
		// header has arrived; until then every layer passes.
		idc := 0
		if d.sequence != nil {
			idc = d.sequence.OperatingPointIdc[d.settings.OperatingPoint&31]
		}
		if !obu.InOperatingPoint(idc, o.Header) {
			continue
		}
		switch o.Header.Type {
		case obu.TypeTemporalDelimiter, obu.TypeMetadata,
			obu.TypeRedundantFrameHeader, obu.TypePadding:

		case obu.TypeSequenceHeader:
			if d.parseSequenceHeader == nil {
				return fmt.Errorf("%w: no sequence header parser wired in", ErrUnsupported)
			}
			seq, err := d.parseSequenceHeader(o.Payload)
			if err != nil {
				return err
			}
			d.sequence = seq

		case obu.TypeFrame, obu.TypeFrameHeader:
			if d.sequence == nil {
				return fmt.Errorf("%w: frame before sequence header", ErrBitstream)
			}
			if d.parseFrameHeader == nil {
				return fmt.Errorf("%w: no frame header parser wired in", ErrUnsupported)
			}
			header, err := d.parseFrameHeader(o.Payload, d.sequence)
			if err != nil {
				return err
			}
			if header.ShowExistingFrame {
				ref := d.state.ReferenceFrame[header.FrameToShow]
				if ref == nil {
					return fmt.Errorf("%w: show_existing_frame cites an empty slot", ErrBitstream)
				}
				ref.Ref()
				u.outputLayers = append(u.outputLayers, outputLayer{ref, position})
				position++
				continue
			}
			f, err := d.newEncodedFrame(header, index)
			if err != nil {
				return err
			}
			u.frames = append(u.frames, f)
			current = f
			if header.ShowFrame || (d.settings.OutputAllLayers && header.ShowableFrame) {
				f.buffer.Ref()
				u.outputLayers = append(u.outputLayers, outputLayer{f.buffer, position})
				position++
			}

		case obu.TypeTileGroup:
			if current == nil {
				return fmt.Errorf("%w: tile group before frame header", ErrBitstream)
			}
			current.tileGroups = append(current.tileGroups, obu.TileGroup{Data: o.Payload})

		default:
			return fmt.Errorf("%w: obu type %d", ErrUnsupported, o.Header.Type)
		}
	}

	sort.Slice(u.outputLayers, func(i, j int) bool {
		return u.outputLayers[i].position > u.outputLayers[j].position
	})
	return nil
}

// newEncodedFrame claims a pixel buffer, sizes the per-frame side arrays,
// and refreshes the reference slots so later frames can cite this one
// while it is still in flight (waiters block on its decode progress).
func (d *Decoder) newEncodedFrame(header *obu.FrameHeader, index int) (*encodedFrame, error) {
	buf := d.buffers.GetFreeBuffer()
	if buf == nil {
		return nil, fmt.Errorf("%w: frame buffer pool", ErrResourceExhausted)
	}
	cc := d.sequence.ColorConfig
	if err := buf.Realloc(header.Width, header.Height, header.UpscaledWidth,
		cc.SubsamplingX, cc.SubsamplingY, cc.Monochrome); err != nil {
		buf.Unref()
		return nil, fmt.Errorf("%w: %v", ErrBitstream, err)
	}
	buf.FrameType = header.FrameType
	buf.ShowableFrame = header.ShowableFrame
	buf.OrderHint = header.OrderHint
	buf.GlobalMotion = header.GlobalMotion
	buf.LoopFilterRefDeltas = header.LoopFilter.RefDeltas
	buf.LoopFilterModeDeltas = header.LoopFilter.ModeDeltas
	for refType := obu.ReferenceFrameLast; refType <= obu.ReferenceFrameAlternate; refType++ {
		if !header.IsIntra() {
			buf.ReferenceOrderHints[refType] = d.state.OrderHintOf(header, refType)
		}
	}

	f := &encodedFrame{
		unitIndex:   index,
		header:      *header,
		sequence:    *d.sequence,
		buffer:      buf,
		blocks:      frame.NewBlockParametersHolder(header.Rows4x4, header.Columns4x4),
		restoration: &postfilter.RestorationInfo{},
	}
	f.restoration.Allocate(&buf.Buffer, &f.header.LoopRestoration)
	sbColumns := (header.Width + 63) / 64
	sbRows := (header.Height + 63) / 64
	f.cdefIndex = make([]int8, sbRows*sbColumns)

	if header.UseRefFrameMvs && !header.IsIntra() {
		rows8 := (header.Rows4x4 + 1) / 2
		columns8 := (header.Columns4x4 + 1) / 2
		f.motionField = frame.NewTemporalMotionField(rows8, columns8)
		f.refState = d.state
		for _, ref := range f.refState.ReferenceFrame {
			if ref != nil {
				ref.Ref()
			}
		}
	}

	if header.FrameType == obu.FrameKey && header.ShowFrame {
		d.state.ClearReferenceFrames()
	}
	d.state.UpdateReferenceFrames(buf, header.RefreshFrameFlags)
	d.state.OrderHint = header.OrderHint
	return f, nil
}

// decodeFrameJob runs one frame to completion on a worker: tile decode
// (boundary), then the post-filter graph, then completion bookkeeping.
// Fatal errors stick and abort the frame so progress waiters unblock.
func (d *Decoder) decodeFrameJob(f *encodedFrame) {
	err := d.failure.get()
	if err == nil {
		err = d.prepareMotionField(f)
	}
	d.releaseReferenceSnapshot(f)
	if err == nil {
		err = d.decodeTiles(f)
	}
	if err == nil {
		err = d.filterFrame(f)
	}
	if err != nil {
		f.buffer.Abort()
		d.fail(err)
	}
	f.buffer.Unref()

	d.mu.Lock()
	u := &d.units[f.unitIndex]
	u.pending--
	if u.pending == 0 {
		u.decoded = true
		d.cond.Broadcast()
	}
	d.mu.Unlock()
}

// prepareMotionField projects the cited references' saved motion into
// this frame's temporal field (Section 7.9). A reference may still be in
// flight; its saved motion is final only when its own decode completes,
// so projection waits on full progress first. Jobs start in parse order,
// which rules out a cycle among these waits.
func (d *Decoder) prepareMotionField(f *encodedFrame) error {
	if f.motionField == nil {
		return nil
	}
	for _, ref := range f.refState.ReferenceFrame {
		if ref == nil {
			continue
		}
		if !ref.WaitUntil(ref.Buffer.Height) {
			return fmt.Errorf("%w: reference frame aborted", ErrBitstream)
		}
	}
	mv.SetupMotionField(&f.header, &f.refState, f.motionField,
		f.sequence.OrderHintBits, 0, f.motionField.Rows8x8)
	return nil
}

func (d *Decoder) releaseReferenceSnapshot(f *encodedFrame) {
	for i, ref := range f.refState.ReferenceFrame {
		if ref != nil {
			ref.Unref()
			f.refState.ReferenceFrame[i] = nil
		}
	}
}

// filterFrame runs the post-filter graph over a reconstructed frame and
// publishes full decode progress.
func (d *Decoder) filterFrame(f *encodedFrame) error {
	pool := d.pool
	if d.settings.FrameParallel {
		// Frames already occupy the workers. In-frame fan-out from a
		// worker can leave every worker waiting on a barrier whose jobs
		// no free worker can run, so each frame filters on its own
		// thread. The band loop publishes per-band progress, which is
		// what reference waiters in other frames block on.
		pool = nil
	}
	pf := postfilter.New(postfilter.Config{
		Header:      &f.header,
		Frame:       &f.buffer.Buffer,
		Blocks:      f.blocks,
		Restoration: f.restoration,
		CdefIndex:   f.cdefIndex,
		Pool:        pool,
		Mask:        d.settings.PostFilterMask,
		Current:     f.buffer,
	})
	pf.ApplyFiltering()
	return nil
}
