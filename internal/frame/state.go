package frame

import "github.com/deepteams/av1/internal/obu"

// DecoderState carries the cross-frame reference bookkeeping of a decode
// session: the eight physical reference slots with their saved order
// hints. A frame header's ReferenceFrameIndex maps logical reference
// types (Last..Alternate) onto these physical slots.
//
// Slots are refreshed at parse time on the enqueue thread, so a slot may
// hold a frame that is still decoding. Later frames that cite it wait on
// the owner's row progress before touching its pixels; the slot table
// itself has a single writer and needs no lock.
type DecoderState struct {
	ReferenceFrame     [obu.NumReferenceFrameTypes]*RefCountedBuffer
	ReferenceOrderHint [obu.NumReferenceFrameTypes]int
	OrderHint          int
}

// Reference returns the buffer a frame header's logical reference type
// resolves to, or nil when the slot is empty. refType must be one of the
// inter reference types (Last..Alternate).
func (s *DecoderState) Reference(h *obu.FrameHeader, refType int) *RefCountedBuffer {
	return s.ReferenceFrame[h.ReferenceFrameIndex[refType-obu.ReferenceFrameLast]]
}

// OrderHintOf returns the saved order hint for a logical reference type.
func (s *DecoderState) OrderHintOf(h *obu.FrameHeader, refType int) int {
	return s.ReferenceOrderHint[h.ReferenceFrameIndex[refType-obu.ReferenceFrameLast]]
}

// UpdateReferenceFrames refreshes every slot whose bit is set in
// refreshFrameFlags with the given frame, adjusting reference counts.
func (s *DecoderState) UpdateReferenceFrames(current *RefCountedBuffer, refreshFrameFlags uint8) {
	for slot := 0; slot < obu.NumReferenceFrameTypes; slot++ {
		if refreshFrameFlags&(1<<slot) == 0 {
			continue
		}
		if s.ReferenceFrame[slot] != nil {
			s.ReferenceFrame[slot].Unref()
		}
		current.Ref()
		s.ReferenceFrame[slot] = current
		s.ReferenceOrderHint[slot] = current.OrderHint
	}
}

// ClearReferenceFrames drops every slot, e.g. on a key frame or when the
// session is torn down.
func (s *DecoderState) ClearReferenceFrames() {
	for slot := range s.ReferenceFrame {
		if s.ReferenceFrame[slot] != nil {
			s.ReferenceFrame[slot].Unref()
			s.ReferenceFrame[slot] = nil
		}
		s.ReferenceOrderHint[slot] = 0
	}
}

// GetRelativeDistance returns the signed distance a - b in order hint
// space, sign-extended over the configured order hint bits
// (Section 5.9.3). Zero order hint bits means hints are unused.
func GetRelativeDistance(a, b, orderHintBits int) int {
	if orderHintBits == 0 {
		return 0
	}
	diff := a - b
	m := 1 << (orderHintBits - 1)
	return (diff & (m - 1)) - (diff & m)
}
