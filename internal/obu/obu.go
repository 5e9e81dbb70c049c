package obu

import (
	"errors"
	"fmt"
)

// Errors returned by the framing layer.
var (
	ErrTruncated = errors.New("obu: truncated unit")
	ErrForbidden = errors.New("obu: forbidden bit set")
)

// Header is a parsed obu_header (Section 5.3.2).
type Header struct {
	Type          int
	HasSizeField  bool
	ExtensionFlag bool
	TemporalID    int
	SpatialID     int
}

// Unit is one OBU sliced out of a temporal unit: its header plus the
// payload bytes (size field already consumed).
type Unit struct {
	Header  Header
	Payload []byte
}

// ParseLeb128 decodes an unsigned leb128 value (Section 4.10.5) and
// returns the value and the number of bytes consumed.
func ParseLeb128(data []byte) (value uint64, n int, err error) {
	for i := 0; i < 8; i++ {
		if i >= len(data) {
			return 0, 0, ErrTruncated
		}
		b := data[i]
		value |= uint64(b&0x7f) << (i * 7)
		n++
		if b&0x80 == 0 {
			return value, n, nil
		}
	}
	return 0, 0, fmt.Errorf("obu: leb128 longer than 8 bytes")
}

// parseHeader decodes the 1- or 2-byte obu_header. Returns the header and
// the number of bytes consumed.
func parseHeader(data []byte) (Header, int, error) {
	if len(data) == 0 {
		return Header{}, 0, ErrTruncated
	}
	b := data[0]
	if b&0x80 != 0 {
		return Header{}, 0, ErrForbidden
	}
	h := Header{
		Type:          int(b >> 3 & 0xf),
		ExtensionFlag: b&0x04 != 0,
		HasSizeField:  b&0x02 != 0,
	}
	n := 1
	if h.ExtensionFlag {
		if len(data) < 2 {
			return Header{}, 0, ErrTruncated
		}
		ext := data[1]
		h.TemporalID = int(ext >> 5)
		h.SpatialID = int(ext >> 3 & 0x3)
		n = 2
	}
	return h, n, nil
}

// Split slices one temporal unit's bytes into OBUs. OBUs without a size
// field must be last in the unit (Section 5.2); anything after one is an
// error. Temporal delimiters are kept so callers can count units.
func Split(data []byte) ([]Unit, error) {
	var units []Unit
	for len(data) > 0 {
		h, n, err := parseHeader(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]
		var payload []byte
		if h.HasSizeField {
			size, sn, err := ParseLeb128(data)
			if err != nil {
				return nil, err
			}
			data = data[sn:]
			if uint64(len(data)) < size {
				return nil, ErrTruncated
			}
			payload = data[:size]
			data = data[size:]
		} else {
			payload = data
			data = nil
		}
		units = append(units, Unit{Header: h, Payload: payload})
	}
	return units, nil
}

// InOperatingPoint reports whether an OBU with the given extension header
// belongs to the operating point described by operatingPointIdc
// (Section 6.4.1). An idc of zero selects everything.
func InOperatingPoint(operatingPointIdc int, h Header) bool {
	if operatingPointIdc == 0 || !h.ExtensionFlag {
		return true
	}
	if operatingPointIdc>>h.TemporalID&1 == 0 {
		return false
	}
	return operatingPointIdc>>(h.SpatialID+8)&1 != 0
}

// CountFrames reports how many frame (or frame-header) OBUs a temporal
// unit contains, used to size per-unit frame lists before parsing.
func CountFrames(data []byte) (int, error) {
	units, err := Split(data)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, u := range units {
		if u.Header.Type == TypeFrame || u.Header.Type == TypeFrameHeader {
			count++
		}
	}
	return count, nil
}
