package obu

import "testing"

func TestParseLeb128(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		value uint64
		n     int
	}{
		{"single byte", []byte{0x05}, 5, 1},
		{"two bytes", []byte{0x80, 0x01}, 128, 2},
		{"boundary", []byte{0x7f}, 127, 1},
		{"three bytes", []byte{0xff, 0xff, 0x03}, 0xffff, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, n, err := ParseLeb128(tt.data)
			if err != nil {
				t.Fatalf("ParseLeb128(%v) error: %v", tt.data, err)
			}
			if v != tt.value || n != tt.n {
				t.Errorf("ParseLeb128(%v) = (%d, %d), want (%d, %d)", tt.data, v, n, tt.value, tt.n)
			}
		})
	}

	if _, _, err := ParseLeb128(nil); err == nil {
		t.Error("ParseLeb128(nil) expected error")
	}
	if _, _, err := ParseLeb128([]byte{0x80}); err == nil {
		t.Error("ParseLeb128 on continuation without terminator expected error")
	}
}

// obuBytes builds a sized OBU of the given type.
func obuBytes(typ int, payload []byte) []byte {
	out := []byte{byte(typ<<3 | 0x02), byte(len(payload))}
	return append(out, payload...)
}

func TestSplit(t *testing.T) {
	var data []byte
	data = append(data, obuBytes(TypeTemporalDelimiter, nil)...)
	data = append(data, obuBytes(TypeSequenceHeader, []byte{1, 2, 3})...)
	data = append(data, obuBytes(TypeFrame, []byte{4, 5})...)

	units, err := Split(data)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("Split returned %d units, want 3", len(units))
	}
	want := []int{TypeTemporalDelimiter, TypeSequenceHeader, TypeFrame}
	for i, u := range units {
		if u.Header.Type != want[i] {
			t.Errorf("unit %d type = %d, want %d", i, u.Header.Type, want[i])
		}
	}
	if len(units[1].Payload) != 3 || units[1].Payload[0] != 1 {
		t.Errorf("sequence header payload = %v", units[1].Payload)
	}
}

func TestSplitTruncated(t *testing.T) {
	data := obuBytes(TypeFrame, []byte{1, 2, 3, 4})
	if _, err := Split(data[:len(data)-2]); err == nil {
		t.Error("Split of truncated unit expected error")
	}
}

func TestCountFrames(t *testing.T) {
	var data []byte
	data = append(data, obuBytes(TypeTemporalDelimiter, nil)...)
	data = append(data, obuBytes(TypeFrameHeader, []byte{0})...)
	data = append(data, obuBytes(TypeTileGroup, []byte{0})...)
	data = append(data, obuBytes(TypeFrame, []byte{0})...)

	n, err := CountFrames(data)
	if err != nil {
		t.Fatalf("CountFrames error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountFrames = %d, want 2", n)
	}
}

func TestInOperatingPoint(t *testing.T) {
	h := Header{ExtensionFlag: true, TemporalID: 1, SpatialID: 0}
	if !InOperatingPoint(0, h) {
		t.Error("idc 0 must select every layer")
	}
	// Temporal layer 1, spatial layer 0 enabled.
	idc := 1<<1 | 1<<8
	if !InOperatingPoint(idc, h) {
		t.Error("matching layers must be selected")
	}
	// Temporal layer 1 disabled.
	if InOperatingPoint(1<<0|1<<8, h) {
		t.Error("non-matching temporal layer must be dropped")
	}
}
