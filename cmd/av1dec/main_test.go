package main

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/deepteams/av1/internal/obu"
)

func obuBytes(obuType int, payload []byte) []byte {
	out := []byte{byte(obuType<<3 | 0x02), byte(len(payload))}
	return append(out, payload...)
}

func TestSplitOBUStream(t *testing.T) {
	var stream []byte
	stream = append(stream, obuBytes(obu.TypeTemporalDelimiter, nil)...)
	stream = append(stream, obuBytes(obu.TypeSequenceHeader, []byte{1, 2})...)
	stream = append(stream, obuBytes(obu.TypeFrame, []byte{3})...)
	stream = append(stream, obuBytes(obu.TypeTemporalDelimiter, nil)...)
	stream = append(stream, obuBytes(obu.TypeFrame, []byte{4})...)

	units, err := splitOBUStream(stream)
	if err != nil {
		t.Fatalf("splitOBUStream: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d temporal units, want 2", len(units))
	}
	first, err := obu.Split(units[0])
	if err != nil {
		t.Fatalf("Split unit 0: %v", err)
	}
	if len(first) != 3 || first[1].Header.Type != obu.TypeSequenceHeader {
		t.Errorf("unit 0 = %d OBUs, want temporal delimiter + sequence header + frame", len(first))
	}
	second, err := obu.Split(units[1])
	if err != nil {
		t.Fatalf("Split unit 1: %v", err)
	}
	if len(second) != 2 || second[1].Header.Type != obu.TypeFrame {
		t.Errorf("unit 1 = %d OBUs, want temporal delimiter + frame", len(second))
	}
	if !bytes.Equal(second[1].Payload, []byte{4}) {
		t.Errorf("unit 1 frame payload = %v, want [4]", second[1].Payload)
	}
}

func TestSerializeOBURoundTrip(t *testing.T) {
	u := obu.Unit{
		Header: obu.Header{
			Type:          obu.TypeTileGroup,
			HasSizeField:  true,
			ExtensionFlag: true,
			TemporalID:    2,
			SpatialID:     1,
		},
		Payload: bytes.Repeat([]byte{0xab}, 200),
	}
	parsed, err := obu.Split(serializeOBU(u))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(parsed) != 1 {
		t.Fatalf("got %d OBUs, want 1", len(parsed))
	}
	got := parsed[0]
	if got.Header.Type != u.Header.Type ||
		got.Header.TemporalID != u.Header.TemporalID ||
		got.Header.SpatialID != u.Header.SpatialID {
		t.Errorf("header = %+v, want %+v", got.Header, u.Header)
	}
	if !bytes.Equal(got.Payload, u.Payload) {
		t.Errorf("payload mismatch: got %d bytes", len(got.Payload))
	}
}

func TestSplitIVF(t *testing.T) {
	var ivf []byte
	ivf = append(ivf, 'D', 'K', 'I', 'F', 0, 0)
	ivf = binary.LittleEndian.AppendUint16(ivf, 32)
	ivf = append(ivf, make([]byte, 24)...)
	for _, payload := range [][]byte{{1, 2, 3}, {4}} {
		ivf = binary.LittleEndian.AppendUint32(ivf, uint32(len(payload)))
		ivf = append(ivf, make([]byte, 8)...) // timestamp
		ivf = append(ivf, payload...)
	}

	units, err := splitIVF(ivf)
	if err != nil {
		t.Fatalf("splitIVF: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if !bytes.Equal(units[0], []byte{1, 2, 3}) || !bytes.Equal(units[1], []byte{4}) {
		t.Errorf("unit payloads = %v, %v", units[0], units[1])
	}
}

func TestSplitIVFTruncated(t *testing.T) {
	var ivf []byte
	ivf = append(ivf, 'D', 'K', 'I', 'F', 0, 0)
	ivf = binary.LittleEndian.AppendUint16(ivf, 32)
	ivf = append(ivf, make([]byte, 24)...)
	ivf = binary.LittleEndian.AppendUint32(ivf, 100)
	ivf = append(ivf, make([]byte, 8)...)
	ivf = append(ivf, 1, 2)

	if _, err := splitIVF(ivf); err == nil {
		t.Error("want error for truncated frame payload")
	}
}
