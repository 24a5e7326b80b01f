package bridge

import (
	"encoding/binary"
	"math"
)

// convertRegisters turns the raw 16-bit words read off the wire into an
// engineering-unit float32, honoring width (1 or 2 registers) and
// signedness. A 2-register value is combined big-endian: words[0] holds the
// high 16 bits, words[1] the low 16 bits.
func convertRegisters(words []uint16, signed bool, width uint8) float32 {
	if width == 1 {
		if signed {
			return float32(int16(words[0]))
		}
		return float32(words[0])
	}
	raw := uint32(words[0])<<16 | uint32(words[1])
	if signed {
		return float32(int32(raw))
	}
	return float32(raw)
}

// encodeFloat32 serializes v as 4 bytes of IEEE-754 single precision in the
// host's native byte order. This mirrors a portability wart in the system
// this bridge replaces: the payload is not byte-order-portable across
// architectures, and that is preserved intentionally rather than fixed.
func encodeFloat32(v float32) []byte {
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, math.Float32bits(v))
	return buf
}
