package s7

import (
	"encoding/binary"
	"math"
)

// RealSize is the width of an S7 REAL in bytes.
const RealSize = 4

// DecodeReal converts 4 bytes in S7 wire order (big-endian IEEE-754
// single precision) to a float64. The conversion is bit-exact: the same
// input bytes always yield the same value.
func DecodeReal(data []byte) (float64, error) {
	if len(data) != RealSize {
		return 0, &DecodeError{Length: len(data)}
	}
	bits := binary.BigEndian.Uint32(data)
	return float64(math.Float32frombits(bits)), nil
}
