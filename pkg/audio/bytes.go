// ABOUTME: Little-endian sample byte packing helpers
// ABOUTME: Encodes and decodes int16/int24/int32/float32 samples
package audio

import (
	"encoding/binary"
	"math"
)

func int16FromBytes(b []byte) int16 {
	return int16(binary.LittleEndian.Uint16(b))
}

func int16ToBytes(b []byte, v int16) {
	binary.LittleEndian.PutUint16(b, uint16(v))
}

// int24FromBytes reconstructs a 24-bit value and sign-extends to 32 bits.
func int24FromBytes(b []byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if val&0x800000 != 0 {
		val |= ^int32(0xFFFFFF)
	}
	return val
}

func int24ToBytes(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func int32FromBytes(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

func int32ToBytes(b []byte, v int32) {
	binary.LittleEndian.PutUint32(b, uint32(v))
}

func float32FromBytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func float32ToBytes(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
