package pcm

import (
	"encoding/binary"
	"math"
)

const (
	maxS16 = math.MaxInt16
	minS16 = math.MinInt16
	maxS24 = 1<<23 - 1
	minS24 = -(1 << 23)
	maxS32 = math.MaxInt32
	minS32 = math.MinInt32
)

// Sample reads one sample at the start of b and returns it normalized to
// [-1, 1). Planar formats are read like their interleaved counterparts.
func Sample(b []byte, f Format) float64 {
	switch f.Interleaved() {
	case U8:
		return (float64(b[0]) - 128) / 128
	case S16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case S24:
		return float64(int24(b)) / 8388608
	case S32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	case F32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return 0
	}
}

// PutSample writes a normalized sample to the start of b, clamping integer
// formats to their range.
func PutSample(b []byte, f Format, v float64) {
	switch f.Interleaved() {
	case U8:
		b[0] = byte(clamp(math.Round(v*128)+128, 0, 255))
	case S16:
		binary.LittleEndian.PutUint16(b, uint16(int16(clamp(math.Round(v*32768), minS16, maxS16))))
	case S24:
		putInt24(b, int32(clamp(math.Round(v*8388608), minS24, maxS24)))
	case S32:
		binary.LittleEndian.PutUint32(b, uint32(int32(clamp(math.Round(v*2147483648), minS32, maxS32))))
	case F32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

func int24(b []byte) int32 {
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// sign-extend
	return v << 8 >> 8
}

func putInt24(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
