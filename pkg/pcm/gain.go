package pcm

import (
	"encoding/binary"
	"math"
)

// ApplyGain multiplies every sample of an interleaved buffer by gain in place.
// Integer formats are scaled and clamped to their range; F32 is scaled
// directly. Trailing bytes that do not form a whole sample are left alone.
//
// ApplyGain does not allocate, so it is safe to call from an audio callback.
func ApplyGain(buf []byte, f Format, gain float64) {
	if gain == 1 {
		return
	}
	width := f.BytesPerSample()
	if width == 0 {
		return
	}
	n := len(buf) - len(buf)%width

	switch f.Interleaved() {
	case U8:
		for i := 0; i < n; i++ {
			v := (float64(buf[i]) - 128) * gain
			buf[i] = byte(clamp(math.Round(v)+128, 0, 255))
		}
	case S16:
		for i := 0; i < n; i += 2 {
			v := float64(int16(binary.LittleEndian.Uint16(buf[i:]))) * gain
			binary.LittleEndian.PutUint16(buf[i:], uint16(int16(clamp(math.Round(v), minS16, maxS16))))
		}
	case S24:
		for i := 0; i < n; i += 3 {
			v := float64(int24(buf[i:])) * gain
			putInt24(buf[i:], int32(clamp(math.Round(v), minS24, maxS24)))
		}
	case S32:
		for i := 0; i < n; i += 4 {
			v := float64(int32(binary.LittleEndian.Uint32(buf[i:]))) * gain
			binary.LittleEndian.PutUint32(buf[i:], uint32(int32(clamp(math.Round(v), minS32, maxS32))))
		}
	case F32:
		g := float32(gain)
		for i := 0; i < n; i += 4 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])) * g
			binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(v))
		}
	}
}

// FillSilence writes the silence value of f to every byte of buf: 0x80 for
// U8, zero for everything else.
func FillSilence(buf []byte, f Format) {
	if f.Interleaved() == U8 {
		for i := range buf {
			buf[i] = 0x80
		}
		return
	}
	clear(buf)
}
