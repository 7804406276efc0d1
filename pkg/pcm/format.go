package pcm

import (
	"fmt"
	"strings"
)

// Format identifies the numeric representation and channel layout of PCM
// samples. All multi-byte formats are little-endian.
type Format int

const (
	FormatUnknown Format = iota
	U8                   // unsigned 8-bit, silence at 128
	S16                  // signed 16-bit
	S24                  // signed 24-bit packed in 3 bytes
	S32                  // signed 32-bit
	F32                  // IEEE float 32-bit in [-1, 1]
	S16P                 // planar signed 16-bit
	S32P                 // planar signed 32-bit
	F32P                 // planar float 32-bit
)

var formatNames = map[Format]string{
	U8:   "u8",
	S16:  "s16",
	S24:  "s24",
	S32:  "s32",
	F32:  "f32",
	S16P: "s16p",
	S32P: "s32p",
	F32P: "f32p",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// BytesPerSample returns the width of one sample of one channel.
func (f Format) BytesPerSample() int {
	switch f {
	case U8:
		return 1
	case S16, S16P:
		return 2
	case S24:
		return 3
	case S32, S32P, F32, F32P:
		return 4
	default:
		return 0
	}
}

// BitsPerSample returns the width of one sample in bits.
func (f Format) BitsPerSample() int {
	return f.BytesPerSample() * 8
}

// IsPlanar reports whether samples of each channel are stored contiguously.
func (f Format) IsPlanar() bool {
	return f == S16P || f == S32P || f == F32P
}

// IsFloat reports whether samples are IEEE floats.
func (f Format) IsFloat() bool {
	return f == F32 || f == F32P
}

// Interleaved returns the interleaved counterpart of a planar format.
// Interleaved formats are returned unchanged.
func (f Format) Interleaved() Format {
	switch f {
	case S16P:
		return S16
	case S32P:
		return S32
	case F32P:
		return F32
	default:
		return f
	}
}

// FrameSize returns the number of bytes of one interleaved sample frame.
func (f Format) FrameSize(channels int) int {
	return f.BytesPerSample() * channels
}

// ParseFormat parses a format name as printed by String.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range formatNames {
		if name == s {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown sample format %q", s)
}

// FromBits maps an integer PCM bit depth to the interleaved format that
// carries it.
func FromBits(bits int) (Format, error) {
	switch bits {
	case 8:
		return U8, nil
	case 16:
		return S16, nil
	case 24:
		return S24, nil
	case 32:
		return S32, nil
	default:
		return FormatUnknown, fmt.Errorf("unsupported bits per sample: %d (use 8, 16, 24, or 32)", bits)
	}
}
