package audioframe

import (
	"fmt"
	"time"

	"github.com/drgolem/tomu/pkg/pcm"
)

type FrameFormat struct {
	SampleRate   int        // Sample rate in Hz
	Channels     int        // Number of channels
	SampleFormat pcm.Format // Layout and width of one sample
}

func (ff FrameFormat) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %s", ff.SampleRate, ff.Channels, ff.SampleFormat)
}

// Frame is one decoded unit of audio.
//
// Interleaved frames carry a single plane holding SamplesCount*Channels
// samples. Planar frames carry one plane per channel, each holding
// SamplesCount samples.
type Frame struct {
	Format       FrameFormat
	SamplesCount int      // Samples per channel
	Planes       [][]byte // Raw little-endian sample data
}

// NewInterleaved wraps an interleaved byte slice. The sample count is derived
// from the slice length.
func NewInterleaved(format FrameFormat, data []byte) *Frame {
	frameSize := format.SampleFormat.FrameSize(format.Channels)
	samples := 0
	if frameSize > 0 {
		samples = len(data) / frameSize
	}
	return &Frame{
		Format:       format,
		SamplesCount: samples,
		Planes:       [][]byte{data},
	}
}

// Validate checks that the planes match the format and sample count.
func (f *Frame) Validate() error {
	width := f.Format.SampleFormat.BytesPerSample()
	if width == 0 {
		return fmt.Errorf("invalid sample format %s", f.Format.SampleFormat)
	}
	if f.Format.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Format.Channels)
	}

	if f.Format.SampleFormat.IsPlanar() {
		if len(f.Planes) != f.Format.Channels {
			return fmt.Errorf("planar frame has %d planes, want %d", len(f.Planes), f.Format.Channels)
		}
		for ch, plane := range f.Planes {
			if len(plane) < f.SamplesCount*width {
				return fmt.Errorf("plane %d too short: got %d bytes, need %d", ch, len(plane), f.SamplesCount*width)
			}
		}
		return nil
	}

	if len(f.Planes) != 1 {
		return fmt.Errorf("interleaved frame has %d planes, want 1", len(f.Planes))
	}
	need := f.SamplesCount * width * f.Format.Channels
	if len(f.Planes[0]) < need {
		return fmt.Errorf("buffer too small for audio data: got %d bytes, need %d bytes", len(f.Planes[0]), need)
	}
	return nil
}

// Size returns the number of bytes the frame occupies once interleaved.
func (f *Frame) Size() int {
	return f.SamplesCount * f.Format.SampleFormat.FrameSize(f.Format.Channels)
}

// Duration returns the playback time of the frame.
func (f *Frame) Duration() time.Duration {
	if f.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.SamplesCount) * time.Second / time.Duration(f.Format.SampleRate)
}
