// Package convert turns decoded frames into the interleaved byte layout an
// output driver expects.
package convert

import (
	"errors"
	"fmt"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
)

var ErrChannelMismatch = errors.New("channel count mismatch")

// RateConverter changes the sample rate of interleaved F32 audio.
// Process and Flush return slices that stay valid until the next call.
type RateConverter interface {
	Process(in []byte) ([]byte, error)
	Flush() ([]byte, error)
	Close() error
}

// Converter reformats frames of one stream. It keeps its scratch buffers
// between calls, so the slice returned by Convert is only valid until the
// next call. A Converter is not safe for concurrent use.
type Converter struct {
	in  audioframe.FrameFormat
	out audioframe.FrameFormat

	rate    RateConverter
	scratch []byte
	mid     []byte
}

type Option func(*Converter)

// WithRateConverter routes audio through rc when the input and output
// sample rates differ.
func WithRateConverter(rc RateConverter) Option {
	return func(c *Converter) {
		c.rate = rc
	}
}

// New creates a converter from in to out. The output format must be
// interleaved and both sides must have the same channel count.
func New(in, out audioframe.FrameFormat, opts ...Option) (*Converter, error) {
	if in.Channels != out.Channels {
		return nil, fmt.Errorf("%w: %d -> %d", ErrChannelMismatch, in.Channels, out.Channels)
	}
	if in.SampleFormat.BytesPerSample() == 0 || out.SampleFormat.BytesPerSample() == 0 {
		return nil, fmt.Errorf("unsupported conversion %s -> %s", in.SampleFormat, out.SampleFormat)
	}
	if out.SampleFormat.IsPlanar() {
		return nil, fmt.Errorf("output format %s must be interleaved", out.SampleFormat)
	}

	c := &Converter{in: in, out: out}
	for _, opt := range opts {
		opt(c)
	}
	if in.SampleRate != out.SampleRate && c.rate == nil {
		return nil, fmt.Errorf("sample rate %d -> %d needs a rate converter", in.SampleRate, out.SampleRate)
	}
	if in.SampleRate == out.SampleRate && c.rate != nil {
		c.rate.Close()
		c.rate = nil
	}
	return c, nil
}

// Passthrough reports whether frames are returned without any copying.
func (c *Converter) Passthrough() bool {
	return c.rate == nil && !c.in.SampleFormat.IsPlanar() && c.in.SampleFormat == c.out.SampleFormat
}

// Output returns the format of the bytes produced by Convert.
func (c *Converter) Output() audioframe.FrameFormat {
	return c.out
}

// Convert returns the frame as interleaved bytes in the output format.
func (c *Converter) Convert(f *audioframe.Frame) ([]byte, error) {
	if f.Format.SampleFormat != c.in.SampleFormat || f.Format.Channels != c.in.Channels {
		return nil, fmt.Errorf("frame format %s differs from stream format %s", f.Format, c.in)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if c.rate == nil {
		return interleave(f, c.out.SampleFormat, &c.scratch), nil
	}

	resampled, err := c.rate.Process(interleave(f, pcm.F32, &c.mid))
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return c.fromF32(resampled), nil
}

// Flush returns audio still held by the rate converter at the end of the
// stream. It returns nil when no rate conversion is configured.
func (c *Converter) Flush() ([]byte, error) {
	if c.rate == nil {
		return nil, nil
	}
	tail, err := c.rate.Flush()
	if err != nil {
		return nil, fmt.Errorf("resample flush: %w", err)
	}
	return c.fromF32(tail), nil
}

// Close releases the rate converter and scratch buffers.
func (c *Converter) Close() error {
	c.scratch = nil
	c.mid = nil
	if c.rate == nil {
		return nil
	}
	err := c.rate.Close()
	c.rate = nil
	return err
}

func (c *Converter) fromF32(data []byte) []byte {
	if c.out.SampleFormat == pcm.F32 {
		return data
	}
	f := audioframe.NewInterleaved(audioframe.FrameFormat{
		SampleRate:   c.out.SampleRate,
		Channels:     c.out.Channels,
		SampleFormat: pcm.F32,
	}, data)
	return interleave(f, c.out.SampleFormat, &c.scratch)
}

// interleave writes f into *dst as interleaved target samples, growing *dst
// as needed. Interleaved frames already in the target format are returned
// as is.
func interleave(f *audioframe.Frame, target pcm.Format, dst *[]byte) []byte {
	src := f.Format.SampleFormat
	channels := f.Format.Channels
	if !src.IsPlanar() && src == target {
		return f.Planes[0][:f.Size()]
	}

	inWidth := src.BytesPerSample()
	outWidth := target.BytesPerSample()
	size := f.SamplesCount * channels * outWidth
	if cap(*dst) < size {
		*dst = make([]byte, size)
	}
	out := (*dst)[:size]

	offset := func(i, ch int) (plane []byte, pos int) {
		if src.IsPlanar() {
			return f.Planes[ch], i * inWidth
		}
		return f.Planes[0], (i*channels + ch) * inWidth
	}

	if src.Interleaved() == target {
		// same numeric format, only the layout changes
		o := 0
		for i := 0; i < f.SamplesCount; i++ {
			for ch := 0; ch < channels; ch++ {
				plane, pos := offset(i, ch)
				o += copy(out[o:o+outWidth], plane[pos:pos+inWidth])
			}
		}
		return out
	}

	o := 0
	for i := 0; i < f.SamplesCount; i++ {
		for ch := 0; ch < channels; ch++ {
			plane, pos := offset(i, ch)
			pcm.PutSample(out[o:], target, pcm.Sample(plane[pos:], src))
			o += outWidth
		}
	}
	return out
}
