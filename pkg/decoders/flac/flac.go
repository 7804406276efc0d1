package flac

import (
	"fmt"
	"io"
	"strings"
	"time"

	goflac "github.com/drgolem/go-flac/flac"
	"github.com/mewkiz/flac"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/types"
)

// FrameSamples is the number of samples per channel returned by NextFrame.
const FrameSamples = 4096

// outputBits is the sample depth libFLAC is asked to deliver.
const outputBits = 16

// Decoder wraps the go-flac decoder to provide FLAC decoding capabilities.
// Implements types.Source. Output is interleaved at the depth reported by
// the decoder.
type Decoder struct {
	decoder    *goflac.FlacDecoder
	info       types.StreamInfo
	bps        int // bits per sample of the decoded output
	sourceBits int // bits per sample of the encoded stream
	frameSize  int
	buf        []byte
	done       bool
}

// NewDecoder creates a new FLAC decoder
// Uses 16-bit output by default
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens and initializes a FLAC file for decoding
func (d *Decoder) Open(fileName string) error {
	decoder, err := goflac.NewFlacFrameDecoder(outputBits)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Open(fileName); err != nil {
		decoder.Delete()
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	rate, channels, bps := decoder.GetFormat()
	format, err := pcm.FromBits(bps)
	if err != nil || rate <= 0 || channels <= 0 {
		decoder.Close()
		decoder.Delete()
		return fmt.Errorf("%w: %d Hz, %d channels, %d bits", types.ErrUnsupportedFormat, rate, channels, bps)
	}

	d.decoder = decoder
	d.bps = bps
	d.frameSize = format.FrameSize(channels)
	d.buf = make([]byte, FrameSamples*d.frameSize)
	d.done = false
	d.info = types.StreamInfo{
		FileName:     fileName,
		Codec:        "flac",
		SampleRate:   rate,
		Channels:     channels,
		SourceFormat: format,
	}
	d.readStreamInfo(fileName)

	return nil
}

// readStreamInfo fills in what libFLAC's format query leaves out: the total
// length and the encoded depth. Failure only leaves them unknown.
func (d *Decoder) readStreamInfo(fileName string) {
	stream, err := flac.Open(fileName)
	if err != nil {
		return
	}
	defer stream.Close()

	d.sourceBits = int(stream.Info.BitsPerSample)
	if stream.Info.SampleRate > 0 {
		d.info.Duration = time.Duration(stream.Info.NSamples) * time.Second / time.Duration(stream.Info.SampleRate)
	}
}

// Info returns the stream description
func (d *Decoder) Info() types.StreamInfo {
	return d.info
}

// NextFrame decodes up to FrameSamples samples. The returned frame shares
// its buffer with the decoder and is valid until the next call.
func (d *Decoder) NextFrame() (*audioframe.Frame, error) {
	if d.decoder == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}
	if d.done {
		return nil, io.EOF
	}

	n, err := d.decoder.DecodeSamples(FrameSamples, d.buf)
	if err != nil && isEndOfStream(err) {
		d.done = true
	}
	if n <= 0 {
		if err == nil || d.done {
			d.done = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: flac: %v", types.ErrSkipUnit, err)
	}

	return audioframe.NewInterleaved(audioframe.FrameFormat{
		SampleRate:   d.info.SampleRate,
		Channels:     d.info.Channels,
		SampleFormat: d.info.SourceFormat,
	}, d.buf[:n*d.frameSize]), nil
}

// libFLAC reports the end of the stream as an error string.
func isEndOfStream(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "EOF") || strings.Contains(msg, "done")
}

// Close closes the decoder and releases resources
func (d *Decoder) Close() error {
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder.Delete()
		d.decoder = nil
	}
	return nil
}

// Rate returns the sample rate in Hz
func (d *Decoder) Rate() int {
	return d.info.SampleRate
}

// Channels returns the number of audio channels
func (d *Decoder) Channels() int {
	return d.info.Channels
}

// BitsPerSample returns the bits per sample of the decoded output
func (d *Decoder) BitsPerSample() int {
	return d.bps
}

// SourceBitsPerSample returns the bit depth of the encoded stream, or 0
// when the stream header could not be read.
func (d *Decoder) SourceBitsPerSample() int {
	return d.sourceBits
}
