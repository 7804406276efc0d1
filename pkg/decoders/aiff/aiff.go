package aiff

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/types"
)

// FrameSamples is the number of samples per channel returned by NextFrame.
const FrameSamples = 4096

// Decoder wraps go-audio/aiff for decoding AIFF files.
// Implements types.Source. 8-bit files are widened to S16 since AIFF
// samples are signed.
type Decoder struct {
	file    *os.File
	decoder *aiff.Decoder
	info    types.StreamInfo
	bits    int
	intBuf  *goaudio.IntBuffer
	buf     []byte
}

// NewDecoder creates a new AIFF decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens an AIFF file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	dec := aiff.NewDecoder(file)
	if !dec.IsValidFile() {
		file.Close()
		return fmt.Errorf("%w: not a valid AIFF file", types.ErrUnsupportedFormat)
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels < 1 {
		file.Close()
		return fmt.Errorf("%w: unsupported AIFF layout", types.ErrUnsupportedFormat)
	}

	bits := int(dec.BitDepth)
	var sampleFormat pcm.Format
	switch bits {
	case 8, 16:
		sampleFormat = pcm.S16
	case 24:
		sampleFormat = pcm.S24
	case 32:
		sampleFormat = pcm.S32
	default:
		file.Close()
		return fmt.Errorf("%w: %d bits per sample", types.ErrUnsupportedFormat, bits)
	}

	d.file = file
	d.decoder = dec
	d.bits = bits
	d.intBuf = &goaudio.IntBuffer{
		Data:   make([]int, FrameSamples*format.NumChannels),
		Format: format,
	}
	d.buf = make([]byte, FrameSamples*sampleFormat.FrameSize(format.NumChannels))
	d.info = types.StreamInfo{
		FileName:     fileName,
		Codec:        "aiff",
		SampleRate:   format.SampleRate,
		Channels:     format.NumChannels,
		SourceFormat: sampleFormat,
	}
	if duration, err := dec.Duration(); err == nil {
		d.info.Duration = duration
	}

	return nil
}

// Info returns the stream description
func (d *Decoder) Info() types.StreamInfo {
	return d.info
}

// NextFrame decodes up to FrameSamples samples into interleaved PCM.
func (d *Decoder) NextFrame() (*audioframe.Frame, error) {
	if d.decoder == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}

	n, err := d.decoder.PCMBuffer(d.intBuf)
	n -= n % d.info.Channels
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: aiff: %v", types.ErrSkipUnit, err)
	}

	width := d.info.SourceFormat.BytesPerSample()
	for i, v := range d.intBuf.Data[:n] {
		if d.bits == 8 {
			v <<= 8
		}
		o := i * width
		for b := 0; b < width; b++ {
			d.buf[o+b] = byte(v >> (8 * b))
		}
	}

	return audioframe.NewInterleaved(audioframe.FrameFormat{
		SampleRate:   d.info.SampleRate,
		Channels:     d.info.Channels,
		SampleFormat: d.info.SourceFormat,
	}, d.buf[:n*width]), nil
}

// Close closes the file
func (d *Decoder) Close() error {
	d.decoder = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
