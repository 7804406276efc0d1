package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/youpy/go-wav"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/types"
)

// FrameSamples is the number of samples per channel returned by NextFrame.
const FrameSamples = 4096

// Decoder wraps go-wav for decoding WAV audio files.
// Implements types.Source.
type Decoder struct {
	file      *os.File
	reader    *wav.Reader
	info      types.StreamInfo
	buf       []byte
	frameSize int
}

// NewDecoder creates a new WAV decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens a WAV file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open WAV file: %w", err)
	}

	reader := wav.NewReader(file)
	format, err := reader.Format()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to read WAV format: %w", err)
	}

	// Validate format
	if format.AudioFormat != wav.AudioFormatPCM {
		file.Close()
		return fmt.Errorf("%w: WAV format %d (only PCM supported)", types.ErrUnsupportedFormat, format.AudioFormat)
	}
	if format.NumChannels < 1 {
		file.Close()
		return fmt.Errorf("%w: %d channels", types.ErrUnsupportedFormat, format.NumChannels)
	}
	sampleFormat, err := pcm.FromBits(int(format.BitsPerSample))
	if err != nil {
		file.Close()
		return fmt.Errorf("%w: %v", types.ErrUnsupportedFormat, err)
	}

	frameSize := sampleFormat.FrameSize(int(format.NumChannels))
	if int(format.BlockAlign) != frameSize {
		file.Close()
		return fmt.Errorf("%w: block align %d for %d-bit %d channels", types.ErrUnsupportedFormat, format.BlockAlign, format.BitsPerSample, format.NumChannels)
	}

	d.file = file
	d.reader = reader
	d.frameSize = frameSize
	d.buf = make([]byte, FrameSamples*frameSize)
	d.info = types.StreamInfo{
		FileName:     fileName,
		Codec:        "wav",
		SampleRate:   int(format.SampleRate),
		Channels:     int(format.NumChannels),
		SourceFormat: sampleFormat,
	}
	if duration, err := reader.Duration(); err == nil {
		d.info.Duration = duration
	}

	return nil
}

// Info returns the stream description
func (d *Decoder) Info() types.StreamInfo {
	return d.info
}

// NextFrame returns up to FrameSamples samples of interleaved PCM. WAV data
// is already little-endian interleaved, so the bytes are passed through.
// The returned frame shares its buffer with the decoder.
//
// A short read at the end of the data chunk still yields the whole frames it
// holds: go-riff pads odd chunk sizes, which makes the last read of an
// unpadded file stop with io.EOF part way through.
func (d *Decoder) NextFrame() (*audioframe.Frame, error) {
	if d.reader == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}

	n, err := io.ReadFull(d.reader, d.buf)
	n -= n % d.frameSize
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: wav: %v", types.ErrSkipUnit, err)
	}

	return audioframe.NewInterleaved(audioframe.FrameFormat{
		SampleRate:   d.info.SampleRate,
		Channels:     d.info.Channels,
		SampleFormat: d.info.SourceFormat,
	}, d.buf[:n]), nil
}

// Close closes the WAV file
func (d *Decoder) Close() error {
	d.reader = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
