package mp3

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/types"
)

// go-mp3 always produces 16-bit little-endian stereo.
const (
	channels      = 2
	bytesPerFrame = 4
)

// FrameSamples is the number of samples per channel returned by NextFrame.
const FrameSamples = 1152

// Decoder wraps go-mp3 to provide MP3 decoding capabilities.
// Implements types.Source.
type Decoder struct {
	file    *os.File
	decoder *gomp3.Decoder
	info    types.StreamInfo
	buf     []byte
}

// NewDecoder creates a new MP3 decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens and initializes an MP3 file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	decoder, err := gomp3.NewDecoder(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	d.file = file
	d.decoder = decoder
	d.buf = make([]byte, FrameSamples*bytesPerFrame)
	d.info = types.StreamInfo{
		FileName:     fileName,
		Codec:        "mp3",
		SampleRate:   decoder.SampleRate(),
		Channels:     channels,
		SourceFormat: pcm.S16,
	}
	if length := decoder.Length(); length > 0 && decoder.SampleRate() > 0 {
		d.info.Duration = time.Duration(length/bytesPerFrame) * time.Second / time.Duration(decoder.SampleRate())
	}

	return nil
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

	n, err := io.ReadFull(d.decoder, d.buf)
	n -= n % bytesPerFrame
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: mp3: %v", types.ErrSkipUnit, err)
	}

	return audioframe.NewInterleaved(audioframe.FrameFormat{
		SampleRate:   d.info.SampleRate,
		Channels:     channels,
		SampleFormat: pcm.S16,
	}, d.buf[:n]), nil
}

// Close closes the decoder and releases resources
func (d *Decoder) Close() error {
	d.decoder = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
