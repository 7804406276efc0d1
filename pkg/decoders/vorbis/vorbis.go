package vorbis

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/jfreymuth/oggvorbis"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/types"
)

// FrameSamples is the number of samples per channel requested per NextFrame.
const FrameSamples = 2048

// Decoder wraps oggvorbis for decoding Ogg Vorbis files into interleaved F32.
// Implements types.Source.
type Decoder struct {
	file    *os.File
	reader  *oggvorbis.Reader
	info    types.StreamInfo
	samples []float32
	buf     []byte
}

// NewDecoder creates a new Ogg Vorbis decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens an Ogg Vorbis file for decoding
func (d *Decoder) Open(fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	reader, err := oggvorbis.NewReader(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	channels := reader.Channels()
	d.file = file
	d.reader = reader
	d.samples = make([]float32, FrameSamples*channels)
	d.buf = make([]byte, len(d.samples)*4)
	d.info = types.StreamInfo{
		FileName:     fileName,
		Codec:        "vorbis",
		SampleRate:   reader.SampleRate(),
		Channels:     channels,
		SourceFormat: pcm.F32,
	}
	if length := reader.Length(); length > 0 && reader.SampleRate() > 0 {
		d.info.Duration = time.Duration(length) * time.Second / time.Duration(reader.SampleRate())
	}

	return nil
}

// Info returns the stream description
func (d *Decoder) Info() types.StreamInfo {
	return d.info
}

// NextFrame decodes the next block of samples. The returned frame shares
// its buffer with the decoder.
func (d *Decoder) NextFrame() (*audioframe.Frame, error) {
	if d.reader == nil {
		return nil, fmt.Errorf("decoder not initialized")
	}

	n, err := d.reader.Read(d.samples)
	n -= n % d.info.Channels
	if n == 0 {
		if err == nil {
			return nil, fmt.Errorf("%w: vorbis: empty read", types.ErrSkipUnit)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: vorbis: %v", types.ErrSkipUnit, err)
	}

	for i, v := range d.samples[:n] {
		binary.LittleEndian.PutUint32(d.buf[i*4:], math.Float32bits(v))
	}

	return audioframe.NewInterleaved(audioframe.FrameFormat{
		SampleRate:   d.info.SampleRate,
		Channels:     d.info.Channels,
		SampleFormat: pcm.F32,
	}, d.buf[:n*4]), nil
}

// Close closes the file
func (d *Decoder) Close() error {
	d.reader = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}
