// Package output drives audio devices and sinks from a pull callback.
package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/drgolem/tomu/pkg/pcm"
)

var (
	ErrUnsupportedSampleFormat = errors.New("unsupported sample format")
	ErrUnknownDriver           = errors.New("unknown output driver")
	ErrNotOpen                 = errors.New("output not open")
)

// Callback fills out with frameCount interleaved frames. It returns the
// number of leading bytes that carry stream data; the rest of out has been
// filled with silence.
type Callback func(out []byte, frameCount int) int

// Config is the stream configuration handed to Driver.Open.
type Config struct {
	SampleRate      int
	Channels        int
	Format          pcm.Format // interleaved, as returned by NegotiateFormat
	FramesPerBuffer int
	Device          int    // portaudio device index
	FileName        string // wav sink destination
	RealTime        bool   // wav sink paces callbacks at the sample rate
}

// FrameSize returns the number of bytes of one interleaved frame.
func (c Config) FrameSize() int {
	return c.Format.FrameSize(c.Channels)
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", c.Channels)
	}
	if c.Format.IsPlanar() || c.Format.BytesPerSample() == 0 {
		return fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, c.Format)
	}
	if c.FramesPerBuffer <= 0 {
		return fmt.Errorf("invalid frames per buffer %d", c.FramesPerBuffer)
	}
	return nil
}

// Driver is an audio output. After Start the driver invokes the callback
// on its own goroutine or thread until Stop returns.
type Driver interface {
	Name() string
	// NegotiateFormat returns the interleaved format the driver will accept
	// for a stream whose decoded samples are in f.
	NegotiateFormat(f pcm.Format) pcm.Format
	Open(cfg Config, cb Callback) error
	Start() error
	Stop() error
	Close() error
}

// Names lists the available drivers.
var Names = []string{"portaudio", "oto", "wav"}

// New returns the driver with the given name.
func New(name string) (Driver, error) {
	switch strings.ToLower(name) {
	case "portaudio", "pa", "":
		return NewPortAudio(), nil
	case "oto":
		return NewOto(), nil
	case "wav", "file":
		return NewWavSink(), nil
	default:
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownDriver, name, strings.Join(Names, ", "))
	}
}
