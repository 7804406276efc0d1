package output

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/drgolem/go-portaudio/portaudio"

	"github.com/drgolem/tomu/pkg/pcm"
)

// PortAudio plays through a PortAudio callback stream.
// portaudio.Initialize must have been called by the application.
//
// The callback runs on PortAudio's C audio thread, not in a Go goroutine.
type PortAudio struct {
	stream     *portaudio.PaStream
	cb         Callback
	frameSize  int
	underflows atomic.Uint64
}

func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) Name() string { return "portaudio" }

// NegotiateFormat keeps integer formats and maps U8 to S16 and F32 to S32.
func (p *PortAudio) NegotiateFormat(f pcm.Format) pcm.Format {
	switch f.Interleaved() {
	case pcm.S16, pcm.S24, pcm.S32:
		return f.Interleaved()
	case pcm.F32:
		return pcm.S32
	default:
		return pcm.S16
	}
}

func paSampleFormat(f pcm.Format) (portaudio.PaSampleFormat, error) {
	switch f {
	case pcm.S16:
		return portaudio.SampleFmtInt16, nil
	case pcm.S24:
		return portaudio.SampleFmtInt24, nil
	case pcm.S32:
		return portaudio.SampleFmtInt32, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, f)
	}
}

func (p *PortAudio) Open(cfg Config, cb Callback) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	sampleFormat, err := paSampleFormat(cfg.Format)
	if err != nil {
		return err
	}

	p.cb = cb
	p.frameSize = cfg.FrameSize()
	p.stream = &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  cfg.Device,
			ChannelCount: cfg.Channels,
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(cfg.SampleRate),
	}

	if err := p.stream.OpenCallback(cfg.FramesPerBuffer, p.audioCallback); err != nil {
		p.stream = nil
		return fmt.Errorf("failed to open stream with callback: %w", err)
	}
	return nil
}

// audioCallback must not allocate or block beyond what the user callback does.
func (p *PortAudio) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	if statusFlags&portaudio.OutputUnderflow != 0 {
		p.underflows.Add(1)
	}
	need := min(int(frameCount)*p.frameSize, len(output))
	p.cb(output[:need], need/p.frameSize)
	return portaudio.Continue
}

func (p *PortAudio) Start() error {
	if p.stream == nil {
		return ErrNotOpen
	}
	if err := p.stream.StartStream(); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

func (p *PortAudio) Stop() error {
	if p.stream == nil {
		return nil
	}
	if err := p.stream.StopStream(); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}
	return nil
}

func (p *PortAudio) Close() error {
	if p.stream == nil {
		return nil
	}
	var errs []error
	if err := p.stream.CloseCallback(); err != nil {
		errs = append(errs, fmt.Errorf("close callback: %w", err))
	}
	p.stream = nil
	return errors.Join(errs...)
}

// Underflows returns how many callbacks PortAudio flagged as output underflow.
func (p *PortAudio) Underflows() uint64 {
	return p.underflows.Load()
}

// Device describes one PortAudio output device.
type Device struct {
	Index             int
	Name              string
	MaxOutputChannels int
	DefaultSampleRate float64
}

// OutputDevices lists devices with at least one output channel.
func OutputDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}
	var out []Device
	for i, device := range devices {
		if device.MaxOutputChannels > 0 {
			out = append(out, Device{
				Index:             i,
				Name:              device.Name,
				MaxOutputChannels: int(device.MaxOutputChannels),
				DefaultSampleRate: float64(device.DefaultSampleRate),
			})
		}
	}
	return out, nil
}
