package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chewxy/math32"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/types"
)

// TonePrefix marks a pseudo path such as "tone:440" or "tone:440:5s".
const TonePrefix = "tone:"

const (
	DefaultToneFrequency  = 440.0
	DefaultToneSampleRate = 48000
	DefaultToneChannels   = 2
	toneAmplitude         = 0.5
	tonePacketSamples     = 1024
)

// ToneConfig describes a generated sine wave.
type ToneConfig struct {
	Frequency  float32
	SampleRate int
	Channels   int
	Duration   time.Duration // zero plays forever
}

// ParseTone parses "tone:<freq>[:<duration>]".
func ParseTone(path string) (ToneConfig, error) {
	cfg := ToneConfig{
		Frequency:  DefaultToneFrequency,
		SampleRate: DefaultToneSampleRate,
		Channels:   DefaultToneChannels,
	}
	rest, ok := strings.CutPrefix(path, TonePrefix)
	if !ok {
		return cfg, fmt.Errorf("not a tone path: %q", path)
	}

	parts := strings.SplitN(rest, ":", 2)
	if parts[0] != "" {
		freq, err := strconv.ParseFloat(parts[0], 32)
		if err != nil || freq <= 0 {
			return cfg, fmt.Errorf("invalid tone frequency %q", parts[0])
		}
		cfg.Frequency = float32(freq)
	}
	if len(parts) == 2 {
		d, err := time.ParseDuration(parts[1])
		if err != nil || d < 0 {
			return cfg, fmt.Errorf("invalid tone duration %q", parts[1])
		}
		cfg.Duration = d
	}
	if float64(cfg.Frequency) >= float64(cfg.SampleRate)/2 {
		return cfg, fmt.Errorf("tone frequency %.1f Hz above Nyquist", cfg.Frequency)
	}
	return cfg, nil
}

// ToneProvider generates a planar F32 sine wave.
type ToneProvider struct {
	cfg    ToneConfig
	phase  float32
	step   float32
	total  int64 // samples per channel to produce, -1 for endless
	played int64
	planes [][]byte
}

func NewToneProvider(cfg ToneConfig) *ToneProvider {
	total := int64(-1)
	if cfg.Duration > 0 {
		total = int64(cfg.Duration) * int64(cfg.SampleRate) / int64(time.Second)
	}
	return &ToneProvider{
		cfg:    cfg,
		step:   2 * math32.Pi * cfg.Frequency / float32(cfg.SampleRate),
		total:  total,
		planes: make([][]byte, cfg.Channels),
	}
}

func (p *ToneProvider) format() audioframe.FrameFormat {
	return audioframe.FrameFormat{
		SampleRate:   p.cfg.SampleRate,
		Channels:     p.cfg.Channels,
		SampleFormat: pcm.F32P,
	}
}

// ReadAudioPacket returns the next samples of the sine. Every channel
// carries the same signal.
func (p *ToneProvider) ReadAudioPacket(ctx context.Context, samples int) (*audioframe.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.total >= 0 {
		left := p.total - p.played
		if left <= 0 {
			return nil, io.EOF
		}
		samples = int(min(int64(samples), left))
	}

	size := samples * 4
	for ch := range p.planes {
		if cap(p.planes[ch]) < size {
			p.planes[ch] = make([]byte, size)
		}
		p.planes[ch] = p.planes[ch][:size]
	}

	for i := 0; i < samples; i++ {
		bits := math.Float32bits(toneAmplitude * math32.Sin(p.phase))
		for ch := range p.planes {
			binary.LittleEndian.PutUint32(p.planes[ch][i*4:], bits)
		}
		p.phase += p.step
		if p.phase >= 2*math32.Pi {
			p.phase -= 2 * math32.Pi
		}
	}
	p.played += int64(samples)

	return &audioframe.Frame{
		Format:       p.format(),
		SamplesCount: samples,
		Planes:       p.planes,
	}, nil
}

// NewTone opens a tone pseudo path as a source.
func NewTone(ctx context.Context, path string) (*StreamDecoder, error) {
	cfg, err := ParseTone(path)
	if err != nil {
		return nil, err
	}
	provider := NewToneProvider(cfg)
	info := types.StreamInfo{
		FileName:     path,
		Codec:        "tone",
		SampleRate:   cfg.SampleRate,
		Channels:     cfg.Channels,
		SourceFormat: pcm.F32P,
		Duration:     cfg.Duration,
	}
	return NewStreamDecoder(ctx, provider, info, tonePacketSamples), nil
}
