// Package player plays audio files through a decoder goroutine, a ring
// buffer and an output driver callback.
package player

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/tomu/pkg/convert"
	"github.com/drgolem/tomu/pkg/convert/soxr"
	"github.com/drgolem/tomu/pkg/decoders"
	"github.com/drgolem/tomu/pkg/output"
	"github.com/drgolem/tomu/pkg/playback"
	"github.com/drgolem/tomu/pkg/types"
)

const (
	DefaultBufferSeconds   = 0.5
	DefaultFramesPerBuffer = 512
)

// Config holds the settings shared by every session of a Player.
type Config struct {
	Driver          string  // output driver name
	Device          int     // portaudio device index
	FramesPerBuffer int     // frames per driver callback
	SampleRate      int     // output rate, 0 keeps the source rate
	OutputFile      string  // wav driver destination
	RealTime        bool    // wav driver paces output at the sample rate
	BufferSeconds   float64 // ring buffer length
	Volume          float64 // initial volume
}

func (c Config) withDefaults() Config {
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if c.BufferSeconds <= 0 {
		c.BufferSeconds = DefaultBufferSeconds
	}
	if c.Volume == 0 {
		c.Volume = 1.0
	}
	return c
}

// ControlSource delivers user commands to the Control of a session.
// Run returns when ctx is cancelled.
type ControlSource interface {
	Run(ctx context.Context, ctrl *playback.Control) error
}

// SourceOpener opens a file as a decoded stream.
type SourceOpener func(ctx context.Context, path string) (types.Source, error)

// DriverFactory creates an output driver by name.
type DriverFactory func(name string) (output.Driver, error)

// RateConverterFactory creates a sample-rate converter for interleaved F32.
type RateConverterFactory func(fromRate, toRate, channels int) (convert.RateConverter, error)

// Player runs playback sessions one after another. The volume carries over
// from one session to the next.
type Player struct {
	cfg    Config
	log    *slog.Logger
	inputs []ControlSource

	openSource    SourceOpener
	newDriver     DriverFactory
	newResampler  RateConverterFactory
	drainInterval time.Duration

	mu      sync.Mutex
	volume  float64
	current atomic.Pointer[Session]
}

type Option func(*Player)

// WithInputs attaches control sources that run for the length of each session.
func WithInputs(inputs ...ControlSource) Option {
	return func(p *Player) {
		p.inputs = append(p.inputs, inputs...)
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(p *Player) {
		p.log = log
	}
}

func WithSourceOpener(open SourceOpener) Option {
	return func(p *Player) {
		p.openSource = open
	}
}

func WithDriverFactory(f DriverFactory) Option {
	return func(p *Player) {
		p.newDriver = f
	}
}

func WithRateConverterFactory(f RateConverterFactory) Option {
	return func(p *Player) {
		p.newResampler = f
	}
}

// New creates a Player using the real decoders, output drivers and the
// soxr resampler unless overridden by options.
func New(cfg Config, opts ...Option) *Player {
	cfg = cfg.withDefaults()
	p := &Player{
		cfg:        cfg,
		log:        slog.Default(),
		openSource: decoders.NewDecoder,
		newDriver:  output.New,
		newResampler: func(fromRate, toRate, channels int) (convert.RateConverter, error) {
			return soxr.New(fromRate, toRate, channels)
		},
		drainInterval: 10 * time.Millisecond,
		volume:        playback.New(playback.WithVolume(cfg.Volume)).Volume(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Volume returns the volume the next session starts with.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) setVolume(v float64) {
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

// Current returns the running session, or nil between sessions.
func (p *Player) Current() *Session {
	return p.current.Load()
}

// GetPlaybackStatus reports the running session. Implements
// types.PlaybackMonitor.
func (p *Player) GetPlaybackStatus() types.PlaybackStatus {
	if s := p.current.Load(); s != nil {
		return s.GetPlaybackStatus()
	}
	return types.PlaybackStatus{Volume: p.Volume()}
}

// Control returns the Control of the running session, or nil.
func (p *Player) Control() *playback.Control {
	if s := p.current.Load(); s != nil {
		return s.ctrl
	}
	return nil
}
