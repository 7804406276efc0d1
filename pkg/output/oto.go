package output

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/drgolem/tomu/pkg/pcm"
)

// oto allows only one context per process, so it is created by the first
// Open and shared by every later session with the same stream parameters.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoParams otoContextParams
)

type otoContextParams struct {
	sampleRate int
	channels   int
	format     oto.Format
}

func sharedOtoContext(params otoContextParams, bufferSize time.Duration) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if params != otoParams {
			return nil, fmt.Errorf("oto context already running at %d Hz, %d ch; cannot switch to %d Hz, %d ch",
				otoParams.sampleRate, otoParams.channels, params.sampleRate, params.channels)
		}
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   params.sampleRate,
		ChannelCount: params.channels,
		Format:       params.format,
		BufferSize:   bufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoParams = params
	return ctx, nil
}

// Oto plays through ebitengine/oto. The oto player pulls from an io.Reader
// on its own goroutine; the reader invokes the callback.
type Oto struct {
	player *oto.Player
	reader *callbackReader
}

func NewOto() *Oto {
	return &Oto{}
}

func (o *Oto) Name() string { return "oto" }

// NegotiateFormat keeps U8, S16 and F32 and maps S24 and S32 to F32.
func (o *Oto) NegotiateFormat(f pcm.Format) pcm.Format {
	switch f.Interleaved() {
	case pcm.U8, pcm.S16, pcm.F32:
		return f.Interleaved()
	default:
		return pcm.F32
	}
}

func otoFormat(f pcm.Format) (oto.Format, error) {
	switch f {
	case pcm.U8:
		return oto.FormatUnsignedInt8, nil
	case pcm.S16:
		return oto.FormatSignedInt16LE, nil
	case pcm.F32:
		return oto.FormatFloat32LE, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, f)
	}
}

func (o *Oto) Open(cfg Config, cb Callback) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	format, err := otoFormat(cfg.Format)
	if err != nil {
		return err
	}

	bufferSize := time.Duration(cfg.FramesPerBuffer) * time.Second / time.Duration(cfg.SampleRate)
	ctx, err := sharedOtoContext(otoContextParams{
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		format:     format,
	}, bufferSize)
	if err != nil {
		return err
	}

	o.reader = &callbackReader{cb: cb, frameSize: cfg.FrameSize()}
	o.player = ctx.NewPlayer(o.reader)
	o.player.SetBufferSize(cfg.FramesPerBuffer * cfg.FrameSize())
	return nil
}

func (o *Oto) Start() error {
	if o.player == nil {
		return ErrNotOpen
	}
	o.player.Play()
	return nil
}

func (o *Oto) Stop() error {
	if o.player == nil {
		return nil
	}
	o.reader.stopped.Store(true)
	o.player.Pause()
	return nil
}

func (o *Oto) Close() error {
	if o.player == nil {
		return nil
	}
	o.reader.stopped.Store(true)
	err := o.player.Close()
	o.player = nil
	return err
}

// callbackReader adapts a Callback to the io.Reader oto pulls from.
type callbackReader struct {
	cb        Callback
	frameSize int
	stopped   atomic.Bool
}

func (r *callbackReader) Read(p []byte) (int, error) {
	if r.stopped.Load() {
		return 0, io.EOF
	}
	frames := len(p) / r.frameSize
	if frames == 0 {
		return 0, nil
	}
	n := frames * r.frameSize
	r.cb(p[:n], frames)
	return n, nil
}
