package player

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/output"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/playback"
	"github.com/drgolem/tomu/pkg/types"
)

// fakeSource emits frames of interleaved S16 stereo whose samples count up
// from zero. errAt maps a NextFrame call index to the error it returns.
type fakeSource struct {
	info      types.StreamInfo
	frames    int // -1 for endless
	samples   int
	errAt     map[int]error
	alwaysErr error

	mu     sync.Mutex
	calls  int
	next   int16
	closed bool
}

func newFakeSource(frames, samples int) *fakeSource {
	return &fakeSource{
		info: types.StreamInfo{
			FileName:     "fake.wav",
			Codec:        "fake",
			SampleRate:   8000,
			Channels:     2,
			SourceFormat: pcm.S16,
		},
		frames:  frames,
		samples: samples,
		errAt:   map[int]error{},
	}
}

func (s *fakeSource) Info() types.StreamInfo { return s.info }

func (s *fakeSource) NextFrame() (*audioframe.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.calls
	s.calls++

	if s.alwaysErr != nil {
		return nil, s.alwaysErr
	}
	if err, ok := s.errAt[call]; ok {
		return nil, err
	}
	if s.frames == 0 {
		return nil, io.EOF
	}
	if s.frames > 0 {
		s.frames--
	}

	data := make([]byte, s.samples*s.info.Channels*2)
	for i := 0; i < len(data); i += 2 {
		binary.LittleEndian.PutUint16(data[i:], uint16(s.next))
		s.next++
	}
	return audioframe.NewInterleaved(audioframe.FrameFormat{
		SampleRate:   s.info.SampleRate,
		Channels:     s.info.Channels,
		SampleFormat: pcm.S16,
	}, data), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// expectedStream returns the bytes a fakeSource produces for n samples.
func expectedStream(n int) []byte {
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(i)))
	}
	return out
}

// fakeDriver pulls from the callback on its own goroutine as fast as it
// returns and records the stream bytes.
type fakeDriver struct {
	openErr error
	idle    bool // never pull from the callback

	mu       sync.Mutex
	cfg      output.Config
	cb       output.Callback
	captured bytes.Buffer
	calls    int
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) NegotiateFormat(f pcm.Format) pcm.Format { return f.Interleaved() }

func (d *fakeDriver) Open(cfg output.Config, cb output.Callback) error {
	if d.openErr != nil {
		return d.openErr
	}
	d.cfg = cfg
	d.cb = cb
	return nil
}

func (d *fakeDriver) Start() error {
	if d.cb == nil {
		return output.ErrNotOpen
	}
	d.stop = make(chan struct{})
	if d.idle {
		return nil
	}
	buf := make([]byte, d.cfg.FramesPerBuffer*d.cfg.FrameSize())
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.stop:
				return
			default:
			}
			n := d.cb(buf, d.cfg.FramesPerBuffer)
			d.mu.Lock()
			d.captured.Write(buf[:n])
			d.calls++
			d.mu.Unlock()
		}
	}()
	return nil
}

func (d *fakeDriver) Stop() error {
	if d.stop != nil {
		close(d.stop)
		d.wg.Wait()
		d.stop = nil
	}
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDriver) bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bytes.Clone(d.captured.Bytes())
}

// funcInput adapts a function to ControlSource.
type funcInput func(ctx context.Context, ctrl *playback.Control) error

func (f funcInput) Run(ctx context.Context, ctrl *playback.Control) error { return f(ctx, ctrl) }

var errBroken = errors.New("broken unit")
