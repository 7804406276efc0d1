package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/convert"
	"github.com/drgolem/tomu/pkg/output"
	"github.com/drgolem/tomu/pkg/playback"
	"github.com/drgolem/tomu/pkg/ringbuffer"
	"github.com/drgolem/tomu/pkg/types"
)

// Outcome tells the playlist runner how a session ended.
type Outcome int

const (
	// Finished means the stream played to its end.
	Finished Outcome = iota
	// Skipped means the session was stopped and the next file may follow.
	Skipped
	// Quit means the user asked to leave the player.
	Quit
)

func (o Outcome) String() string {
	switch o {
	case Finished:
		return "finished"
	case Skipped:
		return "skipped"
	case Quit:
		return "quit"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Session is one file played from open to teardown.
//
// Thread Safety Model:
//   - the producer goroutine is the only writer of the ring buffer
//   - the driver callback (PortAudio C thread, oto reader goroutine or wav
//     clock goroutine) is the only reader
//   - control inputs mutate the shared playback.Control
//   - counters are atomics
type Session struct {
	id     string
	log    *slog.Logger
	src    types.Source
	info   types.StreamInfo
	out    audioframe.FrameFormat
	ring   *ringbuffer.RingBuffer
	ctrl   *playback.Control
	conv   *convert.Converter
	driver output.Driver

	frameSize       int
	writeChunk      int
	framesPerBuffer int

	startTime       time.Time
	producedSamples atomic.Uint64 // Samples decoded and buffered
	playedSamples   atomic.Uint64 // Samples handed to the driver
	skippedUnits    atomic.Uint64
}

// BufferCapacity returns the ring buffer size in bytes for seconds of audio
// in format f, rounded down to whole frames and never below two frames.
func BufferCapacity(f audioframe.FrameFormat, seconds float64) int {
	frameSize := f.SampleFormat.FrameSize(f.Channels)
	frames := int(float64(f.SampleRate) * seconds)
	return max(frames, 2) * frameSize
}

// writeChunkSize keeps every ring buffer write at or below half the
// capacity, frame aligned.
func writeChunkSize(capacity, frameSize int) int {
	return max(capacity/2/frameSize, 1) * frameSize
}

// Play runs one session for path and returns how it ended. Errors returned
// are fatal startup errors; decode errors inside the stream are logged and
// skipped.
func (p *Player) Play(ctx context.Context, path string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Quit, nil
	}

	id := uuid.NewString()
	log := p.log.With("session", id, "file", filepath.Base(path))

	// Open source
	src, err := p.openSource(ctx, path)
	if err != nil {
		return Finished, fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("Failed to close source", "error", err)
		}
	}()

	info := src.Info()
	if info.SampleRate <= 0 || info.Channels <= 0 {
		return Finished, fmt.Errorf("%w: %d Hz, %d channels", types.ErrUnsupportedFormat, info.SampleRate, info.Channels)
	}
	log.Info("Audio file opened",
		"codec", info.Codec,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
		"format", info.SourceFormat.String(),
		"duration", info.Duration)

	driver, err := p.newDriver(p.cfg.Driver)
	if err != nil {
		return Finished, err
	}

	outRate := info.SampleRate
	if p.cfg.SampleRate > 0 {
		outRate = p.cfg.SampleRate
	}
	outFormat := audioframe.FrameFormat{
		SampleRate:   outRate,
		Channels:     info.Channels,
		SampleFormat: driver.NegotiateFormat(info.SourceFormat),
	}

	conv, err := p.newConverter(info, outFormat)
	if err != nil {
		return Finished, fmt.Errorf("create converter: %w", err)
	}

	capacity := BufferCapacity(outFormat, p.cfg.BufferSeconds)
	frameSize := outFormat.SampleFormat.FrameSize(outFormat.Channels)

	s := &Session{
		id:              id,
		log:             log,
		src:             src,
		info:            info,
		out:             outFormat,
		ring:            ringbuffer.New(capacity),
		ctrl:            playback.New(playback.WithVolume(p.Volume())),
		conv:            conv,
		driver:          driver,
		frameSize:       frameSize,
		writeChunk:      writeChunkSize(capacity, frameSize),
		framesPerBuffer: p.cfg.FramesPerBuffer,
		startTime:       time.Now(),
	}

	log.Debug("Session configured",
		"driver", driver.Name(),
		"output_rate", outFormat.SampleRate,
		"output_format", outFormat.SampleFormat.String(),
		"buffer_size", capacity,
		"passthrough", conv.Passthrough())

	// The driver must not start before the ring buffer exists.
	err = driver.Open(output.Config{
		SampleRate:      outFormat.SampleRate,
		Channels:        outFormat.Channels,
		Format:          outFormat.SampleFormat,
		FramesPerBuffer: p.cfg.FramesPerBuffer,
		Device:          p.cfg.Device,
		FileName:        p.cfg.OutputFile,
		RealTime:        p.cfg.RealTime,
	}, s.consume)
	if err != nil {
		conv.Close()
		return Finished, fmt.Errorf("open %s output: %w", driver.Name(), err)
	}

	// Control inputs
	inputCtx, cancelInputs := context.WithCancel(ctx)
	var inputs sync.WaitGroup
	for _, in := range p.inputs {
		inputs.Add(1)
		go func() {
			defer inputs.Done()
			if err := in.Run(inputCtx, s.ctrl); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("Control input stopped", "error", err)
			}
		}()
	}

	// A stop from any source, including ctx cancellation, closes the ring so
	// neither side stays parked in it.
	stopCancel := context.AfterFunc(ctx, s.ctrl.Quit)
	defer stopCancel()
	go func() {
		<-s.ctrl.Done()
		s.ring.Close()
	}()

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		s.produce()
	}()

	p.current.Store(s)
	defer p.current.CompareAndSwap(s, nil)

	var errs []error
	if err := driver.Start(); err != nil {
		errs = append(errs, fmt.Errorf("start %s output: %w", driver.Name(), err))
		s.ctrl.Stop()
	} else {
		log.Debug("Playback started")
	}

	<-producerDone
	s.drain(p.drainInterval)

	// Teardown: ring closed and control stopped before the driver stops, so
	// the callback cannot block on either.
	s.ring.Close()
	quit := s.ctrl.QuitRequested()
	stopped := !s.ctrl.IsRunning()
	s.ctrl.Stop()

	if err := driver.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop output: %w", err))
	}
	if err := driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	cancelInputs()
	inputs.Wait()

	p.setVolume(s.ctrl.Volume())

	log.Info("Playback ended",
		"played", s.playedDuration().Round(time.Millisecond),
		"skipped_units", s.skippedUnits.Load(),
		"elapsed", time.Since(s.startTime).Round(time.Millisecond))

	if err := errors.Join(errs...); err != nil {
		return Finished, err
	}
	switch {
	case quit || ctx.Err() != nil:
		return Quit, nil
	case stopped:
		return Skipped, nil
	default:
		return Finished, nil
	}
}

func (p *Player) newConverter(info types.StreamInfo, out audioframe.FrameFormat) (*convert.Converter, error) {
	in := audioframe.FrameFormat{
		SampleRate:   info.SampleRate,
		Channels:     info.Channels,
		SampleFormat: info.SourceFormat,
	}
	var opts []convert.Option
	if in.SampleRate != out.SampleRate {
		rc, err := p.newResampler(in.SampleRate, out.SampleRate, in.Channels)
		if err != nil {
			return nil, err
		}
		opts = append(opts, convert.WithRateConverter(rc))
	}
	return convert.New(in, out, opts...)
}

// drain waits for the callback to play what is left in the ring buffer.
// It gives up when the session is stopped or when no progress is made for
// longer than the buffer duration plus a second. Time spent paused does
// not count.
func (s *Session) drain(interval time.Duration) {
	limit := time.Duration(float64(s.ring.Size())/float64(s.frameSize)/float64(s.out.SampleRate)*float64(time.Second)) + time.Second
	deadline := time.Now().Add(limit)
	last := s.ring.Buffered()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !s.ring.Drained() && s.ctrl.IsRunning() {
		select {
		case <-s.ctrl.Done():
			return
		case <-ticker.C:
		}
		if buffered := s.ring.Buffered(); buffered != last || s.ctrl.IsPaused() {
			last = buffered
			deadline = time.Now().Add(limit)
		}
		if time.Now().After(deadline) {
			s.log.Warn("Drain timed out", "buffered_bytes", s.ring.Buffered())
			return
		}
	}
}

func (s *Session) playedDuration() time.Duration {
	return time.Duration(s.playedSamples.Load()) * time.Second / time.Duration(s.out.SampleRate)
}

// ID returns the session id used in log lines.
func (s *Session) ID() string { return s.id }

// Info returns the source stream description.
func (s *Session) Info() types.StreamInfo { return s.info }

// Control returns the session playback control.
func (s *Session) Control() *playback.Control { return s.ctrl }

// GetPlaybackStatus returns current playback status including samples played,
// buffered, and elapsed time. Implements types.PlaybackMonitor interface.
func (s *Session) GetPlaybackStatus() types.PlaybackStatus {
	produced := s.producedSamples.Load()
	played := s.playedSamples.Load()
	buffered := uint64(0)
	if produced > played {
		buffered = produced - played
	}
	snap := s.ctrl.Snapshot()

	return types.PlaybackStatus{
		Session:         s.id,
		FileName:        filepath.Base(s.info.FileName),
		SampleRate:      s.out.SampleRate,
		Channels:        s.out.Channels,
		Format:          s.out.SampleFormat,
		FramesPerBuffer: s.framesPerBuffer,
		PlayedSamples:   played,
		BufferedSamples: buffered,
		BufferSize:      s.ring.Size(),
		BufferedBytes:   s.ring.Buffered(),
		Volume:          snap.Volume,
		Paused:          snap.Paused,
		ElapsedTime:     time.Since(s.startTime),
	}
}
