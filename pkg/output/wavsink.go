package output

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/drgolem/tomu/pkg/pcm"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag.
const wavFormatPCM = 1

// WavSink writes the callback output to a WAV file. A clock goroutine drives
// the callback, either as fast as the producer delivers or paced at the
// sample rate when Config.RealTime is set.
//
// When not real time, only stream bytes are written: buffer underruns do
// not insert silence into the file.
type WavSink struct {
	cfg     Config
	cb      Callback
	file    *os.File
	encoder *wav.Encoder

	out    []byte
	intBuf *audio.IntBuffer

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	err     error
	frames  uint64
}

func NewWavSink() *WavSink {
	return &WavSink{}
}

func (w *WavSink) Name() string { return "wav" }

// NegotiateFormat keeps S16, S24 and S32 and maps U8 and F32 to S16.
func (w *WavSink) NegotiateFormat(f pcm.Format) pcm.Format {
	switch f.Interleaved() {
	case pcm.S16, pcm.S24, pcm.S32:
		return f.Interleaved()
	default:
		return pcm.S16
	}
}

func (w *WavSink) Open(cfg Config, cb Callback) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	switch cfg.Format {
	case pcm.S16, pcm.S24, pcm.S32:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedSampleFormat, cfg.Format)
	}
	if cfg.FileName == "" {
		return errors.New("wav output needs a file name")
	}

	file, err := os.Create(cfg.FileName)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	w.cfg = cfg
	w.cb = cb
	w.file = file
	w.encoder = wav.NewEncoder(file, cfg.SampleRate, cfg.Format.BitsPerSample(), cfg.Channels, wavFormatPCM)
	w.out = make([]byte, cfg.FramesPerBuffer*cfg.FrameSize())
	w.intBuf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: cfg.Channels, SampleRate: cfg.SampleRate},
		Data:           make([]int, cfg.FramesPerBuffer*cfg.Channels),
		SourceBitDepth: cfg.Format.BitsPerSample(),
	}
	return nil
}

func (w *WavSink) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.encoder == nil {
		return ErrNotOpen
	}
	if w.running {
		return nil
	}
	w.running = true
	w.done = make(chan struct{})
	w.wg.Add(1)
	go w.clock()
	return nil
}

func (w *WavSink) clock() {
	defer w.wg.Done()

	var ticker *time.Ticker
	if w.cfg.RealTime {
		period := time.Duration(w.cfg.FramesPerBuffer) * time.Second / time.Duration(w.cfg.SampleRate)
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	for {
		select {
		case <-w.done:
			return
		default:
		}

		n := w.cb(w.out, w.cfg.FramesPerBuffer)
		if w.cfg.RealTime {
			n = len(w.out)
		}
		if err := w.write(w.out[:n-n%w.cfg.FrameSize()]); err != nil {
			w.mu.Lock()
			w.err = err
			w.mu.Unlock()
			return
		}

		if ticker != nil {
			select {
			case <-w.done:
				return
			case <-ticker.C:
			}
		}
	}
}

func (w *WavSink) write(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	width := w.cfg.Format.BytesPerSample()
	samples := len(data) / width
	w.intBuf.Data = w.intBuf.Data[:samples]
	for i := 0; i < samples; i++ {
		v := pcm.Sample(data[i*width:], w.cfg.Format)
		switch w.cfg.Format {
		case pcm.S16:
			w.intBuf.Data[i] = int(v * 32768)
		case pcm.S24:
			w.intBuf.Data[i] = int(v * 8388608)
		case pcm.S32:
			w.intBuf.Data[i] = int(v * 2147483648)
		}
	}
	if err := w.encoder.Write(w.intBuf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	w.mu.Lock()
	w.frames += uint64(samples / w.cfg.Channels)
	w.mu.Unlock()
	return nil
}

// Stop ends the clock goroutine. The callback may be running when Stop is
// called; Stop waits for it to return.
func (w *WavSink) Stop() error {
	w.mu.Lock()
	if !w.running {
		err := w.err
		w.mu.Unlock()
		return err
	}
	w.running = false
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close finalizes the WAV header and closes the file.
func (w *WavSink) Close() error {
	if w.encoder == nil {
		return nil
	}
	var errs []error
	if err := w.encoder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("wav encoder close: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close file: %w", err))
	}
	w.encoder = nil
	w.file = nil
	return errors.Join(errs...)
}

// FramesWritten returns the number of sample frames written to the file.
func (w *WavSink) FramesWritten() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}
