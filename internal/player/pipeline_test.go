package player

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/convert"
	"github.com/drgolem/tomu/pkg/pcm"
	"github.com/drgolem/tomu/pkg/playback"
	"github.com/drgolem/tomu/pkg/ringbuffer"
)

func newTestSession(t *testing.T, capacity int, f pcm.Format, channels int) *Session {
	t.Helper()
	format := audioframe.FrameFormat{SampleRate: 8000, Channels: channels, SampleFormat: f}
	conv, err := convert.New(format, format)
	if err != nil {
		t.Fatalf("convert.New failed: %v", err)
	}
	frameSize := f.FrameSize(channels)
	return &Session{
		log:        testLog,
		out:        format,
		ring:       ringbuffer.New(capacity),
		ctrl:       playback.New(),
		conv:       conv,
		frameSize:  frameSize,
		writeChunk: writeChunkSize(capacity, frameSize),
	}
}

func TestConsumeZeroFillsShortRead(t *testing.T) {
	tests := []struct {
		name     string
		format   pcm.Format
		channels int
		silence  byte
	}{
		{"s16 stereo", pcm.S16, 2, 0x00},
		{"u8 mono", pcm.U8, 1, 0x80},
		{"f32 stereo", pcm.F32, 2, 0x00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, 64, tt.format, tt.channels)
			fs := s.frameSize
			data := bytes.Repeat([]byte{0x11}, 2*fs)
			s.ring.Write(data)

			out := bytes.Repeat([]byte{0xEE}, 6*fs)
			n := s.consume(out, 4)

			if n != 2*fs {
				t.Fatalf("returned %d, want %d", n, 2*fs)
			}
			if !bytes.Equal(out[:n], data) {
				t.Fatalf("stream bytes: got %x", out[:n])
			}
			for i, b := range out[n : 4*fs] {
				if b != tt.silence {
					t.Fatalf("byte %d of tail: got %#x, want %#x", i, b, tt.silence)
				}
			}
			// beyond frameCount the buffer is untouched
			for _, b := range out[4*fs:] {
				if b != 0xEE {
					t.Fatal("consume wrote past frameCount")
				}
			}
			if got := s.playedSamples.Load(); got != 2 {
				t.Fatalf("played samples: got %d, want 2", got)
			}
		})
	}
}

func TestConsumeAppliesVolume(t *testing.T) {
	s := newTestSession(t, 64, pcm.S16, 1)
	s.ctrl.SetVolume(-0.5)

	in := make([]byte, 8)
	for i, v := range []int16{1000, -1000, 20000, 0} {
		binary.LittleEndian.PutUint16(in[i*2:], uint16(v))
	}
	s.ring.Write(in)

	out := make([]byte, 8)
	if n := s.consume(out, 4); n != 8 {
		t.Fatalf("returned %d, want 8", n)
	}
	want := []int16{500, -500, 10000, 0}
	for i, w := range want {
		if got := int16(binary.LittleEndian.Uint16(out[i*2:])); got != w {
			t.Errorf("sample %d: got %d, want %d", i, got, w)
		}
	}
}

func TestConsumeWaitsWhilePaused(t *testing.T) {
	s := newTestSession(t, 64, pcm.S16, 2)
	s.ring.Write(make([]byte, 16))
	s.ctrl.Pause()

	done := make(chan int, 1)
	go func() {
		done <- s.consume(make([]byte, 16), 4)
	}()

	select {
	case <-done:
		t.Fatal("consume returned while paused")
	case <-time.After(50 * time.Millisecond):
	}
	if s.ring.Buffered() != 16 {
		t.Fatal("consume read from the ring while paused")
	}

	s.ctrl.Resume()
	select {
	case n := <-done:
		if n != 16 {
			t.Fatalf("returned %d, want 16", n)
		}
	case <-time.After(time.Second):
		t.Fatal("consume did not resume")
	}
}

func TestConsumeAfterCloseReturnsSilence(t *testing.T) {
	s := newTestSession(t, 64, pcm.S16, 2)
	s.ring.Close()

	out := bytes.Repeat([]byte{0xEE}, 16)
	if n := s.consume(out, 4); n != 0 {
		t.Fatalf("returned %d, want 0", n)
	}
	if !bytes.Equal(out, make([]byte, 16)) {
		t.Fatalf("got %x, want silence", out)
	}
}

func TestWriteSplitsLargeBuffers(t *testing.T) {
	s := newTestSession(t, 16, pcm.S16, 2)
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}

	got := make(chan []byte, 1)
	go func() {
		var buf bytes.Buffer
		p := make([]byte, 16)
		for buf.Len() < len(data) {
			n, err := s.ring.Read(p)
			if err != nil {
				break
			}
			buf.Write(p[:n])
		}
		got <- buf.Bytes()
	}()

	if !s.write(data) {
		t.Fatal("write reported a closed buffer")
	}
	select {
	case b := <-got:
		if !bytes.Equal(b, data) {
			t.Fatalf("got %v, want %v", b, data)
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not receive all bytes")
	}
	if s.producedSamples.Load() != 25 {
		t.Fatalf("produced samples: got %d, want 25", s.producedSamples.Load())
	}
}

func TestWriteStopsOnClosedRing(t *testing.T) {
	s := newTestSession(t, 16, pcm.S16, 2)
	s.ring.Close()
	if s.write(make([]byte, 8)) {
		t.Fatal("write to a closed ring reported success")
	}
}

func TestProduceStopsWhenControlStops(t *testing.T) {
	s := newTestSession(t, 64, pcm.S16, 2)
	s.src = newFakeSource(-1, 4)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.produce()
	}()

	waitFor(t, "ring to fill", func() bool { return s.ring.Free() < s.writeChunk })
	s.ctrl.Stop()
	s.ring.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer did not stop")
	}
}
