package audioframe

import (
	"testing"
	"time"

	"github.com/drgolem/tomu/pkg/pcm"
)

func TestNewInterleaved(t *testing.T) {
	format := FrameFormat{SampleRate: 44100, Channels: 2, SampleFormat: pcm.S16}
	f := NewInterleaved(format, make([]byte, 4096))

	if f.SamplesCount != 1024 {
		t.Errorf("SamplesCount: got %d, want 1024", f.SamplesCount)
	}
	if f.Size() != 4096 {
		t.Errorf("Size: got %d, want 4096", f.Size())
	}
	if err := f.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr bool
	}{
		{
			name: "interleaved ok",
			frame: Frame{
				Format:       FrameFormat{SampleRate: 48000, Channels: 2, SampleFormat: pcm.S24},
				SamplesCount: 2,
				Planes:       [][]byte{make([]byte, 12)},
			},
		},
		{
			name: "interleaved short",
			frame: Frame{
				Format:       FrameFormat{SampleRate: 48000, Channels: 2, SampleFormat: pcm.S24},
				SamplesCount: 3,
				Planes:       [][]byte{make([]byte, 12)},
			},
			wantErr: true,
		},
		{
			name: "planar ok",
			frame: Frame{
				Format:       FrameFormat{SampleRate: 44100, Channels: 2, SampleFormat: pcm.F32P},
				SamplesCount: 4,
				Planes:       [][]byte{make([]byte, 16), make([]byte, 16)},
			},
		},
		{
			name: "planar missing channel",
			frame: Frame{
				Format:       FrameFormat{SampleRate: 44100, Channels: 2, SampleFormat: pcm.S16P},
				SamplesCount: 4,
				Planes:       [][]byte{make([]byte, 8)},
			},
			wantErr: true,
		},
		{
			name: "unknown format",
			frame: Frame{
				Format:       FrameFormat{SampleRate: 44100, Channels: 1},
				SamplesCount: 1,
				Planes:       [][]byte{make([]byte, 8)},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	f := Frame{
		Format:       FrameFormat{SampleRate: 48000, Channels: 1, SampleFormat: pcm.S16},
		SamplesCount: 24000,
	}
	if got := f.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration: got %v, want 500ms", got)
	}
}
