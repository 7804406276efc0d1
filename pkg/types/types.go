package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/pcm"
)

var (
	// ErrSkipUnit marks a decode error that affects a single unit only.
	// The producer logs it and continues with the next unit.
	ErrSkipUnit = errors.New("skippable decode error")

	// ErrUnsupportedFormat indicates a file type or sample layout no decoder handles.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// StreamInfo describes the decoded stream of one source. It is derived once
// when the source is opened and never changes afterwards.
type StreamInfo struct {
	FileName     string
	Codec        string        // Decoder name, e.g. "mp3", "flac"
	StreamIndex  int           // Index of the audio stream inside the container
	SampleRate   int           // Hz
	Channels     int           // 1=mono, 2=stereo
	SourceFormat pcm.Format    // Sample layout produced by the decoder
	Duration     time.Duration // Zero when unknown
}

func (si StreamInfo) String() string {
	return fmt.Sprintf("%s [%s] %d Hz, %d ch, %s", si.FileName, si.Codec, si.SampleRate, si.Channels, si.SourceFormat)
}

// Source is the common interface for all decoders. NextFrame returns io.EOF
// at the end of the stream, and errors wrapping ErrSkipUnit for units that
// could not be decoded but do not end the stream. A returned frame may share
// buffers with the decoder and is only valid until the next NextFrame call.
type Source interface {
	Info() StreamInfo
	NextFrame() (*audioframe.Frame, error)
	Close() error
}

// PlaybackStatus holds unified playback information for audio players.
// This struct provides real-time metrics for monitoring audio playback.
type PlaybackStatus struct {
	Session         string        // Session id
	FileName        string        // Name of the currently playing file
	SampleRate      int           // Output sample rate in Hz
	Channels        int           // Number of audio channels
	Format          pcm.Format    // Output sample format
	FramesPerBuffer int           // Driver frames per callback (if applicable)
	PlayedSamples   uint64        // Samples handed to the audio output
	BufferedSamples uint64        // Samples decoded but not yet played
	BufferSize      int           // Ring buffer capacity in bytes
	BufferedBytes   int           // Ring buffer fill in bytes
	Volume          float64       // Linear gain
	Paused          bool          // Playback paused
	ElapsedTime     time.Duration // Wall-clock time since playback started
}

// FillPercent returns the ring buffer fill level in percent.
func (s PlaybackStatus) FillPercent() float64 {
	if s.BufferSize == 0 {
		return 0
	}
	return float64(s.BufferedBytes) * 100 / float64(s.BufferSize)
}

// PlaybackMonitor is an interface for types that can report playback status.
type PlaybackMonitor interface {
	GetPlaybackStatus() PlaybackStatus
}
