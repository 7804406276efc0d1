package stream

import (
	"context"
	"fmt"

	"github.com/drgolem/tomu/pkg/audioframe"
	"github.com/drgolem/tomu/pkg/types"
)

// AudioPacketProvider is the interface for sources that provide audio data
// This allows tomu to play from any source: generators, network streams, buffers.
type AudioPacketProvider interface {
	// ReadAudioPacket reads the next packet of up to samples samples per channel.
	// Returns the packet and any error (io.EOF when stream ends)
	ReadAudioPacket(ctx context.Context, samples int) (*audioframe.Frame, error)
}

// StreamDecoder implements types.Source for streaming audio sources.
// The stream format is fixed when the decoder is created; packets in any
// other format are skipped.
type StreamDecoder struct {
	ctx      context.Context
	cancel   context.CancelFunc
	provider AudioPacketProvider
	info     types.StreamInfo
	samples  int
}

// NewStreamDecoder creates a decoder for streaming audio sources. Each
// NextFrame asks the provider for packetSamples samples.
func NewStreamDecoder(ctx context.Context, provider AudioPacketProvider, info types.StreamInfo, packetSamples int) *StreamDecoder {
	ctx, cancel := context.WithCancel(ctx)
	return &StreamDecoder{
		ctx:      ctx,
		cancel:   cancel,
		provider: provider,
		info:     info,
		samples:  packetSamples,
	}
}

func (d *StreamDecoder) Info() types.StreamInfo {
	return d.info
}

func (d *StreamDecoder) NextFrame() (*audioframe.Frame, error) {
	pkt, err := d.provider.ReadAudioPacket(d.ctx, d.samples)
	if err != nil {
		return nil, err
	}

	if pkt.SamplesCount == 0 {
		return nil, fmt.Errorf("%w: empty packet", types.ErrSkipUnit)
	}

	if d.formatChanged(pkt.Format) {
		return nil, fmt.Errorf("%w: packet format %s differs from stream format", types.ErrSkipUnit, pkt.Format)
	}

	return pkt, nil
}

// Close cancels any pending provider read.
func (d *StreamDecoder) Close() error {
	d.cancel()
	return nil
}

func (d *StreamDecoder) formatChanged(f audioframe.FrameFormat) bool {
	return d.info.SampleRate != f.SampleRate ||
		d.info.Channels != f.Channels ||
		d.info.SourceFormat != f.SampleFormat
}
