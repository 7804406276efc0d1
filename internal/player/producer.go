package player

import (
	"context"
	"errors"
	"io"

	"github.com/drgolem/tomu/pkg/types"
)

// MaxConsecutiveErrors ends the stream when that many decode errors arrive
// in a row, so a decoder stuck on a broken tail cannot spin forever.
const MaxConsecutiveErrors = 16

// produce reads from the decoder and writes converted PCM to the ring buffer.
// It is the only writer of the ring buffer and runs on its own goroutine.
// It returns at the end of the stream or when the session stops.
func (s *Session) produce() {
	defer func() {
		if err := s.conv.Close(); err != nil {
			s.log.Warn("Failed to release converter", "error", err)
		}
	}()

	units := 0
	consecutiveErrors := 0

	for {
		s.ctrl.WaitWhilePaused()
		if !s.ctrl.IsRunning() {
			s.log.Debug("Producer stopped", "units", units)
			return
		}

		frame, err := s.src.NextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.flush()
				s.log.Debug("Producer finished", "units", units)
				return
			}
			if errors.Is(err, context.Canceled) {
				return
			}

			s.skippedUnits.Add(1)
			consecutiveErrors++
			if consecutiveErrors > MaxConsecutiveErrors {
				s.log.Error("Too many consecutive decode errors, ending stream",
					"errors", consecutiveErrors, "error", err)
				return
			}
			if errors.Is(err, types.ErrSkipUnit) {
				s.log.Warn("Skipping undecodable unit", "error", err)
			} else {
				s.log.Warn("Decoder error, skipping unit", "error", err)
			}
			continue
		}
		consecutiveErrors = 0
		units++

		data, err := s.conv.Convert(frame)
		if err != nil {
			s.skippedUnits.Add(1)
			s.log.Warn("Dropping frame, conversion failed", "error", err)
			continue
		}
		if !s.write(data) {
			s.log.Debug("Producer stopped while writing", "units", units)
			return
		}
	}
}

// flush writes audio held back by the converter at the end of the stream.
func (s *Session) flush() {
	tail, err := s.conv.Flush()
	if err != nil {
		s.log.Warn("Failed to flush converter", "error", err)
		return
	}
	s.write(tail)
}

// write splits data into chunks that always fit the ring buffer. It returns
// false once the buffer is closed.
func (s *Session) write(data []byte) bool {
	for len(data) > 0 {
		n := min(len(data), s.writeChunk)
		if _, err := s.ring.Write(data[:n]); err != nil {
			return false
		}
		s.producedSamples.Add(uint64(n / s.frameSize))
		data = data[n:]
	}
	return true
}
