package player

import (
	"github.com/drgolem/tomu/pkg/pcm"
)

// consume is the output driver callback and the only reader of the ring
// buffer.
//
// Real-time constraints: it runs on the driver's thread, does not allocate,
// and blocks only while paused or while the ring buffer is empty.
func (s *Session) consume(out []byte, frameCount int) int {
	need := min(frameCount*s.frameSize, len(out))
	buf := out[:need]

	s.ctrl.WaitWhilePaused()

	n, _ := s.ring.Read(buf)
	if n < need {
		pcm.FillSilence(buf[n:], s.out.SampleFormat)
	}

	if volume := s.ctrl.Volume(); volume != 1.0 {
		pcm.ApplyGain(buf, s.out.SampleFormat, volume)
	}

	s.playedSamples.Add(uint64(n / s.frameSize))
	return n
}
