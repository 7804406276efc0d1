// Package playback holds the playback state shared by the decoder goroutine,
// the audio callback and every control input.
package playback

import (
	"math"
	"sync"
)

const (
	// MaxVolume is the upper bound of the volume gain (about +2 dB).
	MaxVolume = 1.26
	// MinVolume mutes the output.
	MinVolume = 0.0
	// VolumeStep is the increment used by interactive controls.
	VolumeStep = 0.02
)

// Control is the running / paused / volume state machine of one playback
// session. All methods are safe for concurrent use.
//
// A stopped Control never runs again: create a new one for the next session.
type Control struct {
	mu      sync.Mutex
	changed *sync.Cond

	running bool
	paused  bool
	quit    bool
	volume  float64
	done    chan struct{}
}

// Snapshot is a point-in-time copy of the control state.
type Snapshot struct {
	Running bool    `json:"running"`
	Paused  bool    `json:"paused"`
	Volume  float64 `json:"volume"`
}

// Option configures a new Control.
type Option func(*Control)

// WithVolume sets the initial volume, clamped to [MinVolume, MaxVolume].
func WithVolume(v float64) Option {
	return func(c *Control) {
		c.volume = clampVolume(v)
	}
}

// New returns a running, unpaused Control at unity gain.
func New(opts ...Option) *Control {
	c := &Control{
		running: true,
		volume:  1.0,
		done:    make(chan struct{}),
	}
	c.changed = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pause sets paused. It has no effect on a stopped Control.
func (c *Control) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.paused = true
	}
}

// Resume clears paused and wakes every goroutine waiting in WaitWhilePaused.
func (c *Control) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.changed.Broadcast()
}

// Toggle flips paused and wakes waiters when it resumes.
func (c *Control) Toggle() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.paused = !c.paused
	resumed := !c.paused
	c.mu.Unlock()

	if resumed {
		c.changed.Broadcast()
	}
}

// Stop ends the session: running becomes false and paused is cleared so no
// waiter stays blocked. Stop is idempotent and terminal.
func (c *Control) Stop() {
	c.mu.Lock()
	if c.running {
		close(c.done)
	}
	c.running = false
	c.paused = false
	c.mu.Unlock()
	c.changed.Broadcast()
}

// Done returns a channel that is closed when the Control stops.
func (c *Control) Done() <-chan struct{} {
	return c.done
}

// Quit stops the session and records that the user asked to leave, so a
// playlist does not continue with the next file.
func (c *Control) Quit() {
	c.mu.Lock()
	c.quit = true
	c.mu.Unlock()
	c.Stop()
}

// QuitRequested reports whether Quit was called.
func (c *Control) QuitRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quit
}

// SetVolume adds delta to the volume, clamped to [MinVolume, MaxVolume],
// and returns the new value.
func (c *Control) SetVolume(delta float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = clampVolume(c.volume + delta)
	return c.volume
}

// Volume returns the current linear gain.
func (c *Control) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// WaitWhilePaused blocks until the Control is unpaused or stopped.
// It returns immediately when neither paused nor stopped.
func (c *Control) WaitWhilePaused() {
	c.mu.Lock()
	for c.paused && c.running {
		c.changed.Wait()
	}
	c.mu.Unlock()
}

// IsRunning reports whether the session is still live.
func (c *Control) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// IsPaused reports whether playback is paused.
func (c *Control) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Snapshot returns the current state under one lock acquisition.
func (c *Control) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Running: c.running,
		Paused:  c.paused,
		Volume:  c.volume,
	}
}

// clampVolume also rounds away the drift of repeated float steps so that
// thirteen steps of 0.02 from 1.0 land exactly on MaxVolume.
func clampVolume(v float64) float64 {
	v = math.Round(v*1e6) / 1e6
	return math.Max(MinVolume, math.Min(MaxVolume, v))
}
