// Package config turns viper settings into validated player and control
// configuration.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/viper"

	"github.com/drgolem/tomu/internal/player"
	"github.com/drgolem/tomu/internal/remote"
	"github.com/drgolem/tomu/pkg/output"
	"github.com/drgolem/tomu/pkg/playback"
)

// Keys used in the config file, TOMU_ environment variables and flags.
const (
	KeyDriver          = "output.driver"
	KeyDevice          = "output.device"
	KeyFramesPerBuffer = "output.frames_per_buffer"
	KeySampleRate      = "output.sample_rate"
	KeyOutputFile      = "output.file"
	KeyRealTime        = "output.realtime"
	KeyBufferSeconds   = "buffer.seconds"
	KeyVolume          = "volume"
	KeyKeyboard        = "control.keyboard"
	KeySocket          = "control.socket"
	KeySocketPath      = "control.socket_path"
	KeyHTTPAddr        = "control.http_addr"
	KeyNatsURL         = "nats.url"
	KeyNatsSubject     = "nats.subject"
	KeyVerbose         = "verbose"
)

const (
	minFramesPerBuffer = 16
	maxFramesPerBuffer = 8192
	maxBufferSeconds   = 10.0
	minSampleRate      = 8000
	maxSampleRate      = 384000
)

// Control selects the control inputs of a session.
type Control struct {
	Keyboard    bool
	Socket      bool
	SocketPath  string
	HTTPAddr    string // empty disables HTTP
	NatsURL     string // empty disables NATS
	NatsSubject string
}

type Settings struct {
	Player  player.Config
	Control Control
	Verbose bool
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDriver, "portaudio")
	v.SetDefault(KeyDevice, 1)
	v.SetDefault(KeyFramesPerBuffer, player.DefaultFramesPerBuffer)
	v.SetDefault(KeySampleRate, 0)
	v.SetDefault(KeyOutputFile, "")
	v.SetDefault(KeyRealTime, false)
	v.SetDefault(KeyBufferSeconds, player.DefaultBufferSeconds)
	v.SetDefault(KeyVolume, 1.0)
	v.SetDefault(KeyKeyboard, true)
	v.SetDefault(KeySocket, true)
	v.SetDefault(KeySocketPath, remote.DefaultSocketPath())
	v.SetDefault(KeyHTTPAddr, "")
	v.SetDefault(KeyNatsURL, "")
	v.SetDefault(KeyNatsSubject, remote.DefaultNatsSubject)
	v.SetDefault(KeyVerbose, false)
}

// Load reads and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		Player: player.Config{
			Driver:          v.GetString(KeyDriver),
			Device:          v.GetInt(KeyDevice),
			FramesPerBuffer: v.GetInt(KeyFramesPerBuffer),
			SampleRate:      v.GetInt(KeySampleRate),
			OutputFile:      v.GetString(KeyOutputFile),
			RealTime:        v.GetBool(KeyRealTime),
			BufferSeconds:   v.GetFloat64(KeyBufferSeconds),
			Volume:          v.GetFloat64(KeyVolume),
		},
		Control: Control{
			Keyboard:    v.GetBool(KeyKeyboard),
			Socket:      v.GetBool(KeySocket),
			SocketPath:  v.GetString(KeySocketPath),
			HTTPAddr:    v.GetString(KeyHTTPAddr),
			NatsURL:     v.GetString(KeyNatsURL),
			NatsSubject: v.GetString(KeyNatsSubject),
		},
		Verbose: v.GetBool(KeyVerbose),
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate reports every invalid setting at once.
func (s Settings) Validate() error {
	var errs []error
	p := s.Player

	if !slices.Contains(output.Names, p.Driver) {
		errs = append(errs, fmt.Errorf("%s: %w %q (use one of %v)", KeyDriver, output.ErrUnknownDriver, p.Driver, output.Names))
	}
	if p.Driver == "wav" && p.OutputFile == "" {
		errs = append(errs, fmt.Errorf("%s: required by the wav driver", KeyOutputFile))
	}
	if p.Device < 0 {
		errs = append(errs, fmt.Errorf("%s: invalid device index %d", KeyDevice, p.Device))
	}
	if p.FramesPerBuffer < minFramesPerBuffer || p.FramesPerBuffer > maxFramesPerBuffer {
		errs = append(errs, fmt.Errorf("%s: %d outside [%d, %d]", KeyFramesPerBuffer, p.FramesPerBuffer, minFramesPerBuffer, maxFramesPerBuffer))
	}
	if p.SampleRate != 0 && (p.SampleRate < minSampleRate || p.SampleRate > maxSampleRate) {
		errs = append(errs, fmt.Errorf("%s: %d outside [%d, %d]", KeySampleRate, p.SampleRate, minSampleRate, maxSampleRate))
	}
	if p.BufferSeconds <= 0 || p.BufferSeconds > maxBufferSeconds {
		errs = append(errs, fmt.Errorf("%s: %v outside (0, %v]", KeyBufferSeconds, p.BufferSeconds, maxBufferSeconds))
	}
	// zero would mean unity gain to the player, so a startup mute is refused
	if p.Volume <= playback.MinVolume || p.Volume > playback.MaxVolume {
		errs = append(errs, fmt.Errorf("%s: %v outside (%v, %v]", KeyVolume, p.Volume, playback.MinVolume, playback.MaxVolume))
	}
	if s.Control.Socket && s.Control.SocketPath == "" {
		errs = append(errs, fmt.Errorf("%s: required when %s is on", KeySocketPath, KeySocket))
	}
	return errors.Join(errs...)
}
