package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/drgolem/tomu/internal/config"
	"github.com/drgolem/tomu/internal/player"
	"github.com/drgolem/tomu/internal/remote"
	"github.com/drgolem/tomu/pkg/types"
)

var playMode string

// playerCmd represents the play command
var playerCmd = &cobra.Command{
	Use:   "play <audio_file|directory>",
	Short: "Play an audio file (MP3, FLAC, WAV, Ogg Vorbis, AIFF)",
	Long: `Play an audio file through a decoder goroutine, a blocking ring buffer and the
audio driver callback. A directory plays one of its files at random.

Examples:
  # Play an MP3 file
  tomu play music.mp3

  # Play a FLAC file on a specific device
  tomu play --device 0 music.flac

  # Repeat a file until q is pressed
  tomu play --mode loop music.flac

  # Shuffle a directory
  tomu play --mode shuffle-loop ~/Music

  # Render to a WAV file at 48 kHz instead of the speakers
  tomu play --driver wav --out rendered.wav --samplerate 48000 music.ogg

Buffer Recommendations:
  Low latency:    --buffer 0.1 --frames 256
  Balanced:       --buffer 0.5 --frames 512   (default)
  High stability: --buffer 2   --frames 1024

Supported Formats:
  MP3:   .mp3 (16-bit lossy)
  FLAC:  .flac, .fla (16/24/32-bit lossless)
  WAV:   .wav (8/16/24/32-bit PCM)
  Vorbis: .ogg, .oga
  AIFF:  .aif, .aiff

Status Reporting:
  Playback status is logged every 2 seconds showing the file, output format,
  played and buffered audio time and wall-clock time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := player.ParseMode(playMode)
		if err != nil {
			return err
		}
		return runPlayer(cmd.Context(), mode, args[0])
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.Flags().StringVarP(&playMode, "mode", "m", "once", "Playback mode: once, loop or shuffle-loop")
}

// runPlayer loads the settings, prepares the audio backend and control
// inputs, and plays target until it ends or the user quits.
func runPlayer(ctx context.Context, mode player.Mode, target string) error {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	keyboard := settings.Control.Keyboard && stdinIsTerminal()
	logger := setupLogging(settings.Verbose, keyboard)

	if settings.Player.Driver == "portaudio" {
		logger.Debug("Initializing PortAudio")
		if err := portaudio.Initialize(); err != nil {
			logger.Error("Hint: Make sure PortAudio is installed on your system")
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		defer portaudio.Terminate()
		logger.Debug("PortAudio initialized", "version", portaudio.GetVersion())
	}

	logger.Info("Audio configuration",
		"driver", settings.Player.Driver,
		"device_index", settings.Player.Device,
		"frames_per_buffer", settings.Player.FramesPerBuffer,
		"buffer_seconds", settings.Player.BufferSeconds,
		"sample_rate", settings.Player.SampleRate,
		"mode", mode.String())

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := &playerMonitorAdapter{}
	inputs, closeInputs, err := controlInputs(settings.Control, keyboard, monitor, logger)
	if err != nil {
		return err
	}
	defer closeInputs()

	p := player.New(settings.Player,
		player.WithLogger(logger),
		player.WithInputs(inputs...),
	)
	monitor.player = p

	statusDone := make(chan struct{})
	go monitorPlayback(monitor, statusDone)
	defer close(statusDone)

	err = p.Run(ctx, mode, target)
	if errors.Is(ctx.Err(), context.Canceled) {
		logger.Info("Signal received, playback stopped")
	}
	if err != nil {
		return err
	}
	logger.Info("Exiting")
	return nil
}

// controlInputs builds the enabled command sources. The returned func
// releases connections that outlive single sessions.
func controlInputs(c config.Control, keyboard bool, monitor types.PlaybackMonitor, logger *slog.Logger) ([]player.ControlSource, func(), error) {
	var inputs []player.ControlSource
	closeFn := func() {}

	if keyboard {
		inputs = append(inputs, remote.NewKeyboard(os.Stdin, logger))
	}
	if c.Socket {
		inputs = append(inputs, remote.NewSocket(c.SocketPath, logger))
	}
	if c.HTTPAddr != "" {
		inputs = append(inputs, remote.NewHTTPServer(c.HTTPAddr, monitor, logger))
	}
	if c.NatsURL != "" {
		n, err := remote.DialNats(c.NatsURL, c.NatsSubject, logger)
		if err != nil {
			return nil, closeFn, err
		}
		inputs = append(inputs, n)
		closeFn = n.Close
	}
	return inputs, closeFn, nil
}

// playerMonitorAdapter lets inputs built before the player report its status.
type playerMonitorAdapter struct {
	player *player.Player
}

// GetPlaybackStatus implements types.PlaybackMonitor for player.Player
func (a *playerMonitorAdapter) GetPlaybackStatus() types.PlaybackStatus {
	if a.player == nil {
		return types.PlaybackStatus{}
	}
	return a.player.GetPlaybackStatus()
}
