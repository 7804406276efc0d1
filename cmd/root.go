package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/drgolem/tomu/internal/config"
	"github.com/drgolem/tomu/internal/remote"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tomu",
	Short: "Terminal audio player with live control",
	Long: `tomu - a command-line audio player that decodes a file into PCM and streams
it to an audio device through a bounded ring buffer, while pause, resume,
volume and skip commands arrive from the keyboard, a local socket, HTTP or NATS.

Features:
  - Decoder goroutine and audio callback joined by a blocking ring buffer
  - MP3, FLAC, WAV, Ogg Vorbis and AIFF input, plus generated test tones
  - PortAudio, oto or WAV file output with optional resampling
  - Play once, loop one file, or shuffle a directory

Keys while playing:
  space toggle pause   p pause   r resume   + / - volume   n next   q quit

Commands:
  - play: Play a file or a random file from a directory
  - loop / shuffle-loop: Repeat a file or shuffle a directory
  - ctl: Send a command to a running player
  - devices: List audio output devices
  - tone: Play a sine test tone
  - transform: Convert audio files to different sample rates and WAV format`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.config/tomu/config.yaml)")
	pf.BoolP("verbose", "v", false, "Verbose output (debug logging)")
	pf.String("driver", "portaudio", "Audio output driver: portaudio, oto or wav")
	pf.IntP("device", "d", 1, "PortAudio output device index")
	pf.IntP("frames", "f", 512, "Audio frames per buffer")
	pf.Int("samplerate", 0, "Output sample rate in Hz, 0 keeps the source rate")
	pf.StringP("out", "o", "", "Output file for the wav driver")
	pf.Bool("realtime", false, "Pace the wav driver at the sample rate")
	pf.Float64P("buffer", "b", 0.5, "Ring buffer length in seconds")
	pf.Float64("volume", 1.0, "Initial volume (0 < volume <= 1.26)")
	pf.Bool("keyboard", true, "Read key commands from the terminal")
	pf.Bool("socket", true, "Accept commands on the control socket")
	pf.String("socket-path", remote.DefaultSocketPath(), "Control socket path")
	pf.String("http", "", "Serve the HTTP control API on this address, e.g. :8080")
	pf.String("nats-url", "", "Receive commands from this NATS server")
	pf.String("nats-subject", remote.DefaultNatsSubject, "NATS subject for commands")

	bindFlags := map[string]string{
		config.KeyVerbose:         "verbose",
		config.KeyDriver:          "driver",
		config.KeyDevice:          "device",
		config.KeyFramesPerBuffer: "frames",
		config.KeySampleRate:      "samplerate",
		config.KeyOutputFile:      "out",
		config.KeyRealTime:        "realtime",
		config.KeyBufferSeconds:   "buffer",
		config.KeyVolume:          "volume",
		config.KeyKeyboard:        "keyboard",
		config.KeySocket:          "socket",
		config.KeySocketPath:      "socket-path",
		config.KeyHTTPAddr:        "http",
		config.KeyNatsURL:         "nats-url",
		config.KeyNatsSubject:     "nats-subject",
	}
	for key, flag := range bindFlags {
		viper.BindPFlag(key, pf.Lookup(flag))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "tomu"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("tomu")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			fmt.Fprintf(os.Stderr, "unable to read config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// setupLogging installs the default slog logger. While the keyboard holds
// the terminal in raw mode, line endings are rewritten to keep the log
// readable.
func setupLogging(verbose, rawTerminal bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	var w io.Writer = os.Stderr
	if rawTerminal {
		w = remote.NewCRLFWriter(os.Stderr)
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
