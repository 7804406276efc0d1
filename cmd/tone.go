package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/drgolem/tomu/internal/player"
	"github.com/drgolem/tomu/pkg/decoders/stream"
)

var toneDuration time.Duration

// toneCmd represents the tone command
var toneCmd = &cobra.Command{
	Use:   "tone [frequency_hz]",
	Short: "Play a sine test tone",
	Long: `Play a 48 kHz stereo sine wave at half scale, 440 Hz by default. Without
--duration the tone plays until q is pressed.

Examples:
  tomu tone
  tomu tone 1000 --duration 5s
  tomu tone 440 --driver wav --out a440.wav --duration 10s`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		freq := stream.DefaultToneFrequency
		if len(args) == 1 {
			f, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid frequency %q", args[0])
			}
			freq = f
		}
		path := fmt.Sprintf("%s%g", stream.TonePrefix, freq)
		if toneDuration > 0 {
			path += ":" + toneDuration.String()
		}
		return runPlayer(cmd.Context(), player.ModeOnce, path)
	},
}

func init() {
	rootCmd.AddCommand(toneCmd)

	toneCmd.Flags().DurationVar(&toneDuration, "duration", 0, "Tone length, 0 plays until quit")
}
