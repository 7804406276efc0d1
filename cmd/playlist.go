package cmd

import (
	"github.com/spf13/cobra"

	"github.com/drgolem/tomu/internal/player"
)

// loopCmd represents the loop command
var loopCmd = &cobra.Command{
	Use:   "loop <audio_file|directory>",
	Short: "Play one audio file over and over",
	Long: `Play one audio file repeatedly until q is pressed or the process is
interrupted. "n" restarts the file. A directory loops one random file from it.

Examples:
  tomu loop song.flac
  tomu loop --driver oto ~/Music/ambient`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlayer(cmd.Context(), player.ModeLoop, args[0])
	},
}

// shuffleLoopCmd represents the shuffle-loop command
var shuffleLoopCmd = &cobra.Command{
	Use:   "shuffle-loop <directory>",
	Short: "Play random files from a directory until quit",
	Long: `Pick a random playable file from a directory, play it, and repeat until q is
pressed. The last few picks are not repeated. "n" skips to the next file.
Files that cannot be opened are logged and skipped.

Examples:
  tomu shuffle-loop ~/Music/jazz
  tomu shuffle-loop -v --http :8080 ~/Music`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlayer(cmd.Context(), player.ModeShuffleLoop, args[0])
	},
}

func init() {
	rootCmd.AddCommand(loopCmd)
	rootCmd.AddCommand(shuffleLoopCmd)
}
