package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "tomu v%s\n", version)
		fmt.Fprintln(out, "Built with:")
		fmt.Fprintln(out, "  - Blocking ring buffer between decoder and audio callback")
		fmt.Fprintln(out, "  - Shared pause/volume control for keyboard, socket, HTTP and NATS")
		fmt.Fprintln(out, "  - PortAudio, oto and WAV file outputs")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}
