package cmd

import (
	"fmt"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"

	"github.com/drgolem/tomu/pkg/output"
)

// devicesCmd represents the devices command
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List PortAudio output devices",
	Long: `List the PortAudio devices that have output channels. Use the index with
--device.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize PortAudio: %w", err)
		}
		defer portaudio.Terminate()

		devices, err := output.OutputDevices()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "PortAudio %s\n", portaudio.GetVersion())
		for _, d := range devices {
			fmt.Fprintf(out, "%3d  %-40s %2d ch  %6.0f Hz\n", d.Index, d.Name, d.MaxOutputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
