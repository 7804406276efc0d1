package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/drgolem/tomu/internal/config"
	"github.com/drgolem/tomu/internal/remote"
)

var ctlViaNats bool

// ctlCmd represents the ctl command
var ctlCmd = &cobra.Command{
	Use:   "ctl <command>",
	Short: "Send a command to a running player",
	Long: `Send one command to a player running on this machine through its control
socket, or through NATS with --nats.

Commands:
  ` + strings.Join(remote.CommandNames(), ", ") + `

A single command key (p, r, q, n, +, -) is accepted as well.

Examples:
  tomu ctl pause
  tomu ctl volume-up
  tomu ctl --nats --nats-url nats://127.0.0.1:4222 next`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command, err := remote.ParseCommand(args[0])
		if err != nil {
			return err
		}

		if ctlViaNats {
			url := viper.GetString(config.KeyNatsURL)
			if url == "" {
				return fmt.Errorf("--nats needs --nats-url or %s in the config", config.KeyNatsURL)
			}
			n, err := remote.DialNats(url, viper.GetString(config.KeyNatsSubject), setupLogging(false, false))
			if err != nil {
				return err
			}
			defer n.Close()
			return n.Publish(command)
		}
		return remote.Send(viper.GetString(config.KeySocketPath), command)
	},
}

func init() {
	rootCmd.AddCommand(ctlCmd)

	ctlCmd.Flags().BoolVar(&ctlViaNats, "nats", false, "Publish the command on NATS instead of the local socket")
}
