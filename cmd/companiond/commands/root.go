package commands

import (
	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "companiond",
	Short: "Voice companion daemon",
	Long: `companiond runs a hands-free voice conversation with a configured
companion character: microphone capture, a duplex gateway link, scheduled
speech playback, and an ambient soundscape the character controls itself.

A local HTTP control plane drives it: session start/stop/interrupt, status,
character and track catalogs, chat history, and a websocket event stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is conf.yaml next to the binary)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tracksCmd)
	rootCmd.AddCommand(versionCmd)
}
