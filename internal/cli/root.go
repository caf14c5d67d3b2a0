package cli

import (
	"github.com/spf13/cobra"

	"github.com/cancelikay/santral/internal/version"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "santral",
		Short: "Voice call agent with a local control API",
		Long:  "Santral runs a duplex voice session against a realtime speech model, streaming microphone audio up and scheduling synthesized speech for gapless playback, controlled over a local HTTP/WebSocket API.",
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.PersistentFlags().String("config", "", "path to config file")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewDevicesCmd())

	return rootCmd
}
