package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cancelikay/santral/internal/audio"
)

func NewDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List host audio devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := audio.Initialize(); err != nil {
				return err
			}
			defer audio.Terminate()

			devices, err := audio.Devices()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range devices {
				marker := " "
				switch {
				case d.DefaultInput && d.DefaultOutput:
					marker = "*"
				case d.DefaultInput:
					marker = "i"
				case d.DefaultOutput:
					marker = "o"
				}
				fmt.Fprintf(out, "%s %-40s in:%-2d out:%-2d %.0f Hz\n",
					marker, d.Name, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
			}
			return nil
		},
	}
	return cmd
}
