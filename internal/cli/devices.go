package cli

import (
	"github.com/spf13/cobra"

	"github.com/lexiqai/session-recorder/internal/audio"
	"github.com/lexiqai/session-recorder/internal/output"
)

func NewDevicesCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := audio.NewContext()
			if err != nil {
				return err
			}
			defer ctx.Close()

			devices, err := ctx.Devices()
			if err != nil {
				return err
			}
			output.NewFormatter(deps.Stdout).Devices(devices)
			return nil
		},
	}
}
