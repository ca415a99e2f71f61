package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/observability"
)

// Dependencies are shared by every command. Configuration is loaded on demand
// so commands that never talk to the backend work without BACKEND_URL.
type Dependencies struct {
	LoadConfig func() (*config.Config, error)
	Stdout     io.Writer
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recorder",
		Short:         "Record audio in chunks and hand it to the processing backend",
		Long:          "Records microphone audio (or replays a WAV file) in fixed-duration chunks, uploads each chunk as it is cut, finalizes the session and follows reassembly and transcription on the backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Version = observability.Version

	rootCmd.AddCommand(NewRecordCmd(deps))
	rootCmd.AddCommand(NewUploadCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewDevicesCmd(deps))
	rootCmd.AddCommand(NewServeCmd(deps))

	return rootCmd
}
