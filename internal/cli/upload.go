package cli

import (
	"github.com/spf13/cobra"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/observability"
	"github.com/lexiqai/session-recorder/internal/orchestrator"
	"github.com/lexiqai/session-recorder/internal/output"
)

func NewUploadCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an existing audio file and transcribe it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			client, err := backend.NewClientFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			records, _, closeRecords, err := openRecords(cfg, logger)
			if err != nil {
				return err
			}
			defer closeRecords()

			orch := orchestrator.NewRecordingOrchestrator(client, nil, records, orchestrator.OptionsFromConfig(cfg), logger)

			stopFollowing := followRecords(records, deps.Stdout, nil)
			rec, err := orch.UploadAndTranscribe(cmd.Context(), args[0])
			stopFollowing()

			formatter := output.NewFormatter(deps.Stdout)
			if err == nil {
				formatter.Success("Uploaded " + rec.Name)
			}
			if rec != nil {
				formatter.RecordDetail(*rec)
			}
			return err
		},
	}
}
