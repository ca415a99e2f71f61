package cli

import (
	"github.com/spf13/cobra"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/catalog"
	"github.com/lexiqai/session-recorder/internal/observability"
	"github.com/lexiqai/session-recorder/internal/output"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recordings",
		Long:  "List the local recording catalog, or with --remote the artifacts stored on the server grouped by recording.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			logger := observability.GetLogger()
			formatter := output.NewFormatter(deps.Stdout)

			if remote {
				client, err := backend.NewClientFromConfig(cfg, logger)
				if err != nil {
					return err
				}
				index, err := catalog.NewChecker(client, logger).Index(cmd.Context())
				if err != nil {
					return err
				}
				formatter.FileGroups(index.Groups())
				return nil
			}

			records, _, closeRecords, err := openRecords(cfg, logger)
			if err != nil {
				return err
			}
			defer closeRecords()

			formatter.RecordList(records.List())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&remote, "remote", "r", false, "List files stored on the server instead of local records")

	return cmd
}
