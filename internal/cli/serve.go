package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/observability"
)

func NewServeCmd(deps *Dependencies) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record status API",
		Long:  "Serve /records, /events, /health, /ready and /metrics over the journaled record catalog until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			if port == "" {
				port = cfg.StatusPort
			}
			if port == "" {
				return errors.New("no status port configured (set STATUS_PORT or --port)")
			}
			logger := observability.GetLogger()

			client, err := backend.NewClientFromConfig(cfg, logger)
			if err != nil {
				return err
			}
			records, journal, closeRecords, err := openRecords(cfg, logger)
			if err != nil {
				return err
			}
			defer closeRecords()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)
			go func() {
				select {
				case <-quit:
					logger.Info().Msg("Shutting down status API...")
					cancel()
				case <-ctx.Done():
				}
			}()

			return statusServer(cfg, client, records, journal, logger).Run(ctx, ":"+port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (defaults to STATUS_PORT)")

	return cmd
}
