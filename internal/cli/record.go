package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/session-recorder/internal/audio"
	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/catalog"
	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/observability"
	"github.com/lexiqai/session-recorder/internal/orchestrator"
	"github.com/lexiqai/session-recorder/internal/output"
	"github.com/lexiqai/session-recorder/internal/recording"
)

type recordOptions struct {
	input    string
	device   string
	duration time.Duration
	realtime bool
	serve    bool
}

func NewRecordCmd(deps *Dependencies) *cobra.Command {
	var opts recordOptions

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a session and upload it in chunks",
		Long:  "Record from the microphone (or replay a WAV file with --input) until Ctrl+C, --duration or the end of the input.\nEach chunk is uploaded as soon as it is cut; the session is then finalized and followed to completion.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			return runRecord(cmd.Context(), deps, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Replay a 16-bit PCM WAV file instead of the microphone")
	cmd.Flags().StringVarP(&opts.device, "device", "d", "", "Capture device name (substring match, overrides INPUT_DEVICE)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop automatically after this long (0 = until Ctrl+C)")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", true, "Pace --input replay at its sample rate")
	cmd.Flags().BoolVar(&opts.serve, "serve", false, "Serve the status API on STATUS_PORT while recording")

	return cmd
}

func runRecord(ctx context.Context, deps *Dependencies, cfg *config.Config, opts recordOptions) error {
	logger := observability.GetLogger()
	formatter := output.NewFormatter(deps.Stdout)

	client, err := backend.NewClientFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	records, journal, closeRecords, err := openRecords(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	recCfg, err := recording.RecorderConfigFromConfig(cfg)
	if err != nil {
		return err
	}
	if opts.device != "" {
		recCfg.Device = opts.device
	}

	var audioCtx audio.Context
	var replayDone <-chan struct{}
	if opts.input != "" {
		fake, err := audio.NewFakeContextFromWAV(opts.input, opts.realtime)
		if err != nil {
			return err
		}
		format := fake.Format()
		recCfg.SampleRate = int(format.SampleRate)
		recCfg.Channels = int(format.Channels)
		recCfg.Device = ""
		audioCtx = fake
		replayDone = fake.Done()
	} else {
		audioCtx, err = audio.NewContext()
		if err != nil {
			return err
		}
	}
	defer audioCtx.Close()

	uploader := recording.NewChunkUploader(client, recording.RetryConfigFromConfig(cfg), logger)
	recorder := recording.NewSessionRecorder(audioCtx, uploader, recCfg, logger)
	orch := orchestrator.NewRecordingOrchestrator(client, recorder, records, orchestrator.OptionsFromConfig(cfg), logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if opts.serve && cfg.StatusPort != "" {
		server := statusServer(cfg, client, records, journal, logger)
		go func() {
			if err := server.Run(ctx, ":"+cfg.StatusPort); err != nil {
				logger.Error().Err(err).Msg("Status API failed")
			}
		}()
	}

	var session *recording.Session
	stopFollowing := followRecords(records, deps.Stdout, func(r catalog.Record) {
		if session = recorder.Active(); session != nil {
			formatter.RecordingStarted(r.SessionID, recCfg.Device)
		}
	})

	// first signal stops recording, a second one abandons the session
	stop := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		var timeout <-chan time.Time
		if opts.duration > 0 {
			timeout = time.After(opts.duration)
		}
		select {
		case <-quit:
		case <-timeout:
		case <-replayDone:
		case <-ctx.Done():
		}
		close(stop)

		select {
		case <-quit:
			logger.Warn().Msg("Second interrupt, abandoning session")
			cancel()
		case <-ctx.Done():
		}
	}()

	rec, runErr := orch.Run(ctx, stop)
	stopFollowing()

	if session != nil {
		formatter.RecordingStopped(session.Duration(), session.ChunksSent())
	}
	if rec != nil {
		formatter.RecordDetail(*rec)
	}
	return runErr
}
