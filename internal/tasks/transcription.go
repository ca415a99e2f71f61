package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/observability"
)

// TranscriptionFetcher is the part of the backend client the transcription
// poller needs
type TranscriptionFetcher interface {
	TranscriptionStatus(ctx context.Context, taskID string) (*backend.TranscriptionStatus, error)
}

// TranscriptionPoller waits for a transcription task. Its status vocabulary
// (PROGRESS/SUCCESS/FAILED) is distinct from reassembly tasks.
type TranscriptionPoller struct {
	client      TranscriptionFetcher
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

// NewTranscriptionPoller creates a poller. Non-positive bounds fall back to 5s
// and 120 attempts.
func NewTranscriptionPoller(client TranscriptionFetcher, interval time.Duration, maxAttempts int, logger zerolog.Logger) *TranscriptionPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 120
	}
	return &TranscriptionPoller{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// AwaitTranscription polls until the transcript is available
func (p *TranscriptionPoller) AwaitTranscription(ctx context.Context, taskID string, onProgress func(string)) (*backend.TranscriptionResult, error) {
	logger := p.logger.With().
		Str("task_id", taskID).
		Str("kind", KindTranscription).
		Logger()

	var result *backend.TranscriptionResult
	loop := pollLoop{
		kind:        KindTranscription,
		taskID:      taskID,
		interval:    p.interval,
		maxAttempts: p.maxAttempts,
		logger:      logger,
	}

	err := loop.run(ctx, func(ctx context.Context) (bool, error) {
		status, err := p.client.TranscriptionStatus(ctx, taskID)
		if err != nil {
			return false, &pollError{err: err}
		}
		observability.RecordTaskPoll(KindTranscription, string(status.State))

		switch status.State {
		case backend.TranscriptionSuccess:
			if status.Result == nil || status.Result.TranscriptionFileURL == "" {
				logger.Debug().Msg("Transcription reported success without a file, still waiting")
				return false, nil
			}
			result = status.Result
			return true, nil
		case backend.TranscriptionFailed:
			return false, &TaskFailedError{Kind: KindTranscription, TaskID: taskID, Message: transcriptionMessage(status)}
		case backend.TranscriptionProgress:
			if onProgress != nil {
				msg := transcriptionMessage(status)
				if msg == "" {
					msg = DefaultProgressMessage
				}
				onProgress(msg)
			}
		default:
			logger.Debug().Str("state", string(status.State)).Msg("Unknown transcription state")
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func transcriptionMessage(status *backend.TranscriptionStatus) string {
	if status.Result != nil && strings.TrimSpace(status.Result.Message) != "" {
		return status.Result.Message
	}
	return status.Status
}
