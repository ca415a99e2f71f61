package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/observability"
)

// StatusFetcher is the part of the backend client the reassembly poller needs
type StatusFetcher interface {
	TaskStatus(ctx context.Context, taskID string) (*backend.TaskStatus, error)
}

// TaskPoller waits for a reassembly task to finish
type TaskPoller struct {
	client      StatusFetcher
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

// NewTaskPoller creates a poller. Non-positive bounds fall back to 2s and 60
// attempts.
func NewTaskPoller(client StatusFetcher, interval time.Duration, maxAttempts int, logger zerolog.Logger) *TaskPoller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &TaskPoller{
		client:      client,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// AwaitCompletion polls the task until it succeeds with a result, fails, or
// the polling bound is exhausted. onProgress may be nil.
func (p *TaskPoller) AwaitCompletion(ctx context.Context, taskID string, onProgress func(string)) (*backend.RecordingResult, error) {
	logger := p.logger.With().
		Str("task_id", taskID).
		Str("kind", KindReassembly).
		Logger()

	var result *backend.RecordingResult
	loop := pollLoop{
		kind:        KindReassembly,
		taskID:      taskID,
		interval:    p.interval,
		maxAttempts: p.maxAttempts,
		logger:      logger,
	}

	err := loop.run(ctx, func(ctx context.Context) (bool, error) {
		status, err := p.client.TaskStatus(ctx, taskID)
		if err != nil {
			return false, &pollError{err: err}
		}
		observability.RecordTaskPoll(KindReassembly, string(status.Status))

		switch status.Status {
		case backend.TaskSuccess:
			if status.Result == nil {
				logger.Debug().Msg("Task reported success without a result, still waiting")
				return false, nil
			}
			result = status.Result
			return true, nil
		case backend.TaskFailure:
			msg := ""
			if status.Result != nil {
				msg = status.Result.Message
			}
			return false, &TaskFailedError{Kind: KindReassembly, TaskID: taskID, Message: msg}
		case backend.TaskProgress:
			if onProgress != nil {
				onProgress(progressMessage(status.Result))
			}
		case backend.TaskPending:
		default:
			logger.Debug().Str("status", string(status.Status)).Msg("Unknown task status")
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func progressMessage(result *backend.RecordingResult) string {
	if result == nil || strings.TrimSpace(result.Message) == "" {
		return DefaultProgressMessage
	}
	return result.Message
}
