package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/observability"
)

// DefaultProgressMessage is reported when a PROGRESS response carries no message
const DefaultProgressMessage = "Processing..."

// checkFunc performs one poll. done ends the loop successfully; a non-nil
// error ends it with that error, unless it is a *pollError.
type checkFunc func(ctx context.Context) (done bool, err error)

// pollError marks a failed status request. It is logged and counts as an
// attempt instead of ending the loop.
type pollError struct {
	err error
}

func (e *pollError) Error() string { return e.err.Error() }

func (e *pollError) Unwrap() error { return e.err }

type pollLoop struct {
	kind        string
	taskID      string
	interval    time.Duration
	maxAttempts int
	logger      zerolog.Logger
}

// run polls strictly sequentially: poll, then sleep. The whole loop, including
// requests that never answer, is bounded by maxAttempts * interval.
func (p pollLoop) run(ctx context.Context, check checkFunc) error {
	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, time.Duration(p.maxAttempts)*p.interval)
	defer cancel()

	var lastErr error
	attempts := 0

poll:
	for attempts < p.maxAttempts {
		if pollCtx.Err() != nil {
			break
		}
		attempts++

		done, err := check(pollCtx)
		var pollErr *pollError
		if errors.As(err, &pollErr) {
			lastErr = pollErr.err
			observability.RecordTaskPoll(p.kind, "error")
			p.logger.Warn().
				Err(pollErr.err).
				Int("attempt", attempts).
				Msg("Task status poll failed")
		} else if err != nil {
			observability.RecordTaskOutcome(p.kind, "failure")
			return err
		} else {
			lastErr = nil
		}
		if done {
			observability.RecordTaskOutcome(p.kind, "success")
			p.logger.Info().
				Int("attempts", attempts).
				Dur("elapsed", time.Since(start)).
				Msg("Task completed")
			return nil
		}

		if attempts == p.maxAttempts {
			break
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			break poll
		case <-timer.C:
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	observability.RecordTaskOutcome(p.kind, "timeout")
	return &TaskTimeoutError{
		Kind:     p.kind,
		TaskID:   p.taskID,
		Attempts: attempts,
		Elapsed:  time.Since(start),
		LastErr:  lastErr,
	}
}
