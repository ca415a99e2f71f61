package recording

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
)

// Finisher is the part of the backend client the finalizer needs
type Finisher interface {
	FinishRecording(ctx context.Context, sessionID string) (*backend.TaskHandle, error)
}

// SessionFinalizer tells the backend a session is complete and returns the
// reassembly task handle. It never retries: a failure is fatal to the session.
type SessionFinalizer struct {
	client Finisher
	logger zerolog.Logger
}

func NewSessionFinalizer(client Finisher, logger zerolog.Logger) *SessionFinalizer {
	return &SessionFinalizer{client: client, logger: logger}
}

// Finish returns the task id of the reassembly task. Any failure, including
// an empty task id, is a *FinalizeError.
func (f *SessionFinalizer) Finish(ctx context.Context, sessionID string) (string, error) {
	handle, err := f.client.FinishRecording(ctx, sessionID)
	if err != nil {
		return "", &FinalizeError{SessionID: sessionID, Err: err}
	}
	taskID := strings.TrimSpace(handle.TaskID)
	if taskID == "" {
		return "", &FinalizeError{SessionID: sessionID, Err: ErrEmptyTaskID}
	}

	f.logger.Info().
		Str("session_id", sessionID).
		Str("task_id", taskID).
		Msg("Session finalized")
	return taskID, nil
}
