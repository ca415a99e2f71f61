package tasks

import (
	"fmt"
	"time"
)

// Kinds of backend task, used in errors, logs and metric labels
const (
	KindReassembly    = "reassembly"
	KindTranscription = "transcription"
)

// TaskFailedError means the backend reported the task as failed
type TaskFailedError struct {
	Kind    string
	TaskID  string
	Message string
}

func (e *TaskFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s task %s failed", e.Kind, e.TaskID)
	}
	return fmt.Sprintf("%s task %s failed: %s", e.Kind, e.TaskID, e.Message)
}

// TaskTimeoutError means the task did not reach a terminal state within the
// polling bound
type TaskTimeoutError struct {
	Kind     string
	TaskID   string
	Attempts int
	Elapsed  time.Duration
	LastErr  error // last poll error, if the final polls failed
}

func (e *TaskTimeoutError) Error() string {
	msg := fmt.Sprintf("%s task %s did not complete after %d poll(s) in %s", e.Kind, e.TaskID, e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *TaskTimeoutError) Unwrap() error { return e.LastErr }
