package recording

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrAlreadyRecording is returned by Start while another session holds the device
	ErrAlreadyRecording = errors.New("a recording session is already active")
	// ErrNotRecording is returned by Stop when no session is active
	ErrNotRecording = errors.New("no active recording session")
	// ErrEmptyTaskID is wrapped in a FinalizeError when the backend accepts the
	// session but returns no task handle
	ErrEmptyTaskID = errors.New("backend returned an empty task_id")
)

// DeviceAccessError means the audio input could not be acquired
type DeviceAccessError struct {
	SessionID string
	Device    string
	Err       error
}

func (e *DeviceAccessError) Error() string {
	device := e.Device
	if device == "" {
		device = "default input"
	}
	return fmt.Sprintf("session %s: cannot access audio device %q: %v", e.SessionID, device, e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

// ChunkUploadError means one chunk was not delivered after all attempts
type ChunkUploadError struct {
	SessionID string
	Sequence  int
	Attempts  int
	Err       error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("session %s: chunk %d not delivered after %d attempt(s): %v", e.SessionID, e.Sequence, e.Attempts, e.Err)
}

func (e *ChunkUploadError) Unwrap() error { return e.Err }

// FinalizeError means the backend did not accept the end of the session
type FinalizeError struct {
	SessionID string
	Err       error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("session %s: finalize failed: %v", e.SessionID, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// IncompleteSessionError is returned instead of finalizing when chunk gaps are
// not tolerated
type IncompleteSessionError struct {
	SessionID string
	Missing   []int
}

func (e *IncompleteSessionError) Error() string {
	seqs := make([]string, len(e.Missing))
	for i, n := range e.Missing {
		seqs[i] = strconv.Itoa(n)
	}
	return fmt.Sprintf("session %s: %d chunk(s) missing (%s), not finalizing", e.SessionID, len(e.Missing), strings.Join(seqs, ", "))
}
