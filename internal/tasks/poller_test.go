package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
)

// scriptedStatus replays a fixed sequence of responses, repeating the last one
type scriptedStatus struct {
	mu        sync.Mutex
	responses []*backend.TaskStatus
	errs      []error
	calls     int
}

func (s *scriptedStatus) TaskStatus(ctx context.Context, taskID string) (*backend.TaskStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.responses)-1)
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.responses[i], nil
}

func (s *scriptedStatus) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func status(state backend.TaskState, result *backend.RecordingResult) *backend.TaskStatus {
	return &backend.TaskStatus{TaskID: "t1", Status: state, Result: result}
}

func TestTaskPoller_ProgressThenSuccess(t *testing.T) {
	client := &scriptedStatus{responses: []*backend.TaskStatus{
		status(backend.TaskPending, nil),
		status(backend.TaskProgress, &backend.RecordingResult{Message: "Merging chunks"}),
		status(backend.TaskProgress, nil),
		status(backend.TaskSuccess, &backend.RecordingResult{SessionID: "s1", FinalAudioKey: "audio/s1_final.wav"}),
	}}
	poller := NewTaskPoller(client, 2*time.Millisecond, 50, zerolog.Nop())

	var progress []string
	result, err := poller.AwaitCompletion(context.Background(), "t1", func(msg string) {
		progress = append(progress, msg)
	})
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}

	if result.FinalAudioKey != "audio/s1_final.wav" {
		t.Errorf("Expected final audio key 'audio/s1_final.wav', got '%s'", result.FinalAudioKey)
	}
	if client.callCount() != 4 {
		t.Errorf("Expected 4 polls, got %d", client.callCount())
	}
	if len(progress) != 2 {
		t.Fatalf("Expected 2 progress callbacks, got %d", len(progress))
	}
	if progress[0] != "Merging chunks" {
		t.Errorf("Expected 'Merging chunks', got '%s'", progress[0])
	}
	if progress[1] != DefaultProgressMessage {
		t.Errorf("Expected default progress message, got '%s'", progress[1])
	}
}

func TestTaskPoller_FailureStopsImmediately(t *testing.T) {
	client := &scriptedStatus{responses: []*backend.TaskStatus{
		status(backend.TaskFailure, &backend.RecordingResult{Message: "chunk 3 corrupt"}),
		status(backend.TaskSuccess, &backend.RecordingResult{FinalAudioKey: "never"}),
	}}
	poller := NewTaskPoller(client, 2*time.Millisecond, 50, zerolog.Nop())

	_, err := poller.AwaitCompletion(context.Background(), "t1", nil)

	var failed *TaskFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Expected TaskFailedError, got %v", err)
	}
	if failed.Message != "chunk 3 corrupt" {
		t.Errorf("Expected message 'chunk 3 corrupt', got '%s'", failed.Message)
	}
	if client.callCount() != 1 {
		t.Errorf("Expected 1 poll, got %d", client.callCount())
	}
}

func TestTaskPoller_SuccessWithoutResultKeepsPolling(t *testing.T) {
	client := &scriptedStatus{responses: []*backend.TaskStatus{
		status(backend.TaskSuccess, nil),
		status(backend.TaskSuccess, &backend.RecordingResult{FinalAudioKey: "audio/s1_final.wav"}),
	}}
	poller := NewTaskPoller(client, 2*time.Millisecond, 50, zerolog.Nop())

	result, err := poller.AwaitCompletion(context.Background(), "t1", nil)
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if result == nil || client.callCount() != 2 {
		t.Errorf("Expected result after 2 polls, got %v after %d", result, client.callCount())
	}
}

func TestTaskPoller_PollErrorsCountAsAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	client := &scriptedStatus{
		responses: []*backend.TaskStatus{nil, nil, status(backend.TaskPending, nil)},
		errs:      []error{boom, boom, boom},
	}
	poller := NewTaskPoller(client, 50*time.Millisecond, 3, zerolog.Nop())

	_, err := poller.AwaitCompletion(context.Background(), "t1", nil)

	var timeout *TaskTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected TaskTimeoutError, got %v", err)
	}
	if timeout.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", timeout.Attempts)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected timeout to wrap the last poll error, got %v", err)
	}
}

func TestTaskPoller_RecoversAfterPollError(t *testing.T) {
	client := &scriptedStatus{
		responses: []*backend.TaskStatus{nil, status(backend.TaskSuccess, &backend.RecordingResult{FinalAudioKey: "k"})},
		errs:      []error{errors.New("temporary")},
	}
	poller := NewTaskPoller(client, 2*time.Millisecond, 50, zerolog.Nop())

	result, err := poller.AwaitCompletion(context.Background(), "t1", nil)
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if result.FinalAudioKey != "k" {
		t.Errorf("Expected final audio key 'k', got '%s'", result.FinalAudioKey)
	}
}

func TestTaskPoller_NeverTerminal(t *testing.T) {
	client := &scriptedStatus{responses: []*backend.TaskStatus{status(backend.TaskPending, nil)}}
	poller := NewTaskPoller(client, 5*time.Millisecond, 4, zerolog.Nop())

	_, err := poller.AwaitCompletion(context.Background(), "t1", nil)

	var timeout *TaskTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected TaskTimeoutError, got %v", err)
	}
	if client.callCount() > 4 {
		t.Errorf("Expected at most 4 polls, got %d", client.callCount())
	}
}

func TestTaskPoller_HangingBackendTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := backend.NewClient(server.URL, time.Minute)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	poller := NewTaskPoller(client, 20*time.Millisecond, 5, zerolog.Nop())

	start := time.Now()
	_, err = poller.AwaitCompletion(context.Background(), "t1", nil)
	elapsed := time.Since(start)

	var timeout *TaskTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected TaskTimeoutError, got %v", err)
	}
	if elapsed > time.Second {
		t.Errorf("Expected timeout near 100ms, took %v", elapsed)
	}
}

func TestTaskPoller_ParentCancel(t *testing.T) {
	client := &scriptedStatus{responses: []*backend.TaskStatus{status(backend.TaskPending, nil)}}
	poller := NewTaskPoller(client, 10*time.Millisecond, 1000, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := poller.AwaitCompletion(ctx, "t1", nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestTaskPoller_OverHTTP(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/task-status/t1" {
			t.Errorf("Expected path /task-status/t1, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		if polls.Add(1) < 2 {
			fmt.Fprint(w, `{"task_id":"t1","status":"PROGRESS","result":{"message":"50%"}}`)
			return
		}
		fmt.Fprint(w, `{"task_id":"t1","status":"SUCCESS","result":{"session_id":"s1","final_audio_key":"audio/s1_final.wav","message":"done"}}`)
	}))
	defer server.Close()

	client, _ := backend.NewClient(server.URL, time.Second)
	poller := NewTaskPoller(client, 2*time.Millisecond, 50, zerolog.Nop())

	var progress []string
	result, err := poller.AwaitCompletion(context.Background(), "t1", func(msg string) {
		progress = append(progress, msg)
	})
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if result.SessionID != "s1" {
		t.Errorf("Expected session 's1', got '%s'", result.SessionID)
	}
	if len(progress) != 1 || progress[0] != "50%" {
		t.Errorf("Expected progress [50%%], got %v", progress)
	}
}
