package backend

import "encoding/json"

// TaskState is the status vocabulary of /task-status (reassembly tasks)
type TaskState string

const (
	TaskPending  TaskState = "PENDING"
	TaskProgress TaskState = "PROGRESS"
	TaskSuccess  TaskState = "SUCCESS"
	TaskFailure  TaskState = "FAILURE"
)

// Terminal reports whether the backend will not move the task any further
func (s TaskState) Terminal() bool {
	return s == TaskSuccess || s == TaskFailure
}

// TranscriptionState is the status vocabulary of /transcription_status. It is
// deliberately a separate type from TaskState.
type TranscriptionState string

const (
	TranscriptionProgress TranscriptionState = "PROGRESS"
	TranscriptionSuccess  TranscriptionState = "SUCCESS"
	TranscriptionFailed   TranscriptionState = "FAILED"
)

// Terminal reports whether the transcription will not move any further
func (s TranscriptionState) Terminal() bool {
	return s == TranscriptionSuccess || s == TranscriptionFailed
}

// RecordingResult is the payload of a successful reassembly task
type RecordingResult struct {
	SessionID     string `json:"session_id"`
	FinalAudioKey string `json:"final_audio_key"`
	Message       string `json:"message"`
}

// TaskStatus is the response of GET /task-status/{id}
type TaskStatus struct {
	TaskID string           `json:"task_id"`
	Status TaskState        `json:"status"`
	Result *RecordingResult `json:"result"`
}

// TranscriptionResult is present on a finished transcription
type TranscriptionResult struct {
	Message              string `json:"message"`
	TranscriptionFileURL string `json:"transcription_file_url"`
}

// TranscriptionStatus is the response of GET /transcription_status/{id}
type TranscriptionStatus struct {
	State  TranscriptionState   `json:"state"`
	Status string               `json:"status,omitempty"`
	Result *TranscriptionResult `json:"result,omitempty"`
}

// TaskHandle is returned by calls that enqueue backend work
type TaskHandle struct {
	TaskID string `json:"task_id"`
}

// ChunkAck is the backend acknowledgment of an uploaded chunk. Its shape is
// not fixed by the backend contract, so the decoded object is kept as is.
type ChunkAck struct {
	Fields map[string]any
}

func (a *ChunkAck) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &a.Fields)
}

// Message returns the "message" field of the acknowledgment, if any
func (a *ChunkAck) Message() string {
	if a == nil {
		return ""
	}
	msg, _ := a.Fields["message"].(string)
	return msg
}

// Summary is the response of GET /resumen/. Like ChunkAck its shape is open.
type Summary struct {
	Fields map[string]any
}

func (s *Summary) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &s.Fields)
}

// Text returns the summary text from the first of "resumen", "summary" or
// "text" that holds a non-empty string
func (s *Summary) Text() string {
	if s == nil {
		return ""
	}
	for _, key := range []string{"resumen", "summary", "text"} {
		if v, _ := s.Fields[key].(string); v != "" {
			return v
		}
	}
	return ""
}

// File is one entry of the backend artifact catalog
type File struct {
	Key          string `json:"Key"`
	URL          string `json:"URL"`
	Size         int64  `json:"Size"`
	LastModified string `json:"LastModified"` // as sent by the backend, not parsed
	ContentType  string `json:"ContentType"`
}

// FilesResponse is the response of GET /files
type FilesResponse struct {
	Files []File `json:"files"`
}

// UploadResponse is the response of POST /upload
type UploadResponse struct {
	Message  string `json:"message"`
	FileInfo File   `json:"file_info"`
}
