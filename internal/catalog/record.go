package catalog

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an uploaded audio record
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// ParseStatus maps s onto a known status regardless of case. Unknown values
// are returned unchanged.
func ParseStatus(s string) Status {
	for _, st := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	return Status(s)
}

// Terminal reports whether the record will not change status again
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the client-side view of one uploaded or recorded audio. Name is
// the key. Records are created Pending; the store does not police transitions,
// and a Completed recording is marked Failed when post-processing fails.
type Record struct {
	Name           string    `json:"name"`
	SessionID      string    `json:"session_id,omitempty"`
	Status         Status    `json:"status"`
	Message        string    `json:"message,omitempty"`
	AudioLink      string    `json:"audio_link,omitempty"`
	TranscriptLink string    `json:"transcript_link,omitempty"`
	Summary        string    `json:"summary,omitempty"`     // summary text fetched from the backend
	SummaryURL     string    `json:"summary_url,omitempty"` // summary file in the catalog
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RecordName is the catalog key of a recorded session
func RecordName(sessionID string) string {
	return sessionID + "_recording"
}
