package catalog

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRecord_StatusJSON(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusPending, `"status":"Pending"`},
		{StatusProcessing, `"status":"Processing"`},
		{StatusCompleted, `"status":"Completed"`},
		{StatusFailed, `"status":"Failed"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			data, err := json.Marshal(Record{Name: "s1_recording", Status: tt.status})
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if !strings.Contains(string(data), tt.expected) {
				t.Errorf("Expected %s in %s", tt.expected, data)
			}
		})
	}
}

func TestRecordStore_UpsertCompletedStatus(t *testing.T) {
	store := NewRecordStore(nil, zerolog.Nop())

	rec := store.Upsert(Record{Name: "s1_recording", Status: StatusCompleted})
	if rec.Status != "Completed" {
		t.Errorf("Expected status 'Completed', got '%s'", rec.Status)
	}
}

func TestRecordStore_CompletedCanFail(t *testing.T) {
	store := NewRecordStore(nil, zerolog.Nop())
	store.Upsert(Record{Name: "s1_recording", Status: StatusCompleted, AudioLink: "audio/s1_final.wav"})

	rec, err := store.Update("s1_recording", func(r *Record) {
		r.Status = StatusFailed
		r.Message = "Transcription failed"
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if rec.Status != StatusFailed {
		t.Errorf("Expected status Failed, got %s", rec.Status)
	}
	if rec.AudioLink != "audio/s1_final.wav" {
		t.Errorf("Expected audio link to be kept, got '%s'", rec.AudioLink)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in       string
		expected Status
	}{
		{"Completed", StatusCompleted},
		{"completed", StatusCompleted},
		{"PROCESSING", StatusProcessing},
		{"pending", StatusPending},
		{"failed", StatusFailed},
		{"archived", Status("archived")},
	}

	for _, tt := range tests {
		if got := ParseStatus(tt.in); got != tt.expected {
			t.Errorf("ParseStatus(%q): expected %s, got %s", tt.in, tt.expected, got)
		}
	}
}
