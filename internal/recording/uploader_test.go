package recording

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
)

func newTestChunk() *Chunk {
	return &Chunk{
		SessionID: "s1",
		Sequence:  2,
		Payload:   []byte("RIFF----"),
		MimeType:  "audio/wav",
		Filename:  ChunkFilename(2, ".wav"),
	}
}

func TestChunkUploader_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if r.URL.Query().Get("chunk_number") != "2" {
			t.Errorf("Expected chunk_number=2, got %s", r.URL.Query().Get("chunk_number"))
		}
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"chunk stored"}`))
	}))
	defer server.Close()

	client, err := backend.NewClient(server.URL, time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	uploader := NewChunkUploader(client, fastRetry(4), zerolog.Nop())

	ack, err := uploader.Upload(context.Background(), newTestChunk())
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if ack.Message() != "chunk stored" {
		t.Errorf("Expected message 'chunk stored', got '%s'", ack.Message())
	}
	if requests.Load() != 3 {
		t.Errorf("Expected 3 requests, got %d", requests.Load())
	}
}

func TestChunkUploader_GivesUpOnClientError(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "bad chunk", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client, _ := backend.NewClient(server.URL, time.Second)
	uploader := NewChunkUploader(client, fastRetry(4), zerolog.Nop())

	_, err := uploader.Upload(context.Background(), newTestChunk())

	var uploadErr *ChunkUploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("Expected ChunkUploadError, got %v", err)
	}
	if uploadErr.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", uploadErr.Attempts)
	}
	if uploadErr.Sequence != 2 {
		t.Errorf("Expected sequence 2, got %d", uploadErr.Sequence)
	}
	if requests.Load() != 1 {
		t.Errorf("Expected 1 request, got %d", requests.Load())
	}
}

func TestChunkUploader_StopsOnCancel(t *testing.T) {
	sender := newFakeSender()
	sender.failures[2] = -1
	uploader := NewChunkUploader(sender, fastRetry(10), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uploader.Upload(ctx, newTestChunk())

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if sender.calls[2] != 0 {
		t.Errorf("Expected no upload attempts after cancel, got %d", sender.calls[2])
	}
}
