package recording

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/resilience"
)

// ChunkSender is the part of the backend client the uploader needs
type ChunkSender interface {
	UploadChunk(ctx context.Context, sessionID string, chunkNumber int, filename, mimeType string, payload []byte) (*backend.ChunkAck, error)
}

// ChunkUploader delivers single chunks, retrying transient failures with
// bounded exponential backoff
type ChunkUploader struct {
	client ChunkSender
	retry  *resilience.RetryConfig
	logger zerolog.Logger
}

// NewChunkUploader creates an uploader. A nil retry config uses the defaults.
func NewChunkUploader(client ChunkSender, retry *resilience.RetryConfig, logger zerolog.Logger) *ChunkUploader {
	if retry == nil {
		retry = resilience.DefaultRetryConfig()
	}
	return &ChunkUploader{client: client, retry: retry, logger: logger}
}

// RetryConfigFromConfig builds the chunk retry policy from configuration
func RetryConfigFromConfig(cfg *config.Config) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        time.Duration(cfg.RetryMaxBackoff) * time.Millisecond,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Upload sends one chunk. A final failure is a *ChunkUploadError.
func (u *ChunkUploader) Upload(ctx context.Context, chunk *Chunk) (*backend.ChunkAck, error) {
	ack, _, err := u.upload(ctx, chunk)
	if err != nil {
		return nil, err
	}
	return ack, nil
}

func (u *ChunkUploader) upload(ctx context.Context, chunk *Chunk) (*backend.ChunkAck, int, *ChunkUploadError) {
	var ack *backend.ChunkAck
	attempts := 0

	err := resilience.Retry(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt + 1
		if attempt > 0 {
			u.logger.Debug().
				Str("session_id", chunk.SessionID).
				Int("chunk_number", chunk.Sequence).
				Int("attempt", attempts).
				Msg("Retrying chunk upload")
		}

		var err error
		ack, err = u.client.UploadChunk(ctx, chunk.SessionID, chunk.Sequence, chunk.Filename, chunk.MimeType, chunk.Payload)
		return err
	}, u.retry, backend.IsRetryable)

	if err != nil {
		return nil, attempts, &ChunkUploadError{
			SessionID: chunk.SessionID,
			Sequence:  chunk.Sequence,
			Attempts:  attempts,
			Err:       err,
		}
	}
	return ack, attempts, nil
}
