package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/observability"
)

// CatalogQueryError means the backend file catalog could not be read
type CatalogQueryError struct {
	Err error
}

func (e *CatalogQueryError) Error() string {
	return fmt.Sprintf("querying file catalog: %v", e.Err)
}

func (e *CatalogQueryError) Unwrap() error { return e.Err }

// FileLister is the part of the backend client the checker needs
type FileLister interface {
	ListFiles(ctx context.Context) ([]backend.File, error)
}

// Checker answers dedupe questions against the backend file catalog. Answers
// are a snapshot: a transcript started elsewhere after the query is not seen.
type Checker struct {
	client FileLister
	logger zerolog.Logger
}

func NewChecker(client FileLister, logger zerolog.Logger) *Checker {
	return &Checker{client: client, logger: logger}
}

// Index fetches the catalog and indexes it
func (c *Checker) Index(ctx context.Context) (*Index, error) {
	files, err := c.client.ListFiles(ctx)
	if err != nil {
		return nil, &CatalogQueryError{Err: err}
	}
	return NewIndex(files), nil
}

// TranscriptionNeeded reports whether audioKey still needs a transcript, and
// returns the group found in the catalog. A catalog failure is logged and
// treated as "needed".
func (c *Checker) TranscriptionNeeded(ctx context.Context, audioKey string) (bool, Group) {
	idx, err := c.Index(ctx)
	if err != nil {
		observability.RecordError("catalog_query", "checker")
		c.logger.Warn().
			Err(err).
			Str("audio_key", audioKey).
			Msg("File catalog unavailable, assuming transcription is needed")
		return true, Group{ID: ArtifactID(audioKey)}
	}

	g, ok := idx.Lookup(audioKey)
	if !ok {
		g.ID = ArtifactID(audioKey)
	}
	transcript, ok := idx.TranscriptFor(audioKey)
	if !ok {
		return true, g
	}

	c.logger.Info().
		Str("audio_key", audioKey).
		Str("transcript", transcript.Key).
		Msg("Transcript already exists")
	return false, g
}
