package orchestrator

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lexiqai/session-recorder/internal/catalog"
)

// UploadAndTranscribe uploads an existing audio file in one request and
// transcribes it, tracking it in the record catalog under its file name
func (o *RecordingOrchestrator) UploadAndTranscribe(ctx context.Context, filePath string) (*catalog.Record, error) {
	name := filepath.Base(filePath)
	o.records.Upsert(catalog.Record{Name: name, Status: catalog.StatusPending, Message: "Uploading..."})

	f, err := os.Open(filePath)
	if err != nil {
		return o.fail(name, "Could not read the file", err)
	}
	defer f.Close()

	resp, err := o.client.UploadFile(ctx, name, mimeTypeFor(name), f)
	if err != nil {
		return o.fail(name, "Upload failed", fmt.Errorf("uploading %s: %w", name, err))
	}

	audioKey := resp.FileInfo.Key
	if audioKey == "" {
		audioKey = name
	}
	o.logger.Info().
		Str("record", name).
		Str("key", audioKey).
		Msg("File uploaded")

	rec, _ := o.records.Update(name, func(r *catalog.Record) {
		r.Status = catalog.StatusProcessing
		r.AudioLink = audioKey
		r.Message = resp.Message
	})
	if !o.opts.AutoTranscribe {
		rec, _ = o.records.Update(name, func(r *catalog.Record) { r.Status = catalog.StatusCompleted })
		return &rec, nil
	}

	transcriptURL, err := o.transcribe(ctx, name, audioKey)
	if err != nil {
		return o.fail(name, "Transcription failed", err)
	}

	rec, _ = o.records.Update(name, func(r *catalog.Record) {
		r.Status = catalog.StatusCompleted
		r.TranscriptLink = transcriptURL
		r.Message = "Transcript available"
	})
	return &rec, nil
}

// fileName is the name of a stored file within its folder, as /transcribe expects
func fileName(key string) string {
	return path.Base(key)
}

func mimeTypeFor(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".mp3":
		return "audio/mpeg"
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
