package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/backend"
	"github.com/lexiqai/session-recorder/internal/catalog"
	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/observability"
	"github.com/lexiqai/session-recorder/internal/recording"
	"github.com/lexiqai/session-recorder/internal/tasks"
)

// ErrEmptySession is returned when a session captured no audio at all
var ErrEmptySession = errors.New("no audio was captured")

// Backend is the backend surface the orchestrator drives
type Backend interface {
	recording.Finisher
	tasks.StatusFetcher
	tasks.TranscriptionFetcher
	catalog.FileLister
	StartTranscription(ctx context.Context, fileKey string, segmentDuration int) (*backend.TaskHandle, error)
	UploadFile(ctx context.Context, filename, mimeType string, r io.Reader) (*backend.UploadResponse, error)
	Summary(ctx context.Context, key string) (*backend.Summary, error)
}

// Options controls the end-to-end flow
type Options struct {
	StrictChunks              bool          // refuse to finalize a session with missing chunks
	AutoTranscribe            bool          // transcribe the final audio unless a transcript exists
	SegmentDuration           int           // seconds, forwarded to /transcribe
	PostProcessDelay          time.Duration // settle time before the catalog check
	DrainTimeout              time.Duration // bound on waiting for in-flight chunks after stop
	PollInterval              time.Duration
	PollMaxAttempts           int
	TranscriptionPollInterval time.Duration
	TranscriptionMaxAttempts  int
}

// OptionsFromConfig maps application configuration onto the orchestrator
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StrictChunks:              cfg.StrictChunks,
		AutoTranscribe:            cfg.AutoTranscribe,
		SegmentDuration:           cfg.SegmentDuration,
		PostProcessDelay:          cfg.PostProcessDelayDuration(),
		DrainTimeout:              2 * time.Minute,
		PollInterval:              cfg.PollIntervalDuration(),
		PollMaxAttempts:           cfg.PollMaxAttempts,
		TranscriptionPollInterval: cfg.TranscriptionPollIntervalDuration(),
		TranscriptionMaxAttempts:  cfg.TranscriptionMaxAttempts,
	}
}

// RecordingOrchestrator runs a recording from capture to transcript and keeps
// the record catalog in step with it
type RecordingOrchestrator struct {
	client         Backend
	recorder       *recording.SessionRecorder
	finalizer      *recording.SessionFinalizer
	poller         *tasks.TaskPoller
	transcriptions *tasks.TranscriptionPoller
	checker        *catalog.Checker
	records        *catalog.RecordStore
	opts           Options
	logger         zerolog.Logger
}

// NewRecordingOrchestrator wires the pipeline stages around client. recorder
// may be nil when only UploadAndTranscribe is used.
func NewRecordingOrchestrator(client Backend, recorder *recording.SessionRecorder, records *catalog.RecordStore, opts Options, logger zerolog.Logger) *RecordingOrchestrator {
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 2 * time.Minute
	}
	return &RecordingOrchestrator{
		client:         client,
		recorder:       recorder,
		finalizer:      recording.NewSessionFinalizer(client, logger),
		poller:         tasks.NewTaskPoller(client, opts.PollInterval, opts.PollMaxAttempts, logger),
		transcriptions: tasks.NewTranscriptionPoller(client, opts.TranscriptionPollInterval, opts.TranscriptionMaxAttempts, logger),
		checker:        catalog.NewChecker(client, logger),
		records:        records,
		opts:           opts,
		logger:         logger,
	}
}

// Records returns the record catalog the orchestrator updates
func (o *RecordingOrchestrator) Records() *catalog.RecordStore {
	return o.records
}

// Run records until stop is closed, then finalizes the session, waits for
// reassembly and post-processes the result. Any stage failure leaves the
// record Failed and is returned; the session is never retried.
func (o *RecordingOrchestrator) Run(ctx context.Context, stop <-chan struct{}) (*catalog.Record, error) {
	if o.recorder == nil {
		return nil, errors.New("orchestrator has no recorder")
	}

	session, err := o.recorder.Start(ctx)
	if err != nil {
		var deviceErr *recording.DeviceAccessError
		if errors.As(err, &deviceErr) {
			name := catalog.RecordName(deviceErr.SessionID)
			o.records.Upsert(catalog.Record{Name: name, SessionID: deviceErr.SessionID, Status: catalog.StatusPending})
			return o.fail(name, "Could not access the microphone", err)
		}
		return nil, err
	}

	name := catalog.RecordName(session.ID)
	logger := observability.WithSession(o.logger, session.ID)
	metrics := session.Metrics()

	o.records.Upsert(catalog.Record{
		Name:      name,
		SessionID: session.ID,
		Status:    catalog.StatusPending,
		Message:   "Recording...",
	})

	select {
	case <-stop:
	case <-ctx.Done():
	}

	session, err = o.recorder.Stop()
	if err != nil {
		return o.fail(name, "Recording stopped unexpectedly", err)
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordSessionOutcome("cancelled")
		return o.fail(name, "Recording cancelled", err)
	}

	o.update(name, catalog.StatusProcessing, "Uploading remaining chunks")

	drainCtx, cancel := context.WithTimeout(ctx, o.opts.DrainTimeout)
	err = session.Drain(drainCtx)
	cancel()
	if err != nil {
		metrics.RecordSessionOutcome("failed")
		return o.fail(name, "Timed out uploading chunks", fmt.Errorf("waiting for chunk uploads: %w", err))
	}

	if session.ChunksEmitted() == 0 {
		metrics.RecordSessionOutcome("failed")
		return o.fail(name, "No audio was captured", ErrEmptySession)
	}

	if missing := session.MissingSequences(); len(missing) > 0 {
		if o.opts.StrictChunks {
			metrics.RecordSessionOutcome("failed")
			return o.fail(name, "Some audio chunks could not be uploaded", &recording.IncompleteSessionError{SessionID: session.ID, Missing: missing})
		}
		logger.Warn().
			Ints("missing_chunks", missing).
			Int("chunks_sent", session.ChunksSent()).
			Msg("Finalizing session with missing chunks")
	}

	logger.Info().
		Int("chunks", session.ChunksEmitted()).
		Dur("duration", session.Duration()).
		Msg("All chunks settled, finalizing")

	o.update(name, catalog.StatusProcessing, "Finalizing recording")
	taskID, err := o.finalizer.Finish(ctx, session.ID)
	metrics.RecordFinalize(err == nil)
	if err != nil {
		metrics.RecordSessionOutcome("failed")
		return o.fail(name, "The server did not accept the recording", err)
	}

	o.update(name, catalog.StatusProcessing, "Processing recording")
	result, err := o.poller.AwaitCompletion(ctx, taskID, o.progress(name))
	if err != nil {
		metrics.RecordSessionOutcome("failed")
		return o.fail(name, pollFailureMessage(err), err)
	}

	message := result.Message
	if message == "" {
		message = "Recording complete"
	}
	rec, _ := o.records.Update(name, func(r *catalog.Record) {
		r.Status = catalog.StatusCompleted
		r.AudioLink = result.FinalAudioKey
		r.Message = message
	})
	metrics.RecordSessionOutcome("completed")

	logger.Info().
		Str("task_id", taskID).
		Str("final_audio_key", result.FinalAudioKey).
		Msg("Recording completed")

	if !o.opts.AutoTranscribe {
		return &rec, nil
	}
	return o.postProcess(ctx, name, result.FinalAudioKey)
}

// postProcess reuses or produces the transcript of a completed recording
func (o *RecordingOrchestrator) postProcess(ctx context.Context, name, audioKey string) (*catalog.Record, error) {
	if o.opts.PostProcessDelay > 0 {
		timer := time.NewTimer(o.opts.PostProcessDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return o.fail(name, "Transcription cancelled", ctx.Err())
		case <-timer.C:
		}
	}

	transcriptURL, err := o.transcribe(ctx, name, audioKey)
	if err != nil {
		return o.fail(name, "Transcription failed", err)
	}

	rec, _ := o.records.Update(name, func(r *catalog.Record) {
		r.TranscriptLink = transcriptURL
		r.Message = "Transcript available"
	})
	return &rec, nil
}

// transcribe returns the transcript URL of audioKey, starting transcription
// only when the file catalog has none. Two callers racing here may both start
// a transcription.
func (o *RecordingOrchestrator) transcribe(ctx context.Context, name, audioKey string) (string, error) {
	needed, group := o.checker.TranscriptionNeeded(ctx, audioKey)
	if group.Summary != nil {
		o.attachSummary(ctx, name, group.Summary)
	}
	if !needed {
		return group.Transcript.URL, nil
	}

	fileKey := fileName(audioKey)
	handle, err := o.client.StartTranscription(ctx, fileKey, o.opts.SegmentDuration)
	if err != nil {
		return "", fmt.Errorf("starting transcription of %s: %w", fileKey, err)
	}
	if handle.TaskID == "" {
		return "", fmt.Errorf("starting transcription of %s: %w", fileKey, recording.ErrEmptyTaskID)
	}

	o.logger.Info().
		Str("record", name).
		Str("file_key", fileKey).
		Str("task_id", handle.TaskID).
		Msg("Transcription started")

	o.setMessage(name, "Transcribing...")
	result, err := o.transcriptions.AwaitTranscription(ctx, handle.TaskID, o.progress(name))
	if err != nil {
		return "", err
	}
	return result.TranscriptionFileURL, nil
}

// attachSummary links the catalog summary file to the record and fetches its
// text. A failed fetch only leaves the text empty.
func (o *RecordingOrchestrator) attachSummary(ctx context.Context, name string, file *backend.File) {
	o.records.Update(name, func(r *catalog.Record) { r.SummaryURL = file.URL })

	summary, err := o.client.Summary(ctx, file.Key)
	if err != nil {
		observability.RecordError("summary_fetch", "orchestrator")
		o.logger.Warn().
			Err(err).
			Str("record", name).
			Str("key", file.Key).
			Msg("Could not fetch summary")
		return
	}
	if text := summary.Text(); text != "" {
		o.records.Update(name, func(r *catalog.Record) { r.Summary = text })
	}
}

func (o *RecordingOrchestrator) progress(name string) func(string) {
	return func(msg string) {
		o.setMessage(name, msg)
	}
}

func (o *RecordingOrchestrator) setMessage(name, msg string) {
	o.records.Update(name, func(r *catalog.Record) { r.Message = msg })
}

func (o *RecordingOrchestrator) update(name string, status catalog.Status, msg string) {
	o.records.Update(name, func(r *catalog.Record) {
		r.Status = status
		r.Message = msg
	})
}

// fail marks the record Failed with a readable message and returns err
func (o *RecordingOrchestrator) fail(name, summary string, err error) (*catalog.Record, error) {
	observability.RecordError(errorType(err), "orchestrator")
	o.logger.Error().
		Err(err).
		Str("record", name).
		Msg(summary)

	rec, updateErr := o.records.Update(name, func(r *catalog.Record) {
		r.Status = catalog.StatusFailed
		r.Message = fmt.Sprintf("%s: %v", summary, err)
	})
	if updateErr != nil {
		return nil, err
	}
	return &rec, err
}

func pollFailureMessage(err error) string {
	var timeout *tasks.TaskTimeoutError
	if errors.As(err, &timeout) {
		return "Processing took too long"
	}
	return "Processing failed"
}

func errorType(err error) string {
	var (
		deviceErr     *recording.DeviceAccessError
		finalizeErr   *recording.FinalizeError
		incompleteErr *recording.IncompleteSessionError
		failedErr     *tasks.TaskFailedError
		timeoutErr    *tasks.TaskTimeoutError
	)
	switch {
	case errors.As(err, &deviceErr):
		return "device_access"
	case errors.As(err, &finalizeErr):
		return "finalize"
	case errors.As(err, &incompleteErr):
		return "incomplete_session"
	case errors.As(err, &failedErr):
		return "task_failed"
	case errors.As(err, &timeoutErr):
		return "task_timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "other"
	}
}
