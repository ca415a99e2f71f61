package recording

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/audio"
	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/observability"
)

// RecorderConfig controls capture and slicing
type RecorderConfig struct {
	Device           string // substring of the input device name; empty selects the default
	SampleRate       int
	Channels         int
	ChunkDuration    time.Duration
	Format           audio.Format
	MaxInFlight      int     // concurrent chunk uploads per session
	SilenceThreshold float64 // RMS level below which a chunk is flagged silent
}

// RecorderConfigFromConfig maps application configuration onto the recorder
func RecorderConfigFromConfig(cfg *config.Config) (RecorderConfig, error) {
	format, err := audio.ParseFormat(cfg.ChunkFormat)
	if err != nil {
		return RecorderConfig{}, err
	}
	return RecorderConfig{
		Device:           cfg.InputDevice,
		SampleRate:       cfg.SampleRate,
		Channels:         cfg.Channels,
		ChunkDuration:    cfg.ChunkDurationValue(),
		Format:           format,
		MaxInFlight:      cfg.MaxInFlightChunks,
		SilenceThreshold: cfg.SilenceThreshold,
	}, nil
}

func (c RecorderConfig) captureConfig() audio.CaptureConfig {
	return audio.CaptureConfig{SampleRate: uint32(c.SampleRate), Channels: uint32(c.Channels)}
}

// sliceBytes is the PCM size of one full chunk
func (c RecorderConfig) sliceBytes() int {
	return int(float64(c.captureConfig().BytesPerSecond()) * c.ChunkDuration.Seconds())
}

// SessionRecorder owns the capture device for one session at a time. It cuts
// the capture stream into fixed-duration chunks and hands each to the
// uploader without waiting for the network.
type SessionRecorder struct {
	audioCtx audio.Context
	uploader *ChunkUploader
	cfg      RecorderConfig
	logger   zerolog.Logger

	mu     sync.Mutex
	active *capture
}

// capture is the state of the session currently holding the device
type capture struct {
	session   *Session
	device    audio.CaptureDevice
	segmenter *audio.SegmentBuffer
	metrics   *observability.SessionMetrics
	uploadCtx context.Context
	sem       chan struct{}
	logger    zerolog.Logger

	mu      sync.Mutex
	stopped bool
}

// Defaults for unset RecorderConfig fields
const (
	DefaultSampleRate    = 16000
	DefaultChannels      = 1
	DefaultChunkDuration = 15 * time.Second
)

// NewSessionRecorder creates a recorder capturing from audioCtx. Zero or
// negative config fields take their defaults.
func NewSessionRecorder(audioCtx audio.Context, uploader *ChunkUploader, cfg RecorderConfig, logger zerolog.Logger) *SessionRecorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = DefaultChunkDuration
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.Format == "" {
		cfg.Format = audio.FormatWAV
	}
	return &SessionRecorder{
		audioCtx: audioCtx,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}
}

// Config returns the recorder configuration
func (r *SessionRecorder) Config() RecorderConfig {
	return r.cfg
}

// Start begins a new session and acquires the capture device. Chunk uploads
// run under ctx: cancelling it abandons uploads still in flight.
func (r *SessionRecorder) Start(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return nil, ErrAlreadyRecording
	}

	now := time.Now()
	session := newSession(NewSessionID(now), now)
	logger := observability.WithSession(r.logger, session.ID)

	device, err := r.openDevice(session.ID)
	if err != nil {
		return nil, err
	}

	c := &capture{
		session:   session,
		device:    device,
		segmenter: audio.NewSegmentBuffer(r.cfg.sliceBytes(), r.cfg.Channels*audio.BytesPerSample),
		metrics:   session.Metrics(),
		uploadCtx: ctx,
		sem:       make(chan struct{}, r.cfg.MaxInFlight),
		logger:    logger,
	}

	device.SetCallback(func(data []byte, _ uint32) {
		r.onData(c, data)
	})
	if err := device.Start(); err != nil {
		device.ClearCallback()
		device.Close()
		return nil, &DeviceAccessError{SessionID: session.ID, Device: r.cfg.Device, Err: err}
	}

	c.metrics.RecordSessionStart()
	r.active = c

	logger.Info().
		Int("sample_rate", r.cfg.SampleRate).
		Int("channels", r.cfg.Channels).
		Dur("chunk_duration", r.cfg.ChunkDuration).
		Str("format", string(r.cfg.Format)).
		Msg("Recording started")

	return session, nil
}

func (r *SessionRecorder) openDevice(sessionID string) (audio.CaptureDevice, error) {
	info, err := audio.FindDevice(r.audioCtx, r.cfg.Device)
	if err != nil {
		return nil, &DeviceAccessError{SessionID: sessionID, Device: r.cfg.Device, Err: err}
	}
	device, err := r.audioCtx.NewCapture(info, r.cfg.captureConfig())
	if err != nil {
		return nil, &DeviceAccessError{SessionID: sessionID, Device: r.cfg.Device, Err: err}
	}
	return device, nil
}

// Active returns the session currently recording, or nil
func (r *SessionRecorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return nil
	}
	return r.active.session
}

// Stop ends capture, emits the partial final chunk and releases the device.
// It returns once the final chunk has been dispatched, not acknowledged; use
// Session.Drain to wait for delivery.
func (r *SessionRecorder) Stop() (*Session, error) {
	r.mu.Lock()
	c := r.active
	r.active = nil
	r.mu.Unlock()

	if c == nil {
		return nil, ErrNotRecording
	}
	defer c.device.Close()

	c.device.Stop()
	c.device.ClearCallback()

	c.mu.Lock()
	c.stopped = true
	if tail := c.segmenter.Flush(); len(tail) > 0 {
		r.dispatch(c, tail)
	}
	c.mu.Unlock()

	c.session.markStopped(time.Now())
	c.metrics.RecordCaptureEnd()

	c.logger.Info().
		Int("chunks_emitted", c.session.ChunksEmitted()).
		Dur("duration", c.session.Duration()).
		Msg("Recording stopped")

	return c.session, nil
}

// onData runs on the capture callback. It must not block on the network.
func (r *SessionRecorder) onData(c *capture, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	for _, segment := range c.segmenter.Write(data) {
		r.dispatch(c, segment)
	}
}

// dispatch assigns the next sequence number and hands the segment to an
// upload goroutine. Must be called with c.mu held so numbering follows
// capture order.
func (r *SessionRecorder) dispatch(c *capture, pcm []byte) {
	seq := c.session.NextSequence()
	c.session.inflight.Add(1)
	go r.deliver(c, seq, pcm)
}

func (r *SessionRecorder) deliver(c *capture, seq int, pcm []byte) {
	defer c.session.inflight.Done()

	logger := c.logger.With().Int("chunk_number", seq).Logger()

	chunk, err := r.buildChunk(c.session.ID, seq, pcm)
	if err != nil {
		r.recordFailure(c, logger, &ChunkUploadError{SessionID: c.session.ID, Sequence: seq, Err: err})
		return
	}
	if chunk.Silent {
		c.session.markSilent()
		logger.Debug().Msg("Chunk is below the silence threshold")
	}
	c.metrics.RecordChunkEmitted(len(chunk.Payload), chunk.Silent)

	select {
	case c.sem <- struct{}{}:
	case <-c.uploadCtx.Done():
		r.recordFailure(c, logger, &ChunkUploadError{SessionID: c.session.ID, Sequence: seq, Err: c.uploadCtx.Err()})
		return
	}
	defer func() { <-c.sem }()

	start := time.Now()
	_, attempts, uploadErr := r.uploader.upload(c.uploadCtx, chunk)
	c.metrics.RecordChunkUpload(uploadErr == nil, attempts, time.Since(start))
	if uploadErr != nil {
		r.recordFailure(c, logger, uploadErr)
		return
	}

	c.session.markSent()
	logger.Debug().
		Int("bytes", len(chunk.Payload)).
		Int("attempts", attempts).
		Dur("latency", time.Since(start)).
		Msg("Chunk delivered")
}

func (r *SessionRecorder) buildChunk(sessionID string, seq int, pcm []byte) (*Chunk, error) {
	payload, err := audio.Encode(r.cfg.Format, pcm, r.cfg.SampleRate, r.cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("encoding chunk: %w", err)
	}

	bytesPerSecond := r.cfg.captureConfig().BytesPerSecond()
	return &Chunk{
		SessionID: sessionID,
		Sequence:  seq,
		Payload:   payload,
		MimeType:  r.cfg.Format.MimeType(),
		Filename:  ChunkFilename(seq, r.cfg.Format.Extension()),
		Duration:  time.Duration(float64(len(pcm)) / float64(bytesPerSecond) * float64(time.Second)),
		Silent:    audio.IsSilentPCM(pcm, r.cfg.SilenceThreshold),
	}, nil
}

func (r *SessionRecorder) recordFailure(c *capture, logger zerolog.Logger, err *ChunkUploadError) {
	c.session.markFailed(err)
	c.metrics.RecordError("chunk_upload", "recorder")
	logger.Warn().
		Err(err.Err).
		Int("attempts", err.Attempts).
		Msg("Chunk dropped")
}
