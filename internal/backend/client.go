package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/session-recorder/internal/config"
	"github.com/lexiqai/session-recorder/internal/observability"
	"github.com/lexiqai/session-recorder/internal/resilience"
)

const (
	breakerName  = "backend"
	maxErrorBody = 4 << 10
)

// Client talks to the processing backend over its HTTP/JSON surface. Every
// request goes through a shared circuit breaker; retries are left to callers.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithCircuitBreaker replaces the default breaker
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client for the backend rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker(breakerName, 5, 30*time.Second),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		c.logger.Warn().
			Str("service", name).
			Str("state", state.String()).
			Msg("Circuit breaker state changed")
	})
	observability.UpdateCircuitBreakerState(c.breaker.Name(), int(c.breaker.GetState()))

	return c, nil
}

// NewClientFromConfig creates a client using the configured timeouts and breaker limits
func NewClientFromConfig(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	return NewClient(cfg.BackendURL, cfg.RequestTimeoutDuration(),
		WithLogger(logger),
		WithCircuitBreaker(resilience.NewCircuitBreaker(
			breakerName,
			cfg.CircuitBreakerMaxFailures,
			cfg.CircuitBreakerResetDuration(),
		)),
	)
}

// UploadChunk delivers one chunk. Session id and sequence number travel in the
// query string so the backend can order and deduplicate chunks.
func (c *Client) UploadChunk(ctx context.Context, sessionID string, chunkNumber int, filename, mimeType string, payload []byte) (*ChunkAck, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := createFilePart(mw, filename, mimeType)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(payload); err != nil {
		return nil, fmt.Errorf("writing chunk part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	query := url.Values{}
	query.Set("session_id", sessionID)
	query.Set("chunk_number", strconv.Itoa(chunkNumber))

	ack := &ChunkAck{}
	if err := c.do(ctx, "upload_chunk", http.MethodPost, "/upload-chunk", query, &body, mw.FormDataContentType(), ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// FinishRecording tells the backend no more chunks will arrive for the session
func (c *Client) FinishRecording(ctx context.Context, sessionID string) (*TaskHandle, error) {
	query := url.Values{}
	query.Set("session_id", sessionID)

	var handle TaskHandle
	if err := c.do(ctx, "finish_recording", http.MethodPost, "/finish-recording", query, nil, "", &handle); err != nil {
		return nil, err
	}
	return &handle, nil
}

// TaskStatus fetches the state of a reassembly task
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	if err := c.do(ctx, "task_status", http.MethodGet, "/task-status/"+url.PathEscape(taskID), nil, nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Summary fetches the summary text stored under key, as listed by /files
func (c *Client) Summary(ctx context.Context, key string) (*Summary, error) {
	query := url.Values{}
	query.Set("s3_key", key)

	var summary Summary
	if err := c.do(ctx, "summary", http.MethodGet, "/resumen/", query, nil, "", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// StartTranscription enqueues transcription of a stored audio file. fileKey is
// the file name within the backend's audio store, not the full key.
func (c *Client) StartTranscription(ctx context.Context, fileKey string, segmentDuration int) (*TaskHandle, error) {
	query := url.Values{}
	query.Set("segment_duration", strconv.Itoa(segmentDuration))

	var handle TaskHandle
	if err := c.do(ctx, "transcribe", http.MethodPost, "/transcribe/"+url.PathEscape(fileKey), query, nil, "", &handle); err != nil {
		return nil, err
	}
	return &handle, nil
}

// TranscriptionStatus fetches the state of a transcription task
func (c *Client) TranscriptionStatus(ctx context.Context, taskID string) (*TranscriptionStatus, error) {
	var status TranscriptionStatus
	if err := c.do(ctx, "transcription_status", http.MethodGet, "/transcription_status/"+url.PathEscape(taskID), nil, nil, "", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListFiles returns the backend artifact catalog
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	var resp FilesResponse
	if err := c.do(ctx, "list_files", http.MethodGet, "/files", nil, nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// UploadFile uploads a complete audio file in a single request. The body is
// streamed from r.
func (c *Client) UploadFile(ctx context.Context, filename, mimeType string, r io.Reader) (*UploadResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := createFilePart(mw, filename, mimeType)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var resp UploadResponse
	err := c.do(ctx, "upload", http.MethodPost, "/upload", nil, pr, mw.FormDataContentType(), &resp)
	pr.Close()
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Ping checks that the backend answers. It is used by readiness probes.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	if err := c.do(ctx, "ping", http.MethodGet, "/files", nil, nil, "", nil); err != nil {
		return false, err
	}
	return true, nil
}

// CircuitState exposes the breaker state for status reporting
func (c *Client) CircuitState() resilience.CircuitState {
	return c.breaker.GetState()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	requestID := observability.NewCorrelationID()
	start := time.Now()
	err := c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return fmt.Errorf("%s: building request: %w", op, err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "session-recorder/"+observability.Version)
		req.Header.Set("X-Request-ID", requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			return resilience.NewRetryableError(fmt.Errorf("%s: %w", op, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: reading response: %w", op, err)
		}
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decoding response: %w", op, err)
		}
		return nil
	}, countsAgainstBreaker)

	latency := time.Since(start)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		observability.IncrementCircuitBreakerRejections(c.breaker.Name())
		return fmt.Errorf("%s: %w", op, err)
	}
	observability.RecordBackendRequest(op, err == nil, latency)

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("request_id", requestID).
		Dur("latency", latency).
		Err(err).
		Msg("Backend request")

	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// createFilePart is multipart.Writer.CreateFormFile with a real Content-Type
// instead of application/octet-stream.
func createFilePart(mw *multipart.Writer, filename, mimeType string) (io.Writer, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	return part, nil
}
