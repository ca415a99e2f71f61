package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_recorder_active_sessions",
		Help: "Number of recording sessions currently capturing",
	})

	sessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_sessions_total",
		Help: "Total number of recording sessions by outcome",
	}, []string{"outcome"}) // completed, failed

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_recorder_session_duration_seconds",
		Help:    "Wall-clock duration of recording sessions, capture through post-processing",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})

	// Chunk metrics
	chunksEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_recorder_chunks_emitted_total",
		Help: "Total number of chunks cut from the capture stream",
	})

	silentChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_recorder_silent_chunks_total",
		Help: "Chunks whose RMS level was below the silence threshold",
	})

	chunkBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_recorder_chunk_bytes_total",
		Help: "Total encoded chunk bytes handed to the uploader",
	})

	chunkUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_chunk_uploads_total",
		Help: "Total chunk uploads by final status",
	}, []string{"status"}) // success, error

	chunkUploadRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_recorder_chunk_upload_retries_total",
		Help: "Chunk upload attempts beyond the first",
	})

	chunkUploadLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_recorder_chunk_upload_latency_seconds",
		Help:    "Chunk upload latency including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	// Finalize and task metrics
	finalizeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_finalize_total",
		Help: "Total finish-recording requests by status",
	}, []string{"status"})

	taskPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_task_polls_total",
		Help: "Total task status polls by task kind and reported status",
	}, []string{"kind", "status"}) // kind: reassembly, transcription

	taskOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_task_outcomes_total",
		Help: "Terminal outcomes of awaited tasks",
	}, []string{"kind", "outcome"}) // success, failure, timeout, cancelled

	// Backend client metrics
	backendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_backend_requests_total",
		Help: "Total backend HTTP requests by operation and status",
	}, []string{"op", "status"})

	backendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "session_recorder_backend_latency_seconds",
		Help:    "Backend HTTP request latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"op"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_recorder_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_recorder_circuit_breaker_rejections_total",
		Help: "Requests rejected because the circuit was open",
	}, []string{"service"})
)

// SessionMetrics tracks metrics for a single recording session
type SessionMetrics struct {
	sessionID string
	startTime time.Time

	mu    sync.Mutex
	ended bool
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// SessionID returns the tracked session
func (m *SessionMetrics) SessionID() string {
	return m.sessionID
}

// RecordSessionStart records the start of capture
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
}

// RecordCaptureEnd records that capture stopped. Safe to call more than once.
func (m *SessionMetrics) RecordCaptureEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true
	activeSessions.Dec()
}

// RecordSessionOutcome records the terminal outcome of the session pipeline
func (m *SessionMetrics) RecordSessionOutcome(outcome string) {
	sessionsTotal.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordChunkEmitted records a chunk cut from the capture stream
func (m *SessionMetrics) RecordChunkEmitted(bytes int, silent bool) {
	chunksEmitted.Inc()
	chunkBytes.Add(float64(bytes))
	if silent {
		silentChunks.Inc()
	}
}

// RecordChunkUpload records the final result of one chunk upload
func (m *SessionMetrics) RecordChunkUpload(success bool, attempts int, latency time.Duration) {
	chunkUploadLatency.Observe(latency.Seconds())
	if attempts > 1 {
		chunkUploadRetries.Add(float64(attempts - 1))
	}
	chunkUploads.WithLabelValues(statusLabel(success)).Inc()
}

// RecordFinalize records a finish-recording call
func (m *SessionMetrics) RecordFinalize(success bool) {
	finalizeTotal.WithLabelValues(statusLabel(success)).Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error outside of a session
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordTaskPoll records one status poll of a backend task
func RecordTaskPoll(kind, status string) {
	taskPolls.WithLabelValues(kind, status).Inc()
}

// RecordTaskOutcome records how waiting on a backend task ended
func RecordTaskOutcome(kind, outcome string) {
	taskOutcomes.WithLabelValues(kind, outcome).Inc()
}

// RecordBackendRequest records one backend HTTP round trip
func RecordBackendRequest(op string, success bool, latency time.Duration) {
	backendRequests.WithLabelValues(op, statusLabel(success)).Inc()
	backendLatency.WithLabelValues(op).Observe(latency.Seconds())
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerRejections counts a request refused by an open circuit
func IncrementCircuitBreakerRejections(service string) {
	circuitBreakerRejections.WithLabelValues(service).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
