package recording

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexiqai/session-recorder/internal/observability"
)

// NewSessionID returns a client-generated id: UTC start time plus a random suffix
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405"), suffix)
}

// Session is one recording attempt. Sequence numbers are assigned in capture
// order; acknowledgments and failures arrive from upload goroutines in any order.
type Session struct {
	ID        string
	StartedAt time.Time

	mu       sync.Mutex
	nextSeq  int
	sent     int
	silent   int
	stopped  time.Time
	failures []*ChunkUploadError

	inflight sync.WaitGroup
	metrics  *observability.SessionMetrics
}

func newSession(id string, startedAt time.Time) *Session {
	return &Session{ID: id, StartedAt: startedAt, metrics: observability.NewSessionMetrics(id)}
}

// Metrics returns the session's metrics tracker
func (s *Session) Metrics() *observability.SessionMetrics {
	return s.metrics
}

// NextSequence assigns the next chunk sequence number. Numbers start at 0 and
// are never reused.
func (s *Session) NextSequence() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// ChunksEmitted is the number of sequence numbers handed out so far
func (s *Session) ChunksEmitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}

// ChunksSent is the number of chunks acknowledged by the backend
func (s *Session) ChunksSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// ChunksSilent is the number of emitted chunks below the silence threshold
func (s *Session) ChunksSilent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.silent
}

// Duration is the capture time, or the time so far if still recording
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.stopped.Sub(s.StartedAt)
}

// Failures returns the chunks that could not be delivered
func (s *Session) Failures() []*ChunkUploadError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ChunkUploadError, len(s.failures))
	copy(out, s.failures)
	return out
}

// MissingSequences returns the sorted sequence numbers that were never delivered
func (s *Session) MissingSequences() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	missing := make([]int, 0, len(s.failures))
	for _, f := range s.failures {
		missing = append(missing, f.Sequence)
	}
	sort.Ints(missing)
	return missing
}

// Drain waits until every dispatched chunk upload has succeeded or failed
func (s *Session) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) markSent() {
	s.mu.Lock()
	s.sent++
	s.mu.Unlock()
}

func (s *Session) markSilent() {
	s.mu.Lock()
	s.silent++
	s.mu.Unlock()
}

func (s *Session) markFailed(err *ChunkUploadError) {
	s.mu.Lock()
	s.failures = append(s.failures, err)
	s.mu.Unlock()
}

func (s *Session) markStopped(at time.Time) {
	s.mu.Lock()
	s.stopped = at
	s.mu.Unlock()
}

// Chunk is one encoded slice of a session, immutable once created
type Chunk struct {
	SessionID string
	Sequence  int
	Payload   []byte
	MimeType  string
	Filename  string
	Duration  time.Duration
	Silent    bool
}

// ChunkFilename names a chunk in the multipart body
func ChunkFilename(sequence int, ext string) string {
	return fmt.Sprintf("chunk-%d%s", sequence, ext)
}
