package audio

import (
	"sync"
)

// SegmentBuffer accumulates PCM bytes and cuts them into fixed-size segments
type SegmentBuffer struct {
	buffer []byte
	size   int
	mu     sync.Mutex
}

// NewSegmentBuffer creates a buffer that emits segments of exactly size bytes.
// size is rounded down to a whole number of frames of frameBytes and is never
// smaller than one frame; a non-positive frameBytes counts as one byte.
func NewSegmentBuffer(size, frameBytes int) *SegmentBuffer {
	if frameBytes <= 0 {
		frameBytes = 1
	}
	size -= size % frameBytes
	if size <= 0 {
		size = frameBytes
	}
	return &SegmentBuffer{
		buffer: make([]byte, 0, size),
		size:   size,
	}
}

// Write appends data and returns every segment completed by it, in order.
// Returned segments are owned by the caller.
func (sb *SegmentBuffer) Write(data []byte) [][]byte {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	var segments [][]byte
	for len(data) > 0 {
		n := min(sb.size-len(sb.buffer), len(data))
		sb.buffer = append(sb.buffer, data[:n]...)
		data = data[n:]

		if len(sb.buffer) == sb.size {
			segments = append(segments, sb.buffer)
			sb.buffer = make([]byte, 0, sb.size)
		}
	}
	return segments
}

// Flush returns the partial segment, or nil if nothing is buffered
func (sb *SegmentBuffer) Flush() []byte {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if len(sb.buffer) == 0 {
		return nil
	}
	out := sb.buffer
	sb.buffer = make([]byte, 0, sb.size)
	return out
}

// Buffered returns the number of bytes waiting for the next segment boundary
func (sb *SegmentBuffer) Buffered() int {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return len(sb.buffer)
}

// SegmentSize returns the size of a full segment in bytes
func (sb *SegmentBuffer) SegmentSize() int {
	return sb.size
}
