package audio

import (
	"testing"
	"time"
)

func TestSegmentBuffer_Write(t *testing.T) {
	sb := NewSegmentBuffer(10, 2)

	segments := sb.Write([]byte{1, 2, 3, 4, 5, 6})
	if len(segments) != 0 {
		t.Errorf("Expected no segments, got %d", len(segments))
	}
	if sb.Buffered() != 6 {
		t.Errorf("Expected 6 buffered bytes, got %d", sb.Buffered())
	}

	segments = sb.Write([]byte{7, 8, 9, 10, 11, 12})
	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}
	if len(segments[0]) != 10 || segments[0][0] != 1 || segments[0][9] != 10 {
		t.Errorf("Segment has incorrect data: %v", segments[0])
	}
	if sb.Buffered() != 2 {
		t.Errorf("Expected 2 buffered bytes, got %d", sb.Buffered())
	}
}

func TestSegmentBuffer_WriteSpansSegments(t *testing.T) {
	sb := NewSegmentBuffer(4, 2)

	data := make([]byte, 13)
	for i := range data {
		data[i] = byte(i)
	}

	segments := sb.Write(data)
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg[0] != byte(i*4) {
			t.Errorf("Segment %d starts with %d, expected %d", i, seg[0], i*4)
		}
	}
	if sb.Buffered() != 1 {
		t.Errorf("Expected 1 buffered byte, got %d", sb.Buffered())
	}
}

func TestSegmentBuffer_SegmentsAreIndependent(t *testing.T) {
	sb := NewSegmentBuffer(2, 2)

	first := sb.Write([]byte{1, 2})
	second := sb.Write([]byte{3, 4})

	if first[0][0] != 1 || second[0][0] != 3 {
		t.Errorf("Expected segments to not share storage, got %v and %v", first[0], second[0])
	}
}

func TestSegmentBuffer_Flush(t *testing.T) {
	sb := NewSegmentBuffer(10, 2)

	if sb.Flush() != nil {
		t.Error("Expected nil flush on empty buffer")
	}

	sb.Write([]byte{1, 2, 3})
	out := sb.Flush()
	if len(out) != 3 {
		t.Errorf("Expected 3 flushed bytes, got %d", len(out))
	}
	if sb.Buffered() != 0 {
		t.Errorf("Expected empty buffer after flush, got %d", sb.Buffered())
	}
	if sb.Flush() != nil {
		t.Error("Expected second flush to return nil")
	}
}

func TestSegmentBuffer_FrameAlignment(t *testing.T) {
	sb := NewSegmentBuffer(11, 4)
	if sb.SegmentSize() != 8 {
		t.Errorf("Expected segment size rounded to 8, got %d", sb.SegmentSize())
	}
}

func TestSegmentBuffer_ZeroSize(t *testing.T) {
	tests := []struct {
		size, frameBytes, expected int
	}{
		{0, 0, 1},
		{0, 2, 2},
		{-4, 0, 1},
		{7, 0, 7},
	}

	for _, tt := range tests {
		sb := NewSegmentBuffer(tt.size, tt.frameBytes)
		if sb.SegmentSize() != tt.expected {
			t.Errorf("NewSegmentBuffer(%d, %d): expected segment size %d, got %d", tt.size, tt.frameBytes, tt.expected, sb.SegmentSize())
		}
	}

	done := make(chan [][]byte, 1)
	go func() {
		done <- NewSegmentBuffer(0, 0).Write([]byte{1, 2, 3, 4})
	}()

	select {
	case segments := <-done:
		if len(segments) != 4 {
			t.Errorf("Expected 4 one-byte segments, got %d", len(segments))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Write did not return for a zero-size buffer")
	}
}
