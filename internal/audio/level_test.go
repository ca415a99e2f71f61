package audio

import (
	"math"
	"testing"
)

func TestCalculateRMS(t *testing.T) {
	tests := []struct {
		name     string
		samples  []int16
		expected float64
	}{
		{"empty", nil, 0},
		{"silence", []int16{0, 0, 0, 0}, 0},
		{"constant", []int16{100, 100, 100, 100}, 100},
		{"alternating", []int16{300, -300, 300, -300}, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rms := CalculateRMS(tt.samples)
			if math.Abs(rms-tt.expected) > 0.001 {
				t.Errorf("Expected RMS %.3f, got %.3f", tt.expected, rms)
			}
		})
	}
}

func TestDetectSilence(t *testing.T) {
	quiet := []int16{10, -10, 5, -5}
	loud := []int16{5000, -5000, 5000, -5000}

	if !DetectSilence(quiet, 200) {
		t.Error("Expected quiet samples to be silence")
	}
	if DetectSilence(loud, 200) {
		t.Error("Expected loud samples not to be silence")
	}
}

func TestPCMRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	got := PCMToSamples(SamplesToPCM(samples))

	if len(got) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestPCMToSamples_OddLength(t *testing.T) {
	if n := len(PCMToSamples([]byte{1, 0, 2})); n != 1 {
		t.Errorf("Expected trailing byte to be ignored, got %d samples", n)
	}
}

func TestIsSilentPCM(t *testing.T) {
	pcm := SamplesToPCM(make([]int16, 100))

	if !IsSilentPCM(pcm, 200) {
		t.Error("Expected zero PCM to be silent")
	}
	if IsSilentPCM(pcm, 0) {
		t.Error("Expected detection to be disabled with zero threshold")
	}
}
