package audio

import (
	"encoding/binary"
	"math"
)

// PCMToSamples decodes signed 16-bit little-endian PCM. A trailing odd byte is ignored.
func PCMToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}

// SamplesToPCM encodes samples as signed 16-bit little-endian PCM
func SamplesToPCM(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// DetectSilence detects if audio samples represent silence
// Uses a simple energy threshold
func DetectSilence(samples []int16, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}

// IsSilentPCM reports whether a PCM segment is below threshold. A threshold
// of zero or less disables detection.
func IsSilentPCM(pcm []byte, threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	return DetectSilence(PCMToSamples(pcm), threshold)
}
