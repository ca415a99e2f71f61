package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const (
	bitsPerSample  = 16
	flacBlockSize  = 4096
	wavAudioFormat = 1 // PCM
)

// Format is the container a chunk is encoded in before upload
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

// ParseFormat validates a configured chunk format
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatWAV, FormatFLAC:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported audio format %q", s)
}

// MimeType returns the Content-Type sent with an uploaded chunk
func (f Format) MimeType() string {
	switch f {
	case FormatFLAC:
		return "audio/flac"
	default:
		return "audio/wav"
	}
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Encode wraps 16-bit little-endian PCM in the given container
func Encode(format Format, pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("empty PCM data")
	}
	if channels <= 0 || len(pcm)%(channels*BytesPerSample) != 0 {
		return nil, fmt.Errorf("PCM length %d is not a whole number of %d-channel frames", len(pcm), channels)
	}

	switch format {
	case FormatWAV:
		return EncodeWAV(pcm, sampleRate, channels)
	case FormatFLAC:
		return EncodeFLAC(pcm, sampleRate, channels)
	}
	return nil, fmt.Errorf("unsupported audio format %q", format)
}

// EncodeWAV writes a complete RIFF/WAVE file
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	samples := PCMToSamples(pcm)

	out := &writeSeeker{}
	enc := wav.NewEncoder(out, sampleRate, bitsPerSample, channels, wavAudioFormat)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitsPerSample,
	}
	for i := range samples {
		buf.Data[i] = int(samples[i])
	}

	if err := enc.Write(buf); err != nil {
		enc.Close()
		return nil, fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wav: %w", err)
	}
	return out.Bytes(), nil
}

// EncodeFLAC writes a FLAC stream using verbatim subframes
func EncodeFLAC(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("flac: unsupported channel count %d", channels)
	}

	samples := PCMToSamples(pcm)
	nFrames := len(samples) / channels

	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: bitsPerSample,
		NSamples:      uint64(nFrames),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}

	layout := frame.ChannelsMono
	if channels == 2 {
		layout = frame.ChannelsLR
	}

	for start := 0; start < nFrames; start += flacBlockSize {
		end := min(start+flacBlockSize, nFrames)
		blockLen := end - start

		subframes := make([]*frame.Subframe, channels)
		for ch := 0; ch < channels; ch++ {
			chSamples := make([]int32, blockLen)
			for i := 0; i < blockLen; i++ {
				chSamples[i] = int32(samples[(start+i)*channels+ch])
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{
					Pred: frame.PredVerbatim,
				},
				Samples:  chSamples,
				NSamples: blockLen,
			}
		}

		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(blockLen),
				SampleRate:    uint32(sampleRate),
				Channels:      layout,
				BitsPerSample: bitsPerSample,
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		w.buf = append(w.buf, make([]byte, need-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

func (w *writeSeeker) Bytes() []byte {
	return w.buf
}
