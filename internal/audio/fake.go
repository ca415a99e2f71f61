package audio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
)

const fakeFrameSize = 1024

// FakeContext replays a fixed PCM buffer as if it came from a microphone.
// Used for WAV replay from the CLI and for tests.
type FakeContext struct {
	pcm      []byte
	format   CaptureConfig
	realtime bool

	// OpenErr, when set, is returned by NewCapture.
	OpenErr error
	// StartErr, when set, is returned by Start on the capture device.
	StartErr error

	done     chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	opened int
	closed int
}

// NewFakeContext replays pcm. In realtime mode frames are paced at the
// configured sample rate; otherwise they are delivered as fast as possible.
func NewFakeContext(pcm []byte, format CaptureConfig, realtime bool) *FakeContext {
	return &FakeContext{
		pcm:      pcm,
		format:   format,
		realtime: realtime,
		done:     make(chan struct{}),
	}
}

// NewFakeContextFromWAV decodes a 16-bit PCM WAV file for replay
func NewFakeContextFromWAV(path string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%s: unsupported bit depth %d, want 16", path, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s)
	}

	format := CaptureConfig{SampleRate: dec.SampleRate, Channels: uint32(dec.NumChans)}
	return NewFakeContext(SamplesToPCM(samples), format, realtime), nil
}

// Format returns the sample rate and channel count of the replayed audio
func (f *FakeContext) Format() CaptureConfig { return f.format }

// Done is closed once the whole buffer has been delivered
func (f *FakeContext) Done() <-chan struct{} { return f.done }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake replay"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	if config.SampleRate == 0 {
		config = f.format
	}
	f.mu.Lock()
	f.opened++
	f.mu.Unlock()
	return &FakeCapture{ctx: f, config: config}, nil
}

// Released reports whether every capture device opened on the context was closed
func (f *FakeContext) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened == f.closed
}

func (f *FakeContext) markDone() {
	f.doneOnce.Do(func() { close(f.done) })
}

type FakeCapture struct {
	ctx    *FakeContext
	config CaptureConfig

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	if f.ctx.StartErr != nil {
		return f.ctx.StartErr
	}

	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	bytesPerFrame := int(f.config.Channels) * BytesPerSample
	if bytesPerFrame == 0 {
		bytesPerFrame = BytesPerSample
	}
	chunkBytes := fakeFrameSize * bytesPerFrame

	var interval time.Duration
	if f.ctx.realtime && f.config.SampleRate > 0 {
		interval = time.Duration(fakeFrameSize) * time.Second / time.Duration(f.config.SampleRate)
	}

	pcm := f.ctx.pcm
	go func() {
		defer close(f.feedDone)
		for pos := 0; pos < len(pcm); {
			select {
			case <-f.stopCh:
				return
			default:
			}

			end := min(pos+chunkBytes, len(pcm))
			f.mu.Lock()
			cb := f.cb
			f.mu.Unlock()
			if cb != nil {
				cb(pcm[pos:end], uint32((end-pos)/bytesPerFrame))
			}
			pos = end

			if interval > 0 {
				select {
				case <-f.stopCh:
					return
				case <-time.After(interval):
				}
			}
		}
		f.ctx.markDone()
	}()

	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.ctx.mu.Lock()
	f.ctx.closed++
	f.ctx.mu.Unlock()
}
