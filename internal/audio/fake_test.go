package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFakeCapture_DeliversAllPCM(t *testing.T) {
	pcm := sinePCM(5000, 1)
	ctx := NewFakeContext(pcm, CaptureConfig{SampleRate: 16000, Channels: 1}, false)

	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewCapture failed: %v", err)
	}

	var mu sync.Mutex
	received := 0
	dev.SetCallback(func(data []byte, frameCount uint32) {
		mu.Lock()
		received += len(data)
		mu.Unlock()
	})

	if err := dev.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for replay to finish")
	}
	dev.Stop()
	dev.Close()

	mu.Lock()
	defer mu.Unlock()
	if received != len(pcm) {
		t.Errorf("Expected %d bytes delivered, got %d", len(pcm), received)
	}
	if !ctx.Released() {
		t.Error("Expected capture device to be released")
	}
}

func TestFakeCapture_StopHaltsCallbacks(t *testing.T) {
	pcm := sinePCM(16000*10, 1)
	ctx := NewFakeContext(pcm, CaptureConfig{SampleRate: 16000, Channels: 1}, true)
	dev, _ := ctx.NewCapture(nil, CaptureConfig{})

	var mu sync.Mutex
	calls := 0
	dev.SetCallback(func(data []byte, frameCount uint32) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	dev.Start()
	time.Sleep(50 * time.Millisecond)
	dev.Stop()

	mu.Lock()
	after := calls
	mu.Unlock()
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != after {
		t.Errorf("Expected no callbacks after Stop, got %d more", calls-after)
	}
}

func TestFakeContext_OpenErr(t *testing.T) {
	ctx := NewFakeContext(nil, CaptureConfig{SampleRate: 16000, Channels: 1}, false)
	ctx.OpenErr = errors.New("permission denied")

	if _, err := ctx.NewCapture(nil, CaptureConfig{}); err == nil {
		t.Error("Expected error from NewCapture")
	}
}

func TestNewFakeContextFromWAV(t *testing.T) {
	data, err := EncodeWAV(sinePCM(800, 2), 8000, 2)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "input.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	ctx, err := NewFakeContextFromWAV(path, false)
	if err != nil {
		t.Fatalf("NewFakeContextFromWAV failed: %v", err)
	}

	format := ctx.Format()
	if format.SampleRate != 8000 || format.Channels != 2 {
		t.Errorf("Expected 8000 Hz stereo, got %d Hz %d channels", format.SampleRate, format.Channels)
	}
	if len(ctx.pcm) != 800*2*2 {
		t.Errorf("Expected %d PCM bytes, got %d", 800*2*2, len(ctx.pcm))
	}
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContext(nil, CaptureConfig{}, false)

	dev, err := FindDevice(ctx, "")
	if err != nil || dev != nil {
		t.Errorf("Expected nil device for empty name, got %v, %v", dev, err)
	}

	dev, err = FindDevice(ctx, "REPLAY")
	if err != nil {
		t.Fatalf("Expected match, got %v", err)
	}
	if dev.ID != "fake" {
		t.Errorf("Expected device 'fake', got '%s'", dev.ID)
	}

	if _, err := FindDevice(ctx, "usb mic"); err == nil {
		t.Error("Expected error for unknown device")
	}
}
