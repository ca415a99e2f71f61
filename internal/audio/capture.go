package audio

import (
	"fmt"
	"strings"
)

// BytesPerSample is fixed: capture is always signed 16-bit little-endian PCM.
const BytesPerSample = 2

// DataCallback receives interleaved PCM as delivered by the device. The slice
// is only valid for the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// BytesPerSecond returns the PCM byte rate for the configuration
func (c CaptureConfig) BytesPerSecond() int {
	return int(c.SampleRate) * int(c.Channels) * BytesPerSample
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates input devices and opens capture streams on them
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	// Stop halts capture. No callback runs after Stop returns.
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// FindDevice returns the first input device whose name contains name, case
// insensitively. An empty name selects the system default and returns nil.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	want := strings.ToLower(name)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no input device matching %q", name)
}
