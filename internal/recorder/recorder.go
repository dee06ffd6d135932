// ABOUTME: Microphone capture source backed by miniaudio
// ABOUTME: Delivers interleaved float32 buffers from the default or named device
package recorder

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/capture"
)

// Recorder captures audio from a hardware input device. It implements
// capture.Source, delivering interleaved 32-bit float buffers.
type Recorder struct {
	format     audio.Format
	deviceName string

	mu         sync.Mutex
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	running    bool
	stopping   bool
	onFinished func()
}

// New creates a recorder for the named input device. An empty name selects
// the system default. Zero format fields fall back to 48kHz stereo.
func New(deviceName string, format audio.Format) *Recorder {
	if format.SampleRate <= 0 {
		format.SampleRate = 48000
	}
	if format.Channels <= 0 {
		format.Channels = 2
	}
	format.BitDepth = 32
	format.Float = true
	format.Interleaved = true
	return &Recorder{format: format, deviceName: deviceName}
}

// Format returns the delivery format.
func (r *Recorder) Format() audio.Format {
	return r.format
}

// Devices lists the names of available capture devices.
func Devices() ([]string, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("context init failed: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("device enumeration failed: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, nil
}

// Start opens the device and begins delivering buffers.
func (r *Recorder) Start(cb capture.Callbacks) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return capture.ErrInvalidState
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("context init failed: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(r.format.Channels)
	deviceConfig.SampleRate = uint32(r.format.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	if r.deviceName != "" {
		pointer, err := findDevice(ctx, r.deviceName)
		if err != nil {
			_ = ctx.Uninit()
			ctx.Free()
			return err
		}
		deviceConfig.Capture.DeviceID = pointer
	}

	bytesPerFrame := r.format.BytesPerFrame()
	onReceiveFrames := func(pOutput, pInput []byte, frameCount uint32) {
		if frameCount == 0 || cb.OnBuffer == nil {
			return
		}
		buf, err := audio.NewBuffer(r.format, int(frameCount))
		if err != nil {
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		copy(buf.Data, pInput[:int(frameCount)*bytesPerFrame])
		buf.CapturedAt = time.Now()
		cb.OnBuffer(buf)
	}

	// Stop fires on device loss as well as on our own Stop call; only the
	// former is an error.
	onStopDevice := func() {
		r.mu.Lock()
		stopping := r.stopping
		r.mu.Unlock()
		if stopping {
			return
		}
		log.Printf("recorder: capture device stopped unexpectedly")
		if cb.OnError != nil {
			cb.OnError(capture.ErrDeviceDisconnected)
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onReceiveFrames,
		Stop: onStopDevice,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("device init failed: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("device start failed: %w", err)
	}

	r.ctx = ctx
	r.device = device
	r.running = true
	r.stopping = false
	r.onFinished = cb.OnFinished
	log.Printf("recorder: capturing %s from %q", r.format, r.deviceLabel())
	return nil
}

// Stop halts capture and releases the device.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.stopping = true
	device := r.device
	ctx := r.ctx
	onFinished := r.onFinished
	r.device = nil
	r.ctx = nil
	r.running = false
	r.mu.Unlock()

	if err := device.Stop(); err != nil {
		log.Printf("recorder: device stop: %v", err)
	}
	device.Uninit()
	_ = ctx.Uninit()
	ctx.Free()

	if onFinished != nil {
		onFinished()
	}
	return nil
}

func (r *Recorder) deviceLabel() string {
	if r.deviceName == "" {
		return "default"
	}
	return r.deviceName
}

// findDevice resolves a device name (case-insensitive substring match) to
// its ID pointer.
func findDevice(ctx *malgo.AllocatedContext, name string) (unsafe.Pointer, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("device enumeration failed: %w", err)
	}
	want := strings.ToLower(name)
	for i := range infos {
		if strings.Contains(strings.ToLower(infos[i].Name()), want) {
			return infos[i].ID.Pointer(), nil
		}
	}
	return nil, fmt.Errorf("capture device %q not found", name)
}
