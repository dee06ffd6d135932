// ABOUTME: Synthetic sine wave capture source
// ABOUTME: Generates a steady tone for tests and examples
package capture

import (
	"math"
	"sync"
	"time"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// TestTone is a capture source generating a sine wave. It delivers buffers
// of blockFrames frames on a ticker paced to real time.
type TestTone struct {
	format      audio.Format
	frequency   float64
	blockFrames int

	mu          sync.Mutex
	running     bool
	stop        chan struct{}
	done        chan struct{}
	sampleIndex uint64
}

// NewTestTone creates a tone source. Zero values fall back to 440Hz and
// 1024-frame blocks in the default capture format.
func NewTestTone(format audio.Format, frequency float64, blockFrames int) *TestTone {
	if format == (audio.Format{}) {
		format = audio.DefaultFormat()
	}
	if frequency <= 0 {
		frequency = 440.0 // A4
	}
	if blockFrames <= 0 {
		blockFrames = 1024
	}
	return &TestTone{format: format, frequency: frequency, blockFrames: blockFrames}
}

// Format returns the tone's delivery format.
func (t *TestTone) Format() audio.Format {
	return t.format
}

// Start begins tone delivery.
func (t *TestTone) Start(cb Callbacks) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return ErrInvalidState
	}
	t.running = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	interval := time.Duration(float64(t.blockFrames) / t.format.SampleRate * float64(time.Second))
	go t.run(cb, interval)
	return nil
}

func (t *TestTone) run(cb Callbacks, interval time.Duration) {
	defer close(t.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			if cb.OnFinished != nil {
				cb.OnFinished()
			}
			return
		case <-ticker.C:
			buf, err := t.generate()
			if err != nil {
				if cb.OnError != nil {
					cb.OnError(err)
				}
				continue
			}
			if cb.OnBuffer != nil {
				cb.OnBuffer(buf)
			}
		}
	}
}

// generate produces one block at 50% amplitude.
func (t *TestTone) generate() (*audio.Buffer, error) {
	buf, err := audio.NewBuffer(t.format, t.blockFrames)
	if err != nil {
		return nil, err
	}

	start := t.sampleIndex
	for f := 0; f < t.blockFrames; f++ {
		at := float64(start+uint64(f)) / t.format.SampleRate
		v := math.Sin(2*math.Pi*t.frequency*at) * 0.5
		for c := 0; c < t.format.Channels; c++ {
			buf.SetSample(c, f, v)
		}
	}
	t.sampleIndex += uint64(t.blockFrames)
	return buf, nil
}

// Stop ends delivery and waits for the generator goroutine to exit.
func (t *TestTone) Stop() error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = false
	close(t.stop)
	done := t.done
	t.mu.Unlock()

	<-done
	return nil
}
