// ABOUTME: Audio playback engine interface
// ABOUTME: Common contract for speaker output backends
package output

import "github.com/CaptureKit/capturekit-go/pkg/audio"

// Engine plays scheduled audio buffers on an output device.
type Engine interface {
	// Open initializes the device for the given stream format.
	Open(format audio.Format) error

	// Schedule queues a buffer for playback (blocks until accepted).
	Schedule(buf *audio.Buffer) error

	// Close releases device resources.
	Close() error
}
