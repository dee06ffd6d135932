// ABOUTME: Capture source boundary interface
// ABOUTME: Contract for collaborators producing the live buffer stream
package capture

import "github.com/CaptureKit/capturekit-go/pkg/audio"

// Callbacks receives events from a running capture source. OnBuffer is
// invoked from the source's delivery context; the pipeline must not block
// it on consumer work.
type Callbacks struct {
	OnBuffer   func(buf *audio.Buffer)
	OnError    func(err error)
	OnFinished func()
}

// Source produces the live stream of audio buffers. Implementations wrap
// the physical capture mechanism (hardware device, loopback tap, synthetic
// generator).
type Source interface {
	// Format returns the format the source delivers buffers in.
	Format() audio.Format

	// Start begins delivery. The callbacks stay valid until Stop returns.
	Start(cb Callbacks) error

	// Stop ends delivery and triggers OnFinished.
	Stop() error
}
