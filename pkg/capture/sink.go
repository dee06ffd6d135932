// ABOUTME: Output sink interface and shared sink state
// ABOUTME: Lifecycle contract for all audio stream consumers
package capture

import (
	"sync"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// Sink consumes the audio buffer stream. Configure is called exactly once
// before any Process; Process before Configure fails with ErrNotConfigured.
// Buffers handed to Process may be shared with other sinks and must be
// treated as read-only; a sink needing a private copy clones first.
type Sink interface {
	ID() uuid.UUID
	Configure(format audio.Format) error
	Process(buf *audio.Buffer) error
	HandleError(err error)
	Finish() error
}

// sinkCore carries the identity and lifecycle state shared by all sinks.
type sinkCore struct {
	id uuid.UUID

	mu         sync.Mutex
	configured bool
	finished   bool
	format     audio.Format
}

func newSinkCore() sinkCore {
	return sinkCore{id: uuid.New()}
}

// ID returns the sink's unique identity.
func (c *sinkCore) ID() uuid.UUID {
	return c.id
}

// markConfigured records the sink format. Returns false if the sink was
// already configured or finished.
func (c *sinkCore) markConfigured(format audio.Format) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.configured || c.finished {
		return false
	}
	c.configured = true
	c.format = format
	return true
}

// checkConfigured guards Process calls.
func (c *sinkCore) checkConfigured() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configured || c.finished {
		return ErrNotConfigured
	}
	return nil
}

// markFinished flips the terminal state. Returns false if already finished.
func (c *sinkCore) markFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return false
	}
	c.finished = true
	return true
}

// Format returns the configured format.
func (c *sinkCore) Format() audio.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}
