// ABOUTME: Callback delivery sink
// ABOUTME: Hands buffers to user code synchronously or on a goroutine
package capture

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// CallbackSink delivers each buffer to a user function. In synchronous mode
// the callback runs on the sink's delivery lane and its error fails the
// Process; in async mode it runs on its own goroutine and errors are only
// logged.
type CallbackSink struct {
	core  sinkCore
	fn    func(buf *audio.Buffer) error
	async bool
}

// NewCallbackSink creates a callback sink. fn must not be nil.
func NewCallbackSink(fn func(buf *audio.Buffer) error, async bool) *CallbackSink {
	return &CallbackSink{core: newSinkCore(), fn: fn, async: async}
}

// ID returns the sink identity.
func (s *CallbackSink) ID() uuid.UUID { return s.core.ID() }

// Configure validates the stream format.
func (s *CallbackSink) Configure(format audio.Format) error {
	if s.fn == nil {
		return fmt.Errorf("%w: nil callback", ErrConfigureFailed)
	}
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}
	if !s.core.markConfigured(format) {
		return fmt.Errorf("%w: sink already configured", ErrConfigureFailed)
	}
	return nil
}

// Process invokes the callback.
func (s *CallbackSink) Process(buf *audio.Buffer) error {
	if err := s.core.checkConfigured(); err != nil {
		return err
	}
	if s.async {
		go func() {
			if err := s.fn(buf); err != nil {
				log.Printf("callback sink %s: %v", s.core.ID(), err)
			}
		}()
		return nil
	}
	if err := s.fn(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}
	return nil
}

// HandleError logs delivery failures.
func (s *CallbackSink) HandleError(err error) {
	log.Printf("callback sink %s: %v", s.core.ID(), err)
}

// Finish marks the sink terminal. Buffers already handed to an async
// callback may still be in flight.
func (s *CallbackSink) Finish() error {
	s.core.markFinished()
	return nil
}
