// ABOUTME: Local speaker playback sink
// ABOUTME: Feeds captured buffers into a playback engine after a warmup window
package capture

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/audio/output"
)

// DefaultStartDelay discards the first moments of capture before playback
// begins, letting the device settle instead of playing a startup glitch.
const DefaultStartDelay = 100 * time.Millisecond

// PlaybackSink plays the capture stream on the local output device.
// Buffers arriving inside the start-delay window are silently discarded.
type PlaybackSink struct {
	core       sinkCore
	engine     output.Engine
	startDelay time.Duration
	startedAt  time.Time
}

// NewPlaybackSink creates a playback sink around the given engine
// (NewOto-backed if engine is nil) with the default start delay.
func NewPlaybackSink(engine output.Engine) *PlaybackSink {
	if engine == nil {
		engine = output.NewOto()
	}
	return &PlaybackSink{
		core:       newSinkCore(),
		engine:     engine,
		startDelay: DefaultStartDelay,
	}
}

// SetStartDelay overrides the warmup window. Only meaningful before
// Configure.
func (s *PlaybackSink) SetStartDelay(d time.Duration) {
	if d >= 0 {
		s.startDelay = d
	}
}

// ID returns the sink identity.
func (s *PlaybackSink) ID() uuid.UUID { return s.core.ID() }

// Configure opens the playback device for the stream format.
func (s *PlaybackSink) Configure(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}
	if !s.core.markConfigured(format) {
		return fmt.Errorf("%w: sink already configured", ErrConfigureFailed)
	}
	if err := s.engine.Open(format); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}
	s.startedAt = time.Now()
	return nil
}

// Process schedules the buffer for playback.
func (s *PlaybackSink) Process(buf *audio.Buffer) error {
	if err := s.core.checkConfigured(); err != nil {
		return err
	}
	if time.Since(s.startedAt) < s.startDelay {
		return nil
	}
	if err := s.engine.Schedule(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}
	return nil
}

// HandleError logs delivery failures.
func (s *PlaybackSink) HandleError(err error) {
	log.Printf("playback sink %s: %v", s.core.ID(), err)
}

// Finish closes the playback device.
func (s *PlaybackSink) Finish() error {
	if !s.core.markFinished() {
		return nil
	}
	if err := s.engine.Close(); err != nil {
		return fmt.Errorf("playback close: %w", err)
	}
	return nil
}
