// ABOUTME: In-memory ring buffer sink
// ABOUTME: Keeps the most recent raw audio bytes for later inspection
package capture

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// RingBufferSink keeps the most recent stream bytes in a fixed-size ring.
// When full, the oldest bytes are discarded to make room, so Read always
// returns the newest audio the ring has seen.
type RingBufferSink struct {
	core     sinkCore
	capacity int

	mu   sync.Mutex
	ring *ringbuffer.RingBuffer
}

// NewRingBufferSink creates a ring sink holding capacity bytes of raw
// buffer data.
func NewRingBufferSink(capacity int) *RingBufferSink {
	if capacity <= 0 {
		capacity = 1 << 20
	}
	return &RingBufferSink{core: newSinkCore(), capacity: capacity}
}

// ID returns the sink identity.
func (s *RingBufferSink) ID() uuid.UUID { return s.core.ID() }

// Configure allocates the ring.
func (s *RingBufferSink) Configure(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}
	if !s.core.markConfigured(format) {
		return fmt.Errorf("%w: sink already configured", ErrConfigureFailed)
	}
	s.mu.Lock()
	s.ring = ringbuffer.New(s.capacity)
	s.mu.Unlock()
	return nil
}

// Process appends the buffer's raw bytes, discarding the oldest bytes on
// overflow.
func (s *RingBufferSink) Process(buf *audio.Buffer) error {
	if err := s.core.checkConfigured(); err != nil {
		return err
	}
	data := buf.Data
	if len(data) > s.capacity {
		data = data[len(data)-s.capacity:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if free := s.ring.Free(); free < len(data) {
		discard := make([]byte, len(data)-free)
		if _, err := s.ring.Read(discard); err != nil {
			return fmt.Errorf("%w: %v", ErrProcessFailed, err)
		}
	}
	if _, err := s.ring.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}
	return nil
}

// HandleError logs delivery failures.
func (s *RingBufferSink) HandleError(err error) {
	log.Printf("ring sink %s: %v", s.core.ID(), err)
}

// Finish marks the sink terminal. Buffered bytes stay readable.
func (s *RingBufferSink) Finish() error {
	s.core.markFinished()
	return nil
}

// Read drains up to len(p) of the oldest retained bytes into p.
func (s *RingBufferSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil {
		return 0, ErrNotConfigured
	}
	if s.ring.Length() == 0 {
		return 0, nil
	}
	return s.ring.Read(p)
}

// Buffered returns the number of retained bytes.
func (s *RingBufferSink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ring == nil {
		return 0
	}
	return s.ring.Length()
}
