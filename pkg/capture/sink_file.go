// ABOUTME: WAV file recording sink
// ABOUTME: Background writer fed from a bounded queue
package capture

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/audio/wavenc"
)

// FileSink records the stream to a WAV file. Disk writes run on a background
// goroutine behind a bounded queue so a slow disk backs up here, not in the
// capture path.
type FileSink struct {
	core sinkCore
	path string

	queue  *Queue
	writer *wavenc.FileWriter
	done   chan struct{}

	mu       sync.Mutex
	writeErr error
}

// NewFileSink creates a file sink targeting path. A missing .wav extension
// is appended on Configure.
func NewFileSink(path string) *FileSink {
	return &FileSink{core: newSinkCore(), path: path}
}

// ID returns the sink identity.
func (s *FileSink) ID() uuid.UUID { return s.core.ID() }

// Configure opens the WAV file and starts the writer goroutine. The file is
// always written as 16-bit interleaved PCM regardless of the stream format.
func (s *FileSink) Configure(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}
	if !s.core.markConfigured(format) {
		return fmt.Errorf("%w: sink already configured", ErrConfigureFailed)
	}

	fileFormat := audio.Format{
		SampleRate:  format.SampleRate,
		Channels:    format.Channels,
		BitDepth:    16,
		Interleaved: true,
		Float:       false,
	}
	writer, err := wavenc.NewFileWriter(s.path, fileFormat)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}

	s.writer = writer
	s.queue = NewQueue(DefaultQueueSize)
	s.done = make(chan struct{})
	stream := s.queue.Subscribe()
	go s.runWriter(stream)
	return nil
}

// Process queues a buffer for writing.
func (s *FileSink) Process(buf *audio.Buffer) error {
	if err := s.core.checkConfigured(); err != nil {
		return err
	}
	s.mu.Lock()
	werr := s.writeErr
	s.mu.Unlock()
	if werr != nil {
		return fmt.Errorf("%w: %v", ErrProcessFailed, werr)
	}
	s.queue.Enqueue(buf)
	return nil
}

// HandleError logs delivery failures.
func (s *FileSink) HandleError(err error) {
	log.Printf("file sink %s (%s): %v", s.core.ID(), s.path, err)
}

// Finish drains the queue, closes the file and finalizes the WAV header.
func (s *FileSink) Finish() error {
	if !s.core.markFinished() {
		return nil
	}
	if s.queue == nil {
		return nil
	}
	s.queue.Finish()
	<-s.done
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.writer.Path(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErr
}

// Path returns the resolved output path.
func (s *FileSink) Path() string {
	if s.writer != nil {
		return s.writer.Path()
	}
	return s.path
}

// Stats reports written buffer and frame counts.
func (s *FileSink) Stats() (buffers, frames int64) {
	if s.writer == nil {
		return 0, 0
	}
	return s.writer.Stats()
}

func (s *FileSink) runWriter(stream <-chan *audio.Buffer) {
	defer close(s.done)
	for buf := range stream {
		s.queue.Dequeue()
		converted, err := wavenc.ToInt16Interleaved(buf)
		if err == nil {
			err = s.writer.Write(converted)
		}
		if err != nil {
			s.mu.Lock()
			if s.writeErr == nil {
				s.writeErr = err
			}
			s.mu.Unlock()
			log.Printf("file sink %s: write failed: %v", s.core.ID(), err)
		}
	}
}
