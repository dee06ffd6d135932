// ABOUTME: Capture session lifecycle state machine
// ABOUTME: Owns the source, format negotiation, queue and multiplexer
package capture

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/audio/convert"
)

// State is the capture session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StatePaused
	StateStopping
	StateStopped
	StateError
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config controls a capture session.
type Config struct {
	// Format is the desired capture format. Zero value means "use the
	// source format as-is".
	Format audio.Format

	// Preferences steer format negotiation between the source format and
	// the requested one.
	Preferences audio.Preferences

	// QueueSize bounds the session buffer queue (DefaultQueueSize if not
	// positive).
	QueueSize int
}

// SessionStats is a point-in-time snapshot of a session.
type SessionStats struct {
	State           State
	Format          audio.Format
	SinkCount       int
	BuffersCaptured uint64
	FramesCaptured  uint64
	StartedAt       time.Time
	Queue           QueueStats
}

// StateObserver receives state transitions.
type StateObserver func(old, new State)

// ErrorObserver receives capture pipeline errors.
type ErrorObserver func(err error)

// Session drives one capture run: it negotiates a format with the source,
// pumps captured buffers through a bounded queue and fans them out to the
// registered sinks. A stopped or failed session can be started again.
type Session struct {
	id     uuid.UUID
	source Source
	config Config

	mu     sync.Mutex
	state  State
	format audio.Format
	mux    *Multiplexer
	queue  *Queue
	sinks  []Sink // registration order, survives restarts
	pump   chan struct{}

	buffersCaptured uint64
	framesCaptured  uint64
	startedAt       time.Time
	lastErr         error

	obsMu    sync.Mutex
	stateObs map[uuid.UUID]StateObserver
	errorObs map[uuid.UUID]ErrorObserver
}

// NewSession creates an idle session around the given source.
func NewSession(source Source, config Config) *Session {
	return &Session{
		id:       uuid.New(),
		source:   source,
		config:   config,
		state:    StateIdle,
		stateObs: make(map[uuid.UUID]StateObserver),
		errorObs: make(map[uuid.UUID]ErrorObserver),
	}
}

// ID returns the session identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Format returns the negotiated session format. Zero before the first Start.
func (s *Session) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Err returns the error that put the session into StateError, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Start brings the session from idle, stopped or error into active capture.
// Any other state fails with ErrInvalidState and leaves the session
// untouched.
func (s *Session) Start() error {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateStopped, StateError:
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, st)
	}

	old := s.state
	s.state = StateStarting
	s.lastErr = nil
	s.mu.Unlock()
	s.notifyState(old, StateStarting)

	format, err := s.negotiate()
	if err != nil {
		s.fail(fmt.Errorf("format negotiation: %w", err))
		return err
	}

	s.mu.Lock()
	s.format = format
	s.queue = NewQueue(s.config.QueueSize)
	s.mux = NewMultiplexer(func(_ Sink, err error) { s.notifyError(err) })
	s.buffersCaptured = 0
	s.framesCaptured = 0
	s.startedAt = time.Now()
	mux := s.mux
	queue := s.queue
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.Unlock()

	// Sinks registered before Start are configured with the negotiated
	// format now. One failing sink does not abort the session.
	for _, sink := range sinks {
		if err := sink.Configure(format); err != nil {
			wrapped := fmt.Errorf("%w: sink %s: %v", ErrConfigureFailed, sink.ID(), err)
			log.Printf("session %s: %v", s.id, wrapped)
			s.notifyError(wrapped)
			s.dropSink(sink.ID())
			continue
		}
		if err := mux.Add(sink); err != nil {
			log.Printf("session %s: %v", s.id, err)
		}
	}

	stream := queue.Subscribe()
	pump := make(chan struct{})
	s.mu.Lock()
	s.pump = pump
	s.mu.Unlock()
	go s.runPump(queue, mux, stream, pump, format)

	err = s.source.Start(Callbacks{
		OnBuffer:   func(buf *audio.Buffer) { s.onBuffer(buf) },
		OnError:    func(err error) { s.onSourceError(err) },
		OnFinished: func() {},
	})
	if err != nil {
		s.mu.Lock()
		s.mux = nil
		s.mu.Unlock()
		mux.Close()
		queue.Finish()
		<-pump
		wrapped := fmt.Errorf("source start: %w", err)
		s.fail(wrapped)
		return wrapped
	}

	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()
	s.notifyState(StateStarting, StateActive)
	log.Printf("session %s: capture started (%s)", s.id, format)
	return nil
}

// Stop ends capture from active or paused. Sinks are finished exactly once,
// in registration order, after all queued buffers have drained; the output
// list is then cleared, so a restarted session begins with no outputs.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case StateActive, StatePaused:
	default:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidState, st)
	}
	old := s.state
	s.state = StateStopping
	mux := s.mux
	queue := s.queue
	pump := s.pump
	s.mux = nil
	s.queue = nil
	s.pump = nil
	s.mu.Unlock()
	s.notifyState(old, StateStopping)

	if err := s.source.Stop(); err != nil {
		log.Printf("session %s: source stop: %v", s.id, err)
	}

	// Drain: flush the queue into the pump, wait for the pump, then let
	// every sink lane run dry before finishing sinks in order.
	queue.Finish()
	<-pump
	sinks := mux.Close()
	for _, sink := range sinks {
		if err := sink.Finish(); err != nil {
			log.Printf("session %s: sink %s finish: %v", s.id, sink.ID(), err)
			s.notifyError(err)
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	s.sinks = nil
	s.mu.Unlock()
	s.notifyState(StateStopping, StateStopped)
	log.Printf("session %s: capture stopped", s.id)
	return nil
}

// Pause suspends delivery without stopping the source. Buffers captured
// while paused are discarded.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StateActive {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidState, st)
	}
	s.state = StatePaused
	s.mux.SetPaused(true)
	s.mu.Unlock()
	s.notifyState(StateActive, StatePaused)
	return nil
}

// Resume reverses Pause.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != StatePaused {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidState, st)
	}
	s.state = StateActive
	s.mux.SetPaused(false)
	s.mu.Unlock()
	s.notifyState(StatePaused, StateActive)
	return nil
}

// AddOutput configures the sink with the session format and registers it.
// On a not-yet-started session the sink is configured on Start instead.
func (s *Session) AddOutput(sink Sink) error {
	s.mu.Lock()
	format := s.format
	active := s.state == StateActive || s.state == StatePaused
	s.mu.Unlock()

	if active {
		if err := sink.Configure(format); err != nil {
			return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sinks {
		if existing.ID() == sink.ID() {
			return fmt.Errorf("sink %s already added", sink.ID())
		}
	}
	s.sinks = append(s.sinks, sink)
	if s.mux != nil {
		if err := s.mux.Add(sink); err != nil {
			s.sinks = s.sinks[:len(s.sinks)-1]
			return err
		}
	}
	return nil
}

// RemoveOutput unregisters and finishes the sink.
func (s *Session) RemoveOutput(id uuid.UUID) error {
	s.mu.Lock()
	var sink Sink
	for i, existing := range s.sinks {
		if existing.ID() == id {
			sink = existing
			s.sinks = append(s.sinks[:i], s.sinks[i+1:]...)
			break
		}
	}
	mux := s.mux
	s.mu.Unlock()

	if sink == nil {
		return fmt.Errorf("sink %s not found", id)
	}
	if mux != nil {
		mux.Remove(id)
	}
	if err := sink.Finish(); err != nil {
		return fmt.Errorf("sink %s finish: %w", id, err)
	}
	return nil
}

// Outputs returns the registered sinks in registration order.
func (s *Session) Outputs() []Sink {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sink, len(s.sinks))
	copy(out, s.sinks)
	return out
}

// Stats returns a snapshot of the session.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := SessionStats{
		State:           s.state,
		Format:          s.format,
		SinkCount:       len(s.sinks),
		BuffersCaptured: s.buffersCaptured,
		FramesCaptured:  s.framesCaptured,
		StartedAt:       s.startedAt,
	}
	if s.queue != nil {
		stats.Queue = s.queue.Stats()
	}
	return stats
}

// ObserveState registers a state transition observer and returns a token
// for RemoveObserver.
func (s *Session) ObserveState(obs StateObserver) uuid.UUID {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := uuid.New()
	s.stateObs[id] = obs
	return id
}

// ObserveErrors registers an error observer and returns a token for
// RemoveObserver.
func (s *Session) ObserveErrors(obs ErrorObserver) uuid.UUID {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := uuid.New()
	s.errorObs[id] = obs
	return id
}

// RemoveObserver drops a previously registered observer.
func (s *Session) RemoveObserver(id uuid.UUID) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	delete(s.stateObs, id)
	delete(s.errorObs, id)
}

func (s *Session) dropSink(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sink := range s.sinks {
		if sink.ID() == id {
			s.sinks = append(s.sinks[:i], s.sinks[i+1:]...)
			return
		}
	}
}

func (s *Session) negotiate() (audio.Format, error) {
	src := s.source.Format()
	if s.config.Format == (audio.Format{}) {
		if err := src.Validate(); err != nil {
			return audio.Format{}, err
		}
		return src, nil
	}

	format := audio.Negotiate(src, s.config.Format, s.config.Preferences)
	if err := format.Validate(); err != nil {
		return audio.Format{}, err
	}
	if err := audio.CheckConvertible(src, format); err != nil {
		return audio.Format{}, err
	}
	return format, nil
}

func (s *Session) onBuffer(buf *audio.Buffer) {
	s.mu.Lock()
	queue := s.queue
	if queue == nil {
		s.mu.Unlock()
		return
	}
	s.buffersCaptured++
	s.framesCaptured += uint64(buf.Frames)
	s.mu.Unlock()
	queue.Enqueue(buf)
}

func (s *Session) onSourceError(err error) {
	log.Printf("session %s: source error: %v", s.id, err)
	s.notifyError(err)
}

// runPump moves buffers from the queue stream into the multiplexer until
// the stream closes, converting to the session format where the source
// delivers something else.
func (s *Session) runPump(queue *Queue, mux *Multiplexer, stream <-chan *audio.Buffer, done chan struct{}, format audio.Format) {
	defer close(done)
	for buf := range stream {
		// Keep the FIFO depth in step with the mirrored stream.
		queue.Dequeue()
		if !buf.Format.Equal(format) {
			converted, err := convert.Convert(buf, format)
			if err != nil {
				s.notifyError(fmt.Errorf("%w: %v", ErrProcessFailed, err))
				continue
			}
			buf = converted
		}
		mux.Dispatch(buf)
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	old := s.state
	s.state = StateError
	s.lastErr = err
	s.mu.Unlock()
	s.notifyState(old, StateError)
	s.notifyError(err)
	log.Printf("session %s: entered error state: %v", s.id, err)
}

// notifyState runs observers outside the session lock.
func (s *Session) notifyState(old, new State) {
	s.obsMu.Lock()
	obs := make([]StateObserver, 0, len(s.stateObs))
	for _, o := range s.stateObs {
		obs = append(obs, o)
	}
	s.obsMu.Unlock()
	for _, o := range obs {
		o(old, new)
	}
}

func (s *Session) notifyError(err error) {
	s.obsMu.Lock()
	obs := make([]ErrorObserver, 0, len(s.errorObs))
	for _, o := range s.errorObs {
		obs = append(obs, o)
	}
	s.obsMu.Unlock()
	for _, o := range obs {
		o(err)
	}
}
