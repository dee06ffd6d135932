// ABOUTME: Tests for the capture session state machine
// ABOUTME: Covers lifecycle transitions, sink management and buffer flow
package capture

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
)

// fakeSource delivers buffers on demand through the registered callbacks.
type fakeSource struct {
	format audio.Format

	mu      sync.Mutex
	cb      Callbacks
	started bool
	starts  int
	stops   int
}

func newFakeSource(format audio.Format) *fakeSource {
	return &fakeSource{format: format}
}

func (s *fakeSource) Format() audio.Format { return s.format }

func (s *fakeSource) Start(cb Callbacks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
	s.started = true
	s.starts++
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.stops++
	if s.cb.OnFinished != nil {
		s.cb.OnFinished()
	}
	return nil
}

func (s *fakeSource) deliver(buf *audio.Buffer) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb.OnBuffer != nil {
		cb.OnBuffer(buf)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func testFormat() audio.Format {
	return audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16, Interleaved: true}
}

func TestSessionLifecycle(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})

	if session.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", session.State())
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if session.State() != StateActive {
		t.Fatalf("state after Start = %s, want active", session.State())
	}
	if !session.Format().Equal(testFormat()) {
		t.Errorf("session format = %s, want %s", session.Format(), testFormat())
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if session.State() != StateStopped {
		t.Fatalf("state after Stop = %s, want stopped", session.State())
	}

	// A stopped session can be started again.
	if err := session.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestSessionInvalidTransitions(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})

	// Stop/pause/resume from idle all fail and leave the state alone.
	for _, op := range []func() error{session.Stop, session.Pause, session.Resume} {
		if err := op(); !errors.Is(err, ErrInvalidState) {
			t.Errorf("idle op error = %v, want ErrInvalidState", err)
		}
		if session.State() != StateIdle {
			t.Fatalf("state changed on invalid op: %s", session.State())
		}
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Double start fails and the session stays active.
	if err := session.Start(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double Start error = %v, want ErrInvalidState", err)
	}
	if session.State() != StateActive {
		t.Fatalf("state after double Start = %s, want active", session.State())
	}
	if got := sourceStarts(source); got != 1 {
		t.Errorf("source started %d times, want 1", got)
	}

	session.Stop()
}

func sourceStarts(s *fakeSource) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func TestSessionPauseResume(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})
	sink := newFakeSink(false)
	if err := session.AddOutput(sink); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := session.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if session.State() != StatePaused {
		t.Fatalf("state = %s, want paused", session.State())
	}
	if err := session.Pause(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double Pause error = %v, want ErrInvalidState", err)
	}

	source.deliver(makeTestBuffer(t, 1))
	time.Sleep(50 * time.Millisecond)

	if err := session.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	source.deliver(makeTestBuffer(t, 2))

	waitFor(t, func() bool {
		processed, _, _ := sink.snapshot()
		return len(processed) == 1
	}, "expected exactly the post-resume buffer to arrive")

	session.Stop()
	processed, _, _ := sink.snapshot()
	if len(processed) != 1 || processed[0].Frames != 2 {
		t.Errorf("paused buffer leaked through: %d processed", len(processed))
	}
}

func TestSessionBufferFlowAndStats(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})
	sink := newFakeSink(false)
	session.AddOutput(sink)

	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		source.deliver(makeTestBuffer(t, 8))
	}

	waitFor(t, func() bool {
		processed, _, _ := sink.snapshot()
		return len(processed) == 5
	}, "expected all delivered buffers to reach the sink")

	stats := session.Stats()
	if stats.BuffersCaptured != 5 {
		t.Errorf("BuffersCaptured = %d, want 5", stats.BuffersCaptured)
	}
	if stats.FramesCaptured != 40 {
		t.Errorf("FramesCaptured = %d, want 40", stats.FramesCaptured)
	}

	session.Stop()
}

func TestSessionStopFinishesSinksOnceInOrder(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})

	sinks := []*fakeSink{newFakeSink(false), newFakeSink(false), newFakeSink(false)}
	for _, s := range sinks {
		if err := session.AddOutput(s); err != nil {
			t.Fatalf("AddOutput: %v", err)
		}
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	for i, s := range sinks {
		if _, _, finished := s.snapshot(); finished != 1 {
			t.Errorf("sink %d finished %d times, want exactly 1", i, finished)
		}
	}
}

func TestSessionConvertsSourceFormat(t *testing.T) {
	sourceFormat := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 32, Interleaved: true, Float: true}
	sessionFormat := testFormat()

	source := newFakeSource(sourceFormat)
	session := NewSession(source, Config{Format: sessionFormat})
	sink := newFakeSink(false)
	session.AddOutput(sink)

	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	buf, err := audio.NewBuffer(sourceFormat, 16)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	source.deliver(buf)

	waitFor(t, func() bool {
		processed, _, _ := sink.snapshot()
		return len(processed) == 1
	}, "expected converted buffer to arrive")

	processed, _, _ := sink.snapshot()
	if !processed[0].Format.Equal(sessionFormat) {
		t.Errorf("sink got %s, want %s", processed[0].Format, sessionFormat)
	}

	session.Stop()
}

func TestSessionAddRemoveOutput(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})

	sink := newFakeSink(false)
	if err := session.AddOutput(sink); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	if err := session.AddOutput(sink); err == nil {
		t.Fatal("expected duplicate AddOutput to fail")
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// A sink added while active is configured immediately.
	live := newFakeSink(false)
	if err := session.AddOutput(live); err != nil {
		t.Fatalf("AddOutput while active: %v", err)
	}
	live.mu.Lock()
	configured := live.configured
	live.mu.Unlock()
	if !configured {
		t.Error("live-added sink was not configured")
	}

	if err := session.RemoveOutput(live.ID()); err != nil {
		t.Fatalf("RemoveOutput: %v", err)
	}
	if _, _, finished := live.snapshot(); finished != 1 {
		t.Error("removed sink was not finished")
	}
	if err := session.RemoveOutput(live.ID()); err == nil {
		t.Fatal("expected RemoveOutput of unknown sink to fail")
	}

	session.Stop()
	if len(session.Outputs()) != 0 {
		t.Errorf("Outputs() = %d sinks after Stop, want 0", len(session.Outputs()))
	}
}

func TestSessionObservers(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})

	var mu sync.Mutex
	var transitions []State
	token := session.ObserveState(func(old, new State) {
		mu.Lock()
		transitions = append(transitions, new)
		mu.Unlock()
	})

	session.Start()
	session.Stop()

	mu.Lock()
	got := append([]State{}, transitions...)
	mu.Unlock()

	want := []State{StateStarting, StateActive, StateStopping, StateStopped}
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, got[i], want[i])
		}
	}

	session.RemoveObserver(token)
	session.Start()
	session.Stop()
	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != len(want) {
		t.Error("removed observer still notified")
	}
}

func TestSessionConfigureFailureOnAdd(t *testing.T) {
	source := newFakeSource(testFormat())
	session := NewSession(source, Config{Format: testFormat()})
	if err := session.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	sink := newFakeSink(false)
	sink.configured = true // forces Configure to fail
	err := session.AddOutput(sink)
	if !errors.Is(err, ErrConfigureFailed) {
		t.Errorf("AddOutput error = %v, want ErrConfigureFailed", err)
	}
	if len(session.Outputs()) != 0 {
		t.Error("failed sink was still registered")
	}

	session.Stop()
}
